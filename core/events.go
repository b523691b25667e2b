package core

import "time"

// EventType enumerates domain events.
type EventType string

const (
	EventCoinsAwarded   EventType = "coins_awarded"
	EventCoinsSpent     EventType = "coins_spent"
	EventStreakAdvanced EventType = "streak_advanced"
	EventQuestCompleted EventType = "quest_completed"
	EventBadgeUnlocked  EventType = "badge_unlocked"
	EventLevelUp        EventType = "level_up"
)

// Event represents an immutable domain event.
type Event struct {
	Type     EventType       `json:"type"`
	Time     time.Time       `json:"time"`
	UserID   UserID          `json:"user_id"`
	Activity ActivityType    `json:"activity,omitempty"`
	TxnType  TransactionType `json:"txn_type,omitempty"`
	Category string          `json:"category,omitempty"`
	Amount   int64           `json:"amount,omitempty"`
	Balance  int64           `json:"balance,omitempty"`
	Badge    string          `json:"badge,omitempty"`
	Quest    string          `json:"quest,omitempty"`
	Level    int             `json:"level,omitempty"`
	Streak   int             `json:"streak,omitempty"`
	Metadata map[string]any  `json:"metadata,omitempty"`
}

func NewCoinsAwarded(user UserID, txn TransactionType, category string, amount, balance int64) Event {
	return Event{Type: EventCoinsAwarded, Time: time.Now().UTC(), UserID: user, TxnType: txn, Category: category, Amount: amount, Balance: balance}
}

func NewCoinsSpent(user UserID, category string, amount, balance int64) Event {
	return Event{Type: EventCoinsSpent, Time: time.Now().UTC(), UserID: user, TxnType: TxnSpent, Category: category, Amount: amount, Balance: balance}
}

func NewStreakAdvanced(user UserID, days int) Event {
	return Event{Type: EventStreakAdvanced, Time: time.Now().UTC(), UserID: user, Streak: days}
}

func NewQuestCompleted(user UserID, questID string, reward int64) Event {
	return Event{Type: EventQuestCompleted, Time: time.Now().UTC(), UserID: user, Quest: questID, Amount: reward}
}

func NewBadgeUnlocked(user UserID, badge string, bonus int64) Event {
	return Event{Type: EventBadgeUnlocked, Time: time.Now().UTC(), UserID: user, Badge: badge, Amount: bonus}
}

func NewLevelUp(user UserID, level int) Event {
	return Event{Type: EventLevelUp, Time: time.Now().UTC(), UserID: user, Level: level}
}
