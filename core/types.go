package core

import (
	"errors"
	"math"
	"strings"
	"time"
)

// UserID uniquely identifies a user in the reward domain.
type UserID string

// ActivityType names a loggable wellness activity (mood, workout, ...).
// The set of rewardable types is defined by the reward catalog, not by code.
type ActivityType string

const (
	ActivityMood       ActivityType = "mood"
	ActivityWorkout    ActivityType = "workout"
	ActivityMeal       ActivityType = "meal"
	ActivityMeditation ActivityType = "meditation"
	ActivityYoga       ActivityType = "yoga"
	ActivitySleep      ActivityType = "sleep"
	ActivitySteps      ActivityType = "steps"
	ActivityScreenTime ActivityType = "screen_time"
	ActivityBMR        ActivityType = "bmr"
	ActivityMenstrual  ActivityType = "menstrual"
	ActivityHabit      ActivityType = "habit"
	ActivityMedicine   ActivityType = "medicine"
	ActivityReading    ActivityType = "reading"
	ActivityMeasure    ActivityType = "measurement"
)

// TransactionType classifies ledger entries.
type TransactionType string

const (
	TxnActivityReward  TransactionType = "activity_reward"
	TxnQuestBonus      TransactionType = "quest_bonus"
	TxnBadgeBonus      TransactionType = "badge_bonus"
	TxnStreakBonus     TransactionType = "streak_bonus"
	TxnLevelBonus      TransactionType = "level_bonus"
	TxnSpent           TransactionType = "spent"
	TxnRefund          TransactionType = "refund"
	TxnAdminAdjustment TransactionType = "admin_adjustment"
)

// TransactionSource records what triggered a ledger entry.
type TransactionSource struct {
	Category    string `json:"category"`
	RefID       string `json:"ref_id,omitempty"`
	RefModel    string `json:"ref_model,omitempty"`
	Description string `json:"description,omitempty"`
}

// CoinTransaction is one immutable, append-only ledger entry.
// BalanceAfter equals the wallet balance immediately after the entry was
// written; the newest entry's BalanceAfter always matches the live balance.
type CoinTransaction struct {
	UserID       UserID            `json:"user_id"`
	Amount       int64             `json:"amount"` // positive earned, negative spent
	BalanceAfter int64             `json:"balance_after"`
	Type         TransactionType   `json:"type"`
	Source       TransactionSource `json:"source"`
	Metadata     map[string]any    `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// BadgeGrant is a badge present in a user's unlocked set.
type BadgeGrant struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	Tier        string    `json:"tier,omitempty"`
	UnlockedAt  time.Time `json:"unlocked_at"`
}

// QuestCompletion is one completion record in a user's quest log.
type QuestCompletion struct {
	QuestID      string    `json:"quest_id"`
	CompletedAt  time.Time `json:"completed_at"`
	CoinsAwarded int64     `json:"coins_awarded,omitempty"`
}

// Wallet is a snapshot of a user's currency and progression state.
// Implementations should return deep copies to maintain immutability guarantees.
type Wallet struct {
	UserID           UserID            `json:"user_id"`
	Coins            int64             `json:"coins"`
	Level            int               `json:"level"`
	Badges           []BadgeGrant      `json:"badges,omitempty"`
	Quests           []QuestCompletion `json:"quests,omitempty"`
	StreakMilestones map[int]time.Time `json:"streak_milestones,omitempty"`
	Updated          time.Time         `json:"updated"`
}

// Clone returns a deep copy of the wallet.
func (w Wallet) Clone() Wallet {
	cp := w
	cp.Badges = append([]BadgeGrant(nil), w.Badges...)
	cp.Quests = append([]QuestCompletion(nil), w.Quests...)
	cp.StreakMilestones = make(map[int]time.Time, len(w.StreakMilestones))
	for k, v := range w.StreakMilestones {
		cp.StreakMilestones[k] = v
	}
	return cp
}

// HasBadge reports whether the badge name is already in the unlocked set.
func (w Wallet) HasBadge(name string) bool {
	for _, b := range w.Badges {
		if b.Name == name {
			return true
		}
	}
	return false
}

// HasQuest reports whether the quest id is already in the completion log.
func (w Wallet) HasQuest(questID string) bool {
	for _, q := range w.Quests {
		if q.QuestID == questID {
			return true
		}
	}
	return false
}

// StatKey names one numeric counter in a user's stats.
type StatKey string

const (
	StatMoodLogs       StatKey = "moodLogs"
	StatWorkoutLogs    StatKey = "workoutLogs"
	StatMealLogs       StatKey = "mealLogs"
	StatMeditationLogs StatKey = "meditationLogs"
	StatYogaLogs       StatKey = "yogaLogs"
	StatSleepLogs      StatKey = "sleepLogs"
	StatStepLogs       StatKey = "stepLogs"
	StatScreenTimeLogs StatKey = "screenTimeLogs"
	StatBMRLogs        StatKey = "bmrLogs"
	StatMenstrualLogs  StatKey = "menstrualLogs"
	StatHabitLogs      StatKey = "habitLogs"
	StatMedicineLogs   StatKey = "medicineLogs"
	StatReadingLogs    StatKey = "readingLogs"
	StatMeasureLogs    StatKey = "measurementLogs"
	StatSteps          StatKey = "steps"
	StatMinutes        StatKey = "minutes"
	StatCalories       StatKey = "caloriesBurned"
	StatCoinsEarned    StatKey = "coinsEarned"
	StatCoinsSpent     StatKey = "coinsSpent"
)

// StatKeys lists every counter the stats schema knows about.
func StatKeys() []StatKey {
	return []StatKey{
		StatMoodLogs, StatWorkoutLogs, StatMealLogs, StatMeditationLogs,
		StatYogaLogs, StatSleepLogs, StatStepLogs, StatScreenTimeLogs,
		StatBMRLogs, StatMenstrualLogs, StatHabitLogs, StatMedicineLogs,
		StatReadingLogs, StatMeasureLogs, StatSteps, StatMinutes,
		StatCalories, StatCoinsEarned, StatCoinsSpent,
	}
}

// ValidStatKey reports whether k belongs to the stats schema.
func ValidStatKey(k StatKey) bool {
	for _, known := range StatKeys() {
		if known == k {
			return true
		}
	}
	return false
}

// Counters holds per-key activity counts. Counters are monotonically
// non-decreasing except for the periodic resets of the ThisWeek/Today blocks.
type Counters map[StatKey]int64

// Clone returns a copy of the counter set.
func (c Counters) Clone() Counters {
	cp := make(Counters, len(c))
	for k, v := range c {
		cp[k] = v
	}
	return cp
}

// Stats is an immutable snapshot of a user's aggregated activity counters.
type Stats struct {
	UserID   UserID      `json:"user_id"`
	Totals   Counters    `json:"totals"`
	ThisWeek Counters    `json:"this_week"`
	Today    Counters    `json:"today"`
	Streak   StreakState `json:"streak"`
	Updated  time.Time   `json:"updated"`
}

// Clone returns a deep copy of the stats snapshot.
func (s Stats) Clone() Stats {
	cp := s
	cp.Totals = s.Totals.Clone()
	cp.ThisWeek = s.ThisWeek.Clone()
	cp.Today = s.Today.Clone()
	return cp
}

// StatDeltas describes the atomic counter increments produced by one activity.
type StatDeltas struct {
	Totals   Counters `json:"totals,omitempty"`
	ThisWeek Counters `json:"this_week,omitempty"`
	Today    Counters `json:"today,omitempty"`
}

// PeriodScope selects which periodic counter block an external reset targets.
type PeriodScope string

const (
	PeriodDaily  PeriodScope = "daily"
	PeriodWeekly PeriodScope = "weekly"
)

// AddSafe adds delta to base ensuring no signed overflow occurs.
func AddSafe(base int64, delta int64) (int64, error) {
	if (delta > 0 && base > math.MaxInt64-delta) || (delta < 0 && base < math.MinInt64-delta) {
		return 0, errors.New("integer overflow in AddSafe")
	}
	return base + delta, nil
}

// NormalizeUserID trims and lowercases user identifiers.
func NormalizeUserID(id UserID) (UserID, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return "", errors.New("empty user id")
	}
	return UserID(strings.ToLower(s)), nil
}

// ValidateBadgeName ensures a non-empty badge name with a simple charset check.
func ValidateBadgeName(name string) error {
	s := strings.TrimSpace(name)
	if s == "" {
		return errors.New("empty badge name")
	}
	// simple check: alnum, dash, underscore
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			continue
		}
		return errors.New("invalid badge name")
	}
	return nil
}
