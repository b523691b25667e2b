package engine

import (
	"time"

	"wellkit/core"
)

// Activity is the payload handed to ProcessActivity by the activity-logging
// collaborator after it has persisted the raw log.
type Activity struct {
	Type     core.ActivityType  `json:"type"`
	LogID    string             `json:"log_id,omitempty"`
	LogModel string             `json:"log_model,omitempty"`
	Data     map[string]float64 `json:"data,omitempty"`
}

// Status tags a Result so callers can tell "nothing was earned" apart from
// "the pipeline failed internally". Both read as zero rewards.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
)

// BonusCoins breaks down the bonus portion of one ProcessActivity call.
type BonusCoins struct {
	Quest  int64 `json:"quest"`
	Badge  int64 `json:"badge"`
	Streak int64 `json:"streak"`
}

// StreakSummary reports streak state after the call. Milestone is the streak
// length when it matched a configured milestone, zero otherwise.
type StreakSummary struct {
	Current   int  `json:"current"`
	Longest   int  `json:"longest"`
	IsNew     bool `json:"is_new"`
	Milestone int  `json:"milestone,omitempty"`
}

// LevelSummary reports level progression after the call.
type LevelSummary struct {
	Current   int                  `json:"current"`
	Previous  int                  `json:"previous"`
	IsLevelUp bool                 `json:"is_level_up"`
	Milestone *core.LevelMilestone `json:"milestone,omitempty"`
}

// CompletedQuest is one quest completed during the call.
type CompletedQuest struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	RewardCoins int64            `json:"reward_coins"`
	Badge       *core.QuestBadge `json:"badge,omitempty"`
}

// UnlockedBadge is one badge unlocked during the call.
type UnlockedBadge struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Tier        string `json:"tier,omitempty"`
	BonusCoins  int64  `json:"bonus_coins"`
}

// Result is the aggregated outcome of one ProcessActivity call. It is always
// structurally valid: on internal failure every numeric field is zero,
// Status is degraded, and Reason carries a short tag for telemetry.
type Result struct {
	CoinsEarned      int64            `json:"coins_earned"`
	BonusCoins       BonusCoins       `json:"bonus_coins"`
	TotalCoinsEarned int64            `json:"total_coins_earned"`
	TotalCoins       int64            `json:"total_coins"` // wallet balance once the call completed
	Streak           StreakSummary    `json:"streak"`
	Level            LevelSummary     `json:"level"`
	QuestsCompleted  []CompletedQuest `json:"quests_completed"`
	BadgesUnlocked   []UnlockedBadge  `json:"badges_unlocked"`
	Status           Status           `json:"status"`
	Reason           string           `json:"reason,omitempty"`
}

func zeroResult() Result {
	return Result{
		Level:           LevelSummary{Current: 1, Previous: 1},
		QuestsCompleted: []CompletedQuest{},
		BadgesUnlocked:  []UnlockedBadge{},
		Status:          StatusOK,
	}
}

func degradedResult(reason string) Result {
	r := zeroResult()
	r.Status = StatusDegraded
	r.Reason = reason
	return r
}

// SpendRequest describes a coin purchase.
type SpendRequest struct {
	Amount      int64          `json:"amount"`
	Category    string         `json:"category,omitempty"`
	RefID       string         `json:"ref_id,omitempty"`
	RefModel    string         `json:"ref_model,omitempty"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Summary is the read model consumed by presentation collaborators.
type Summary struct {
	NovaCoins        int64                `json:"nova_coins"`
	Level            int                  `json:"level"`
	LevelProgress    int                  `json:"level_progress"`
	CoinsToNextLevel int64                `json:"coins_to_next_level"`
	Streak           StreakSummary        `json:"streak"`
	Stats            core.Counters        `json:"stats"`
	BadgesCount      BadgesCount          `json:"badges_count"`
	QuestsCompleted  int                  `json:"quests_completed"`
}

// BadgesCount pairs unlocked badges against the active catalog size.
type BadgesCount struct {
	Unlocked int `json:"unlocked"`
	Total    int `json:"total"`
}

// BadgeStatus merges one catalog badge with a user's unlock state. Progress
// is a 0-100 percentage and only meaningful for threshold-style badges.
type BadgeStatus struct {
	Name        string     `json:"name"`
	DisplayName string     `json:"display_name"`
	Description string     `json:"description,omitempty"`
	Icon        string     `json:"icon,omitempty"`
	Category    string     `json:"category,omitempty"`
	Tier        string     `json:"tier,omitempty"`
	BonusCoins  int64      `json:"bonus_coins"`
	IsUnlocked  bool       `json:"is_unlocked"`
	UnlockedAt  *time.Time `json:"unlocked_at,omitempty"`
	Progress    int        `json:"progress"`
}

// QuestStatus merges one catalog quest with a user's completion state.
type QuestStatus struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Category    string           `json:"category,omitempty"`
	RewardCoins int64            `json:"reward_coins"`
	Badge       *core.QuestBadge `json:"badge,omitempty"`
	ResetPeriod core.ResetPeriod `json:"reset_period"`
	IsCompleted bool             `json:"is_completed"`
}
