package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Formula computes base coins from one numeric field of the activity payload,
// written in the catalog as "field / divisor" ("steps / 1000"). A missing
// field evaluates to zero; the result is floored.
type Formula struct {
	Field   string  `json:"field"`
	Divisor float64 `json:"divisor"`
}

// ParseFormula parses the "field / divisor" catalog syntax.
func ParseFormula(src string) (*Formula, error) {
	parts := strings.Split(src, "/")
	if len(parts) != 2 {
		return nil, fmt.Errorf("formula %q: want \"field / divisor\"", src)
	}
	field := strings.TrimSpace(parts[0])
	if field == "" {
		return nil, fmt.Errorf("formula %q: empty field", src)
	}
	div, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || div <= 0 {
		return nil, fmt.Errorf("formula %q: divisor must be a positive number", src)
	}
	return &Formula{Field: field, Divisor: div}, nil
}

// Coins evaluates the formula against an activity payload.
func (f *Formula) Coins(data map[string]float64) int64 {
	return int64(math.Floor(data[f.Field] / f.Divisor))
}

// String renders the catalog syntax back.
func (f *Formula) String() string {
	return f.Field + " / " + strconv.FormatFloat(f.Divisor, 'f', -1, 64)
}

// RewardRate is the per-activity-type coin configuration.
type RewardRate struct {
	Base        int64    `json:"base"`
	Formula     *Formula `json:"formula,omitempty"`
	DailyCap    int64    `json:"daily_cap"`
	Description string   `json:"description,omitempty"`
}

// BaseCoins computes the uncapped base award for one activity payload.
func (r RewardRate) BaseCoins(data map[string]float64) int64 {
	if r.Formula != nil {
		return r.Formula.Coins(data)
	}
	return r.Base
}

// ResetPeriod controls whether a quest may complete more than once.
type ResetPeriod string

const (
	ResetNone   ResetPeriod = "none"
	ResetDaily  ResetPeriod = "daily"
	ResetWeekly ResetPeriod = "weekly"
)

// QuestBadge is an optional badge granted alongside a quest reward.
type QuestBadge struct {
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

// Quest is an administrator-managed objective. Quests with ResetPeriod none
// complete at most once per user; periodic quests rely on the external
// counter resets and must reference only period-scoped fields.
type Quest struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Condition   *Condition  `json:"condition"`
	RewardCoins int64       `json:"reward_coins"`
	Badge       *QuestBadge `json:"badge,omitempty"`
	Category    string      `json:"category,omitempty"`
	ResetPeriod ResetPeriod `json:"reset_period"`
	IsActive    bool        `json:"is_active"`
}

// Badge is an administrator-managed permanent achievement. Either StatField
// plus TargetValue (threshold style, with a progress percentage) or a generic
// Condition drives the unlock.
type Badge struct {
	Name        string     `json:"name"`
	DisplayName string     `json:"display_name"`
	Description string     `json:"description,omitempty"`
	Icon        string     `json:"icon,omitempty"`
	Category    string     `json:"category,omitempty"`
	Tier        string     `json:"tier,omitempty"`
	Condition   *Condition `json:"condition,omitempty"`
	StatField   string     `json:"stat_field,omitempty"`
	TargetValue float64    `json:"target_value,omitempty"`
	BonusCoins  int64      `json:"bonus_coins"`
	SortOrder   int        `json:"sort_order,omitempty"`
	IsActive    bool       `json:"is_active"`
}

// Threshold reports whether the badge is threshold style.
func (b Badge) Threshold() bool { return b.StatField != "" && b.TargetValue > 0 }

// StreakMilestone is a one-time bonus for reaching a streak length.
type StreakMilestone struct {
	BonusCoins int64  `json:"bonus_coins"`
	Badge      string `json:"badge,omitempty"`
}

// LevelMilestone is a one-time bonus for reaching an exact level.
type LevelMilestone struct {
	BonusCoins int64  `json:"bonus_coins"`
	Badge      string `json:"badge,omitempty"`
}

// Rulebook is the full, immutable gamification configuration handed to the
// reward service at construction. The engine never mutates it.
type Rulebook struct {
	Rewards          map[ActivityType]RewardRate `json:"rewards"`
	Level            LevelCurve                  `json:"level"`
	LevelMilestones  map[int]LevelMilestone      `json:"level_milestones,omitempty"`
	StreakTiers      []StreakTier                `json:"streak_tiers,omitempty"`
	StreakMilestones map[int]StreakMilestone     `json:"streak_milestones,omitempty"`
	Quests           []Quest                     `json:"quests,omitempty"`
	Badges           []Badge                     `json:"badges,omitempty"`
}

// Rate returns the reward configuration for an activity type.
func (r *Rulebook) Rate(t ActivityType) (RewardRate, bool) {
	rate, ok := r.Rewards[t]
	return rate, ok
}

// ActiveQuests returns the active subset of the quest catalog.
func (r *Rulebook) ActiveQuests() []Quest {
	out := make([]Quest, 0, len(r.Quests))
	for _, q := range r.Quests {
		if q.IsActive {
			out = append(out, q)
		}
	}
	return out
}

// ActiveBadges returns the active subset of the badge catalog.
func (r *Rulebook) ActiveBadges() []Badge {
	out := make([]Badge, 0, len(r.Badges))
	for _, b := range r.Badges {
		if b.IsActive {
			out = append(out, b)
		}
	}
	return out
}

// Validate checks catalog consistency: streak tiers sorted descending, quests
// have compiled conditions, periodic quests reference only period-scoped
// counters, badges have a threshold or a condition, and stat fields exist.
func (r *Rulebook) Validate() error {
	var errs []string

	if r.Level.CoinsPerLevel <= 0 {
		errs = append(errs, "level: coins_per_level must be > 0")
	}
	for i := 1; i < len(r.StreakTiers); i++ {
		if r.StreakTiers[i].MinDays >= r.StreakTiers[i-1].MinDays {
			errs = append(errs, "streak_tiers: must be sorted by min_days descending")
			break
		}
	}
	for t, rate := range r.Rewards {
		if rate.DailyCap < 0 {
			errs = append(errs, fmt.Sprintf("rewards[%s]: negative daily_cap", t))
		}
		if rate.Base < 0 {
			errs = append(errs, fmt.Sprintf("rewards[%s]: negative base", t))
		}
	}

	questIDs := make(map[string]struct{}, len(r.Quests))
	for _, q := range r.Quests {
		if q.ID == "" {
			errs = append(errs, fmt.Sprintf("quest %q: missing id", q.Title))
			continue
		}
		if _, dup := questIDs[q.ID]; dup {
			errs = append(errs, fmt.Sprintf("quest %q: duplicate id", q.ID))
		}
		questIDs[q.ID] = struct{}{}
		if q.Condition == nil {
			errs = append(errs, fmt.Sprintf("quest %q: missing condition", q.ID))
			continue
		}
		if q.ResetPeriod != ResetNone && q.ResetPeriod != "" {
			for _, f := range q.Condition.Fields() {
				if !periodScopedField(f) {
					errs = append(errs, fmt.Sprintf("quest %q: periodic quest may not reference lifetime field %q", q.ID, f))
				}
			}
		}
	}

	badgeNames := make(map[string]struct{}, len(r.Badges))
	for _, b := range r.Badges {
		if err := ValidateBadgeName(b.Name); err != nil {
			errs = append(errs, fmt.Sprintf("badge %q: %v", b.Name, err))
			continue
		}
		if _, dup := badgeNames[b.Name]; dup {
			errs = append(errs, fmt.Sprintf("badge %q: duplicate name", b.Name))
		}
		badgeNames[b.Name] = struct{}{}
		if !b.Threshold() && b.Condition == nil {
			errs = append(errs, fmt.Sprintf("badge %q: needs stat_field+target_value or condition", b.Name))
		}
		if b.StatField != "" {
			if _, known := ConditionFields()[b.StatField]; !known {
				errs = append(errs, fmt.Sprintf("badge %q: unknown stat_field %q", b.Name, b.StatField))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid rulebook: %s", strings.Join(errs, "; "))
	}
	return nil
}

// periodScopedField reports whether a condition field reads period-scoped
// state (thisWeek.*, today.*, or streak fields); lifetime totals and their
// flat aliases are not period-scoped.
func periodScopedField(f string) bool {
	if strings.HasPrefix(f, "thisWeek.") || strings.HasPrefix(f, "today.") {
		return true
	}
	switch f {
	case "streaks.current", "streaks.longest", "streakDays", "longestStreak":
		return true
	}
	return false
}

// ActivityStat maps an activity type to its count counter and whether the
// weekly block tracks it.
func ActivityStat(t ActivityType) (key StatKey, weekly bool, ok bool) {
	switch t {
	case ActivityMood:
		return StatMoodLogs, true, true
	case ActivityWorkout:
		return StatWorkoutLogs, true, true
	case ActivityMeal:
		return StatMealLogs, true, true
	case ActivityMeditation:
		return StatMeditationLogs, true, true
	case ActivityYoga:
		return StatYogaLogs, true, true
	case ActivitySleep:
		return StatSleepLogs, true, true
	case ActivitySteps:
		return StatStepLogs, true, true
	case ActivityScreenTime:
		return StatScreenTimeLogs, false, true
	case ActivityBMR:
		return StatBMRLogs, false, true
	case ActivityMenstrual:
		return StatMenstrualLogs, false, true
	case ActivityHabit:
		return StatHabitLogs, false, true
	case ActivityMedicine:
		return StatMedicineLogs, false, true
	case ActivityReading:
		return StatReadingLogs, false, true
	case ActivityMeasure:
		return StatMeasureLogs, false, true
	}
	return "", false, false
}
