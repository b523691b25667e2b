package config

import (
	"encoding/json"
	"fmt"
	"os"

	"wellkit/core"
)

// LoadRulebook returns the reward catalog: the compiled-in defaults when
// path is empty, otherwise the JSON catalog at path. Conditions are compiled
// and schema-checked during unmarshalling, so a catalog referencing unknown
// stat fields is rejected here rather than at evaluation time.
func LoadRulebook(path string) (*core.Rulebook, error) {
	if path == "" {
		return DefaultRulebook(), nil
	}
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid catalog path: %w", err)
	}
	data, err := os.ReadFile(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	rb := &core.Rulebook{}
	if err := json.Unmarshal(data, rb); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	if rb.Level.CoinsPerLevel == 0 {
		rb.Level = core.DefaultLevelCurve()
	}
	if len(rb.StreakTiers) == 0 {
		rb.StreakTiers = core.DefaultStreakTiers()
	}
	if err := rb.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", path, err)
	}
	return rb, nil
}

// DefaultRulebook is the compiled-in reward catalog.
func DefaultRulebook() *core.Rulebook {
	return &core.Rulebook{
		Rewards:          defaultRewards(),
		Level:            core.DefaultLevelCurve(),
		LevelMilestones:  defaultLevelMilestones(),
		StreakTiers:      core.DefaultStreakTiers(),
		StreakMilestones: defaultStreakMilestones(),
		Quests:           defaultQuests(),
		Badges:           defaultBadges(),
	}
}

func defaultRewards() map[core.ActivityType]core.RewardRate {
	formula := func(src string) *core.Formula {
		f, err := core.ParseFormula(src)
		if err != nil {
			panic(err)
		}
		return f
	}
	return map[core.ActivityType]core.RewardRate{
		core.ActivityMood:       {Base: 20, DailyCap: 20, Description: "Mood logged"},
		core.ActivityWorkout:    {Formula: formula("caloriesBurned / 100"), DailyCap: 50, Description: "Workout completed"},
		core.ActivityMeal:       {Base: 5, DailyCap: 25, Description: "Meal logged"},
		core.ActivityMeditation: {Formula: formula("durationMin / 5"), DailyCap: 30, Description: "Meditation completed"},
		core.ActivityYoga:       {Formula: formula("durationMin / 5"), DailyCap: 30, Description: "Yoga session completed"},
		core.ActivitySleep:      {Formula: formula("durationMin / 30"), DailyCap: 20, Description: "Sleep logged"},
		core.ActivitySteps:      {Formula: formula("steps / 1000"), DailyCap: 20, Description: "Steps recorded"},
		core.ActivityScreenTime: {Formula: formula("durationMin / 30"), DailyCap: 10, Description: "Screen time logged"},
		core.ActivityBMR:        {Base: 10, DailyCap: 10, Description: "BMR recorded"},
		core.ActivityMenstrual:  {Base: 20, DailyCap: 20, Description: "Cycle logged"},
		core.ActivityHabit:      {Base: 1, DailyCap: 10, Description: "Habit checked off"},
		core.ActivityMedicine:   {Base: 1, DailyCap: 5, Description: "Medicine taken"},
		core.ActivityReading:    {Formula: formula("durationMin / 10"), DailyCap: 15, Description: "Reading session logged"},
		core.ActivityMeasure:    {Base: 5, DailyCap: 10, Description: "Measurement recorded"},
	}
}

func defaultLevelMilestones() map[int]core.LevelMilestone {
	return map[int]core.LevelMilestone{
		5:   {BonusCoins: 50, Badge: "rising_star"},
		10:  {BonusCoins: 100, Badge: "committed"},
		25:  {BonusCoins: 250, Badge: "dedicated"},
		50:  {BonusCoins: 500, Badge: "master"},
		100: {BonusCoins: 1000, Badge: "legend"},
	}
}

func defaultStreakMilestones() map[int]core.StreakMilestone {
	return map[int]core.StreakMilestone{
		3:   {BonusCoins: 10},
		7:   {BonusCoins: 25, Badge: "week_warrior"},
		14:  {BonusCoins: 50, Badge: "two_week_streak"},
		30:  {BonusCoins: 100, Badge: "monthly_champion"},
		60:  {BonusCoins: 200},
		90:  {BonusCoins: 300, Badge: "quarter_master"},
		180: {BonusCoins: 500},
		365: {BonusCoins: 1000, Badge: "year_legend"},
	}
}

func defaultQuests() []core.Quest {
	return []core.Quest{
		{
			ID:          "daily-check-in",
			Title:       "Daily Check-in",
			Description: "Log any activity today",
			Condition:   core.MustCompileCondition("thisWeek.moodLogs >= 1 || thisWeek.workoutLogs >= 1"),
			RewardCoins: 10,
			Category:    "daily",
			ResetPeriod: core.ResetDaily,
			IsActive:    true,
		},
		{
			ID:          "mood-master-week",
			Title:       "Mood Master Week",
			Description: "Log your mood 5 times this week",
			Condition:   core.MustCompileCondition("thisWeek.moodLogs >= 5"),
			RewardCoins: 50,
			Badge:       &core.QuestBadge{Name: "mood_master", Icon: "mood_5"},
			Category:    "weekly",
			ResetPeriod: core.ResetWeekly,
			IsActive:    true,
		},
		{
			ID:          "active-week",
			Title:       "Active Week",
			Description: "Complete 3 workouts this week",
			Condition:   core.MustCompileCondition("thisWeek.workoutLogs >= 3"),
			RewardCoins: 75,
			Category:    "weekly",
			ResetPeriod: core.ResetWeekly,
			IsActive:    true,
		},
		{
			ID:          "first-steps",
			Title:       "First Steps",
			Description: "Log your first activity",
			Condition:   core.MustCompileCondition("totals.moodLogs >= 1 || totals.workoutLogs >= 1 || totals.mealLogs >= 1"),
			RewardCoins: 25,
			Category:    "milestone",
			ResetPeriod: core.ResetNone,
			IsActive:    true,
		},
		{
			ID:          "seven-day-streak",
			Title:       "7-Day Streak",
			Description: "Maintain a 7-day activity streak",
			Condition:   core.MustCompileCondition("streaks.current >= 7"),
			RewardCoins: 100,
			Badge:       &core.QuestBadge{Name: "week_warrior", Icon: "streak_7"},
			Category:    "milestone",
			ResetPeriod: core.ResetNone,
			IsActive:    true,
		},
		{
			ID:          "thirty-day-streak",
			Title:       "30-Day Streak",
			Description: "Maintain a 30-day activity streak",
			Condition:   core.MustCompileCondition("streaks.current >= 30"),
			RewardCoins: 300,
			Badge:       &core.QuestBadge{Name: "monthly_champion", Icon: "streak_30"},
			Category:    "milestone",
			ResetPeriod: core.ResetNone,
			IsActive:    true,
		},
		{
			ID:          "fitness-enthusiast",
			Title:       "Fitness Enthusiast",
			Description: "Complete 25 workouts",
			Condition:   core.MustCompileCondition("totals.workoutLogs >= 25"),
			RewardCoins: 150,
			Category:    "milestone",
			ResetPeriod: core.ResetNone,
			IsActive:    true,
		},
		{
			ID:          "mindfulness-master",
			Title:       "Mindfulness Master",
			Description: "Complete 50 meditation sessions",
			Condition:   core.MustCompileCondition("totals.meditationLogs >= 50"),
			RewardCoins: 200,
			Badge:       &core.QuestBadge{Name: "zen_master", Icon: "meditation_50"},
			Category:    "milestone",
			ResetPeriod: core.ResetNone,
			IsActive:    true,
		},
		{
			ID:          "step-champion",
			Title:       "Step Champion",
			Description: "Walk 100,000 total steps",
			Condition:   core.MustCompileCondition("totals.steps >= 100000"),
			RewardCoins: 250,
			Category:    "milestone",
			ResetPeriod: core.ResetNone,
			IsActive:    true,
		},
		{
			ID:          "coin-collector",
			Title:       "Coin Collector",
			Description: "Earn 1,000 NovaCoins",
			Condition:   core.MustCompileCondition("totals.coinsEarned >= 1000"),
			RewardCoins: 100,
			Badge:       &core.QuestBadge{Name: "coin_collector", Icon: "coins_1k"},
			Category:    "milestone",
			ResetPeriod: core.ResetNone,
			IsActive:    true,
		},
	}
}

func defaultBadges() []core.Badge {
	return []core.Badge{
		{
			Name:        "first_step",
			DisplayName: "First Step",
			Description: "Complete your first activity",
			Icon:        "badge_first_step",
			Category:    "milestone",
			Tier:        "bronze",
			StatField:   "totals.moodLogs",
			TargetValue: 1,
			BonusCoins:  10,
			SortOrder:   1,
			IsActive:    true,
		},
		{
			Name:        "week_warrior",
			DisplayName: "Week Warrior",
			Description: "Maintain a 7-day streak",
			Icon:        "badge_streak_7",
			Category:    "streak",
			Tier:        "bronze",
			StatField:   "streaks.current",
			TargetValue: 7,
			BonusCoins:  25,
			SortOrder:   10,
			IsActive:    true,
		},
		{
			Name:        "two_week_streak",
			DisplayName: "Fortnight Fighter",
			Description: "Maintain a 14-day streak",
			Icon:        "badge_streak_14",
			Category:    "streak",
			Tier:        "silver",
			StatField:   "streaks.current",
			TargetValue: 14,
			BonusCoins:  50,
			SortOrder:   11,
			IsActive:    true,
		},
		{
			Name:        "monthly_champion",
			DisplayName: "Monthly Champion",
			Description: "Maintain a 30-day streak",
			Icon:        "badge_streak_30",
			Category:    "streak",
			Tier:        "gold",
			StatField:   "streaks.current",
			TargetValue: 30,
			BonusCoins:  100,
			SortOrder:   12,
			IsActive:    true,
		},
		{
			Name:        "quarter_master",
			DisplayName: "Quarter Master",
			Description: "Maintain a 90-day streak",
			Icon:        "badge_streak_90",
			Category:    "streak",
			Tier:        "platinum",
			StatField:   "streaks.longest",
			TargetValue: 90,
			BonusCoins:  250,
			SortOrder:   13,
			IsActive:    true,
		},
		{
			Name:        "workout_beginner",
			DisplayName: "Workout Beginner",
			Description: "Complete 10 workouts",
			Icon:        "badge_workout_10",
			Category:    "milestone",
			Tier:        "bronze",
			StatField:   "totals.workoutLogs",
			TargetValue: 10,
			BonusCoins:  20,
			SortOrder:   20,
			IsActive:    true,
		},
		{
			Name:        "fitness_pro",
			DisplayName: "Fitness Pro",
			Description: "Complete 50 workouts",
			Icon:        "badge_workout_50",
			Category:    "milestone",
			Tier:        "silver",
			StatField:   "totals.workoutLogs",
			TargetValue: 50,
			BonusCoins:  75,
			SortOrder:   21,
			IsActive:    true,
		},
		{
			Name:        "gym_legend",
			DisplayName: "Gym Legend",
			Description: "Complete 100 workouts",
			Icon:        "badge_workout_100",
			Category:    "milestone",
			Tier:        "gold",
			StatField:   "totals.workoutLogs",
			TargetValue: 100,
			BonusCoins:  150,
			SortOrder:   22,
			IsActive:    true,
		},
		{
			Name:        "mindful_start",
			DisplayName: "Mindful Start",
			Description: "Complete 10 meditation sessions",
			Icon:        "badge_meditation_10",
			Category:    "milestone",
			Tier:        "bronze",
			StatField:   "totals.meditationLogs",
			TargetValue: 10,
			BonusCoins:  20,
			SortOrder:   30,
			IsActive:    true,
		},
		{
			Name:        "zen_master",
			DisplayName: "Zen Master",
			Description: "Complete 50 meditation sessions",
			Icon:        "badge_meditation_50",
			Category:    "milestone",
			Tier:        "gold",
			StatField:   "totals.meditationLogs",
			TargetValue: 50,
			BonusCoins:  100,
			SortOrder:   31,
			IsActive:    true,
		},
		{
			Name:        "mood_tracker",
			DisplayName: "Mood Tracker",
			Description: "Log your mood 30 times",
			Icon:        "badge_mood_30",
			Category:    "consistency",
			Tier:        "silver",
			StatField:   "totals.moodLogs",
			TargetValue: 30,
			BonusCoins:  50,
			SortOrder:   40,
			IsActive:    true,
		},
		{
			Name:        "walker",
			DisplayName: "Walker",
			Description: "Walk 50,000 total steps",
			Icon:        "badge_steps_50k",
			Category:    "milestone",
			Tier:        "bronze",
			StatField:   "totals.steps",
			TargetValue: 50000,
			BonusCoins:  30,
			SortOrder:   50,
			IsActive:    true,
		},
		{
			Name:        "marathon_walker",
			DisplayName: "Marathon Walker",
			Description: "Walk 500,000 total steps",
			Icon:        "badge_steps_500k",
			Category:    "milestone",
			Tier:        "gold",
			StatField:   "totals.steps",
			TargetValue: 500000,
			BonusCoins:  200,
			SortOrder:   51,
			IsActive:    true,
		},
		{
			Name:        "coin_starter",
			DisplayName: "Coin Starter",
			Description: "Earn 500 NovaCoins",
			Icon:        "badge_coins_500",
			Category:    "milestone",
			Tier:        "bronze",
			StatField:   "totals.coinsEarned",
			TargetValue: 500,
			BonusCoins:  25,
			SortOrder:   60,
			IsActive:    true,
		},
		{
			Name:        "coin_collector",
			DisplayName: "Coin Collector",
			Description: "Earn 2,000 NovaCoins",
			Icon:        "badge_coins_2k",
			Category:    "milestone",
			Tier:        "silver",
			StatField:   "totals.coinsEarned",
			TargetValue: 2000,
			BonusCoins:  100,
			SortOrder:   61,
			IsActive:    true,
		},
		{
			Name:        "coin_master",
			DisplayName: "Coin Master",
			Description: "Earn 10,000 NovaCoins",
			Icon:        "badge_coins_10k",
			Category:    "milestone",
			Tier:        "gold",
			StatField:   "totals.coinsEarned",
			TargetValue: 10000,
			BonusCoins:  500,
			SortOrder:   62,
			IsActive:    true,
		},
	}
}
