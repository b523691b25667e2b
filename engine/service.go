package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"wellkit/core"
)

// RewardService wires storage, the event bus, and the rulebook into the
// reward pipeline. It is the single write entry point for gamification:
// activity-logging collaborators persist their raw log first, then call
// ProcessActivity.
type RewardService struct {
	storage  Storage
	rulebook *core.Rulebook
	bus      *EventBus
	log      *slog.Logger
	now      func() time.Time
}

// NewRewardService builds the service. The rulebook must already be
// validated; it is never mutated.
func NewRewardService(storage Storage, rulebook *core.Rulebook, bus *EventBus, log *slog.Logger) *RewardService {
	if storage == nil || rulebook == nil || bus == nil {
		panic("NewRewardService requires non-nil storage, rulebook, and bus")
	}
	if log == nil {
		log = slog.Default()
	}
	return &RewardService{
		storage:  storage,
		rulebook: rulebook,
		bus:      bus,
		log:      log,
		now:      time.Now,
	}
}

// Subscribe convenience method.
func (s *RewardService) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	return s.bus.Subscribe(typ, handler)
}

func (s *RewardService) Publish(ctx context.Context, ev core.Event) {
	s.bus.Publish(ctx, ev)
}

func (s *RewardService) Close() { s.bus.Close() }

// Rulebook exposes the immutable configuration for read surfaces.
func (s *RewardService) Rulebook() *core.Rulebook { return s.rulebook }

// ProcessActivity runs the full reward pipeline for one logged activity:
// base coins, streak transition, multiplier and daily cap, ledger credit,
// stats increments, quest and badge evaluation, streak milestone, and level
// progression.
//
// It never fails the caller. Any internal error or panic is caught here and
// converted into a structurally valid zero-reward Result tagged degraded;
// side effects already committed are not rolled back. The triggering
// activity log must never be affected by a gamification failure.
func (s *RewardService) ProcessActivity(ctx context.Context, user core.UserID, act Activity) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("reward pipeline panicked", "user", user, "activity", act.Type, "panic", r)
			res = degradedResult("panic")
		}
	}()

	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return degradedResult("invalid_user")
	}

	out, err := s.processActivity(ctx, normalized, act)
	if err != nil {
		s.log.Error("reward pipeline failed", "user", normalized, "activity", act.Type, "error", err)
		return degradedResult(reasonFor(err))
	}
	return out
}

func reasonFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, core.ErrUnknownActivity):
		return "unknown_activity"
	default:
		return "internal_error"
	}
}

func (s *RewardService) processActivity(ctx context.Context, user core.UserID, act Activity) (Result, error) {
	rate, ok := s.rulebook.Rate(act.Type)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", core.ErrUnknownActivity, act.Type)
	}
	now := s.now()

	// 1. Base coins, fixed or formula-derived.
	baseCoins := rate.BaseCoins(act.Data)

	// 2. Streak transition.
	stats, err := s.storage.Stats(ctx, user)
	if err != nil {
		return Result{}, fmt.Errorf("load stats: %w", err)
	}
	streak, isNew := stats.Streak.Next(now)
	if err := s.storage.SetStreak(ctx, user, streak); err != nil {
		return Result{}, fmt.Errorf("persist streak: %w", err)
	}
	if isNew {
		s.bus.Publish(ctx, core.NewStreakAdvanced(user, streak.Current))
	}

	// 3-4. Multiplier, floor, daily cap clamp.
	multiplier := core.Multiplier(s.rulebook.StreakTiers, streak.Current)
	finalCoins := int64(math.Floor(float64(baseCoins) * multiplier))
	if finalCoins < 0 {
		finalCoins = 0
	}
	if finalCoins > rate.DailyCap {
		finalCoins = rate.DailyCap
	}

	// 5. Credit the ledger.
	if finalCoins > 0 {
		formula := ""
		if rate.Formula != nil {
			formula = rate.Formula.String()
		}
		_, err := s.award(ctx, user, finalCoins, core.TxnActivityReward, core.TransactionSource{
			Category:    string(act.Type),
			RefID:       act.LogID,
			RefModel:    act.LogModel,
			Description: rate.Description,
		}, map[string]any{
			"formula":    formula,
			"baseAmount": baseCoins,
			"multiplier": multiplier,
		})
		if err != nil {
			return Result{}, fmt.Errorf("award activity coins: %w", err)
		}
	}

	// 6. Stats increments.
	if err := s.storage.IncrementStats(ctx, user, buildDeltas(act, finalCoins)); err != nil {
		return Result{}, fmt.Errorf("increment stats: %w", err)
	}

	// 7. Fresh snapshot for rule evaluation.
	snapshot, err := s.storage.Stats(ctx, user)
	if err != nil {
		return Result{}, fmt.Errorf("reload stats: %w", err)
	}
	wallet, err := s.storage.Wallet(ctx, user)
	if err != nil {
		return Result{}, fmt.Errorf("load wallet: %w", err)
	}

	questBonus, questsCompleted := s.runQuests(ctx, user, wallet, snapshot, now)
	badgeBonus, badgesUnlocked := s.runBadges(ctx, user, wallet, snapshot, now)

	// 8. One-time streak milestone bonus.
	streakBonus, streakMilestone := s.runStreakMilestone(ctx, user, streak, isNew, now)

	// 9. Level progression from the post-award balance.
	balance, err := s.storage.Balance(ctx, user)
	if err != nil {
		return Result{}, fmt.Errorf("read balance: %w", err)
	}
	level, milestoneBonus, err := s.updateLevel(ctx, user, wallet.Level, balance)
	if err != nil {
		return Result{}, fmt.Errorf("update level: %w", err)
	}

	res := Result{
		CoinsEarned: finalCoins,
		BonusCoins: BonusCoins{
			Quest:  questBonus,
			Badge:  badgeBonus,
			Streak: streakBonus,
		},
		TotalCoinsEarned: finalCoins + questBonus + badgeBonus + streakBonus + milestoneBonus,
		TotalCoins:       balance + milestoneBonus,
		Streak: StreakSummary{
			Current:   streak.Current,
			Longest:   streak.Longest,
			IsNew:     isNew,
			Milestone: streakMilestone,
		},
		Level:           level,
		QuestsCompleted: questsCompleted,
		BadgesUnlocked:  badgesUnlocked,
		Status:          StatusOK,
	}
	return res, nil
}

// buildDeltas maps one activity onto atomic counter increments: the category
// count plus whatever numeric accumulations the payload carries.
func buildDeltas(act Activity, coinsEarned int64) core.StatDeltas {
	d := core.StatDeltas{
		Totals:   core.Counters{},
		ThisWeek: core.Counters{},
		Today:    core.Counters{},
	}
	if key, weekly, ok := core.ActivityStat(act.Type); ok {
		d.Totals[key]++
		if weekly {
			d.ThisWeek[key]++
		}
	}
	if v := act.Data["steps"]; v > 0 {
		d.Totals[core.StatSteps] += int64(v)
		d.ThisWeek[core.StatSteps] += int64(v)
	}
	if v := act.Data["durationMin"]; v > 0 {
		d.Totals[core.StatMinutes] += int64(v)
		d.ThisWeek[core.StatMinutes] += int64(v)
	}
	if v := act.Data["caloriesBurned"]; v > 0 {
		d.Totals[core.StatCalories] += int64(v)
		d.ThisWeek[core.StatCalories] += int64(v)
	}
	if coinsEarned > 0 {
		d.Totals[core.StatCoinsEarned] += coinsEarned
		d.Today[core.StatCoinsEarned] += coinsEarned
	}
	return d
}

// award atomically credits the wallet and appends the matching ledger entry.
// BalanceAfter on the entry is the post-increment balance.
func (s *RewardService) award(ctx context.Context, user core.UserID, amount int64, typ core.TransactionType, src core.TransactionSource, meta map[string]any) (int64, error) {
	if amount <= 0 {
		return 0, core.ErrInvalidAmount
	}
	balance, err := s.storage.CreditCoins(ctx, user, amount)
	if err != nil {
		return 0, err
	}
	txn := core.CoinTransaction{
		UserID:       user,
		Amount:       amount,
		BalanceAfter: balance,
		Type:         typ,
		Source:       src,
		Metadata:     meta,
		CreatedAt:    s.now(),
	}
	if err := s.storage.AppendTransaction(ctx, txn); err != nil {
		return balance, err
	}
	s.bus.Publish(ctx, core.NewCoinsAwarded(user, typ, src.Category, amount, balance))
	return balance, nil
}

// runQuests evaluates every active quest against the snapshot. A quest with
// no reset period completes at most once per user. Failures are isolated per
// quest: one broken quest never aborts the rest of the batch.
func (s *RewardService) runQuests(ctx context.Context, user core.UserID, wallet core.Wallet, snapshot core.Stats, now time.Time) (int64, []CompletedQuest) {
	completed := []CompletedQuest{}
	var bonus int64
	evalCtx := core.BuildConditionContext(snapshot)

	for _, quest := range s.rulebook.ActiveQuests() {
		if (quest.ResetPeriod == core.ResetNone || quest.ResetPeriod == "") && wallet.HasQuest(quest.ID) {
			continue
		}
		if !quest.Condition.EvalContext(evalCtx) {
			continue
		}
		if quest.RewardCoins > 0 {
			if _, err := s.award(ctx, user, quest.RewardCoins, core.TxnQuestBonus, core.TransactionSource{
				Category:    "quest",
				RefID:       quest.ID,
				RefModel:    "quests",
				Description: "Quest completed: " + quest.Title,
			}, map[string]any{"questId": quest.ID}); err != nil {
				s.log.Warn("quest reward failed", "user", user, "quest", quest.ID, "error", err)
				continue
			}
			bonus += quest.RewardCoins
		}
		if quest.Badge != nil {
			if _, err := s.storage.UnlockBadge(ctx, user, core.BadgeGrant{
				Name:       quest.Badge.Name,
				Icon:       quest.Badge.Icon,
				UnlockedAt: now,
			}); err != nil {
				s.log.Warn("quest badge grant failed", "user", user, "quest", quest.ID, "error", err)
			}
		}
		if err := s.storage.CompleteQuest(ctx, user, core.QuestCompletion{
			QuestID:      quest.ID,
			CompletedAt:  now,
			CoinsAwarded: quest.RewardCoins,
		}); err != nil {
			s.log.Warn("quest completion record failed", "user", user, "quest", quest.ID, "error", err)
			continue
		}
		s.bus.Publish(ctx, core.NewQuestCompleted(user, quest.ID, quest.RewardCoins))
		completed = append(completed, CompletedQuest{
			ID:          quest.ID,
			Title:       quest.Title,
			Description: quest.Description,
			RewardCoins: quest.RewardCoins,
			Badge:       quest.Badge,
		})
	}
	return bonus, completed
}

// runBadges evaluates every active badge not yet held. Unlocks are idempotent
// at the storage layer, so a badge name is never appended twice.
func (s *RewardService) runBadges(ctx context.Context, user core.UserID, wallet core.Wallet, snapshot core.Stats, now time.Time) (int64, []UnlockedBadge) {
	unlocked := []UnlockedBadge{}
	var bonus int64
	evalCtx := core.BuildConditionContext(snapshot)

	for _, badge := range s.rulebook.ActiveBadges() {
		if wallet.HasBadge(badge.Name) {
			continue
		}
		met := false
		if badge.Threshold() {
			v, _ := core.LookupStatField(snapshot, badge.StatField)
			met = v >= badge.TargetValue
		} else if badge.Condition != nil {
			met = badge.Condition.EvalContext(evalCtx)
		}
		if !met {
			continue
		}
		added, err := s.storage.UnlockBadge(ctx, user, core.BadgeGrant{
			Name:        badge.Name,
			DisplayName: badge.DisplayName,
			Icon:        badge.Icon,
			Tier:        badge.Tier,
			UnlockedAt:  now,
		})
		if err != nil {
			s.log.Warn("badge unlock failed", "user", user, "badge", badge.Name, "error", err)
			continue
		}
		if !added {
			continue
		}
		if badge.BonusCoins > 0 {
			if _, err := s.award(ctx, user, badge.BonusCoins, core.TxnBadgeBonus, core.TransactionSource{
				Category:    "badge",
				RefID:       badge.Name,
				RefModel:    "badges",
				Description: "Badge unlocked: " + badge.DisplayName,
			}, map[string]any{"badge": badge.Name}); err != nil {
				s.log.Warn("badge bonus failed", "user", user, "badge", badge.Name, "error", err)
			} else {
				bonus += badge.BonusCoins
			}
		}
		s.bus.Publish(ctx, core.NewBadgeUnlocked(user, badge.Name, badge.BonusCoins))
		unlocked = append(unlocked, UnlockedBadge{
			Name:        badge.Name,
			DisplayName: badge.DisplayName,
			Icon:        badge.Icon,
			Tier:        badge.Tier,
			BonusCoins:  badge.BonusCoins,
		})
	}
	return bonus, unlocked
}

// runStreakMilestone awards the configured one-time bonus when a streak
// newly reaches a milestone length. ClaimStreakMilestone enforces
// at-most-once per user per length, so rebuilding a broken streak to the
// same length never re-fires.
func (s *RewardService) runStreakMilestone(ctx context.Context, user core.UserID, streak core.StreakState, isNew bool, now time.Time) (int64, int) {
	if !isNew {
		return 0, 0
	}
	milestone, ok := s.rulebook.StreakMilestones[streak.Current]
	if !ok {
		return 0, 0
	}
	claimed, err := s.storage.ClaimStreakMilestone(ctx, user, streak.Current)
	if err != nil {
		s.log.Warn("streak milestone claim failed", "user", user, "days", streak.Current, "error", err)
		return 0, 0
	}
	if !claimed {
		return 0, streak.Current
	}
	var bonus int64
	if milestone.BonusCoins > 0 {
		if _, err := s.award(ctx, user, milestone.BonusCoins, core.TxnStreakBonus, core.TransactionSource{
			Category:    "streak",
			Description: fmt.Sprintf("%d-day streak bonus!", streak.Current),
		}, map[string]any{"streakDays": streak.Current}); err != nil {
			s.log.Warn("streak bonus failed", "user", user, "days", streak.Current, "error", err)
		} else {
			bonus = milestone.BonusCoins
		}
	}
	if milestone.Badge != "" {
		if _, err := s.storage.UnlockBadge(ctx, user, core.BadgeGrant{
			Name:       milestone.Badge,
			UnlockedAt: now,
		}); err != nil {
			s.log.Warn("streak milestone badge failed", "user", user, "badge", milestone.Badge, "error", err)
		}
	}
	return bonus, streak.Current
}

// updateLevel recomputes the level from the balance and persists an
// increase. A level-milestone bonus fires only on an exact match of the
// newly reached level.
func (s *RewardService) updateLevel(ctx context.Context, user core.UserID, currentLevel int, balance int64) (LevelSummary, int64, error) {
	if currentLevel < 1 {
		currentLevel = 1
	}
	newLevel := s.rulebook.Level.Level(balance)
	if newLevel <= currentLevel {
		return LevelSummary{Current: currentLevel, Previous: currentLevel}, 0, nil
	}
	if err := s.storage.SetLevel(ctx, user, newLevel); err != nil {
		return LevelSummary{}, 0, err
	}
	s.bus.Publish(ctx, core.NewLevelUp(user, newLevel))

	summary := LevelSummary{Current: newLevel, Previous: currentLevel, IsLevelUp: true}
	var bonus int64
	if milestone, ok := s.rulebook.LevelMilestones[newLevel]; ok {
		ms := milestone
		summary.Milestone = &ms
		if milestone.BonusCoins > 0 {
			if _, err := s.award(ctx, user, milestone.BonusCoins, core.TxnLevelBonus, core.TransactionSource{
				Category:    "level",
				Description: fmt.Sprintf("Level %d milestone!", newLevel),
			}, map[string]any{"level": newLevel}); err != nil {
				s.log.Warn("level milestone bonus failed", "user", user, "level", newLevel, "error", err)
			} else {
				bonus = milestone.BonusCoins
			}
		}
		if milestone.Badge != "" {
			if _, err := s.storage.UnlockBadge(ctx, user, core.BadgeGrant{
				Name:       milestone.Badge,
				UnlockedAt: s.now(),
			}); err != nil {
				s.log.Warn("level milestone badge failed", "user", user, "level", newLevel, "error", err)
			}
		}
	}
	return summary, bonus, nil
}
