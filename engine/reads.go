package engine

import (
	"context"
	"fmt"

	"wellkit/core"
)

// Balance returns the live wallet balance.
func (s *RewardService) Balance(ctx context.Context, user core.UserID) (int64, error) {
	user, err := core.NormalizeUserID(user)
	if err != nil {
		return 0, err
	}
	return s.storage.Balance(ctx, user)
}

// History returns one page of the user's ledger, newest first.
func (s *RewardService) History(ctx context.Context, user core.UserID, q core.HistoryQuery) (core.HistoryPage, error) {
	user, err := core.NormalizeUserID(user)
	if err != nil {
		return core.HistoryPage{}, err
	}
	q = q.Normalize()
	return s.storage.History(ctx, user, q)
}

// EarningsByCategory returns lifetime earned coins grouped by source
// category, largest first.
func (s *RewardService) EarningsByCategory(ctx context.Context, user core.UserID) ([]core.CategoryEarnings, error) {
	user, err := core.NormalizeUserID(user)
	if err != nil {
		return nil, err
	}
	return s.storage.EarningsByCategory(ctx, user)
}

// Stats returns the user's counter snapshot.
func (s *RewardService) Stats(ctx context.Context, user core.UserID) (core.Stats, error) {
	user, err := core.NormalizeUserID(user)
	if err != nil {
		return core.Stats{}, err
	}
	return s.storage.Stats(ctx, user)
}

// Summary assembles the dashboard read model from the wallet and stats.
func (s *RewardService) Summary(ctx context.Context, user core.UserID) (Summary, error) {
	user, err := core.NormalizeUserID(user)
	if err != nil {
		return Summary{}, err
	}
	wallet, err := s.storage.Wallet(ctx, user)
	if err != nil {
		return Summary{}, fmt.Errorf("load wallet: %w", err)
	}
	stats, err := s.storage.Stats(ctx, user)
	if err != nil {
		return Summary{}, fmt.Errorf("load stats: %w", err)
	}

	level := wallet.Level
	if level < 1 {
		level = 1
	}
	return Summary{
		NovaCoins:        wallet.Coins,
		Level:            level,
		LevelProgress:    s.rulebook.Level.Progress(wallet.Coins),
		CoinsToNextLevel: s.rulebook.Level.CoinsToNext(wallet.Coins),
		Streak: StreakSummary{
			Current: stats.Streak.Current,
			Longest: stats.Streak.Longest,
		},
		Stats: stats.Totals.Clone(),
		BadgesCount: BadgesCount{
			Unlocked: len(wallet.Badges),
			Total:    len(s.rulebook.ActiveBadges()),
		},
		QuestsCompleted: len(wallet.Quests),
	}, nil
}

// UserBadges returns the full active badge catalog annotated with the user's
// unlock state and, for threshold badges, a progress percentage.
func (s *RewardService) UserBadges(ctx context.Context, user core.UserID) ([]BadgeStatus, error) {
	user, err := core.NormalizeUserID(user)
	if err != nil {
		return nil, err
	}
	wallet, err := s.storage.Wallet(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}
	stats, err := s.storage.Stats(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}

	unlockedAt := make(map[string]core.BadgeGrant, len(wallet.Badges))
	for _, g := range wallet.Badges {
		unlockedAt[g.Name] = g
	}

	catalog := s.rulebook.ActiveBadges()
	out := make([]BadgeStatus, 0, len(catalog))
	for _, badge := range catalog {
		st := BadgeStatus{
			Name:        badge.Name,
			DisplayName: badge.DisplayName,
			Description: badge.Description,
			Icon:        badge.Icon,
			Category:    badge.Category,
			Tier:        badge.Tier,
			BonusCoins:  badge.BonusCoins,
		}
		if grant, ok := unlockedAt[badge.Name]; ok {
			st.IsUnlocked = true
			st.Progress = 100
			if !grant.UnlockedAt.IsZero() {
				at := grant.UnlockedAt
				st.UnlockedAt = &at
			}
		} else if badge.Threshold() && badge.TargetValue > 0 {
			v, _ := core.LookupStatField(stats, badge.StatField)
			pct := int(v / badge.TargetValue * 100)
			if pct > 100 {
				pct = 100
			}
			if pct < 0 {
				pct = 0
			}
			st.Progress = pct
		}
		out = append(out, st)
	}
	return out, nil
}

// UserQuests returns the active quest catalog annotated with the user's
// completion state.
func (s *RewardService) UserQuests(ctx context.Context, user core.UserID) ([]QuestStatus, error) {
	user, err := core.NormalizeUserID(user)
	if err != nil {
		return nil, err
	}
	wallet, err := s.storage.Wallet(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}

	done := make(map[string]bool, len(wallet.Quests))
	for _, q := range wallet.Quests {
		done[q.QuestID] = true
	}

	catalog := s.rulebook.ActiveQuests()
	out := make([]QuestStatus, 0, len(catalog))
	for _, quest := range catalog {
		out = append(out, QuestStatus{
			ID:          quest.ID,
			Title:       quest.Title,
			Description: quest.Description,
			Category:    quest.Category,
			RewardCoins: quest.RewardCoins,
			Badge:       quest.Badge,
			ResetPeriod: quest.ResetPeriod,
			IsCompleted: done[quest.ID],
		})
	}
	return out, nil
}

// Spend debits coins for a purchase and appends the matching negative ledger
// entry. The balance check and the decrement are a single atomic operation at
// the storage layer; on core.ErrInsufficientBalance nothing changes.
func (s *RewardService) Spend(ctx context.Context, user core.UserID, req SpendRequest) (int64, error) {
	user, err := core.NormalizeUserID(user)
	if err != nil {
		return 0, err
	}
	if req.Amount <= 0 {
		return 0, core.ErrInvalidAmount
	}

	balance, err := s.storage.DebitCoins(ctx, user, req.Amount)
	if err != nil {
		return 0, err
	}
	txn := core.CoinTransaction{
		UserID:       user,
		Amount:       -req.Amount,
		BalanceAfter: balance,
		Type:         core.TxnSpent,
		Source: core.TransactionSource{
			Category:    req.Category,
			RefID:       req.RefID,
			RefModel:    req.RefModel,
			Description: req.Description,
		},
		Metadata:  req.Metadata,
		CreatedAt: s.now(),
	}
	if err := s.storage.AppendTransaction(ctx, txn); err != nil {
		return balance, fmt.Errorf("append spend transaction: %w", err)
	}
	if err := s.storage.IncrementStats(ctx, user, core.StatDeltas{
		Totals: core.Counters{core.StatCoinsSpent: req.Amount},
	}); err != nil {
		s.log.Warn("spend stats increment failed", "user", user, "error", err)
	}
	s.bus.Publish(ctx, core.NewCoinsSpent(user, req.Category, req.Amount, balance))
	return balance, nil
}

// ResetDailyStats clears every user's daily counter block. Run by a
// scheduler at the day boundary.
func (s *RewardService) ResetDailyStats(ctx context.Context) error {
	return s.storage.ResetCounters(ctx, core.PeriodDaily)
}

// ResetWeeklyStats clears every user's weekly counter block. Run by a
// scheduler at the week boundary.
func (s *RewardService) ResetWeeklyStats(ctx context.Context) error {
	return s.storage.ResetCounters(ctx, core.PeriodWeekly)
}
