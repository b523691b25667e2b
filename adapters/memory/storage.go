package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"wellkit/core"
)

// Store is a concurrent in-memory Storage implementation. Every user gets
// one record guarded by its own mutex, so balance mutations are atomic per
// user without a global lock.
type Store struct {
	users sync.Map // map[core.UserID]*userRecord
}

type userRecord struct {
	mu     sync.Mutex
	wallet core.Wallet
	stats  core.Stats
	txns   []core.CoinTransaction // append order, oldest first
}

func New() *Store { return &Store{} }

func (s *Store) getOrCreate(user core.UserID) *userRecord {
	if v, ok := s.users.Load(user); ok {
		return v.(*userRecord)
	}
	rec := &userRecord{
		wallet: core.Wallet{
			UserID:           user,
			Level:            1,
			StreakMilestones: map[int]time.Time{},
			Updated:          time.Now().UTC(),
		},
		stats: core.Stats{
			Totals:   core.Counters{},
			ThisWeek: core.Counters{},
			Today:    core.Counters{},
			Updated:  time.Now().UTC(),
		},
	}
	actual, _ := s.users.LoadOrStore(user, rec)
	return actual.(*userRecord)
}

func (s *Store) CreditCoins(_ context.Context, user core.UserID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, core.ErrInvalidAmount
	}
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	next, err := core.AddSafe(rec.wallet.Coins, amount)
	if err != nil {
		return 0, err
	}
	rec.wallet.Coins = next
	rec.wallet.Updated = time.Now().UTC()
	return next, nil
}

func (s *Store) DebitCoins(_ context.Context, user core.UserID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, core.ErrInvalidAmount
	}
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.wallet.Coins < amount {
		return 0, core.ErrInsufficientBalance
	}
	rec.wallet.Coins -= amount
	rec.wallet.Updated = time.Now().UTC()
	return rec.wallet.Coins, nil
}

func (s *Store) AppendTransaction(_ context.Context, txn core.CoinTransaction) error {
	rec := s.getOrCreate(txn.UserID)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.txns = append(rec.txns, txn)
	return nil
}

func (s *Store) Balance(_ context.Context, user core.UserID) (int64, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.wallet.Coins, nil
}

func (s *Store) History(_ context.Context, user core.UserID, q core.HistoryQuery) (core.HistoryPage, error) {
	q = q.Normalize()
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	matched := make([]core.CoinTransaction, 0, len(rec.txns))
	for i := len(rec.txns) - 1; i >= 0; i-- {
		t := rec.txns[i]
		if q.Category != "" && t.Source.Category != q.Category {
			continue
		}
		matched = append(matched, t)
	}

	total := int64(len(matched))
	start := (q.Page - 1) * q.Limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return core.HistoryPage{
		Transactions: append([]core.CoinTransaction(nil), matched[start:end]...),
		Page:         q.Page,
		Limit:        q.Limit,
		Total:        total,
		TotalPages:   int((total + int64(q.Limit) - 1) / int64(q.Limit)),
	}, nil
}

func (s *Store) EarningsByCategory(_ context.Context, user core.UserID) ([]core.CategoryEarnings, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	sums := map[string]int64{}
	for _, t := range rec.txns {
		if t.Amount > 0 {
			sums[t.Source.Category] += t.Amount
		}
	}
	out := make([]core.CategoryEarnings, 0, len(sums))
	for category, total := range sums {
		out = append(out, core.CategoryEarnings{Category: category, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

func (s *Store) Wallet(_ context.Context, user core.UserID) (core.Wallet, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.wallet.Clone(), nil
}

func (s *Store) SetLevel(_ context.Context, user core.UserID, level int) error {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.wallet.Level = level
	rec.wallet.Updated = time.Now().UTC()
	return nil
}

func (s *Store) UnlockBadge(_ context.Context, user core.UserID, grant core.BadgeGrant) (bool, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.wallet.HasBadge(grant.Name) {
		return false, nil
	}
	rec.wallet.Badges = append(rec.wallet.Badges, grant)
	rec.wallet.Updated = time.Now().UTC()
	return true, nil
}

func (s *Store) CompleteQuest(_ context.Context, user core.UserID, completion core.QuestCompletion) error {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.wallet.Quests = append(rec.wallet.Quests, completion)
	rec.wallet.Updated = time.Now().UTC()
	return nil
}

func (s *Store) ClaimStreakMilestone(_ context.Context, user core.UserID, days int) (bool, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if _, taken := rec.wallet.StreakMilestones[days]; taken {
		return false, nil
	}
	rec.wallet.StreakMilestones[days] = time.Now().UTC()
	rec.wallet.Updated = time.Now().UTC()
	return true, nil
}

func (s *Store) Stats(_ context.Context, user core.UserID) (core.Stats, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.stats.Clone(), nil
}

func (s *Store) IncrementStats(_ context.Context, user core.UserID, deltas core.StatDeltas) error {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	applyDeltas(rec.stats.Totals, deltas.Totals)
	applyDeltas(rec.stats.ThisWeek, deltas.ThisWeek)
	applyDeltas(rec.stats.Today, deltas.Today)
	rec.stats.Updated = time.Now().UTC()
	return nil
}

func applyDeltas(dst, src core.Counters) {
	for k, v := range src {
		dst[k] += v
	}
}

func (s *Store) SetStreak(_ context.Context, user core.UserID, streak core.StreakState) error {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.stats.Streak = streak
	rec.stats.Updated = time.Now().UTC()
	return nil
}

func (s *Store) ResetCounters(_ context.Context, scope core.PeriodScope) error {
	s.users.Range(func(_, v any) bool {
		rec := v.(*userRecord)
		rec.mu.Lock()
		switch scope {
		case core.PeriodDaily:
			rec.stats.Today = core.Counters{}
		case core.PeriodWeekly:
			rec.stats.ThisWeek = core.Counters{}
		}
		rec.stats.Updated = time.Now().UTC()
		rec.mu.Unlock()
		return true
	})
	return nil
}
