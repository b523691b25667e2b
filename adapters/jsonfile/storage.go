package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"wellkit/core"
)

// Store persists entire state to a single JSON file.
// Suitable for demos and small deployments.
type Store struct {
	path string
	mu   sync.Mutex
	// in-memory state, flushed to disk after every mutation
	data map[core.UserID]*userState
}

type userState struct {
	Wallet       core.Wallet            `json:"wallet"`
	Stats        core.Stats             `json:"stats"`
	Transactions []core.CoinTransaction `json:"transactions"` // oldest first
}

func New(path string) (*Store, error) {
	s := &Store{path: path, data: map[core.UserID]*userState{}}
	if err := s.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var raw map[string]*userState
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		s.data[core.UserID(k)] = v
	}
	return nil
}

func (s *Store) persist() error {
	tmp := s.path + ".tmp"
	raw := make(map[string]*userState, len(s.data))
	for k, v := range s.data {
		raw[string(k)] = v
	}
	b, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) get(user core.UserID) *userState {
	if st, ok := s.data[user]; ok {
		return st
	}
	st := &userState{
		Wallet: core.Wallet{
			UserID:           user,
			Level:            1,
			StreakMilestones: map[int]time.Time{},
			Updated:          time.Now().UTC(),
		},
		Stats: core.Stats{
			Totals:   core.Counters{},
			ThisWeek: core.Counters{},
			Today:    core.Counters{},
			Updated:  time.Now().UTC(),
		},
	}
	s.data[user] = st
	return st
}

func (s *Store) CreditCoins(_ context.Context, user core.UserID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, core.ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(user)
	next, err := core.AddSafe(st.Wallet.Coins, amount)
	if err != nil {
		return 0, err
	}
	st.Wallet.Coins = next
	st.Wallet.Updated = time.Now().UTC()
	if err := s.persist(); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *Store) DebitCoins(_ context.Context, user core.UserID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, core.ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(user)
	if st.Wallet.Coins < amount {
		return 0, core.ErrInsufficientBalance
	}
	st.Wallet.Coins -= amount
	st.Wallet.Updated = time.Now().UTC()
	if err := s.persist(); err != nil {
		return 0, err
	}
	return st.Wallet.Coins, nil
}

func (s *Store) AppendTransaction(_ context.Context, txn core.CoinTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(txn.UserID)
	st.Transactions = append(st.Transactions, txn)
	return s.persist()
}

func (s *Store) Balance(_ context.Context, user core.UserID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(user).Wallet.Coins, nil
}

func (s *Store) History(_ context.Context, user core.UserID, q core.HistoryQuery) (core.HistoryPage, error) {
	q = q.Normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(user)

	matched := make([]core.CoinTransaction, 0, len(st.Transactions))
	for i := len(st.Transactions) - 1; i >= 0; i-- {
		t := st.Transactions[i]
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
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(user)

	sums := map[string]int64{}
	for _, t := range st.Transactions {
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
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(user).Wallet.Clone(), nil
}

func (s *Store) SetLevel(_ context.Context, user core.UserID, level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(user)
	st.Wallet.Level = level
	st.Wallet.Updated = time.Now().UTC()
	return s.persist()
}

func (s *Store) UnlockBadge(_ context.Context, user core.UserID, grant core.BadgeGrant) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(user)
	if st.Wallet.HasBadge(grant.Name) {
		return false, nil
	}
	st.Wallet.Badges = append(st.Wallet.Badges, grant)
	st.Wallet.Updated = time.Now().UTC()
	if err := s.persist(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) CompleteQuest(_ context.Context, user core.UserID, rec core.QuestCompletion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(user)
	st.Wallet.Quests = append(st.Wallet.Quests, rec)
	st.Wallet.Updated = time.Now().UTC()
	return s.persist()
}

func (s *Store) ClaimStreakMilestone(_ context.Context, user core.UserID, days int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(user)
	if st.Wallet.StreakMilestones == nil {
		st.Wallet.StreakMilestones = map[int]time.Time{}
	}
	if _, taken := st.Wallet.StreakMilestones[days]; taken {
		return false, nil
	}
	st.Wallet.StreakMilestones[days] = time.Now().UTC()
	if err := s.persist(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Stats(_ context.Context, user core.UserID) (core.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(user).Stats.Clone(), nil
}

func (s *Store) IncrementStats(_ context.Context, user core.UserID, deltas core.StatDeltas) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(user)
	apply := func(dst, src core.Counters) {
		for k, v := range src {
			dst[k] += v
		}
	}
	apply(st.Stats.Totals, deltas.Totals)
	apply(st.Stats.ThisWeek, deltas.ThisWeek)
	apply(st.Stats.Today, deltas.Today)
	st.Stats.Updated = time.Now().UTC()
	return s.persist()
}

func (s *Store) SetStreak(_ context.Context, user core.UserID, streak core.StreakState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(user)
	st.Stats.Streak = streak
	st.Stats.Updated = time.Now().UTC()
	return s.persist()
}

func (s *Store) ResetCounters(_ context.Context, scope core.PeriodScope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.data {
		switch scope {
		case core.PeriodDaily:
			st.Stats.Today = core.Counters{}
		case core.PeriodWeekly:
			st.Stats.ThisWeek = core.Counters{}
		}
		st.Stats.Updated = time.Now().UTC()
	}
	return s.persist()
}
