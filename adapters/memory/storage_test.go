package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"wellkit/core"
	"wellkit/engine"
)

var _ engine.Storage = (*Store)(nil)

func TestCreditDebit(t *testing.T) {
	s := New()
	ctx := context.Background()

	balance, err := s.CreditCoins(ctx, "u", 50)
	if err != nil || balance != 50 {
		t.Fatalf("credit: got %v %v", balance, err)
	}
	balance, err = s.DebitCoins(ctx, "u", 20)
	if err != nil || balance != 30 {
		t.Fatalf("debit: got %v %v", balance, err)
	}
	if _, err := s.DebitCoins(ctx, "u", 100); !errors.Is(err, core.ErrInsufficientBalance) {
		t.Fatalf("overdraft err = %v", err)
	}
	if balance, _ := s.Balance(ctx, "u"); balance != 30 {
		t.Fatalf("balance after failed debit = %d", balance)
	}
}

func TestCreditConcurrent(t *testing.T) {
	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.CreditCoins(ctx, "u", 1); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if balance, _ := s.Balance(ctx, "u"); balance != 100 {
		t.Fatalf("balance = %d, want 100", balance)
	}
}

func TestHistoryPagination(t *testing.T) {
	s := New()
	ctx := context.Background()

	for i := 1; i <= 25; i++ {
		err := s.AppendTransaction(ctx, core.CoinTransaction{
			UserID:       "u",
			Amount:       int64(i),
			BalanceAfter: int64(i),
			Type:         core.TxnActivityReward,
			Source:       core.TransactionSource{Category: "mood"},
			CreatedAt:    time.Now(),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	page, err := s.History(ctx, "u", core.HistoryQuery{Page: 1, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Transactions) != 10 || page.Total != 25 || page.TotalPages != 3 {
		t.Fatalf("page = %d entries, total %d, pages %d", len(page.Transactions), page.Total, page.TotalPages)
	}
	// Newest first.
	if page.Transactions[0].Amount != 25 {
		t.Fatalf("first entry amount = %d, want 25", page.Transactions[0].Amount)
	}

	last, _ := s.History(ctx, "u", core.HistoryQuery{Page: 3, Limit: 10})
	if len(last.Transactions) != 5 {
		t.Fatalf("last page has %d entries, want 5", len(last.Transactions))
	}
}

func TestHistoryCategoryFilter(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, category := range []string{"mood", "workout", "mood"} {
		_ = s.AppendTransaction(ctx, core.CoinTransaction{
			UserID: "u",
			Amount: 5,
			Type:   core.TxnActivityReward,
			Source: core.TransactionSource{Category: category},
		})
	}

	page, err := s.History(ctx, "u", core.HistoryQuery{Page: 1, Limit: 10, Category: "mood"})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Transactions) != 2 || page.Total != 2 {
		t.Fatalf("filtered page = %+v", page)
	}
}

func TestEarningsByCategory(t *testing.T) {
	s := New()
	ctx := context.Background()

	entries := []struct {
		category string
		amount   int64
	}{
		{"mood", 20}, {"workout", 50}, {"mood", 10}, {"spend", -15},
	}
	for _, e := range entries {
		_ = s.AppendTransaction(ctx, core.CoinTransaction{
			UserID: "u",
			Amount: e.amount,
			Source: core.TransactionSource{Category: e.category},
		})
	}

	earnings, err := s.EarningsByCategory(ctx, "u")
	if err != nil {
		t.Fatal(err)
	}
	if len(earnings) != 2 {
		t.Fatalf("earnings = %+v", earnings)
	}
	if earnings[0].Category != "workout" || earnings[0].Total != 50 {
		t.Errorf("top category = %+v", earnings[0])
	}
	if earnings[1].Category != "mood" || earnings[1].Total != 30 {
		t.Errorf("second category = %+v", earnings[1])
	}
}

func TestUnlockBadgeIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	added, err := s.UnlockBadge(ctx, "u", core.BadgeGrant{Name: "walker", UnlockedAt: time.Now()})
	if err != nil || !added {
		t.Fatalf("first unlock: %v %v", added, err)
	}
	added, err = s.UnlockBadge(ctx, "u", core.BadgeGrant{Name: "walker", UnlockedAt: time.Now()})
	if err != nil || added {
		t.Fatalf("second unlock: %v %v", added, err)
	}
	w, _ := s.Wallet(ctx, "u")
	if len(w.Badges) != 1 {
		t.Fatalf("wallet has %d badges", len(w.Badges))
	}
}

func TestClaimStreakMilestoneOnce(t *testing.T) {
	s := New()
	ctx := context.Background()

	claimed, err := s.ClaimStreakMilestone(ctx, "u", 7)
	if err != nil || !claimed {
		t.Fatalf("first claim: %v %v", claimed, err)
	}
	claimed, err = s.ClaimStreakMilestone(ctx, "u", 7)
	if err != nil || claimed {
		t.Fatalf("second claim: %v %v", claimed, err)
	}
}

func TestStatsAndResets(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.IncrementStats(ctx, "u", core.StatDeltas{
		Totals:   core.Counters{core.StatMoodLogs: 1, core.StatSteps: 2500},
		ThisWeek: core.Counters{core.StatMoodLogs: 1},
		Today:    core.Counters{core.StatCoinsEarned: 20},
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.ResetCounters(ctx, core.PeriodDaily); err != nil {
		t.Fatal(err)
	}
	stats, _ := s.Stats(ctx, "u")
	if stats.Today[core.StatCoinsEarned] != 0 {
		t.Error("daily counters survived reset")
	}
	if stats.Totals[core.StatSteps] != 2500 || stats.ThisWeek[core.StatMoodLogs] != 1 {
		t.Errorf("unrelated counters changed: %+v", stats)
	}

	if err := s.ResetCounters(ctx, core.PeriodWeekly); err != nil {
		t.Fatal(err)
	}
	stats, _ = s.Stats(ctx, "u")
	if stats.ThisWeek[core.StatMoodLogs] != 0 {
		t.Error("weekly counters survived reset")
	}
}

func TestWalletCloneIsolated(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, _ = s.UnlockBadge(ctx, "u", core.BadgeGrant{Name: "walker"})
	w, _ := s.Wallet(ctx, "u")
	w.Badges[0].Name = "mutated"

	again, _ := s.Wallet(ctx, "u")
	if again.Badges[0].Name != "walker" {
		t.Fatal("wallet snapshot shares memory with the store")
	}
}

func TestSetStreak(t *testing.T) {
	s := New()
	ctx := context.Background()

	want := core.StreakState{Current: 4, Longest: 9, LastActivityDate: time.Now()}
	if err := s.SetStreak(ctx, "u", want); err != nil {
		t.Fatal(err)
	}
	stats, _ := s.Stats(ctx, "u")
	if stats.Streak.Current != 4 || stats.Streak.Longest != 9 {
		t.Fatalf("streak = %+v", stats.Streak)
	}
}
