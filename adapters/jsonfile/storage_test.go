package jsonfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"wellkit/core"
	"wellkit/engine"
)

var _ engine.Storage = (*Store)(nil)

func TestStorePersistAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	store, err := New(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	balance, err := store.CreditCoins(context.Background(), "alice", 50)
	if err != nil || balance != 50 {
		t.Fatalf("credit: balance=%d err=%v", balance, err)
	}
	err = store.AppendTransaction(context.Background(), core.CoinTransaction{
		UserID:       "alice",
		Amount:       50,
		BalanceAfter: 50,
		Type:         core.TxnActivityReward,
		Source:       core.TransactionSource{Category: "workout"},
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("append transaction: %v", err)
	}
	if _, err := store.UnlockBadge(context.Background(), "alice", core.BadgeGrant{Name: "first_step", UnlockedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("unlock badge: %v", err)
	}
	if err := store.SetLevel(context.Background(), "alice", 2); err != nil {
		t.Fatalf("set level: %v", err)
	}
	err = store.IncrementStats(context.Background(), "alice", core.StatDeltas{
		Totals: core.Counters{core.StatWorkoutLogs: 1},
	})
	if err != nil {
		t.Fatalf("increment stats: %v", err)
	}

	// ensure file written
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file at %s", path)
	}

	// reload
	reloaded, err := New(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	if balance, _ := reloaded.Balance(context.Background(), "alice"); balance != 50 {
		t.Fatalf("expected balance 50, got %d", balance)
	}
	wallet, err := reloaded.Wallet(context.Background(), "alice")
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if !wallet.HasBadge("first_step") {
		t.Fatal("expected badge first_step")
	}
	if wallet.Level != 2 {
		t.Fatalf("expected level 2, got %d", wallet.Level)
	}
	stats, _ := reloaded.Stats(context.Background(), "alice")
	if stats.Totals[core.StatWorkoutLogs] != 1 {
		t.Fatalf("expected workoutLogs 1, got %d", stats.Totals[core.StatWorkoutLogs])
	}
	page, _ := reloaded.History(context.Background(), "alice", core.HistoryQuery{})
	if len(page.Transactions) != 1 || page.Transactions[0].Amount != 50 {
		t.Fatalf("history = %+v", page)
	}
}

func TestStoreDebitInsufficient(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.CreditCoins(context.Background(), "bob", 10); err != nil {
		t.Fatal(err)
	}
	if _, err := store.DebitCoins(context.Background(), "bob", 25); !errors.Is(err, core.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	if balance, _ := store.Balance(context.Background(), "bob"); balance != 10 {
		t.Fatalf("balance = %d, want 10", balance)
	}
}

func TestStoreMilestoneClaimSurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store, err := New(path)
	if err != nil {
		t.Fatal(err)
	}

	claimed, err := store.ClaimStreakMilestone(context.Background(), "carol", 7)
	if err != nil || !claimed {
		t.Fatalf("first claim: %v %v", claimed, err)
	}

	reloaded, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	claimed, err = reloaded.ClaimStreakMilestone(context.Background(), "carol", 7)
	if err != nil || claimed {
		t.Fatalf("claim after reload: %v %v", claimed, err)
	}
}
