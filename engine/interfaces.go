package engine

import (
	"context"

	"wellkit/core"
)

// Storage abstracts persistence for wallets, the coin ledger, and stats.
//
// CreditCoins and DebitCoins must mutate the balance with a single atomic
// operation at the storage layer — never a read-modify-write pair — because
// concurrent requests may target the same user. DebitCoins additionally folds
// the balance check into that same atomic operation and returns
// core.ErrInsufficientBalance without mutating anything when it fails.
type Storage interface {
	// Ledger.
	CreditCoins(ctx context.Context, user core.UserID, amount int64) (balanceAfter int64, err error)
	DebitCoins(ctx context.Context, user core.UserID, amount int64) (balanceAfter int64, err error)
	AppendTransaction(ctx context.Context, txn core.CoinTransaction) error
	Balance(ctx context.Context, user core.UserID) (int64, error)
	History(ctx context.Context, user core.UserID, q core.HistoryQuery) (core.HistoryPage, error)
	EarningsByCategory(ctx context.Context, user core.UserID) ([]core.CategoryEarnings, error)

	// Wallet and progression. UnlockBadge and ClaimStreakMilestone are
	// idempotent: they report false when the badge/milestone was already held.
	Wallet(ctx context.Context, user core.UserID) (core.Wallet, error)
	SetLevel(ctx context.Context, user core.UserID, level int) error
	UnlockBadge(ctx context.Context, user core.UserID, grant core.BadgeGrant) (bool, error)
	CompleteQuest(ctx context.Context, user core.UserID, rec core.QuestCompletion) error
	ClaimStreakMilestone(ctx context.Context, user core.UserID, days int) (bool, error)

	// Stats. Counter increments are individually atomic; the pipeline as a
	// whole is intentionally not transactional.
	Stats(ctx context.Context, user core.UserID) (core.Stats, error)
	IncrementStats(ctx context.Context, user core.UserID, deltas core.StatDeltas) error
	SetStreak(ctx context.Context, user core.UserID, s core.StreakState) error

	// ResetCounters clears the daily or weekly counter block for every user.
	// Invoked by an external periodic job, never by the engine itself.
	ResetCounters(ctx context.Context, scope core.PeriodScope) error
}
