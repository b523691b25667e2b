package sqlx_test

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	libsqlx "github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	storage "wellkit/adapters/sqlx"
	"wellkit/core"
	"wellkit/engine"
)

var _ engine.Storage = (*storage.Store)(nil)

func newMockStore(t *testing.T) (*storage.Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	xdb := storage.NewWithDB(libsqlx.NewDb(db, "postgres"), storage.DriverPostgres)
	cleanup := func() {
		_ = db.Close()
	}
	return xdb, mock, cleanup
}

func newMockMySQLStore(t *testing.T) (*storage.Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	xdb := storage.NewWithDB(libsqlx.NewDb(db, "mysql"), storage.DriverMySQL)
	cleanup := func() {
		_ = db.Close()
	}
	return xdb, mock, cleanup
}

func TestSQLMock_CreditCoins_PostgresReturning(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	ctx := context.Background()
	user := core.UserID("u1")

	// One statement: the upsert itself yields the post-increment balance.
	mock.ExpectQuery(`(?s)INSERT INTO wallets.*RETURNING coins`).
		WithArgs(user, int64(25), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"coins"}).AddRow(25))

	balance, err := store.CreditCoins(ctx, user, 25)
	require.NoError(t, err)
	require.Equal(t, int64(25), balance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_CreditCoins_MySQLReadBack(t *testing.T) {
	store, mock, cleanup := newMockMySQLStore(t)
	defer cleanup()

	ctx := context.Background()
	user := core.UserID("u1")

	mock.ExpectExec(`INSERT INTO wallets`).
		WithArgs(user, int64(25), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`SELECT coins FROM wallets`).
		WithArgs(user).
		WillReturnRows(sqlmock.NewRows([]string{"coins"}).AddRow(25))

	balance, err := store.CreditCoins(ctx, user, 25)
	require.NoError(t, err)
	require.Equal(t, int64(25), balance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_CreditCoins_RejectsNonPositive(t *testing.T) {
	store, _, cleanup := newMockStore(t)
	defer cleanup()

	_, err := store.CreditCoins(context.Background(), "u1", 0)
	require.ErrorIs(t, err, core.ErrInvalidAmount)
}

func TestSQLMock_DebitCoins_Conditional(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	ctx := context.Background()
	user := core.UserID("u1")

	mock.ExpectQuery(`UPDATE wallets SET coins = coins - .+RETURNING coins`).
		WithArgs(int64(40), sqlmock.AnyArg(), user, int64(40)).
		WillReturnRows(sqlmock.NewRows([]string{"coins"}).AddRow(60))

	balance, err := store.DebitCoins(ctx, user, 40)
	require.NoError(t, err)
	require.Equal(t, int64(60), balance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_DebitCoins_Insufficient(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	// The conditional update matches no row, so RETURNING yields none.
	mock.ExpectQuery(`UPDATE wallets SET coins = coins -`).
		WithArgs(int64(40), sqlmock.AnyArg(), core.UserID("u1"), int64(40)).
		WillReturnRows(sqlmock.NewRows([]string{"coins"}))

	_, err := store.DebitCoins(context.Background(), "u1", 40)
	require.ErrorIs(t, err, core.ErrInsufficientBalance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_DebitCoins_MySQLInsufficient(t *testing.T) {
	store, mock, cleanup := newMockMySQLStore(t)
	defer cleanup()

	mock.ExpectExec(`UPDATE wallets SET coins = coins -`).
		WithArgs(int64(40), sqlmock.AnyArg(), core.UserID("u1"), int64(40)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := store.DebitCoins(context.Background(), "u1", 40)
	require.ErrorIs(t, err, core.ErrInsufficientBalance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_AppendTransaction(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	txn := core.CoinTransaction{
		UserID:       "u1",
		Amount:       20,
		BalanceAfter: 20,
		Type:         core.TxnActivityReward,
		Source:       core.TransactionSource{Category: "mood", Description: "Mood logged"},
		Metadata:     map[string]any{"multiplier": 1.0},
		CreatedAt:    time.Now().UTC(),
	}

	mock.ExpectExec(`INSERT INTO coin_transactions`).
		WithArgs(txn.UserID, txn.Amount, txn.BalanceAfter, txn.Type,
			"mood", "", "", "Mood logged", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.AppendTransaction(context.Background(), txn))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_History(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	user := core.UserID("u1")

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM coin_transactions`).
		WithArgs(user).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`SELECT user_id, amount, balance_after`).
		WithArgs(user, 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "amount", "balance_after", "type", "category", "ref_id", "ref_model", "description", "metadata", "created_at"}).
			AddRow("u1", 30, 50, "activity_reward", "workout", "", "", "", []byte(`{}`), time.Now()).
			AddRow("u1", 20, 20, "activity_reward", "mood", "", "", "", []byte(`{}`), time.Now()))

	page, err := store.History(context.Background(), user, core.HistoryQuery{})
	require.NoError(t, err)
	require.Equal(t, int64(2), page.Total)
	require.Equal(t, 1, page.TotalPages)
	require.Len(t, page.Transactions, 2)
	require.Equal(t, int64(30), page.Transactions[0].Amount)
	require.Equal(t, core.TxnActivityReward, page.Transactions[0].Type)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_UnlockBadge(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	user := core.UserID("u1")
	grant := core.BadgeGrant{Name: "walker", Tier: "bronze", UnlockedAt: time.Now().UTC()}

	mock.ExpectExec(`INSERT INTO user_badges`).
		WithArgs(user, grant.Name, grant.DisplayName, grant.Icon, grant.Tier, grant.UnlockedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	added, err := store.UnlockBadge(context.Background(), user, grant)
	require.NoError(t, err)
	require.True(t, added)

	// Conflict path: zero rows affected means already unlocked.
	mock.ExpectExec(`INSERT INTO user_badges`).
		WithArgs(user, grant.Name, grant.DisplayName, grant.Icon, grant.Tier, grant.UnlockedAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	added, err = store.UnlockBadge(context.Background(), user, grant)
	require.NoError(t, err)
	require.False(t, added)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_ClaimStreakMilestone(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	user := core.UserID("u1")

	mock.ExpectExec(`INSERT INTO streak_milestones`).
		WithArgs(user, 7, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	claimed, err := store.ClaimStreakMilestone(context.Background(), user, 7)
	require.NoError(t, err)
	require.True(t, claimed)

	mock.ExpectExec(`INSERT INTO streak_milestones`).
		WithArgs(user, 7, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	claimed, err = store.ClaimStreakMilestone(context.Background(), user, 7)
	require.NoError(t, err)
	require.False(t, claimed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Stats(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	user := core.UserID("u1")

	mock.ExpectQuery(`SELECT scope, stat_key, value FROM user_stats`).
		WithArgs(user).
		WillReturnRows(sqlmock.NewRows([]string{"scope", "stat_key", "value"}).
			AddRow("totals", "moodLogs", 4).
			AddRow("week", "moodLogs", 2).
			AddRow("today", "coinsEarned", 20).
			AddRow("totals", "bogusKey", 9))
	mock.ExpectQuery(`SELECT current, longest, last_activity_date FROM streaks`).
		WithArgs(user).
		WillReturnRows(sqlmock.NewRows([]string{"current", "longest", "last_activity_date"}).
			AddRow(3, 8, time.Now()))

	stats, err := store.Stats(context.Background(), user)
	require.NoError(t, err)
	require.Equal(t, int64(4), stats.Totals[core.StatMoodLogs])
	require.Equal(t, int64(2), stats.ThisWeek[core.StatMoodLogs])
	require.Equal(t, int64(20), stats.Today[core.StatCoinsEarned])
	require.Equal(t, 3, stats.Streak.Current)
	require.NotContains(t, stats.Totals, core.StatKey("bogusKey"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_ResetCounters(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec(`DELETE FROM user_stats WHERE scope =`).
		WithArgs("today").
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, store.ResetCounters(context.Background(), core.PeriodDaily))
	require.NoError(t, mock.ExpectationsWereMet())
}
