package sqlx

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"wellkit/core"
)

// Driver identifies the SQL dialect in use.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

// Config holds SQL storage configuration
type Config struct {
	Driver          Driver        `json:"driver"`
	DSN             string        `json:"dsn"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
}

// DefaultConfig returns sensible defaults for the given driver
func DefaultConfig(driver Driver) Config {
	return Config{
		Driver:          driver,
		DSN:             "",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// Store implements the engine.Storage interface on Postgres or MySQL.
// Balance mutations use single conditional statements, so concurrent
// requests against the same wallet serialize at the database.
type Store struct {
	db     *sqlx.DB
	driver Driver
}

// New opens a database connection and verifies it
func New(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("sql storage requires a DSN")
	}
	db, err := sqlx.Open(string(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &Store{db: db, driver: cfg.Driver}, nil
}

// NewWithDB creates a Store using an existing connection (useful for testing)
func NewWithDB(db *sqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// upsertWallet is the dialect-specific "insert or add to balance" statement.
func (s *Store) upsertWallet() string {
	if s.driver == DriverMySQL {
		return `INSERT INTO wallets (user_id, coins, level, updated_at)
			VALUES (?, ?, 1, ?)
			ON DUPLICATE KEY UPDATE coins = coins + VALUES(coins), updated_at = VALUES(updated_at)`
	}
	return `INSERT INTO wallets (user_id, coins, level, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT (user_id) DO UPDATE SET coins = wallets.coins + EXCLUDED.coins, updated_at = EXCLUDED.updated_at`
}

// upsertStat is the dialect-specific counter increment statement.
func (s *Store) upsertStat() string {
	if s.driver == DriverMySQL {
		return `INSERT INTO user_stats (user_id, scope, stat_key, value)
			VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE value = value + VALUES(value)`
	}
	return `INSERT INTO user_stats (user_id, scope, stat_key, value)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, scope, stat_key) DO UPDATE SET value = user_stats.value + EXCLUDED.value`
}

// CreditCoins adds coins with a single atomic upsert. On Postgres the same
// statement returns the post-increment balance. MySQL has no RETURNING, so it
// reads the balance back afterwards; under concurrent credits for one user
// that read can observe a later balance than this entry's own increment.
func (s *Store) CreditCoins(ctx context.Context, user core.UserID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, core.ErrInvalidAmount
	}
	if s.driver == DriverPostgres {
		query := s.db.Rebind(s.upsertWallet() + ` RETURNING coins`)
		var balance int64
		if err := s.db.GetContext(ctx, &balance, query, user, amount, time.Now().UTC()); err != nil {
			return 0, fmt.Errorf("failed to credit coins: %w", err)
		}
		return balance, nil
	}
	query := s.db.Rebind(s.upsertWallet())
	if _, err := s.db.ExecContext(ctx, query, user, amount, time.Now().UTC()); err != nil {
		return 0, fmt.Errorf("failed to credit coins: %w", err)
	}
	return s.Balance(ctx, user)
}

// DebitCoins folds the balance check into one conditional UPDATE. Postgres
// returns the new balance from the update row itself; MySQL reads it back,
// with the same concurrent-write window as CreditCoins.
func (s *Store) DebitCoins(ctx context.Context, user core.UserID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, core.ErrInvalidAmount
	}
	now := time.Now().UTC()
	if s.driver == DriverPostgres {
		query := s.db.Rebind(`UPDATE wallets SET coins = coins - ?, updated_at = ? WHERE user_id = ? AND coins >= ? RETURNING coins`)
		var balance int64
		err := s.db.GetContext(ctx, &balance, query, amount, now, user, amount)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, core.ErrInsufficientBalance
		}
		if err != nil {
			return 0, fmt.Errorf("failed to debit coins: %w", err)
		}
		return balance, nil
	}
	query := s.db.Rebind(`UPDATE wallets SET coins = coins - ?, updated_at = ? WHERE user_id = ? AND coins >= ?`)
	res, err := s.db.ExecContext(ctx, query, amount, now, user, amount)
	if err != nil {
		return 0, fmt.Errorf("failed to debit coins: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read debit result: %w", err)
	}
	if affected == 0 {
		return 0, core.ErrInsufficientBalance
	}
	return s.Balance(ctx, user)
}

// AppendTransaction inserts one immutable ledger row
func (s *Store) AppendTransaction(ctx context.Context, txn core.CoinTransaction) error {
	metadata := []byte("{}")
	if txn.Metadata != nil {
		data, err := json.Marshal(txn.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode transaction metadata: %w", err)
		}
		metadata = data
	}
	query := s.db.Rebind(`INSERT INTO coin_transactions
		(user_id, amount, balance_after, type, category, ref_id, ref_model, description, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		txn.UserID, txn.Amount, txn.BalanceAfter, txn.Type,
		txn.Source.Category, txn.Source.RefID, txn.Source.RefModel, txn.Source.Description,
		metadata, txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

// Balance reads the wallet balance, zero for unknown users
func (s *Store) Balance(ctx context.Context, user core.UserID) (int64, error) {
	var balance int64
	query := s.db.Rebind(`SELECT coins FROM wallets WHERE user_id = ?`)
	err := s.db.GetContext(ctx, &balance, query, user)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return balance, nil
}

type txnRow struct {
	UserID       string    `db:"user_id"`
	Amount       int64     `db:"amount"`
	BalanceAfter int64     `db:"balance_after"`
	Type         string    `db:"type"`
	Category     string    `db:"category"`
	RefID        string    `db:"ref_id"`
	RefModel     string    `db:"ref_model"`
	Description  string    `db:"description"`
	Metadata     []byte    `db:"metadata"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r txnRow) toCore() core.CoinTransaction {
	txn := core.CoinTransaction{
		UserID:       core.UserID(r.UserID),
		Amount:       r.Amount,
		BalanceAfter: r.BalanceAfter,
		Type:         core.TransactionType(r.Type),
		Source: core.TransactionSource{
			Category:    r.Category,
			RefID:       r.RefID,
			RefModel:    r.RefModel,
			Description: r.Description,
		},
		CreatedAt: r.CreatedAt,
	}
	if len(r.Metadata) > 0 {
		_ = json.Unmarshal(r.Metadata, &txn.Metadata)
	}
	return txn
}

// History pages the ledger newest first
func (s *Store) History(ctx context.Context, user core.UserID, q core.HistoryQuery) (core.HistoryPage, error) {
	q = q.Normalize()

	countQuery := `SELECT COUNT(*) FROM coin_transactions WHERE user_id = ?`
	listQuery := `SELECT user_id, amount, balance_after, type, category, ref_id, ref_model, description, metadata, created_at
		FROM coin_transactions WHERE user_id = ?`
	args := []any{user}
	if q.Category != "" {
		countQuery += ` AND category = ?`
		listQuery += ` AND category = ?`
		args = append(args, q.Category)
	}
	listQuery += ` ORDER BY id DESC LIMIT ? OFFSET ?`

	var total int64
	if err := s.db.GetContext(ctx, &total, s.db.Rebind(countQuery), args...); err != nil {
		return core.HistoryPage{}, fmt.Errorf("failed to count history: %w", err)
	}

	listArgs := append(append([]any{}, args...), q.Limit, (q.Page-1)*q.Limit)
	var rows []txnRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(listQuery), listArgs...); err != nil {
		return core.HistoryPage{}, fmt.Errorf("failed to read history: %w", err)
	}

	txns := make([]core.CoinTransaction, 0, len(rows))
	for _, r := range rows {
		txns = append(txns, r.toCore())
	}
	return core.HistoryPage{
		Transactions: txns,
		Page:         q.Page,
		Limit:        q.Limit,
		Total:        total,
		TotalPages:   int((total + int64(q.Limit) - 1) / int64(q.Limit)),
	}, nil
}

// EarningsByCategory sums positive ledger rows per category
func (s *Store) EarningsByCategory(ctx context.Context, user core.UserID) ([]core.CategoryEarnings, error) {
	query := s.db.Rebind(`SELECT category, SUM(amount) AS total FROM coin_transactions
		WHERE user_id = ? AND amount > 0 GROUP BY category ORDER BY total DESC`)
	var rows []struct {
		Category string `db:"category"`
		Total    int64  `db:"total"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, user); err != nil {
		return nil, fmt.Errorf("failed to read earnings: %w", err)
	}
	out := make([]core.CategoryEarnings, 0, len(rows))
	for _, r := range rows {
		out = append(out, core.CategoryEarnings{Category: r.Category, Total: r.Total})
	}
	return out, nil
}

// Wallet rebuilds the snapshot from the wallet, badge, quest, and milestone tables
func (s *Store) Wallet(ctx context.Context, user core.UserID) (core.Wallet, error) {
	wallet := core.Wallet{
		UserID:           user,
		Level:            1,
		StreakMilestones: map[int]time.Time{},
		Updated:          time.Now().UTC(),
	}

	var row struct {
		Coins     int64     `db:"coins"`
		Level     int       `db:"level"`
		UpdatedAt time.Time `db:"updated_at"`
	}
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT coins, level, updated_at FROM wallets WHERE user_id = ?`), user)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return core.Wallet{}, fmt.Errorf("failed to read wallet: %w", err)
	}
	if err == nil {
		wallet.Coins = row.Coins
		wallet.Updated = row.UpdatedAt
		if row.Level > 0 {
			wallet.Level = row.Level
		}
	}

	var badges []struct {
		Name        string    `db:"name"`
		DisplayName string    `db:"display_name"`
		Icon        string    `db:"icon"`
		Tier        string    `db:"tier"`
		UnlockedAt  time.Time `db:"unlocked_at"`
	}
	query := s.db.Rebind(`SELECT name, display_name, icon, tier, unlocked_at FROM user_badges WHERE user_id = ? ORDER BY unlocked_at`)
	if err := s.db.SelectContext(ctx, &badges, query, user); err != nil {
		return core.Wallet{}, fmt.Errorf("failed to read badges: %w", err)
	}
	for _, b := range badges {
		wallet.Badges = append(wallet.Badges, core.BadgeGrant{
			Name:        b.Name,
			DisplayName: b.DisplayName,
			Icon:        b.Icon,
			Tier:        b.Tier,
			UnlockedAt:  b.UnlockedAt,
		})
	}

	var quests []struct {
		QuestID      string    `db:"quest_id"`
		CoinsAwarded int64     `db:"coins_awarded"`
		CompletedAt  time.Time `db:"completed_at"`
	}
	query = s.db.Rebind(`SELECT quest_id, coins_awarded, completed_at FROM quest_completions WHERE user_id = ? ORDER BY completed_at`)
	if err := s.db.SelectContext(ctx, &quests, query, user); err != nil {
		return core.Wallet{}, fmt.Errorf("failed to read quests: %w", err)
	}
	for _, q := range quests {
		wallet.Quests = append(wallet.Quests, core.QuestCompletion{
			QuestID:      q.QuestID,
			CoinsAwarded: q.CoinsAwarded,
			CompletedAt:  q.CompletedAt,
		})
	}

	var milestones []struct {
		Days      int       `db:"days"`
		ClaimedAt time.Time `db:"claimed_at"`
	}
	query = s.db.Rebind(`SELECT days, claimed_at FROM streak_milestones WHERE user_id = ?`)
	if err := s.db.SelectContext(ctx, &milestones, query, user); err != nil {
		return core.Wallet{}, fmt.Errorf("failed to read streak milestones: %w", err)
	}
	for _, m := range milestones {
		wallet.StreakMilestones[m.Days] = m.ClaimedAt
	}

	return wallet, nil
}

// SetLevel upserts the wallet row with the new level
func (s *Store) SetLevel(ctx context.Context, user core.UserID, level int) error {
	var query string
	if s.driver == DriverMySQL {
		query = `INSERT INTO wallets (user_id, coins, level, updated_at)
			VALUES (?, 0, ?, ?)
			ON DUPLICATE KEY UPDATE level = VALUES(level), updated_at = VALUES(updated_at)`
	} else {
		query = `INSERT INTO wallets (user_id, coins, level, updated_at)
			VALUES (?, 0, ?, ?)
			ON CONFLICT (user_id) DO UPDATE SET level = EXCLUDED.level, updated_at = EXCLUDED.updated_at`
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), user, level, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to set level: %w", err)
	}
	return nil
}

// UnlockBadge inserts the grant; the primary key makes repeats a no-op
func (s *Store) UnlockBadge(ctx context.Context, user core.UserID, grant core.BadgeGrant) (bool, error) {
	var query string
	if s.driver == DriverMySQL {
		query = `INSERT IGNORE INTO user_badges (user_id, name, display_name, icon, tier, unlocked_at)
			VALUES (?, ?, ?, ?, ?, ?)`
	} else {
		query = `INSERT INTO user_badges (user_id, name, display_name, icon, tier, unlocked_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (user_id, name) DO NOTHING`
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query),
		user, grant.Name, grant.DisplayName, grant.Icon, grant.Tier, grant.UnlockedAt)
	if err != nil {
		return false, fmt.Errorf("failed to unlock badge: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read unlock result: %w", err)
	}
	return affected > 0, nil
}

// CompleteQuest appends a completion record
func (s *Store) CompleteQuest(ctx context.Context, user core.UserID, rec core.QuestCompletion) error {
	query := s.db.Rebind(`INSERT INTO quest_completions (user_id, quest_id, coins_awarded, completed_at)
		VALUES (?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, query, user, rec.QuestID, rec.CoinsAwarded, rec.CompletedAt); err != nil {
		return fmt.Errorf("failed to record quest completion: %w", err)
	}
	return nil
}

// ClaimStreakMilestone inserts the claim; conflicts mean it was taken
func (s *Store) ClaimStreakMilestone(ctx context.Context, user core.UserID, days int) (bool, error) {
	var query string
	if s.driver == DriverMySQL {
		query = `INSERT IGNORE INTO streak_milestones (user_id, days, claimed_at) VALUES (?, ?, ?)`
	} else {
		query = `INSERT INTO streak_milestones (user_id, days, claimed_at)
			VALUES (?, ?, ?)
			ON CONFLICT (user_id, days) DO NOTHING`
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), user, days, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to claim streak milestone: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}
	return affected > 0, nil
}

// Stats rebuilds the snapshot from the stats and streak tables
func (s *Store) Stats(ctx context.Context, user core.UserID) (core.Stats, error) {
	stats := core.Stats{
		Totals:   core.Counters{},
		ThisWeek: core.Counters{},
		Today:    core.Counters{},
		Updated:  time.Now().UTC(),
	}

	var rows []struct {
		Scope   string `db:"scope"`
		StatKey string `db:"stat_key"`
		Value   int64  `db:"value"`
	}
	query := s.db.Rebind(`SELECT scope, stat_key, value FROM user_stats WHERE user_id = ?`)
	if err := s.db.SelectContext(ctx, &rows, query, user); err != nil {
		return core.Stats{}, fmt.Errorf("failed to read stats: %w", err)
	}
	for _, r := range rows {
		key := core.StatKey(r.StatKey)
		if !core.ValidStatKey(key) {
			continue
		}
		switch r.Scope {
		case "totals":
			stats.Totals[key] = r.Value
		case "week":
			stats.ThisWeek[key] = r.Value
		case "today":
			stats.Today[key] = r.Value
		}
	}

	var streak struct {
		Current          int       `db:"current"`
		Longest          int       `db:"longest"`
		LastActivityDate time.Time `db:"last_activity_date"`
	}
	err := s.db.GetContext(ctx, &streak, s.db.Rebind(`SELECT current, longest, last_activity_date FROM streaks WHERE user_id = ?`), user)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return core.Stats{}, fmt.Errorf("failed to read streak: %w", err)
	}
	if err == nil {
		stats.Streak = core.StreakState{
			Current:          streak.Current,
			Longest:          streak.Longest,
			LastActivityDate: streak.LastActivityDate,
		}
	}

	return stats, nil
}

// IncrementStats upserts the counters one statement per key
func (s *Store) IncrementStats(ctx context.Context, user core.UserID, deltas core.StatDeltas) error {
	query := s.db.Rebind(s.upsertStat())
	blocks := []struct {
		scope string
		src   core.Counters
	}{
		{"totals", deltas.Totals},
		{"week", deltas.ThisWeek},
		{"today", deltas.Today},
	}
	for _, block := range blocks {
		for key, delta := range block.src {
			if delta == 0 {
				continue
			}
			if _, err := s.db.ExecContext(ctx, query, user, block.scope, key, delta); err != nil {
				return fmt.Errorf("failed to increment %s.%s: %w", block.scope, key, err)
			}
		}
	}
	return nil
}

// SetStreak upserts the streak row
func (s *Store) SetStreak(ctx context.Context, user core.UserID, streak core.StreakState) error {
	var query string
	if s.driver == DriverMySQL {
		query = `INSERT INTO streaks (user_id, current, longest, last_activity_date)
			VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE current = VALUES(current), longest = VALUES(longest), last_activity_date = VALUES(last_activity_date)`
	} else {
		query = `INSERT INTO streaks (user_id, current, longest, last_activity_date)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (user_id) DO UPDATE SET current = EXCLUDED.current, longest = EXCLUDED.longest, last_activity_date = EXCLUDED.last_activity_date`
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), user, streak.Current, streak.Longest, streak.LastActivityDate); err != nil {
		return fmt.Errorf("failed to set streak: %w", err)
	}
	return nil
}

// ResetCounters clears one scope for every user
func (s *Store) ResetCounters(ctx context.Context, scope core.PeriodScope) error {
	block := "today"
	if scope == core.PeriodWeekly {
		block = "week"
	}
	query := s.db.Rebind(`DELETE FROM user_stats WHERE scope = ?`)
	if _, err := s.db.ExecContext(ctx, query, block); err != nil {
		return fmt.Errorf("failed to reset %s stats: %w", block, err)
	}
	return nil
}
