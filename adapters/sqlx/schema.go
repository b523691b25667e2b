package sqlx

import (
	"context"
	"fmt"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS wallets (
		user_id TEXT PRIMARY KEY,
		coins BIGINT NOT NULL DEFAULT 0,
		level INT NOT NULL DEFAULT 1,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS coin_transactions (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		amount BIGINT NOT NULL,
		balance_after BIGINT NOT NULL,
		type TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		ref_id TEXT NOT NULL DEFAULT '',
		ref_model TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		metadata JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_coin_transactions_user ON coin_transactions (user_id, id DESC)`,
	`CREATE TABLE IF NOT EXISTS user_badges (
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		icon TEXT NOT NULL DEFAULT '',
		tier TEXT NOT NULL DEFAULT '',
		unlocked_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS quest_completions (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		quest_id TEXT NOT NULL,
		coins_awarded BIGINT NOT NULL DEFAULT 0,
		completed_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS streak_milestones (
		user_id TEXT NOT NULL,
		days INT NOT NULL,
		claimed_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, days)
	)`,
	`CREATE TABLE IF NOT EXISTS user_stats (
		user_id TEXT NOT NULL,
		scope TEXT NOT NULL,
		stat_key TEXT NOT NULL,
		value BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, scope, stat_key)
	)`,
	`CREATE TABLE IF NOT EXISTS streaks (
		user_id TEXT PRIMARY KEY,
		current INT NOT NULL DEFAULT 0,
		longest INT NOT NULL DEFAULT 0,
		last_activity_date TIMESTAMPTZ NOT NULL
	)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS wallets (
		user_id VARCHAR(128) PRIMARY KEY,
		coins BIGINT NOT NULL DEFAULT 0,
		level INT NOT NULL DEFAULT 1,
		updated_at DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS coin_transactions (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		user_id VARCHAR(128) NOT NULL,
		amount BIGINT NOT NULL,
		balance_after BIGINT NOT NULL,
		type VARCHAR(32) NOT NULL,
		category VARCHAR(64) NOT NULL DEFAULT '',
		ref_id VARCHAR(128) NOT NULL DEFAULT '',
		ref_model VARCHAR(64) NOT NULL DEFAULT '',
		description TEXT,
		metadata JSON,
		created_at DATETIME(6) NOT NULL,
		INDEX idx_coin_transactions_user (user_id, id DESC)
	)`,
	`CREATE TABLE IF NOT EXISTS user_badges (
		user_id VARCHAR(128) NOT NULL,
		name VARCHAR(64) NOT NULL,
		display_name VARCHAR(128) NOT NULL DEFAULT '',
		icon VARCHAR(128) NOT NULL DEFAULT '',
		tier VARCHAR(32) NOT NULL DEFAULT '',
		unlocked_at DATETIME(6) NOT NULL,
		PRIMARY KEY (user_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS quest_completions (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		user_id VARCHAR(128) NOT NULL,
		quest_id VARCHAR(64) NOT NULL,
		coins_awarded BIGINT NOT NULL DEFAULT 0,
		completed_at DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS streak_milestones (
		user_id VARCHAR(128) NOT NULL,
		days INT NOT NULL,
		claimed_at DATETIME(6) NOT NULL,
		PRIMARY KEY (user_id, days)
	)`,
	`CREATE TABLE IF NOT EXISTS user_stats (
		user_id VARCHAR(128) NOT NULL,
		scope VARCHAR(16) NOT NULL,
		stat_key VARCHAR(64) NOT NULL,
		value BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, scope, stat_key)
	)`,
	`CREATE TABLE IF NOT EXISTS streaks (
		user_id VARCHAR(128) PRIMARY KEY,
		current INT NOT NULL DEFAULT 0,
		longest INT NOT NULL DEFAULT 0,
		last_activity_date DATETIME(6) NOT NULL
	)`,
}

// Migrate creates the schema when it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	schema := postgresSchema
	if s.driver == DriverMySQL {
		schema = mysqlSchema
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
