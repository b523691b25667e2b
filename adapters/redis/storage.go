package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"wellkit/core"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Store implements the engine.Storage interface using Redis as the backend.
// Data structure:
// - user:{id}:wallet -> hash {coins, level}
// - user:{id}:txns -> list of JSON ledger entries, newest at the head
// - user:{id}:earnings -> hash category -> earned total
// - user:{id}:badges -> hash badge name -> JSON grant
// - user:{id}:quests -> list of JSON quest completions
// - user:{id}:milestones -> set of claimed streak lengths
// - user:{id}:stats:{totals|week|today} -> hash stat key -> counter
// - user:{id}:streak -> JSON streak state
// - users -> set of every user id seen (drives the periodic resets)
type Store struct {
	client *redis.Client
}

// New creates a new Redis-backed storage with the provided configuration
func New(config Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client}, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

func walletKey(user core.UserID) string     { return fmt.Sprintf("user:%s:wallet", user) }
func txnsKey(user core.UserID) string       { return fmt.Sprintf("user:%s:txns", user) }
func earningsKey(user core.UserID) string   { return fmt.Sprintf("user:%s:earnings", user) }
func badgesKey(user core.UserID) string     { return fmt.Sprintf("user:%s:badges", user) }
func questsKey(user core.UserID) string     { return fmt.Sprintf("user:%s:quests", user) }
func milestonesKey(user core.UserID) string { return fmt.Sprintf("user:%s:milestones", user) }
func streakKey(user core.UserID) string     { return fmt.Sprintf("user:%s:streak", user) }

func statsKey(user core.UserID, block string) string {
	return fmt.Sprintf("user:%s:stats:%s", user, block)
}

const usersKey = "users"

// Lua script for atomic coin credit with overflow protection
var creditScript = redis.NewScript(`
	local key = KEYS[1]
	local delta = tonumber(ARGV[1])
	local current = tonumber(redis.call('HGET', key, 'coins') or '0')
	local next_val = current + delta

	if next_val > 9223372036854775807 then
		return redis.error_reply('integer overflow')
	end

	redis.call('HSET', key, 'coins', next_val)
	return next_val
`)

// Lua script folding the balance check into the decrement. Returns -1 when
// the balance is too low, leaving it untouched.
var debitScript = redis.NewScript(`
	local key = KEYS[1]
	local amount = tonumber(ARGV[1])
	local current = tonumber(redis.call('HGET', key, 'coins') or '0')

	if current < amount then
		return -1
	end

	local next_val = current - amount
	redis.call('HSET', key, 'coins', next_val)
	return next_val
`)

func (s *Store) track(ctx context.Context, user core.UserID) {
	_ = s.client.SAdd(ctx, usersKey, string(user)).Err()
}

// CreditCoins atomically increments the balance
func (s *Store) CreditCoins(ctx context.Context, user core.UserID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, core.ErrInvalidAmount
	}
	s.track(ctx, user)
	result, err := creditScript.Run(ctx, s.client, []string{walletKey(user)}, amount).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to credit coins: %w", err)
	}
	balance, ok := result.(int64)
	if !ok {
		return 0, errors.New("unexpected result type from Redis script")
	}
	return balance, nil
}

// DebitCoins atomically checks and decrements the balance
func (s *Store) DebitCoins(ctx context.Context, user core.UserID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, core.ErrInvalidAmount
	}
	result, err := debitScript.Run(ctx, s.client, []string{walletKey(user)}, amount).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to debit coins: %w", err)
	}
	balance, ok := result.(int64)
	if !ok {
		return 0, errors.New("unexpected result type from Redis script")
	}
	if balance < 0 {
		return 0, core.ErrInsufficientBalance
	}
	return balance, nil
}

// AppendTransaction pushes a ledger entry and folds positive amounts into
// the per-category earnings hash
func (s *Store) AppendTransaction(ctx context.Context, txn core.CoinTransaction) error {
	data, err := json.Marshal(txn)
	if err != nil {
		return fmt.Errorf("failed to encode transaction: %w", err)
	}
	if err := s.client.LPush(ctx, txnsKey(txn.UserID), data).Err(); err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	if txn.Amount > 0 && txn.Source.Category != "" {
		if err := s.client.HIncrBy(ctx, earningsKey(txn.UserID), txn.Source.Category, txn.Amount).Err(); err != nil {
			return fmt.Errorf("failed to update earnings: %w", err)
		}
	}
	return nil
}

// Balance reads the live balance
func (s *Store) Balance(ctx context.Context, user core.UserID) (int64, error) {
	val, err := s.client.HGet(ctx, walletKey(user), "coins").Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return val, nil
}

// History pages through the ledger list, newest first
func (s *Store) History(ctx context.Context, user core.UserID, q core.HistoryQuery) (core.HistoryPage, error) {
	q = q.Normalize()
	raw, err := s.client.LRange(ctx, txnsKey(user), 0, -1).Result()
	if err != nil {
		return core.HistoryPage{}, fmt.Errorf("failed to read history: %w", err)
	}

	matched := make([]core.CoinTransaction, 0, len(raw))
	for _, item := range raw {
		var txn core.CoinTransaction
		if err := json.Unmarshal([]byte(item), &txn); err != nil {
			continue // Skip invalid entries
		}
		if q.Category != "" && txn.Source.Category != q.Category {
			continue
		}
		matched = append(matched, txn)
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
		Transactions: matched[start:end],
		Page:         q.Page,
		Limit:        q.Limit,
		Total:        total,
		TotalPages:   int((total + int64(q.Limit) - 1) / int64(q.Limit)),
	}, nil
}

// EarningsByCategory reads the per-category earnings hash
func (s *Store) EarningsByCategory(ctx context.Context, user core.UserID) ([]core.CategoryEarnings, error) {
	sums, err := s.client.HGetAll(ctx, earningsKey(user)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read earnings: %w", err)
	}
	out := make([]core.CategoryEarnings, 0, len(sums))
	for category, raw := range sums {
		total, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
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

// Wallet rebuilds the wallet snapshot from its keys
func (s *Store) Wallet(ctx context.Context, user core.UserID) (core.Wallet, error) {
	wallet := core.Wallet{
		UserID:           user,
		Level:            1,
		StreakMilestones: map[int]time.Time{},
		Updated:          time.Now().UTC(),
	}

	fields, err := s.client.HGetAll(ctx, walletKey(user)).Result()
	if err != nil {
		return core.Wallet{}, fmt.Errorf("failed to read wallet: %w", err)
	}
	if raw, ok := fields["coins"]; ok {
		wallet.Coins, _ = strconv.ParseInt(raw, 10, 64)
	}
	if raw, ok := fields["level"]; ok {
		if level, err := strconv.Atoi(raw); err == nil && level > 0 {
			wallet.Level = level
		}
	}

	grants, err := s.client.HGetAll(ctx, badgesKey(user)).Result()
	if err != nil {
		return core.Wallet{}, fmt.Errorf("failed to read badges: %w", err)
	}
	for _, raw := range grants {
		var grant core.BadgeGrant
		if err := json.Unmarshal([]byte(raw), &grant); err != nil {
			continue
		}
		wallet.Badges = append(wallet.Badges, grant)
	}

	completions, err := s.client.LRange(ctx, questsKey(user), 0, -1).Result()
	if err != nil {
		return core.Wallet{}, fmt.Errorf("failed to read quests: %w", err)
	}
	for _, raw := range completions {
		var rec core.QuestCompletion
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		wallet.Quests = append(wallet.Quests, rec)
	}

	claimed, err := s.client.SMembers(ctx, milestonesKey(user)).Result()
	if err == nil {
		for _, raw := range claimed {
			if days, err := strconv.Atoi(raw); err == nil {
				wallet.StreakMilestones[days] = time.Time{}
			}
		}
	}

	return wallet, nil
}

// SetLevel stores the level in the wallet hash
func (s *Store) SetLevel(ctx context.Context, user core.UserID, level int) error {
	if err := s.client.HSet(ctx, walletKey(user), "level", level).Err(); err != nil {
		return fmt.Errorf("failed to set level: %w", err)
	}
	return nil
}

// UnlockBadge adds the grant with HSETNX, reporting whether it was new
func (s *Store) UnlockBadge(ctx context.Context, user core.UserID, grant core.BadgeGrant) (bool, error) {
	data, err := json.Marshal(grant)
	if err != nil {
		return false, fmt.Errorf("failed to encode badge grant: %w", err)
	}
	added, err := s.client.HSetNX(ctx, badgesKey(user), grant.Name, data).Result()
	if err != nil {
		return false, fmt.Errorf("failed to unlock badge: %w", err)
	}
	return added, nil
}

// CompleteQuest appends a completion record
func (s *Store) CompleteQuest(ctx context.Context, user core.UserID, rec core.QuestCompletion) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode quest completion: %w", err)
	}
	if err := s.client.RPush(ctx, questsKey(user), data).Err(); err != nil {
		return fmt.Errorf("failed to record quest completion: %w", err)
	}
	return nil
}

// ClaimStreakMilestone adds the length to a set; SADD reports first-claim
func (s *Store) ClaimStreakMilestone(ctx context.Context, user core.UserID, days int) (bool, error) {
	added, err := s.client.SAdd(ctx, milestonesKey(user), days).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim streak milestone: %w", err)
	}
	return added == 1, nil
}

// Stats rebuilds the counter snapshot from the three stat hashes
func (s *Store) Stats(ctx context.Context, user core.UserID) (core.Stats, error) {
	stats := core.Stats{
		Totals:   core.Counters{},
		ThisWeek: core.Counters{},
		Today:    core.Counters{},
		Updated:  time.Now().UTC(),
	}

	blocks := []struct {
		name string
		dst  core.Counters
	}{
		{"totals", stats.Totals},
		{"week", stats.ThisWeek},
		{"today", stats.Today},
	}
	for _, block := range blocks {
		fields, err := s.client.HGetAll(ctx, statsKey(user, block.name)).Result()
		if err != nil {
			return core.Stats{}, fmt.Errorf("failed to read %s stats: %w", block.name, err)
		}
		for field, raw := range fields {
			if !core.ValidStatKey(core.StatKey(field)) {
				continue
			}
			if val, err := strconv.ParseInt(raw, 10, 64); err == nil {
				block.dst[core.StatKey(field)] = val
			}
		}
	}

	raw, err := s.client.Get(ctx, streakKey(user)).Bytes()
	if err == nil {
		_ = json.Unmarshal(raw, &stats.Streak)
	} else if !errors.Is(err, redis.Nil) {
		return core.Stats{}, fmt.Errorf("failed to read streak: %w", err)
	}

	return stats, nil
}

// IncrementStats applies counter deltas with HINCRBY
func (s *Store) IncrementStats(ctx context.Context, user core.UserID, deltas core.StatDeltas) error {
	s.track(ctx, user)
	blocks := []struct {
		name string
		src  core.Counters
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
			if err := s.client.HIncrBy(ctx, statsKey(user, block.name), string(key), delta).Err(); err != nil {
				return fmt.Errorf("failed to increment %s.%s: %w", block.name, key, err)
			}
		}
	}
	return nil
}

// SetStreak stores the streak state as JSON
func (s *Store) SetStreak(ctx context.Context, user core.UserID, streak core.StreakState) error {
	s.track(ctx, user)
	data, err := json.Marshal(streak)
	if err != nil {
		return fmt.Errorf("failed to encode streak: %w", err)
	}
	if err := s.client.Set(ctx, streakKey(user), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set streak: %w", err)
	}
	return nil
}

// ResetCounters deletes the daily or weekly stat hash for every tracked user
func (s *Store) ResetCounters(ctx context.Context, scope core.PeriodScope) error {
	block := "today"
	if scope == core.PeriodWeekly {
		block = "week"
	}
	users, err := s.client.SMembers(ctx, usersKey).Result()
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	for _, user := range users {
		if err := s.client.Del(ctx, statsKey(core.UserID(user), block)).Err(); err != nil {
			return fmt.Errorf("failed to reset %s stats for %s: %w", block, user, err)
		}
	}
	return nil
}
