// Package wellkit is the embedding facade: one constructor that assembles
// the reward service with sensible defaults for host applications that do
// not want to wire the pieces themselves.
package wellkit

import (
	"context"
	"log/slog"

	mem "wellkit/adapters/memory"
	"wellkit/analytics"
	"wellkit/config"
	"wellkit/core"
	"wellkit/engine"
	"wellkit/leaderboard"
	"wellkit/realtime"
)

// Option configures the service builder.
type Option func(*builder)

type builder struct {
	storage  engine.Storage
	rulebook *core.Rulebook
	mode     engine.DispatchMode
	hub      *realtime.Hub
	board    *leaderboard.Tracker
	hooks    []analytics.Hook
	log      *slog.Logger
}

// WithStorage sets the persistence adapter.
func WithStorage(s engine.Storage) Option { return func(b *builder) { b.storage = s } }

// WithRulebook sets the reward catalog.
func WithRulebook(rb *core.Rulebook) Option { return func(b *builder) { b.rulebook = rb } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(b *builder) { b.mode = m } }

// WithRealtime wires a realtime hub to receive all reward events.
func WithRealtime(h *realtime.Hub) Option { return func(b *builder) { b.hub = h } }

// WithLeaderboard keeps a coin leaderboard in sync with wallet events.
func WithLeaderboard(t *leaderboard.Tracker) Option { return func(b *builder) { b.board = t } }

// WithHooks attaches analytics hooks to the event stream.
func WithHooks(hooks ...analytics.Hook) Option {
	return func(b *builder) { b.hooks = append(b.hooks, hooks...) }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(b *builder) { b.log = l } }

var allEventTypes = []core.EventType{
	core.EventCoinsAwarded,
	core.EventCoinsSpent,
	core.EventStreakAdvanced,
	core.EventQuestCompleted,
	core.EventBadgeUnlocked,
	core.EventLevelUp,
}

// New builds a configured RewardService. Defaults when not provided:
//   - storage: in-memory
//   - rulebook: compiled-in catalog
//   - dispatch: async
func New(opts ...Option) *engine.RewardService {
	b := &builder{mode: engine.DispatchAsync}
	for _, o := range opts {
		o(b)
	}
	if b.storage == nil {
		b.storage = mem.New()
	}
	if b.rulebook == nil {
		b.rulebook = config.DefaultRulebook()
	}
	bus := engine.NewEventBus(b.mode)
	svc := engine.NewRewardService(b.storage, b.rulebook, bus, b.log)

	if b.hub != nil {
		for _, typ := range allEventTypes {
			bus.Subscribe(typ, func(ctx context.Context, e core.Event) { b.hub.Broadcast(ctx, e) })
		}
	}
	if b.board != nil {
		handler := b.board.Handler()
		bus.Subscribe(core.EventCoinsAwarded, handler)
		bus.Subscribe(core.EventCoinsSpent, handler)
	}
	if len(b.hooks) > 0 {
		handler := analytics.HandlerFor(analytics.NewBridge(b.hooks...))
		for _, typ := range allEventTypes {
			bus.Subscribe(typ, handler)
		}
	}
	return svc
}
