package engine

import (
	"context"
	"sync"

	"wellkit/core"
)

// DispatchMode selects how Publish delivers events to handlers.
type DispatchMode int

const (
	// DispatchSync runs handlers inline on the publishing goroutine. The
	// reward pipeline uses this in tests for deterministic ordering.
	DispatchSync DispatchMode = iota
	// DispatchAsync hands events to a small worker pool; slow consumers
	// never stall the pipeline, and events are dropped when the queue fills.
	DispatchAsync
)

// EventBus is the in-process pub/sub fabric between the reward pipeline and
// its consumers (realtime hub, leaderboard, analytics hooks, webhooks).
type EventBus struct {
	mode DispatchMode

	mu     sync.RWMutex
	subs   map[core.EventType]map[int64]func(context.Context, core.Event)
	lastID int64

	queue     chan core.Event
	closeOnce sync.Once
	done      chan struct{}
	workers   sync.WaitGroup
}

const (
	asyncQueueSize   = 2048
	asyncWorkerCount = 4
)

func NewEventBus(mode DispatchMode) *EventBus {
	b := &EventBus{
		mode:  mode,
		subs:  make(map[core.EventType]map[int64]func(context.Context, core.Event)),
		queue: make(chan core.Event, asyncQueueSize),
		done:  make(chan struct{}),
	}
	if mode == DispatchAsync {
		b.workers.Add(asyncWorkerCount)
		for i := 0; i < asyncWorkerCount; i++ {
			go b.work()
		}
	}
	return b
}

func (b *EventBus) work() {
	defer b.workers.Done()
	for {
		select {
		case ev := <-b.queue:
			b.deliver(context.Background(), ev)
		case <-b.done:
			// drain what is already queued before exiting
			for {
				select {
				case ev := <-b.queue:
					b.deliver(context.Background(), ev)
				default:
					return
				}
			}
		}
	}
}

// Subscribe registers a handler for one event type and returns its
// unsubscribe function.
func (b *EventBus) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastID++
	id := b.lastID
	if b.subs[typ] == nil {
		b.subs[typ] = make(map[int64]func(context.Context, core.Event))
	}
	b.subs[typ][id] = handler
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[typ], id)
	}
}

// Publish delivers an event per the bus dispatch mode. In async mode a full
// queue drops the event rather than blocking the reward pipeline.
func (b *EventBus) Publish(ctx context.Context, ev core.Event) {
	if b.mode == DispatchSync {
		b.deliver(ctx, ev)
		return
	}
	select {
	case b.queue <- ev:
	case <-b.done:
	default:
	}
}

// Close stops the async workers after draining queued events. Safe to call
// more than once.
func (b *EventBus) Close() {
	b.closeOnce.Do(func() {
		close(b.done)
	})
	b.workers.Wait()
}

func (b *EventBus) deliver(ctx context.Context, ev core.Event) {
	b.mu.RLock()
	handlers := make([]func(context.Context, core.Event), 0, len(b.subs[ev.Type]))
	for _, h := range b.subs[ev.Type] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()
	for _, h := range handlers {
		h(ctx, ev)
	}
}
