package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"wellkit/core"
)

func TestHubSubscribeBroadcastUnsubscribe(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe("", 1)

	ev := core.NewCoinsAwarded("bob", core.TxnActivityReward, "mood", 20, 20)
	h.Broadcast(context.Background(), ev)

	received := <-ch
	if received.UserID != "bob" || received.Type != core.EventCoinsAwarded {
		t.Fatalf("unexpected event: %+v", received)
	}

	h.Unsubscribe(id)
	_, ok := <-ch
	if ok {
		t.Fatal("expected channel closed after unsubscribe")
	}
}

func TestHubUserScopedSubscription(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe("alice", 2)
	defer h.Unsubscribe(id)

	h.Broadcast(context.Background(), core.NewBadgeUnlocked("bob", "walker", 30))
	h.Broadcast(context.Background(), core.NewBadgeUnlocked("alice", "first_step", 10))

	received := <-ch
	if received.UserID != "alice" || received.Badge != "first_step" {
		t.Fatalf("unexpected event: %+v", received)
	}
	select {
	case ev := <-ch:
		t.Fatalf("leaked foreign event: %+v", ev)
	default:
	}
}

func TestMarshalJSON(t *testing.T) {
	ev := core.NewBadgeUnlocked("alice", "first_step", 10)
	b := MarshalJSON(ev)
	var out core.Event
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Badge != "first_step" {
		t.Fatalf("unexpected badge: %s", out.Badge)
	}
}
