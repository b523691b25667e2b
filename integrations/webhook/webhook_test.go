package webhook

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"wellkit/core"
)

func TestSink_OnEventPostsToEndpoints(t *testing.T) {
	var hits int32
	var eventHeader atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		eventHeader.Store(r.Header.Get("X-Wellkit-Event"))
		_, _ = io.ReadAll(r.Body)
		_ = r.Body.Close()
	}))
	defer srv.Close()

	sink := New([]string{srv.URL})
	sink.OnEvent(core.NewCoinsAwarded("u1", core.TxnActivityReward, "steps", 5, 5))

	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", hits)
	}
	if got := eventHeader.Load(); got != string(core.EventCoinsAwarded) {
		t.Fatalf("event header = %v", got)
	}
}

func TestSink_EventTypeFilter(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	sink := New([]string{srv.URL}, WithEventTypes(core.EventBadgeUnlocked, core.EventLevelUp))
	sink.OnEvent(core.NewCoinsAwarded("u1", core.TxnActivityReward, "steps", 5, 5))
	sink.OnEvent(core.NewBadgeUnlocked("u1", "week_warrior", 0))

	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected only badge event delivered, got %d hits", hits)
	}
}
