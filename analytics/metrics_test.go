package analytics

import (
	"context"
	"testing"
	"time"

	"wellkit/core"
)

func at(day string) time.Time {
	t, _ := time.Parse("2006-01-02", day)
	return t.Add(9 * time.Hour)
}

func TestMetricsAggregatesCoinFlow(t *testing.T) {
	m := NewMetrics()

	e := core.NewCoinsAwarded("u1", core.TxnActivityReward, "steps", 12, 12)
	e.Time = at("2026-03-01")
	m.OnEvent(e)

	e = core.NewCoinsAwarded("u2", core.TxnActivityReward, "meditation", 6, 6)
	e.Time = at("2026-03-01")
	m.OnEvent(e)

	e = core.NewCoinsSpent("u1", "shop", 5, 7)
	e.Time = at("2026-03-02")
	m.OnEvent(e)

	snap := m.Snapshot()
	if got := snap.CoinsAwardedByDay["2026-03-01"]; got != 18 {
		t.Fatalf("awarded on day = %d, want 18", got)
	}
	if got := snap.CoinsAwardedByCategory["steps"]; got != 12 {
		t.Fatalf("awarded for steps = %d, want 12", got)
	}
	if got := snap.CoinsSpentByDay["2026-03-02"]; got != 5 {
		t.Fatalf("spent on day = %d, want 5", got)
	}
}

func TestMetricsCountsUnlocks(t *testing.T) {
	m := NewMetrics()
	m.OnEvent(core.NewBadgeUnlocked("u1", "week_warrior", 0))
	m.OnEvent(core.NewBadgeUnlocked("u2", "week_warrior", 0))
	m.OnEvent(core.NewQuestCompleted("u1", "daily-check-in", 20))
	m.OnEvent(core.NewLevelUp("u1", 3))
	m.OnEvent(core.NewStreakAdvanced("u1", 4))

	snap := m.Snapshot()
	if snap.BadgeUnlocks["week_warrior"] != 2 {
		t.Fatalf("badge unlocks = %d, want 2", snap.BadgeUnlocks["week_warrior"])
	}
	if snap.QuestCompletions["daily-check-in"] != 1 {
		t.Fatalf("quest completions = %d, want 1", snap.QuestCompletions["daily-check-in"])
	}
	if snap.LevelUps != 1 || snap.StreakAdvances != 1 {
		t.Fatalf("levelUps=%d streakAdvances=%d", snap.LevelUps, snap.StreakAdvances)
	}
}

func TestMetricsSnapshotIsCopy(t *testing.T) {
	m := NewMetrics()
	m.OnEvent(core.NewBadgeUnlocked("u1", "first_step", 0))
	snap := m.Snapshot()
	snap.BadgeUnlocks["first_step"] = 99
	if got := m.Snapshot().BadgeUnlocks["first_step"]; got != 1 {
		t.Fatalf("internal counter mutated, got %d", got)
	}
}

func TestDAUCountsDistinctUsers(t *testing.T) {
	d := NewDAU()
	for _, u := range []core.UserID{"a", "b", "a"} {
		e := core.NewStreakAdvanced(u, 1)
		e.Time = at("2026-03-05")
		d.OnEvent(e)
	}
	if got := d.Count("2026-03-05"); got != 2 {
		t.Fatalf("dau = %d, want 2", got)
	}
	if got := d.Count("2026-03-06"); got != 0 {
		t.Fatalf("empty day dau = %d, want 0", got)
	}
}

func TestBridgeFansOut(t *testing.T) {
	d := NewDAU()
	m := NewMetrics()
	handler := HandlerFor(NewBridge(d, m))

	e := core.NewCoinsAwarded("u1", core.TxnActivityReward, "mood", 20, 20)
	e.Time = at("2026-03-07")
	handler(context.Background(), e)

	if d.Count("2026-03-07") != 1 {
		t.Fatal("dau did not record event")
	}
	if m.Snapshot().CoinsAwardedByCategory["mood"] != 20 {
		t.Fatal("metrics did not record event")
	}
}
