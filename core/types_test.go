package core

import (
	"math"
	"testing"
	"time"
)

func TestAddSafe(t *testing.T) {
	if v, err := AddSafe(10, 5); err != nil || v != 15 {
		t.Fatalf("got %v %v", v, err)
	}
	if _, err := AddSafe(math.MaxInt64, 1); err == nil {
		t.Fatalf("expected overflow")
	}
}

func TestNormalizeUserID(t *testing.T) {
	id, err := NormalizeUserID(" Alice ")
	if err != nil || id != "alice" {
		t.Fatalf("got %v %v", id, err)
	}
	if _, err := NormalizeUserID("   "); err == nil {
		t.Fatalf("expected empty error")
	}
}

func TestValidateBadgeName(t *testing.T) {
	if err := ValidateBadgeName("week_warrior"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := ValidateBadgeName("bad badge"); err == nil {
		t.Fatalf("expected invalid badge err")
	}
}

func TestWalletClone(t *testing.T) {
	w := Wallet{
		UserID:           "u1",
		Coins:            42,
		Badges:           []BadgeGrant{{Name: "first_step"}},
		StreakMilestones: map[int]time.Time{7: time.Now()},
	}
	cp := w.Clone()
	cp.Badges[0].Name = "changed"
	cp.StreakMilestones[14] = time.Now()
	if w.Badges[0].Name != "first_step" {
		t.Fatal("clone shares badge slice")
	}
	if _, ok := w.StreakMilestones[14]; ok {
		t.Fatal("clone shares milestone map")
	}
}

func TestWalletHasBadgeHasQuest(t *testing.T) {
	w := Wallet{
		Badges: []BadgeGrant{{Name: "first_step"}},
		Quests: []QuestCompletion{{QuestID: "q1"}},
	}
	if !w.HasBadge("first_step") || w.HasBadge("other") {
		t.Fatal("HasBadge mismatch")
	}
	if !w.HasQuest("q1") || w.HasQuest("q2") {
		t.Fatal("HasQuest mismatch")
	}
}

func TestLevelCurve(t *testing.T) {
	c := DefaultLevelCurve()
	if got := c.Level(450); got != 3 {
		t.Fatalf("Level(450) = %d, want 3", got)
	}
	if got := c.Level(0); got != 1 {
		t.Fatalf("Level(0) = %d, want 1", got)
	}
	if got := c.Level(1_000_000); got != c.MaxLevel {
		t.Fatalf("Level should cap at %d, got %d", c.MaxLevel, got)
	}
	if got := c.Progress(250); got != 25 {
		t.Fatalf("Progress(250) = %d, want 25", got)
	}
	if got := c.CoinsToNext(450); got != 150 {
		t.Fatalf("CoinsToNext(450) = %d, want 150", got)
	}
}

func TestMultiplierLadder(t *testing.T) {
	tiers := DefaultStreakTiers()
	cases := []struct {
		days int
		want float64
	}{
		{0, 1.0}, {2, 1.0}, {3, 1.1}, {6, 1.1}, {7, 1.25},
		{13, 1.25}, {14, 1.5}, {29, 1.5}, {30, 2.0}, {365, 2.0},
	}
	for _, tc := range cases {
		if got := Multiplier(tiers, tc.days); got != tc.want {
			t.Fatalf("Multiplier(%d) = %v, want %v", tc.days, got, tc.want)
		}
	}
}

func TestParseFormula(t *testing.T) {
	f, err := ParseFormula("steps / 1000")
	if err != nil {
		t.Fatal(err)
	}
	if got := f.Coins(map[string]float64{"steps": 2500}); got != 2 {
		t.Fatalf("Coins = %d, want 2", got)
	}
	if got := f.Coins(map[string]float64{}); got != 0 {
		t.Fatalf("missing field should yield 0, got %d", got)
	}
	if _, err := ParseFormula("steps"); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := ParseFormula("steps / 0"); err == nil {
		t.Fatal("expected divisor error")
	}
}
