package core

import "testing"

func TestLevelCurveBoundaries(t *testing.T) {
	c := DefaultLevelCurve()
	cases := []struct {
		balance int64
		level   int
	}{
		{0, 1},
		{199, 1},
		{200, 2},
		{399, 2},
		{400, 3},
		{-50, 1},
		{200 * 99, 100},
		{200 * 500, 100}, // capped
	}
	for _, tc := range cases {
		if got := c.Level(tc.balance); got != tc.level {
			t.Errorf("Level(%d) = %d, want %d", tc.balance, got, tc.level)
		}
	}
}

func TestLevelCurveProgress(t *testing.T) {
	c := DefaultLevelCurve()
	if got := c.Progress(0); got != 0 {
		t.Fatalf("Progress(0) = %d", got)
	}
	if got := c.Progress(50); got != 25 {
		t.Fatalf("Progress(50) = %d, want 25", got)
	}
	if got := c.Progress(250); got != 25 {
		t.Fatalf("Progress(250) = %d, want 25", got)
	}
}

func TestLevelCurveCoinsToNext(t *testing.T) {
	c := DefaultLevelCurve()
	if got := c.CoinsToNext(0); got != 200 {
		t.Fatalf("CoinsToNext(0) = %d, want 200", got)
	}
	if got := c.CoinsToNext(150); got != 50 {
		t.Fatalf("CoinsToNext(150) = %d, want 50", got)
	}
	if got := c.CoinsToNext(200 * 200); got != 0 {
		t.Fatalf("CoinsToNext at cap = %d, want 0", got)
	}
}

func TestLevelCurveZeroDivisorIsSafe(t *testing.T) {
	c := LevelCurve{}
	if c.Level(1000) != 1 || c.Progress(1000) != 0 || c.CoinsToNext(1000) != 0 {
		t.Fatal("zero coins_per_level must not panic or divide")
	}
}
