package core

import (
	"testing"
	"time"
)

func day(d int) time.Time {
	return time.Date(2025, 3, 1, 9, 30, 0, 0, time.Local).AddDate(0, 0, d)
}

func TestStreakFirstActivity(t *testing.T) {
	next, advanced := StreakState{}.Next(day(0))
	if next.Current != 1 || next.Longest != 1 || !advanced {
		t.Fatalf("got %+v advanced=%v", next, advanced)
	}
}

func TestStreakSameDayIdempotent(t *testing.T) {
	s, _ := StreakState{}.Next(day(0))
	later := day(0).Add(8 * time.Hour)
	next, advanced := s.Next(later)
	if next.Current != 1 || advanced {
		t.Fatalf("same-day repeat must not advance: %+v advanced=%v", next, advanced)
	}
}

func TestStreakConsecutiveDay(t *testing.T) {
	s, _ := StreakState{}.Next(day(0))
	next, advanced := s.Next(day(1))
	if next.Current != 2 || !advanced {
		t.Fatalf("got %+v advanced=%v", next, advanced)
	}
}

func TestStreakBrokenAfterGap(t *testing.T) {
	s := StreakState{Current: 9, Longest: 9, LastActivityDate: day(0)}
	next, advanced := s.Next(day(2))
	if next.Current != 1 || !advanced {
		t.Fatalf("2-day gap must reset: %+v advanced=%v", next, advanced)
	}
	if next.Longest != 9 {
		t.Fatalf("longest must survive a reset, got %d", next.Longest)
	}
}

func TestStreakLongestMonotonic(t *testing.T) {
	var s StreakState
	offsets := []int{0, 1, 2, 3, 4, 7, 8, 9, 20, 21} // two gaps break the streak
	longest := 0
	for _, off := range offsets {
		s, _ = s.Next(day(off))
		if s.Longest < longest {
			t.Fatalf("longest decreased: %d -> %d", longest, s.Longest)
		}
		longest = s.Longest
	}
	if s.Longest != 5 {
		t.Fatalf("longest = %d, want 5", s.Longest)
	}
	if s.Current != 2 {
		t.Fatalf("current = %d, want 2", s.Current)
	}
}

func TestStreakMidnightBoundary(t *testing.T) {
	lastNight := time.Date(2025, 3, 1, 23, 59, 0, 0, time.Local)
	s, _ := StreakState{}.Next(lastNight)
	justAfterMidnight := time.Date(2025, 3, 2, 0, 1, 0, 0, time.Local)
	next, advanced := s.Next(justAfterMidnight)
	if next.Current != 2 || !advanced {
		t.Fatalf("calendar-day boundary should advance: %+v", next)
	}
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2025, 3, 1, 23, 0, 0, 0, time.Local)
	b := time.Date(2025, 3, 4, 1, 0, 0, 0, time.Local)
	if got := DaysBetween(a, b); got != 3 {
		t.Fatalf("DaysBetween = %d, want 3", got)
	}
	if got := DaysBetween(b, b); got != 0 {
		t.Fatalf("same instant should be 0, got %d", got)
	}
}

func TestStreakAcrossDSTTransitions(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	// Spring forward 2026-03-08: the day is 23 hours long.
	springA := time.Date(2026, 3, 8, 9, 0, 0, 0, loc)
	springB := time.Date(2026, 3, 9, 9, 0, 0, 0, loc)
	if got := DaysBetween(springA, springB); got != 1 {
		t.Fatalf("DaysBetween across spring forward = %d, want 1", got)
	}
	s := StreakState{Current: 5, Longest: 5, LastActivityDate: springA}
	next, advanced := s.Next(springB)
	if next.Current != 6 || !advanced {
		t.Fatalf("streak across spring forward: %+v advanced=%v", next, advanced)
	}

	// Fall back 2026-11-01: the day is 25 hours long.
	fallA := time.Date(2026, 10, 31, 9, 0, 0, 0, loc)
	fallB := time.Date(2026, 11, 1, 9, 0, 0, 0, loc)
	if got := DaysBetween(fallA, fallB); got != 1 {
		t.Fatalf("DaysBetween across fall back = %d, want 1", got)
	}
}
