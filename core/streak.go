package core

import "time"

// StreakState tracks consecutive-day activity for a user.
type StreakState struct {
	Current          int       `json:"current"`
	Longest          int       `json:"longest"`
	LastActivityDate time.Time `json:"last_activity_date,omitempty"`
}

// Next applies the day-boundary transition for one activity at now and
// returns the updated state plus whether the streak advanced:
//
//	no prior date   -> current=1, advanced
//	same day        -> unchanged (repeated same-day activity is idempotent)
//	next day        -> current+1, advanced
//	gap of 2+ days  -> current=1, advanced (streak broken)
//
// Longest never decreases. Day boundaries are whole calendar days in now's
// location (server wall clock).
func (s StreakState) Next(now time.Time) (StreakState, bool) {
	next := s
	advanced := false

	if s.LastActivityDate.IsZero() {
		next.Current = 1
		advanced = true
	} else {
		switch DaysBetween(s.LastActivityDate, now) {
		case 0:
			// same calendar day, no change
		case 1:
			next.Current = s.Current + 1
			advanced = true
		default:
			next.Current = 1
			advanced = true
		}
	}

	if next.Current > next.Longest {
		next.Longest = next.Current
	}
	next.LastActivityDate = now
	return next, advanced
}

// DaysBetween returns the whole-calendar-day difference between a and b,
// reading both dates in b's location. The dates are re-anchored in UTC before
// subtracting so DST transitions (23- and 25-hour days) cannot skew the count.
func DaysBetween(a, b time.Time) int {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	dayA := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	dayB := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(dayB.Sub(dayA) / (24 * time.Hour))
}

// StreakTier maps a minimum streak length to a coin multiplier.
type StreakTier struct {
	MinDays    int     `json:"min_days"`
	Multiplier float64 `json:"multiplier"`
}

// DefaultStreakTiers returns the stock multiplier ladder.
func DefaultStreakTiers() []StreakTier {
	return []StreakTier{
		{MinDays: 30, Multiplier: 2.0},
		{MinDays: 14, Multiplier: 1.5},
		{MinDays: 7, Multiplier: 1.25},
		{MinDays: 3, Multiplier: 1.1},
	}
}

// Multiplier returns the reward multiplier for a streak length against a
// tier ladder sorted by MinDays descending. Below every tier the factor is 1.
func Multiplier(tiers []StreakTier, streakDays int) float64 {
	for _, t := range tiers {
		if streakDays >= t.MinDays {
			return t.Multiplier
		}
	}
	return 1.0
}
