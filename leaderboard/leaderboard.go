package leaderboard

import (
	"context"

	"wellkit/core"
)

// Entry is one ranked wallet.
type Entry struct {
	User  core.UserID `json:"user_id"`
	Coins int64       `json:"coins"`
}

// Board abstracts coin ranking operations.
type Board interface {
	Update(user core.UserID, coins int64)
	Remove(user core.UserID)
	TopN(n int) []Entry
	Get(user core.UserID) (Entry, bool)
	Rank(user core.UserID) (int, bool)
}

// Tracker keeps a Board current by consuming wallet events. Every
// coins_awarded and coins_spent event carries the post-operation balance,
// so the board needs no storage reads.
type Tracker struct {
	board Board
}

func NewTracker(board Board) *Tracker { return &Tracker{board: board} }

// Handler returns an event-bus callback feeding the board.
func (t *Tracker) Handler() func(context.Context, core.Event) {
	return func(_ context.Context, ev core.Event) {
		switch ev.Type {
		case core.EventCoinsAwarded, core.EventCoinsSpent:
			t.board.Update(ev.UserID, ev.Balance)
		}
	}
}

// Top returns the highest balances, largest first.
func (t *Tracker) Top(n int) []Entry { return t.board.TopN(n) }

// Standing returns a user's entry and 1-based rank.
func (t *Tracker) Standing(user core.UserID) (Entry, int, bool) {
	e, ok := t.board.Get(user)
	if !ok {
		return Entry{}, 0, false
	}
	rank, ok := t.board.Rank(user)
	if !ok {
		return Entry{}, 0, false
	}
	return e, rank, true
}
