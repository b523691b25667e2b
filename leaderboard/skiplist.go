package leaderboard

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"

	"wellkit/core"
)

// A skip list keyed by (coins desc, user asc) for O(log n) balance updates
// and cheap top-N reads.

const (
	maxHeight = 16
	promoteP  = 0.25
)

type node struct {
	e    Entry
	next [maxHeight]*node
}

type SkipList struct {
	mu     sync.RWMutex
	head   *node
	height int
	byUser map[core.UserID]*node
	rng    *rand.Rand
}

func NewSkipList() *SkipList {
	var seed [16]byte
	if _, err := cryptorand.Read(seed[:]); err != nil {
		seed = [16]byte{}
	}
	return &SkipList{
		head:   &node{},
		height: 1,
		byUser: map[core.UserID]*node{},
		rng: rand.New(rand.NewPCG(
			binary.BigEndian.Uint64(seed[:8]),
			binary.BigEndian.Uint64(seed[8:]),
		)),
	}
}

func (s *SkipList) rollHeight() int {
	h := 1
	for h < maxHeight && s.rng.Float64() < promoteP {
		h++
	}
	return h
}

// Entries sort by coins descending; ties break on user ascending so the
// order is deterministic.
func before(a, b Entry) bool {
	if a.Coins != b.Coins {
		return a.Coins > b.Coins
	}
	return a.User < b.User
}

// seek fills prev with the rightmost node strictly before e at every level.
func (s *SkipList) seek(e Entry, prev *[maxHeight]*node) {
	walk := s.head
	for i := s.height - 1; i >= 0; i-- {
		for walk.next[i] != nil && before(walk.next[i].e, e) {
			walk = walk.next[i]
		}
		prev[i] = walk
	}
}

// Update inserts or moves a user to a new balance.
func (s *SkipList) Update(user core.UserID, coins int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byUser[user]; ok {
		s.unlink(user, old.e)
	}

	e := Entry{User: user, Coins: coins}
	var prev [maxHeight]*node
	s.seek(e, &prev)

	h := s.rollHeight()
	for s.height < h {
		prev[s.height] = s.head
		s.height++
	}

	n := &node{e: e}
	for i := 0; i < h; i++ {
		n.next[i] = prev[i].next[i]
		prev[i].next[i] = n
	}
	s.byUser[user] = n
}

func (s *SkipList) unlink(user core.UserID, e Entry) {
	var prev [maxHeight]*node
	s.seek(e, &prev)

	target := prev[0].next[0]
	if target == nil || target.e.User != user {
		return
	}
	for i := 0; i < s.height; i++ {
		if prev[i].next[i] == target {
			prev[i].next[i] = target.next[i]
		}
	}
	delete(s.byUser, user)
	for s.height > 1 && s.head.next[s.height-1] == nil {
		s.height--
	}
}

func (s *SkipList) Remove(user core.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.byUser[user]; ok {
		s.unlink(user, n.e)
	}
}

func (s *SkipList) TopN(n int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	out := make([]Entry, 0, n)
	for walk := s.head.next[0]; walk != nil && len(out) < n; walk = walk.next[0] {
		out = append(out, walk.e)
	}
	return out
}

func (s *SkipList) Get(user core.UserID) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n, ok := s.byUser[user]; ok {
		return n.e, true
	}
	return Entry{}, false
}

// Rank walks the base level to the user's node. O(n), acceptable for the
// occasional per-user standing lookup.
func (s *SkipList) Rank(user core.UserID) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.byUser[user]; !ok {
		return 0, false
	}
	rank := 1
	for walk := s.head.next[0]; walk != nil; walk = walk.next[0] {
		if walk.e.User == user {
			return rank, true
		}
		rank++
	}
	return 0, false
}

var _ Board = (*SkipList)(nil)
