package analytics

import (
	"sync"

	"wellkit/core"
)

// Metrics aggregates coin flow and unlock counters from the event stream.
type Metrics struct {
	mu sync.Mutex

	coinsAwardedByDay      map[string]int64
	coinsAwardedByCategory map[string]int64
	coinsSpentByDay        map[string]int64
	badgeUnlocks           map[string]int64
	questCompletions       map[string]int64
	levelUps               int64
	streakAdvances         int64
}

func NewMetrics() *Metrics {
	return &Metrics{
		coinsAwardedByDay:      map[string]int64{},
		coinsAwardedByCategory: map[string]int64{},
		coinsSpentByDay:        map[string]int64{},
		badgeUnlocks:           map[string]int64{},
		questCompletions:       map[string]int64{},
	}
}

func (m *Metrics) OnEvent(e core.Event) {
	day := e.Time.UTC().Format("2006-01-02")
	m.mu.Lock()
	defer m.mu.Unlock()
	switch e.Type {
	case core.EventCoinsAwarded:
		m.coinsAwardedByDay[day] += e.Amount
		if e.Category != "" {
			m.coinsAwardedByCategory[e.Category] += e.Amount
		}
	case core.EventCoinsSpent:
		m.coinsSpentByDay[day] += e.Amount
	case core.EventBadgeUnlocked:
		m.badgeUnlocks[e.Badge]++
	case core.EventQuestCompleted:
		m.questCompletions[e.Quest]++
	case core.EventLevelUp:
		m.levelUps++
	case core.EventStreakAdvanced:
		m.streakAdvances++
	}
}

// Snapshot is a point-in-time copy of the aggregated counters.
type Snapshot struct {
	CoinsAwardedByDay      map[string]int64 `json:"coinsAwardedByDay"`
	CoinsAwardedByCategory map[string]int64 `json:"coinsAwardedByCategory"`
	CoinsSpentByDay        map[string]int64 `json:"coinsSpentByDay"`
	BadgeUnlocks           map[string]int64 `json:"badgeUnlocks"`
	QuestCompletions       map[string]int64 `json:"questCompletions"`
	LevelUps               int64            `json:"levelUps"`
	StreakAdvances         int64            `json:"streakAdvances"`
}

func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		CoinsAwardedByDay:      copyCounts(m.coinsAwardedByDay),
		CoinsAwardedByCategory: copyCounts(m.coinsAwardedByCategory),
		CoinsSpentByDay:        copyCounts(m.coinsSpentByDay),
		BadgeUnlocks:           copyCounts(m.badgeUnlocks),
		QuestCompletions:       copyCounts(m.questCompletions),
		LevelUps:               m.levelUps,
		StreakAdvances:         m.streakAdvances,
	}
}

func copyCounts(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
