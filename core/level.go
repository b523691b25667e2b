package core

// LevelCurve maps a cumulative coin balance to a level.
type LevelCurve struct {
	CoinsPerLevel int64 `json:"coins_per_level"`
	MaxLevel      int   `json:"max_level"`
}

// DefaultLevelCurve returns the stock progression: one level per 200 coins,
// capped at level 100.
func DefaultLevelCurve() LevelCurve {
	return LevelCurve{CoinsPerLevel: 200, MaxLevel: 100}
}

// Level computes level = min(floor(balance/coinsPerLevel)+1, maxLevel),
// never below 1.
func (c LevelCurve) Level(balance int64) int {
	if c.CoinsPerLevel <= 0 {
		return 1
	}
	if balance < 0 {
		balance = 0
	}
	lvl := int(balance/c.CoinsPerLevel) + 1
	if c.MaxLevel > 0 && lvl > c.MaxLevel {
		lvl = c.MaxLevel
	}
	if lvl < 1 {
		lvl = 1
	}
	return lvl
}

// Progress returns how far into the current level the balance is, 0-100.
func (c LevelCurve) Progress(balance int64) int {
	if c.CoinsPerLevel <= 0 {
		return 0
	}
	if balance < 0 {
		balance = 0
	}
	return int((balance % c.CoinsPerLevel) * 100 / c.CoinsPerLevel)
}

// CoinsToNext returns the coins still needed to reach the next level, zero at
// the level cap.
func (c LevelCurve) CoinsToNext(balance int64) int64 {
	if c.CoinsPerLevel <= 0 {
		return 0
	}
	lvl := c.Level(balance)
	if c.MaxLevel > 0 && lvl >= c.MaxLevel {
		return 0
	}
	return int64(lvl)*c.CoinsPerLevel - balance
}
