// Package progression implements passive accrual and level-up math for the
// player ledger. It mutates in-memory ledger rows only; callers persist.
package progression

// ExpCurve returns the experience required to advance past the given
// level. It must be monotonically increasing. The curve is injected so
// balance tuning never touches the accrual logic.
type ExpCurve func(level int) int64

// DefaultExpCurve is a quadratic curve: 100, 400, 900, ...
func DefaultExpCurve(level int) int64 {
	l := int64(level)
	return 100 * l * l
}

// Normalize applies the level-up loop: while exp covers the requirement
// for the current level, subtract it and advance. Returns the normalized
// level and exp plus the number of levels gained. Terminates in O(levels
// gained) because the curve is increasing.
func Normalize(level int, exp int64, curve ExpCurve) (int, int64, int) {
	gained := 0
	for exp >= curve(level) {
		exp -= curve(level)
		level++
		gained++
	}
	return level, exp, gained
}

// LevelMultiplier is the stat bonus factor a player's level grants on top
// of their base combat stats.
func LevelMultiplier(level int) float64 {
	return 1 + float64(level)/100
}
