// Package progression holds the leveling curve: an exponential
// XP-per-level requirement and the rollover that settles a raw XP
// pool into (level, remainder).
package progression

import "math"

const (
	DefaultBase   = 100
	DefaultGrowth = 1.25

	// Hard stop for the rollover loop; protects against absurd pools
	// produced by bad data upstream.
	maxLevelUps = 1000
)

// Curve parameterizes the leveling curve. The zero value is not
// usable; construct with Default or from config.
type Curve struct {
	Base   float64
	Growth float64
}

func Default() Curve {
	return Curve{Base: DefaultBase, Growth: DefaultGrowth}
}

// XPRequired is the XP needed to advance from level to level+1.
// Levels are 1-indexed; anything below 1 is treated as 1.
func (c Curve) XPRequired(level int) int {
	if level < 1 {
		level = 1
	}
	return int(math.Round(c.Base * math.Pow(c.Growth, float64(level-1))))
}

// Settled is the result of ApplyLevelUps. XP is always strictly below
// XPRequired(Level).
type Settled struct {
	Level        int
	XP           int
	LevelsGained int
}

// ApplyLevelUps consumes as many level-ups as the pool supports.
// Applying it again to its own output changes nothing.
func (c Curve) ApplyLevelUps(level, xpPool int) Settled {
	if level < 1 {
		level = 1
	}
	if xpPool < 0 {
		xpPool = 0
	}

	gained := 0
	for gained < maxLevelUps {
		need := c.XPRequired(level)
		if need <= 0 || xpPool < need {
			break
		}
		xpPool -= need
		level++
		gained++
	}
	return Settled{Level: level, XP: xpPool, LevelsGained: gained}
}
