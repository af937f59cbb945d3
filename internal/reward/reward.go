// Package reward converts an activity's kind and difficulty into an
// XP reward triple, optionally with a random bonus multiplier.
package reward

import (
	"math"
	"math/rand"
	"sync"
)

// Kind is the activity class a reward is computed for.
type Kind string

const (
	KindQuest     Kind = "quest"
	KindSideQuest Kind = "sidequest"
	KindTask      Kind = "task"
)

const (
	baseRateQuest     = 1.0
	baseRateSideQuest = 0.75
	baseRateTask      = 0.5

	bonusMin = 0.75
	bonusMax = 1.25
)

// Reward is the computed triple. Bonus is Final-Initial and can be
// negative when the multiplier lands below 1.
type Reward struct {
	Initial    int     `json:"initial_reward"`
	Bonus      int     `json:"bonus_amount"`
	Final      int     `json:"final_reward"`
	Multiplier float64 `json:"bonus_multiplier"`
}

// Calculator draws bonus multipliers from its own rand source so runs
// can be seeded deterministically.
type Calculator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a calculator backed by rng. A nil rng gets a fresh
// time-seeded source.
func New(rng *rand.Rand) *Calculator {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Calculator{rng: rng}
}

// Compute maps (kind, difficulty, bonus) to a reward triple.
// Difficulty is clamped to [1,100]. With bonus enabled the multiplier
// is uniform in [0.75,1.25]; callers must not expect the result to be
// reproducible.
func (c *Calculator) Compute(kind Kind, difficulty int, bonus bool) Reward {
	if difficulty < 1 {
		difficulty = 1
	}
	if difficulty > 100 {
		difficulty = 100
	}

	initial := roundNonNegative(float64(difficulty) * baseRate(kind))

	multiplier := 1.0
	if bonus {
		c.mu.Lock()
		multiplier = bonusMin + c.rng.Float64()*(bonusMax-bonusMin)
		c.mu.Unlock()
	}

	final := roundNonNegative(float64(initial) * multiplier)
	return Reward{
		Initial:    initial,
		Bonus:      final - initial,
		Final:      final,
		Multiplier: multiplier,
	}
}

func baseRate(kind Kind) float64 {
	switch kind {
	case KindQuest:
		return baseRateQuest
	case KindSideQuest:
		return baseRateSideQuest
	default:
		return baseRateTask
	}
}

func roundNonNegative(v float64) int {
	r := int(math.Round(v))
	if r < 0 {
		return 0
	}
	return r
}
