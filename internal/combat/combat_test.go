package combat

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/ducyb294/TieuNgaoGiangHo/internal/model"
)

func rng() *rand.Rand {
	return rand.New(rand.NewSource(1))
}

// plain returns a combatant with no dodge/crit so damage is deterministic.
func plain(name string, atk, def, hp float64) Stats {
	return Stats{Name: name, Attack: atk, Defense: def, Health: hp, Priority: -1}
}

func TestFirstAttacker(t *testing.T) {
	tests := []struct {
		name string
		a, b Stats
		want int
	}{
		{
			"priority wins over level",
			Stats{Priority: 2, Level: 1},
			Stats{Priority: 1, Level: 50},
			0,
		},
		{
			"equal priority falls through to level",
			Stats{Priority: 1, Level: 3},
			Stats{Priority: 1, Level: 7},
			1,
		},
		{
			"unset priority compares level",
			Stats{Priority: -1, Level: 9},
			Stats{Priority: -1, Level: 2},
			0,
		},
		{
			"equal level compares exp",
			Stats{Priority: -1, Level: 5, Exp: 10},
			Stats{Priority: -1, Level: 5, Exp: 90},
			1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, firstAttacker(tt.a, tt.b, rng()))
		})
	}
}

func TestSimulate_StrongerSideWins(t *testing.T) {
	a := plain("a", 100, 10, 200)
	b := plain("b", 20, 10, 200)

	res := Simulate(a, b, rng())
	assert.Equal(t, 0, res.Winner)
	assert.Equal(t, float64(0), res.RemainingHP[1])
	assert.Greater(t, res.RemainingHP[0], float64(0))
	assert.NotEmpty(t, res.Log)
}

func TestSimulate_StopsAtZeroHP(t *testing.T) {
	// a one-shots b: the exchange ends after a single attack.
	a := plain("a", 1000, 0, 100)
	a.Level = 2
	b := plain("b", 1000, 0, 100)
	b.Level = 1

	res := Simulate(a, b, rng())
	assert.Equal(t, 0, res.Winner)
	assert.Equal(t, 1, res.Rounds)
	assert.Equal(t, float64(100), res.RemainingHP[0])
}

func TestSimulate_RoundCapMoreHPWins(t *testing.T) {
	// Both chip 1 damage per attack; b has more HP at the cap.
	a := plain("a", 1, 50, 100)
	a.Level = 2
	b := plain("b", 1, 50, 120)
	b.Level = 1

	res := Simulate(a, b, rng())
	assert.Equal(t, MaxRounds, res.Rounds)
	assert.Equal(t, 1, res.Winner)
}

func TestSimulate_RoundCapExactTieGoesToSecondAttacker(t *testing.T) {
	// Identical chip damage and HP: 25 hits each over 50 rounds leaves an
	// exact tie, which the second attacker wins.
	a := plain("a", 1, 50, 1000)
	a.Level = 2
	b := plain("b", 1, 50, 1000)
	b.Level = 1

	res := Simulate(a, b, rng())
	assert.Equal(t, MaxRounds, res.Rounds)
	assert.Equal(t, 0, res.FirstAttacker)
	assert.Equal(t, res.RemainingHP[0], res.RemainingHP[1])
	assert.Equal(t, 1, res.Winner)
}

func TestSimulate_MinimumDamageIsOne(t *testing.T) {
	// Defense far above attack still chips at least 1 per hit.
	a := plain("a", 1, 0, 10)
	a.Level = 2
	b := plain("b", 1, 1000, 10)
	b.Level = 1

	res := Simulate(a, b, rng())
	// 10 HP each, 1 damage per hit, a strikes first: a wins on round 19.
	assert.Equal(t, 0, res.Winner)
	assert.Equal(t, 19, res.Rounds)
}

func TestSimulate_ArmorMath(t *testing.T) {
	attacker := plain("a", 100, 0, 10)
	attacker.ArmorPenetration = 50
	defender := plain("b", 0, 40, 1000)
	defender.ArmorResistance = 100

	// effective defense = 40 * (1 + 100/100) * (1 - 50/100) = 40.
	// damage = max(1, 100 - 40) = 60.
	hp := defender.Health
	attackOnce(&attacker, &defender, &hp, rng())
	assert.Equal(t, float64(940), hp)
}

func TestSimulate_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := Stats{
			Name:     "a",
			Attack:   float64(rapid.IntRange(1, 500).Draw(t, "atkA")),
			Defense:  float64(rapid.IntRange(0, 200).Draw(t, "defA")),
			Health:   float64(rapid.IntRange(1, 2000).Draw(t, "hpA")),
			Dodge:    float64(rapid.IntRange(0, 80).Draw(t, "dodgeA")),
			CritRate: float64(rapid.IntRange(0, 100).Draw(t, "critA")),
			Priority: -1,
			Level:    rapid.IntRange(1, 100).Draw(t, "lvlA"),
		}
		b := Stats{
			Name:     "b",
			Attack:   float64(rapid.IntRange(1, 500).Draw(t, "atkB")),
			Defense:  float64(rapid.IntRange(0, 200).Draw(t, "defB")),
			Health:   float64(rapid.IntRange(1, 2000).Draw(t, "hpB")),
			Accuracy: float64(rapid.IntRange(0, 80).Draw(t, "accB")),
			Priority: -1,
			Level:    rapid.IntRange(1, 100).Draw(t, "lvlB"),
		}
		seed := rapid.Int64().Draw(t, "seed")

		res := Simulate(a, b, rand.New(rand.NewSource(seed)))

		assert.Contains(t, []int{0, 1}, res.Winner)
		assert.LessOrEqual(t, res.Rounds, MaxRounds)
		assert.GreaterOrEqual(t, res.RemainingHP[0], float64(0))
		assert.GreaterOrEqual(t, res.RemainingHP[1], float64(0))
		// The loser is at zero HP unless the cap was reached.
		if res.Rounds < MaxRounds {
			assert.Equal(t, float64(0), res.RemainingHP[1-res.Winner])
		}
		assert.Len(t, res.Log, res.Rounds)

		// Same inputs and seed replay identically.
		res2 := Simulate(a, b, rand.New(rand.NewSource(seed)))
		assert.Equal(t, res, res2)
	})
}

func TestFromUser_AppliesLevelBonus(t *testing.T) {
	u := &model.User{
		BaseName: "Alice",
		Level:    50,
		Attack:   100,
		Defense:  40,
		Health:   200,
		Dodge:    12.5,
	}

	s := FromUser(u)
	assert.Equal(t, float64(150), s.Attack)
	assert.Equal(t, float64(60), s.Defense)
	assert.Equal(t, float64(300), s.Health)
	assert.Equal(t, 12.5, s.Dodge)
	assert.Equal(t, -1, s.Priority)
}
