// Package combat implements the deterministic-random duel resolver used by
// the dungeon guardian challenge. It has no side effects on persisted
// state; the caller decides what a win means.
package combat

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/ducyb294/TieuNgaoGiangHo/internal/model"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/progression"
)

// MaxRounds caps the exchange so two tanks cannot loop forever.
const MaxRounds = 50

const critMultiplier = 1.5

// Stats is one combatant's effective stat block.
type Stats struct {
	Name             string
	Attack           float64
	Defense          float64
	Health           float64
	Dodge            float64
	Accuracy         float64
	CritRate         float64
	CritResistance   float64
	ArmorPenetration float64
	ArmorResistance  float64

	// Priority breaks the first-attacker decision ahead of level and exp.
	// Negative means unset.
	Priority int
	Level    int
	Exp      int64
}

// FromUser builds a stat block from a ledger row, applying the level bonus
// to the flat stats.
func FromUser(u *model.User) Stats {
	mult := progression.LevelMultiplier(u.Level)
	return Stats{
		Name:             u.BaseName,
		Attack:           float64(u.Attack) * mult,
		Defense:          float64(u.Defense) * mult,
		Health:           float64(u.Health) * mult,
		Dodge:            u.Dodge,
		Accuracy:         u.Accuracy,
		CritRate:         u.CritRate,
		CritResistance:   u.CritResistance,
		ArmorPenetration: u.ArmorPenetration,
		ArmorResistance:  u.ArmorResistance,
		Priority:         -1,
		Level:            u.Level,
		Exp:              u.Exp,
	}
}

// Result is the outcome of one simulated exchange.
type Result struct {
	// Winner is 0 or 1, indexing the Simulate arguments.
	Winner int
	// FirstAttacker is 0 or 1.
	FirstAttacker int
	Rounds        int
	RemainingHP   [2]float64
	Log           []string
}

// Simulate resolves a duel between a and b. The rng is injected so callers
// control determinism; tests pass a seeded source.
func Simulate(a, b Stats, rng *rand.Rand) Result {
	fighters := [2]Stats{a, b}
	first := firstAttacker(a, b, rng)

	hp := [2]float64{a.Health, b.Health}
	var log []string

	res := Result{FirstAttacker: first}
	attacker := first
	for round := 1; round <= MaxRounds; round++ {
		defender := 1 - attacker
		res.Rounds = round

		entry := attackOnce(&fighters[attacker], &fighters[defender], &hp[defender], rng)
		log = append(log, fmt.Sprintf("round %d: %s", round, entry))

		if hp[defender] <= 0 {
			res.Winner = attacker
			res.RemainingHP = hp
			res.Log = log
			return res
		}
		attacker = defender
	}

	// Round cap reached with both alive: more HP wins, an exact tie goes
	// to the side that attacked second.
	res.RemainingHP = hp
	res.Log = log
	if hp[first] > hp[1-first] {
		res.Winner = first
	} else {
		res.Winner = 1 - first
	}
	return res
}

// firstAttacker picks who opens: priority, then level, then exp, then a
// coin flip.
func firstAttacker(a, b Stats, rng *rand.Rand) int {
	if a.Priority >= 0 && b.Priority >= 0 && a.Priority != b.Priority {
		if a.Priority > b.Priority {
			return 0
		}
		return 1
	}
	if a.Level != b.Level {
		if a.Level > b.Level {
			return 0
		}
		return 1
	}
	if a.Exp != b.Exp {
		if a.Exp > b.Exp {
			return 0
		}
		return 1
	}
	return rng.Intn(2)
}

// attackOnce resolves a single attack, mutating the defender's HP, and
// returns a log line.
func attackOnce(attacker, defender *Stats, defenderHP *float64, rng *rand.Rand) string {
	effectiveDodge := math.Max(defender.Dodge-attacker.Accuracy, 0)
	if roll := rng.Float64() * 100; roll > 100-effectiveDodge {
		return fmt.Sprintf("%s attacks, %s dodges", attacker.Name, defender.Name)
	}

	critChance := clamp(attacker.CritRate-defender.CritResistance, 0, 100)
	crit := rng.Float64()*100 < critChance

	effectiveDefense := defender.Defense *
		(1 + defender.ArmorResistance/100) *
		(1 - attacker.ArmorPenetration/100)
	baseDamage := math.Max(1, attacker.Attack-effectiveDefense)

	damage := baseDamage
	if crit {
		damage = baseDamage * critMultiplier
	}
	damage = math.Max(1, math.Round(damage))

	*defenderHP = math.Max(0, *defenderHP-damage)
	if crit {
		return fmt.Sprintf("%s crits %s for %.0f (%.0f HP left)", attacker.Name, defender.Name, damage, *defenderHP)
	}
	return fmt.Sprintf("%s hits %s for %.0f (%.0f HP left)", attacker.Name, defender.Name, damage, *defenderHP)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
