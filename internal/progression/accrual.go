package progression

import (
	"time"

	"github.com/ducyb294/TieuNgaoGiangHo/internal/model"
)

const minuteMs = int64(time.Minute / time.Millisecond)

// Accruer computes passive experience and stamina catch-up for a ledger
// row. All methods are pure in-memory mutations; callers write back.
type Accruer struct {
	expPerMinute int64
	maxStamina   int
	staminaMs    int64
	curve        ExpCurve
}

// NewAccruer creates an Accruer with the given tunables.
func NewAccruer(expPerMinute int64, maxStamina int, staminaInterval time.Duration, curve ExpCurve) *Accruer {
	if curve == nil {
		curve = DefaultExpCurve
	}
	return &Accruer{
		expPerMinute: expPerMinute,
		maxStamina:   maxStamina,
		staminaMs:    staminaInterval.Milliseconds(),
		curve:        curve,
	}
}

// MaxStamina returns the stamina cap.
func (a *Accruer) MaxStamina() int {
	return a.maxStamina
}

// ExpIntervalMs is the passive-exp tick length in milliseconds.
func (a *Accruer) ExpIntervalMs() int64 {
	return minuteMs
}

// StaminaIntervalMs is the stamina regen interval in milliseconds.
func (a *Accruer) StaminaIntervalMs() int64 {
	return a.staminaMs
}

// Curve returns the experience curve in use.
func (a *Accruer) Curve() ExpCurve {
	return a.curve
}

// CatchUpExp grants one unit of passive exp per whole elapsed minute since
// the checkpoint, then normalizes level. The checkpoint advances by whole
// minutes only, so a sub-minute remainder carries into the next call.
// Returns whether anything changed and how many levels were gained.
func (a *Accruer) CatchUpExp(u *model.User, nowMs int64) (changed bool, levelsGained int) {
	elapsed := nowMs - u.LastExpTimestamp
	if elapsed < minuteMs {
		return false, 0
	}
	minutes := elapsed / minuteMs

	u.Exp += minutes * a.expPerMinute
	u.LastExpTimestamp += minutes * minuteMs

	u.Level, u.Exp, levelsGained = Normalize(u.Level, u.Exp, a.curve)
	return true, levelsGained
}

// CatchUpStamina regenerates one stamina per whole elapsed interval, capped
// at the maximum. At the cap the checkpoint is refreshed to now without
// granting stamina, so the timestamp never drifts unboundedly behind.
func (a *Accruer) CatchUpStamina(u *model.User, nowMs int64) bool {
	if u.Stamina >= a.maxStamina {
		if u.LastStaminaTS == nowMs {
			return false
		}
		u.LastStaminaTS = nowMs
		return true
	}

	elapsed := nowMs - u.LastStaminaTS
	if elapsed < a.staminaMs {
		return false
	}
	gained := elapsed / a.staminaMs

	u.Stamina += int(gained)
	if u.Stamina >= a.maxStamina {
		u.Stamina = a.maxStamina
		u.LastStaminaTS = nowMs
	} else {
		u.LastStaminaTS += gained * a.staminaMs
	}
	return true
}

// AddExp credits experience from an active source (farm, challenge reward)
// and normalizes. Returns levels gained for notification.
func (a *Accruer) AddExp(u *model.User, amount int64) int {
	if amount <= 0 {
		return 0
	}
	u.Exp += amount
	var gained int
	u.Level, u.Exp, gained = Normalize(u.Level, u.Exp, a.curve)
	return gained
}
