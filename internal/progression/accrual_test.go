package progression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/ducyb294/TieuNgaoGiangHo/internal/model"
)

func newTestAccruer() *Accruer {
	return NewAccruer(1, 10, time.Hour, DefaultExpCurve)
}

func TestCatchUpExp(t *testing.T) {
	const base = int64(1_000_000_000)

	tests := []struct {
		name        string
		elapsed     time.Duration
		wantChanged bool
		wantExp     int64
		wantTS      int64
	}{
		{"no time passed", 0, false, 0, base},
		{"under a minute", 59 * time.Second, false, 0, base},
		{"exactly one minute", time.Minute, true, 1, base + 60_000},
		{"two and a half minutes keeps remainder", 150 * time.Second, true, 2, base + 120_000},
		{"an hour", time.Hour, true, 60, base + 3_600_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAccruer()
			u := &model.User{Level: 1, LastExpTimestamp: base}

			changed, _ := a.CatchUpExp(u, base+tt.elapsed.Milliseconds())
			assert.Equal(t, tt.wantChanged, changed)
			assert.Equal(t, tt.wantExp, u.Exp)
			assert.Equal(t, tt.wantTS, u.LastExpTimestamp)
		})
	}
}

func TestCatchUpExp_LevelsUp(t *testing.T) {
	a := newTestAccruer()
	// 100 exp needed past level 1; 150 minutes grants 150 exp.
	u := &model.User{Level: 1, LastExpTimestamp: 0}

	changed, gained := a.CatchUpExp(u, 150*60_000)
	assert.True(t, changed)
	assert.Equal(t, 1, gained)
	assert.Equal(t, 2, u.Level)
	assert.Equal(t, int64(50), u.Exp)
}

func TestCatchUpExp_Idempotent(t *testing.T) {
	a := newTestAccruer()
	u := &model.User{Level: 1, LastExpTimestamp: 0}
	now := int64(90 * 60_000)

	changed, _ := a.CatchUpExp(u, now)
	assert.True(t, changed)

	exp, level, ts := u.Exp, u.Level, u.LastExpTimestamp
	changed, _ = a.CatchUpExp(u, now)
	assert.False(t, changed)
	assert.Equal(t, exp, u.Exp)
	assert.Equal(t, level, u.Level)
	assert.Equal(t, ts, u.LastExpTimestamp)
}

func TestCatchUpStamina(t *testing.T) {
	const base = int64(1_000_000_000)
	hour := time.Hour.Milliseconds()

	tests := []struct {
		name        string
		stamina     int
		elapsed     int64
		wantChanged bool
		wantStamina int
		wantTS      int64
	}{
		{"under an interval", 5, hour - 1, false, 5, base},
		{"one interval", 5, hour, true, 6, base + hour},
		{"three intervals", 5, 3 * hour, true, 8, base + 3*hour},
		{"clamped at cap", 5, 48 * hour, true, 10, base + 48*hour},
		{"at cap refreshes checkpoint", 10, 5 * hour, true, 10, base + 5*hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAccruer()
			u := &model.User{Stamina: tt.stamina, LastStaminaTS: base}

			changed := a.CatchUpStamina(u, base+tt.elapsed)
			assert.Equal(t, tt.wantChanged, changed)
			assert.Equal(t, tt.wantStamina, u.Stamina)
			assert.Equal(t, tt.wantTS, u.LastStaminaTS)
		})
	}
}

func TestCatchUpStamina_Idempotent(t *testing.T) {
	a := newTestAccruer()
	u := &model.User{Stamina: 2, LastStaminaTS: 0}
	now := 10 * time.Hour.Milliseconds()

	a.CatchUpStamina(u, now)
	stamina, ts := u.Stamina, u.LastStaminaTS

	changed := a.CatchUpStamina(u, now)
	assert.False(t, changed)
	assert.Equal(t, stamina, u.Stamina)
	assert.Equal(t, ts, u.LastStaminaTS)
}

func TestNormalize_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		level := rapid.IntRange(1, 200).Draw(t, "level")
		exp := rapid.Int64Range(0, 50_000_000).Draw(t, "exp")

		newLevel, newExp, gained := Normalize(level, exp, DefaultExpCurve)

		assert.GreaterOrEqual(t, newLevel, level)
		assert.Equal(t, newLevel-level, gained)
		assert.GreaterOrEqual(t, newExp, int64(0))
		assert.Less(t, newExp, DefaultExpCurve(newLevel))
	})
}

func TestAddExp(t *testing.T) {
	a := newTestAccruer()
	u := &model.User{Level: 1}

	gained := a.AddExp(u, 550)
	// 550 = 100 (level 1) + 400 (level 2) + 50 remainder.
	assert.Equal(t, 2, gained)
	assert.Equal(t, 3, u.Level)
	assert.Equal(t, int64(50), u.Exp)

	assert.Equal(t, 0, a.AddExp(u, 0))
	assert.Equal(t, 0, a.AddExp(u, -5))
}
