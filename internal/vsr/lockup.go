package vsr

import (
	"fmt"
	"math"
)

// LockupKind is the release schedule of a deposit
type LockupKind uint8

const (
	LockupNone LockupKind = iota
	LockupCliff
	LockupConstant
	LockupVesting
	LockupMonthly
)

var lockupKindNames = [...]string{"None", "Cliff", "Constant", "Vesting", "Monthly"}

// String returns the display name of the kind
func (k LockupKind) String() string {
	if int(k) < len(lockupKindNames) {
		return lockupKindNames[k]
	}
	return fmt.Sprintf("Unknown(%d)", uint8(k))
}

// Lockup is the lock schedule attached to a deposit, timestamps in unix seconds
type Lockup struct {
	Kind    LockupKind
	StartTs int64
	EndTs   int64
}

const (
	// SaturationSecs is the remaining lock time at which the bonus stops growing
	SaturationSecs = 31_536_000

	baseUnits     = 1_000_000_000
	maxExtraUnits = 3_000_000_000

	// tuningFactor is calibrated against multipliers shown by the realms UI.
	// Do not change without new calibration data.
	tuningFactor = 0.985

	// Calendar window outside of which lockup timestamps are treated as garbage.
	minSaneTs = 1577836800 // 2020-01-01
	maxSaneTs = 1893456000 // 2030-01-01
)

// Multiplier returns the voting power multiplier of a lockup at now.
// The result is rounded to 3 decimals; kind None always yields exactly 1.0.
func Multiplier(l Lockup, now int64) float64 {
	if l.Kind == LockupNone {
		return 1.0
	}

	duration := max(l.EndTs-l.StartTs, 1)
	remaining := max(l.EndTs-now, 0)

	var bonus float64
	switch l.Kind {
	case LockupCliff, LockupMonthly:
		ratio := math.Min(1, float64(remaining)/SaturationSecs)
		bonus = maxExtraUnits * ratio
	case LockupConstant, LockupVesting:
		unlockedRatio := math.Min(1, math.Max(0, float64(now-l.StartTs)/float64(duration)))
		lockedRatio := 1 - unlockedRatio
		ratio := math.Min(1, lockedRatio*float64(duration)/SaturationSecs)
		bonus = maxExtraUnits * ratio
	}

	raw := (baseUnits + bonus) / 1e9
	return math.Round(raw*tuningFactor*1000) / 1000
}

// saneLockup builds a lockup from raw slot values, reporting false when the
// values cannot describe a real lockup.
func saneLockup(kind byte, startTs, endTs uint64) (Lockup, bool) {
	if kind < byte(LockupCliff) || kind > byte(LockupMonthly) {
		return Lockup{}, false
	}
	if startTs <= minSaneTs || endTs <= minSaneTs || endTs >= maxSaneTs || startTs >= endTs {
		return Lockup{}, false
	}
	return Lockup{Kind: LockupKind(kind), StartTs: int64(startTs), EndTs: int64(endTs)}, true
}
