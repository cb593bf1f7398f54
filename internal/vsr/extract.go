package vsr

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Classification describes the lock state of a decoded deposit
type Classification string

const (
	ClassUnlocked      Classification = "unlocked"
	ClassActiveLockup  Classification = "active_lockup"
	ClassExpiredLockup Classification = "expired_lockup"
)

// LockupDetails is the human readable view of the lockup applied to a deposit
type LockupDetails struct {
	Type              string `json:"type"`
	IsActive          bool   `json:"isActive"`
	StartDate         string `json:"startDate"`
	EndDate           string `json:"endDate"`
	RemainingDays     int64  `json:"remainingDays"`
	TotalDurationDays int64  `json:"totalDurationDays"`
}

// DepositRecord is a genuine stake deposit decoded from a voter account
type DepositRecord struct {
	Amount         float64        `json:"amount"`
	Multiplier     float64        `json:"multiplier"`
	Power          float64        `json:"power"`
	IsLocked       bool           `json:"isLocked"`
	Classification Classification `json:"classification"`
	LockupDetails  *LockupDetails `json:"lockupDetails"`
	SourceOffset   int            `json:"offset"`
}

// ShadowRecord is a deposit-shaped delegation marker. It never counts as power.
type ShadowRecord struct {
	Amount       float64 `json:"amount"`
	Kind         string  `json:"type"`
	SourceOffset int     `json:"offset"`
	Note         string  `json:"note"`
}

// SkipReason explains why a slot produced no record
type SkipReason string

const (
	SkipOutOfBounds SkipReason = "out_of_bounds"
	SkipDuplicate   SkipReason = "duplicate"
	SkipOutOfRange  SkipReason = "out_of_range"
	SkipPhantom     SkipReason = "phantom"
	SkipStale       SkipReason = "stale"
)

// SkippedSlot records a slot that was filtered out
type SkippedSlot struct {
	Offset int
	Amount float64
	Reason SkipReason
}

// Extraction is the classified content of one voter account buffer
type Extraction struct {
	Deposits []DepositRecord
	Shadows  []ShadowRecord
	Skipped  []SkippedSlot
}

const delegationMarker = "delegation_marker"

// Extract decodes a voter account buffer with the VoterV1 layout
func Extract(data []byte, now int64) Extraction {
	return VoterV1.Extract(data, now)
}

// Extract decodes deposits from data. Deposit slots are processed before
// direct slots, each in table order, since dedup and phantom decisions depend
// on what earlier slots already claimed.
func (l *Layout) Extract(data []byte, now int64) Extraction {
	x := &extractor{
		layout:  l,
		data:    data,
		now:     now,
		claimed: make(map[int64]struct{}),
	}
	for _, slot := range l.DepositSlots {
		x.depositSlot(slot)
	}
	for _, slot := range l.DirectSlots {
		x.directSlot(slot)
	}
	return x.out
}

// extractor holds the state of a single buffer decode
type extractor struct {
	layout  *Layout
	data    []byte
	now     int64
	claimed map[int64]struct{}
	out     Extraction
}

func (x *extractor) depositSlot(slot DepositSlot) {
	offset := slot.AmountOffset
	amount, key, ok := x.candidate(offset, x.layout.LockupRange)
	if !ok {
		return
	}
	if x.shadow(offset, amount, key) {
		return
	}
	if x.stale(offset) {
		x.skip(offset, amount, SkipStale)
		return
	}

	multiplier, lockup := x.bestLockup(slot.Lockups)
	x.emit(offset, amount, key, multiplier, lockup)
}

func (x *extractor) directSlot(slot DirectSlot) {
	offset := slot.Offset
	amount, key, ok := x.candidate(offset, x.layout.DirectRange)
	if !ok {
		return
	}
	if x.phantom(slot) {
		x.skip(offset, amount, SkipPhantom)
		return
	}
	if x.shadow(offset, amount, key) {
		return
	}
	if x.stale(offset) {
		x.skip(offset, amount, SkipStale)
		return
	}

	x.emit(offset, amount, key, 1.0, nil)
}

// candidate reads the amount at offset and applies the bounds, dedup and range
// filters shared by every slot kind.
func (x *extractor) candidate(offset int, r AmountRange) (float64, int64, bool) {
	raw, ok := readU64(x.data, offset)
	if !ok {
		x.skip(offset, 0, SkipOutOfBounds)
		return 0, 0, false
	}

	amount := float64(raw) / x.layout.Decimals
	key := int64(math.Round(amount * 1000))
	if _, seen := x.claimed[key]; seen {
		x.skip(offset, amount, SkipDuplicate)
		return 0, 0, false
	}
	if !r.Contains(amount) {
		x.skip(offset, amount, SkipOutOfRange)
		return 0, 0, false
	}
	return amount, key, true
}

func (x *extractor) shadow(offset int, amount float64, key int64) bool {
	rounded := int64(math.Round(amount))
	if !x.layout.IsShadowMarker(rounded) {
		return false
	}
	x.out.Shadows = append(x.out.Shadows, ShadowRecord{
		Amount:       amount,
		Kind:         delegationMarker,
		SourceOffset: offset,
		Note:         fmt.Sprintf("%d token delegation/shadow marker", rounded),
	})
	x.claimed[key] = struct{}{}
	return true
}

// stale does not claim the amount: a later slot holding the same value may
// still be a live deposit.
func (x *extractor) stale(offset int) bool {
	for _, delta := range x.layout.StaleFlagDeltas {
		if flag, ok := readByte(x.data, offset+delta); ok && flag == 1 {
			return true
		}
	}
	return false
}

func (x *extractor) phantom(slot DirectSlot) bool {
	for _, other := range slot.Overlaps {
		raw, ok := readU64(x.data, other)
		if ok && float64(raw)/x.layout.Decimals >= x.layout.DirectRange.Min {
			return true
		}
	}
	return false
}

// bestLockup returns the highest multiplier among valid candidates. Candidates
// that do not beat 1.0 are ignored, ties keep the first found.
func (x *extractor) bestLockup(slots []LockupSlot) (float64, *Lockup) {
	best := 1.0
	var chosen *Lockup
	for _, s := range slots {
		lockup, ok := x.lockupAt(s)
		if !ok {
			continue
		}
		if m := Multiplier(lockup, x.now); m > best {
			best = m
			chosen = &lockup
		}
	}
	return best, chosen
}

func (x *extractor) lockupAt(s LockupSlot) (Lockup, bool) {
	kind, ok := readByte(x.data, s.KindOffset)
	if !ok {
		return Lockup{}, false
	}
	start, ok := readU64(x.data, s.StartOffset)
	if !ok {
		return Lockup{}, false
	}
	end, ok := readU64(x.data, s.EndOffset)
	if !ok {
		return Lockup{}, false
	}
	return saneLockup(kind, start, end)
}

func (x *extractor) emit(offset int, amount float64, key int64, multiplier float64, lockup *Lockup) {
	x.claimed[key] = struct{}{}

	rec := DepositRecord{
		Amount:         amount,
		Multiplier:     multiplier,
		Power:          amount * multiplier,
		IsLocked:       multiplier > 1.0,
		Classification: ClassUnlocked,
		SourceOffset:   offset,
	}
	if lockup != nil {
		rec.Classification = ClassExpiredLockup
		if lockup.EndTs > x.now {
			rec.Classification = ClassActiveLockup
		}
		rec.LockupDetails = describe(*lockup, x.now)
	}
	x.out.Deposits = append(x.out.Deposits, rec)
}

func (x *extractor) skip(offset int, amount float64, reason SkipReason) {
	x.out.Skipped = append(x.out.Skipped, SkippedSlot{Offset: offset, Amount: amount, Reason: reason})
}

const secsPerDay = 86400

func describe(l Lockup, now int64) *LockupDetails {
	remaining := max(l.EndTs-now, 0)
	return &LockupDetails{
		Type:              l.Kind.String(),
		IsActive:          l.EndTs > now,
		StartDate:         time.Unix(l.StartTs, 0).UTC().Format(time.DateOnly),
		EndDate:           time.Unix(l.EndTs, 0).UTC().Format(time.DateOnly),
		RemainingDays:     ceilDiv(remaining, secsPerDay),
		TotalDurationDays: ceilDiv(l.EndTs-l.StartTs, secsPerDay),
	}
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}

func readU64(data []byte, offset int) (uint64, bool) {
	if offset < 0 || offset+8 > len(data) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(data[offset:]), true
}

func readByte(data []byte, offset int) (byte, bool) {
	if offset < 0 || offset >= len(data) {
		return 0, false
	}
	return data[offset], true
}
