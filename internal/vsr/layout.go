package vsr

import "github.com/gagliardetto/solana-go"

// LockupSlot locates one candidate lockup triple inside a voter account
type LockupSlot struct {
	StartOffset int
	EndOffset   int
	KindOffset  int
}

// DepositSlot is an amount offset followed by the lockup candidates that may
// describe it. Candidates are shared between neighbouring slots.
type DepositSlot struct {
	AmountOffset int
	Lockups      []LockupSlot
}

// DirectSlot is an amount offset that never carries a lockup.
// Overlaps lists direct offsets whose structure covers this slot: when any of
// them decodes to at least the direct minimum, this slot is a phantom.
type DirectSlot struct {
	Offset   int
	Overlaps []int
}

// AmountRange is an inclusive range of token amounts
type AmountRange struct {
	Min float64
	Max float64
}

// Contains reports whether amount lies within the range
func (r AmountRange) Contains(amount float64) bool {
	return amount >= r.Min && amount <= r.Max
}

// Layout describes where deposits live in one version of the voter account and
// which heuristics filter noise out of it.
type Layout struct {
	Version         string
	AccountSize     int
	AuthorityOffset int

	DepositSlots []DepositSlot
	DirectSlots  []DirectSlot

	LockupRange AmountRange
	DirectRange AmountRange

	// StaleFlagDeltas are positions relative to an amount offset where a byte
	// equal to 1 marks the deposit as withdrawn.
	StaleFlagDeltas []int

	// ShadowMarkers are whole-token amounts used for delegation bookkeeping.
	ShadowMarkers []int64

	// Decimals of the governing token mint.
	Decimals float64
}

// IsShadowMarker reports whether amount rounds to a reserved marker amount
func (l *Layout) IsShadowMarker(rounded int64) bool {
	for _, m := range l.ShadowMarkers {
		if m == rounded {
			return true
		}
	}
	return false
}

// VoterV1 is the voter account layout observed on IslandDAO's registrar.
// Offsets are empirical; the account is not decoded against an IDL.
var VoterV1 = Layout{
	Version:         "voter-v1",
	AccountSize:     2728,
	AuthorityOffset: 8,
	DepositSlots: []DepositSlot{
		{AmountOffset: 184, Lockups: []LockupSlot{{152, 160, 168}, {232, 240, 248}}},
		{AmountOffset: 264, Lockups: []LockupSlot{{232, 240, 248}, {312, 320, 328}}},
		{AmountOffset: 344, Lockups: []LockupSlot{{312, 320, 328}, {392, 400, 408}}},
		{AmountOffset: 424, Lockups: []LockupSlot{{392, 400, 408}}},
	},
	DirectSlots: []DirectSlot{
		{Offset: 104},
		{Offset: 112, Overlaps: []int{104}},
	},
	LockupRange:     AmountRange{Min: 50, Max: 20_000_000},
	DirectRange:     AmountRange{Min: 1000, Max: 20_000_000},
	StaleFlagDeltas: []int{-8, -1, 8, 1},
	ShadowMarkers:   []int64{1000, 2000, 11000},
	Decimals:        1e6,
}

// Authority returns the authority key of a voter account
func (l *Layout) Authority(data []byte) (solana.PublicKey, bool) {
	end := l.AuthorityOffset + solana.PublicKeyLength
	if len(data) < end {
		return solana.PublicKey{}, false
	}
	return solana.PublicKeyFromBytes(data[l.AuthorityOffset:end]), true
}

// IsVoterAccount reports whether data has this layout's size and belongs to authority
func (l *Layout) IsVoterAccount(data []byte, authority solana.PublicKey) bool {
	if len(data) != l.AccountSize {
		return false
	}
	got, ok := l.Authority(data)
	return ok && got.Equals(authority)
}
