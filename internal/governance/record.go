// Package governance decodes SPL-governance accounts used to resolve voting power
package governance

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// TokenUnits converts raw governing token amounts (6 decimals) into tokens
const TokenUnits = 1e6

// pdaSeed prefixes every governance program derived address
const pdaSeed = "governance"

var (
	ErrShortRecord     = errors.New("token owner record too short")
	ErrShortDelegation = errors.New("delegated record too short")
)

// RecordLayout locates the fields of a TokenOwnerRecord
type RecordLayout struct {
	Size              int
	RealmOffset       int
	MintOffset        int
	OwnerOffset       int
	AmountOffset      int
	HasDelegateOffset int
	DelegateOffset    int
}

// TokenOwnerRecordV1 is the record layout used for the fallback lookup
var TokenOwnerRecordV1 = RecordLayout{
	Size:              404,
	RealmOffset:       0,
	MintOffset:        32,
	OwnerOffset:       64,
	AmountOffset:      96,
	HasDelegateOffset: 104,
	DelegateOffset:    105,
}

// DelegationLayout locates the fields read when scanning records delegated to a wallet
type DelegationLayout struct {
	DelegateOffset int
	AmountOffset   int
}

// DelegatedRecordV1 matches the delegate filter used on the governance program.
// Offsets differ from TokenOwnerRecordV1 and are kept as observed.
var DelegatedRecordV1 = DelegationLayout{
	DelegateOffset: 105,
	AmountOffset:   33,
}

// TokenOwnerRecord is one wallet's deposit in a realm
type TokenOwnerRecord struct {
	Address       solana.PublicKey
	Realm         solana.PublicKey
	Mint          solana.PublicKey
	Owner         solana.PublicKey
	DepositAmount uint64
	Delegate      *solana.PublicKey
}

// Tokens returns the deposit amount in token units
func (r TokenOwnerRecord) Tokens() float64 {
	return float64(r.DepositAmount) / TokenUnits
}

// Decode parses a TokenOwnerRecord stored at address
func (l RecordLayout) Decode(address solana.PublicKey, data []byte) (TokenOwnerRecord, error) {
	if len(data) < l.HasDelegateOffset {
		return TokenOwnerRecord{}, fmt.Errorf("%w: %d bytes", ErrShortRecord, len(data))
	}

	rec := TokenOwnerRecord{
		Address:       address,
		Realm:         keyAt(data, l.RealmOffset),
		Mint:          keyAt(data, l.MintOffset),
		Owner:         keyAt(data, l.OwnerOffset),
		DepositAmount: binary.LittleEndian.Uint64(data[l.AmountOffset:]),
	}

	if len(data) > l.HasDelegateOffset && data[l.HasDelegateOffset] == 1 {
		if len(data) < l.DelegateOffset+solana.PublicKeyLength {
			return TokenOwnerRecord{}, fmt.Errorf("%w: delegate flag set but key truncated", ErrShortRecord)
		}
		delegate := keyAt(data, l.DelegateOffset)
		rec.Delegate = &delegate
	}
	return rec, nil
}

// Matches reports whether data belongs to owner within realm for mint
func (l RecordLayout) Matches(data []byte, realm, mint, owner solana.PublicKey) bool {
	if len(data) < l.OwnerOffset+solana.PublicKeyLength {
		return false
	}
	return keyAt(data, l.RealmOffset).Equals(realm) &&
		keyAt(data, l.MintOffset).Equals(mint) &&
		keyAt(data, l.OwnerOffset).Equals(owner)
}

// Amount reads the deposit amount of a record delegated to a wallet
func (l DelegationLayout) Amount(data []byte) (uint64, error) {
	if l.AmountOffset+8 > len(data) {
		return 0, fmt.Errorf("%w: %d bytes", ErrShortDelegation, len(data))
	}
	return binary.LittleEndian.Uint64(data[l.AmountOffset:]), nil
}

// DeriveTokenOwnerRecordAddress returns the canonical record address of owner
func DeriveTokenOwnerRecordAddress(programID, realm, mint, owner solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{
		[]byte(pdaSeed),
		realm[:],
		mint[:],
		owner[:],
	}, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive token owner record address: %w", err)
	}
	return addr, nil
}

func keyAt(data []byte, offset int) solana.PublicKey {
	return solana.PublicKeyFromBytes(data[offset : offset+solana.PublicKeyLength])
}
