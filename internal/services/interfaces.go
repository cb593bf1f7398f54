package services

import (
	"bytes"
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"

	"github.com/pubkeyapp/realms-vsr-holders/internal/models"
)

// ErrAccountSource wraps every failure of the account source itself
var ErrAccountSource = errors.New("account source failure")

// RawAccount is an on-chain account buffer and its address
type RawAccount struct {
	Address solana.PublicKey
	Data    []byte
}

// Memcmp requires Bytes to appear at Offset of the account data
type Memcmp struct {
	Offset int
	Bytes  []byte
}

// ScanFilter narrows a program account scan. Zero fields are ignored.
type ScanFilter struct {
	DataSize int
	Memcmp   *Memcmp
}

// DataSize filters accounts by exact data length
func DataSize(n int) ScanFilter {
	return ScanFilter{DataSize: n}
}

// KeyAt filters accounts holding key at offset
func KeyAt(offset int, key solana.PublicKey) ScanFilter {
	return ScanFilter{Memcmp: &Memcmp{Offset: offset, Bytes: key.Bytes()}}
}

// Matches reports whether data passes the filter
func (f ScanFilter) Matches(data []byte) bool {
	if f.DataSize > 0 && len(data) != f.DataSize {
		return false
	}
	if f.Memcmp != nil {
		end := f.Memcmp.Offset + len(f.Memcmp.Bytes)
		if f.Memcmp.Offset < 0 || end > len(data) || !bytes.Equal(data[f.Memcmp.Offset:end], f.Memcmp.Bytes) {
			return false
		}
	}
	return true
}

// AccountSource retrieves raw account buffers from the ledger
type AccountSource interface {
	// ScanProgramAccounts returns every account owned by programID passing all filters
	ScanProgramAccounts(ctx context.Context, programID solana.PublicKey, filters ...ScanFilter) ([]RawAccount, error)
	// FetchAccount returns the account at address, or nil when it does not exist
	FetchAccount(ctx context.Context, address solana.PublicKey) (*RawAccount, error)
}

// AuthServiceInterface defines the interface for authentication services
type AuthServiceInterface interface {
	ValidateAPIKey(ctx context.Context, key string) (*models.APIKey, error)
}

// PowerResolver resolves the canonical governance power of one wallet
type PowerResolver interface {
	ResolveGovernancePower(ctx context.Context, wallet solana.PublicKey) models.CanonicalPowerResult
}

// PowerServiceInterface is the cached resolution surface used by handlers
type PowerServiceInterface interface {
	GetPower(ctx context.Context, wallet string) (models.CanonicalPowerResult, bool, error)
	GetPowers(ctx context.Context, wallets []string) (*models.PowerResponse, error)
}
