package services

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/pubkeyapp/realms-vsr-holders/internal/config"
	"github.com/pubkeyapp/realms-vsr-holders/internal/governance"
	"github.com/pubkeyapp/realms-vsr-holders/pkg/logger"
)

// TokenRecordFallback finds a wallet's token owner record in the configured realm
type TokenRecordFallback struct {
	source AccountSource
	keys   config.GovernanceKeys
	layout governance.RecordLayout
	logger *logger.Logger
}

// NewTokenRecordFallback creates a fallback lookup for the realm in keys
func NewTokenRecordFallback(source AccountSource, keys config.GovernanceKeys, log *logger.Logger) *TokenRecordFallback {
	if log == nil {
		log = logger.Nop()
	}
	return &TokenRecordFallback{
		source: source,
		keys:   keys,
		layout: governance.TokenOwnerRecordV1,
		logger: log,
	}
}

// Lookup returns the wallet's record, or nil when none exists. The derived
// address is tried first, then a scan of every record owned by the wallet.
// A record that fails to decode counts as absent.
func (f *TokenRecordFallback) Lookup(ctx context.Context, wallet solana.PublicKey) (*governance.TokenOwnerRecord, error) {
	log := f.logger.WithContext(ctx)

	address, err := governance.DeriveTokenOwnerRecordAddress(f.keys.GovernanceProgramID, f.keys.Realm, f.keys.GoverningMint, wallet)
	if err != nil {
		log.Warn("Token owner record derivation failed", zap.Error(err))
	} else {
		account, err := f.source.FetchAccount(ctx, address)
		if err != nil {
			return nil, err
		}
		if account != nil && len(account.Data) > 0 {
			return f.decode(log, account.Address, account.Data), nil
		}
		log.Debug("Token owner record not found at derived address, scanning",
			zap.String("address", address.String()),
		)
	}

	accounts, err := f.source.ScanProgramAccounts(ctx, f.keys.GovernanceProgramID,
		DataSize(f.layout.Size),
		KeyAt(f.layout.OwnerOffset, wallet),
	)
	if err != nil {
		return nil, err
	}
	for _, account := range accounts {
		if f.layout.Matches(account.Data, f.keys.Realm, f.keys.GoverningMint, wallet) {
			return f.decode(log, account.Address, account.Data), nil
		}
	}
	return nil, nil
}

func (f *TokenRecordFallback) decode(log *logger.Logger, address solana.PublicKey, data []byte) *governance.TokenOwnerRecord {
	record, err := f.layout.Decode(address, data)
	if err != nil {
		log.Warn("Failed to decode token owner record",
			zap.String("address", address.String()),
			zap.Error(err),
		)
		return nil
	}
	return &record
}
