package services

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/pubkeyapp/realms-vsr-holders/internal/governance"
	"github.com/pubkeyapp/realms-vsr-holders/pkg/logger"
)

// DelegatedPowerResult is the power other wallets delegated to one wallet
type DelegatedPowerResult struct {
	TotalPower float64
	Records    int
}

// DelegationResolver sums token owner records whose delegate is a wallet
type DelegationResolver struct {
	source    AccountSource
	programID solana.PublicKey
	layout    governance.DelegationLayout
	logger    *logger.Logger
}

// NewDelegationResolver creates a resolver over the governance program
func NewDelegationResolver(source AccountSource, governanceProgramID solana.PublicKey, log *logger.Logger) *DelegationResolver {
	if log == nil {
		log = logger.Nop()
	}
	return &DelegationResolver{
		source:    source,
		programID: governanceProgramID,
		layout:    governance.DelegatedRecordV1,
		logger:    log,
	}
}

// Resolve returns the delegated power of wallet. Delegated power carries no multiplier.
func (r *DelegationResolver) Resolve(ctx context.Context, wallet solana.PublicKey) (DelegatedPowerResult, error) {
	accounts, err := r.source.ScanProgramAccounts(ctx, r.programID, KeyAt(r.layout.DelegateOffset, wallet))
	if err != nil {
		return DelegatedPowerResult{}, err
	}

	log := r.logger.WithContext(ctx)
	var result DelegatedPowerResult
	for _, account := range accounts {
		raw, err := r.layout.Amount(account.Data)
		if err != nil {
			log.Warn("Failed to parse delegated record",
				zap.String("account", account.Address.String()),
				zap.Error(err),
			)
			continue
		}
		if raw == 0 {
			continue
		}
		amount := float64(raw) / governance.TokenUnits
		result.TotalPower += amount
		result.Records++

		log.Debug("Delegated record",
			zap.String("account", account.Address.String()),
			zap.Float64("amount", amount),
		)
	}
	return result, nil
}
