package services

import (
	"context"
	"math"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/pubkeyapp/realms-vsr-holders/internal/vsr"
	"github.com/pubkeyapp/realms-vsr-holders/pkg/logger"
)

// NativePowerResult is the power a wallet holds through its own voter accounts
type NativePowerResult struct {
	TotalPower      float64
	LockedPower     float64
	UnlockedPower   float64
	Deposits        []vsr.DepositRecord
	Shadows         []vsr.ShadowRecord
	AccountsScanned int
	VoterAccounts   int
	// Filtered is set when the wallet total matched a delegation marker
	Filtered bool
}

// NativeAggregator sums the deposits of every voter account a wallet controls
type NativeAggregator struct {
	source    AccountSource
	programID solana.PublicKey
	layout    *vsr.Layout
	logger    *logger.Logger
}

// NewNativeAggregator creates an aggregator over the VSR program's voter accounts
func NewNativeAggregator(source AccountSource, vsrProgramID solana.PublicKey, layout *vsr.Layout, log *logger.Logger) *NativeAggregator {
	if layout == nil {
		layout = &vsr.VoterV1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &NativeAggregator{source: source, programID: vsrProgramID, layout: layout, logger: log}
}

// Aggregate decodes every voter account of wallet at time now
func (a *NativeAggregator) Aggregate(ctx context.Context, wallet solana.PublicKey, now int64) (NativePowerResult, error) {
	accounts, err := a.source.ScanProgramAccounts(ctx, a.programID,
		DataSize(a.layout.AccountSize),
		KeyAt(a.layout.AuthorityOffset, wallet),
	)
	if err != nil {
		return NativePowerResult{}, err
	}

	log := a.logger.WithContext(ctx)
	result := NativePowerResult{AccountsScanned: len(accounts)}

	for _, account := range accounts {
		if !a.layout.IsVoterAccount(account.Data, wallet) {
			continue
		}
		result.VoterAccounts++

		extraction := a.layout.Extract(account.Data, now)
		for _, skipped := range extraction.Skipped {
			if ce := log.Check(zap.DebugLevel, "Skipped deposit slot"); ce != nil {
				ce.Write(
					zap.String("account", account.Address.String()),
					zap.Int("offset", skipped.Offset),
					zap.Float64("amount", skipped.Amount),
					zap.String("reason", string(skipped.Reason)),
				)
			}
		}

		for _, deposit := range extraction.Deposits {
			result.TotalPower += deposit.Power
			if deposit.IsLocked {
				result.LockedPower += deposit.Power
			} else {
				result.UnlockedPower += deposit.Power
			}
			result.Deposits = append(result.Deposits, deposit)
		}
		result.Shadows = append(result.Shadows, extraction.Shadows...)

		log.Debug("Decoded voter account",
			zap.String("account", account.Address.String()),
			zap.Int("deposits", len(extraction.Deposits)),
			zap.Int("shadows", len(extraction.Shadows)),
		)
	}

	if a.layout.IsShadowMarker(int64(math.Round(result.TotalPower))) {
		log.Info("Wallet total matches a delegation marker, discarding native power",
			zap.Float64("total_power", result.TotalPower),
		)
		return NativePowerResult{
			Shadows:         result.Shadows,
			AccountsScanned: result.AccountsScanned,
			VoterAccounts:   result.VoterAccounts,
			Filtered:        true,
		}, nil
	}

	return result, nil
}
