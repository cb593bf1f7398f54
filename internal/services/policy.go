package services

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pubkeyapp/realms-vsr-holders/internal/config"
	"github.com/pubkeyapp/realms-vsr-holders/internal/models"
	"github.com/pubkeyapp/realms-vsr-holders/internal/vsr"
	"github.com/pubkeyapp/realms-vsr-holders/pkg/clock"
	"github.com/pubkeyapp/realms-vsr-holders/pkg/logger"
)

// PowerPolicy combines native, delegated and token record power into one result
type PowerPolicy struct {
	native    *NativeAggregator
	delegated *DelegationResolver
	fallback  *TokenRecordFallback
	clock     clock.Clock
	logger    *logger.Logger
}

// NewPowerPolicy wires the three resolution paths over one account source
func NewPowerPolicy(source AccountSource, keys config.GovernanceKeys, clk clock.Clock, log *logger.Logger) *PowerPolicy {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &PowerPolicy{
		native:    NewNativeAggregator(source, keys.VSRProgramID, &vsr.VoterV1, log),
		delegated: NewDelegationResolver(source, keys.GovernanceProgramID, log),
		fallback:  NewTokenRecordFallback(source, keys, log),
		clock:     clk,
		logger:    log,
	}
}

// ResolveGovernancePower returns the canonical governance power of wallet.
// It never fails: account source errors produce an error sourced result.
func (p *PowerPolicy) ResolveGovernancePower(ctx context.Context, wallet solana.PublicKey) models.CanonicalPowerResult {
	ctx = logger.ContextWithWallet(ctx, wallet.String())
	log := p.logger.WithContext(ctx)
	now := p.clock.Now().Unix()

	var (
		native    NativePowerResult
		delegated DelegatedPowerResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		native, err = p.native.Aggregate(gctx, wallet, now)
		return err
	})
	g.Go(func() error {
		var err error
		delegated, err = p.delegated.Resolve(gctx, wallet)
		return err
	})
	if err := g.Wait(); err != nil {
		return p.failed(log, wallet, err)
	}

	total := native.TotalPower + delegated.TotalPower
	if total > 0 {
		shadows := native.Shadows
		if shadows == nil {
			shadows = []vsr.ShadowRecord{}
		}
		log.Info("Resolved governance power",
			zap.String("source", string(models.SourceVSR)),
			zap.Float64("native", native.TotalPower),
			zap.Float64("delegated", delegated.TotalPower),
		)
		return models.CanonicalPowerResult{
			Wallet:                   wallet.String(),
			NativeGovernancePower:    native.TotalPower,
			DelegatedGovernancePower: delegated.TotalPower,
			TotalGovernancePower:     total,
			Source:                   models.SourceVSR,
			Deposits:                 native.Deposits,
			Details: map[string]interface{}{
				"lockedPower":      native.LockedPower,
				"unlockedPower":    native.UnlockedPower,
				"voterAccounts":    native.VoterAccounts,
				"delegatedRecords": delegated.Records,
				"shadowDeposits":   shadows,
			},
		}
	}

	record, err := p.fallback.Lookup(ctx, wallet)
	if err != nil {
		return p.failed(log, wallet, err)
	}
	if record != nil && record.DepositAmount > 0 {
		// The record amount is used as power without decimal scaling
		amount := float64(record.DepositAmount)
		var delegate interface{}
		if record.Delegate != nil {
			delegate = record.Delegate.String()
		}
		log.Info("Resolved governance power",
			zap.String("source", string(models.SourceTokenOwnerRecord)),
			zap.Float64("native", amount),
		)
		return models.CanonicalPowerResult{
			Wallet:                wallet.String(),
			NativeGovernancePower: amount,
			TotalGovernancePower:  amount,
			Source:                models.SourceTokenOwnerRecord,
			Details: map[string]interface{}{
				"depositAmount":      amount,
				"depositAmountRaw":   record.DepositAmount,
				"depositTokens":      record.Tokens(),
				"mint":               record.Mint.String(),
				"realm":              record.Realm.String(),
				"recordAddress":      record.Address.String(),
				"governanceDelegate": delegate,
			},
		}
	}

	log.Info("Wallet has no governance power")
	return models.ZeroResult(wallet.String(), models.SourceNone)
}

func (p *PowerPolicy) failed(log *logger.Logger, wallet solana.PublicKey, err error) models.CanonicalPowerResult {
	log.Error("Governance power resolution failed", zap.Error(err))
	result := models.ZeroResult(wallet.String(), models.SourceError)
	result.Error = err.Error()
	return result
}
