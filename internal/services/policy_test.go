package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pubkeyapp/realms-vsr-holders/internal/governance"
	"github.com/pubkeyapp/realms-vsr-holders/internal/models"
	"github.com/pubkeyapp/realms-vsr-holders/internal/vsr"
	"github.com/pubkeyapp/realms-vsr-holders/pkg/clock"
	"github.com/pubkeyapp/realms-vsr-holders/pkg/logger"
)

func newTestPolicy(t *testing.T, source AccountSource) *PowerPolicy {
	t.Helper()
	return NewPowerPolicy(source, testKeys(t), clock.At(testNow), logger.Nop())
}

func TestResolveNoAccounts(t *testing.T) {
	wallet := newWallet()
	result := newTestPolicy(t, newFakeSource()).ResolveGovernancePower(context.Background(), wallet)

	assert.Equal(t, models.CanonicalPowerResult{Wallet: wallet.String(), Source: models.SourceNone}, result)
}

func TestResolveNativeAndDelegated(t *testing.T) {
	keys := testKeys(t)
	wallet := newWallet()
	source := newFakeSource()
	source.add(keys.VSRProgramID, newWallet(), voterAccount(wallet, 500))
	source.add(keys.VSRProgramID, newWallet(), voterAccount(wallet, 120.5))
	source.add(keys.VSRProgramID, newWallet(), voterAccount(newWallet(), 9000))
	source.add(keys.GovernanceProgramID, newWallet(), delegatedRecord(wallet, 250))
	source.add(keys.GovernanceProgramID, newWallet(), delegatedRecord(wallet, 0))

	result := newTestPolicy(t, source).ResolveGovernancePower(context.Background(), wallet)

	assert.Equal(t, models.SourceVSR, result.Source)
	assert.Equal(t, wallet.String(), result.Wallet)
	assert.InDelta(t, 620.5, result.NativeGovernancePower, 1e-9)
	assert.InDelta(t, 250.0, result.DelegatedGovernancePower, 1e-9)
	assert.InDelta(t, 870.5, result.TotalGovernancePower, 1e-9)
	require.Len(t, result.Deposits, 2)
	assert.Equal(t, vsr.ClassUnlocked, result.Deposits[0].Classification)
	assert.Equal(t, 2, result.Details["voterAccounts"])
	assert.Equal(t, 1, result.Details["delegatedRecords"])
	assert.InDelta(t, 620.5, result.Details["unlockedPower"], 1e-9)
	assert.Equal(t, int32(0), source.fetches.Load(), "fallback is not consulted when power was found")
}

func TestResolveDelegatedOnly(t *testing.T) {
	keys := testKeys(t)
	wallet := newWallet()
	source := newFakeSource()
	source.add(keys.GovernanceProgramID, newWallet(), delegatedRecord(wallet, 42))

	result := newTestPolicy(t, source).ResolveGovernancePower(context.Background(), wallet)

	assert.Equal(t, models.SourceVSR, result.Source)
	assert.Equal(t, 0.0, result.NativeGovernancePower)
	assert.InDelta(t, 42.0, result.TotalGovernancePower, 1e-9)
	assert.Empty(t, result.Deposits)
}

func TestResolveWalletMarkerFilteredAcrossAccounts(t *testing.T) {
	keys := testKeys(t)
	wallet := newWallet()
	source := newFakeSource()
	source.add(keys.VSRProgramID, newWallet(), voterAccount(wallet, 600))
	source.add(keys.VSRProgramID, newWallet(), voterAccount(wallet, 1400))

	result := newTestPolicy(t, source).ResolveGovernancePower(context.Background(), wallet)

	assert.Equal(t, models.SourceNone, result.Source)
	assert.Equal(t, 0.0, result.TotalGovernancePower)
	assert.Empty(t, result.Deposits)
}

func TestResolveShadowOnlyWallet(t *testing.T) {
	keys := testKeys(t)
	wallet := newWallet()
	source := newFakeSource()
	source.add(keys.VSRProgramID, newWallet(), voterAccount(wallet, 1000))

	result := newTestPolicy(t, source).ResolveGovernancePower(context.Background(), wallet)

	assert.Equal(t, models.SourceNone, result.Source)
	assert.Empty(t, result.Deposits)
}

func TestResolveTokenOwnerRecordAtDerivedAddress(t *testing.T) {
	keys := testKeys(t)
	wallet := newWallet()
	address, err := governance.DeriveTokenOwnerRecordAddress(keys.GovernanceProgramID, keys.Realm, keys.GoverningMint, wallet)
	require.NoError(t, err)

	source := newFakeSource()
	source.add(keys.GovernanceProgramID, address, tokenOwnerRecord(keys, wallet, 1_234_500_000))

	result := newTestPolicy(t, source).ResolveGovernancePower(context.Background(), wallet)

	assert.Equal(t, models.SourceTokenOwnerRecord, result.Source)
	assert.Equal(t, 1_234_500_000.0, result.NativeGovernancePower)
	assert.Equal(t, 0.0, result.DelegatedGovernancePower)
	assert.Equal(t, 1_234_500_000.0, result.TotalGovernancePower)
	assert.Equal(t, 1_234_500_000.0, result.Details["depositAmount"])
	assert.Equal(t, uint64(1_234_500_000), result.Details["depositAmountRaw"])
	assert.InDelta(t, 1234.5, result.Details["depositTokens"], 1e-9)
	assert.Equal(t, keys.GoverningMint.String(), result.Details["mint"])
	assert.Equal(t, address.String(), result.Details["recordAddress"])
	assert.Nil(t, result.Details["governanceDelegate"])
}

func TestResolveTokenOwnerRecordByScan(t *testing.T) {
	keys := testKeys(t)
	wallet := newWallet()
	recordAddress := newWallet()

	source := newFakeSource()
	other := keys
	other.Realm = newWallet()
	source.add(keys.GovernanceProgramID, newWallet(), tokenOwnerRecord(other, wallet, 5_000_000))
	source.add(keys.GovernanceProgramID, recordAddress, tokenOwnerRecord(keys, wallet, 7_000_000))

	result := newTestPolicy(t, source).ResolveGovernancePower(context.Background(), wallet)

	assert.Equal(t, models.SourceTokenOwnerRecord, result.Source)
	assert.Equal(t, 7_000_000.0, result.NativeGovernancePower)
	assert.Equal(t, 7_000_000.0, result.TotalGovernancePower)
	assert.Equal(t, recordAddress.String(), result.Details["recordAddress"])
}

func TestResolveTokenOwnerRecordUndecodable(t *testing.T) {
	keys := testKeys(t)
	wallet := newWallet()
	address, err := governance.DeriveTokenOwnerRecordAddress(keys.GovernanceProgramID, keys.Realm, keys.GoverningMint, wallet)
	require.NoError(t, err)

	source := newFakeSource()
	source.add(keys.GovernanceProgramID, address, make([]byte, 50))

	result := newTestPolicy(t, source).ResolveGovernancePower(context.Background(), wallet)
	assert.Equal(t, models.SourceNone, result.Source)
}

func TestResolveSourceFailure(t *testing.T) {
	keys := testKeys(t)
	wallet := newWallet()

	t.Run("NativeScan", func(t *testing.T) {
		source := newFakeSource()
		source.scanErr[keys.VSRProgramID] = errRPCDown

		result := newTestPolicy(t, source).ResolveGovernancePower(context.Background(), wallet)
		assert.Equal(t, models.SourceError, result.Source)
		assert.Equal(t, wallet.String(), result.Wallet)
		assert.Equal(t, 0.0, result.TotalGovernancePower)
		assert.Contains(t, result.Error, "connection refused")
	})

	t.Run("DelegationScan", func(t *testing.T) {
		source := newFakeSource()
		source.add(keys.VSRProgramID, newWallet(), voterAccount(wallet, 500))
		source.scanErr[keys.GovernanceProgramID] = errRPCDown

		result := newTestPolicy(t, source).ResolveGovernancePower(context.Background(), wallet)
		assert.Equal(t, models.SourceError, result.Source)
		assert.Equal(t, 0.0, result.NativeGovernancePower)
	})

	t.Run("Fallback", func(t *testing.T) {
		source := newFakeSource()
		source.fetchErr = errRPCDown

		result := newTestPolicy(t, source).ResolveGovernancePower(context.Background(), wallet)
		assert.Equal(t, models.SourceError, result.Source)
	})
}

func TestResolveIdempotent(t *testing.T) {
	keys := testKeys(t)
	wallet := newWallet()
	source := newFakeSource()
	source.add(keys.VSRProgramID, newWallet(), voterAccount(wallet, 500, 75))
	source.add(keys.GovernanceProgramID, newWallet(), delegatedRecord(wallet, 3))

	policy := newTestPolicy(t, source)
	first := policy.ResolveGovernancePower(context.Background(), wallet)
	second := policy.ResolveGovernancePower(context.Background(), wallet)

	assert.Equal(t, first, second)
}
