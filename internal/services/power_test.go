package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pubkeyapp/realms-vsr-holders/internal/config"
	"github.com/pubkeyapp/realms-vsr-holders/internal/models"
	"github.com/pubkeyapp/realms-vsr-holders/pkg/metrics"
)

// countingResolver returns a fixed source per wallet and counts resolutions
type countingResolver struct {
	calls   atomic.Int32
	sources map[string]models.Source
	delay   time.Duration
}

func (r *countingResolver) ResolveGovernancePower(_ context.Context, wallet solana.PublicKey) models.CanonicalPowerResult {
	r.calls.Add(1)
	time.Sleep(r.delay)
	source := models.SourceVSR
	if s, ok := r.sources[wallet.String()]; ok {
		source = s
	}
	result := models.ZeroResult(wallet.String(), source)
	if source == models.SourceVSR {
		result.NativeGovernancePower = 10
		result.TotalGovernancePower = 10
	}
	return result
}

func newTestPowerService(t *testing.T, resolver PowerResolver) (*PowerService, *metrics.Collector) {
	t.Helper()
	cfg := &config.Config{Cache: config.CacheConfig{TTL: time.Minute, CleanupInterval: time.Hour}}
	collector := metrics.NewCollector()
	ps := NewPowerService(resolver, cfg, collector, nil)
	t.Cleanup(ps.Stop)
	return ps, collector
}

func TestGetPowerCaches(t *testing.T) {
	resolver := &countingResolver{}
	ps, collector := newTestPowerService(t, resolver)
	wallet := newWallet().String()

	first, cached, err := ps.GetPower(context.Background(), wallet)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 10.0, first.TotalGovernancePower)

	second, cached, err := ps.GetPower(context.Background(), wallet)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, first, second)

	assert.Equal(t, int32(1), resolver.calls.Load())
	s := collector.Snapshot()
	assert.Equal(t, int64(1), s.CacheHits)
	assert.Equal(t, int64(1), s.CacheMisses)
	assert.Equal(t, int64(1), s.Resolutions["vsr_sdk"])
}

func TestGetPowerDoesNotCacheErrors(t *testing.T) {
	wallet := newWallet().String()
	resolver := &countingResolver{sources: map[string]models.Source{wallet: models.SourceError}}
	ps, _ := newTestPowerService(t, resolver)

	for i := 0; i < 2; i++ {
		result, cached, err := ps.GetPower(context.Background(), wallet)
		require.NoError(t, err)
		assert.False(t, cached)
		assert.Equal(t, models.SourceError, result.Source)
	}
	assert.Equal(t, int32(2), resolver.calls.Load())
}

func TestGetPowerInvalidWallet(t *testing.T) {
	ps, _ := newTestPowerService(t, &countingResolver{})

	_, _, err := ps.GetPower(context.Background(), "not-a-wallet")
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, models.ErrorCodeInvalidWallet, appErr.Code)
}

func TestGetPowerCoalescesConcurrentRequests(t *testing.T) {
	resolver := &countingResolver{delay: 20 * time.Millisecond}
	ps, _ := newTestPowerService(t, resolver)
	wallet := newWallet().String()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := ps.GetPower(context.Background(), wallet)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), resolver.calls.Load())
}

func TestGetPowers(t *testing.T) {
	none := newWallet().String()
	resolver := &countingResolver{sources: map[string]models.Source{none: models.SourceNone}}
	ps, _ := newTestPowerService(t, resolver)

	wallets := []string{newWallet().String(), none, newWallet().String()}

	resp, err := ps.GetPowers(context.Background(), wallets)
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	require.Len(t, resp.Results, 3)
	for i, result := range resp.Results {
		assert.Equal(t, wallets[i], result.Wallet)
	}
	assert.Equal(t, models.SourceNone, resp.Results[1].Source)

	resp, err = ps.GetPowers(context.Background(), wallets)
	require.NoError(t, err)
	assert.True(t, resp.Cached)
	assert.Equal(t, int32(3), resolver.calls.Load())
}

func TestGetPowersValidation(t *testing.T) {
	ps, _ := newTestPowerService(t, &countingResolver{})

	codeOf := func(err error) models.ErrorCode {
		var appErr *models.AppError
		require.True(t, errors.As(err, &appErr))
		return appErr.Code
	}

	_, err := ps.GetPowers(context.Background(), nil)
	assert.Equal(t, models.ErrorCodeEmptyWalletArray, codeOf(err))

	_, err = ps.GetPowers(context.Background(), []string{newWallet().String(), "bad"})
	assert.Equal(t, models.ErrorCodeInvalidWallet, codeOf(err))

	tooMany := make([]string, MaxBatchSize+1)
	for i := range tooMany {
		tooMany[i] = newWallet().String()
	}
	_, err = ps.GetPowers(context.Background(), tooMany)
	assert.Equal(t, models.ErrorCodeTooManyWallets, codeOf(err))
}
