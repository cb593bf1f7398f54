package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pubkeyapp/realms-vsr-holders/internal/config"
	"github.com/pubkeyapp/realms-vsr-holders/internal/models"
	"github.com/pubkeyapp/realms-vsr-holders/pkg/cache"
	"github.com/pubkeyapp/realms-vsr-holders/pkg/logger"
	"github.com/pubkeyapp/realms-vsr-holders/pkg/metrics"
	"github.com/pubkeyapp/realms-vsr-holders/pkg/mutex"
)

const (
	// MaxBatchSize bounds the wallets accepted by one batch request
	MaxBatchSize = 100
	// batchConcurrency bounds the wallets resolved at once within a batch
	batchConcurrency = 8
)

// PowerService integrates caching and per-wallet coalescing around a resolver
type PowerService struct {
	resolver PowerResolver
	cache    *cache.Cache[models.CanonicalPowerResult]
	locks    *mutex.KeyedMutex
	config   *config.Config
	metrics  *metrics.Collector
	logger   *logger.Logger
}

// NewPowerService creates a PowerService
func NewPowerService(resolver PowerResolver, cfg *config.Config, collector *metrics.Collector, log *logger.Logger) *PowerService {
	if collector == nil {
		collector = metrics.NewCollector()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &PowerService{
		resolver: resolver,
		cache:    cache.New[models.CanonicalPowerResult](cfg.Cache.TTL, cfg.Cache.CleanupInterval),
		locks:    mutex.New(cfg.Cache.CleanupInterval),
		config:   cfg,
		metrics:  collector,
		logger:   log,
	}
}

// ParseWallet validates a base58 wallet address
func ParseWallet(wallet string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(wallet)
	if err != nil {
		return solana.PublicKey{}, models.NewInvalidWalletError(wallet)
	}
	return pk, nil
}

// GetPower resolves one wallet, reporting whether the result came from cache
func (ps *PowerService) GetPower(ctx context.Context, wallet string) (models.CanonicalPowerResult, bool, error) {
	pk, err := ParseWallet(wallet)
	if err != nil {
		return models.CanonicalPowerResult{}, false, err
	}
	result, cached := ps.resolve(ctx, pk)
	return result, cached, nil
}

// GetPowers resolves wallets concurrently. Results keep the request order.
func (ps *PowerService) GetPowers(ctx context.Context, wallets []string) (*models.PowerResponse, error) {
	if len(wallets) == 0 {
		return nil, models.NewAppErrorWithDetails(models.ErrorCodeEmptyWalletArray,
			"Wallets array cannot be empty", "Provide at least one wallet address")
	}
	if len(wallets) > MaxBatchSize {
		return nil, models.NewAppErrorWithDetails(models.ErrorCodeTooManyWallets,
			"Too many wallets", fmt.Sprintf("At most %d wallets per request", MaxBatchSize))
	}

	keys := make([]solana.PublicKey, len(wallets))
	for i, wallet := range wallets {
		pk, err := ParseWallet(wallet)
		if err != nil {
			return nil, err
		}
		keys[i] = pk
	}

	start := time.Now()
	results := make([]models.CanonicalPowerResult, len(keys))
	var uncached atomic.Bool

	g := new(errgroup.Group)
	g.SetLimit(batchConcurrency)
	for i, pk := range keys {
		i, pk := i, pk
		g.Go(func() error {
			result, cached := ps.resolve(ctx, pk)
			results[i] = result
			if !cached {
				uncached.Store(true)
			}
			return nil
		})
	}
	_ = g.Wait()

	ps.logger.WithContext(ctx).Info("Completed governance power batch",
		zap.Int("wallet_count", len(wallets)),
		zap.Bool("all_cached", !uncached.Load()),
		zap.Duration("duration", time.Since(start)),
	)

	return &models.PowerResponse{Results: results, Cached: !uncached.Load()}, nil
}

// resolve serves wallet from cache or resolves it while holding the wallet's lock
func (ps *PowerService) resolve(ctx context.Context, wallet solana.PublicKey) (models.CanonicalPowerResult, bool) {
	key := wallet.String()
	log := ps.logger.WithContext(logger.ContextWithWallet(ctx, key))

	if result, ok := ps.cache.Get(key); ok {
		ps.metrics.RecordCacheHit()
		return result, true
	}

	unlock, contended := ps.locks.Lock(key)
	defer unlock()
	if contended {
		ps.metrics.RecordMutexWait()
	}

	// A concurrent request for the same wallet may have filled the cache
	if result, ok := ps.cache.Get(key); ok {
		log.Debug("Cache hit after waiting on concurrent resolution")
		ps.metrics.RecordCacheHit()
		return result, true
	}
	ps.metrics.RecordCacheMiss()

	result := ps.resolver.ResolveGovernancePower(ctx, wallet)
	ps.metrics.RecordResolution(string(result.Source))

	if result.Source != models.SourceError {
		ps.cache.Set(key, result)
	}
	return result, false
}

// CacheStats returns cache statistics for monitoring
func (ps *PowerService) CacheStats() map[string]interface{} {
	return map[string]interface{}{
		"cache_size":   ps.cache.Size(),
		"lock_count":   ps.locks.Size(),
		"cache_ttl_ms": ps.cache.TTL().Milliseconds(),
	}
}

// Metrics returns the collector shared with the HTTP middleware
func (ps *PowerService) Metrics() *metrics.Collector {
	return ps.metrics
}

// PerformanceStats returns a flat view of the collected metrics
func (ps *PowerService) PerformanceStats() map[string]interface{} {
	s := ps.metrics.Snapshot()
	return map[string]interface{}{
		"uptime":                   s.Uptime.String(),
		"total_requests":           s.TotalRequests,
		"successful_requests":      s.SuccessfulRequests,
		"failed_requests":          s.FailedRequests,
		"success_rate_percent":     ps.metrics.SuccessRate(),
		"average_response_time_ms": s.AverageResponseTime.Milliseconds(),
		"min_response_time_ms":     s.MinResponseTime.Milliseconds(),
		"max_response_time_ms":     s.MaxResponseTime.Milliseconds(),
		"resolutions":              s.Resolutions,
		"cache_hits":               s.CacheHits,
		"cache_misses":             s.CacheMisses,
		"cache_hit_ratio_percent":  ps.metrics.CacheHitRatio(),
		"rpc_calls":                s.RPCCalls,
		"rpc_failures":             s.RPCFailures,
		"average_rpc_time_ms":      s.AverageRPCTime.Milliseconds(),
		"active_requests":          s.ActiveRequests,
		"mutex_waits":              s.MutexWaits,
		"cache_size":               ps.cache.Size(),
		"lock_count":               ps.locks.Size(),
	}
}

// ClearCache clears all cached entries
func (ps *PowerService) ClearCache() {
	ps.cache.Clear()
}

// Stop gracefully shuts down the service
func (ps *PowerService) Stop() {
	ps.cache.Stop()
	ps.locks.Stop()
}
