package main

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pubkeyapp/realms-vsr-holders/internal/config"
	"github.com/pubkeyapp/realms-vsr-holders/internal/handlers"
	"github.com/pubkeyapp/realms-vsr-holders/internal/models"
	"github.com/pubkeyapp/realms-vsr-holders/internal/services"
	"github.com/pubkeyapp/realms-vsr-holders/internal/vsr"
	"github.com/pubkeyapp/realms-vsr-holders/pkg/clock"
	"github.com/pubkeyapp/realms-vsr-holders/pkg/logger"
	"github.com/pubkeyapp/realms-vsr-holders/pkg/metrics"
	"github.com/pubkeyapp/realms-vsr-holders/pkg/ratelimiter"
)

const testAPIKey = "test-key"

type staticAuth struct{}

func (staticAuth) ValidateAPIKey(_ context.Context, key string) (*models.APIKey, error) {
	if key != testAPIKey {
		return nil, services.ErrInvalidAPIKey
	}
	return &models.APIKey{ID: primitive.NewObjectID(), Key: key, Name: "integration", Active: true}, nil
}

// memorySource serves voter accounts for a single VSR program
type memorySource struct {
	accounts []services.RawAccount
}

func (m *memorySource) ScanProgramAccounts(_ context.Context, _ solana.PublicKey, filters ...services.ScanFilter) ([]services.RawAccount, error) {
	var out []services.RawAccount
	for _, account := range m.accounts {
		ok := true
		for _, f := range filters {
			ok = ok && f.Matches(account.Data)
		}
		if ok {
			out = append(out, account)
		}
	}
	return out, nil
}

func (m *memorySource) FetchAccount(context.Context, solana.PublicKey) (*services.RawAccount, error) {
	return nil, nil
}

func (m *memorySource) IsHealthy(context.Context) error { return nil }

func (m *memorySource) Endpoint() string { return "http://127.0.0.1:8899" }

func (m *memorySource) ClusterMoniker(context.Context) (string, error) { return "localnet", nil }

func voterAccount(authority solana.PublicKey, amount float64) services.RawAccount {
	data := make([]byte, vsr.VoterV1.AccountSize)
	copy(data[vsr.VoterV1.AuthorityOffset:], authority[:])
	binary.LittleEndian.PutUint64(data[vsr.VoterV1.DepositSlots[0].AmountOffset:], uint64(amount*1e6))
	return services.RawAccount{Address: solana.NewWallet().PublicKey(), Data: data}
}

func newTestServer(t *testing.T, source *memorySource, limit int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	keys, err := config.GovernanceConfig{
		VSRProgramID:        "vsr2nfGVNHmSY8uxoBGqq8AQbwz3JwaEaHqGbsTPXqQ",
		GovernanceProgramID: "GovER5Lthms3bLBqWub97yVrMmEogzX7xNjdXpPPCVZw",
		Realm:               "F9VL4wo49aUe8FufjMbU6uhdfyDRqKY54WpzdpncUSk9",
		Registrar:           "5sGLEKcJ35UGdbHtSWMtGbhLqRycQJSCaUAyEpnz6TA2",
		GoverningMint:       "Ds52CDgqdWbTWsua1hgT3AuSSy4FNx2Ezge1br3jQ14a",
	}.Keys()
	require.NoError(t, err)

	cfg := &config.Config{Cache: config.CacheConfig{TTL: time.Minute, CleanupInterval: time.Hour}}
	collector := metrics.NewCollector()
	policy := services.NewPowerPolicy(source, keys, clock.At(1_750_000_000), logger.Nop())
	powerService := services.NewPowerService(policy, cfg, collector, logger.Nop())
	t.Cleanup(powerService.Stop)

	limiter := ratelimiter.New(limit, time.Minute)
	t.Cleanup(limiter.Stop)

	router := handlers.NewRouter(
		powerService,
		handlers.NewHealthHandler(nil, services.NewRPCHealthChecker(source)),
		handlers.NewStatusHandler(powerService, source),
	)
	return newEngine(router, staticAuth{}, limiter, collector)
}

func get(engine *gin.Engine, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestGovernancePowerEndToEnd(t *testing.T) {
	wallet := solana.NewWallet().PublicKey()
	source := &memorySource{accounts: []services.RawAccount{voterAccount(wallet, 750)}}
	engine := newTestServer(t, source, 100)

	w := get(engine, "/api/governance-power/"+wallet.String(), testAPIKey)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(logger.CorrelationIDHeader))

	var result models.CanonicalPowerResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, models.SourceVSR, result.Source)
	assert.InDelta(t, 750.0, result.TotalGovernancePower, 1e-9)
	require.Len(t, result.Deposits, 1)

	req := httptest.NewRequest(http.MethodPost, "/api/governance-power",
		strings.NewReader(`{"wallets":["`+wallet.String()+`"]}`))
	req.Header.Set("Authorization", testAPIKey)
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var batch models.PowerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &batch))
	assert.True(t, batch.Cached)
	require.Len(t, batch.Results, 1)
	assert.Equal(t, result.TotalGovernancePower, batch.Results[0].TotalGovernancePower)
}

func TestAPIRequiresKey(t *testing.T) {
	engine := newTestServer(t, &memorySource{}, 100)
	wallet := solana.NewWallet().PublicKey().String()

	w := get(engine, "/api/governance-power/"+wallet, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(engine, "/api/governance-power/"+wallet, "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Health and monitoring stay open
	assert.Equal(t, http.StatusOK, get(engine, "/health", "").Code)
	assert.Equal(t, http.StatusOK, get(engine, "/status", "").Code)
	assert.Equal(t, http.StatusOK, get(engine, "/metrics", "").Code)
}

func TestAPIRateLimited(t *testing.T) {
	engine := newTestServer(t, &memorySource{}, 2)
	path := "/api/governance-power/" + solana.NewWallet().PublicKey().String()

	assert.Equal(t, http.StatusOK, get(engine, path, testAPIKey).Code)
	assert.Equal(t, http.StatusOK, get(engine, path, testAPIKey).Code)

	w := get(engine, path, testAPIKey)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// The health routes are not limited
	assert.Equal(t, http.StatusOK, get(engine, "/health/live", "").Code)
}

func TestCORSPreflight(t *testing.T) {
	engine := newTestServer(t, &memorySource{}, 100)

	req := httptest.NewRequest(http.MethodOptions, "/api/governance-power", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
