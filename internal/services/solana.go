package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/pubkeyapp/realms-vsr-holders/internal/config"
	"github.com/pubkeyapp/realms-vsr-holders/pkg/logger"
	"github.com/pubkeyapp/realms-vsr-holders/pkg/metrics"
)

// Genesis hashes of the public clusters
const (
	mainnetGenesis = "5eykt4UsFv8P8NJdTREpY1vzqKqZKvdpKuc147dw2N9d"
	devnetGenesis  = "EtWTRABZaYq6iMfeYKouRu166VU2xqa1wcaWoxPkrZBG"
	testnetGenesis = "4uhcVJyU9pJkvQyS88uRDiswHXSCkY3zQawwpjk2NsNY"
)

// SolanaClient is the AccountSource backed by Solana JSON-RPC
type SolanaClient struct {
	client  *rpc.Client
	config  *config.RPCConfig
	logger  *logger.Logger
	metrics *metrics.Collector
}

// NewSolanaClient creates a Solana RPC account source
func NewSolanaClient(cfg *config.RPCConfig, log *logger.Logger, collector *metrics.Collector) *SolanaClient {
	if log == nil {
		log = logger.Nop()
	}
	return &SolanaClient{
		client:  rpc.New(cfg.Endpoint),
		config:  cfg,
		logger:  log,
		metrics: collector,
	}
}

// Endpoint returns the configured RPC URL
func (s *SolanaClient) Endpoint() string {
	return s.config.Endpoint
}

// RedactEndpoint drops the query string and credentials, which commonly
// carry provider API keys
func RedactEndpoint(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "<invalid endpoint>"
	}
	u.RawQuery = ""
	u.User = nil
	u.Fragment = ""
	return u.String()
}

// ScanProgramAccounts implements AccountSource
func (s *SolanaClient) ScanProgramAccounts(ctx context.Context, programID solana.PublicKey, filters ...ScanFilter) ([]RawAccount, error) {
	opts := &rpc.GetProgramAccountsOpts{
		Commitment: rpc.CommitmentConfirmed,
		Encoding:   solana.EncodingBase64,
		Filters:    make([]rpc.RPCFilter, 0, len(filters)),
	}
	for _, f := range filters {
		if f.DataSize > 0 {
			opts.Filters = append(opts.Filters, rpc.RPCFilter{DataSize: uint64(f.DataSize)})
		}
		if f.Memcmp != nil {
			opts.Filters = append(opts.Filters, rpc.RPCFilter{Memcmp: &rpc.RPCFilterMemcmp{
				Offset: uint64(f.Memcmp.Offset),
				Bytes:  solana.Base58(f.Memcmp.Bytes),
			}})
		}
	}

	var out rpc.GetProgramAccountsResult
	err := s.withRetry(ctx, "getProgramAccounts", func(ctx context.Context) error {
		var err error
		out, err = s.client.GetProgramAccountsWithOpts(ctx, programID, opts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scan %s: %v", ErrAccountSource, programID, err)
	}

	accounts := make([]RawAccount, 0, len(out))
	for _, keyed := range out {
		if keyed == nil || keyed.Account == nil || keyed.Account.Data == nil {
			continue
		}
		accounts = append(accounts, RawAccount{Address: keyed.Pubkey, Data: keyed.Account.Data.GetBinary()})
	}
	return accounts, nil
}

// FetchAccount implements AccountSource
func (s *SolanaClient) FetchAccount(ctx context.Context, address solana.PublicKey) (*RawAccount, error) {
	opts := &rpc.GetAccountInfoOpts{
		Commitment: rpc.CommitmentConfirmed,
		Encoding:   solana.EncodingBase64,
	}

	var out *rpc.GetAccountInfoResult
	err := s.withRetry(ctx, "getAccountInfo", func(ctx context.Context) error {
		var err error
		out, err = s.client.GetAccountInfoWithOpts(ctx, address, opts)
		return err
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", ErrAccountSource, address, err)
	}
	if out == nil || out.Value == nil || out.Value.Data == nil {
		return nil, nil
	}
	return &RawAccount{Address: address, Data: out.Value.Data.GetBinary()}, nil
}

// IsHealthy checks if the RPC endpoint is responsive
func (s *SolanaClient) IsHealthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.client.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed); err != nil {
		return fmt.Errorf("RPC health check failed: %w", err)
	}
	return nil
}

// ClusterMoniker names the cluster behind the endpoint by its genesis hash
func (s *SolanaClient) ClusterMoniker(ctx context.Context) (string, error) {
	var hash solana.Hash
	err := s.withRetry(ctx, "getGenesisHash", func(ctx context.Context) error {
		var err error
		hash, err = s.client.GetGenesisHash(ctx)
		return err
	})
	if err != nil {
		return "unknown", fmt.Errorf("%w: genesis hash: %v", ErrAccountSource, err)
	}
	return MonikerForGenesis(hash.String()), nil
}

// MonikerForGenesis maps a genesis hash to a cluster name. Any other hash is
// assumed to be a local validator.
func MonikerForGenesis(hash string) string {
	switch hash {
	case mainnetGenesis:
		return "mainnet"
	case devnetGenesis:
		return "devnet"
	case testnetGenesis:
		return "testnet"
	case "":
		return "unknown"
	default:
		return "localnet"
	}
}

// withRetry runs call with a per-attempt timeout, retrying with a linearly
// growing delay. Not-found answers are returned immediately.
func (s *SolanaClient) withRetry(ctx context.Context, method string, call func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
		start := time.Now()
		err := call(attemptCtx)
		cancel()

		notFound := errors.Is(err, rpc.ErrNotFound)
		if s.metrics != nil {
			s.metrics.RecordRPCCall(time.Since(start), err == nil || notFound)
		}
		if err == nil || notFound {
			return err
		}
		lastErr = err

		s.logger.Warn("RPC call failed",
			zap.String("method", method),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		if attempt < s.config.MaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.config.RetryDelay * time.Duration(attempt+1)):
			}
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", method, s.config.MaxRetries+1, lastErr)
}
