package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/pubkeyapp/realms-vsr-holders/internal/config"
	"github.com/pubkeyapp/realms-vsr-holders/internal/services"
	"github.com/pubkeyapp/realms-vsr-holders/pkg/clock"
	"github.com/pubkeyapp/realms-vsr-holders/pkg/logger"
	"github.com/pubkeyapp/realms-vsr-holders/pkg/metrics"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("vsr-power", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		wallet   = fs.String("wallet", "", "Wallet address to resolve (base58)")
		endpoint = fs.String("endpoint", "", "Solana RPC endpoint, overrides SOLANA_RPC_ENDPOINT")
		at       = fs.Int64("at", 0, "Unix timestamp to evaluate lockups at (default now)")
		verbose  = fs.Bool("v", false, "Log decoding decisions to stderr")
		pretty   = fs.Bool("pretty", true, "Pretty-print JSON output")
	)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *wallet == "" {
		fmt.Fprintln(stderr, "missing -wallet")
		fs.Usage()
		return 1
	}
	address, err := services.ParseWallet(*wallet)
	if err != nil {
		fmt.Fprintf(stderr, "invalid wallet %q: %v\n", *wallet, err)
		return 1
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "failed to load configuration: %v\n", err)
		return 1
	}
	if *endpoint != "" {
		cfg.RPC.Endpoint = *endpoint
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "invalid configuration: %v\n", err)
		return 1
	}
	keys, err := cfg.Governance.Keys()
	if err != nil {
		fmt.Fprintf(stderr, "invalid governance keys: %v\n", err)
		return 1
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	log, err := logger.New(&logger.Config{Level: level, Environment: "development", OutputPaths: []string{"stderr"}})
	if err != nil {
		fmt.Fprintf(stderr, "failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	var clk clock.Clock = clock.SystemClock{}
	if *at > 0 {
		clk = clock.At(*at)
	}

	client := services.NewSolanaClient(&cfg.RPC, log, metrics.NewCollector())

	fmt.Fprintf(stdout, "RPC endpoint: %s\n", services.RedactEndpoint(client.Endpoint()))
	monikerCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	moniker, err := client.ClusterMoniker(monikerCtx)
	cancel()
	if err != nil {
		log.Warn("Failed to identify cluster", zap.Error(err))
	}
	fmt.Fprintf(stdout, "Cluster: %s\n", moniker)

	policy := services.NewPowerPolicy(client, keys, clk, log)
	result := policy.ResolveGovernancePower(ctx, address)

	enc := json.NewEncoder(stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(stderr, "encode failed: %v\n", err)
		return 1
	}
	return 0
}
