package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/viper"
)

// ConfigFileEnv names an optional YAML file layered under the environment
const ConfigFileEnv = "VSR_CONFIG_FILE"

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `json:"server"`
	MongoDB    MongoDBConfig    `json:"mongodb"`
	RPC        RPCConfig        `json:"rpc"`
	Cache      CacheConfig      `json:"cache"`
	RateLimit  RateLimitConfig  `json:"rate_limit"`
	Logging    LoggingConfig    `json:"logging"`
	Governance GovernanceConfig `json:"governance"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `json:"port"`
	Host         string        `json:"host"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// MongoDBConfig holds the API key store configuration
type MongoDBConfig struct {
	URI              string        `json:"uri"`
	Database         string        `json:"database"`
	APIKeyCollection string        `json:"api_key_collection"`
	ConnectTimeout   time.Duration `json:"connect_timeout"`
	MaxPoolSize      uint64        `json:"max_pool_size"`
}

// RPCConfig holds Solana RPC configuration
type RPCConfig struct {
	Endpoint   string        `json:"endpoint"`
	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"`
	RetryDelay time.Duration `json:"retry_delay"`
}

// CacheConfig holds governance power cache configuration
type CacheConfig struct {
	TTL             time.Duration `json:"ttl"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `json:"requests_per_minute"`
	WindowSize        time.Duration `json:"window_size"`
	CleanupInterval   time.Duration `json:"cleanup_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string   `json:"level"`
	Environment string   `json:"environment"`
	OutputPaths []string `json:"output_paths"`
}

// GovernanceConfig identifies the DAO whose voting power is resolved
type GovernanceConfig struct {
	VSRProgramID        string `json:"vsr_program_id"`
	GovernanceProgramID string `json:"governance_program_id"`
	Realm               string `json:"realm"`
	Registrar           string `json:"registrar"`
	GoverningMint       string `json:"governing_mint"`
}

// GovernanceKeys is GovernanceConfig parsed into public keys
type GovernanceKeys struct {
	VSRProgramID        solana.PublicKey
	GovernanceProgramID solana.PublicKey
	Realm               solana.PublicKey
	Registrar           solana.PublicKey
	GoverningMint       solana.PublicKey
}

// Keys parses every configured address
func (g GovernanceConfig) Keys() (GovernanceKeys, error) {
	var keys GovernanceKeys
	for _, f := range []struct {
		name  string
		value string
		dst   *solana.PublicKey
	}{
		{"vsr_program_id", g.VSRProgramID, &keys.VSRProgramID},
		{"governance_program_id", g.GovernanceProgramID, &keys.GovernanceProgramID},
		{"realm", g.Realm, &keys.Realm},
		{"registrar", g.Registrar, &keys.Registrar},
		{"governing_mint", g.GoverningMint, &keys.GoverningMint},
	} {
		pk, err := solana.PublicKeyFromBase58(f.value)
		if err != nil {
			return GovernanceKeys{}, fmt.Errorf("invalid governance.%s %q: %w", f.name, f.value, err)
		}
		*f.dst = pk
	}
	return keys, nil
}

// envBindings maps config keys to the environment variables that override them
var envBindings = map[string]string{
	"server.port":                      "SERVER_PORT",
	"server.host":                      "SERVER_HOST",
	"server.read_timeout":              "SERVER_READ_TIMEOUT",
	"server.write_timeout":             "SERVER_WRITE_TIMEOUT",
	"server.idle_timeout":              "SERVER_IDLE_TIMEOUT",
	"mongodb.uri":                      "MONGODB_URI",
	"mongodb.database":                 "MONGODB_DATABASE",
	"mongodb.api_key_collection":       "MONGODB_APIKEY_COLLECTION",
	"mongodb.connect_timeout":          "MONGODB_CONNECT_TIMEOUT",
	"mongodb.max_pool_size":            "MONGODB_MAX_POOL_SIZE",
	"rpc.endpoint":                     "SOLANA_RPC_ENDPOINT",
	"rpc.timeout":                      "SOLANA_RPC_TIMEOUT",
	"rpc.max_retries":                  "SOLANA_RPC_MAX_RETRIES",
	"rpc.retry_delay":                  "SOLANA_RPC_RETRY_DELAY",
	"cache.ttl":                        "CACHE_TTL",
	"cache.cleanup_interval":           "CACHE_CLEANUP_INTERVAL",
	"rate_limit.requests_per_minute":   "RATE_LIMIT_REQUESTS_PER_MINUTE",
	"rate_limit.window_size":           "RATE_LIMIT_WINDOW_SIZE",
	"rate_limit.cleanup_interval":      "RATE_LIMIT_CLEANUP_INTERVAL",
	"logging.level":                    "LOG_LEVEL",
	"logging.environment":              "LOG_ENVIRONMENT",
	"logging.output_paths":             "LOG_OUTPUT_PATHS",
	"governance.vsr_program_id":        "VSR_PROGRAM_ID",
	"governance.governance_program_id": "GOVERNANCE_PROGRAM_ID",
	"governance.realm":                 "GOVERNANCE_REALM",
	"governance.registrar":             "VSR_REGISTRAR",
	"governance.governing_mint":        "GOVERNANCE_MINT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("mongodb.uri", "mongodb://localhost:27017")
	v.SetDefault("mongodb.database", "vsr_governance")
	v.SetDefault("mongodb.api_key_collection", "api_keys")
	v.SetDefault("mongodb.connect_timeout", 10*time.Second)
	v.SetDefault("mongodb.max_pool_size", 100)

	v.SetDefault("rpc.endpoint", rpc.MainNetBeta_RPC)
	v.SetDefault("rpc.timeout", 60*time.Second)
	v.SetDefault("rpc.max_retries", 3)
	v.SetDefault("rpc.retry_delay", time.Second)

	v.SetDefault("cache.ttl", 60*time.Second)
	v.SetDefault("cache.cleanup_interval", 5*time.Minute)

	v.SetDefault("rate_limit.requests_per_minute", 30)
	v.SetDefault("rate_limit.window_size", time.Minute)
	v.SetDefault("rate_limit.cleanup_interval", 5*time.Minute)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.environment", "development")
	v.SetDefault("logging.output_paths", "stdout")

	// IslandDAO
	v.SetDefault("governance.vsr_program_id", "vsr2nfGVNHmSY8uxoBGqq8AQbwz3JwaEaHqGbsTPXqQ")
	v.SetDefault("governance.governance_program_id", "GovER5Lthms3bLBqWub97yVrMmEogzX7xNjdXpPPCVZw")
	v.SetDefault("governance.realm", "F9VL4wo49aUe8FufjMbU6uhdfyDRqKY54WpzdpncUSk9")
	v.SetDefault("governance.registrar", "5sGLEKcJ35UGdbHtSWMtGbhLqRycQJSCaUAyEpnz6TA2")
	v.SetDefault("governance.governing_mint", "Ds52CDgqdWbTWsua1hgT3AuSSy4FNx2Ezge1br3jQ14a")
}

// LoadConfig loads configuration from defaults, the optional config file and
// environment variables, in increasing order of precedence.
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if path := os.Getenv(ConfigFileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	return &Config{
		Server: ServerConfig{
			Port:         v.GetString("server.port"),
			Host:         v.GetString("server.host"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
			IdleTimeout:  v.GetDuration("server.idle_timeout"),
		},
		MongoDB: MongoDBConfig{
			URI:              v.GetString("mongodb.uri"),
			Database:         v.GetString("mongodb.database"),
			APIKeyCollection: v.GetString("mongodb.api_key_collection"),
			ConnectTimeout:   v.GetDuration("mongodb.connect_timeout"),
			MaxPoolSize:      v.GetUint64("mongodb.max_pool_size"),
		},
		RPC: RPCConfig{
			Endpoint:   v.GetString("rpc.endpoint"),
			Timeout:    v.GetDuration("rpc.timeout"),
			MaxRetries: v.GetInt("rpc.max_retries"),
			RetryDelay: v.GetDuration("rpc.retry_delay"),
		},
		Cache: CacheConfig{
			TTL:             v.GetDuration("cache.ttl"),
			CleanupInterval: v.GetDuration("cache.cleanup_interval"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: v.GetInt("rate_limit.requests_per_minute"),
			WindowSize:        v.GetDuration("rate_limit.window_size"),
			CleanupInterval:   v.GetDuration("rate_limit.cleanup_interval"),
		},
		Logging: LoggingConfig{
			Level:       v.GetString("logging.level"),
			Environment: v.GetString("logging.environment"),
			OutputPaths: stringList(v, "logging.output_paths"),
		},
		Governance: GovernanceConfig{
			VSRProgramID:        v.GetString("governance.vsr_program_id"),
			GovernanceProgramID: v.GetString("governance.governance_program_id"),
			Realm:               v.GetString("governance.realm"),
			Registrar:           v.GetString("governance.registrar"),
			GoverningMint:       v.GetString("governance.governing_mint"),
		},
	}, nil
}

// Validate checks values that would otherwise fail on first use
func (c *Config) Validate() error {
	if c.RPC.Endpoint == "" {
		return fmt.Errorf("rpc.endpoint is required")
	}
	if c.RPC.MaxRetries < 0 {
		return fmt.Errorf("rpc.max_retries must not be negative")
	}
	if _, err := c.Governance.Keys(); err != nil {
		return err
	}
	return nil
}

// stringList reads key as a YAML list or a comma separated string
func stringList(v *viper.Viper, key string) []string {
	if _, ok := v.Get(key).([]interface{}); ok {
		return v.GetStringSlice(key)
	}
	return splitList(v.GetString(key))
}

// splitList parses a comma separated list, dropping empty items
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
