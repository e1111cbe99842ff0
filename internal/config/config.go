package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr    string
	LogLevel    string
	LogFormat   string
	AdminAPIKey string

	ArtifactBackend string
	ArtifactDir     string
	SQLitePath      string
	PostgresDSN     string

	RPCURL              string
	ChainID             int64
	RegistryAddress     string
	CustodyAddress      string
	PublisherPrivateKey string

	PublishTimeout      time.Duration
	ReceiptPollInterval time.Duration

	ProofMaxAge      time.Duration
	MerkleSortLeaves bool
	TokenDecimals    int

	PolicyPath            string
	AllowInsolventPublish bool

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	PublishLockTTL time.Duration

	RateLimitRequests      int
	RateLimitWindowSeconds int

	CoordinatorURL     string
	CoordinatorTimeout time.Duration

	HistoryLimit int
}

func FromEnv() Config {
	return Config{
		HTTPAddr:               envDefault("HTTP_ADDR", ":8080"),
		LogLevel:               envDefault("LOG_LEVEL", "info"),
		LogFormat:              envDefault("LOG_FORMAT", "text"),
		AdminAPIKey:            os.Getenv("ADMIN_API_KEY"),
		ArtifactBackend:        strings.ToLower(envDefault("ARTIFACT_BACKEND", "fs")),
		ArtifactDir:            envDefault("ARTIFACT_DIR", "epochs"),
		SQLitePath:             envDefault("SQLITE_PATH", "solvency.db"),
		PostgresDSN:            os.Getenv("POSTGRES_DSN"),
		RPCURL:                 os.Getenv("RPC_URL"),
		ChainID:                int64(envIntDefault("CHAIN_ID", 0)),
		RegistryAddress:        os.Getenv("REGISTRY_ADDRESS"),
		CustodyAddress:         os.Getenv("CUSTODY_ADDRESS"),
		PublisherPrivateKey:    os.Getenv("PUBLISHER_PRIVATE_KEY"),
		PublishTimeout:         envDurationDefault("PUBLISH_TIMEOUT", 2*time.Minute),
		ReceiptPollInterval:    envDurationDefault("RECEIPT_POLL_INTERVAL", 2*time.Second),
		ProofMaxAge:            envDurationDefault("PROOF_MAX_AGE", 365*24*time.Hour),
		MerkleSortLeaves:       envBoolDefault("MERKLE_SORT_LEAVES", true),
		TokenDecimals:          envIntDefault("TOKEN_DECIMALS", 18),
		PolicyPath:             os.Getenv("POLICY_PATH"),
		AllowInsolventPublish:  envBoolDefault("ALLOW_INSOLVENT_PUBLISH", false),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                envIntDefault("REDIS_DB", 0),
		PublishLockTTL:         envDurationDefault("PUBLISH_LOCK_TTL", 5*time.Minute),
		RateLimitRequests:      envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds: envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		CoordinatorURL:         os.Getenv("COORDINATOR_URL"),
		CoordinatorTimeout:     envDurationDefault("COORDINATOR_TIMEOUT", 10*time.Second),
		HistoryLimit:           envIntDefault("HISTORY_LIMIT", 100),
	}
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}

// envDurationDefault accepts Go durations ("90s") or a bare number of seconds.
func envDurationDefault(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return def
}

func (c Config) RateLimitWindow() time.Duration {
	if c.RateLimitWindowSeconds <= 0 {
		return 0
	}
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}
