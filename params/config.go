package params

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Engine struct {
	// PollInterval paces the scheduling loop when the ledger has no new
	// sequence or no permit is available.
	//
	// Recommended values:
	//   - Devnet:     200ms (fast feedback, tolerable RPC load)
	//   - Production: 500ms-1s (the settlement program batches slowly anyway)
	PollInterval time.Duration
	MaxInflight  int // ConcurrencyGate limit
	MaxAttempts  int // attempts per order before terminal Failed
	RetryBase    time.Duration
	RetryCap     time.Duration
	DedupWindow  time.Duration // intake fingerprint window
}

type Gateway struct {
	URL            string
	ConfirmTimeout time.Duration // bounded wait for submission confirmation
	RequestTimeout time.Duration
}

type Node struct {
	APIAddr    string
	DataDir    string // pebble journal location; empty disables persistence
	LogFile    string
	PoolsFile  string
	RelayerKey string // hex private key; empty generates an ephemeral dev key
}

type Config struct {
	Engine  Engine
	Gateway Gateway
	Node    Node
}

func Default() Config {
	return Config{
		Engine: Engine{
			PollInterval: 200 * time.Millisecond,
			MaxInflight:  4,
			MaxAttempts:  3,
			RetryBase:    500 * time.Millisecond,
			RetryCap:     30 * time.Second,
			DedupWindow:  2 * time.Minute,
		},
		Gateway: Gateway{
			URL:            "http://localhost:8899",
			ConfirmTimeout: 30 * time.Second,
			RequestTimeout: 10 * time.Second,
		},
		Node: Node{
			APIAddr:   ":8080",
			DataDir:   "data/orders",
			LogFile:   "data/relayer.log",
			PoolsFile: "pools.json",
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	cfg.Engine.PollInterval = envDuration("ENGINE_POLL_INTERVAL_MS", cfg.Engine.PollInterval)
	cfg.Engine.MaxInflight = envInt("ENGINE_MAX_INFLIGHT", cfg.Engine.MaxInflight)
	cfg.Engine.MaxAttempts = envInt("ENGINE_MAX_ATTEMPTS", cfg.Engine.MaxAttempts)
	cfg.Engine.RetryBase = envDuration("ENGINE_RETRY_BASE_MS", cfg.Engine.RetryBase)
	cfg.Engine.RetryCap = envDuration("ENGINE_RETRY_CAP_MS", cfg.Engine.RetryCap)
	cfg.Engine.DedupWindow = envDuration("INTAKE_DEDUP_WINDOW_MS", cfg.Engine.DedupWindow)

	cfg.Gateway.URL = getEnv("GATEWAY_URL", cfg.Gateway.URL)
	cfg.Gateway.ConfirmTimeout = envDuration("GATEWAY_CONFIRM_TIMEOUT_MS", cfg.Gateway.ConfirmTimeout)
	cfg.Gateway.RequestTimeout = envDuration("GATEWAY_REQUEST_TIMEOUT_MS", cfg.Gateway.RequestTimeout)

	cfg.Node.APIAddr = getEnv("API_ADDR", cfg.Node.APIAddr)
	cfg.Node.DataDir = getEnv("DATA_DIR", cfg.Node.DataDir)
	cfg.Node.LogFile = getEnv("LOG_FILE", cfg.Node.LogFile)
	cfg.Node.PoolsFile = getEnv("POOLS_FILE", cfg.Node.PoolsFile)
	cfg.Node.RelayerKey = getEnv("RELAYER_PRIVATE_KEY", cfg.Node.RelayerKey)

	return cfg
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
