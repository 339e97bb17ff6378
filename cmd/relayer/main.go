package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/swapline/relayer/params"
	"github.com/swapline/relayer/pkg/api"
	"github.com/swapline/relayer/pkg/crypto"
	"github.com/swapline/relayer/pkg/ledger"
	"github.com/swapline/relayer/pkg/notify"
	"github.com/swapline/relayer/pkg/pool"
	"github.com/swapline/relayer/pkg/relay"
	"github.com/swapline/relayer/pkg/storage"
	"github.com/swapline/relayer/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	clock := util.RealClock{}

	// ---- Relayer key ----
	var signer *crypto.Signer
	if cfg.Node.RelayerKey != "" {
		signer, err = crypto.FromPrivateKeyHex(cfg.Node.RelayerKey)
		if err != nil {
			sugar.Fatalw("relayer_key_invalid", "err", err)
		}
	} else {
		// Dev fallback: the settlement program must have this address
		// registered for submissions to land.
		signer, err = crypto.GenerateKey()
		if err != nil {
			sugar.Fatalw("relayer_key_generation_failed", "err", err)
		}
		sugar.Warnw("ephemeral_relayer_key", "address", signer.Address().Hex())
	}
	sugar.Infow("relayer_identity", "address", signer.Address().Hex())

	// ---- Pools (static configuration) ----
	pools := pool.NewRegistry()
	if err := pools.LoadFile(cfg.Node.PoolsFile); err != nil {
		sugar.Fatalw("pools_load_failed", "file", cfg.Node.PoolsFile, "err", err)
	}
	sugar.Infow("pools_loaded", "count", pools.Count())

	// ---- Order journal (optional persistence) ----
	var journal relay.Journal
	var pebbleStore *storage.PebbleStore
	if cfg.Node.DataDir != "" {
		pebbleStore, err = storage.NewPebbleStore(cfg.Node.DataDir)
		if err != nil {
			sugar.Fatalw("journal_open_failed", "dir", cfg.Node.DataDir, "err", err)
		}
		defer pebbleStore.Close()
		journal = pebbleStore
	} else {
		sugar.Warn("order journal disabled - statuses will not survive restart")
	}

	// ---- Core wiring ----
	hub := notify.NewHub(sugar)
	store := relay.NewStore(cfg.Engine.DedupWindow, clock, journal, sugar)
	queue := relay.NewQueue()

	if pebbleStore != nil {
		orders, err := pebbleStore.LoadAllOrders()
		if err != nil {
			sugar.Fatalw("journal_replay_failed", "err", err)
		}
		store.Restore(orders)
		for _, o := range orders {
			if o.Status == relay.StatusPending || o.Status == relay.StatusExecuting {
				queue.Enqueue(o.ID)
			}
		}
		sugar.Infow("journal_replayed", "orders", len(orders))
	}

	gw := ledger.NewHTTPGateway(ledger.HTTPGatewayConfig{
		BaseURL:        cfg.Gateway.URL,
		RequestTimeout: cfg.Gateway.RequestTimeout,
		ConfirmTimeout: cfg.Gateway.ConfirmTimeout,
		Logger:         sugar,
	})

	svc := relay.NewService(relay.ServiceConfig{PollInterval: cfg.Engine.PollInterval},
		store, queue, pools, gw, hub, clock, sugar)

	engine := relay.NewEngine(relay.EngineConfig{
		PollInterval: cfg.Engine.PollInterval,
		MaxInflight:  cfg.Engine.MaxInflight,
		Retry: relay.RetryPolicy{
			MaxAttempts: cfg.Engine.MaxAttempts,
			Base:        cfg.Engine.RetryBase,
			Cap:         cfg.Engine.RetryCap,
		},
		PayloadTTL: cfg.Gateway.ConfirmTimeout * 2,
	}, store, queue, gw, signer, hub, clock, sugar)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- API Server ----
	apiServer := api.NewServer(svc, engine, pools, queue, hub, sugar)
	go func() {
		if err := apiServer.Start(cfg.Node.APIAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	// ---- Execution engine ----
	go func() {
		if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
			sugar.Fatalw("engine_failed", "err", err)
		}
	}()

	sugar.Infow("relayer_started",
		"gateway", cfg.Gateway.URL,
		"api_addr", cfg.Node.APIAddr,
		"max_inflight", cfg.Engine.MaxInflight,
		"max_attempts", cfg.Engine.MaxAttempts)

	// Progress logging loop
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	var lastExecuted uint64
	for {
		select {
		case <-ctx.Done():
			sugar.Info("shutting down")
			return
		case <-ticker.C:
			m := engine.Metrics()
			if m.Executed != lastExecuted || m.Retries > 0 {
				sugar.Infow("relay_progress",
					"cursor", engine.Cursor().Current(),
					"executed", m.Executed,
					"failed", m.Failed,
					"retries", m.Retries,
					"skips", m.Skips,
					"queue", queue.Len(),
					"inflight", engine.Gate().InUse())
				lastExecuted = m.Executed
			}
		}
	}
}
