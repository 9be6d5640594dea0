package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"stablemint/config"
	"stablemint/crypto"
	"stablemint/engine"
	"stablemint/events"
	"stablemint/observability/logging"
	"stablemint/oracle"
	"stablemint/registry"
	"stablemint/rpc"
	"stablemint/state"
	"stablemint/storage"
	"stablemint/token"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("stablemintd", cfg.Environment, cfg.LogFile)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		panic(fmt.Sprintf("Failed to prepare data directory: %v", err))
	}
	// Custody holds pulled collateral and in-flight stable balances. The key
	// persists under the data directory so the address survives restarts.
	custodyKey, err := crypto.LoadOrCreateKey(filepath.Join(cfg.DataDir, "custody_key.hex"))
	if err != nil {
		panic(fmt.Sprintf("Failed to load custody key: %v", err))
	}
	custody := custodyKey.PubKey().Address()

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "positions"))
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	assets := make([]string, 0, len(cfg.Collateral))
	feeds := make([]string, 0, len(cfg.Collateral))
	for _, entry := range cfg.Collateral {
		assets = append(assets, entry.Symbol)
		feeds = append(feeds, entry.Feed)
	}
	reg, err := registry.New(assets, feeds)
	if err != nil {
		panic(fmt.Sprintf("Failed to build collateral registry: %v", err))
	}

	prices, err := oracle.NewAdapter(cfg.MaxQuoteAge())
	if err != nil {
		panic(fmt.Sprintf("Failed to construct price adapter: %v", err))
	}
	for _, entry := range cfg.Collateral {
		if strings.TrimSpace(entry.Endpoint) != "" {
			prices.RegisterFeed(entry.Feed, oracle.NewHTTPFeed(nil, entry.Endpoint, entry.APIKey))
			continue
		}
		// Without an endpoint the feed starts empty; prices arrive through
		// manual overrides and dependent operations fail closed until then.
		prices.RegisterFeed(entry.Feed, oracle.NewManualFeed())
		logger.Warn("collateral feed has no endpoint, starting with manual feed", "feed", entry.Feed)
	}

	stable := token.NewStable(cfg.StableSymbol)
	params := engine.DefaultParams()
	params.LiquidationThreshold = cfg.LiquidationThreshold
	params.LiquidationBonus = cfg.LiquidationBonus
	params.LiquidationPrecision = cfg.LiquidationPrecision

	eng, err := engine.NewEngine(reg, prices, stable, custody, params)
	if err != nil {
		panic(fmt.Sprintf("Failed to construct engine: %v", err))
	}
	eng.SetState(state.NewManager(db))
	eng.SetEmitter(events.NewLogEmitter(logger))
	for _, entry := range cfg.Collateral {
		if err := eng.RegisterCollateralAsset(token.NewLedger(entry.Symbol)); err != nil {
			panic(fmt.Sprintf("Failed to register collateral asset %s: %v", entry.Symbol, err))
		}
	}

	server := rpc.NewServer(eng, cfg.RPCAuthToken, logger)
	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("rpc server listening", "address", cfg.RPCAddress, "custody", custody.String(), "assets", reg.Assets())
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("rpc server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	logger.Info("stablemintd stopped")
}
