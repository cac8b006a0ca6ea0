// risk-gateway is a pre-trade risk gateway and order-routing engine: it
// runs every inbound order through a configurable, ordered risk pipeline
// before either crossing it against a resting opposite-side order on the
// same account (internalization) or routing it to market.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kalshi-dcm-demo/backend/internal/auth"
	"github.com/kalshi-dcm-demo/backend/internal/config"
	"github.com/kalshi-dcm-demo/backend/internal/fixadapter"
	"github.com/kalshi-dcm-demo/backend/internal/marketdata"
	"github.com/kalshi-dcm-demo/backend/internal/obslog"
	"github.com/kalshi-dcm-demo/backend/internal/ordermanager"
	"github.com/kalshi-dcm-demo/backend/internal/persistence"
	"github.com/kalshi-dcm-demo/backend/internal/risk"
	"github.com/kalshi-dcm-demo/backend/internal/sessionapi"
	"github.com/kalshi-dcm-demo/backend/internal/store"
)

func main() {
	log.Println("===========================================")
	log.Println("  Pre-Trade Risk Gateway")
	log.Println("===========================================")

	configPath := flag.String("config", "./configs/config.yaml", "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := obslog.New(obslog.Config{Level: cfg.Logging.Level, JSON: cfg.Logging.JSON, Output: os.Stdout})

	mem := store.NewMemory()

	persist, err := persistence.NewManager(cfg.Persistence.DataDir, cfg.Persistence.Enabled, cfg.Persistence.SnapshotInterval)
	if err != nil {
		log.Fatalf("failed to initialize persistence: %v", err)
	}
	log.Printf("persistence enabled=%v dir=%s", cfg.Persistence.Enabled, cfg.Persistence.DataDir)

	mdProvider := marketdata.NewHTTPProvider(marketdata.HTTPProviderConfig{
		BaseURL:    cfg.MarketData.BaseURL,
		APIKey:     cfg.MarketData.APIKey,
		Timeout:    cfg.MarketData.Timeout,
		RetryCount: cfg.MarketData.RetryCount,
	})

	plugins := buildPlugins(cfg.Risk.Enabled, mem, mdProvider, logger, cfg)
	pipeline := risk.NewPipeline(logger, plugins...)
	log.Printf("risk pipeline: %v", pipeline.Names())

	hub := sessionapi.NewHub()
	hubStop := make(chan struct{})
	go hub.Run(hubStop)

	var gateway fixadapter.Gateway = sessionapi.NewWireGateway(hub, mem)
	manager := ordermanager.New(mem, gateway, pipeline, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := sessionapi.NewWorkerPool(ctx, manager, logger, 256)

	issuer := auth.NewTokenIssuer(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL)
	operators := auth.NewOperatorDirectory(cfg.Admin.BcryptCost)
	for _, op := range cfg.Admin.Operators {
		if err := operators.Register(op.OperatorID, op.Password, op.Role); err != nil {
			log.Fatalf("failed to register operator %s: %v", op.OperatorID, err)
		}
	}
	handler := sessionapi.NewHandler(pool, hub)
	admin := sessionapi.NewAdminHandler(mem, pipeline, issuer, operators)
	router := sessionapi.NewRouter(handler, admin, issuer, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	autosaveStop := make(chan struct{})
	go persist.RunAutosave(autosaveStop, func() *persistence.DataSnapshot {
		return &persistence.DataSnapshot{
			Accounts:  mem.SnapshotAccounts(),
			Positions: mem.SnapshotPositions(),
			Orders:    mem.SnapshotOrders(),
		}
	})

	throttle := findThrottle(plugins)

	go func() {
		log.Printf("listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}
	if err := pool.Shutdown(shutdownCtx); err != nil {
		log.Printf("worker pool did not drain cleanly: %v", err)
	}

	close(hubStop)
	close(autosaveStop)
	if throttle != nil {
		throttle.Close()
	}
	cancel()

	log.Println("gateway stopped")
}

func buildPlugins(enabled []string, s *store.Memory, md marketdata.Provider, logger obslog.Logger, cfg *config.Config) []risk.Plugin {
	plugins := make([]risk.Plugin, 0, len(enabled))
	for _, name := range enabled {
		switch name {
		case "MessageThrottling":
			plugins = append(plugins, risk.NewMessageThrottling())
		case "TradingMode":
			plugins = append(plugins, risk.NewTradingMode(s, logger))
		case "CreditLimit":
			plugins = append(plugins, risk.NewCreditLimit(s, md, logger))
		case "NotionalLimit":
			plugins = append(plugins, risk.NewNotionalLimit(s, md, logger))
		case "Margin":
			plugins = append(plugins, risk.NewMargin(s, logger))
		case "SurveillanceCheck":
			plugins = append(plugins, risk.NewSurveillanceCheck(s, logger))
		default:
			log.Printf("unknown risk plugin %q in config, skipping", name)
		}
	}
	return plugins
}

func findThrottle(plugins []risk.Plugin) *risk.MessageThrottling {
	for _, p := range plugins {
		if t, ok := p.(*risk.MessageThrottling); ok {
			return t
		}
	}
	return nil
}
