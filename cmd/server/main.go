package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/signalfeed/internal/config"
	"github.com/dgnsrekt/signalfeed/internal/feed"
	"github.com/dgnsrekt/signalfeed/internal/notify"
	"github.com/dgnsrekt/signalfeed/internal/server"
	"github.com/dgnsrekt/signalfeed/internal/store"
	"github.com/dgnsrekt/signalfeed/internal/ws"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Setup logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	// Load config
	cfg, err := config.LoadServerConfig()
	if err != nil {
		logger.Error("failed to load config", zap.Error(err))
		return 1
	}

	logger.Info("configuration loaded",
		zap.String("port", cfg.Port),
		zap.String("seedFile", cfg.SeedFile),
		zap.Int("demoCount", cfg.DemoCount),
		zap.Duration("demoInterval", cfg.DemoInterval),
		zap.Bool("wsEnabled", cfg.WSEnabled),
		zap.Bool("ntfyEnabled", cfg.NtfyEnabled),
	)

	// Create store
	var st *store.MemoryStore
	if cfg.SeedFile != "" {
		st, err = store.NewMemoryStoreFromJSONL(cfg.SeedFile, logger)
		if err != nil {
			logger.Error("failed to seed store", zap.Error(err))
			return 1
		}
	} else {
		st = store.NewMemoryStore(logger)
	}
	defer st.Close()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Broadcast hub: one per process, shared by reference.
	hub := feed.NewHub("signals", logger)
	go hub.Run(ctx)

	// Notifier
	notifier := notify.New(cfg, logger)

	// Create server
	srv := server.NewServer(st, hub, notifier, cfg, logger)

	// WebSocket components (optional)
	var wsHub *ws.Hub
	var negotiateHandler *ws.NegotiateHandler

	if cfg.WSEnabled {
		wsHub, err = ws.NewHub(logger)
		if err != nil {
			logger.Error("failed to create ws hub", zap.Error(err))
			return 1
		}
		go wsHub.Run(ctx)

		negotiateHandler = ws.NewNegotiateHandler(logger)

		feeder := ws.NewFeeder(hub, wsHub, logger)
		go feeder.Run(ctx)

		logger.Info("WebSocket feed enabled")
	}

	// Create router
	router, err := server.NewRouter(srv, wsHub, negotiateHandler, logger)
	if err != nil {
		logger.Error("failed to create router", zap.Error(err))
		return 1
	}

	// Setup HTTP server. No WriteTimeout: the feed endpoints are long-lived
	// streaming responses.
	httpServer := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Cancel context to stop hub and WebSocket components
	cancel()

	// Graceful HTTP server shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return 1
	}

	logger.Info("server stopped")
	return 0
}
