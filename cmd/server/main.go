// Package main provides the rectification HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.ngs.io/rectify/internal/adapter/store"
	"go.ngs.io/rectify/internal/adapter/store/lru"
	"go.ngs.io/rectify/internal/adapter/store/memory"
	"go.ngs.io/rectify/internal/adapter/store/netcdf"
	"go.ngs.io/rectify/internal/adapter/store/sqlite"
	"go.ngs.io/rectify/internal/adapter/store/valkey"
	httpHandler "go.ngs.io/rectify/internal/http"
	"go.ngs.io/rectify/internal/pkg/config"
	"go.ngs.io/rectify/internal/pkg/logging"
	"go.ngs.io/rectify/internal/usecase"
)

const version = "0.1.0"

func main() {
	// Parse command-line flags.
	showHelp := flag.Bool("help", false, "Show usage information")
	showVersion := flag.Bool("version", false, "Show version information")
	configFile := flag.String("config", "", "Path to a config file (default: ./config.yaml if present)")
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}

	if *showVersion {
		fmt.Printf("rectify-server version %s\n", version)
		return
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	slog.Info("starting rectify server",
		"version", version,
		"port", cfg.Server.Port,
		"store", cfg.Store.Kind,
		"data_dir", cfg.Store.DataDir,
		"cache", cfg.Cache.Kind,
		"workers", cfg.Rectify.Workers)

	// Initialize stores.
	dataStore, err := newDataStore(context.Background(), cfg.Store)
	if err != nil {
		log.Fatalf("data store: %v", err)
	}

	// Initialize pixel map cache (optional).
	var cache store.PixelMapCache
	switch cfg.Cache.Kind {
	case "memory":
		c := lru.New(cfg.Cache.MaxEntries, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
		defer c.Close()
		cache = c
		slog.Info("pixel map cache enabled", "kind", "memory", "max_entries", cfg.Cache.MaxEntries)
	case "sqlite":
		c, err := sqlite.New(cfg.Cache.SQLitePath, cfg.Cache.PoolSize)
		if err != nil {
			log.Fatalf("pixel map cache: %v", err)
		}
		defer func() { _ = c.Close() }()
		cache = c
		slog.Info("pixel map cache enabled", "kind", "sqlite", "path", cfg.Cache.SQLitePath)
	case "valkey":
		c, err := valkey.New(cfg.Cache.ValkeyAddr, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
		if err != nil {
			slog.Warn("valkey unavailable, pixel map cache disabled", "error", err)
			break
		}
		defer c.Close()
		cache = c
		slog.Info("pixel map cache enabled", "kind", "valkey", "addr", cfg.Cache.ValkeyAddr)
	default:
		slog.Info("pixel map cache disabled")
	}

	// Initialize use case.
	rectifyUC := usecase.NewRectifyUseCase(dataStore, cache, usecase.Defaults{
		Delta:        cfg.Rectify.Delta,
		Workers:      cfg.Rectify.Workers,
		Oversampling: cfg.Rectify.Oversampling,
	})

	// Setup router.
	router := httpHandler.SetupRouter(rectifyUC, cfg.Server.CORSOrigins)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections", "signal", sig.String())

	// Give in-flight rectifications up to 30s to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}
}

// newDataStore opens the configured dataset store. A memory store is seeded
// from the data directory when it exists; rectified outputs stay in memory.
func newDataStore(ctx context.Context, cfg config.StoreConfig) (store.DataStore, error) {
	if cfg.Kind != "memory" {
		return netcdf.NewStore(cfg.DataDir), nil
	}

	mem := memory.NewStore()
	if _, err := os.Stat(cfg.DataDir); err != nil {
		slog.Warn("memory store starts empty, data directory not found", "data_dir", cfg.DataDir)
		return mem, nil
	}
	n, err := mem.Load(ctx, netcdf.NewStore(cfg.DataDir))
	if err != nil {
		return nil, fmt.Errorf("load datasets: %w", err)
	}
	slog.Info("loaded datasets into memory", "data_dir", cfg.DataDir, "count", n)
	return mem, nil
}

// printUsage prints usage information.
func printUsage() {
	fmt.Printf("Rectify Server v%s\n\n", version)
	fmt.Println("USAGE:")
	fmt.Println("  rectify-server [flags]")
	fmt.Println()
	fmt.Println("FLAGS:")
	fmt.Println("  -help          Show this help message")
	fmt.Println("  -version       Show version information")
	fmt.Println("  -config PATH   Read configuration from PATH")
	fmt.Println()
	fmt.Println("ENVIRONMENT VARIABLES:")
	fmt.Println("  RECTIFY_SERVER_PORT           Server port (default: 8080)")
	fmt.Println("  RECTIFY_SERVER_CORS_ORIGINS   Comma-separated list of allowed origins (default: all origins)")
	fmt.Println("  RECTIFY_STORE_KIND            netcdf, or memory loaded from the data directory (default: netcdf)")
	fmt.Println("  RECTIFY_STORE_DATA_DIR        NetCDF data directory (default: ./data)")
	fmt.Println("  RECTIFY_CACHE_KIND            none, memory, sqlite or valkey (default: none)")
	fmt.Println("  RECTIFY_CACHE_MAX_ENTRIES     In-memory cache size in pixel maps (default: 64)")
	fmt.Println("  RECTIFY_CACHE_SQLITE_PATH     SQLite pixel map cache (default: ./data/pixelmaps.db)")
	fmt.Println("  RECTIFY_CACHE_VALKEY_ADDR     Valkey address (default: localhost:6379)")
	fmt.Println("  RECTIFY_CACHE_TTL_SECONDS     Memory and valkey entry lifetime (default: 3600)")
	fmt.Println("  RECTIFY_RECTIFY_DELTA         Point-in-triangle tolerance (default: 0.001)")
	fmt.Println("  RECTIFY_RECTIFY_WORKERS       Extraction goroutines per variable (default: 4)")
	fmt.Println("  RECTIFY_LOG_LEVEL             debug, info, warn or error (default: info)")
	fmt.Println("  RECTIFY_LOG_FORMAT            json or text (default: json)")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Start server with default settings")
	fmt.Println("  rectify-server")
	fmt.Println()
	fmt.Println("  # Serve ./swaths with a SQLite pixel map cache")
	fmt.Println("  RECTIFY_STORE_DATA_DIR=./swaths RECTIFY_CACHE_KIND=sqlite rectify-server")
	fmt.Println()
	fmt.Println("API ENDPOINTS:")
	fmt.Println("  GET  /health                       Health check")
	fmt.Println("  GET  /metrics                      Prometheus metrics")
	fmt.Println("  GET  /v1/datasets                  List datasets")
	fmt.Println("  GET  /v1/datasets/:id/geometry     Coordinates and inferred output grid")
	fmt.Println("  POST /v1/rectify                   Rectify a dataset onto a regular grid")
	fmt.Println()
}
