// Command wasmcore-admin is the composition root for the WASM execution
// core's admin surface: it wires the default storage/runtime implementations
// together and serves the admin API over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/orama-network/wasmcore/internal/wasmcore/adminapi"
	"github.com/orama-network/wasmcore/internal/wasmcore/artifactstore"
	"github.com/orama-network/wasmcore/internal/wasmcore/cache"
	"github.com/orama-network/wasmcore/internal/wasmcore/dbexec"
	"github.com/orama-network/wasmcore/internal/wasmcore/engine"
	"github.com/orama-network/wasmcore/internal/wasmcore/httpexec"
	"github.com/orama-network/wasmcore/internal/wasmcore/loader"
	"github.com/orama-network/wasmcore/internal/wasmcore/metadatastore"
	"github.com/orama-network/wasmcore/internal/wasmcore/wasmconfig"
	"github.com/orama-network/wasmcore/internal/wasmcore/wasmlog"
)

func main() {
	cfg := loadConfig()

	logger, err := wasmlog.New(cfg.LogFormat)
	if err != nil {
		panic(err)
	}

	logger.ComponentInfo(wasmlog.ComponentAdmin, "starting wasmcore-admin")

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			logger.ComponentError(wasmlog.ComponentAdmin, "invalid configuration", zap.Error(e))
		}
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.ArtifactStoreDir, 0o755); err != nil {
		logger.ComponentError(wasmlog.ComponentAdmin, "failed to create artifact store directory", zap.Error(err))
		os.Exit(1)
	}

	artifacts, err := artifactstore.New(cfg.ArtifactStoreDir)
	if err != nil {
		logger.ComponentError(wasmlog.ComponentAdmin, "failed to open artifact store", zap.Error(err))
		os.Exit(1)
	}

	metadata, err := metadatastore.Open(cfg.MetadataStorePath)
	if err != nil {
		logger.ComponentError(wasmlog.ComponentAdmin, "failed to open metadata store", zap.Error(err))
		os.Exit(1)
	}
	defer metadata.Close()

	dbExec, err := dbexec.Open(cfg.DatabaseExecDBPath)
	if err != nil {
		logger.ComponentError(wasmlog.ComponentAdmin, "failed to open guest database", zap.Error(err))
		os.Exit(1)
	}
	defer dbExec.Close()

	httpExec := httpexec.New(30 * time.Second)

	ctx := context.Background()
	eng, err := engine.New(ctx, cfg, httpExec, dbExec, logger)
	if err != nil {
		logger.ComponentError(wasmlog.ComponentAdmin, "failed to build execution engine", zap.Error(err))
		os.Exit(1)
	}
	defer eng.Close(ctx)

	modCache := cache.New(cfg.CacheCapacity, logger)
	ld := loader.New(eng.Runtime(), modCache, artifacts, metadata, cfg, logger)

	_, router := adminapi.New(ld, metadata, artifacts, cfg, logger)

	server := &http.Server{
		Addr:    cfg.AdminListenAddr,
		Handler: router,
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		logger.ComponentError(wasmlog.ComponentAdmin, "failed to bind admin listen address", zap.Error(err))
		os.Exit(1)
	}
	logger.ComponentInfo(wasmlog.ComponentAdmin, "admin API listening", zap.String("addr", ln.Addr().String()))

	serveErrCh := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			serveErrCh <- err
			return
		}
		serveErrCh <- nil
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.ComponentInfo(wasmlog.ComponentAdmin, "shutdown signal received", zap.String("signal", sig.String()))
	case err := <-serveErrCh:
		if err != nil {
			logger.ComponentError(wasmlog.ComponentAdmin, "admin API server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.ComponentError(wasmlog.ComponentAdmin, "admin API shutdown error", zap.Error(err))
	} else {
		logger.ComponentInfo(wasmlog.ComponentAdmin, "admin API shutdown complete")
	}
}

// loadConfig loads config.yaml when --config points at one, falling back to
// defaults overridden by environment variables, matching the teacher's
// cmd/gateway flag-then-env-then-default layering.
func loadConfig() *wasmconfig.Config {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	var cfg *wasmconfig.Config
	if *configPath != "" {
		loaded, err := wasmconfig.LoadFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg = wasmconfig.DefaultConfig()
	}

	if v := os.Getenv("WASMCORE_ADMIN_LISTEN_ADDR"); v != "" {
		cfg.AdminListenAddr = v
	}
	if v := os.Getenv("WASMCORE_ARTIFACT_STORE_DIR"); v != "" {
		cfg.ArtifactStoreDir = v
	}
	if v := os.Getenv("WASMCORE_METADATA_STORE_PATH"); v != "" {
		cfg.MetadataStorePath = v
	}
	if v := os.Getenv("WASMCORE_DATABASE_EXEC_DB_PATH"); v != "" {
		cfg.DatabaseExecDBPath = v
	}
	if v := os.Getenv("WASMCORE_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("WASMCORE_REQUIRE_SIGNATURE"); v == "true" {
		cfg.RequireSignature = true
	}
	if v := os.Getenv("WASMCORE_ENABLE_SYSTEM_INTERFACE"); v == "false" {
		cfg.EnableSystemInterface = false
	}

	cfg.ApplyDefaults()
	return cfg
}
