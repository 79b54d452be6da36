package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/woxQAQ/basic-lsp-server/internal/config"
	"github.com/woxQAQ/basic-lsp-server/internal/logging"
	"github.com/woxQAQ/basic-lsp-server/internal/lsp"
	"github.com/woxQAQ/basic-lsp-server/internal/telemetry"
)

var (
	version = "0.1.0"
	commit  = "none"
	date    = "unknown"
)

const shutdownGrace = 5 * time.Second

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to configuration file")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	logFile := flag.String("log-file", "", "Log file path, or stderr")
	transport := flag.String("transport", "", "Transport (stdio, tcp, websocket)")
	addr := flag.String("addr", "", "Listen address for tcp and websocket")
	flag.Parse()

	// Load configuration, then apply explicit flags on top
	cfg, err := config.LoadServerConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-file":
			cfg.LogFile = *logFile
		case "transport":
			cfg.Transport.Mode = *transport
		case "addr":
			cfg.Transport.Address = *addr
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	lsp.Version = version
	logger.Info("Starting basic-lsp-server",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("date", date),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Install exporters before the server creates its instruments
	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.ExportConfig{
		Enabled:        cfg.MetricsEnabled,
		Endpoint:       cfg.OTLPEndpoint,
		Insecure:       cfg.OTLPInsecure,
		ServiceVersion: version,
	})
	if err != nil {
		logger.Fatal("Failed to set up telemetry export", zap.Error(err))
	}

	server, err := lsp.NewServer(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	serveErr := server.Serve(ctx)

	closeCtx, closeCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer closeCancel()
	if err := server.Close(closeCtx); err != nil {
		logger.Warn("Server close incomplete", zap.Error(err))
	}
	if err := shutdownTelemetry(closeCtx); err != nil {
		logger.Warn("Telemetry flush incomplete", zap.Error(err))
	}

	if serveErr != nil && ctx.Err() == nil {
		logger.Error("Server stopped with error", zap.Error(serveErr))
		logger.Sync()
		os.Exit(1)
	}

	logger.Info("Server shutdown complete")
}
