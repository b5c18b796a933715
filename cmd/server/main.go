package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Akashpatel2609/PrepWise/internal/config"
	"github.com/Akashpatel2609/PrepWise/internal/metrics"
	"github.com/Akashpatel2609/PrepWise/internal/server"
	"github.com/Akashpatel2609/PrepWise/internal/session"
	"github.com/Akashpatel2609/PrepWise/internal/transcription"
	"github.com/Akashpatel2609/PrepWise/internal/vad"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "interview-audio-service"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.Int("ws_port", cfg.Server.Port),
		slog.String("bind_address", cfg.Server.BindAddress),
		slog.Int("max_sessions", cfg.Server.MaxSessions),
		slog.Float64("chunk_interval", cfg.Capture.ChunkInterval),
		slog.Float64("vad_threshold", cfg.VAD.Threshold),
		slog.Float64("merge_window", cfg.Transcript.MergeWindow),
		slog.String("transcription_endpoint", cfg.Transcription.Endpoint),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Create session manager configuration
	managerConfig := session.ManagerConfig{
		VADConfig: vad.Config{
			Threshold:   cfg.VAD.Threshold,
			StartFrames: cfg.VAD.StartFrames,
			StopFrames:  cfg.VAD.StopFrames,
		},
		TranscriptionConfig: transcription.Config{
			Endpoint:      cfg.Transcription.Endpoint,
			APIKey:        cfg.Transcription.APIKey,
			Timeout:       cfg.Transcription.GetTimeoutDuration(),
			MaxConcurrent: cfg.Transcription.MaxConcurrent,
		},
		ChunkInterval:  cfg.Capture.GetChunkInterval(),
		MergeWindow:    cfg.Transcript.GetMergeWindow(),
		SessionTimeout: cfg.Capture.GetSessionTimeout(),
		PipeBuffer:     cfg.Capture.PipeBuffer,
		Metrics:        appMetrics,
	}

	// Initialize session manager
	manager, err := session.NewManager(logger, managerConfig)
	if err != nil {
		logger.Error("Failed to create session manager", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Session manager initialized",
		slog.Duration("session_timeout", cfg.Capture.GetSessionTimeout()),
		slog.Duration("chunk_interval", cfg.Capture.GetChunkInterval()),
		slog.String("transcription_endpoint", cfg.Transcription.Endpoint),
	)

	// Initialize WebSocket ingest server
	wsServer := server.NewWSServer(server.WSServerConfig{
		Port:           cfg.Server.Port,
		BindAddress:    cfg.Server.BindAddress,
		ReadBufferSize: cfg.Server.ReadBufferSize,
		MaxSessions:    cfg.Server.MaxSessions,
	}, logger, manager, appMetrics)
	logger.Info("WebSocket ingest server initialized")

	// Initialize HTTP API server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, manager, wsServer, appMetrics)
		logger.Info("HTTP API server initialized",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)
	}

	// Start WebSocket server
	if err := wsServer.Start(); err != nil {
		logger.Error("Failed to start WebSocket server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start HTTP server (if enabled)
	if httpServer != nil {
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("ws_address", fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.Port)),
	)

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	// Stop WebSocket server (stop accepting new connections)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := wsServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping WebSocket server", slog.String("error", err.Error()))
	}

	// Stop session manager (end remaining sessions, drain uploads)
	manager.Stop()

	// Get final statistics
	stats := wsServer.GetStats()
	logger.Info("Final server statistics",
		slog.Uint64("connections_total", stats.ConnectionsTotal),
		slog.Uint64("frames_received", stats.FramesReceived),
		slog.Uint64("frame_errors", stats.FrameErrors),
		slog.Uint64("control_errors", stats.ControlErrors),
	)

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
