package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Akashpatel2609/PrepWise/internal/config"
	"github.com/Akashpatel2609/PrepWise/internal/metrics"
	"github.com/Akashpatel2609/PrepWise/internal/session"
)

// HTTPServer provides HTTP API endpoints for monitoring and management
type HTTPServer struct {
	server   *http.Server
	logger   *slog.Logger
	config   *config.Config
	manager  *session.Manager
	wsServer *WSServer
	metrics  *metrics.Metrics

	// Server state
	startTime time.Time
	mu        sync.RWMutex
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger,
	appConfig *config.Config, manager *session.Manager, wsServer *WSServer, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		manager:   manager,
		wsServer:  wsServer,
		metrics:   m,
		startTime: time.Now(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", h.withMetrics("/", h.handleRoot))
	r.Get("/health", h.withMetrics("/health", h.handleHealth))
	r.Get("/sessions", h.withMetrics("/sessions", h.handleSessions))
	r.Get("/sessions/{id}", h.withMetrics("/sessions/{id}", h.handleSessionDetail))
	r.Get("/sessions/{id}/transcript", h.withMetrics("/sessions/{id}/transcript", h.handleSessionTranscript))
	r.Get("/stats", h.withMetrics("/stats", h.handleStats))
	r.Get("/config", h.withMetrics("/config", h.handleConfig))
	r.Handle("/metrics", promhttp.Handler())

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		handler(ww, r)

		if h.metrics != nil {
			h.metrics.RecordHTTPRequest(r.Method, endpoint,
				fmt.Sprintf("%d", ww.Status()), time.Since(startTime).Seconds())
		}
	}
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

func (h *HTTPServer) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	h.writeJSON(w, map[string]interface{}{
		"service": "interview-audio-service",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":                         "API documentation",
			"GET /health":                   "Service health check",
			"GET /sessions":                 "List all active sessions",
			"GET /sessions/{id}":            "Get detailed session information",
			"GET /sessions/{id}/transcript": "Get the session's transcript records",
			"GET /stats":                    "Get service statistics",
			"GET /config":                   "Get service configuration",
			"GET /metrics":                  "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	})
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)
	ingestStats := h.wsServer.GetStats()
	transcriptionStats := h.manager.GetTranscriptionStats()

	h.writeJSON(w, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"components": map[string]interface{}{
			"ingest": map[string]interface{}{
				"status":          "running",
				"connections":     ingestStats.ConnectionsTotal,
				"frames_received": ingestStats.FramesReceived,
				"frame_errors":    ingestStats.FrameErrors,
			},
			"sessions": map[string]interface{}{
				"status":       "running",
				"active_count": h.manager.GetActiveSessionCount(),
			},
			"transcription": map[string]interface{}{
				"status":         "running",
				"total_requests": transcriptionStats.TotalRequests,
				"success_rate":   transcriptionStats.SuccessRate,
			},
		},
	})
}

// handleSessions implements the /sessions endpoint
func (h *HTTPServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.manager.GetAllSessions()
	infos := make([]session.Info, 0, len(sessions))
	for _, rt := range sessions {
		infos = append(infos, rt.GetInfo())
	}

	h.writeJSON(w, map[string]interface{}{
		"total_sessions": len(infos),
		"timestamp":      time.Now().UTC(),
		"sessions":       infos,
	})
}

// handleSessionDetail implements the /sessions/{id} endpoint
func (h *HTTPServer) handleSessionDetail(w http.ResponseWriter, r *http.Request) {
	rt, exists := h.manager.GetSession(chi.URLParam(r, "id"))
	if !exists {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, rt.GetInfo())
}

// handleSessionTranscript implements the /sessions/{id}/transcript endpoint
func (h *HTTPServer) handleSessionTranscript(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rt, exists := h.manager.GetSession(id)
	if !exists {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, map[string]interface{}{
		"session_id":       id,
		"timestamp":        time.Now().UTC(),
		"records":          rt.Ledger.Records(),
		"total_words":      rt.Ledger.TotalWords(),
		"total_fillers":    rt.Ledger.TotalFillers(),
		"speaking_seconds": rt.Clock.TotalSeconds(),
	})
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]interface{}{
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
		"ingest":    h.wsServer.GetStats(),
		"sessions": map[string]interface{}{
			"active_count": h.manager.GetActiveSessionCount(),
		},
		"transcription": h.manager.GetTranscriptionStats(),
	})
}

// handleConfig implements the /config endpoint. The transcription API key is
// omitted.
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]interface{}{
		"server": map[string]interface{}{
			"port":             h.config.Server.Port,
			"bind_address":     h.config.Server.BindAddress,
			"read_buffer_size": h.config.Server.ReadBufferSize,
			"max_sessions":     h.config.Server.MaxSessions,
		},
		"capture": map[string]interface{}{
			"chunk_interval":  h.config.Capture.ChunkInterval,
			"pipe_buffer":     h.config.Capture.PipeBuffer,
			"session_timeout": h.config.Capture.SessionTimeout,
		},
		"vad": map[string]interface{}{
			"threshold":    h.config.VAD.Threshold,
			"start_frames": h.config.VAD.StartFrames,
			"stop_frames":  h.config.VAD.StopFrames,
		},
		"transcript": map[string]interface{}{
			"merge_window": h.config.Transcript.MergeWindow,
		},
		"transcription": map[string]interface{}{
			"endpoint":       h.config.Transcription.Endpoint,
			"timeout":        h.config.Transcription.Timeout,
			"max_concurrent": h.config.Transcription.MaxConcurrent,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	})
}
