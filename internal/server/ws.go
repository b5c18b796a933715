package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/Akashpatel2609/PrepWise/internal/metrics"
	"github.com/Akashpatel2609/PrepWise/internal/protocol"
	"github.com/Akashpatel2609/PrepWise/internal/session"
)

// statusPushInterval is how often the live listening state and filler count
// are pushed to the client.
const statusPushInterval = time.Second

// WSServerConfig contains WebSocket ingest server configuration
type WSServerConfig struct {
	Port           int
	BindAddress    string
	ReadBufferSize int
	MaxSessions    int
}

// WSServer accepts interview clients over WebSocket. Each connection drives
// at most one capture session: JSON text frames carry control messages,
// binary frames carry raw little-endian float32 audio.
type WSServer struct {
	config   WSServerConfig
	logger   *slog.Logger
	manager  *session.Manager
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
	server   *http.Server

	// Statistics
	connectionsTotal uint64
	framesReceived   uint64
	frameErrors      uint64
	controlErrors    uint64

	mu sync.RWMutex
}

// WSServerStats represents ingest server statistics.
type WSServerStats struct {
	ConnectionsTotal uint64 `json:"connections_total"`
	FramesReceived   uint64 `json:"frames_received"`
	FrameErrors      uint64 `json:"frame_errors"`
	ControlErrors    uint64 `json:"control_errors"`
	ActiveSessions   int    `json:"active_sessions"`
}

// NewWSServer creates the WebSocket ingest server.
func NewWSServer(cfg WSServerConfig, logger *slog.Logger, manager *session.Manager, m *metrics.Metrics) *WSServer {
	s := &WSServer{
		config:  cfg,
		logger:  logger,
		manager: manager,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.ReadBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				// Browser clients connect from the interview frontend, which
				// is served from a different origin in development.
				return true
			},
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/ws", s.handleConnection)

	s.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port),
		Handler:     r,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Start starts accepting WebSocket connections.
func (s *WSServer) Start() error {
	s.logger.Info("Starting WebSocket ingest server",
		slog.String("address", s.server.Addr),
		slog.Int("max_sessions", s.config.MaxSessions),
	)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("WebSocket server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the ingest server.
func (s *WSServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping WebSocket ingest server...")
	return s.server.Shutdown(ctx)
}

// GetStats returns a snapshot of ingest statistics.
func (s *WSServer) GetStats() WSServerStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return WSServerStats{
		ConnectionsTotal: s.connectionsTotal,
		FramesReceived:   s.framesReceived,
		FrameErrors:      s.frameErrors,
		ControlErrors:    s.controlErrors,
		ActiveSessions:   s.manager.GetActiveSessionCount(),
	}
}

// wsConn wraps a connection with the write lock gorilla requires when the
// reader and the status pusher both send.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteJSON(v)
}

// handleConnection runs one client connection from upgrade to close.
func (s *WSServer) handleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	s.mu.Lock()
	s.connectionsTotal++
	s.mu.Unlock()

	c := &wsConn{conn: conn}
	defer conn.Close()

	var (
		rt        *session.Runtime
		sessionID string
		rtMu      sync.Mutex
	)

	currentRuntime := func() *session.Runtime {
		rtMu.Lock()
		defer rtMu.Unlock()
		return rt
	}

	// Status pusher: live listening state and filler count, once per second
	// while a session is attached.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(statusPushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if active := currentRuntime(); active != nil {
					if err := c.writeJSON(active.Status()); err != nil {
						return
					}
				}
			}
		}
	}()

	// A disconnect without a stop message still releases the session; the
	// summary is logged by the manager and discarded.
	defer func() {
		rtMu.Lock()
		id := sessionID
		orphaned := rt != nil
		rtMu.Unlock()
		if orphaned {
			if summary, ok := s.manager.EndSession(id); ok {
				s.logger.Warn("Client disconnected without stop, session ended",
					slog.String("session_id", id),
				)
				s.recordSessionEnded(summary.DurationSeconds)
			}
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("WebSocket read ended", slog.String("error", err.Error()))
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			active := currentRuntime()
			if active == nil {
				continue
			}
			frame, err := protocol.DecodeFrame(data)
			if err != nil {
				s.countFrameError()
				s.logger.Debug("Dropping malformed audio frame",
					slog.String("session_id", sessionID),
					slog.String("error", err.Error()),
				)
				continue
			}
			if err := active.Ingest(frame); err != nil {
				s.countFrameError()
				continue
			}
			s.countFrame()

		case websocket.TextMessage:
			msg, err := protocol.ParseControl(data)
			if err != nil {
				s.countControlError()
				c.writeJSON(protocol.ErrorMessage{Type: protocol.ErrorType, Error: err.Error()})
				continue
			}

			switch msg.Type {
			case protocol.MessageStart:
				if msg.PermissionDenied {
					s.logger.Info("Client reported microphone permission denied",
						slog.String("session_id", msg.SessionID),
					)
					c.writeJSON(protocol.ErrorMessage{
						Type:  protocol.ErrorType,
						Error: "microphone permission denied, recording unavailable",
					})
					return
				}
				if currentRuntime() != nil {
					c.writeJSON(protocol.ErrorMessage{
						Type:  protocol.ErrorType,
						Error: "session already started on this connection",
					})
					continue
				}
				if s.manager.GetActiveSessionCount() >= s.config.MaxSessions {
					c.writeJSON(protocol.ErrorMessage{
						Type:  protocol.ErrorType,
						Error: "session limit reached, try again later",
					})
					return
				}

				created, err := s.manager.CreateSession(msg.SessionID, msg.SampleRate, msg.SupportedFormats)
				if err != nil {
					s.countControlError()
					c.writeJSON(protocol.ErrorMessage{Type: protocol.ErrorType, Error: err.Error()})
					continue
				}

				rtMu.Lock()
				rt = created
				sessionID = msg.SessionID
				rtMu.Unlock()

				if s.metrics != nil {
					s.metrics.RecordSessionCreated()
					s.metrics.SetActiveSessions(s.manager.GetActiveSessionCount())
				}

				c.writeJSON(protocol.ReadyMessage{
					Type:      protocol.ReadyType,
					SessionID: msg.SessionID,
					Format:    created.Format,
				})

			case protocol.MessageQuestion:
				if active := currentRuntime(); active != nil {
					active.SetQuestion(msg.QuestionNumber, msg.QuestionText)
				}

			case protocol.MessageStop:
				rtMu.Lock()
				id := sessionID
				stopped := rt != nil
				rt = nil
				rtMu.Unlock()
				if !stopped {
					continue
				}

				summary, ok := s.manager.EndSession(id)
				if ok {
					s.recordSessionEnded(summary.DurationSeconds)
					c.writeJSON(struct {
						Type    string           `json:"type"`
						Summary *session.Summary `json:"summary"`
					}{Type: protocol.SummaryType, Summary: summary})
				}
				return
			}
		}
	}
}

func (s *WSServer) countFrame() {
	s.mu.Lock()
	s.framesReceived++
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.RecordFrameReceived()
	}
}

func (s *WSServer) countFrameError() {
	s.mu.Lock()
	s.frameErrors++
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.RecordFrameError()
	}
}

func (s *WSServer) countControlError() {
	s.mu.Lock()
	s.controlErrors++
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.RecordControlError()
	}
}

func (s *WSServer) recordSessionEnded(durationSeconds float64) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordSessionEnded(durationSeconds)
	s.metrics.SetActiveSessions(s.manager.GetActiveSessionCount())
}
