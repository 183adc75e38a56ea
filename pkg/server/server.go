package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/harun/parley/internal/observability"
	"github.com/harun/parley/internal/tracing"
	"github.com/harun/parley/pkg/provider"
	"github.com/harun/parley/pkg/session"
	"github.com/harun/parley/pkg/tools"
)

// Config holds server configuration.
type Config struct {
	Host         string
	Port         int
	StaticDir    string
	Provider     provider.Streamer
	Registry     *tools.Registry
	Model        string
	MaxTokens    int
	SystemPrompt string
	Logger       zerolog.Logger
}

// Server accepts WebSocket connections and runs one conversation session
// per connection.
type Server struct {
	cfg            Config
	server         *http.Server
	upgrader       websocket.Upgrader
	logger         zerolog.Logger
	connsMu        sync.Mutex
	conns          map[string]*websocket.Conn
	isShuttingDown bool
	shutdownMu     sync.RWMutex
}

// New creates a server. The provider and tool registry are shared across
// connections; session state is not.
func New(cfg Config) (*Server, error) {
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}

	return &Server{
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "server").Logger(),
		conns:  make(map[string]*websocket.Conn),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Browser clients are served from the same host
			},
		},
	}, nil
}

// Start begins listening. It does not block; use Stop to shut down.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if s.cfg.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.cfg.StaticDir)))
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	s.logger.Info().Str("addr", addr).Msg("Starting server")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Server error")
		}
	}()

	return nil
}

// Stop gracefully stops the server, closing all live connections.
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down server")

	s.connsMu.Lock()
	for _, conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info().Msg("Server stopped")
	return nil
}

// handleWebSocket upgrades a connection and hands it a fresh session.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	s.shutdownMu.RUnlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	connID, _ := gonanoid.New()
	logger := s.logger.With().Str("conn_id", connID).Logger()

	// The transport cancels this context on write failure so a dead peer
	// aborts the in-flight provider stream.
	ctx, cancel := context.WithCancel(context.Background())

	sess, err := session.New(session.Config{
		Provider:     s.cfg.Provider,
		Registry:     s.cfg.Registry,
		Transport:    newWSTransport(conn, cancel),
		Logger:       logger,
		Model:        s.cfg.Model,
		MaxTokens:    s.cfg.MaxTokens,
		SystemPrompt: s.cfg.SystemPrompt,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create session")
		cancel()
		conn.Close()
		return
	}

	s.connsMu.Lock()
	s.conns[connID] = conn
	s.connsMu.Unlock()

	observability.RecordConnectionOpened()
	logger.Info().
		Str("ip", r.RemoteAddr).
		Str("session_id", sess.ID()).
		Msg("Client connected")

	go s.serveConn(ctx, cancel, connID, conn, sess, logger)
}

// serveConn reads frames sequentially and feeds them to the session. One
// goroutine per connection; a frame is processed to completion before the
// next read.
func (s *Server) serveConn(ctx context.Context, cancel context.CancelFunc, connID string, conn *websocket.Conn, sess *session.Session, logger zerolog.Logger) {
	ctx = tracing.WithTraceID(ctx, tracing.NewTraceID())
	ctx = tracing.WithSessionID(ctx, sess.ID())
	defer func() {
		cancel()
		conn.Close()
		s.connsMu.Lock()
		delete(s.conns, connID)
		s.connsMu.Unlock()
		observability.RecordConnectionClosed()
		logger.Info().Msg("Client disconnected")
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Error().Err(err).Msg("WebSocket error")
			}
			return
		}

		msg, err := decodeFrame(data)
		if err != nil {
			logger.Warn().Err(err).Msg("Dropping malformed frame")
			continue
		}

		sess.Handle(ctx, msg)
	}
}
