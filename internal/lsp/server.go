package lsp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/woxQAQ/basic-lsp-server/internal/config"
	"github.com/woxQAQ/basic-lsp-server/internal/telemetry"
)

const httpShutdownTimeout = 5 * time.Second

type Server struct {
	cfg       *config.ServerConfig
	logger    *zap.Logger
	telemetry *telemetry.Telemetry

	// Bounds concurrent sessions on network transports.
	sessions *semaphore.Weighted
	active   sync.WaitGroup
}

func NewServer(ctx context.Context, cfg *config.ServerConfig, logger *zap.Logger) (*Server, error) {
	tel, err := telemetry.New(cfg.MetricsEnabled)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logger.Info("LSP server initialized",
		zap.String("transport", cfg.Transport.Mode),
		zap.Int("max_sessions", cfg.Transport.MaxSessions),
		zap.Bool("metrics_enabled", cfg.MetricsEnabled),
	)

	return &Server{
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "lsp-server")),
		telemetry: tel,
		sessions:  semaphore.NewWeighted(int64(cfg.Transport.MaxSessions)),
	}, nil
}

// Close waits for active sessions to finish or ctx to expire.
func (s *Server) Close(ctx context.Context) error {
	s.logger.Info("Shutting down LSP server")

	done := make(chan struct{})
	go func() {
		s.active.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("LSP server shutdown complete")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sessions still active at shutdown", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}

// Serve runs the transport selected in the configuration.
func (s *Server) Serve(ctx context.Context) error {
	switch s.cfg.Transport.Mode {
	case config.TransportTCP:
		return s.ServeTCP(ctx, s.cfg.Transport.Address)
	case config.TransportWebSocket:
		return s.ServeWebSocket(ctx, s.cfg.Transport.Address)
	default:
		return s.ServeStdio(ctx)
	}
}

// ServeStream runs one session over r and w until it ends. Close waits
// for sessions started here.
func (s *Server) ServeStream(ctx context.Context, r io.Reader, w io.Writer) error {
	s.active.Add(1)
	defer s.active.Done()

	return s.newSession(r, w).Run(ctx)
}

func (s *Server) newSession(r io.Reader, w io.Writer) *Session {
	return NewSession(r, w, SessionConfig{
		Logger:          s.logger,
		Telemetry:       s.telemetry,
		ReadBuffer:      s.cfg.Transport.ReadBuffer,
		MaxMessageBytes: s.cfg.Transport.MaxMessageBytes,
	})
}

// ServeStdio runs a single session over stdin and stdout.
func (s *Server) ServeStdio(ctx context.Context) error {
	s.logger.Info("Serving on stdio")
	return s.serveDetached(ctx, os.Stdin, os.Stdout)
}

// serveDetached runs a session whose reads cannot be interrupted. It
// returns when ctx is done even if the session is still blocked in a read.
// Close does not wait for it.
func (s *Server) serveDetached(ctx context.Context, r io.Reader, w io.Writer) error {
	session := s.newSession(r, w)

	done := make(chan error, 1)
	go func() {
		done <- session.Run(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ServeTCP listens on addr and serves each connection as its own session.
func (s *Server) ServeTCP(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener accepts connections from ln until ctx is done. An exit
// notification ends only the session that sent it.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.logger.Info("Serving on TCP", zap.String("address", ln.Addr().String()))

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		if err := s.sessions.Acquire(ctx, 1); err != nil {
			conn.Close()
			return nil
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.sessions.Release(1)
			s.serveConn(ctx, conn)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	logger := s.logger.With(zap.String("remote", conn.RemoteAddr().String()))
	logger.Info("Client connected")

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	if err := s.ServeStream(ctx, conn, conn); err != nil && ctx.Err() == nil {
		logger.Error("Session ended with error", zap.Error(err))
		return
	}
	logger.Info("Client disconnected")
}

// WebSocketHandler routes /lsp to a protocol session carried in binary
// WebSocket frames and /healthz to a liveness check.
func (s *Server) WebSocketHandler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/lsp", s.handleWebSocket)
	return r
}

// ServeWebSocket serves WebSocketHandler on addr until ctx is done.
func (s *Server) ServeWebSocket(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.WebSocketHandler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("HTTP shutdown incomplete", zap.Error(err))
		}
	})
	defer stop()

	s.logger.Info("Serving on WebSocket", zap.String("address", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("websocket server: %w", err)
	}
	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.TryAcquire(1) {
		http.Error(w, "too many sessions", http.StatusServiceUnavailable)
		return
	}
	defer s.sessions.Release(1)

	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket accept failed", zap.Error(err))
		return
	}

	ctx := r.Context()
	conn := websocket.NetConn(ctx, c, websocket.MessageBinary)
	s.serveConn(ctx, conn)
}
