package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/woxQAQ/basic-lsp-server/internal/document"
	"github.com/woxQAQ/basic-lsp-server/internal/jsonrpc"
	"github.com/woxQAQ/basic-lsp-server/internal/telemetry"
)

// Session is the state of one client connection: its document store and
// lifecycle flags. A session is driven by a single goroutine in Run.
type Session struct {
	id        string
	reader    *jsonrpc.Reader
	writer    *jsonrpc.Writer
	docs      *document.Store
	logger    *zap.Logger
	telemetry *telemetry.Telemetry

	initialized bool
	running     bool
	exited      bool
}

// SessionConfig holds the dependencies of a Session.
type SessionConfig struct {
	Logger     *zap.Logger
	Telemetry  *telemetry.Telemetry
	ReadBuffer int
	// MaxMessageBytes bounds the declared Content-Length. Zero selects
	// jsonrpc.DefaultMaxMessageSize.
	MaxMessageBytes int
}

// NewSession creates a session reading from r and writing to w.
func NewSession(r io.Reader, w io.Writer, cfg SessionConfig) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tel := cfg.Telemetry
	if tel == nil {
		tel = telemetry.Disabled()
	}

	id := uuid.New().String()
	return &Session{
		id:        id,
		reader:    jsonrpc.NewLimitedReader(r, cfg.ReadBuffer, cfg.MaxMessageBytes),
		writer:    jsonrpc.NewWriter(w),
		docs:      document.NewStore(),
		logger:    logger.With(zap.String("component", "lsp-session"), zap.String("session_id", id)),
		telemetry: tel,
		running:   true,
	}
}

// ID returns the session identifier used in logs and spans.
func (s *Session) ID() string { return s.id }

// Initialized reports whether initialize has been received.
func (s *Session) Initialized() bool { return s.initialized }

// Running reports whether the loop will read another message.
func (s *Session) Running() bool { return s.running }

// Exited reports whether the session ended because of an exit notification.
func (s *Session) Exited() bool { return s.exited }

// Documents returns the session's document store.
func (s *Session) Documents() *document.Store { return s.docs }

// Run reads and dispatches messages one at a time until shutdown or exit
// stops the session, the stream ends, or ctx is done. Framing and write
// errors end the loop and are returned; handler errors do not.
func (s *Session) Run(ctx context.Context) error {
	s.logger.Info("Session started")
	defer s.logger.Info("Session stopped",
		zap.Bool("initialized", s.initialized),
		zap.Bool("exited", s.exited),
		zap.Int("open_documents", s.docs.Len()),
	)

	for s.running {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := s.reader.Read()
		if errors.Is(err, io.EOF) {
			s.logger.Info("Client closed the stream")
			return nil
		}
		if err != nil {
			s.logger.Error("Failed to read message", zap.Error(err))
			return fmt.Errorf("read message: %w", err)
		}

		if err := s.dispatch(ctx, msg); err != nil {
			s.logger.Error("Failed to write message", zap.Error(err))
			return err
		}
	}

	return nil
}

// dispatch handles one decoded message. It returns an error only when the
// channel can no longer be written.
func (s *Session) dispatch(ctx context.Context, msg *jsonrpc.Message) error {
	kind := msg.Kind()
	ctx, span := s.telemetry.StartMessage(ctx, msg.Method, kind.String(), s.id)
	defer span.End()

	switch kind {
	case jsonrpc.KindRequest:
		return s.handleRequest(ctx, msg)
	case jsonrpc.KindNotification:
		return s.handleNotification(ctx, msg)
	case jsonrpc.KindResponse:
		s.logger.Warn("Ignoring response from client", zap.Stringer("id", msg.ID))
	case jsonrpc.KindInvalid:
		s.logger.Warn("Ignoring invalid message")
	}
	return nil
}

func (s *Session) handleRequest(ctx context.Context, msg *jsonrpc.Message) error {
	id := *msg.ID
	method := ParseMethod(msg.Method)
	logger := s.logger.With(zap.String("method", msg.Method), zap.Stringer("id", id))
	logger.Info("Handling request")

	var (
		result any
		err    error
	)
	switch method {
	case MethodInitialize:
		err = s.call(method, func() (herr error) {
			result, herr = s.initialize(msg.Params)
			return herr
		})
	case MethodShutdown:
		err = s.call(method, func() error {
			s.shutdown()
			return nil
		})
	case MethodInitialized, MethodExit, MethodDidOpen, MethodDidChange, MethodDidClose, MethodDidSave, MethodUnknown:
		logger.Warn("Unknown request method")
		return s.writer.Write(jsonrpc.NewErrorResponse(id, jsonrpc.CodeMethodNotFound,
			fmt.Sprintf("method not found: %s", msg.Method)))
	}

	if err != nil {
		logger.Error("Request handler failed", zap.Error(err))
		s.telemetry.HandlerFailed(ctx, msg.Method)
		return s.writer.Write(jsonrpc.NewErrorResponse(id, jsonrpc.CodeInternalError, err.Error()))
	}

	resp, err := jsonrpc.NewResponse(id, result)
	if err != nil {
		logger.Error("Failed to encode result", zap.Error(err))
		s.telemetry.HandlerFailed(ctx, msg.Method)
		return s.writer.Write(jsonrpc.NewErrorResponse(id, jsonrpc.CodeInternalError, err.Error()))
	}
	return s.writer.Write(resp)
}

func (s *Session) handleNotification(ctx context.Context, msg *jsonrpc.Message) error {
	method := ParseMethod(msg.Method)
	logger := s.logger.With(zap.String("method", msg.Method))
	logger.Info("Handling notification")

	var err error
	switch method {
	case MethodInitialized:
	case MethodDidOpen:
		err = s.call(method, func() error { return s.didOpen(ctx, msg.Params) })
	case MethodDidChange:
		err = s.call(method, func() error { return s.didChange(ctx, msg.Params) })
	case MethodDidClose:
		err = s.call(method, func() error { return s.didClose(ctx, msg.Params) })
	case MethodDidSave:
		err = s.call(method, func() error { return s.didSave(msg.Params) })
	case MethodExit:
		s.exit()
	case MethodInitialize, MethodShutdown, MethodUnknown:
		logger.Warn("Unknown notification method")
	}

	if err == nil {
		return nil
	}

	var pubErr *PublishError
	if errors.As(err, &pubErr) {
		return err
	}
	logger.Error("Notification handler failed", zap.Error(err))
	s.telemetry.HandlerFailed(ctx, msg.Method)
	return nil
}

// call runs fn and turns a panic into a HandlerPanicError.
func (s *Session) call(method Method, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HandlerPanicError{Method: method.String(), Value: r}
		}
	}()
	return fn()
}

// decodeParams unmarshals params into v. Missing params decode as {}.
func decodeParams(method Method, params json.RawMessage, v any) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return &InvalidParamsError{Method: method.String(), Err: err}
	}
	return nil
}
