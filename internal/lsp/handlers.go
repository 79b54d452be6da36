package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/woxQAQ/basic-lsp-server/internal/analysis"
	"github.com/woxQAQ/basic-lsp-server/internal/jsonrpc"
	"github.com/woxQAQ/basic-lsp-server/pkg/protocol"
)

// ServerName is reported in the initialize result.
const ServerName = "basic-lsp-server"

// Version is reported in the initialize result. Overridden at build time.
var Version = "0.1.0"

var errMissingURI = errors.New("textDocument.uri is required")

// Capabilities returns the capability descriptor sent in reply to initialize.
func Capabilities() protocol.ServerCapabilities {
	return protocol.ServerCapabilities{
		TextDocumentSync: protocol.TextDocumentSyncOptions{
			OpenClose: true,
			Change:    protocol.TextDocumentSyncKindFull,
			Save:      &protocol.SaveOptions{IncludeText: false},
		},
		DiagnosticProvider: &protocol.DiagnosticOptions{
			InterFileDependencies: false,
			WorkspaceDiagnostics:  false,
		},
	}
}

// initialize may be called any number of times.
func (s *Session) initialize(params json.RawMessage) (*protocol.InitializeResult, error) {
	var p protocol.InitializeParams
	if err := decodeParams(MethodInitialize, params, &p); err != nil {
		return nil, err
	}

	fields := []zap.Field{zap.Bool("reinitialize", s.initialized)}
	if p.ClientInfo != nil {
		fields = append(fields, zap.String("client_name", p.ClientInfo.Name))
	}
	if p.RootURI != nil {
		fields = append(fields, zap.String("root_uri", *p.RootURI))
	}
	s.logger.Info("Client initialized session", fields...)

	s.initialized = true

	return &protocol.InitializeResult{
		Capabilities: Capabilities(),
		ServerInfo:   protocol.ServerInfo{Name: ServerName, Version: Version},
	}, nil
}

// shutdown stops the loop after the response is written. The channel stays
// open.
func (s *Session) shutdown() {
	s.logger.Info("Shutdown requested")
	s.running = false
}

func (s *Session) exit() {
	s.logger.Info("Exit requested", zap.Bool("after_shutdown", !s.running))
	s.exited = true
	s.running = false
}

func (s *Session) didOpen(ctx context.Context, params json.RawMessage) error {
	var p protocol.DidOpenTextDocumentParams
	if err := decodeParams(MethodDidOpen, params, &p); err != nil {
		return err
	}
	uri := p.TextDocument.URI
	if uri == "" {
		return &InvalidParamsError{Method: MethodDidOpen.String(), Err: errMissingURI}
	}

	s.docs.Open(uri, p.TextDocument.Text)
	s.logger.Info("Document opened", zap.String("uri", uri))

	return s.analyzeAndPublish(ctx, uri, p.TextDocument.Text)
}

// didChange accepts exactly one full-text change. A change for a document
// that is not open creates it.
func (s *Session) didChange(ctx context.Context, params json.RawMessage) error {
	var p protocol.DidChangeTextDocumentParams
	if err := decodeParams(MethodDidChange, params, &p); err != nil {
		return err
	}
	uri := p.TextDocument.URI
	if uri == "" {
		return &InvalidParamsError{Method: MethodDidChange.String(), Err: errMissingURI}
	}

	switch {
	case len(p.ContentChanges) == 0:
		s.logger.Debug("Document change without content", zap.String("uri", uri))
		return nil
	case len(p.ContentChanges) > 1:
		return &IncrementalChangeError{URI: uri, Changes: len(p.ContentChanges)}
	case p.ContentChanges[0].Range != nil:
		return &IncrementalChangeError{URI: uri, Changes: 1, Ranged: true}
	}

	text := p.ContentChanges[0].Text
	existed := s.docs.Replace(uri, text)
	s.logger.Info("Document changed", zap.String("uri", uri), zap.Bool("was_open", existed))

	return s.analyzeAndPublish(ctx, uri, text)
}

func (s *Session) didClose(ctx context.Context, params json.RawMessage) error {
	var p protocol.DidCloseTextDocumentParams
	if err := decodeParams(MethodDidClose, params, &p); err != nil {
		return err
	}
	uri := p.TextDocument.URI
	if uri == "" {
		return &InvalidParamsError{Method: MethodDidClose.String(), Err: errMissingURI}
	}

	existed := s.docs.Close(uri)
	s.logger.Info("Document closed", zap.String("uri", uri), zap.Bool("was_open", existed))

	return s.publish(ctx, uri, []protocol.Diagnostic{})
}

// didSave only logs. Full sync already delivered the saved text.
func (s *Session) didSave(params json.RawMessage) error {
	var p protocol.DidSaveTextDocumentParams
	if err := decodeParams(MethodDidSave, params, &p); err != nil {
		return err
	}
	s.logger.Info("Document saved", zap.String("uri", p.TextDocument.URI))
	return nil
}

func (s *Session) analyzeAndPublish(ctx context.Context, uri, text string) error {
	start := time.Now()
	diags := analysis.Analyze(text)
	s.telemetry.AnalysisFinished(ctx, time.Since(start))

	s.logger.Debug("Analysis complete",
		zap.String("uri", uri),
		zap.Int("diagnostics", len(diags)),
	)
	return s.publish(ctx, uri, diags)
}

func (s *Session) publish(ctx context.Context, uri string, diags []protocol.Diagnostic) error {
	msg, err := jsonrpc.NewNotification(protocol.MethodPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diags,
	})
	if err != nil {
		return err
	}
	if err := s.writer.Write(msg); err != nil {
		return &PublishError{URI: uri, Err: err}
	}
	s.telemetry.DiagnosticsPublished(ctx, len(diags))
	return nil
}
