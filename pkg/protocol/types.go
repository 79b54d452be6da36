// Package protocol defines the LSP wire shapes shared by the server, the
// client and the analyzer.
package protocol

import (
	lsp "go.lsp.dev/protocol"
)

// Method names used on the wire.
const (
	MethodInitialize         = lsp.MethodInitialize
	MethodInitialized        = lsp.MethodInitialized
	MethodShutdown           = lsp.MethodShutdown
	MethodExit               = lsp.MethodExit
	MethodDidOpen            = lsp.MethodTextDocumentDidOpen
	MethodDidChange          = lsp.MethodTextDocumentDidChange
	MethodDidClose           = lsp.MethodTextDocumentDidClose
	MethodDidSave            = lsp.MethodTextDocumentDidSave
	MethodPublishDiagnostics = lsp.MethodTextDocumentPublishDiagnostics
)

// Position represents a position in a text document.
// Character is a UTF-16 code unit offset within the line.
type Position struct {
	Line      int `json:"line" yaml:"line"`
	Character int `json:"character" yaml:"character"`
}

// Range represents a half-open range in a text document
type Range struct {
	Start Position `json:"start" yaml:"start"`
	End   Position `json:"end" yaml:"end"`
}

// DiagnosticSeverity represents the severity of a diagnostic
type DiagnosticSeverity int

const (
	SeverityError DiagnosticSeverity = iota + 1
	SeverityWarning
	SeverityInformation
	SeverityHint
)

// String returns the lower-case severity name.
func (s DiagnosticSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInformation:
		return "information"
	case SeverityHint:
		return "hint"
	default:
		return "unknown"
	}
}

// MarshalYAML writes the severity name in YAML reports. JSON keeps the
// numeric wire value.
func (s DiagnosticSeverity) MarshalYAML() (any, error) {
	return s.String(), nil
}

// Diagnostic represents a single finding tied to a range
type Diagnostic struct {
	Range    Range              `json:"range" yaml:"range"`
	Message  string             `json:"message" yaml:"message"`
	Severity DiagnosticSeverity `json:"severity" yaml:"severity"`
	Source   string             `json:"source" yaml:"source"`
}

// TextDocumentIdentifier identifies a document by URI.
type TextDocumentIdentifier struct {
	URI string `json:"uri"`
}

// VersionedTextDocumentIdentifier identifies a specific version of a document.
type VersionedTextDocumentIdentifier struct {
	URI     string `json:"uri"`
	Version int    `json:"version"`
}

// TextDocumentItem is the full document transferred on open.
type TextDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int    `json:"version"`
	Text       string `json:"text"`
}

// TextDocumentContentChangeEvent describes a change to a document.
// Range is only set by clients using incremental sync.
type TextDocumentContentChangeEvent struct {
	Range *Range `json:"range,omitempty"`
	Text  string `json:"text"`
}

// DidOpenTextDocumentParams are the params of textDocument/didOpen.
type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// DidChangeTextDocumentParams are the params of textDocument/didChange.
type DidChangeTextDocumentParams struct {
	TextDocument   VersionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

// DidCloseTextDocumentParams are the params of textDocument/didClose.
type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// DidSaveTextDocumentParams are the params of textDocument/didSave.
type DidSaveTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Text         *string                `json:"text,omitempty"`
}

// PublishDiagnosticsParams are the params of textDocument/publishDiagnostics.
type PublishDiagnosticsParams struct {
	URI         string       `json:"uri"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// ClientInfo describes the connecting client.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// InitializeParams are the params of the initialize request.
// Only the fields the server logs are decoded.
type InitializeParams struct {
	ProcessID  *int        `json:"processId"`
	RootURI    *string     `json:"rootUri"`
	ClientInfo *ClientInfo `json:"clientInfo,omitempty"`
}

// TextDocumentSyncKind defines how the client syncs document changes.
type TextDocumentSyncKind int

const (
	TextDocumentSyncKindNone TextDocumentSyncKind = iota
	TextDocumentSyncKindFull
	TextDocumentSyncKindIncremental
)

// SaveOptions controls whether didSave carries the document text.
type SaveOptions struct {
	IncludeText bool `json:"includeText"`
}

// TextDocumentSyncOptions describes the server's document sync support.
type TextDocumentSyncOptions struct {
	OpenClose bool                 `json:"openClose"`
	Change    TextDocumentSyncKind `json:"change"`
	Save      *SaveOptions         `json:"save,omitempty"`
}

// DiagnosticOptions describes the server's diagnostic support.
type DiagnosticOptions struct {
	InterFileDependencies bool `json:"interFileDependencies"`
	WorkspaceDiagnostics  bool `json:"workspaceDiagnostics"`
}

// ServerCapabilities is the capability descriptor returned by initialize.
type ServerCapabilities struct {
	TextDocumentSync   TextDocumentSyncOptions `json:"textDocumentSync"`
	DiagnosticProvider *DiagnosticOptions      `json:"diagnosticProvider,omitempty"`
}

// ServerInfo identifies the server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is the result of the initialize request.
type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
	ServerInfo   ServerInfo         `json:"serverInfo"`
}
