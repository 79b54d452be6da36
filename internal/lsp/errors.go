package lsp

import (
	"fmt"
)

// InvalidParamsError occurs when a message's params cannot be decoded or
// lack a required field.
type InvalidParamsError struct {
	Method string
	Err    error
}

func (e *InvalidParamsError) Error() string {
	return fmt.Sprintf("invalid params for %s: %v", e.Method, e.Err)
}

func (e *InvalidParamsError) Unwrap() error {
	return e.Err
}

// IncrementalChangeError occurs when didChange carries anything other than a
// single full-text replacement. The server only advertises full sync.
type IncrementalChangeError struct {
	URI     string
	Changes int
	Ranged  bool
}

func (e *IncrementalChangeError) Error() string {
	if e.Ranged {
		return fmt.Sprintf("didChange for '%s' carries a ranged (incremental) edit; only full sync is supported", e.URI)
	}
	return fmt.Sprintf("didChange for '%s' carries %d content changes; full sync expects exactly one", e.URI, e.Changes)
}

// HandlerPanicError occurs when a handler panics.
type HandlerPanicError struct {
	Method string
	Value  any
}

func (e *HandlerPanicError) Error() string {
	return fmt.Sprintf("handler for %s panicked: %v", e.Method, e.Value)
}

// PublishError occurs when a publishDiagnostics notification cannot be sent.
type PublishError struct {
	URI string
	Err error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("failed to publish diagnostics for '%s': %v", e.URI, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}
