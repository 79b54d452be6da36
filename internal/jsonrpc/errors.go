package jsonrpc

import (
	"fmt"
)

// HeaderError occurs when a header line is malformed or carries an invalid
// Content-Length.
type HeaderError struct {
	Line    string
	Message string
	Err     error
}

func (e *HeaderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid header %q: %s: %v", e.Line, e.Message, e.Err)
	}
	return fmt.Sprintf("invalid header %q: %s", e.Line, e.Message)
}

func (e *HeaderError) Unwrap() error {
	return e.Err
}

// TruncatedBodyError occurs when the stream ends before the declared
// Content-Length bytes were read.
type TruncatedBodyError struct {
	Expected int
	Err      error
}

func (e *TruncatedBodyError) Error() string {
	return fmt.Sprintf("message body truncated (expected %d bytes): %v", e.Expected, e.Err)
}

func (e *TruncatedBodyError) Unwrap() error {
	return e.Err
}

// ParseError occurs when a message body is not UTF-8 encoded JSON.
type ParseError struct {
	Body []byte
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse message body (%d bytes): %v", len(e.Body), e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
