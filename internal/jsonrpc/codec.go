package jsonrpc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"
)

const (
	headerContentLength = "Content-Length"

	// DefaultReadBufferSize is used when NewReader is given a non-positive size.
	DefaultReadBufferSize = 64 * 1024

	// DefaultMaxMessageSize bounds the declared Content-Length when no
	// explicit limit is given.
	DefaultMaxMessageSize = 16 << 20
)

// Reader decodes Content-Length framed messages from a byte stream.
type Reader struct {
	r          *bufio.Reader
	maxMessage int
}

// NewReader creates a Reader with the given buffer size and the default
// message size limit.
func NewReader(r io.Reader, size int) *Reader {
	return NewLimitedReader(r, size, 0)
}

// NewLimitedReader creates a Reader that rejects messages whose declared
// Content-Length exceeds maxMessage bytes. Non-positive values select the
// defaults.
func NewLimitedReader(r io.Reader, size, maxMessage int) *Reader {
	if size <= 0 {
		size = DefaultReadBufferSize
	}
	if maxMessage <= 0 {
		maxMessage = DefaultMaxMessageSize
	}
	return &Reader{r: bufio.NewReaderSize(r, size), maxMessage: maxMessage}
}

// Read decodes the next message.
//
// io.EOF means there is no message: the stream ended while reading headers,
// or the declared Content-Length was missing or zero. Every other error is a
// framing error and the stream should not be read again.
func (r *Reader) Read() (*Message, error) {
	body, err := r.readBody()
	if err != nil {
		return nil, err
	}

	if !utf8.Valid(body) {
		return nil, &ParseError{Body: body, Err: errors.New("body is not valid UTF-8")}
	}

	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, &ParseError{Body: body, Err: err}
	}
	return &msg, nil
}

func (r *Reader) readBody() ([]byte, error) {
	contentLength := 0
	for {
		line, err := r.r.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read header: %w", err)
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, &HeaderError{Line: line, Message: "missing ':' separator"}
		}
		// Other headers (e.g. Content-Type) are ignored.
		if !strings.EqualFold(strings.TrimSpace(key), headerContentLength) {
			continue
		}

		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, &HeaderError{Line: line, Message: "Content-Length is not an integer", Err: err}
		}
		if n < 0 {
			return nil, &HeaderError{Line: line, Message: "Content-Length is negative"}
		}
		if n > r.maxMessage {
			return nil, &HeaderError{
				Line:    line,
				Message: fmt.Sprintf("Content-Length exceeds the %d byte limit", r.maxMessage),
			}
		}
		contentLength = n
	}

	if contentLength == 0 {
		return nil, io.EOF
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(r.r, body); err != nil {
		return nil, &TruncatedBodyError{Expected: contentLength, Err: err}
	}
	return body, nil
}

// Writer encodes messages with Content-Length framing.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter creates a Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write serializes v as compact JSON and writes
// "Content-Length: <n>\r\n\r\n<body>" where n is the body length in bytes.
func (w *Writer) Write(v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + 32)
	fmt.Fprintf(&buf, "%s: %d\r\n\r\n", headerContentLength, len(body))
	buf.Write(body)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}
