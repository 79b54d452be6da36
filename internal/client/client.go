// Package client is a protocol peer for the server: it sends requests and
// notifications and collects responses and published diagnostics.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/woxQAQ/basic-lsp-server/internal/jsonrpc"
	"github.com/woxQAQ/basic-lsp-server/pkg/protocol"
)

// ErrClosed is returned for calls made after the connection ended.
var ErrClosed = errors.New("client connection closed")

// Client talks to a server over one duplex stream. Requests may be issued
// from several goroutines; a background reader routes responses by id.
type Client struct {
	conn   io.ReadWriteCloser
	reader *jsonrpc.Reader
	writer *jsonrpc.Writer
	logger *zap.Logger

	nextID  atomic.Int64
	mu      sync.Mutex
	pending map[int64]chan *jsonrpc.Message

	// Unbounded so the reader never blocks on a consumer. forward moves
	// entries to diagnostics.
	qmu         sync.Mutex
	queue       []protocol.PublishDiagnosticsParams
	wake        chan struct{}
	diagnostics chan protocol.PublishDiagnosticsParams

	done      chan struct{}
	closing   chan struct{}
	readErr   error
	group     errgroup.Group
	closeOnce sync.Once
}

// New starts a client over conn.
func New(conn io.ReadWriteCloser, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		conn:        conn,
		reader:      jsonrpc.NewReader(conn, 0),
		writer:      jsonrpc.NewWriter(conn),
		logger:      logger.With(zap.String("component", "lsp-client")),
		pending:     make(map[int64]chan *jsonrpc.Message),
		wake:        make(chan struct{}, 1),
		diagnostics: make(chan protocol.PublishDiagnosticsParams),
		done:        make(chan struct{}),
		closing:     make(chan struct{}),
	}
	c.group.Go(c.readLoop)
	c.group.Go(c.forward)
	return c
}

func (c *Client) readLoop() error {
	defer close(c.done)

	for {
		msg, err := c.reader.Read()
		if errors.Is(err, io.EOF) {
			c.readErr = ErrClosed
			return nil
		}
		if err != nil {
			c.readErr = fmt.Errorf("%w: %v", ErrClosed, err)
			return err
		}

		switch msg.Kind() {
		case jsonrpc.KindResponse:
			c.deliver(msg)
		case jsonrpc.KindNotification:
			c.notification(msg)
		default:
			c.logger.Debug("Ignoring message from server", zap.String("kind", msg.Kind().String()))
		}
	}
}

func (c *Client) deliver(msg *jsonrpc.Message) {
	id, ok := msg.ID.Number()
	if !ok {
		c.logger.Warn("Response with non-numeric id", zap.Stringer("id", msg.ID))
		return
	}

	c.mu.Lock()
	ch, found := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()

	if !found {
		c.logger.Warn("Response for unknown request", zap.Int64("id", id))
		return
	}
	ch <- msg
}

func (c *Client) notification(msg *jsonrpc.Message) {
	if msg.Method != protocol.MethodPublishDiagnostics {
		c.logger.Debug("Ignoring notification", zap.String("method", msg.Method))
		return
	}

	var p protocol.PublishDiagnosticsParams
	if err := json.Unmarshal(msg.Params, &p); err != nil {
		c.logger.Warn("Malformed publishDiagnostics", zap.Error(err))
		return
	}

	c.qmu.Lock()
	c.queue = append(c.queue, p)
	c.qmu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Client) pop() (protocol.PublishDiagnosticsParams, bool) {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	if len(c.queue) == 0 {
		return protocol.PublishDiagnosticsParams{}, false
	}
	p := c.queue[0]
	c.queue[0] = protocol.PublishDiagnosticsParams{}
	c.queue = c.queue[1:]
	return p, true
}

func (c *Client) queued() int {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	return len(c.queue)
}

// forward hands queued publications to Diagnostics in arrival order. After
// the stream ends it delivers what is left and closes the channel; Close
// discards the rest.
func (c *Client) forward() error {
	defer close(c.diagnostics)

	for {
		if p, ok := c.pop(); ok {
			select {
			case c.diagnostics <- p:
				continue
			case <-c.closing:
				<-c.done
				return nil
			}
		}

		select {
		case <-c.wake:
		case <-c.done:
			if c.queued() == 0 {
				return nil
			}
		case <-c.closing:
			<-c.done
			return nil
		}
	}
}

// Request sends method with params and decodes the result into result,
// which may be nil. A server error response is returned as
// *jsonrpc.ResponseError.
func (c *Client) Request(ctx context.Context, method string, params, result any) error {
	select {
	case <-c.done:
		return c.readErr
	default:
	}

	id := c.nextID.Add(1)
	msg, err := jsonrpc.NewRequest(jsonrpc.NewNumberID(id), method, params)
	if err != nil {
		return err
	}

	ch := make(chan *jsonrpc.Message, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.writer.Write(msg); err != nil {
		return err
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return resp.Error
		}
		if result == nil {
			return nil
		}
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
		return nil
	case <-c.done:
		return c.readErr
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s response: %w", method, ctx.Err())
	}
}

// Notify sends a notification.
func (c *Client) Notify(method string, params any) error {
	msg, err := jsonrpc.NewNotification(method, params)
	if err != nil {
		return err
	}
	return c.writer.Write(msg)
}

// Diagnostics returns the channel of published diagnostics. It is closed
// once the connection has ended and every publication was received, or when
// the client is closed.
func (c *Client) Diagnostics() <-chan protocol.PublishDiagnosticsParams {
	return c.diagnostics
}

// WaitDiagnostics returns the next publication for uri, discarding
// publications for other documents.
func (c *Client) WaitDiagnostics(ctx context.Context, uri string) (protocol.PublishDiagnosticsParams, error) {
	for {
		select {
		case p, ok := <-c.diagnostics:
			if !ok {
				return protocol.PublishDiagnosticsParams{}, c.readErr
			}
			if p.URI == uri {
				return p, nil
			}
		case <-ctx.Done():
			return protocol.PublishDiagnosticsParams{}, fmt.Errorf("waiting for diagnostics of %s: %w", uri, ctx.Err())
		}
	}
}

// Done is closed when the server side of the stream ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// inputCloser is a stream whose write side can be closed on its own. The
// peer then sees end of input and closes its side.
type inputCloser interface {
	closeInput() error
}

// Close closes the stream and waits for the reader to stop. For a spawned
// server it closes the server's input first and lets the reader drain its
// output before reaping the process.
func (c *Client) Close() error {
	var closeErr error
	c.closeOnce.Do(func() {
		close(c.closing)
		if in, ok := c.conn.(inputCloser); ok {
			if err := in.closeInput(); err != nil {
				c.logger.Debug("Closing server input failed", zap.Error(err))
			}
			<-c.done
		}
		closeErr = c.conn.Close()
	})
	if err := c.group.Wait(); err != nil {
		c.logger.Debug("Reader stopped with error", zap.Error(err))
	}
	return closeErr
}

// Initialize performs the initialize request and sends initialized.
func (c *Client) Initialize(ctx context.Context, name string) (*protocol.InitializeResult, error) {
	var result protocol.InitializeResult
	params := protocol.InitializeParams{ClientInfo: &protocol.ClientInfo{Name: name}}
	if err := c.Request(ctx, protocol.MethodInitialize, params, &result); err != nil {
		return nil, err
	}
	if err := c.Notify(protocol.MethodInitialized, struct{}{}); err != nil {
		return nil, err
	}
	return &result, nil
}

// Shutdown sends the shutdown request.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.Request(ctx, protocol.MethodShutdown, nil, nil)
}

// Exit sends the exit notification.
func (c *Client) Exit() error {
	return c.Notify(protocol.MethodExit, nil)
}

// DidOpen opens a document.
func (c *Client) DidOpen(uri, languageID, text string) error {
	return c.Notify(protocol.MethodDidOpen, protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri, LanguageID: languageID, Version: 1, Text: text},
	})
}

// DidChange replaces the full text of a document.
func (c *Client) DidChange(uri string, version int, text string) error {
	return c.Notify(protocol.MethodDidChange, protocol.DidChangeTextDocumentParams{
		TextDocument:   protocol.VersionedTextDocumentIdentifier{URI: uri, Version: version},
		ContentChanges: []protocol.TextDocumentContentChangeEvent{{Text: text}},
	})
}

// DidClose closes a document.
func (c *Client) DidClose(uri string) error {
	return c.Notify(protocol.MethodDidClose, protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	})
}
