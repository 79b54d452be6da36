package lsp_test

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/basic-lsp-server/internal/client"
	"github.com/woxQAQ/basic-lsp-server/internal/config"
	"github.com/woxQAQ/basic-lsp-server/internal/jsonrpc"
	"github.com/woxQAQ/basic-lsp-server/internal/lsp"
	"github.com/woxQAQ/basic-lsp-server/pkg/protocol"
)

const docURI = "file:///tmp/server-test.txt"

func newTestServer(t *testing.T, maxSessions int) *lsp.Server {
	t.Helper()
	cfg := &config.ServerConfig{
		LogLevel: "debug",
		LogFile:  "/tmp/lsp-server-test.log",
		Transport: config.TransportConfig{
			Mode:        config.TransportTCP,
			Address:     "127.0.0.1:0",
			MaxSessions: maxSessions,
			ReadBuffer:  4096,
		},
	}
	srv, err := lsp.NewServer(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return srv
}

// serveTCP starts srv on a loopback listener and returns its address. The
// listener stops when the test ends.
func serveTCP(t *testing.T, srv *lsp.Server) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ServeListener(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return ln.Addr().String()
}

func timeout(t *testing.T, d time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	t.Cleanup(cancel)
	return ctx
}

func TestServer_ServeStream(t *testing.T) {
	srv := newTestServer(t, 1)

	var in bytes.Buffer
	w := jsonrpc.NewWriter(&in)
	req, err := jsonrpc.NewRequest(jsonrpc.NewNumberID(1), protocol.MethodInitialize, map[string]any{})
	require.NoError(t, err)
	require.NoError(t, w.Write(req))
	exit, err := jsonrpc.NewNotification(protocol.MethodExit, nil)
	require.NoError(t, err)
	require.NoError(t, w.Write(exit))

	var out bytes.Buffer
	require.NoError(t, srv.ServeStream(context.Background(), &in, &out))

	resp, err := jsonrpc.NewReader(&out, 0).Read()
	require.NoError(t, err)
	assert.Equal(t, jsonrpc.KindResponse, resp.Kind())
	assert.Contains(t, string(resp.Result), `"name":"basic-lsp-server"`)
}

func TestServer_TCPSessions(t *testing.T) {
	srv := newTestServer(t, 4)
	addr := serveTCP(t, srv)
	ctx := timeout(t, 5*time.Second)

	first, err := client.Dial(ctx, addr, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer first.Close()

	_, err = first.Initialize(ctx, "first")
	require.NoError(t, err)
	require.NoError(t, first.DidOpen(docURI, "plaintext", "TODO\nTODO\n"))

	p, err := first.WaitDiagnostics(ctx, docURI)
	require.NoError(t, err)
	assert.Len(t, p.Diagnostics, 3)

	// Exit ends only the session that sent it.
	require.NoError(t, first.Exit())
	select {
	case <-first.Done():
	case <-ctx.Done():
		t.Fatal("first session did not end after exit")
	}

	second, err := client.Dial(ctx, addr, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer second.Close()

	// Documents are per session.
	require.NoError(t, second.DidChange(docURI, 2, "clean"))
	p, err = second.WaitDiagnostics(ctx, docURI)
	require.NoError(t, err)
	assert.Empty(t, p.Diagnostics)
}

func TestServer_TCPSessionLimit(t *testing.T) {
	srv := newTestServer(t, 1)
	addr := serveTCP(t, srv)
	ctx := timeout(t, 5*time.Second)

	first, err := client.Dial(ctx, addr, zaptest.NewLogger(t))
	require.NoError(t, err)
	_, err = first.Initialize(ctx, "first")
	require.NoError(t, err)

	second, err := client.Dial(ctx, addr, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer second.Close()

	// The second connection waits for a free slot.
	_, err = second.Initialize(timeout(t, 100*time.Millisecond), "second")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, first.Close())

	_, err = second.Initialize(ctx, "second")
	assert.NoError(t, err)
}

func TestServer_WebSocket(t *testing.T) {
	srv := newTestServer(t, 1)
	ts := httptest.NewServer(srv.WebSocketHandler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	ctx := timeout(t, 5*time.Second)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/lsp"

	c, err := client.DialWebSocket(ctx, url, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer c.Close()

	result, err := c.Initialize(ctx, "ws-test")
	require.NoError(t, err)
	assert.Equal(t, lsp.ServerName, result.ServerInfo.Name)

	require.NoError(t, c.DidOpen(docURI, "plaintext", "// FIXME: later"))
	p, err := c.WaitDiagnostics(ctx, docURI)
	require.NoError(t, err)
	require.Len(t, p.Diagnostics, 1)
	assert.Equal(t, protocol.SeverityWarning, p.Diagnostics[0].Severity)

	// The only slot is taken.
	_, err = client.DialWebSocket(ctx, url, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestServer_CloseWaitsForSessions(t *testing.T) {
	srv := newTestServer(t, 1)
	addr := serveTCP(t, srv)
	ctx := timeout(t, 5*time.Second)

	require.NoError(t, srv.Close(ctx))

	c, err := client.Dial(ctx, addr, zaptest.NewLogger(t))
	require.NoError(t, err)
	_, err = c.Initialize(ctx, "close-test")
	require.NoError(t, err)

	err = srv.Close(timeout(t, 50*time.Millisecond))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, c.Shutdown(ctx))
	require.NoError(t, c.Close())
	assert.NoError(t, srv.Close(ctx))
}
