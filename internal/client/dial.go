package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// Dial connects to a server listening on a TCP address.
func Dial(ctx context.Context, addr string, logger *zap.Logger) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return New(conn, logger), nil
}

// DialWebSocket connects to a server's WebSocket endpoint, for example
// ws://127.0.0.1:7998/lsp.
func DialWebSocket(ctx context.Context, url string, logger *zap.Logger) (*Client, error) {
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	// The connection outlives the dial context.
	conn := websocket.NetConn(context.Background(), c, websocket.MessageBinary)
	return New(conn, logger), nil
}

// Spawn starts command as a child process and talks to it over its
// standard input and output. Closing the client closes stdin and waits for
// the process.
func Spawn(ctx context.Context, command []string, logger *zap.Logger) (*Client, error) {
	if len(command) == 0 {
		return nil, errors.New("spawn: empty command")
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...) //nolint:gosec // command comes from the caller
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", command[0], err)
	}

	return New(&processPipe{cmd: cmd, stdin: stdin, stdout: stdout}, logger), nil
}

type processPipe struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

func (p *processPipe) Read(b []byte) (int, error)  { return p.stdout.Read(b) }
func (p *processPipe) Write(b []byte) (int, error) { return p.stdin.Write(b) }

func (p *processPipe) closeInput() error { return p.stdin.Close() }

// Close ends the child's input and reaps it. Reads from stdout must be
// finished before Close is called.
func (p *processPipe) Close() error {
	_ = p.stdin.Close()
	if err := p.cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("server exited with code %d", exitErr.ExitCode())
		}
		return err
	}
	return nil
}
