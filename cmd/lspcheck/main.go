// Command lspcheck lints text files by driving a basic-lsp-server over the
// protocol and printing the diagnostics it publishes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.lsp.dev/uri"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/woxQAQ/basic-lsp-server/internal/client"
	"github.com/woxQAQ/basic-lsp-server/internal/logging"
)

// Exit codes.
const (
	exitClean    = 0
	exitProblems = 1
	exitFailure  = 2
)

type document struct {
	path string
	uri  string
	text string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run returns the exit code so deferred cleanup completes before exit.
func run(args []string, stdout *os.File) int {
	flags := flag.NewFlagSet("lspcheck", flag.ContinueOnError)
	addr := flags.String("addr", "", "Server address: host:port for tcp or a ws:// URL (spawns -server when empty)")
	serverCmd := flags.String("server", "basic-lsp-server", "Server binary to spawn over stdio")
	format := flags.String("format", "text", "Output format (text, yaml)")
	timeout := flags.Duration("timeout", 30*time.Second, "Overall timeout")
	verbose := flags.Bool("v", false, "Log protocol activity to stderr")
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "usage: lspcheck [flags] file...\n")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return exitFailure
	}

	if flags.NArg() == 0 {
		flags.Usage()
		return exitFailure
	}
	if *format != "text" && *format != "yaml" {
		fmt.Fprintf(os.Stderr, "unknown format %q\n", *format)
		return exitFailure
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{Level: level, File: "stderr"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return exitFailure
	}
	defer logger.Sync()

	docs, err := loadDocuments(flags.Args())
	if err != nil {
		logger.Error("Failed to read input", zap.Error(err))
		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	c, err := connect(ctx, *addr, *serverCmd, logger)
	if err != nil {
		logger.Error("Failed to connect to server", zap.Error(err))
		return exitFailure
	}

	reports, err := check(ctx, c, docs)
	finish(ctx, c, logger)
	if err != nil {
		logger.Error("Check failed", zap.Error(err))
		return exitFailure
	}

	if *format == "yaml" {
		err = writeYAML(stdout, reports)
	} else {
		err = writeText(stdout, reports, term.IsTerminal(int(stdout.Fd())))
	}
	if err != nil {
		logger.Error("Failed to write report", zap.Error(err))
		return exitFailure
	}

	if hasProblems(reports) {
		return exitProblems
	}
	return exitClean
}

// loadDocuments reads each distinct path once.
func loadDocuments(paths []string) ([]document, error) {
	seen := make(map[string]bool, len(paths))
	docs := make([]document, 0, len(paths))
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, document{path: path, uri: fileURI(abs), text: string(data)})
	}
	return docs, nil
}

func fileURI(abs string) string {
	return string(uri.File(abs))
}

func connect(ctx context.Context, addr, serverCmd string, logger *zap.Logger) (*client.Client, error) {
	switch {
	case strings.HasPrefix(addr, "ws://"), strings.HasPrefix(addr, "wss://"):
		return client.DialWebSocket(ctx, addr, logger)
	case addr != "":
		return client.Dial(ctx, addr, logger)
	default:
		return client.Spawn(ctx, strings.Fields(serverCmd), logger)
	}
}

// check opens every document and collects one publication per document.
// Reports keep the order of docs.
func check(ctx context.Context, c *client.Client, docs []document) ([]fileReport, error) {
	if _, err := c.Initialize(ctx, "lspcheck"); err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}

	byURI := make(map[string]int, len(docs))
	for i, d := range docs {
		byURI[d.uri] = i
	}
	reports := make([]fileReport, len(docs))
	received := make([]bool, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for _, d := range docs {
			if err := c.DidOpen(d.uri, "plaintext", d.text); err != nil {
				return fmt.Errorf("open %s: %w", d.path, err)
			}
		}
		return nil
	})
	g.Go(func() error {
		remaining := len(docs)
		for remaining > 0 {
			select {
			case p, ok := <-c.Diagnostics():
				if !ok {
					return client.ErrClosed
				}
				i, want := byURI[p.URI]
				if !want || received[i] {
					continue
				}
				received[i] = true
				remaining--
				reports[i] = fileReport{File: docs[i].path, Diagnostics: p.Diagnostics}
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// finish ends the session. The server stops reading after shutdown, so a
// failed exit write is expected.
func finish(ctx context.Context, c *client.Client, logger *zap.Logger) {
	if err := c.Shutdown(ctx); err != nil && !errors.Is(err, client.ErrClosed) {
		logger.Warn("Shutdown failed", zap.Error(err))
	}
	if err := c.Exit(); err != nil {
		logger.Debug("Exit not delivered", zap.Error(err))
	}
	if err := c.Close(); err != nil {
		logger.Warn("Close failed", zap.Error(err))
	}
}
