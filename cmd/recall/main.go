// Recall: Persistent Memory MCP Server
//
// A universal MCP server that gives any AI coding tool (Claude Code,
// OpenCode, Gemini CLI, Codex, Cursor, VS Code Copilot) a versioned,
// namespaced memory that survives between sessions.
//
// Usage:
//
//	recall serve    # Start MCP server (stdio transport)
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/recall-mcp/recall/internal/config"
	recallserver "github.com/recall-mcp/recall/internal/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("recall v%s\n", recallserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := newLogger()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	s, cleanup, err := recallserver.New(recallserver.Options{
		Config: cfg,
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	// Graceful shutdown on interrupt. The stdio server exits when its
	// stdin closes; the signal path covers terminal interrupts.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("shutting down", zap.String("signal", sig.String()))
		cleanup()
		os.Exit(0)
	}()

	log.Info("serving", zap.String("data_dir", cfg.DataDir), zap.String("version", recallserver.Version))
	return server.ServeStdio(s)
}

// newLogger builds the process logger. Everything goes to stderr: stdout
// belongs to the MCP stdio transport.
func newLogger() (*zap.Logger, error) {
	c := zap.NewProductionConfig()
	c.OutputPaths = []string{"stderr"}
	c.ErrorOutputPaths = []string{"stderr"}
	if os.Getenv("RECALL_DEBUG") != "" {
		c.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return c.Build()
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Recall v%s — Persistent Memory MCP Server

Usage:
  recall serve    Start the MCP server (stdio transport)

Configuration:
  Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "recall": {
        "command": "recall",
        "args": ["serve"]
      }
    }
  }

Environment:
  RECALL_DATA_DIR           Database directory (default ~/.recall)
  RECALL_SESSION_IDLE_TTL   Session idle expiry (default 24h)
  RECALL_CACHE_TTL          Reconnect continuity window (default 1h)
  RECALL_DEBUG              Enable debug logging when set
`, recallserver.Version)
}
