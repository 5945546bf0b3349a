// cmd/keeper-mcp is the entry point for the keeper MCP (Model Context
// Protocol) server. It wires the file-backed memory store, the journal and
// the optional external-edit watcher behind a stdio JSON-RPC 2.0 transport.
//
// Startup sequence:
//  1. Load configuration from environment variables.
//  2. Open the memory tree and rebuild the index from disk.
//  3. Open the journal directory.
//  4. Optionally start the external-edit watcher.
//  5. Serve JSON-RPC 2.0 requests from stdin, writing responses to stdout.
//
// CRITICAL: ALL logging MUST go to stderr. Any bytes written to stdout that
// are not valid JSON-RPC 2.0 response frames will corrupt the protocol.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/scrypster/keeper/internal/api/mcp"
	"github.com/scrypster/keeper/internal/config"
	"github.com/scrypster/keeper/internal/journal"
	"github.com/scrypster/keeper/internal/notify"
	"github.com/scrypster/keeper/internal/storage/fsstore"
)

func main() {
	// Redirect the default logger to stderr so that any incidental log calls
	// (including from imported packages) never pollute the stdout JSON-RPC
	// stream.
	log.SetOutput(os.Stderr)
	log.SetPrefix("keeper-mcp: ")
	log.SetFlags(log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	store, err := fsstore.New(cfg.Storage.MemoryPath)
	if err != nil {
		log.Fatalf("failed to open memory store at %q: %v", cfg.Storage.MemoryPath, err)
	}
	defer store.Close()

	jstore, err := journal.New(cfg.Storage.JournalPath)
	if err != nil {
		log.Fatalf("failed to open journal at %q: %v", cfg.Storage.JournalPath, err)
	}

	// Root context cancelled on SIGINT / SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("received shutdown signal")
		cancel()
	}()

	if cfg.Watcher.Enabled {
		watcher := notify.NewWatcher(store, store.WatchDirs(), cfg.Watcher.RefreshPerSec)
		if err := watcher.Start(); err != nil {
			log.Fatalf("failed to start watcher: %v", err)
		}
		defer watcher.Stop()
	}

	srv := mcp.NewServer(store,
		mcp.WithConfig(cfg),
		mcp.WithJournal(jstore),
	)

	transport := mcp.NewStdioTransport(srv, os.Stdin, os.Stdout)

	log.Println("ready — serving JSON-RPC 2.0 on stdin/stdout")

	if err := transport.Serve(ctx); err != nil {
		// Normal on context cancellation; otherwise a fatal stdio problem.
		log.Printf("transport stopped: %v", err)
	}
}
