package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"dashboard-go/internal/config"
	"dashboard-go/internal/datasource"
	mcpserver "dashboard-go/internal/mcp"
	"dashboard-go/internal/state"
)

// Runs the dashboard as an MCP server on stdin/stdout. Logs go to stderr
// so they never mix with the protocol stream.
func main() {
	log.SetOutput(os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var remote *datasource.Cache
	switch {
	case cfg.DatasetURL != "":
		remote = datasource.NewCache(&datasource.HTTP{URL: cfg.DatasetURL, Timeout: datasource.DefaultHTTPTimeout})
	case cfg.DatasetPath != "":
		remote = datasource.NewCache(&datasource.File{Path: cfg.DatasetPath})
	}
	if remote != nil {
		if cfg.DatasetRefresh != "" {
			if err := remote.Schedule(ctx, cfg.DatasetRefresh); err != nil {
				log.Fatalf("Remote dataset: %v", err)
			}
		}
		defer remote.Stop()
	}

	srv := mcpserver.New(mcpserver.Deps{
		Engine:   cfg.Engine(),
		Sessions: state.NewStore(),
		Sources:  datasource.NewRegistry(),
		Remote:   remote,
	})

	errc := make(chan error, 1)
	go func() { errc <- srv.ServeStdio() }()

	select {
	case <-ctx.Done():
		log.Println("[MCP] Shutting down")
	case err := <-errc:
		if err != nil {
			log.Fatalf("[MCP] server error: %v", err)
		}
	}
}
