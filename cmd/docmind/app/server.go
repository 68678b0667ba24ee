// Package app provides the DocMind server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/docmind/cmd/docmind/app/options"
	"github.com/kart-io/docmind/pkg/app"
)

const (
	// Name is the name of the application.
	Name = "docmind"

	// commandDesc is the description of the command.
	commandDesc = `DocMind Document QA Service

A retrieval-augmented question answering service over ingested documents.

This server provides:
  - Document ingestion with sentence-aware chunking and vector embeddings
  - Semantic similarity search with metadata filtering and diversity reranking
  - LLM-generated answers with per-claim numbered citations traced to sources
  - Support for multiple LLM providers (Ollama, OpenAI)`
)

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	application := app.NewApp(
		app.WithName(Name),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)

	return application
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := setupSignalContext()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		return server.Run(ctx)
	}
}

// setupSignalContext returns a context that is cancelled on SIGINT or SIGTERM.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
