package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"compactmcp/internal/contract"
	"compactmcp/internal/embedding"
	"compactmcp/internal/github"
	"compactmcp/internal/mcp"
	"compactmcp/internal/prompt"
	"compactmcp/internal/store"
	"compactmcp/internal/tools"
	"compactmcp/internal/tools/compact"
	"compactmcp/internal/tools/docs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the tool set over MCP stdio",
	Long: `Starts the MCP server on stdin/stdout. This is the command an MCP
client configuration should launch; nothing but protocol traffic is
written to stdout.`,
	RunE: runServe,
}

// buildRegistry wires every tool the configuration supports. Optional
// backends degrade gracefully: no index database means no search tool,
// no embedding backend means keyword-only search.
func buildRegistry() *tools.Registry {
	registry := tools.NewRegistry()

	engine := contract.NewEngine(compilerSettings())
	compact.Register(registry, engine)

	client := github.NewClient(cfg.GitHub, cfg.GitHubCacheTTL())

	var st *store.Store
	if path := cfg.Store.DatabasePath; path != "" {
		if _, statErr := os.Stat(path); statErr != nil {
			logger.Info("no example index yet; run compact-mcp index", zap.String("path", path))
		} else if opened, err := store.Open(path); err != nil {
			logger.Warn("example index unavailable", zap.String("path", path), zap.Error(err))
		} else {
			st = opened
		}
	}

	var embedder embedding.Engine
	if st != nil {
		var err error
		if embedder, err = embedding.NewEngine(cfg.Embedding); err != nil {
			logger.Warn("embedding backend unavailable, search falls back to keywords", zap.Error(err))
		}
	}

	catalog, err := prompt.Load()
	if err != nil {
		logger.Warn("contract templates unavailable", zap.Error(err))
		catalog = nil
	}

	docs.Register(registry, client, cfg.Compiler.Binary, st, embedder, catalog)
	return registry
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := buildRegistry()
	logger.Info("starting MCP server",
		zap.String("name", cfg.Name),
		zap.String("version", cfg.Version),
		zap.Int("tools", registry.Count()))

	srv := mcp.NewServer(cfg.Name, cfg.Version, registry, os.Stdin, os.Stdout)
	err := srv.Serve(ctx)
	if err == context.Canceled {
		logger.Info("shutdown requested")
		return nil
	}
	return err
}
