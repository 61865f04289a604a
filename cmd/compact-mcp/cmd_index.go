package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"compactmcp/internal/embedding"
	"compactmcp/internal/index"
	"compactmcp/internal/store"
)

var (
	indexWatch        bool
	indexNoEmbeddings bool
)

var indexCmd = &cobra.Command{
	Use:   "index [directory]",
	Short: "Build the example search index from a local checkout",
	Long: `Walks a directory of .compact contracts (typically a checkout of the
example repository), splits each file on declaration boundaries,
embeds the chunks and stores them for the search_examples tool.

With --watch the command keeps running and re-indexes files as they
change on disk.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVarP(&indexWatch, "watch", "w", false, "keep watching the directory and re-index on change")
	indexCmd.Flags().BoolVar(&indexNoEmbeddings, "no-embeddings", false, "skip embeddings; search falls back to keywords")
}

func runIndex(cmd *cobra.Command, args []string) error {
	root := args[0]
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}

	st, err := store.Open(cfg.Store.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open index database: %w", err)
	}
	defer st.Close()

	var embedder embedding.Engine
	if !indexNoEmbeddings {
		if embedder, err = embedding.NewEngine(cfg.Embedding); err != nil {
			logger.Warn("embedding backend unavailable, indexing without vectors", zap.Error(err))
		}
	}

	ix := index.New(st, embedder, cfg.Index)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := ix.IndexRoot(ctx, root)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	logger.Info("index built",
		zap.String("database", st.Path()),
		zap.Int("files", stats.Files),
		zap.Int("chunks", stats.Chunks),
		zap.Int("embedded", stats.Embedded))

	if !indexWatch {
		return nil
	}

	logger.Info("watching for changes", zap.String("root", root))
	if err := ix.Watch(ctx, root, cfg.WatchDebounce()); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
