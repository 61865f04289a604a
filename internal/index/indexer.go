package index

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"compactmcp/internal/config"
	"compactmcp/internal/contract"
	"compactmcp/internal/embedding"
	"compactmcp/internal/logging"
	"compactmcp/internal/store"
)

// Indexer walks a repository checkout and fills the chunk store.
// The embedding engine may be nil, in which case chunks are stored
// without vectors and recall falls back to keyword search.
type Indexer struct {
	store  *store.Store
	engine embedding.Engine
	cfg    config.IndexConfig
}

// New creates an indexer.
func New(st *store.Store, engine embedding.Engine, cfg config.IndexConfig) *Indexer {
	return &Indexer{store: st, engine: engine, cfg: cfg}
}

// Stats summarizes one indexing run.
type Stats struct {
	Files    int `json:"files"`
	Chunks   int `json:"chunks"`
	Embedded int `json:"embedded"`
}

// IndexRoot indexes every .compact file under root. Files are
// processed concurrently up to the configured limit; one failing file
// aborts the run.
func (ix *Indexer) IndexRoot(ctx context.Context, root string) (Stats, error) {
	timer := logging.StartTimer(logging.CategoryIndex, "IndexRoot")
	defer timer.Stop()

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Skip VCS and hidden directories.
			if name := d.Name(); name != "." && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, contract.FileExtension) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	concurrency := ix.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	var mu sync.Mutex
	var total Stats
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			st, err := ix.IndexFile(gctx, root, path)
			if err != nil {
				return err
			}
			mu.Lock()
			total.Files++
			total.Chunks += st.Chunks
			total.Embedded += st.Embedded
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return total, err
	}

	logging.Index("indexed %d files under %s: %d chunks (%d embedded)", total.Files, root, total.Chunks, total.Embedded)
	return total, nil
}

// IndexFile (re-)indexes a single file: old chunks for its path are
// replaced wholesale.
func (ix *Indexer) IndexFile(ctx context.Context, root, path string) (Stats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	rel := relPath(root, path)
	chunks := chunkFile(rel, string(data), ix.cfg.ChunkMaxBytes)

	embedded := 0
	if ix.engine != nil && len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
		}
		vectors, err := ix.engine.EmbedBatch(ctx, texts)
		if err != nil {
			return Stats{}, fmt.Errorf("failed to embed %s: %w", rel, err)
		}
		for i := range chunks {
			chunks[i].Embedding = vectors[i]
			embedded++
		}
	}

	if err := ix.store.DeleteByPath(ctx, rel); err != nil {
		return Stats{}, err
	}
	for _, c := range chunks {
		if err := ix.store.UpsertChunk(ctx, c); err != nil {
			return Stats{}, err
		}
	}

	logging.IndexDebug("indexed %s: %d chunks (%d embedded)", rel, len(chunks), embedded)
	return Stats{Files: 1, Chunks: len(chunks), Embedded: embedded}, nil
}

// Remove drops a file's chunks, e.g. after it was deleted on disk.
func (ix *Indexer) Remove(ctx context.Context, root, path string) error {
	return ix.store.DeleteByPath(ctx, relPath(root, path))
}

func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
