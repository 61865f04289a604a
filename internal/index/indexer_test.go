package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"compactmcp/internal/config"
	"compactmcp/internal/store"
)

const sampleContract = `pragma language_version >= 0.16;
import CompactStandardLibrary;

export ledger total: Counter;

export circuit increment(): [] {
  total.increment(1);
}

witness secretKey(): Bytes<32>;
`

func TestChunkFileSplitsOnDeclarations(t *testing.T) {
	chunks := chunkFile("counter.compact", sampleContract, 0)

	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks (header + 3 declarations), got %d: %+v", len(chunks), chunks)
	}

	header := chunks[0]
	if header.Kind != "module" || header.StartLine != 1 {
		t.Errorf("unexpected header chunk: %+v", header)
	}

	kinds := map[string]string{}
	for _, c := range chunks[1:] {
		kinds[c.Kind] = c.Name
	}
	if kinds["ledger"] != "total" || kinds["circuit"] != "increment" || kinds["witness"] != "secretKey" {
		t.Errorf("unexpected declaration chunks: %v", kinds)
	}

	for _, c := range chunks {
		if c.Path != "counter.compact" {
			t.Errorf("chunk path = %q", c.Path)
		}
	}
}

func TestChunkFileEmptySource(t *testing.T) {
	chunks := chunkFile("empty.compact", "// nothing\n", 0)
	if len(chunks) != 1 || chunks[0].Kind != "module" {
		t.Errorf("empty file should become one module chunk: %+v", chunks)
	}
}

func TestClipCutsOnLineBoundary(t *testing.T) {
	text := "line one\nline two\nline three"
	got := clip(text, 12)
	if got != "line one" {
		t.Errorf("clip = %q, want %q", got, "line one")
	}
	if got := clip("short", 100); got != "short" {
		t.Errorf("clip must not touch small content, got %q", got)
	}
}

// stubEngine is a deterministic embedding backend for tests.
type stubEngine struct{ calls int }

func (s *stubEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, nil
}

func (s *stubEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = s.Embed(ctx, t)
	}
	return out, nil
}

func (s *stubEngine) Dimensions() int { return 2 }
func (s *stubEngine) Name() string    { return "stub" }

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func testIndexer(t *testing.T, engine *stubEngine) (*Indexer, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.DefaultConfig().Index
	if engine == nil {
		// Typed nil would defeat the engine == nil check in IndexFile.
		return New(st, nil, cfg), st
	}
	return New(st, engine, cfg), st
}

func TestIndexRoot(t *testing.T) {
	root := writeTree(t, map[string]string{
		"counter.compact":      sampleContract,
		"nested/token.compact": sampleContract,
		"README.md":            "not a contract",
		".git/ignored.compact": sampleContract,
	})

	engine := &stubEngine{}
	ix, st := testIndexer(t, engine)

	stats, err := ix.IndexRoot(context.Background(), root)
	if err != nil {
		t.Fatalf("index failed: %v", err)
	}
	if stats.Files != 2 {
		t.Errorf("files = %d, want 2 (markdown and .git skipped)", stats.Files)
	}
	if stats.Chunks != 8 || stats.Embedded != 8 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	n, err := st.Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 8 {
		t.Errorf("stored chunks = %d, want 8", n)
	}
}

func TestIndexFileReplacesOldChunks(t *testing.T) {
	root := writeTree(t, map[string]string{"c.compact": sampleContract})
	ix, st := testIndexer(t, &stubEngine{})
	ctx := context.Background()

	path := filepath.Join(root, "c.compact")
	if _, err := ix.IndexFile(ctx, root, path); err != nil {
		t.Fatal(err)
	}

	// Shrink the file; stale chunks must disappear.
	if err := os.WriteFile(path, []byte("pragma language_version >= 0.16;\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ix.IndexFile(ctx, root, path); err != nil {
		t.Fatal(err)
	}

	n, err := st.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("chunks after re-index = %d, want 1", n)
	}
}

func TestIndexWithoutEngineStoresKeywordOnlyChunks(t *testing.T) {
	root := writeTree(t, map[string]string{"c.compact": sampleContract})
	ix, st := testIndexer(t, nil)
	ctx := context.Background()

	stats, err := ix.IndexRoot(ctx, root)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Embedded != 0 {
		t.Errorf("embedded = %d, want 0 without an engine", stats.Embedded)
	}

	hits, err := st.SearchKeyword(ctx, "increment", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 {
		t.Error("keyword recall should still work without embeddings")
	}
}

func TestWatchReindexesOnWrite(t *testing.T) {
	root := writeTree(t, map[string]string{})
	ix, st := testIndexer(t, &stubEngine{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- ix.Watch(ctx, root, 50*time.Millisecond) }()

	// Give the watcher time to arm before producing events.
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(root, "c.compact")
	if err := os.WriteFile(path, []byte(sampleContract), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		n, err := st.Count(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("watcher did not index the new file in time")
		case <-time.After(50 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("watch returned %v, want context.Canceled", err)
	}
}
