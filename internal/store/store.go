// Package store persists indexed contract chunks and their embeddings
// in SQLite. The default build uses the pure-Go driver; a cgo build
// with the sqlite_vec tag swaps in mattn/go-sqlite3 with the
// sqlite-vec extension loaded. Similarity recall runs over the stored
// vectors either way, with a keyword fallback for chunks that were
// indexed without an embedding backend.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"compactmcp/internal/embedding"
	"compactmcp/internal/logging"
)

// Chunk is one indexed fragment of a Compact source file.
type Chunk struct {
	ID        int64     `json:"id"`
	Path      string    `json:"path"`      // file path relative to the indexed root
	Kind      string    `json:"kind"`      // circuit, witness, ledger, module, ...
	Name      string    `json:"name"`      // declaration name, or "" for file-level chunks
	StartLine int       `json:"startLine"` // 1-based
	Content   string    `json:"content"`
	Embedding []float32 `json:"-"`
}

// SearchHit is one recall result.
type SearchHit struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Store is the SQLite-backed chunk store. Safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	path       TEXT NOT NULL,
	kind       TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	start_line INTEGER NOT NULL,
	content    TEXT NOT NULL,
	embedding  BLOB,
	UNIQUE(path, kind, name, start_line)
);
CREATE INDEX IF NOT EXISTS idx_chunks_path ON chunks(path);
`

// Open opens (creating if needed) the store at the given path.
func Open(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("failed to set busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("failed to set journal_mode=WAL: %v", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logging.Store("store opened at %s (driver=%s, vec=%v)", path, driverName, vecExtension)
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// UpsertChunk inserts or replaces one chunk.
func (s *Store) UpsertChunk(ctx context.Context, c Chunk) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chunks (path, kind, name, start_line, content, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path, kind, name, start_line)
		DO UPDATE SET content = excluded.content, embedding = excluded.embedding`,
		c.Path, c.Kind, c.Name, c.StartLine, c.Content, encodeVector(c.Embedding))
	if err != nil {
		return fmt.Errorf("failed to upsert chunk %s:%d: %w", c.Path, c.StartLine, err)
	}
	return nil
}

// DeleteByPath removes every chunk of one file, e.g. before re-indexing
// it or after it was deleted.
func (s *Store) DeleteByPath(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("failed to delete chunks for %s: %w", path, err)
	}
	return nil
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// SearchSimilar recalls the chunks most similar to the query vector.
func (s *Store) SearchSimilar(ctx context.Context, query []float32, limit int) ([]SearchHit, error) {
	timer := logging.StartTimer(logging.CategoryStore, "SearchSimilar")
	defer timer.Stop()

	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, kind, name, start_line, content, embedding
		FROM chunks WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	var vectors [][]float32
	for rows.Next() {
		var c Chunk
		var blob []byte
		if err := rows.Scan(&c.ID, &c.Path, &c.Kind, &c.Name, &c.StartLine, &c.Content, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			logging.StoreDebug("skipping chunk %d: %v", c.ID, err)
			continue
		}
		chunks = append(chunks, c)
		vectors = append(vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chunk scan failed: %w", err)
	}

	top := embedding.FindTopK(query, vectors, limit)
	hits := make([]SearchHit, 0, len(top))
	for _, r := range top {
		hits = append(hits, SearchHit{Chunk: chunks[r.Index], Score: r.Similarity})
	}
	return hits, nil
}

// SearchKeyword is the recall path when no embedding backend indexed
// the corpus: case-insensitive substring match over name and content,
// scored by match count.
func (s *Store) SearchKeyword(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	timer := logging.StartTimer(logging.CategoryStore, "SearchKeyword")
	defer timer.Stop()

	if limit <= 0 {
		limit = 5
	}
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, kind, name, start_line, content FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.Path, &c.Kind, &c.Name, &c.StartLine, &c.Content); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		haystack := strings.ToLower(c.Name + "\n" + c.Content)
		matched := 0
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		hits = append(hits, SearchHit{Chunk: c, Score: float64(matched) / float64(len(terms))})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chunk scan failed: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// encodeVector serializes a vector as little-endian float32, the same
// layout sqlite-vec uses for its blobs. nil stays nil so SQL NULL
// marks chunks indexed without embeddings.
func encodeVector(vec []float32) []byte {
	if vec == nil {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}
