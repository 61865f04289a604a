package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compactmcp/internal/config"
)

func testClient(t *testing.T, handler http.Handler, ttl time.Duration) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig().GitHub
	cfg.BaseURL = srv.URL
	cfg.Token = ""
	return NewClient(cfg, ttl), srv
}

func TestGetFile(t *testing.T) {
	var gotAccept, gotAuth string
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("pragma language_version >= 0.16;\n"))
	}), time.Minute)

	content, err := client.GetFile(context.Background(), "midnightntwrk/compact-docs", "docs/ledger.md", "")
	require.NoError(t, err)
	assert.Contains(t, content, "pragma")
	assert.Equal(t, "application/vnd.github.raw+json", gotAccept)
	assert.Empty(t, gotAuth, "no token configured, no auth header")
}

func TestTokenSentWhenConfigured(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig().GitHub
	cfg.BaseURL = srv.URL
	cfg.Token = "ghp_test"
	client := NewClient(cfg, time.Minute)

	_, err := client.GetFile(context.Background(), "o/r", "f.md", "")
	require.NoError(t, err)
	assert.Equal(t, "Bearer ghp_test", gotAuth)
}

func TestGetFileNotFound(t *testing.T) {
	client, _ := testClient(t, http.NotFoundHandler(), time.Minute)

	_, err := client.GetFile(context.Background(), "o/r", "missing.md", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRateLimitErrorMentionsToken(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}), time.Minute)

	_, err := client.GetFile(context.Background(), "o/r", "f.md", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GITHUB_TOKEN")
}

func TestCacheServesRepeatFetches(t *testing.T) {
	var hits int32
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("content"))
	}), time.Minute)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := client.GetFile(ctx, "o/r", "f.md", "")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "repeat fetches should hit the cache")
}

func TestCacheExpires(t *testing.T) {
	var hits int32
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("content"))
	}), 50*time.Millisecond)

	ctx := context.Background()
	_, err := client.GetFile(ctx, "o/r", "f.md", "")
	require.NoError(t, err)

	// Move the cache clock past the TTL instead of sleeping.
	client.cache.now = func() time.Time { return time.Now().Add(time.Second) }

	_, err = client.GetFile(ctx, "o/r", "f.md", "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestConcurrentFetchesCollapse(t *testing.T) {
	var hits int32
	release := make(chan struct{})
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-release
		w.Write([]byte("content"))
	}), time.Minute)

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.GetFile(ctx, "o/r", "f.md", "")
			assert.NoError(t, err)
		}()
	}
	// Give the goroutines time to pile onto the flight group.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "concurrent fetches should collapse to one request")
}

func TestListDir(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"name": "counter.compact", "path": "contracts/counter.compact", "type": "file", "size": 512},
			{"name": "nested", "path": "contracts/nested", "type": "dir", "size": 0}
		]`))
	}), time.Minute)

	entries, err := client.ListDir(context.Background(), "o/r", "contracts")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "counter.compact", entries[0].Name)
	assert.Equal(t, "dir", entries[1].Type)
}

func TestListReleases(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("per_page"))
		w.Write([]byte(`[
			{"tag_name": "compact-v0.17.0", "name": "0.17.0", "body": "Adds sealed maps.", "published_at": "2025-06-01T00:00:00Z"},
			{"tag_name": "compact-v0.16.0", "name": "0.16.0", "body": "Breaking: disclose required.", "published_at": "2025-03-01T00:00:00Z"}
		]`))
	}), time.Minute)

	releases, err := client.ListReleases(context.Background(), "o/r", 3)
	require.NoError(t, err)
	require.Len(t, releases, 2)
	assert.Equal(t, "compact-v0.17.0", releases[0].TagName)
	assert.False(t, releases[0].Prerelease)
}

func TestLatestRelease(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tag_name": "compact-v0.17.0", "name": "0.17.0", "body": "notes"}`))
	}), time.Minute)

	release, err := client.LatestRelease(context.Background(), "o/r")
	require.NoError(t, err)
	assert.Equal(t, "compact-v0.17.0", release.TagName)
}
