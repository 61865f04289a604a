// Package github retrieves documentation, example contracts and
// release metadata from the Compact repositories via the GitHub REST
// API. Responses are cached with a TTL and concurrent fetches of the
// same resource are collapsed into one upstream request.
package github

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"context"

	"golang.org/x/sync/singleflight"

	"compactmcp/internal/config"
	"compactmcp/internal/logging"
)

// maxResponseBytes bounds any single API response body.
const maxResponseBytes = 4 << 20

// Release is the subset of GitHub release metadata the server uses.
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Body        string    `json:"body"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
}

// DirEntry is one entry of a repository directory listing.
type DirEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"` // file or dir
	Size int    `json:"size"`
}

// Client talks to the GitHub REST API for a fixed set of repositories.
type Client struct {
	baseURL      string
	token        string
	docsRepo     string
	examplesRepo string
	compilerRepo string
	httpc        *http.Client
	cache        *ttlCache
	group        singleflight.Group
}

// NewClient creates a client from the retrieval configuration.
func NewClient(cfg config.GitHubConfig, ttl time.Duration) *Client {
	timeout := 30 * time.Second
	if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 {
		timeout = d
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		token:        cfg.Token,
		docsRepo:     cfg.DocsRepo,
		examplesRepo: cfg.ExamplesRepo,
		compilerRepo: cfg.CompilerRepo,
		httpc:        &http.Client{Timeout: timeout},
		cache:        newTTLCache(ttl),
	}
}

// DocsRepo returns the configured documentation repository.
func (c *Client) DocsRepo() string { return c.docsRepo }

// ExamplesRepo returns the configured examples repository.
func (c *Client) ExamplesRepo() string { return c.examplesRepo }

// CompilerRepo returns the repository whose releases track the
// compiler toolchain.
func (c *Client) CompilerRepo() string { return c.compilerRepo }

// GetFile fetches one file's raw content from a repository. ref may be
// empty for the default branch.
func (c *Client) GetFile(ctx context.Context, repo, path, ref string) (string, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/contents/%s", c.baseURL, repo, escapePath(path))
	if ref != "" {
		endpoint += "?ref=" + url.QueryEscape(ref)
	}
	v, err := c.fetch(ctx, endpoint, "application/vnd.github.raw+json", func(body []byte) (any, error) {
		return string(body), nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// ListDir lists a repository directory.
func (c *Client) ListDir(ctx context.Context, repo, path string) ([]DirEntry, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/contents/%s", c.baseURL, repo, escapePath(path))
	v, err := c.fetch(ctx, endpoint, "application/vnd.github+json", func(body []byte) (any, error) {
		var entries []DirEntry
		if err := json.Unmarshal(body, &entries); err != nil {
			return nil, fmt.Errorf("failed to decode directory listing: %w", err)
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]DirEntry), nil
}

// ListReleases fetches up to limit releases, newest first.
func (c *Client) ListReleases(ctx context.Context, repo string, limit int) ([]Release, error) {
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	endpoint := fmt.Sprintf("%s/repos/%s/releases?per_page=%d", c.baseURL, repo, limit)
	v, err := c.fetch(ctx, endpoint, "application/vnd.github+json", func(body []byte) (any, error) {
		var releases []Release
		if err := json.Unmarshal(body, &releases); err != nil {
			return nil, fmt.Errorf("failed to decode releases: %w", err)
		}
		return releases, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Release), nil
}

// LatestRelease fetches the latest non-prerelease release.
func (c *Client) LatestRelease(ctx context.Context, repo string) (*Release, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/releases/latest", c.baseURL, repo)
	v, err := c.fetch(ctx, endpoint, "application/vnd.github+json", func(body []byte) (any, error) {
		var release Release
		if err := json.Unmarshal(body, &release); err != nil {
			return nil, fmt.Errorf("failed to decode release: %w", err)
		}
		return &release, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Release), nil
}

// escapePath escapes each path segment, keeping the separators.
func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}

// fetch is the shared retrieval path: cache lookup, singleflight
// collapse, one bounded HTTP request, decode, cache store.
func (c *Client) fetch(ctx context.Context, endpoint, accept string, decode func([]byte) (any, error)) (any, error) {
	if v, ok := c.cache.get(endpoint); ok {
		logging.GitHubDebug("cache hit: %s", endpoint)
		return v, nil
	}

	v, err, shared := c.group.Do(endpoint, func() (any, error) {
		// Another waiter may have populated the cache while this call
		// queued on the flight group.
		if v, ok := c.cache.get(endpoint); ok {
			return v, nil
		}

		body, err := c.do(ctx, endpoint, accept)
		if err != nil {
			return nil, err
		}
		decoded, err := decode(body)
		if err != nil {
			return nil, err
		}
		c.cache.set(endpoint, decoded)
		return decoded, nil
	})
	if shared {
		logging.GitHubDebug("collapsed concurrent fetch: %s", endpoint)
	}
	return v, err
}

func (c *Client) do(ctx context.Context, endpoint, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	logging.GitHub("GET %s", endpoint)
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("resource not found: %s", endpoint)
	case http.StatusForbidden, http.StatusTooManyRequests:
		return nil, fmt.Errorf("github rate limit or access denied (status %d); set GITHUB_TOKEN to raise the limit", resp.StatusCode)
	default:
		return nil, fmt.Errorf("github returned status %d: %s", resp.StatusCode, firstBytes(body, 200))
	}
}

func firstBytes(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return strings.TrimSpace(string(b))
}
