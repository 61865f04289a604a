package docs

import (
	"context"
	"fmt"

	"compactmcp/internal/embedding"
	"compactmcp/internal/logging"
	"compactmcp/internal/store"
	"compactmcp/internal/tools"
)

// searchHit is one result row, trimmed for LLM consumption.
type searchHit struct {
	Path      string  `json:"path"`
	Kind      string  `json:"kind"`
	Name      string  `json:"name,omitempty"`
	StartLine int     `json:"startLine"`
	Score     float64 `json:"score"`
	Content   string  `json:"content"`
}

// searchPayload is the search_examples result.
type searchPayload struct {
	Query string      `json:"query"`
	Mode  string      `json:"mode"` // semantic or keyword
	Hits  []searchHit `json:"hits"`
}

func toHits(raw []store.SearchHit) []searchHit {
	hits := make([]searchHit, 0, len(raw))
	for _, h := range raw {
		hits = append(hits, searchHit{
			Path:      h.Chunk.Path,
			Kind:      h.Chunk.Kind,
			Name:      h.Chunk.Name,
			StartLine: h.Chunk.StartLine,
			Score:     h.Score,
			Content:   h.Chunk.Content,
		})
	}
	return hits
}

// NewSearchTool builds the search_examples tool over the local index.
// With an embedding engine the query runs semantically; without one,
// or when the index carries no vectors, it falls back to keyword
// matching.
func NewSearchTool(st *store.Store, engine embedding.Engine) *tools.Tool {
	return &tools.Tool{
		Name: "search_examples",
		Description: "Search the locally indexed Compact example contracts for circuits, " +
			"ledger declarations and patterns matching a natural-language query. " +
			"Requires a prior run of the index command.",
		Category: tools.CategorySearch,
		Priority: 70,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			query, err := tools.StringArg(args, "query")
			if err != nil {
				return "", err
			}
			if query == "" {
				return "", fmt.Errorf("%w: query", tools.ErrMissingRequiredArg)
			}
			limit, err := tools.IntArg(args, "limit", 5)
			if err != nil {
				return "", err
			}

			n, err := st.Count(ctx)
			if err != nil {
				return "", fmt.Errorf("failed to read index: %w", err)
			}
			if n == 0 {
				return "", fmt.Errorf("the example index is empty; run the index command first")
			}

			payload := searchPayload{Query: query, Mode: "keyword"}
			if engine != nil {
				vec, err := engine.Embed(ctx, query)
				if err != nil {
					logging.Get(logging.CategoryTools).Warn("query embedding failed, falling back to keyword search: %v", err)
				} else {
					raw, err := st.SearchSimilar(ctx, vec, limit)
					if err != nil {
						return "", fmt.Errorf("semantic search failed: %w", err)
					}
					if len(raw) > 0 {
						payload.Mode = "semantic"
						payload.Hits = toHits(raw)
					}
				}
			}
			if payload.Hits == nil {
				raw, err := st.SearchKeyword(ctx, query, limit)
				if err != nil {
					return "", fmt.Errorf("keyword search failed: %w", err)
				}
				payload.Hits = toHits(raw)
			}
			return marshal(payload)
		},
		Schema: tools.ToolSchema{
			Required: []string{"query"},
			Properties: map[string]tools.Property{
				"query": {
					Type:        "string",
					Description: "What to look for, e.g. \"sealed ledger ownership check\".",
				},
				"limit": {
					Type:        "integer",
					Description: "Maximum number of hits to return (default 5).",
				},
			},
		},
	}
}
