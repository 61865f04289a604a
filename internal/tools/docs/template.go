package docs

import (
	"context"
	"fmt"

	"compactmcp/internal/prompt"
	"compactmcp/internal/tools"
)

// templateListing is the id-only view returned when no id is given.
type templateListing struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

// NewTemplateTool builds the get_contract_template tool over the
// embedded template catalog.
func NewTemplateTool(catalog *prompt.Catalog) *tools.Tool {
	return &tools.Tool{
		Name: "get_contract_template",
		Description: "Return a ready-to-adapt Compact contract template. Without an id, " +
			"lists the available templates; with one, returns the full source and " +
			"usage notes.",
		Category: tools.CategoryDocs,
		Priority: 50,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			id, err := tools.StringArg(args, "id")
			if err != nil {
				return "", err
			}
			if id == "" {
				listing := make([]templateListing, 0, catalog.Count())
				for _, t := range catalog.List() {
					listing = append(listing, templateListing{
						ID:          t.ID,
						Title:       t.Title,
						Description: t.Description,
						Tags:        t.Tags,
					})
				}
				return marshal(listing)
			}
			t := catalog.Get(id)
			if t == nil {
				return "", fmt.Errorf("unknown template %q (known: %v)", id, catalog.IDs())
			}
			return marshal(t)
		},
		Schema: tools.ToolSchema{
			Required: []string{},
			Properties: map[string]tools.Property{
				"id": {
					Type:        "string",
					Description: "Template id; omit to list all templates.",
				},
			},
		},
	}
}
