package docs

import (
	"compactmcp/internal/embedding"
	"compactmcp/internal/github"
	"compactmcp/internal/prompt"
	"compactmcp/internal/store"
	"compactmcp/internal/tools"
)

// Register adds the docs tool set to the registry. The store and
// engine may be nil; search_examples is only exposed when a local
// index exists to search.
func Register(registry *tools.Registry, client *github.Client, compilerBinary string, st *store.Store, engine embedding.Engine, catalog *prompt.Catalog) {
	registry.MustRegister(NewDocsTool(client))
	registry.MustRegister(NewReleaseNotesTool(client, compilerBinary))
	if st != nil {
		registry.MustRegister(NewSearchTool(st, engine))
	}
	if catalog != nil {
		registry.MustRegister(NewTemplateTool(catalog))
	}
}
