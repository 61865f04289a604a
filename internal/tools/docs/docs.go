// Package docs exposes documentation retrieval, release tracking,
// example search and contract templates as MCP tools.
package docs

import (
	"context"
	"encoding/json"
	"fmt"

	"compactmcp/internal/contract"
	"compactmcp/internal/github"
	"compactmcp/internal/release"
	"compactmcp/internal/tools"
)

func marshal(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	return string(data), nil
}

// docsPayload is the get_compact_docs result: either file content or a
// directory listing, never both.
type docsPayload struct {
	Repo    string            `json:"repo"`
	Path    string            `json:"path"`
	Content string            `json:"content,omitempty"`
	Entries []github.DirEntry `json:"entries,omitempty"`
}

// repoFor resolves the optional repo argument to a configured
// repository slug.
func repoFor(client *github.Client, arg string) (string, error) {
	switch arg {
	case "", "docs":
		return client.DocsRepo(), nil
	case "examples":
		return client.ExamplesRepo(), nil
	default:
		return "", fmt.Errorf("unknown repo %q (want docs or examples)", arg)
	}
}

// NewDocsTool builds the get_compact_docs tool. An empty path lists
// the repository root so the model can discover what to fetch.
func NewDocsTool(client *github.Client) *tools.Tool {
	return &tools.Tool{
		Name: "get_compact_docs",
		Description: "Fetch Compact language documentation or example sources from the " +
			"official repositories. With no path, lists the repository root; with a " +
			"directory path, lists it; with a file path, returns the file content.",
		Category: tools.CategoryDocs,
		Priority: 70,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			repoArg, err := tools.StringArg(args, "repo")
			if err != nil {
				return "", err
			}
			path, err := tools.StringArg(args, "path")
			if err != nil {
				return "", err
			}
			ref, err := tools.StringArg(args, "ref")
			if err != nil {
				return "", err
			}

			repo, err := repoFor(client, repoArg)
			if err != nil {
				return "", err
			}

			payload := docsPayload{Repo: repo, Path: path}
			if path == "" {
				payload.Entries, err = client.ListDir(ctx, repo, "")
			} else {
				payload.Content, err = client.GetFile(ctx, repo, path, ref)
				if err != nil {
					// Directory paths are rejected by the raw media
					// type; retry as a listing before giving up.
					if entries, listErr := client.ListDir(ctx, repo, path); listErr == nil {
						payload.Entries, err = entries, nil
					}
				}
			}
			if err != nil {
				return "", fmt.Errorf("failed to fetch %s from %s: %w", path, repo, err)
			}
			return marshal(payload)
		},
		Schema: tools.ToolSchema{
			Required: []string{},
			Properties: map[string]tools.Property{
				"repo": {
					Type:        "string",
					Description: "Which repository to read: docs (default) or examples.",
					Enum:        []any{"docs", "examples"},
				},
				"path": {
					Type:        "string",
					Description: "File or directory path inside the repository. Empty lists the root.",
				},
				"ref": {
					Type:        "string",
					Description: "Branch, tag or commit to read from (default branch if empty).",
				},
			},
		},
	}
}

// releasePayload is the get_release_notes result.
type releasePayload struct {
	InstalledVersion string         `json:"installedVersion,omitempty"`
	LatestVersion    string         `json:"latestVersion,omitempty"`
	UpToDate         *bool          `json:"upToDate,omitempty"`
	MigrationHints   []string       `json:"migrationHints,omitempty"`
	Notes            []release.Note `json:"notes"`
}

// NewReleaseNotesTool builds the get_release_notes tool. The installed
// compiler version is probed from PATH unless passed explicitly, and
// migration hints cover the gap between installed and latest.
func NewReleaseNotesTool(client *github.Client, compilerBinary string) *tools.Tool {
	return &tools.Tool{
		Name: "get_release_notes",
		Description: "Fetch Compact compiler release notes, compare them against the " +
			"installed compiler version and summarize breaking changes the user has " +
			"not picked up yet.",
		Category: tools.CategoryDocs,
		Priority: 60,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			limit, err := tools.IntArg(args, "limit", 20)
			if err != nil {
				return "", err
			}
			installedArg, err := tools.StringArg(args, "installedVersion")
			if err != nil {
				return "", err
			}

			releases, err := client.ListReleases(ctx, client.CompilerRepo(), limit)
			if err != nil {
				return "", fmt.Errorf("failed to fetch releases: %w", err)
			}
			notes := release.Parse(releases)

			payload := releasePayload{Notes: notes}
			if latest, ok := release.Latest(notes); ok {
				payload.LatestVersion = latest.Version.String()
			}

			installedStr := installedArg
			if installedStr == "" {
				// Probe failure is not fatal; notes are still useful
				// without a local toolchain.
				installedStr, _ = contract.DetectCompilerVersion(ctx, compilerBinary)
			}
			if installed, ok := release.ParseVersion(installedStr); ok {
				payload.InstalledVersion = installed.String()
				payload.MigrationHints = release.MigrationHints(installed, notes)
				if latest, ok := release.Latest(notes); ok {
					upToDate := installed.Compare(latest.Version) >= 0
					payload.UpToDate = &upToDate
				}
			}
			return marshal(payload)
		},
		Schema: tools.ToolSchema{
			Required: []string{},
			Properties: map[string]tools.Property{
				"limit": {
					Type:        "integer",
					Description: "Maximum number of releases to consider (default 20).",
				},
				"installedVersion": {
					Type:        "string",
					Description: "Compiler version to compare against; autodetected from PATH if empty.",
				},
			},
		},
	}
}
