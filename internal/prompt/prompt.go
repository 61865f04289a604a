// Package prompt serves canned Compact contract templates. Templates
// are YAML files baked into the binary with go:embed, so the server
// has no filesystem dependency for built-in content.
package prompt

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"compactmcp/internal/logging"
)

//go:embed templates
var embeddedTemplates embed.FS

// Template is one ready-to-adapt contract pattern.
type Template struct {
	ID          string   `yaml:"id" json:"id"`
	Title       string   `yaml:"title" json:"title"`
	Description string   `yaml:"description" json:"description"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	Source      string   `yaml:"source" json:"source"`
	Notes       string   `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// Catalog holds the loaded templates, keyed by ID.
type Catalog struct {
	byID  map[string]*Template
	order []string
}

var (
	loadOnce sync.Once
	loaded   *Catalog
	loadErr  error
)

// Load parses the embedded template files. The result is cached for
// the life of the process.
func Load() (*Catalog, error) {
	loadOnce.Do(func() {
		loaded, loadErr = loadFrom(embeddedTemplates)
	})
	return loaded, loadErr
}

func loadFrom(fsys fs.FS) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]*Template)}

	err := fs.WalkDir(fsys, "templates", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(path)
		if !strings.HasSuffix(ext, ".yaml") && !strings.HasSuffix(ext, ".yml") {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("failed to read embedded template %s: %w", path, err)
		}

		var t Template
		if err := yaml.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("failed to parse template %s: %w", path, err)
		}
		if err := t.validate(); err != nil {
			return fmt.Errorf("invalid template %s: %w", path, err)
		}
		if _, dup := c.byID[t.ID]; dup {
			return fmt.Errorf("duplicate template id %q in %s", t.ID, path)
		}

		c.byID[t.ID] = &t
		c.order = append(c.order, t.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(c.order)
	logging.Get(logging.CategoryTools).Debug("loaded %d contract templates", len(c.order))
	return c, nil
}

func (t *Template) validate() error {
	switch {
	case t.ID == "":
		return fmt.Errorf("missing id")
	case t.Title == "":
		return fmt.Errorf("template %s missing title", t.ID)
	case strings.TrimSpace(t.Source) == "":
		return fmt.Errorf("template %s has no source", t.ID)
	}
	return nil
}

// Get returns the template with the given ID, or nil.
func (c *Catalog) Get(id string) *Template {
	return c.byID[id]
}

// List returns all templates sorted by ID.
func (c *Catalog) List() []*Template {
	out := make([]*Template, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// IDs returns the sorted template IDs.
func (c *Catalog) IDs() []string {
	return append([]string(nil), c.order...)
}

// Count returns the number of loaded templates.
func (c *Catalog) Count() int { return len(c.byID) }
