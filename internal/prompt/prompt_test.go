package prompt

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestLoadEmbeddedCatalog(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if c.Count() == 0 {
		t.Fatal("embedded catalog is empty")
	}

	for _, want := range []string{"counter", "sealed_ownership", "witness_commitment", "token_registry"} {
		tpl := c.Get(want)
		if tpl == nil {
			t.Errorf("template %q missing", want)
			continue
		}
		if !strings.Contains(tpl.Source, "pragma language_version") {
			t.Errorf("template %q source has no language pragma", want)
		}
		if tpl.Title == "" || tpl.Description == "" {
			t.Errorf("template %q missing title or description", want)
		}
	}

	if c.Get("no_such_template") != nil {
		t.Error("unknown id should return nil")
	}
}

func TestListSortedByID(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	list := c.List()
	for i := 1; i < len(list); i++ {
		if list[i-1].ID >= list[i].ID {
			t.Fatalf("list not sorted: %s before %s", list[i-1].ID, list[i].ID)
		}
	}
	if len(c.IDs()) != len(list) {
		t.Error("IDs and List disagree on length")
	}
}

func TestLoadRejectsInvalidTemplates(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing id", "title: T\nsource: |\n  x\n"},
		{"missing title", "id: t\nsource: |\n  x\n"},
		{"empty source", "id: t\ntitle: T\nsource: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := fstest.MapFS{
				"templates/bad.yaml": {Data: []byte(tt.body)},
			}
			if _, err := loadFrom(fsys); err == nil {
				t.Error("expected load error")
			}
		})
	}
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	fsys := fstest.MapFS{
		"templates/a.yaml": {Data: []byte("id: t\ntitle: A\nsource: |\n  x\n")},
		"templates/b.yaml": {Data: []byte("id: t\ntitle: B\nsource: |\n  y\n")},
	}
	if _, err := loadFrom(fsys); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("expected duplicate id error, got %v", err)
	}
}
