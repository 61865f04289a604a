package contract

import (
	"strings"
	"testing"
)

func TestParseDiagnosticsFileLineCol(t *testing.T) {
	source := "pragma language_version >= 0.16;\ncircuit f(): [] {\n  bad;\n}\n"
	raw := "token.compact:3:3: error: unexpected token `bad`"

	diags := ParseDiagnostics(raw, source)
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic, got %+v", diags)
	}
	d := diags[0]
	if d.Line != 3 || d.Column != 3 {
		t.Errorf("position = %d:%d, want 3:3", d.Line, d.Column)
	}
	if d.Severity != SeverityError {
		t.Errorf("severity = %s, want error", d.Severity)
	}
	if !strings.Contains(d.SourceContext, ">    3 |   bad;") {
		t.Errorf("context missing marked line:\n%s", d.SourceContext)
	}
}

func TestParseDiagnosticsPositionForms(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantLine int
		wantCol  int
	}{
		{"file:line:col", "a.compact:7:12: error: nope", 7, 12},
		{"at line N", "error: nope at line 7", 7, 0},
		{"at line with column", "error: nope at line 7, column 12", 7, 12},
		{"line N only", "error: nope on line 7", 7, 0},
		{"no position", "error: nope", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, col := extractPosition(tt.raw)
			if line != tt.wantLine || col != tt.wantCol {
				t.Errorf("got %d:%d, want %d:%d", line, col, tt.wantLine, tt.wantCol)
			}
		})
	}
}

func TestParseDiagnosticsMultipleErrors(t *testing.T) {
	raw := `Compiling token.compact
error: unexpected token at line 3
error: undefined name foo at line 9`

	diags := ParseDiagnostics(raw, "")
	if len(diags) != 2 {
		t.Fatalf("expected 2 diagnostics, got %+v", diags)
	}
	if diags[0].Line != 3 || diags[1].Line != 9 {
		t.Errorf("lines = %d, %d; want 3, 9", diags[0].Line, diags[1].Line)
	}
}

func TestParseDiagnosticsFallback(t *testing.T) {
	diags := ParseDiagnostics("something went completely sideways", "")
	if len(diags) != 1 {
		t.Fatalf("expected one fallback diagnostic, got %+v", diags)
	}
	if diags[0].Message == "" || diags[0].Line != 0 {
		t.Errorf("unexpected fallback: %+v", diags[0])
	}
}

func TestParseDiagnosticsEmpty(t *testing.T) {
	if diags := ParseDiagnostics("   \n", ""); diags != nil {
		t.Errorf("blank output should yield no diagnostics, got %+v", diags)
	}
}

func TestSourceContextEdges(t *testing.T) {
	source := "one\ntwo\nthree"

	first := sourceContext(source, 1)
	if strings.Count(first, "\n") != 1 || !strings.HasPrefix(first, ">    1 | one") {
		t.Errorf("unexpected context for first line:\n%s", first)
	}

	if got := sourceContext(source, 99); got != "" {
		t.Errorf("out-of-range line should give empty context, got %q", got)
	}
}

func TestCategorizePriorityOrder(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want ErrorCategory
	}{
		{"import beats reference", "error: import not found, name undefined", CategoryImport},
		{"reference beats syntax", "error: undefined name, unexpected usage", CategoryReference},
		{"type mismatch", "error: type mismatch between Uint<8> and Uint<64>", CategoryType},
		{"syntax", "error: unexpected token `}`", CategorySyntax},
		{"structure", "error: sealed ledger written outside constructor", CategoryStructure},
		{"unknown", "error: internal invariant failure 0x7f", CategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, info := Categorize(tt.raw)
			if cat != tt.want {
				t.Errorf("category = %s, want %s", cat, tt.want)
			}
			if info.explanation == "" || info.remediation == "" {
				t.Errorf("category %s has no prose", cat)
			}
		})
	}
}

func TestDeriveSuggestions(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantHint string
	}{
		{"expected/found", "error: expected `;`, found `}`", "expected"},
		{"pragma", "error: pragma language_version not satisfied", "pragma"},
		{"undefined", "error: undefined name `foo`", "declared"},
		{"disclose", "error: witness value used without disclose", "disclose()"},
		{"sealed", "error: sealed ledger field assigned in circuit", "constructor"},
		{"circuit return", "error: circuit `f` missing return type", "return type"},
		{"type mismatch", "error: type mismatch in argument 1", "widths"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveSuggestions(tt.raw)
			if len(got) == 0 {
				t.Fatal("expected at least one suggestion")
			}
			joined := strings.ToLower(strings.Join(got, " "))
			if !strings.Contains(joined, strings.ToLower(tt.wantHint)) {
				t.Errorf("suggestions %v do not mention %q", got, tt.wantHint)
			}
		})
	}

	if got := DeriveSuggestions("error: exotic failure"); len(got) != 0 {
		t.Errorf("unmatched output should yield no suggestions, got %v", got)
	}
}
