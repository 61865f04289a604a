package contract

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestResolveInputExactlyOneSource(t *testing.T) {
	tests := []struct {
		name string
		in   Input
	}{
		{"both", Input{Code: "pragma language_version >= 0.16;", FilePath: "/tmp/a.compact"}},
		{"neither", Input{}},
		{"whitespace only code", Input{Code: "   \n\t"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, gerr := resolveInput(tt.in)
			if gerr == nil {
				t.Fatal("expected guard error")
			}
			if gerr.errType != ErrorUser {
				t.Errorf("errType = %s, want %s", gerr.errType, ErrorUser)
			}
		})
	}
}

func TestResolveInputDefaultFilename(t *testing.T) {
	unit, gerr := resolveInput(Input{Code: "pragma language_version >= 0.16;"})
	if gerr != nil {
		t.Fatalf("unexpected guard error: %v", gerr)
	}
	if unit.Filename != "contract.compact" {
		t.Errorf("filename = %q, want contract.compact", unit.Filename)
	}
	if unit.FromFile() {
		t.Error("inline unit must not report FromFile")
	}
}

func TestResolveInputSizeCeiling(t *testing.T) {
	big := "// " + strings.Repeat("x", MaxInlineBytes)
	_, gerr := resolveInput(Input{Code: big})
	if gerr == nil || gerr.errType != ErrorUser {
		t.Fatalf("oversized inline code should be a user error, got %+v", gerr)
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want ErrorType
	}{
		{"traversal", "/home/user/../etc/a.compact", ErrorSecurity},
		{"relative", "contracts/a.compact", ErrorUser},
		{"wrong extension", "/home/user/a.txt", ErrorSecurity},
		{"etc", "/etc/a.compact", ErrorSecurity},
		{"var", "/var/lib/a.compact", ErrorSecurity},
		{"usr", "/usr/share/a.compact", ErrorSecurity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if runtime.GOOS == "windows" && strings.HasPrefix(tt.path, "/") {
				t.Skip("unix path shapes")
			}
			gerr := validatePath(tt.path)
			if gerr == nil {
				t.Fatal("expected rejection")
			}
			if gerr.errType != tt.want {
				t.Errorf("errType = %s, want %s", gerr.errType, tt.want)
			}
		})
	}
}

func TestValidatePathAccepted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.compact")
	if gerr := validatePath(path); gerr != nil {
		t.Errorf("clean absolute path rejected: %v", gerr)
	}
}

func TestResolveFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.compact")
	src := "pragma language_version >= 0.16;\n"
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}

	unit, gerr := resolveInput(Input{FilePath: path})
	if gerr != nil {
		t.Fatalf("unexpected guard error: %v", gerr)
	}
	if unit.Text != src || unit.Filename != "token.compact" || unit.OriginDir != dir {
		t.Errorf("unexpected unit: %+v", unit)
	}
	if !unit.FromFile() {
		t.Error("file-backed unit must report FromFile")
	}
}

func TestResolveFromPathMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ghost.compact")
	_, gerr := resolveInput(Input{FilePath: path})
	if gerr == nil || gerr.errType != ErrorUser {
		t.Fatalf("missing file should be a user error, got %+v", gerr)
	}
}

func TestCheckBinaryContent(t *testing.T) {
	if gerr := checkBinaryContent("circuit f(): [] {}\x00"); gerr == nil || gerr.errType != ErrorUser {
		t.Errorf("NUL byte should be rejected as user error, got %+v", gerr)
	}

	// 2 control bytes in a 100-byte payload crosses the 1% line.
	noisy := strings.Repeat("a", 98) + "\x01\x02"
	if gerr := checkBinaryContent(noisy); gerr == nil || gerr.errType != ErrorUser {
		t.Errorf("control-heavy content should be rejected, got %+v", gerr)
	}

	clean := "pragma language_version >= 0.16;\r\n\tcircuit f(): [] {}\n"
	if gerr := checkBinaryContent(clean); gerr != nil {
		t.Errorf("tabs and CRLF are fine: %v", gerr)
	}
}

func TestCheckIncludesInlineFailsFast(t *testing.T) {
	unit := unitOf(`pragma language_version >= 0.16;
include "./lib.compact";
`)
	_, gerr := checkIncludes(unit)
	if gerr == nil || gerr.errType != ErrorUser {
		t.Fatalf("inline local include should fail fast, got %+v", gerr)
	}
}

func TestCheckIncludesFileBackedWarnsOnly(t *testing.T) {
	unit := &SourceUnit{
		Text:      "include \"./lib.compact\";\n",
		Filename:  "main.compact",
		OriginDir: "/home/user/project",
	}
	warnings, gerr := checkIncludes(unit)
	if gerr != nil {
		t.Fatalf("file-backed include should not fail: %v", gerr)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "/home/user/project") {
		t.Errorf("unexpected warnings: %v", warnings)
	}
}

func TestCheckIncludesStdlibIgnored(t *testing.T) {
	unit := unitOf("include \"std\";\ninclude \"CompactStandardLibrary\";\n")
	warnings, gerr := checkIncludes(unit)
	if gerr != nil || warnings != nil {
		t.Errorf("stdlib includes need no local resolution: warnings=%v err=%v", warnings, gerr)
	}
}

func TestPrecheckMissingPragma(t *testing.T) {
	gerr := precheck(unitOf("circuit f(): [] {}\n"))
	if gerr == nil || gerr.errType != ErrorUser {
		t.Fatalf("missing pragma should be caught before compiling, got %+v", gerr)
	}
	if !strings.Contains(gerr.message, "pragma") {
		t.Errorf("message should mention the pragma: %q", gerr.message)
	}
}

func TestPrecheckStdlibTypeWithoutImport(t *testing.T) {
	src := `pragma language_version >= 0.16;
export ledger round: Counter;
`
	gerr := precheck(unitOf(src))
	if gerr == nil || gerr.errType != ErrorUser {
		t.Fatalf("Counter without import should be caught, got %+v", gerr)
	}
	if !strings.Contains(gerr.message, "Counter") {
		t.Errorf("message should name the type: %q", gerr.message)
	}

	withImport := `pragma language_version >= 0.16;
import CompactStandardLibrary;
export ledger round: Counter;
`
	if gerr := precheck(unitOf(withImport)); gerr != nil {
		t.Errorf("imported stdlib should pass precheck: %v", gerr)
	}
}

func TestPrecheckStdlibTypeInCommentIgnored(t *testing.T) {
	src := `pragma language_version >= 0.16;
// a Counter lives here eventually
circuit f(): [] {}
`
	if gerr := precheck(unitOf(src)); gerr != nil {
		t.Errorf("stdlib names in comments must not trip the precheck: %v", gerr)
	}
}
