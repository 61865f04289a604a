package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"compactmcp/internal/logging"
)

// FileExtension is the Compact source file extension.
const FileExtension = ".compact"

// MaxInlineBytes is the ceiling for inline source size.
const MaxInlineBytes = 1 << 20 // 1 MiB

// Input is the JSON-shaped argument accepted by both operations.
// Exactly one of Code/FilePath must be meaningfully present.
type Input struct {
	Code     string `json:"code,omitempty"`
	FilePath string `json:"filePath,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// SourceUnit is the resolved, immutable source for one request.
// OriginDir is empty for inline code and holds the parent directory
// when the source came from a file path.
type SourceUnit struct {
	Text      string
	Filename  string
	OriginDir string
}

// FromFile reports whether the unit was read from a file path.
func (u *SourceUnit) FromFile() bool { return u.OriginDir != "" }

// unixDenyPrefixes are directories no user contract should live in.
var unixDenyPrefixes = []string{"/etc", "/var", "/usr", "/bin", "/sbin", "/root"}

// windowsDenyPrefixes mirror the Unix list for Windows systems.
var windowsDenyPrefixes = []string{
	`c:\windows`, `c:\program files`, `c:\system32`, `c:\programdata`,
}

// stdlibIncludes are the include names resolvable without a local
// directory context.
var stdlibIncludes = map[string]bool{
	"std":                    true,
	"CompactStandardLibrary": true,
}

// stdlibTypes are standard-library types that require an import of the
// standard library before use.
var stdlibTypes = []string{
	"Counter", "Cell", "Map", "Set", "List",
	"MerkleTree", "HistoricMerkleTree", "Maybe", "Either", "CurvePoint",
}

var includeRe = regexp.MustCompile(`(?m)^\s*include\s+"([^"]+)"\s*;`)

// guardError pairs the taxonomy type with a user-facing explanation.
type guardError struct {
	errType  ErrorType
	message  string
	problem  string
	solution string
}

func (e *guardError) Error() string { return e.message }

// resolveInput validates the request shape and produces a SourceUnit.
// It never touches the filesystem until the path itself has passed
// validation.
func resolveInput(in Input) (*SourceUnit, *guardError) {
	hasCode := strings.TrimSpace(in.Code) != ""
	hasPath := strings.TrimSpace(in.FilePath) != ""

	switch {
	case hasCode && hasPath:
		return nil, &guardError{
			errType:  ErrorUser,
			message:  "provide either code or filePath, not both",
			problem:  "Both inline code and a file path were supplied.",
			solution: "Send exactly one of `code` or `filePath`.",
		}
	case !hasCode && !hasPath:
		return nil, &guardError{
			errType:  ErrorUser,
			message:  "no contract source provided",
			problem:  "Neither inline code nor a file path was supplied.",
			solution: "Send Compact source in `code`, or an absolute path to a " + FileExtension + " file in `filePath`.",
		}
	}

	if hasPath {
		return resolveFromPath(in.FilePath)
	}

	if len(in.Code) > MaxInlineBytes {
		return nil, &guardError{
			errType:  ErrorUser,
			message:  fmt.Sprintf("inline code exceeds the %d byte limit", MaxInlineBytes),
			problem:  fmt.Sprintf("The submitted source is %d bytes; the inline limit is %d.", len(in.Code), MaxInlineBytes),
			solution: "Validate the contract from a file path instead of inline code.",
		}
	}
	if gerr := checkBinaryContent(in.Code); gerr != nil {
		return nil, gerr
	}

	filename := in.Filename
	if filename == "" {
		filename = "contract" + FileExtension
	}
	return &SourceUnit{Text: in.Code, Filename: filename}, nil
}

// resolveFromPath validates the path, then reads the file.
func resolveFromPath(path string) (*SourceUnit, *guardError) {
	if gerr := validatePath(path); gerr != nil {
		return nil, gerr
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &guardError{
				errType:  ErrorUser,
				message:  fmt.Sprintf("file not found: %s", path),
				problem:  "The contract file does not exist at the given path.",
				solution: "Check the path and try again.",
			}
		}
		return nil, &guardError{
			errType:  ErrorSystem,
			message:  fmt.Sprintf("failed to read %s: %v", path, err),
			problem:  "The contract file could not be read.",
			solution: "Check file permissions and disk health.",
		}
	}

	text := string(data)
	if gerr := checkBinaryContent(text); gerr != nil {
		return nil, gerr
	}

	logging.ScannerDebug("resolved source from path %s (%d bytes)", path, len(data))
	return &SourceUnit{
		Text:      text,
		Filename:  filepath.Base(path),
		OriginDir: filepath.Dir(path),
	}, nil
}

// validatePath enforces the path policy: absolute, no traversal,
// Compact extension, outside system directories. Violations are
// security errors and are never silently corrected.
func validatePath(path string) *guardError {
	if strings.Contains(path, "..") {
		return &guardError{
			errType:  ErrorSecurity,
			message:  "path contains a traversal sequence",
			problem:  "The file path contains `..`, which could escape the intended directory.",
			solution: "Use a plain absolute path without `..` segments.",
		}
	}
	if !filepath.IsAbs(path) {
		return &guardError{
			errType:  ErrorUser,
			message:  "path must be absolute",
			problem:  "A relative path cannot be resolved safely by the server.",
			solution: "Provide the full absolute path to the contract file.",
		}
	}
	if !strings.HasSuffix(strings.ToLower(path), FileExtension) {
		return &guardError{
			errType:  ErrorSecurity,
			message:  fmt.Sprintf("path must end in %s", FileExtension),
			problem:  "Only Compact source files may be submitted for validation.",
			solution: fmt.Sprintf("Point `filePath` at a %s file.", FileExtension),
		}
	}
	if inDeniedDirectory(path) {
		return &guardError{
			errType:  ErrorSecurity,
			message:  "path resolves under a restricted system directory",
			problem:  "Contracts inside operating system directories are not accepted.",
			solution: "Move the contract into a user project directory.",
		}
	}
	return nil
}

// inDeniedDirectory checks the platform deny list.
func inDeniedDirectory(path string) bool {
	if runtime.GOOS == "windows" {
		lower := strings.ToLower(filepath.ToSlash(path))
		for _, prefix := range windowsDenyPrefixes {
			p := strings.ToLower(filepath.ToSlash(prefix))
			if strings.HasPrefix(lower, p) {
				return true
			}
		}
		return false
	}
	clean := filepath.Clean(path)
	for _, prefix := range unixDenyPrefixes {
		if clean == prefix || strings.HasPrefix(clean, prefix+"/") {
			return true
		}
	}
	return false
}

// checkBinaryContent rejects NUL bytes and content where control
// characters exceed 1% of length.
func checkBinaryContent(text string) *guardError {
	if text == "" {
		return nil
	}
	control := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == 0 {
			return &guardError{
				errType:  ErrorUser,
				message:  "source contains NUL bytes",
				problem:  "The submitted content looks like a binary file, not Compact source.",
				solution: "Submit the textual .compact source, not a compiled artifact.",
			}
		}
		if c < 0x20 && c != '\n' && c != '\r' && c != '\t' {
			control++
		}
	}
	if control*100 > len(text) {
		return &guardError{
			errType:  ErrorUser,
			message:  "source contains excessive non-printable characters",
			problem:  "More than 1% of the content is non-printable control characters.",
			solution: "Check the file encoding; submit plain UTF-8 Compact source.",
		}
	}
	return nil
}

// localIncludes returns the include targets that cannot be resolved
// from the standard library alone.
func localIncludes(text string) []string {
	var local []string
	for _, m := range includeRe.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if stdlibIncludes[name] {
			continue
		}
		if strings.HasSuffix(name, FileExtension) ||
			strings.HasPrefix(name, "./") || strings.HasPrefix(name, "../") {
			local = append(local, name)
		}
	}
	return local
}

// checkIncludes applies the include policy. Inline code with local
// includes fails fast (relative resolution is impossible without a
// directory); file-backed sources only get a warning, because the
// compiler later runs with the file's own directory as working
// directory and resolves them exactly as the user's toolchain would.
func checkIncludes(unit *SourceUnit) ([]string, *guardError) {
	local := localIncludes(unit.Text)
	if len(local) == 0 {
		return nil, nil
	}
	if !unit.FromFile() {
		return nil, &guardError{
			errType: ErrorUser,
			message: fmt.Sprintf("inline code has unresolvable local includes: %s", strings.Join(local, ", ")),
			problem: "The contract includes local files, but inline code has no directory to resolve them against.",
			solution: "Validate the contract via `filePath` so relative includes resolve, " +
				"or inline the included definitions.",
		}
	}
	warnings := make([]string, 0, len(local))
	for _, inc := range local {
		warnings = append(warnings, fmt.Sprintf("local include %q will be resolved relative to %s", inc, unit.OriginDir))
	}
	return warnings, nil
}

var pragmaPresentRe = regexp.MustCompile(`(?m)^\s*pragma\s+language_version`)
var importPresentRe = regexp.MustCompile(`(?m)^\s*(?:import|include)\b`)

// precheck runs the cheap source checks that avoid a wasted compiler
// invocation: missing pragma, and stdlib types used without an import.
func precheck(unit *SourceUnit) *guardError {
	masked := maskCommentsAndStrings(unit.Text)

	if !pragmaPresentRe.MatchString(masked) {
		return &guardError{
			errType: ErrorUser,
			message: "missing language version pragma",
			problem: "The contract does not declare a `pragma language_version` directive.",
			solution: "Add a pragma as the first line, for example:\n" +
				"  pragma language_version >= 0.16;",
		}
	}

	if !importPresentRe.MatchString(masked) {
		for _, typ := range stdlibTypes {
			re := regexp.MustCompile(`\b` + typ + `\b`)
			if loc := re.FindStringIndex(masked); loc != nil {
				return &guardError{
					errType: ErrorUser,
					message: fmt.Sprintf("standard library type %s used without import (line %d)", typ, lineAt(unit.Text, loc[0])),
					problem: fmt.Sprintf("`%s` comes from the Compact standard library, which is never imported.", typ),
					solution: "Import the standard library before using its types:\n" +
						"  import CompactStandardLibrary;",
				}
			}
		}
	}
	return nil
}
