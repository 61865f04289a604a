package contract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// The diagnostic parser turns raw compiler output into structured,
// line-addressed diagnostics; the categorizer independently classifies
// the whole output into one coarse category used as the top-level
// summary alongside the itemized list.

var (
	errorSplitRe  = regexp.MustCompile(`(?i)\berror:\s*`)
	lineColRe     = regexp.MustCompile(`([^\s:]+):(\d+):(\d+)`)
	atLineRe      = regexp.MustCompile(`(?i)\bat line (\d+)(?:[,:]?\s*col(?:umn)? (\d+))?`)
	lineOnlyRe    = regexp.MustCompile(`(?i)\bline (\d+)(?:[,:]?\s*col(?:umn)? (\d+))?`)
	expectedRe    = regexp.MustCompile(`(?i)expected\s+(.+?),?\s+(?:but\s+)?found\s+(.+?)(?:[.\n]|$)`)
	warningLineRe = regexp.MustCompile(`(?i)^\s*warning[:\s]`)
)

// ParseDiagnostics segments raw compiler output on error markers and
// extracts one structured diagnostic per marker. Each segment reaches
// back to the start of the marker's line, so a `file:line:col:` prefix
// stays attached to its message. When a line number is known, a little
// surrounding source is attached as context.
func ParseDiagnostics(raw, source string) []CompilerDiagnostic {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	locs := errorSplitRe.FindAllStringIndex(trimmed, -1)
	if len(locs) == 0 {
		return []CompilerDiagnostic{{
			Severity: SeverityError,
			Message:  firstLine(trimmed),
		}}
	}

	var diags []CompilerDiagnostic
	for i, loc := range locs {
		start := strings.LastIndexByte(trimmed[:loc[0]], '\n') + 1
		if i > 0 && start < locs[i-1][1] {
			start = locs[i-1][1]
		}
		end := len(trimmed)
		if i+1 < len(locs) {
			next := strings.LastIndexByte(trimmed[:locs[i+1][0]], '\n') + 1
			if next > loc[1] {
				end = next
			} else {
				end = locs[i+1][0]
			}
		}
		seg := strings.TrimSpace(trimmed[start:end])
		if seg == "" {
			continue
		}

		d := CompilerDiagnostic{Severity: SeverityError}
		if warningLineRe.MatchString(seg) {
			d.Severity = SeverityWarning
		}
		d.Line, d.Column = extractPosition(seg)
		d.Message = firstLine(strings.TrimSpace(trimmed[loc[1]:end]))
		if d.Message == "" {
			d.Message = firstLine(seg)
		}
		if d.Line > 0 {
			d.SourceContext = sourceContext(source, d.Line)
		}
		diags = append(diags, d)
	}

	if len(diags) == 0 {
		diags = append(diags, CompilerDiagnostic{
			Severity: SeverityError,
			Message:  firstLine(trimmed),
		})
	}
	return diags
}

// extractPosition supports `file:line:col`, `at line N`, and `line N`
// forms, in that order of specificity.
func extractPosition(seg string) (line, col int) {
	if m := lineColRe.FindStringSubmatch(seg); m != nil {
		line, _ = strconv.Atoi(m[2])
		col, _ = strconv.Atoi(m[3])
		return line, col
	}
	if m := atLineRe.FindStringSubmatch(seg); m != nil {
		line, _ = strconv.Atoi(m[1])
		if m[2] != "" {
			col, _ = strconv.Atoi(m[2])
		}
		return line, col
	}
	if m := lineOnlyRe.FindStringSubmatch(seg); m != nil {
		line, _ = strconv.Atoi(m[1])
		if m[2] != "" {
			col, _ = strconv.Atoi(m[2])
		}
		return line, col
	}
	return 0, 0
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

// sourceContext returns the offending line with one line on each side.
func sourceContext(source string, line int) string {
	lines := strings.Split(source, "\n")
	if line < 1 || line > len(lines) {
		return ""
	}
	start := line - 2
	if start < 0 {
		start = 0
	}
	end := line + 1
	if end > len(lines) {
		end = len(lines)
	}

	var b strings.Builder
	for i := start; i < end; i++ {
		marker := "  "
		if i+1 == line {
			marker = "> "
		}
		fmt.Fprintf(&b, "%s%4d | %s\n", marker, i+1, lines[i])
	}
	return strings.TrimRight(b.String(), "\n")
}

// DeriveSuggestions produces targeted fix hints from literal substring
// heuristics over the raw output. These are curated from historical
// Compact failure modes, not derived from any grammar.
func DeriveSuggestions(raw string) []string {
	lower := strings.ToLower(raw)
	var suggestions []string

	if m := expectedRe.FindStringSubmatch(raw); m != nil {
		suggestions = append(suggestions,
			fmt.Sprintf("The compiler expected %s but found %s; check the syntax at the reported position.",
				strings.TrimSpace(m[1]), strings.TrimSpace(m[2])))
	}
	if strings.Contains(lower, "pragma") {
		suggestions = append(suggestions,
			"Check the pragma directive; it must match the installed compiler, e.g. `pragma language_version >= 0.16;`.")
	}
	if strings.Contains(lower, "undefined") || strings.Contains(lower, "not defined") || strings.Contains(lower, "undeclared") {
		suggestions = append(suggestions,
			"A name is used before it is declared; check spelling and declaration order, and confirm the standard library import.")
	}
	if strings.Contains(lower, "disclose") {
		suggestions = append(suggestions,
			"Witness-derived values must pass through disclose() before they can appear in public state or branches.")
	}
	if strings.Contains(lower, "sealed") {
		suggestions = append(suggestions,
			"Sealed ledger state can only be written from the constructor.")
	}
	if strings.Contains(lower, "circuit") && strings.Contains(lower, "return") {
		suggestions = append(suggestions,
			"Every circuit must declare a return type; use `[]` for circuits returning nothing.")
	}
	if strings.Contains(lower, "type") && strings.Contains(lower, "mismatch") {
		suggestions = append(suggestions,
			"Check operand widths; Uint arguments must fit the declared bit width, and mixed-width arithmetic needs explicit casts.")
	}
	return suggestions
}

// categoryInfo fixes the human explanation and remediation per
// category.
type categoryInfo struct {
	explanation string
	remediation string
}

var categoryDetails = map[ErrorCategory]categoryInfo{
	CategorySyntax: {
		explanation: "The source does not parse: a token appears where the grammar does not allow it.",
		remediation: "Fix the syntax at the reported position; check for missing semicolons, braces or parentheses.",
	},
	CategoryType: {
		explanation: "The contract parses but uses a value where its type does not fit.",
		remediation: "Align the declared and used types; widen Uint types or add explicit casts where needed.",
	},
	CategoryReference: {
		explanation: "A name is referenced that is not in scope.",
		remediation: "Declare the name before use, fix its spelling, or import the module that provides it.",
	},
	CategoryImport: {
		explanation: "An import or include could not be resolved.",
		remediation: "Check the import name and, for local includes, compile from the contract's own directory.",
	},
	CategoryStructure: {
		explanation: "The contract violates a structural rule of Compact (ledger, circuit or constructor placement).",
		remediation: "Review the declaration layout: ledger at top level, sealed state initialized in the constructor, circuits with explicit return types.",
	},
	CategoryUnknown: {
		explanation: "The compiler reported an error that does not match a known pattern.",
		remediation: "Read the raw compiler output below; if it looks like a toolchain fault, re-run with a current compiler version.",
	},
}

// Categorize classifies whole raw output into one coarse category.
// Order matters: more specific signals are checked before generic
// ones.
func Categorize(raw string) (ErrorCategory, categoryInfo) {
	lower := strings.ToLower(raw)

	var cat ErrorCategory
	switch {
	case strings.Contains(lower, "import") || strings.Contains(lower, "include") ||
		strings.Contains(lower, "module not found"):
		cat = CategoryImport
	case strings.Contains(lower, "undefined") || strings.Contains(lower, "undeclared") ||
		strings.Contains(lower, "not defined") || strings.Contains(lower, "unknown identifier"):
		cat = CategoryReference
	case strings.Contains(lower, "type mismatch") || strings.Contains(lower, "expected type") ||
		strings.Contains(lower, "cannot convert") || strings.Contains(lower, "incompatible type"):
		cat = CategoryType
	case strings.Contains(lower, "expected") || strings.Contains(lower, "unexpected") ||
		strings.Contains(lower, "parse error") || strings.Contains(lower, "syntax"):
		cat = CategorySyntax
	case strings.Contains(lower, "ledger") || strings.Contains(lower, "sealed") ||
		strings.Contains(lower, "constructor") || strings.Contains(lower, "circuit"):
		cat = CategoryStructure
	default:
		cat = CategoryUnknown
	}
	return cat, categoryDetails[cat]
}
