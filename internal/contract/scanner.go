package contract

import (
	"fmt"
	"regexp"
	"strings"

	"compactmcp/internal/logging"
)

// The scanner extracts structure from Compact source without a formal
// grammar. Constructs are located on a masked copy of the source in
// which comment and string interiors are blanked out (lengths and
// newlines preserved), so offsets and line numbers on the mask map
// one-to-one onto the original text. Payload substrings are then
// sliced from the original at the same offsets.

// lineAt returns the 1-based line of a byte offset.
func lineAt(text string, offset int) int {
	if offset > len(text) {
		offset = len(text)
	}
	return 1 + strings.Count(text[:offset], "\n")
}

// maskCommentsAndStrings replaces the interior of // and /* */
// comments and of "..."/'...' literals with spaces. Newlines are kept
// so line numbers survive. Backslash escapes inside strings are
// honored; an unterminated string or comment masks to end of input.
func maskCommentsAndStrings(text string) string {
	out := []byte(text)
	const (
		code = iota
		lineComment
		blockComment
		stringLit
	)
	state := code
	var quote byte

	for i := 0; i < len(out); i++ {
		c := out[i]
		switch state {
		case code:
			switch {
			case c == '/' && i+1 < len(out) && out[i+1] == '/':
				state = lineComment
				out[i] = ' '
			case c == '/' && i+1 < len(out) && out[i+1] == '*':
				state = blockComment
				out[i] = ' '
			case c == '"' || c == '\'':
				state = stringLit
				quote = c
				// The delimiter itself is kept so string-aware
				// consumers still see where literals begin.
			}
		case lineComment:
			if c == '\n' {
				state = code
			} else {
				out[i] = ' '
			}
		case blockComment:
			if c == '*' && i+1 < len(out) && out[i+1] == '/' {
				out[i] = ' '
				out[i+1] = ' '
				i++
				state = code
			} else if c != '\n' {
				out[i] = ' '
			}
		case stringLit:
			if c == '\\' && i+1 < len(out) {
				out[i] = ' '
				if out[i+1] != '\n' {
					out[i+1] = ' '
				}
				i++
			} else if c == quote {
				state = code
			} else if c != '\n' {
				out[i] = ' '
			}
		}
	}
	return string(out)
}

// matchingDelims maps open to close delimiters for balanced scanning.
var matchingDelims = map[byte]byte{'{': '}', '(': ')', '[': ']'}

// balancedBlock scans text from the open delimiter at start and
// returns the interior of the block plus the index one past the
// closing delimiter. The scan tracks nesting of all three bracket
// kinds and skips string literals (with escapes) and both comment
// forms before updating depth.
func balancedBlock(text string, start int) (string, int, error) {
	if start >= len(text) {
		return "", 0, fmt.Errorf("block start %d beyond input", start)
	}
	open := text[start]
	close, ok := matchingDelims[open]
	if !ok {
		return "", 0, fmt.Errorf("no delimiter at offset %d (got %q)", start, open)
	}

	depth := 0
	for i := start; i < len(text); i++ {
		c := text[i]
		switch c {
		case '"', '\'':
			// Skip the literal wholesale.
			j := i + 1
			for j < len(text) {
				if text[j] == '\\' {
					j += 2
					continue
				}
				if text[j] == c {
					break
				}
				j++
			}
			i = j
		case '/':
			if i+1 < len(text) && text[i+1] == '/' {
				j := strings.IndexByte(text[i:], '\n')
				if j < 0 {
					return "", 0, fmt.Errorf("unterminated block starting at offset %d", start)
				}
				i += j
			} else if i+1 < len(text) && text[i+1] == '*' {
				j := strings.Index(text[i+2:], "*/")
				if j < 0 {
					return "", 0, fmt.Errorf("unterminated block starting at offset %d", start)
				}
				i += 2 + j + 1
			}
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start+1 : i], i + 1, nil
			}
		}
	}
	return "", 0, fmt.Errorf("unbalanced %q starting at offset %d", open, start)
}

// splitTopLevel splits raw text on top-level occurrences of any of the
// given separator bytes. Angle brackets, square brackets and
// parentheses all contribute to depth (generics, tuple types and
// function-typed parameters stay whole), and nothing counts while
// inside a quoted string; each unescaped quote toggles string mode and
// depth counters freeze until it closes.
func splitTopLevel(raw string, seps string) []string {
	var parts []string
	var angle, square, paren int
	inString := false
	var quote byte
	start := 0

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if inString {
			if c == '\\' {
				i++
			} else if c == quote {
				inString = false
			}
			continue
		}
		switch c {
		case '"', '\'':
			inString = true
			quote = c
		case '<':
			angle++
		case '>':
			if angle > 0 {
				angle--
			}
		case '[':
			square++
		case ']':
			square--
		case '(':
			paren++
		case ')':
			paren--
		default:
			if angle == 0 && square == 0 && paren == 0 && strings.IndexByte(seps, c) >= 0 {
				parts = append(parts, raw[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, raw[start:])

	out := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// splitParams splits a circuit's raw parameter text into Parameters.
func splitParams(raw string) []Parameter {
	pieces := splitTopLevel(raw, ",")
	params := make([]Parameter, 0, len(pieces))
	for _, piece := range pieces {
		// Only the first top-level colon separates name from type;
		// function types on the right may contain their own colons.
		name, typ := piece, ""
		if idx := topLevelColon(piece); idx >= 0 {
			name = strings.TrimSpace(piece[:idx])
			typ = strings.TrimSpace(piece[idx+1:])
		}
		params = append(params, Parameter{Name: name, Type: typ})
	}
	return params
}

// topLevelColon returns the index of the first colon outside any
// bracket or string, or -1.
func topLevelColon(s string) int {
	var angle, square, paren int
	inString := false
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if c == '\\' {
				i++
			} else if c == quote {
				inString = false
			}
			continue
		}
		switch c {
		case '"', '\'':
			inString = true
			quote = c
		case '<':
			angle++
		case '>':
			if angle > 0 {
				angle--
			}
		case '[':
			square++
		case ']':
			square--
		case '(':
			paren++
		case ')':
			paren--
		case ':':
			if angle == 0 && square == 0 && paren == 0 {
				return i
			}
		}
	}
	return -1
}

var (
	pragmaRe  = regexp.MustCompile(`pragma\s+language_version\s*(?:>=|<=|==|>|<|~)?\s*([0-9][0-9.]*)`)
	importRe  = regexp.MustCompile(`(?m)^\s*import\s+(?:"([^"]+)"|([A-Za-z_]\w*))\s*;`)
	circuitRe = regexp.MustCompile(`(?m)(export\s+)?(pure\s+)?circuit\s+([A-Za-z_]\w*)\s*(?:<[^>]*>\s*)?\(`)
	witnessRe = regexp.MustCompile(`(?m)(export\s+)?witness\s+([A-Za-z_]\w*)\s*(?:\([^)]*\))?\s*:\s*([^;]+);`)
	ledgerRe  = regexp.MustCompile(`(?m)(export\s+)?(sealed\s+)?ledger\s+([A-Za-z_]\w*)\s*:\s*([^;]+);`)
	typeRe    = regexp.MustCompile(`(?m)^\s*type\s+([A-Za-z_]\w*(?:<[^>]*>)?)\s*=\s*([^;]+);`)
	blockRe   = regexp.MustCompile(`(?m)(export\s+)?(struct|enum)\s+([A-Za-z_]\w*)\s*\{`)
)

// extractPragma returns the version literal, or "".
func extractPragma(masked string) string {
	if m := pragmaRe.FindStringSubmatch(masked); m != nil {
		return m[1]
	}
	return ""
}

// extractImports lists import targets in order of appearance.
func extractImports(text, masked string) []string {
	var imports []string
	for _, idx := range importRe.FindAllStringSubmatchIndex(masked, -1) {
		// Quoted form captures group 1, bare identifier group 2.
		if idx[2] >= 0 {
			imports = append(imports, text[idx[2]:idx[3]])
		} else if idx[4] >= 0 {
			imports = append(imports, text[idx[4]:idx[5]])
		}
	}
	return imports
}

// Scan extracts the full structure of one source unit. The scan is
// pure: the same text always produces identical results.
func Scan(unit *SourceUnit) Structure {
	timer := logging.StartTimer(logging.CategoryScanner, "Scan")
	defer timer.Stop()

	text := unit.Text
	masked := maskCommentsAndStrings(text)

	var s Structure
	s.Circuits = scanCircuits(text, masked)
	s.Witnesses = scanWitnesses(text, masked)
	s.LedgerItems = scanLedgers(text, masked)
	s.Types = scanTypeAliases(text, masked)
	s.Structs, s.Enums = scanBlocks(text, masked)

	logging.ScannerDebug("scanned %s: %d circuits, %d witnesses, %d ledger items",
		unit.Filename, len(s.Circuits), len(s.Witnesses), len(s.LedgerItems))
	return s
}

func scanCircuits(text, masked string) []CircuitDecl {
	var decls []CircuitDecl
	for _, idx := range circuitRe.FindAllStringSubmatchIndex(masked, -1) {
		start := idx[0]
		exported := idx[2] >= 0
		pure := idx[4] >= 0
		name := text[idx[6]:idx[7]]
		openParen := idx[1] - 1 // the regex ends at '('

		rawParams, after, err := balancedBlock(text, openParen)
		if err != nil {
			logging.ScannerDebug("skipping circuit %s: %v", name, err)
			continue
		}

		decl := CircuitDecl{
			Name:       name,
			Parameters: splitParams(rawParams),
			IsExported: exported,
			IsPure:     pure,
			Line:       lineAt(text, start),
		}

		// Optional return type between ')' and the body/terminator.
		rest := masked[after:]
		if m := regexp.MustCompile(`^\s*:\s*`).FindStringIndex(rest); m != nil {
			typeStart := after + m[1]
			typeEnd := typeStart
			for typeEnd < len(masked) {
				c := masked[typeEnd]
				if c == '{' || c == ';' {
					break
				}
				typeEnd++
			}
			decl.ReturnType = strings.TrimSpace(text[typeStart:typeEnd])
		}
		decls = append(decls, decl)
	}
	return decls
}

func scanWitnesses(text, masked string) []WitnessDecl {
	var decls []WitnessDecl
	for _, idx := range witnessRe.FindAllStringSubmatchIndex(masked, -1) {
		decls = append(decls, WitnessDecl{
			Name:       text[idx[4]:idx[5]],
			Type:       strings.TrimSpace(text[idx[6]:idx[7]]),
			IsExported: idx[2] >= 0,
			Line:       lineAt(text, idx[0]),
		})
	}
	return decls
}

func scanLedgers(text, masked string) []LedgerDecl {
	var decls []LedgerDecl
	for _, idx := range ledgerRe.FindAllStringSubmatchIndex(masked, -1) {
		decls = append(decls, LedgerDecl{
			Name:       text[idx[6]:idx[7]],
			Type:       strings.TrimSpace(text[idx[8]:idx[9]]),
			IsExported: idx[2] >= 0,
			IsSealed:   idx[4] >= 0,
			Line:       lineAt(text, idx[0]),
		})
	}
	return decls
}

func scanTypeAliases(text, masked string) []TypeAliasDecl {
	var decls []TypeAliasDecl
	for _, idx := range typeRe.FindAllStringSubmatchIndex(masked, -1) {
		decls = append(decls, TypeAliasDecl{
			Name:       text[idx[2]:idx[3]],
			Definition: strings.TrimSpace(text[idx[4]:idx[5]]),
			Line:       lineAt(text, idx[0]),
		})
	}
	return decls
}

func scanBlocks(text, masked string) ([]StructDecl, []EnumDecl) {
	var structs []StructDecl
	var enums []EnumDecl
	for _, idx := range blockRe.FindAllStringSubmatchIndex(masked, -1) {
		kind := masked[idx[4]:idx[5]]
		name := text[idx[6]:idx[7]]
		openBrace := idx[1] - 1

		body, _, err := balancedBlock(text, openBrace)
		if err != nil {
			logging.ScannerDebug("skipping %s %s: %v", kind, name, err)
			continue
		}

		exported := idx[2] >= 0
		line := lineAt(text, idx[0])
		switch kind {
		case "struct":
			structs = append(structs, StructDecl{
				Name:       name,
				Fields:     splitTopLevel(body, ",;"),
				IsExported: exported,
				Line:       line,
			})
		case "enum":
			enums = append(enums, EnumDecl{
				Name:       name,
				Variants:   splitTopLevel(body, ",;"),
				IsExported: exported,
				Line:       line,
			})
		}
	}
	return structs, enums
}

// deriveExports collects the exported name lists.
func deriveExports(s Structure) Exports {
	var e Exports
	for _, c := range s.Circuits {
		if c.IsExported {
			e.Circuits = append(e.Circuits, c.Name)
		}
	}
	for _, w := range s.Witnesses {
		if w.IsExported {
			e.Witnesses = append(e.Witnesses, w.Name)
		}
	}
	for _, l := range s.LedgerItems {
		if l.IsExported {
			e.LedgerItems = append(e.LedgerItems, l.Name)
		}
	}
	for _, st := range s.Structs {
		if st.IsExported {
			e.Structs = append(e.Structs, st.Name)
		}
	}
	for _, en := range s.Enums {
		if en.IsExported {
			e.Enums = append(e.Enums, en.Name)
		}
	}
	return e
}

// deriveStats counts declarations per kind.
func deriveStats(s Structure) Stats {
	return Stats{
		Circuits:    len(s.Circuits),
		Witnesses:   len(s.Witnesses),
		LedgerItems: len(s.LedgerItems),
		Types:       len(s.Types),
		Structs:     len(s.Structs),
		Enums:       len(s.Enums),
	}
}

// summarize renders a short human summary of the structure.
func summarize(st Stats) string {
	var parts []string
	add := func(n int, singular, plural string) {
		if n == 1 {
			parts = append(parts, "1 "+singular)
		} else if n > 1 {
			parts = append(parts, fmt.Sprintf("%d %s", n, plural))
		}
	}
	add(st.Circuits, "circuit", "circuits")
	add(st.Witnesses, "witness", "witnesses")
	add(st.LedgerItems, "ledger item", "ledger items")
	add(st.Types, "type alias", "type aliases")
	add(st.Structs, "struct", "structs")
	add(st.Enums, "enum", "enums")
	if len(parts) == 0 {
		return "Empty contract"
	}
	return "Contract with " + strings.Join(parts, ", ")
}
