package contract

import (
	"fmt"
	"regexp"
	"strings"

	"compactmcp/internal/logging"
)

// The issue detector flags source patterns that scan cleanly but are
// known to fail or misbehave in the compiler or the proving backend.
// Every rule works on the masked source (comment and string interiors
// blanked), so nothing fires on commented-out or quoted code, and all
// name matching is word-bounded.

// stdlibCircuits are standard-library circuit names a user circuit
// must not shadow once the standard library is imported.
var stdlibCircuits = map[string]bool{
	"assert":             true,
	"disclose":           true,
	"persistentHash":     true,
	"persistentCommit":   true,
	"transientHash":      true,
	"transientCommit":    true,
	"degradeToTransient": true,
	"upgradeFromTransient": true,
	"ownPublicKey":       true,
	"send":               true,
	"receive":            true,
	"mint":               true,
	"burnAddress":        true,
	"pad":                true,
}

// body is a brace-delimited region located on the masked source.
type body struct {
	name      string
	exported  bool
	paramsRaw string
	start     int // offset of the '{'
	inner     string
}

var constructorRe = regexp.MustCompile(`(?m)\bconstructor\s*\(`)

// scanBodies locates circuit and constructor bodies on the masked
// text. Bodies that fail balanced scanning are skipped; the compiler
// will report those properly.
func scanBodies(masked string) (circuits []body, constructors []body) {
	for _, idx := range circuitRe.FindAllStringSubmatchIndex(masked, -1) {
		b, ok := bodyAfterParams(masked, idx[1]-1)
		if !ok {
			continue
		}
		b.name = masked[idx[6]:idx[7]]
		b.exported = idx[2] >= 0
		circuits = append(circuits, b)
	}
	for _, idx := range constructorRe.FindAllStringIndex(masked, -1) {
		b, ok := bodyAfterParams(masked, idx[1]-1)
		if !ok {
			continue
		}
		b.name = "constructor"
		constructors = append(constructors, b)
	}
	return circuits, constructors
}

// bodyAfterParams scans the parameter list starting at the open paren,
// then the following brace block.
func bodyAfterParams(masked string, openParen int) (body, bool) {
	params, after, err := balancedBlock(masked, openParen)
	if err != nil {
		return body{}, false
	}
	// Skip the optional return type up to the '{'.
	braceAt := -1
	for i := after; i < len(masked); i++ {
		c := masked[i]
		if c == '{' {
			braceAt = i
			break
		}
		if c == ';' {
			break // declaration without a body
		}
	}
	if braceAt < 0 {
		return body{}, false
	}
	inner, _, err := balancedBlock(masked, braceAt)
	if err != nil {
		return body{}, false
	}
	return body{paramsRaw: params, start: braceAt, inner: inner}, true
}

// DetectIssues runs the full rule catalogue. It never short-circuits:
// the caller sees everything wrong in one pass.
func DetectIssues(unit *SourceUnit, s Structure, imports []string) []PotentialIssue {
	timer := logging.StartTimer(logging.CategoryScanner, "DetectIssues")
	defer timer.Stop()

	masked := maskCommentsAndStrings(unit.Text)
	circuitBodies, constructorBodies := scanBodies(masked)

	var issues []PotentialIssue
	issues = append(issues, checkModuleLevelConst(masked, circuitBodies, constructorBodies)...)
	issues = append(issues, checkStdlibCollision(s, imports)...)
	issues = append(issues, checkSealedExportConflict(masked, s, circuitBodies)...)
	issues = append(issues, checkMissingConstructor(s, constructorBodies)...)
	issues = append(issues, checkUnsupportedDivision(masked, circuitBodies)...)
	issues = append(issues, checkCounterAccess(masked, s)...)
	issues = append(issues, checkPotentialOverflow(masked, s, circuitBodies)...)
	issues = append(issues, checkUndisclosedWitnessBranch(masked, s, circuitBodies)...)
	issues = append(issues, checkUndisclosedConstructorParam(masked, s, constructorBodies)...)

	logging.ScannerDebug("issue detection on %s: %d findings", unit.Filename, len(issues))
	return issues
}

// wordRe compiles a word-bounded pattern for a literal name, so
// Counter never matches inside CounterHelper.
func wordRe(name string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)
}

var constRe = regexp.MustCompile(`\bconst\b`)

// checkModuleLevelConst flags const declarations outside any circuit
// or constructor body.
func checkModuleLevelConst(masked string, circuits, constructors []body) []PotentialIssue {
	inside := func(off int) bool {
		for _, b := range append(append([]body{}, circuits...), constructors...) {
			if off > b.start && off < b.start+len(b.inner)+2 {
				return true
			}
		}
		return false
	}

	var issues []PotentialIssue
	for _, loc := range constRe.FindAllStringIndex(masked, -1) {
		if inside(loc[0]) {
			continue
		}
		issues = append(issues, PotentialIssue{
			Kind:     IssueModuleLevelConst,
			Severity: SeverityError,
			Message:  "`const` declared at module level; Compact only allows constants inside circuit bodies",
			Suggestion: "Wrap the constant in a pure circuit that returns the value, " +
				"e.g. `pure circuit myValue(): Field { return 42; }`",
			Line: lineAt(masked, loc[0]),
		})
	}
	return issues
}

// checkStdlibCollision flags user circuits that shadow a stdlib
// builtin, only when the standard library is actually imported.
func checkStdlibCollision(s Structure, imports []string) []PotentialIssue {
	imported := false
	for _, imp := range imports {
		if stdlibIncludes[imp] {
			imported = true
			break
		}
	}
	if !imported {
		return nil
	}

	var issues []PotentialIssue
	for _, c := range s.Circuits {
		if stdlibCircuits[c.Name] {
			issues = append(issues, PotentialIssue{
				Kind:       IssueStdlibNameCollision,
				Severity:   SeverityError,
				Message:    fmt.Sprintf("circuit %q shadows a standard library builtin of the same name", c.Name),
				Suggestion: fmt.Sprintf("Rename the circuit (e.g. %q) to avoid the collision with the imported standard library.", "my_"+c.Name),
				Line:       c.Line,
			})
		}
	}
	return issues
}

// checkSealedExportConflict flags sealed ledger fields assigned inside
// an export circuit body instead of a constructor.
func checkSealedExportConflict(masked string, s Structure, circuits []body) []PotentialIssue {
	var issues []PotentialIssue
	for _, l := range s.LedgerItems {
		if !l.IsSealed {
			continue
		}
		assignRe := regexp.MustCompile(`\b` + regexp.QuoteMeta(l.Name) + `\s*=[^=]`)
		for _, b := range circuits {
			if !b.exported {
				continue
			}
			if loc := assignRe.FindStringIndex(b.inner); loc != nil {
				issues = append(issues, PotentialIssue{
					Kind:     IssueSealedExportConflict,
					Severity: SeverityError,
					Message: fmt.Sprintf("sealed ledger field %q is assigned inside export circuit %q; sealed state can only be initialized in a constructor",
						l.Name, b.name),
					Suggestion: "Move the assignment into the contract constructor.",
					Line:       lineAt(masked, b.start+1+loc[0]),
				})
			}
		}
	}
	return issues
}

// checkMissingConstructor warns when sealed ledger fields exist but no
// constructor is present to initialize them.
func checkMissingConstructor(s Structure, constructors []body) []PotentialIssue {
	if len(constructors) > 0 {
		return nil
	}
	for _, l := range s.LedgerItems {
		if l.IsSealed {
			return []PotentialIssue{{
				Kind:       IssueMissingConstructor,
				Severity:   SeverityWarning,
				Message:    fmt.Sprintf("sealed ledger field %q has no constructor to initialize it", l.Name),
				Suggestion: "Add a `constructor(...)` that assigns every sealed ledger field.",
				Line:       l.Line,
			}}
		}
	}
	return nil
}

// checkUnsupportedDivision warns about the division operator inside
// circuit bodies; division has no in-circuit representation.
func checkUnsupportedDivision(masked string, circuits []body) []PotentialIssue {
	var issues []PotentialIssue
	for _, b := range circuits {
		for i := 0; i < len(b.inner); i++ {
			if b.inner[i] != '/' {
				continue
			}
			issues = append(issues, PotentialIssue{
				Kind:     IssueUnsupportedDivision,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("division inside circuit %q; the `/` operator is not supported in-circuit", b.name),
				Suggestion: "Compute the quotient off-chain via a witness, then assert the " +
					"multiplicative identity: `assert(quotient * divisor + remainder == dividend)`.",
				Line: lineAt(masked, b.start+1+i),
			})
			break // one finding per circuit body is enough
		}
	}
	return issues
}

// checkCounterAccess flags reads of Counter ledger fields through
// `.value`, which bypasses the counter API.
func checkCounterAccess(masked string, s Structure) []PotentialIssue {
	var issues []PotentialIssue
	for _, l := range s.LedgerItems {
		if !wordRe("Counter").MatchString(l.Type) {
			continue
		}
		valueRe := regexp.MustCompile(`\b` + regexp.QuoteMeta(l.Name) + `\.value\b`)
		for _, loc := range valueRe.FindAllStringIndex(masked, -1) {
			issues = append(issues, PotentialIssue{
				Kind:       IssueInvalidCounterAccess,
				Severity:   SeverityError,
				Message:    fmt.Sprintf("Counter field %q accessed via `.value`", l.Name),
				Suggestion: fmt.Sprintf("Use the counter API instead: `%s.increment(1)` to update, `%s.read()` to read.", l.Name, l.Name),
				Line:       lineAt(masked, loc[0]),
			})
		}
	}
	return issues
}

var assertCallRe = regexp.MustCompile(`\bassert\b`)

// checkPotentialOverflow warns on the witness-quotient pattern: a
// witness value multiplied and verified via assert without a wider
// accumulator. Co-occurrence heuristic only, not a width analysis.
func checkPotentialOverflow(masked string, s Structure, circuits []body) []PotentialIssue {
	var issues []PotentialIssue
	for _, w := range s.Witnesses {
		nameRe := wordRe(w.Name)
		for _, b := range circuits {
			if !nameRe.MatchString(b.inner) {
				continue
			}
			if !strings.Contains(b.inner, "*") || !assertCallRe.MatchString(b.inner) {
				continue
			}
			if wordRe("Field").MatchString(b.inner) {
				continue // already widened
			}
			issues = append(issues, PotentialIssue{
				Kind:     IssuePotentialOverflow,
				Severity: SeverityWarning,
				Message: fmt.Sprintf("witness %q is multiplied and asserted in circuit %q; the product may overflow the operand width",
					w.Name, b.name),
				Suggestion: "Widen the accumulator to `Field` before multiplying, then compare in field arithmetic.",
				Line:       lineAt(masked, b.start),
			})
		}
	}
	return issues
}

var ifCondRe = regexp.MustCompile(`\bif\s*\(`)

// checkUndisclosedWitnessBranch warns when a witness value is compared
// inside an if condition without a disclose()-bound local.
func checkUndisclosedWitnessBranch(masked string, s Structure, circuits []body) []PotentialIssue {
	var issues []PotentialIssue
	for _, b := range circuits {
		for _, loc := range ifCondRe.FindAllStringIndex(b.inner, -1) {
			cond, _, err := balancedBlock(b.inner, loc[1]-1)
			if err != nil {
				continue
			}
			for _, w := range s.Witnesses {
				if !wordRe(w.Name).MatchString(cond) {
					continue
				}
				if strings.Contains(cond, "disclose") {
					continue
				}
				// A prior disclose()-bound local covering this witness
				// makes the branch safe.
				before := b.inner[:loc[0]]
				if strings.Contains(before, "disclose") && wordRe(w.Name).MatchString(before) {
					continue
				}
				issues = append(issues, PotentialIssue{
					Kind:     IssueUndisclosedWitnessBranch,
					Severity: SeverityWarning,
					Message: fmt.Sprintf("witness %q is compared directly in an `if` condition in circuit %q without disclose()",
						w.Name, b.name),
					Suggestion: fmt.Sprintf("Bind the disclosed value first: `const v = disclose(%s(...));` and branch on `v`.", w.Name),
					Line:       lineAt(masked, b.start+1+loc[0]),
				})
			}
		}
	}
	return issues
}

var assignStmtRe = regexp.MustCompile(`([A-Za-z_]\w*)\s*=\s*([^;]+);`)

// checkUndisclosedConstructorParam warns when a constructor parameter
// flows into a ledger field without disclose().
func checkUndisclosedConstructorParam(masked string, s Structure, constructors []body) []PotentialIssue {
	ledgerNames := make(map[string]bool, len(s.LedgerItems))
	for _, l := range s.LedgerItems {
		ledgerNames[l.Name] = true
	}

	var issues []PotentialIssue
	for _, b := range constructors {
		params := splitParams(b.paramsRaw)
		for _, m := range assignStmtRe.FindAllStringSubmatchIndex(b.inner, -1) {
			lhs := b.inner[m[2]:m[3]]
			rhs := b.inner[m[4]:m[5]]
			if !ledgerNames[lhs] {
				continue
			}
			if strings.Contains(rhs, "disclose") {
				continue
			}
			for _, p := range params {
				if p.Name == "" || !wordRe(p.Name).MatchString(rhs) {
					continue
				}
				issues = append(issues, PotentialIssue{
					Kind:     IssueUndisclosedConstructorArg,
					Severity: SeverityWarning,
					Message: fmt.Sprintf("constructor parameter %q is assigned to ledger field %q without disclose()",
						p.Name, lhs),
					Suggestion: fmt.Sprintf("Disclose the value explicitly: `%s = disclose(%s);`", lhs, p.Name),
					Line:       lineAt(masked, b.start+1+m[0]),
				})
				break
			}
		}
	}
	return issues
}
