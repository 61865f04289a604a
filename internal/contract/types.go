// Package contract implements the Compact pre-compilation analysis
// engine: input validation, lexical structure extraction, heuristic
// issue detection, and the bridge to the external compact compiler.
package contract

// ErrorType classifies a validation failure. Exactly one type is
// assigned, by whichever component first detects the problem.
type ErrorType string

const (
	ErrorSecurity    ErrorType = "security_error"    // path traversal, restricted directories
	ErrorUser        ErrorType = "user_error"        // malformed, missing, oversized or binary input
	ErrorEnvironment ErrorType = "environment_error" // compiler absent or too old
	ErrorSystem      ErrorType = "system_error"      // filesystem failures
	ErrorTimeout     ErrorType = "timeout_error"     // compiler exceeded wall clock
	ErrorCompilation ErrorType = "compilation_error" // compiler ran and rejected the source
)

// Severity tags findings and diagnostics.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Parameter is a single circuit parameter.
type Parameter struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// CircuitDecl is a circuit declaration.
type CircuitDecl struct {
	Name       string      `json:"name"`
	Parameters []Parameter `json:"parameters"`
	ReturnType string      `json:"returnType"`
	IsExported bool        `json:"isExported"`
	IsPure     bool        `json:"isPure"`
	Line       int         `json:"line"`
}

// WitnessDecl is a witness declaration.
type WitnessDecl struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	IsExported bool   `json:"isExported"`
	Line       int    `json:"line"`
}

// LedgerDecl is a ledger state declaration.
type LedgerDecl struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	IsExported bool   `json:"isExported"`
	IsSealed   bool   `json:"isSealed"`
	Line       int    `json:"line"`
}

// TypeAliasDecl is a type alias declaration.
type TypeAliasDecl struct {
	Name       string `json:"name"`
	Definition string `json:"definition"`
	Line       int    `json:"line"`
}

// StructDecl is a struct declaration.
type StructDecl struct {
	Name       string   `json:"name"`
	Fields     []string `json:"fields"`
	IsExported bool     `json:"isExported"`
	Line       int      `json:"line"`
}

// EnumDecl is an enum declaration.
type EnumDecl struct {
	Name       string   `json:"name"`
	Variants   []string `json:"variants"`
	IsExported bool     `json:"isExported"`
	Line       int      `json:"line"`
}

// Structure groups every declaration extracted from one source unit.
type Structure struct {
	Circuits    []CircuitDecl   `json:"circuits"`
	Witnesses   []WitnessDecl   `json:"witnesses"`
	LedgerItems []LedgerDecl    `json:"ledgerItems"`
	Types       []TypeAliasDecl `json:"types"`
	Structs     []StructDecl    `json:"structs"`
	Enums       []EnumDecl      `json:"enums"`
}

// Exports lists the exported names per declaration kind.
type Exports struct {
	Circuits    []string `json:"circuits"`
	Witnesses   []string `json:"witnesses"`
	LedgerItems []string `json:"ledgerItems"`
	Structs     []string `json:"structs"`
	Enums       []string `json:"enums"`
}

// Stats carries per-kind declaration counts.
type Stats struct {
	Circuits    int `json:"circuits"`
	Witnesses   int `json:"witnesses"`
	LedgerItems int `json:"ledgerItems"`
	Types       int `json:"types"`
	Structs     int `json:"structs"`
	Enums       int `json:"enums"`
}

// IssueKind identifies one rule of the issue catalogue.
type IssueKind string

const (
	IssueModuleLevelConst          IssueKind = "module_level_const"
	IssueStdlibNameCollision       IssueKind = "stdlib_name_collision"
	IssueSealedExportConflict      IssueKind = "sealed_export_conflict"
	IssueMissingConstructor        IssueKind = "missing_constructor"
	IssueUnsupportedDivision       IssueKind = "unsupported_division"
	IssueInvalidCounterAccess      IssueKind = "invalid_counter_access"
	IssuePotentialOverflow         IssueKind = "potential_overflow"
	IssueUndisclosedWitnessBranch  IssueKind = "undisclosed_witness_conditional"
	IssueUndisclosedConstructorArg IssueKind = "undisclosed_constructor_param"
)

// PotentialIssue is a single heuristic finding.
type PotentialIssue struct {
	Kind       IssueKind `json:"kind"`
	Severity   Severity  `json:"severity"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion"`
	Line       int       `json:"line,omitempty"`
}

// CompilerDiagnostic is one structured diagnostic parsed from raw
// compiler output. Line and Column are 1-based; zero means unknown.
type CompilerDiagnostic struct {
	Line          int      `json:"line,omitempty"`
	Column        int      `json:"column,omitempty"`
	Message       string   `json:"message"`
	Severity      Severity `json:"severity"`
	SourceContext string   `json:"sourceContext,omitempty"`
}

// ErrorCategory is the coarse classification of a whole compiler
// failure, independent of the per-diagnostic breakdown.
type ErrorCategory string

const (
	CategorySyntax    ErrorCategory = "syntax_error"
	CategoryType      ErrorCategory = "type_error"
	CategoryReference ErrorCategory = "reference_error"
	CategoryImport    ErrorCategory = "import_error"
	CategoryStructure ErrorCategory = "structure_error"
	CategoryUnknown   ErrorCategory = "unknown_error"
)

// UserAction tells the caller what went wrong and what to do about it.
type UserAction struct {
	Problem     string `json:"problem"`
	Solution    string `json:"solution"`
	IsUserFault bool   `json:"isUserFault"`
}

// ValidationResult is the outcome of ValidateContract. Success and
// failure share one shape so the tool layer can serialize it directly.
type ValidationResult struct {
	Success bool `json:"success"`

	// Success fields
	CompilerVersion string   `json:"compilerVersion,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
	Output          string   `json:"output,omitempty"`

	// Failure fields
	ErrorType         ErrorType            `json:"errorType,omitempty"`
	Message           string               `json:"message,omitempty"`
	Errors            []CompilerDiagnostic `json:"errors,omitempty"`
	Category          ErrorCategory        `json:"category,omitempty"`
	Explanation       string               `json:"explanation,omitempty"`
	Suggestions       []string             `json:"suggestions,omitempty"`
	UserAction        *UserAction          `json:"userAction,omitempty"`
	CompilerInstalled *bool                `json:"compilerInstalled,omitempty"`
}

// StructureResult is the outcome of ExtractStructure.
type StructureResult struct {
	Success         bool             `json:"success"`
	LanguageVersion string           `json:"languageVersion,omitempty"`
	Imports         []string         `json:"imports"`
	Structure       Structure        `json:"structure"`
	Exports         Exports          `json:"exports"`
	Stats           Stats            `json:"stats"`
	PotentialIssues []PotentialIssue `json:"potentialIssues"`
	Summary         string           `json:"summary,omitempty"`

	// Failure fields
	Error   ErrorType `json:"error,omitempty"`
	Message string    `json:"message,omitempty"`
}

func failValidation(errType ErrorType, message string, action UserAction) *ValidationResult {
	return &ValidationResult{
		Success:    false,
		ErrorType:  errType,
		Message:    message,
		UserAction: &action,
	}
}

func failStructure(errType ErrorType, message string) *StructureResult {
	return &StructureResult{Success: false, Error: errType, Message: message}
}

func boolPtr(b bool) *bool { return &b }
