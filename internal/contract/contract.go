package contract

import (
	"context"
	"fmt"
	"strings"

	"compactmcp/internal/logging"
)

// Engine runs the two analysis operations. It carries only settings;
// per-request state lives on the stack, so one Engine is safe for
// concurrent requests.
type Engine struct {
	settings CompilerSettings
}

// NewEngine creates an engine with the given compiler settings.
func NewEngine(settings CompilerSettings) *Engine {
	if settings.Binary == "" {
		settings = DefaultCompilerSettings()
	}
	return &Engine{settings: settings}
}

// installInstructions is returned whenever the toolchain is missing.
const installInstructions = "Install the Compact developer tools and ensure `compact` is on PATH. " +
	"See https://docs.midnight.network/develop/tutorial/building for installation steps."

// ValidateContract validates source against the real compiler:
// input guard, fast pre-checks, then a staged subprocess invocation
// whose diagnostics are parsed and categorized. Every failure mode is
// a structured result; no error escapes raw.
func (e *Engine) ValidateContract(ctx context.Context, in Input) *ValidationResult {
	timer := logging.StartTimer(logging.CategoryCompiler, "ValidateContract")
	defer timer.Stop()

	unit, gerr := resolveInput(in)
	if gerr != nil {
		return failValidation(gerr.errType, gerr.message, UserAction{
			Problem:     gerr.problem,
			Solution:    gerr.solution,
			IsUserFault: gerr.errType != ErrorSystem,
		})
	}

	includeWarnings, gerr := checkIncludes(unit)
	if gerr != nil {
		return failValidation(gerr.errType, gerr.message, UserAction{
			Problem: gerr.problem, Solution: gerr.solution, IsUserFault: true,
		})
	}

	// Cheap source checks before paying for a subprocess.
	if gerr := precheck(unit); gerr != nil {
		return failValidation(gerr.errType, gerr.message, UserAction{
			Problem: gerr.problem, Solution: gerr.solution, IsUserFault: true,
		})
	}

	bin, err := locateCompiler(ctx, e.settings.Binary)
	if err != nil {
		result := failValidation(ErrorEnvironment,
			"the Compact compiler is not installed or not on PATH",
			UserAction{
				Problem:     "No working `" + e.settings.Binary + "` binary was found.",
				Solution:    installInstructions,
				IsUserFault: false,
			})
		result.CompilerInstalled = boolPtr(false)
		return result
	}

	if !versionAtLeast(bin.version, e.settings.MinVersion) {
		result := failValidation(ErrorEnvironment,
			fmt.Sprintf("compiler version %s is below the supported minimum %s", bin.version, e.settings.MinVersion),
			UserAction{
				Problem:     fmt.Sprintf("The installed compiler (%s) is too old for this toolset.", bin.version),
				Solution:    "Update the Compact developer tools to the latest release.",
				IsUserFault: false,
			})
		result.CompilerInstalled = boolPtr(true)
		return result
	}

	run, err := e.stage(unit, bin)
	if err != nil {
		return failValidation(ErrorSystem, err.Error(), UserAction{
			Problem:     "The server could not prepare a temporary workspace for compilation.",
			Solution:    "Check free disk space and temp-directory permissions on the server host.",
			IsUserFault: false,
		})
	}
	defer run.cleanup()

	res := run.execute(ctx, unit)
	combined := res.stdout
	if res.stderr != "" {
		if combined != "" {
			combined += "\n"
		}
		combined += res.stderr
	}

	if res.timedOut {
		return failValidation(ErrorTimeout,
			fmt.Sprintf("compilation exceeded the %s limit", e.settings.Timeout),
			UserAction{
				Problem:     "The compiler did not finish within the time budget.",
				Solution:    "Split very large circuits, or compile locally where no server time limit applies.",
				IsUserFault: false,
			})
	}

	if res.exitErr != nil {
		if combined == "" {
			// The process failed without producing diagnostics; this
			// is an execution fault, not a source rejection.
			errType := classifyExecError(res.exitErr)
			return failValidation(errType,
				fmt.Sprintf("compiler invocation failed: %v", res.exitErr),
				UserAction{
					Problem:     "The compiler process could not run to completion.",
					Solution:    "Check the toolchain installation and server filesystem health.",
					IsUserFault: false,
				})
		}

		diags := ParseDiagnostics(combined, unit.Text)
		category, info := Categorize(combined)
		result := failValidation(ErrorCompilation, "the contract failed to compile", UserAction{
			Problem:     info.explanation,
			Solution:    info.remediation,
			IsUserFault: true,
		})
		result.Errors = diags
		result.Category = category
		result.Explanation = info.explanation
		result.Suggestions = DeriveSuggestions(combined)
		result.CompilerInstalled = boolPtr(true)
		return result
	}

	warnings := append([]string{}, includeWarnings...)
	warnings = append(warnings, compilerWarnings(combined)...)

	logging.Compiler("validated %s with compiler %s", unit.Filename, bin.version)
	return &ValidationResult{
		Success:         true,
		CompilerVersion: bin.version,
		Warnings:        warnings,
		Output:          strings.TrimSpace(combined),
	}
}

// compilerWarnings picks warning lines out of successful output.
func compilerWarnings(raw string) []string {
	var warnings []string
	for _, line := range strings.Split(raw, "\n") {
		if warningLineRe.MatchString(line) {
			warnings = append(warnings, strings.TrimSpace(line))
		}
	}
	return warnings
}

// ExtractStructure runs the lighter pipeline: input guard (no compiler
// pre-checks), lexical scan, then issue detection. An empty contract
// is a valid, non-error result.
func (e *Engine) ExtractStructure(in Input) *StructureResult {
	timer := logging.StartTimer(logging.CategoryScanner, "ExtractStructure")
	defer timer.Stop()

	unit, gerr := resolveInput(in)
	if gerr != nil {
		return failStructure(gerr.errType, gerr.message)
	}

	masked := maskCommentsAndStrings(unit.Text)
	structure := Scan(unit)
	imports := extractImports(unit.Text, masked)
	stats := deriveStats(structure)

	return &StructureResult{
		Success:         true,
		LanguageVersion: extractPragma(masked),
		Imports:         imports,
		Structure:       structure,
		Exports:         deriveExports(structure),
		Stats:           stats,
		PotentialIssues: DetectIssues(unit, structure, imports),
		Summary:         summarize(stats),
	}
}
