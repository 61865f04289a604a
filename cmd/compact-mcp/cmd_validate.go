package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"compactmcp/internal/contract"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file.compact]",
	Short: "Validate a contract against the installed compiler",
	Long: `Runs the full validation pipeline on one contract file: input checks,
fast pre-checks, compilation, and diagnostic parsing. The structured
result is printed as JSON; the exit code is non-zero when validation
fails.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

var structureCmd = &cobra.Command{
	Use:   "structure [file.compact]",
	Short: "Extract a contract's structure without compiling",
	Long: `Scans one contract file and prints its circuits, witnesses, ledger
state, types, exports and heuristic findings as JSON. Works without
the compiler installed.`,
	Args: cobra.ExactArgs(1),
	RunE: runStructure,
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runValidate(cmd *cobra.Command, args []string) error {
	engine := contract.NewEngine(compilerSettings())
	result := engine.ValidateContract(context.Background(), contract.Input{FilePath: args[0]})
	if err := printJSON(result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("validation failed")
	}
	return nil
}

func runStructure(cmd *cobra.Command, args []string) error {
	engine := contract.NewEngine(compilerSettings())
	result := engine.ExtractStructure(contract.Input{FilePath: args[0]})
	if err := printJSON(result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("structure extraction failed")
	}
	return nil
}
