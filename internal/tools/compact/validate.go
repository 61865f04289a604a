// Package compact exposes the contract analysis engine as MCP tools.
package compact

import (
	"context"
	"encoding/json"
	"fmt"

	"compactmcp/internal/contract"
	"compactmcp/internal/tools"
)

// inputFromArgs maps the wire arguments onto the engine's input shape.
func inputFromArgs(args map[string]any) (contract.Input, error) {
	var in contract.Input
	var err error
	if in.Code, err = tools.StringArg(args, "code"); err != nil {
		return in, err
	}
	if in.FilePath, err = tools.StringArg(args, "filePath"); err != nil {
		return in, err
	}
	if in.Filename, err = tools.StringArg(args, "filename"); err != nil {
		return in, err
	}
	return in, nil
}

func marshal(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	return string(data), nil
}

// sourceProperties is the shared argument schema of both tools:
// exactly one of code/filePath, plus an optional display filename.
func sourceProperties() map[string]tools.Property {
	return map[string]tools.Property{
		"code": {
			Type:        "string",
			Description: "Compact source code to analyze inline. Mutually exclusive with filePath.",
		},
		"filePath": {
			Type:        "string",
			Description: "Absolute path to a .compact file. Mutually exclusive with code.",
		},
		"filename": {
			Type:        "string",
			Description: "Display name for inline code, used in diagnostics (default contract.compact).",
		},
	}
}

// NewValidateTool builds the validate_contract tool on the given engine.
func NewValidateTool(engine *contract.Engine) *tools.Tool {
	return &tools.Tool{
		Name: "validate_contract",
		Description: "Validate a Compact smart contract against the real compiler. " +
			"Runs input checks and fast pre-checks first, then compiles, and returns " +
			"structured diagnostics with categorized errors and fix suggestions. " +
			"Use this before presenting any generated Compact code as correct.",
		Category: tools.CategoryContract,
		Priority: 90,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			in, err := inputFromArgs(args)
			if err != nil {
				return "", err
			}
			return marshal(engine.ValidateContract(ctx, in))
		},
		Schema: tools.ToolSchema{
			Required:   []string{},
			Properties: sourceProperties(),
		},
	}
}

// NewStructureTool builds the extract_contract_structure tool.
func NewStructureTool(engine *contract.Engine) *tools.Tool {
	return &tools.Tool{
		Name: "extract_contract_structure",
		Description: "Extract the structure of a Compact contract without compiling: " +
			"circuits, witnesses, ledger state, types, exports, plus heuristic findings " +
			"for patterns known to fail or leak privacy. Works without the compiler installed.",
		Category: tools.CategoryContract,
		Priority: 80,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			in, err := inputFromArgs(args)
			if err != nil {
				return "", err
			}
			return marshal(engine.ExtractStructure(in))
		},
		Schema: tools.ToolSchema{
			Required:   []string{},
			Properties: sourceProperties(),
		},
	}
}

// Register adds both contract tools to the registry.
func Register(registry *tools.Registry, engine *contract.Engine) {
	registry.MustRegister(NewValidateTool(engine))
	registry.MustRegister(NewStructureTool(engine))
}
