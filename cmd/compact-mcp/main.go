// compact-mcp serves Compact contract validation, structure analysis,
// documentation retrieval and example search to LLM clients over the
// Model Context Protocol.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"compactmcp/internal/config"
	"compactmcp/internal/contract"
	"compactmcp/internal/logging"
)

var (
	configPath string
	verbose    bool

	logger *zap.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "compact-mcp",
	Short: "MCP server for the Compact smart contract language",
	Long: `compact-mcp is a Model Context Protocol server that lets LLM tooling
validate Compact smart contracts against the real compiler, inspect
contract structure without compiling, search indexed example
contracts, and read documentation and release notes.

Run "compact-mcp serve" from an MCP client configuration; everything
on stdout is protocol traffic, logs go to stderr and the log files.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		zcfg.OutputPaths = []string{"stderr"}
		zcfg.ErrorOutputPaths = []string{"stderr"}
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		if logger, err = zcfg.Build(); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if configPath != "" {
			cfg, err = config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config %s: %w", configPath, err)
			}
		} else {
			cfg = config.DefaultConfig()
		}

		lc := cfg.Logging
		if verbose {
			lc.DebugMode = true
			lc.Level = "debug"
		}
		if err := logging.Initialize(lc.Directory, lc.DebugMode, lc.Level, lc.Categories); err != nil {
			logger.Warn("file logging disabled", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// compilerSettings maps the loaded configuration onto the engine's
// settings shape.
func compilerSettings() contract.CompilerSettings {
	settings := contract.DefaultCompilerSettings()
	if cfg.Compiler.Binary != "" {
		settings.Binary = cfg.Compiler.Binary
	}
	if cfg.Compiler.MinVersion != "" {
		settings.MinVersion = cfg.Compiler.MinVersion
	}
	if d := cfg.CompilerTimeout(); d > 0 {
		settings.Timeout = d
	}
	if cfg.Compiler.MaxOutputBytes > 0 {
		settings.MaxOutputBytes = cfg.Compiler.MaxOutputBytes
	}
	return settings
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(structureCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
