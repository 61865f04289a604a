package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"compactmcp/internal/contract"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print server and compiler versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("%s %s\n", cfg.Name, cfg.Version)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		version, err := contract.DetectCompilerVersion(ctx, cfg.Compiler.Binary)
		if err != nil {
			fmt.Println("compact compiler: not found on PATH")
			return nil
		}
		fmt.Printf("compact compiler: %s\n", version)
		return nil
	},
}
