package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sdlc-workflow/sdlc/internal/types"
)

var (
	// Version is the current version of sdlc (overridden by ldflags at build time)
	Version = "0.4.0"
	// Build can be set via ldflags at compile time
	Build = "dev"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if jsonOutput {
			outputJSON(map[string]string{
				"version":        Version,
				"build":          Build,
				"schema_version": types.SchemaVersion,
			})
			return
		}
		fmt.Printf("sdlc version %s (%s), index schema %s\n", Version, Build, types.SchemaVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
