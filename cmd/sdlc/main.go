package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sdlc-workflow/sdlc/internal/config"
	"github.com/sdlc-workflow/sdlc/internal/debug"
)

var (
	jsonOutput bool
	verbose    bool
	logFile    string
)

func init() {
	// Initialize viper configuration
	if err := config.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize config: %v\n", err)
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print progress to stderr")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write progress to this rotating log file")
}

var rootCmd = &cobra.Command{
	Use:   "sdlc",
	Short: "sdlc - Workflow context index builder",
	Long: `Links user stories, tasks, commits and annotated source files into one
JSON snapshot so agents and tools can answer "what implements this story?"
without rescanning the repository.`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Priority: flags > viper (config file + env vars) > defaults
		if !cmd.Flags().Changed("json") {
			jsonOutput = config.GetBool("json")
		}
		if !cmd.Flags().Changed("verbose") {
			verbose = config.GetBool("verbose")
		}
		if !cmd.Flags().Changed("log-file") && logFile == "" {
			logFile = config.GetString("log-file")
		}

		if verbose {
			debug.SetVerbose(true)
		}
		if logFile != "" {
			if err := debug.SetLogFile(logFile); err != nil {
				warnf("failed to open log file: %v", err)
			}
		}
		if path := config.ConfigFileUsed(); path != "" {
			debug.Logf("Using config file %s\n", path)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = debug.Close()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
