package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/sdlc-workflow/sdlc/internal/types"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
)

// outputJSON writes v to stdout with two-space indentation
func outputJSON(v interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

func warnf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s %s\n", yellow("Warning:"), fmt.Sprintf(format, args...))
}

func printWarnings(warnings []types.Warning) {
	for _, w := range warnings {
		warnf("%s", w)
	}
}

// fatalf prints an error and exits with code
func fatalf(code int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s %s\n", red("Error:"), fmt.Sprintf(format, args...))
	os.Exit(code)
}
