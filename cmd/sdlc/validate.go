package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sdlc-workflow/sdlc/internal/index"
	"github.com/sdlc-workflow/sdlc/internal/linker"
	"github.com/sdlc-workflow/sdlc/internal/types"
	"github.com/sdlc-workflow/sdlc/internal/utils"
	"github.com/sdlc-workflow/sdlc/internal/workspace"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check stories, tasks, history and the written index for problems",
	Long: `Run read-only integrity checks over the workflow documents:
- stories:  unreadable documents, missing ids, duplicate story ids
- tasks:    malformed STATE.json, phase invariants, unknown stories
- commits:  malformed history, references to unknown stories or tasks
- files:    unreadable annotated source files
- snapshot: on-disk index schema version, totals and link symmetry

Example:
  sdlc validate                        # Run all checks
  sdlc validate --checks=tasks,commits # Run specific checks
  sdlc validate --json                 # Output in JSON format`,
	Run: func(cmd *cobra.Command, _ []string) {
		checksFlag, _ := cmd.Flags().GetString("checks")

		checks, err := parseChecks(checksFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			fmt.Fprintf(os.Stderr, "Valid checks: %s\n", strings.Join(defaultChecks, ", "))
			os.Exit(2)
		}

		layout, warnings, err := workspace.Discover()
		if err != nil {
			fatalf(1, "%v", err)
		}
		printWarnings(warnings)

		results, err := runValidation(context.Background(), layout, checks)
		if err != nil {
			fatalf(1, "%v", err)
		}

		if jsonOutput {
			outputJSON(results.toJSON())
		} else {
			results.print()
		}
		if results.hasFailures() {
			os.Exit(1)
		}
	},
}

var defaultChecks = []string{"stories", "tasks", "commits", "files", "snapshot"}

// parseChecks normalizes and validates check names
func parseChecks(checksFlag string) ([]string, error) {
	if checksFlag == "" {
		return defaultChecks, nil
	}

	synonyms := map[string]string{
		"story":   "stories",
		"task":    "tasks",
		"history": "commits",
		"git":     "commits",
		"index":   "snapshot",
	}

	var result []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(checksFlag, ",") {
		check := strings.ToLower(strings.TrimSpace(part))
		if check == "" {
			continue
		}
		if canonical, ok := synonyms[check]; ok {
			check = canonical
		}
		valid := false
		for _, validCheck := range defaultChecks {
			if check == validCheck {
				valid = true
				break
			}
		}
		if !valid {
			return nil, fmt.Errorf("unknown check: %s", part)
		}
		if !seen[check] {
			seen[check] = true
			result = append(result, check)
		}
	}
	return result, nil
}

type checkResult struct {
	name        string
	problems    []string
	err         error
	suggestions []string
}

type validationResults struct {
	checks     map[string]checkResult
	checkOrder []string
}

// runValidation scans the project once and runs checks over the result.
// Only the snapshot check reads the written index.
func runValidation(ctx context.Context, layout *workspace.Layout, checks []string) (*validationResults, error) {
	results := &validationResults{
		checks:     make(map[string]checkResult),
		checkOrder: checks,
	}

	var (
		snap   *types.Snapshot
		report index.Report
	)
	for _, check := range checks {
		if check != "snapshot" {
			var err error
			snap, report, err = index.Build(ctx, indexOptions(layout, ""))
			if err != nil {
				return nil, err
			}
			break
		}
	}

	for _, check := range checks {
		switch check {
		case "stories":
			results.checks[check] = validateStories(report.Warnings)
		case "tasks":
			results.checks[check] = validateTasks(snap, report.Warnings)
		case "commits":
			results.checks[check] = validateCommits(snap, report.Warnings)
		case "files":
			results.checks[check] = validateFiles(report.Warnings)
		case "snapshot":
			results.checks[check] = validateSnapshot(layout.IndexFile)
		}
	}
	return results, nil
}

func warningsFrom(warnings []types.Warning, source string) []string {
	var out []string
	for _, w := range warnings {
		if w.Source == source {
			out = append(out, w.String())
		}
	}
	return out
}

func validateStories(warnings []types.Warning) checkResult {
	result := checkResult{name: "stories"}
	result.problems = warningsFrom(warnings, types.SourceStories)
	if len(result.problems) > 0 {
		result.suggestions = append(result.suggestions,
			"Story documents need a '# User Story: US-XXX - Title' heading and a unique id")
	}
	return result
}

func validateTasks(snap *types.Snapshot, warnings []types.Warning) checkResult {
	result := checkResult{name: "tasks"}
	for _, w := range warnings {
		// current.txt problems are reported with the tasks they point at
		if w.Source == types.SourceTasks {
			result.problems = append(result.problems, w.String())
		}
	}

	unknown := 0
	for _, id := range sortedIDs(snap.Tasks) {
		task := snap.Tasks[id]
		if task.Story == "" {
			continue
		}
		if _, ok := snap.Stories[task.Story]; !ok {
			result.problems = append(result.problems, fmt.Sprintf("%s: story %s does not exist", id, task.Story))
			unknown++
		}
	}
	if unknown > 0 {
		result.suggestions = append(result.suggestions,
			fmt.Sprintf("Create the missing story documents or fix story_id in %d STATE.json file(s)", unknown))
	}
	return result
}

func validateCommits(snap *types.Snapshot, warnings []types.Warning) checkResult {
	result := checkResult{name: "commits"}
	for _, w := range warnings {
		if w.Source != types.SourceHistory {
			continue
		}
		if w.Subject == "" {
			// History could not be read at all; nothing to check
			result.suggestions = append(result.suggestions, w.Message)
			continue
		}
		result.problems = append(result.problems, w.String())
	}

	orphans := 0
	for _, hash := range sortedIDs(snap.Commits) {
		c := snap.Commits[hash]
		short := hash
		if len(short) > 8 {
			short = short[:8]
		}
		for _, ref := range c.StoryRefs {
			if _, ok := snap.Stories[ref]; !ok {
				result.problems = append(result.problems, fmt.Sprintf("%s: references unknown story %s", short, ref))
				orphans++
			}
		}
		for _, ref := range c.TaskRefs {
			if _, ok := snap.Tasks[utils.BaseTaskID(ref)]; !ok {
				result.problems = append(result.problems, fmt.Sprintf("%s: references unknown task %s", short, ref))
				orphans++
			}
		}
	}
	if orphans > 0 {
		result.suggestions = append(result.suggestions,
			fmt.Sprintf("%d commit reference(s) point at ids with no story document or task folder", orphans))
	}
	return result
}

func validateFiles(warnings []types.Warning) checkResult {
	result := checkResult{name: "files"}
	result.problems = warningsFrom(warnings, types.SourceAnnotations)
	return result
}

func validateSnapshot(path string) checkResult {
	result := checkResult{name: "snapshot"}

	snap, err := index.Load(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		result.suggestions = append(result.suggestions, "No index written yet; run 'sdlc index' to build it")
		return result
	case errors.Is(err, index.ErrSnapshotIncompatible):
		result.problems = append(result.problems, err.Error())
		result.suggestions = append(result.suggestions, "Run 'sdlc index' to rebuild the index with this version")
		return result
	case err != nil:
		result.err = err
		return result
	}

	m := snap.Metadata
	for _, c := range []struct {
		name        string
		total, have int
	}{
		{"total_stories", m.TotalStories, len(snap.Stories)},
		{"total_tasks", m.TotalTasks, len(snap.Tasks)},
		{"total_commits", m.TotalCommits, len(snap.Commits)},
		{"total_files", m.TotalFiles, len(snap.Files)},
	} {
		if c.total != c.have {
			result.problems = append(result.problems, fmt.Sprintf("metadata %s is %d but the index holds %d", c.name, c.total, c.have))
		}
	}
	for _, inc := range linker.Verify(snap) {
		result.problems = append(result.problems, inc.String())
	}
	if len(result.problems) > 0 {
		result.suggestions = append(result.suggestions, "Run 'sdlc index' to rebuild the index")
	}
	return result
}

func (r *validationResults) hasFailures() bool {
	for _, result := range r.checks {
		if result.err != nil || len(result.problems) > 0 {
			return true
		}
	}
	return false
}

func (r *validationResults) toJSON() map[string]interface{} {
	checks := map[string]interface{}{}
	totalProblems := 0
	hasErrors := false
	for name, result := range r.checks {
		var errorStr interface{}
		if result.err != nil {
			errorStr = result.err.Error()
			hasErrors = true
		}
		problems := result.problems
		if problems == nil {
			problems = []string{}
		}
		suggestions := result.suggestions
		if suggestions == nil {
			suggestions = []string{}
		}
		checks[name] = map[string]interface{}{
			"problem_count": len(result.problems),
			"problems":      problems,
			"error":         errorStr,
			"failed":        result.err != nil,
			"suggestions":   suggestions,
		}
		totalProblems += len(result.problems)
	}
	return map[string]interface{}{
		"checks":         checks,
		"total_problems": totalProblems,
		"healthy":        !hasErrors && totalProblems == 0,
	}
}

func (r *validationResults) print() {
	fmt.Println("\nValidation Results:")
	fmt.Println("===================")

	totalProblems := 0
	// Print in deterministic order
	for _, name := range r.checkOrder {
		result := r.checks[name]
		switch {
		case result.err != nil:
			fmt.Printf("%s %s: ERROR - %v\n", red("✗"), result.name, result.err)
		case len(result.problems) > 0:
			fmt.Printf("%s %s: %d found\n", yellow("⚠"), result.name, len(result.problems))
			for _, p := range result.problems {
				fmt.Printf("    %s\n", p)
			}
		default:
			fmt.Printf("%s %s: OK\n", green("✓"), result.name)
		}
		totalProblems += len(result.problems)
	}

	fmt.Println()
	if totalProblems == 0 && !r.hasFailures() {
		fmt.Printf("%s Workflow documents are consistent!\n", green("✓"))
	} else {
		fmt.Printf("%s Found %d problem(s)\n", yellow("⚠"), totalProblems)
	}

	var suggestions []string
	for _, name := range r.checkOrder {
		suggestions = append(suggestions, r.checks[name].suggestions...)
	}
	if len(suggestions) > 0 {
		fmt.Println("\nRecommendations:")
		for _, s := range suggestions {
			fmt.Printf("  - %s\n", s)
		}
	}
}

func sortedIDs[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	validateCmd.Flags().String("checks", "", "Comma-separated list of checks (stories,tasks,commits,files,snapshot)")
	rootCmd.AddCommand(validateCmd)
}
