package sqlite

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// ErrSchemaIncompatible is returned when the database schema is incompatible with the current version
var ErrSchemaIncompatible = fmt.Errorf("database schema is incompatible")

// expectedSchema defines all expected tables and their required columns
var expectedSchema = map[string][]string{
	"stories":  {"id", "title", "status", "domain", "file", "acceptance_criteria"},
	"tasks":    {"id", "semantic_name", "story", "status", "phase", "folder", "decisions", "phase_history", "files_modified", "subagent_reports"},
	"commits":  {"hash", "date", "message"},
	"files":    {"path", "design_pattern", "architecture_layer", "tradeoffs"},
	"links":    {"source_kind", "source_id", "target_kind", "target_id", "position"},
	"metadata": {"key", "value"},
}

// SchemaProbeResult contains the results of a schema compatibility check
type SchemaProbeResult struct {
	Compatible     bool
	MissingTables  []string
	MissingColumns map[string][]string // table -> missing columns
	ErrorMessage   string
}

// probeSchema verifies all expected tables and columns exist
func probeSchema(db *sql.DB) SchemaProbeResult {
	result := SchemaProbeResult{
		Compatible:     true,
		MissingTables:  []string{},
		MissingColumns: make(map[string][]string),
	}

	for _, table := range expectedTables() {
		expectedCols := expectedSchema[table]
		query := fmt.Sprintf("SELECT %s FROM %s LIMIT 0", strings.Join(expectedCols, ", "), table)
		_, err := db.Exec(query)
		if err == nil {
			continue
		}
		errMsg := err.Error()
		if strings.Contains(errMsg, "no such table") {
			result.Compatible = false
			result.MissingTables = append(result.MissingTables, table)
			continue
		}
		if strings.Contains(errMsg, "no such column") {
			result.Compatible = false
			if missing := findMissingColumns(db, table, expectedCols); len(missing) > 0 {
				result.MissingColumns[table] = missing
			}
		}
	}

	if !result.Compatible {
		var parts []string
		if len(result.MissingTables) > 0 {
			parts = append(parts, fmt.Sprintf("missing tables: %s", strings.Join(result.MissingTables, ", ")))
		}
		for _, table := range expectedTables() {
			if cols, ok := result.MissingColumns[table]; ok {
				parts = append(parts, fmt.Sprintf("missing columns in %s: %s", table, strings.Join(cols, ", ")))
			}
		}
		result.ErrorMessage = strings.Join(parts, "; ")
	}

	return result
}

// findMissingColumns determines which columns are missing from a table
func findMissingColumns(db *sql.DB, table string, expectedCols []string) []string {
	missing := []string{}
	for _, col := range expectedCols {
		query := fmt.Sprintf("SELECT %s FROM %s LIMIT 0", col, table)
		_, err := db.Exec(query)
		if err != nil && strings.Contains(err.Error(), "no such column") {
			missing = append(missing, col)
		}
	}
	return missing
}

// verifySchemaCompatibility runs schema probe and returns detailed error on failure
func verifySchemaCompatibility(db *sql.DB) error {
	result := probeSchema(db)
	if !result.Compatible {
		return fmt.Errorf("%w: %s", ErrSchemaIncompatible, result.ErrorMessage)
	}
	return nil
}

// resetSchema drops every mirror table and creates the current schema.
// The mirror is rebuilt from the snapshot, so nothing is migrated.
func resetSchema(db *sql.DB) error {
	for _, table := range expectedTables() {
		if _, err := db.Exec("DROP TABLE IF EXISTS " + table); err != nil {
			return fmt.Errorf("failed to drop %s: %w", table, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func expectedTables() []string {
	tables := make([]string, 0, len(expectedSchema))
	for table := range expectedSchema {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	return tables
}
