// Package configfile reads the optional layout overrides stored in
// .sdlc-workflow/layout.json.
package configfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const ConfigFileName = "layout.json"

// Default layout, relative to the project root.
const (
	DefaultStoriesDir = ".sdlc-workflow/stories"
	DefaultTasksDir   = ".claude/tasks"
	DefaultIndexFile  = ".sdlc-workflow/.index/sdlc-index.json"
)

// Config overrides where the index builder looks for its inputs and writes
// its outputs. Relative paths are resolved against the project root. An
// empty IndexDB disables the SQLite mirror.
type Config struct {
	StoriesDir string `json:"stories_dir,omitempty"`
	TasksDir   string `json:"tasks_dir,omitempty"`
	IndexFile  string `json:"index_file,omitempty"`
	IndexDB    string `json:"index_db,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		StoriesDir: DefaultStoriesDir,
		TasksDir:   DefaultTasksDir,
		IndexFile:  DefaultIndexFile,
	}
}

func ConfigPath(workflowDir string) string {
	return filepath.Join(workflowDir, ConfigFileName)
}

// Load reads layout.json from workflowDir. A missing file yields (nil, nil).
// Fields left empty in the file take their default values.
func Load(workflowDir string) (*Config, error) {
	data, err := os.ReadFile(ConfigPath(workflowDir)) // #nosec G304 - controlled path from workspace discovery
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading layout: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing layout: %w", err)
	}
	cfg.fillDefaults()
	return &cfg, nil
}

func (c *Config) Save(workflowDir string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling layout: %w", err)
	}
	if err := os.MkdirAll(workflowDir, 0750); err != nil {
		return fmt.Errorf("creating %s: %w", workflowDir, err)
	}
	if err := os.WriteFile(ConfigPath(workflowDir), data, 0600); err != nil {
		return fmt.Errorf("writing layout: %w", err)
	}
	return nil
}

func (c *Config) fillDefaults() {
	if c.StoriesDir == "" {
		c.StoriesDir = DefaultStoriesDir
	}
	if c.TasksDir == "" {
		c.TasksDir = DefaultTasksDir
	}
	if c.IndexFile == "" {
		c.IndexFile = DefaultIndexFile
	}
}

func (c *Config) StoriesPath(root string) string {
	return resolve(root, c.StoriesDir)
}

func (c *Config) TasksPath(root string) string {
	return resolve(root, c.TasksDir)
}

func (c *Config) IndexPath(root string) string {
	return resolve(root, c.IndexFile)
}

// DatabasePath returns the SQLite mirror location, or "" when disabled.
func (c *Config) DatabasePath(root string) string {
	if c.IndexDB == "" {
		return ""
	}
	return resolve(root, c.IndexDB)
}

func resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, filepath.FromSlash(p))
}
