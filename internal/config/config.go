// Package config loads user settings from config files and SDLC_* environment
// variables through viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sdlc-workflow/sdlc/internal/annotations"
	"github.com/sdlc-workflow/sdlc/internal/tasks"
)

var v *viper.Viper

// Initialize sets up viper. Config files are searched in order:
// .sdlc-workflow/config.yaml in the working directory or any parent, then
// ~/.config/sdlc/config.yaml. Environment variables use the SDLC_ prefix
// with "-" and "." mapped to "_" (git.timeout -> SDLC_GIT_TIMEOUT).
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	configFileSet := false
	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; ; dir = filepath.Dir(dir) {
			candidate := filepath.Join(dir, ".sdlc-workflow", "config.yaml")
			if _, err := os.Stat(candidate); err == nil {
				v.SetConfigFile(candidate)
				configFileSet = true
				break
			}
			if parent := filepath.Dir(dir); parent == dir {
				break
			}
		}
	}
	if !configFileSet {
		if home, err := os.UserHomeDir(); err == nil {
			candidate := filepath.Join(home, ".config", "sdlc", "config.yaml")
			if _, err := os.Stat(candidate); err == nil {
				v.SetConfigFile(candidate)
				configFileSet = true
			}
		}
	}

	v.SetEnvPrefix("SDLC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("json", false)
	v.SetDefault("verbose", false)
	v.SetDefault("output", "")
	v.SetDefault("index-db", "")
	v.SetDefault("log-file", "")
	v.SetDefault("annotations.extensions", annotations.DefaultExtensions)
	v.SetDefault("annotations.header-lines", annotations.DefaultHeaderLines)
	v.SetDefault("tasks.decisions-limit", tasks.DefaultDecisionsLimit)
	v.SetDefault("git.timeout", 30*time.Second)

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return fmt.Errorf("error reading config file: %w", err)
			}
		}
	}
	return nil
}

// ConfigFileUsed returns the path of the loaded config file, or ""
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// GetString retrieves a string configuration value
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration retrieves a duration configuration value
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// GetStringSlice retrieves a string list. A comma-separated env value such
// as SDLC_ANNOTATIONS_EXTENSIONS=".go,.py" is split.
func GetStringSlice(key string) []string {
	if v == nil {
		return nil
	}
	values := v.GetStringSlice(key)
	if joined := strings.Join(values, ","); strings.Contains(joined, ",") {
		values = strings.Split(joined, ",")
	}
	var out []string
	for _, s := range values {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Set sets a configuration value, overriding files and environment
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}
