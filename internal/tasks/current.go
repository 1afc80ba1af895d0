package tasks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sdlc-workflow/sdlc/internal/utils"
)

// CurrentFile is the pointer to the task being worked on
const CurrentFile = "current.txt"

// NoCurrentTask is the pointer value meaning no task is active
const NoCurrentTask = "none"

// ReadCurrent returns the task id recorded in tasksDir/current.txt, or ""
// when the file is missing, empty or "none".
func ReadCurrent(tasksDir string) (string, error) {
	path := filepath.Join(tasksDir, CurrentFile)
	data, err := os.ReadFile(path) // #nosec G304 - fixed name under the tasks directory
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	id := strings.TrimSpace(string(data))
	if id == "" || strings.EqualFold(id, NoCurrentTask) {
		return "", nil
	}
	if !utils.IsTaskID(id) {
		return "", fmt.Errorf("%s holds %q, not a task id", path, id)
	}
	return id, nil
}
