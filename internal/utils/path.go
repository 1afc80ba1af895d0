package utils

import (
	"path/filepath"
)

// CanonicalizePath returns an absolute path with symlinks resolved. If
// symlink resolution fails the absolute path is returned; if that fails too,
// the input is returned unchanged.
func CanonicalizePath(path string) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	canonical, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return absPath
	}
	return canonical
}
