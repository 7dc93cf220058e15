// Package sanitize validates folder paths received from remote callers
// (the HTTP API and MCP tools) before they reach the ingest pipeline.
package sanitize

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrEmptyPath indicates an empty path was provided.
	ErrEmptyPath = errors.New("path cannot be empty")

	// ErrPathTraversal indicates a path contains a ".." segment.
	ErrPathTraversal = errors.New("path contains directory traversal")

	// ErrOutsideRoot indicates a path resolves outside the allowed root.
	ErrOutsideRoot = errors.New("path is outside the allowed root")
)

// FolderPath cleans path and returns it absolute.
//
// Any ".." segment is rejected before cleaning, so "a/../b" fails even
// though it would resolve inside the working directory. When root is
// non-empty the result must be root or lie beneath it; symlinks are
// resolved on both sides when the targets exist.
func FolderPath(path, root string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrEmptyPath
	}
	if hasTraversal(path) {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, path)
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if root == "" {
		return abs, nil
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve allowed root: %w", err)
	}
	rel, err := filepath.Rel(resolve(absRoot), resolve(abs))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s not under %s", ErrOutsideRoot, abs, absRoot)
	}
	return abs, nil
}

func hasTraversal(path string) bool {
	for _, seg := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return true
		}
	}
	return false
}

// resolve follows symlinks, falling back to the input for paths that do
// not exist yet.
func resolve(p string) string {
	if r, err := filepath.EvalSymlinks(p); err == nil {
		return r
	}
	return p
}
