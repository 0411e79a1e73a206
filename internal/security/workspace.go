package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideWorkspace reports a path that escapes the workspace root.
var ErrOutsideWorkspace = errors.New("path is outside the workspace root")

// Workspace confines file-tool paths to a single root directory.
// Used to prevent path traversal attacks (CWE-22).
//
// Relative paths are resolved against the root; absolute paths must point
// into it. Symbolic links are resolved and re-checked so a link inside the
// root cannot reach outside it.
type Workspace struct {
	root         string
	unrestricted bool
}

// NewWorkspace creates a workspace guard rooted at root. An empty root means
// the current working directory. When unrestricted is true the guard still
// normalizes paths but no longer confines them; intended for trusted local
// runs only.
func NewWorkspace(root string, unrestricted bool) (*Workspace, error) {
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		root = wd
	}

	absRoot, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root %q: %w", root, err)
	}

	return &Workspace{root: absRoot, unrestricted: unrestricted}, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string {
	return w.root
}

// Unrestricted reports whether path confinement is disabled.
func (w *Workspace) Unrestricted() bool {
	return w.unrestricted
}

// Resolve validates path and returns its safe absolute form.
//
// The path is cleaned, resolved against the root when relative, and checked
// against the root prefix. If the target exists, symlinks are resolved and
// the result is checked again. A path to a not-yet-existing file is accepted
// as long as it stays inside the root (needed by the create_file tool).
func (w *Workspace) Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("path cannot be empty")
	}
	if strings.ContainsRune(path, 0) {
		return "", errors.New("path contains a NUL byte")
	}

	cleaned := filepath.Clean(path)
	if !filepath.IsAbs(cleaned) {
		cleaned = filepath.Join(w.root, cleaned)
	}
	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	if w.unrestricted {
		return absPath, nil
	}

	if !w.contains(absPath) {
		return "", fmt.Errorf("access denied: %q: %w", absPath, ErrOutsideWorkspace)
	}

	// Resolve symbolic links so a link inside the root cannot point outside.
	realPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Target does not exist yet; the lexical check above holds.
			return absPath, nil
		}
		return "", fmt.Errorf("resolving symbolic links for %q: %w", absPath, err)
	}

	if realPath != absPath && !w.contains(realPath) {
		return "", fmt.Errorf("access denied: symbolic link target %q: %w", realPath, ErrOutsideWorkspace)
	}

	return realPath, nil
}

// contains reports whether abs is the root itself or beneath it.
func (w *Workspace) contains(abs string) bool {
	rootWithSep := w.root + string(filepath.Separator)
	return abs == w.root || strings.HasPrefix(abs, rootWithSep)
}
