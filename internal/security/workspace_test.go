package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkspace(t *testing.T) {
	t.Parallel()

	t.Run("explicit root", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		ws, err := NewWorkspace(dir, false)
		require.NoError(t, err)
		assert.Equal(t, dir, ws.Root())
		assert.False(t, ws.Unrestricted())
	})

	t.Run("empty root falls back to working directory", func(t *testing.T) {
		t.Parallel()
		ws, err := NewWorkspace("", false)
		require.NoError(t, err)
		wd, err := os.Getwd()
		require.NoError(t, err)
		assert.Equal(t, wd, ws.Root())
	})

	t.Run("relative root becomes absolute", func(t *testing.T) {
		t.Parallel()
		ws, err := NewWorkspace(".", false)
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(ws.Root()))
	})
}

func TestWorkspaceResolve(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	ws, err := NewWorkspace(root, false)
	require.NoError(t, err)

	existing := filepath.Join(root, "notes.txt")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0o644))

	t.Run("relative path resolves against root", func(t *testing.T) {
		t.Parallel()
		got, err := ws.Resolve("notes.txt")
		require.NoError(t, err)
		assert.Equal(t, existing, got)
	})

	t.Run("absolute path inside root", func(t *testing.T) {
		t.Parallel()
		got, err := ws.Resolve(existing)
		require.NoError(t, err)
		assert.Equal(t, existing, got)
	})

	t.Run("nonexistent file inside root is accepted", func(t *testing.T) {
		t.Parallel()
		got, err := ws.Resolve("sub/dir/new.txt")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "sub", "dir", "new.txt"), got)
	})

	t.Run("traversal is rejected", func(t *testing.T) {
		t.Parallel()
		_, err := ws.Resolve("../outside.txt")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrOutsideWorkspace)
	})

	t.Run("absolute path outside root is rejected", func(t *testing.T) {
		t.Parallel()
		_, err := ws.Resolve("/etc/passwd")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrOutsideWorkspace)
	})

	t.Run("empty path is rejected", func(t *testing.T) {
		t.Parallel()
		_, err := ws.Resolve("  ")
		assert.Error(t, err)
	})

	t.Run("NUL byte is rejected", func(t *testing.T) {
		t.Parallel()
		_, err := ws.Resolve("a\x00b")
		assert.Error(t, err)
	})
}

func TestWorkspaceResolveSymlink(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	outside := t.TempDir()
	ws, err := NewWorkspace(root, false)
	require.NoError(t, err)

	secret := filepath.Join(outside, "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("s"), 0o644))

	link := filepath.Join(root, "link.txt")
	if err := os.Symlink(secret, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	_, err = ws.Resolve("link.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOutsideWorkspace)
}

func TestWorkspaceUnrestricted(t *testing.T) {
	t.Parallel()

	ws, err := NewWorkspace(t.TempDir(), true)
	require.NoError(t, err)

	got, err := ws.Resolve("/etc/hostname")
	require.NoError(t, err)
	assert.Equal(t, "/etc/hostname", got)
}
