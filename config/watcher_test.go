package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/stageflow/permission"
)

const watcherRolesV1 = `
roles:
  developer:
    - resource: src/**
      action: write
agents:
  builder: [developer]
`

const watcherRolesV2 = `
roles:
  developer:
    - resource: src/**
      action: write
    - resource: docs/**
      action: write
agents:
  builder: [developer]
`

func writeRoles(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func canWriteDocs(checker *permission.Checker) bool {
	return checker.CheckAccess(permission.AccessRequest{
		Agent: "builder", Resource: "docs/guide.md", Action: permission.ActionWrite,
	})
}

func TestWatcher_AppliesInitialRoles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.yaml")
	writeRoles(t, path, watcherRolesV1)

	checker := permission.NewChecker()

	w, err := NewWatcher(path, checker)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	assert.True(t, w.Running())
	assert.True(t, checker.CheckAccess(permission.AccessRequest{
		Agent: "builder", Resource: "src/main.go", Action: permission.ActionWrite,
	}))
	assert.False(t, canWriteDocs(checker))
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.yaml")
	writeRoles(t, path, watcherRolesV1)

	checker := permission.NewChecker()
	reloads := make(chan error, 8)

	w, err := NewWatcher(path, checker, func(o *WatcherOptions) {
		o.Debounce = 10 * time.Millisecond
		o.OnReload = func(err error) { reloads <- err }
	})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.False(t, canWriteDocs(checker))

	writeRoles(t, path, watcherRolesV2)

	select {
	case err := <-reloads:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}

	assert.True(t, canWriteDocs(checker))
}

func TestWatcher_ReloadFailureKeepsTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.yaml")
	writeRoles(t, path, watcherRolesV1)

	checker := permission.NewChecker()
	reloads := make(chan error, 8)

	w, err := NewWatcher(path, checker, func(o *WatcherOptions) {
		o.Debounce = 10 * time.Millisecond
		o.OnReload = func(err error) { reloads <- err }
	})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	writeRoles(t, path, "roles: [broken")

	select {
	case err := <-reloads:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}

	// The previous tables survive a bad reload.
	assert.True(t, checker.CheckAccess(permission.AccessRequest{
		Agent: "builder", Resource: "src/main.go", Action: permission.ActionWrite,
	}))
}

func TestWatcher_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roles.yaml")
	writeRoles(t, path, watcherRolesV1)

	checker := permission.NewChecker()
	reloads := make(chan error, 8)

	w, err := NewWatcher(path, checker, func(o *WatcherOptions) {
		o.Debounce = 10 * time.Millisecond
		o.OnReload = func(err error) { reloads <- err }
	})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o600))

	select {
	case <-reloads:
		t.Fatal("sibling file triggered a reload")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_StartFailsOnBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.yaml")
	writeRoles(t, path, "roles: [broken")

	w, err := NewWatcher(path, permission.NewChecker())
	require.NoError(t, err)

	require.Error(t, w.Start())
	assert.False(t, w.Running())
}

func TestWatcher_StartTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.yaml")
	writeRoles(t, path, watcherRolesV1)

	w, err := NewWatcher(path, permission.NewChecker())
	require.NoError(t, err)

	require.NoError(t, w.Start())
	defer w.Stop()

	require.Error(t, w.Start())
}

func TestWatcher_StopIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.yaml")
	writeRoles(t, path, watcherRolesV1)

	w, err := NewWatcher(path, permission.NewChecker())
	require.NoError(t, err)

	require.NoError(t, w.Start())
	w.Stop()
	w.Stop()
	assert.False(t, w.Running())
}
