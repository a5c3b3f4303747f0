package daemon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for SingletonDaemon:
// - NewSingletonDaemon derives a stable lock path from the absolute watch dir
// - Different watch dirs get different lock files
// - First EnforceSingleton wins and records the PID, second loses
// - Release lets another instance win
// - Release handles nil lock gracefully

func TestNewSingletonDaemon_LockPath(t *testing.T) {
	t.Parallel()

	lockDir := t.TempDir()
	watchDir := t.TempDir()

	a, err := NewSingletonDaemon(watchDir, lockDir)
	require.NoError(t, err)
	b, err := NewSingletonDaemon(watchDir+string(filepath.Separator), lockDir)
	require.NoError(t, err)
	other, err := NewSingletonDaemon(t.TempDir(), lockDir)
	require.NoError(t, err)

	assert.Equal(t, lockDir, filepath.Dir(a.LockPath()))
	assert.Equal(t, a.LockPath(), b.LockPath(), "same directory, same lock")
	assert.NotEqual(t, a.LockPath(), other.LockPath())
	assert.Nil(t, a.lock) // lock not acquired yet
}

func TestSingletonDaemon_EnforceSingleton(t *testing.T) {
	t.Parallel()

	lockDir := t.TempDir()
	watchDir := t.TempDir()

	first, err := NewSingletonDaemon(watchDir, lockDir)
	require.NoError(t, err)
	won, err := first.EnforceSingleton()
	require.NoError(t, err)
	require.True(t, won)
	assert.Equal(t, os.Getpid(), first.HolderPID())

	second, err := NewSingletonDaemon(watchDir, lockDir)
	require.NoError(t, err)
	won, err = second.EnforceSingleton()
	require.NoError(t, err)
	assert.False(t, won, "second instance for the same dir must lose")
	assert.Equal(t, os.Getpid(), second.HolderPID())

	require.NoError(t, first.Release())

	won, err = second.EnforceSingleton()
	require.NoError(t, err)
	assert.True(t, won, "lock is free after release")
	require.NoError(t, second.Release())
}

func TestSingletonDaemon_Release_NilLock(t *testing.T) {
	t.Parallel()

	d, err := NewSingletonDaemon(t.TempDir(), t.TempDir())
	require.NoError(t, err)
	assert.NoError(t, d.Release())
	assert.Zero(t, d.HolderPID())
}
