// Package daemon keeps a single watcher per log directory.
package daemon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

// SingletonDaemon manages daemon singleton enforcement.
// It ensures only one watcher runs per watched directory using a file lock
// keyed by the directory's absolute path.
type SingletonDaemon struct {
	watchDir string
	lockPath string
	lock     *flock.Flock
}

// NewSingletonDaemon creates a new singleton daemon manager for watchDir.
// Lock files live in lockDir; an empty lockDir uses DefaultLockDir().
func NewSingletonDaemon(watchDir, lockDir string) (*SingletonDaemon, error) {
	abs, err := filepath.Abs(watchDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", watchDir, err)
	}
	if lockDir == "" {
		lockDir = DefaultLockDir()
	}
	if err := os.MkdirAll(lockDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	return &SingletonDaemon{
		watchDir: abs,
		lockPath: filepath.Join(lockDir, lockName(abs)),
	}, nil
}

// DefaultLockDir returns ~/.ictwatch, or the temp dir when there is no home.
func DefaultLockDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), "ictwatch")
	}
	return filepath.Join(home, ".ictwatch")
}

func lockName(absDir string) string {
	sum := sha256.Sum256([]byte(absDir))
	return "watch-" + hex.EncodeToString(sum[:])[:12] + ".lock"
}

// LockPath returns the lock file guarding the watched directory.
func (s *SingletonDaemon) LockPath() string {
	return s.lockPath
}

// EnforceSingleton attempts to become the singleton instance.
// Returns (true, nil) if this process won and should continue.
// Returns (false, nil) if another instance is watching the same directory.
// Returns (false, err) on actual errors.
func (s *SingletonDaemon) EnforceSingleton() (bool, error) {
	s.lock = flock.New(s.lockPath)

	locked, err := s.lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return false, nil
	}

	// Record the holder for diagnostics; the lock itself is the flock.
	if err := os.WriteFile(s.lockPath, []byte(strconv.Itoa(os.Getpid())+"\n"+s.watchDir+"\n"), 0644); err != nil {
		s.lock.Unlock()
		return false, fmt.Errorf("failed to write lock file: %w", err)
	}
	return true, nil
}

// HolderPID returns the PID recorded by the current lock holder, or 0.
func (s *SingletonDaemon) HolderPID() int {
	data, err := os.ReadFile(s.lockPath)
	if err != nil {
		return 0
	}
	first, _, _ := strings.Cut(string(data), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		return 0
	}
	return pid
}

// Release releases the file lock (called on shutdown).
func (s *SingletonDaemon) Release() error {
	if s.lock != nil {
		return s.lock.Unlock()
	}
	return nil
}
