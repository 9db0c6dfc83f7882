// Package filelock guards concurrent access to a workspace's files across
// both goroutines and OS processes. Two uses: the CLI's `run` command and
// the A2A server's message/send handler take the same
// `<workspace-root>/.orchestra.lock` before driving an orchestration, so two
// runs pointed at one workspace root never overlap (C15 in SPEC_FULL.md);
// and the write_file tool takes a per-path lock around its write so a
// CRAFTER and a GATE agent editing the same file never interleave writes.
package filelock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// ErrLockTimeout is returned by LockWithTimeout when the deadline elapses
// before the lock is acquired.
var ErrLockTimeout = errors.New("filelock: timed out waiting for lock")

// pollInterval is how often LockWithTimeout re-checks a contended lock.
const pollInterval = 10 * time.Millisecond

// LockMetrics describes how much contention one lock acquisition hit.
// Exposed via SetMonitor/LastMetrics so a long-running orchestrator process
// can log or alert when a workspace is under heavy concurrent use.
type LockMetrics struct {
	Attempts int
	Waited   time.Duration
	TimedOut bool
}

// Monitor is called with the metrics from the most recent lock attempt.
type Monitor func(path string, metrics LockMetrics)

// FileLock wraps a flock.Flock guarding one path.
type FileLock struct {
	flock   *flock.Flock
	path    string
	monitor Monitor
	last    LockMetrics
}

// NewFileLock returns a lock for path. The lock file is created on first
// Lock/TryLock/LockWithTimeout call.
func NewFileLock(path string) *FileLock {
	return &FileLock{
		flock: flock.New(path),
		path:  path,
	}
}

// SetMonitor registers a callback fired after every Lock and LockWithTimeout
// call (TryLock does not fire it). Pass nil to stop monitoring.
func (fl *FileLock) SetMonitor(m Monitor) {
	fl.monitor = m
}

// LastMetrics returns the metrics recorded by the most recent Lock or
// LockWithTimeout call.
func (fl *FileLock) LastMetrics() LockMetrics {
	return fl.last
}

func (fl *FileLock) record(m LockMetrics) {
	fl.last = m
	if fl.monitor != nil {
		fl.monitor(fl.path, m)
	}
}

// Lock acquires an exclusive lock, blocking until it is available.
func (fl *FileLock) Lock() error {
	start := time.Now()
	err := fl.flock.Lock()
	fl.record(LockMetrics{Attempts: 1, Waited: time.Since(start)})
	if err != nil {
		return fmt.Errorf("acquire lock on %s: %w", fl.path, err)
	}
	return nil
}

// TryLock attempts to acquire the lock without blocking.
func (fl *FileLock) TryLock() (bool, error) {
	acquired, err := fl.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("try lock on %s: %w", fl.path, err)
	}
	return acquired, nil
}

// LockWithTimeout polls for the lock, at pollInterval, until it is acquired
// or timeout elapses. An orchestration entry point that would rather reject
// a request than queue behind another run indefinitely should use this in
// place of Lock.
func (fl *FileLock) LockWithTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	acquired, err := fl.flock.TryLockContext(ctx, pollInterval)
	waited := time.Since(start)
	metrics := LockMetrics{
		Attempts: int(waited/pollInterval) + 1,
		Waited:   waited,
		TimedOut: !acquired,
	}
	fl.record(metrics)

	if !acquired {
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrLockTimeout, fl.path, err)
		}
		return fmt.Errorf("%w: %s", ErrLockTimeout, fl.path)
	}
	return nil
}

// Unlock releases the lock.
func (fl *FileLock) Unlock() error {
	if err := fl.flock.Unlock(); err != nil {
		return fmt.Errorf("release lock on %s: %w", fl.path, err)
	}
	return nil
}

// AtomicWrite writes data to path via a temp-file-then-rename so a reader
// (another agent's read_file call, or a concurrent orchestrator process)
// never observes a partial write. The temp file is created alongside path
// so the rename stays within one filesystem and is therefore atomic.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, 0644); err != nil {
		return fmt.Errorf("set permissions: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}

	tempFile = nil
	return nil
}

// LockAndWrite takes a lock on path+".lock", performs an AtomicWrite,
// releases the lock and removes the lock file. Used by the write_file tool
// so two agents editing the same workspace file never interleave their
// writes.
func LockAndWrite(path string, data []byte) error {
	lockPath := path + ".lock"
	lock := NewFileLock(lockPath)

	if err := lock.Lock(); err != nil {
		return err
	}
	defer func() {
		lock.Unlock()
		os.Remove(lockPath)
	}()

	return AtomicWrite(path, data)
}
