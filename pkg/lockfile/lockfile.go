package lockfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/paulschiretz/pgl-mirror/pkg/plog"
	"github.com/paulschiretz/pgl-mirror/pkg/util"
)

// LockFileName is the name of the lock file created in the replica directory.
// The '~' prefix marks it as temporary. It is excluded from every scan.
const LockFileName = ".~pgl-mirror.lock"

// LockContent describes the holder. It is informational only: the lock itself
// is an OS file lock that disappears with the process, so a leftover file from
// a crashed run never blocks the next one.
type LockContent struct {
	PID        int64     `json:"pid"`
	Hostname   string    `json:"hostname"`
	AcquiredAt time.Time `json:"acquiredAt"`
	AppID      string    `json:"appID"`
}

// ErrLockActive is a structured error returned when a lock is already held by another process.
type ErrLockActive struct {
	Path      string
	PID       int64
	Hostname  string
	AppID     string
	TimeSince time.Duration
}

// Error implements the error interface for ErrLockActive.
func (e *ErrLockActive) Error() string {
	if e.PID == 0 {
		return fmt.Sprintf("lock %s is held by another process", e.Path)
	}
	return fmt.Sprintf("lock is active, held by PID %d on host '%s' (App: %s), acquired %s ago", e.PID, e.Hostname, e.AppID, e.TimeSince.Truncate(time.Second))
}

// Lock is a held replica lock.
type Lock struct {
	mu    sync.Mutex
	flock *flock.Flock
	held  bool
}

// Acquire takes a non-blocking lock on dirPath for the lifetime of the process.
// It returns (nil, *ErrLockActive) if another process holds it.
func Acquire(ctx context.Context, dirPath string, appID string) (*Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dirPath, util.UserWritableDirPerms); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	absLockFilePath := filepath.Join(dirPath, LockFileName)
	fl := flock.New(absLockFilePath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to access lock file: %w", err)
	}
	if !locked {
		_ = fl.Close()
		lockErr := &ErrLockActive{Path: absLockFilePath}
		if content, readErr := readLockContent(absLockFilePath); readErr == nil {
			lockErr.PID = content.PID
			lockErr.Hostname = content.Hostname
			lockErr.AppID = content.AppID
			lockErr.TimeSince = time.Since(content.AcquiredAt)
		}
		return nil, lockErr
	}

	hostname, _ := os.Hostname()
	content := LockContent{
		PID:        int64(os.Getpid()),
		Hostname:   hostname,
		AcquiredAt: time.Now(),
		AppID:      appID,
	}
	if err := writeLockContent(absLockFilePath, content); err != nil {
		plog.Debug("Could not record lock holder", "path", absLockFilePath, "error", err)
	}
	plog.Debug("Acquired lock", "path", absLockFilePath)
	return &Lock{flock: fl, held: true}, nil
}

// Release unlocks the lock file. The file stays in place: the lock is the
// advisory OS lock, not the file's existence. It is safe to call more than once.
func (l *Lock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		return
	}
	l.held = false

	if err := l.flock.Unlock(); err != nil {
		plog.Warn("Failed to unlock lock file", "path", l.flock.Path(), "error", err)
	}
}

func writeLockContent(path string, content LockContent) error {
	data, err := json.Marshal(content)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, util.UserWritableFilePerms)
}

func readLockContent(path string) (LockContent, error) {
	var content LockContent
	data, err := os.ReadFile(path)
	if err != nil {
		return content, err
	}
	if err := json.Unmarshal(data, &content); err != nil {
		return content, fmt.Errorf("lock file is corrupt or empty: %w", err)
	}
	return content, nil
}
