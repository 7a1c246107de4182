package lockfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAcquireAndRelease verifies the basic functionality of acquiring and releasing a lock.
func TestAcquireAndRelease(t *testing.T) {
	dir := t.TempDir()
	expectedLockPath := filepath.Join(dir, LockFileName)

	lock, err := Acquire(context.Background(), dir, "test-app")
	require.NoError(t, err)
	assert.FileExists(t, expectedLockPath)

	content, err := readLockContent(expectedLockPath)
	require.NoError(t, err)
	assert.Equal(t, "test-app", content.AppID)
	assert.EqualValues(t, os.Getpid(), content.PID)

	lock.Release()
	lock.Release() // second release is a no-op
	assert.FileExists(t, expectedLockPath, "the file stays; only the OS lock is dropped")

	again, err := Acquire(context.Background(), dir, "next-app")
	require.NoError(t, err)
	defer again.Release()
	content, err = readLockContent(expectedLockPath)
	require.NoError(t, err)
	assert.Equal(t, "next-app", content.AppID)
}

// TestReleaseKeepsSingleHolder locks through the same file after a release and
// checks that a contender is still refused.
func TestReleaseKeepsSingleHolder(t *testing.T) {
	dir := t.TempDir()

	first, err := Acquire(context.Background(), dir, "first")
	require.NoError(t, err)
	first.Release()

	second, err := Acquire(context.Background(), dir, "second")
	require.NoError(t, err)
	defer second.Release()

	_, err = Acquire(context.Background(), dir, "third")
	var lockErr *ErrLockActive
	require.ErrorAs(t, err, &lockErr)
	assert.Equal(t, "second", lockErr.AppID)
}

// TestContention ensures that a second holder cannot acquire an active lock.
func TestContention(t *testing.T) {
	dir := t.TempDir()

	lock1, err := Acquire(context.Background(), dir, "app-1")
	require.NoError(t, err)
	defer lock1.Release()

	_, err = Acquire(context.Background(), dir, "app-2")
	require.Error(t, err)

	var lockErr *ErrLockActive
	require.ErrorAs(t, err, &lockErr)
	assert.Equal(t, "app-1", lockErr.AppID)
	assert.Contains(t, lockErr.Error(), "lock is active")
}

// TestLeftoverLockFile verifies that a lock file without a live holder does not block.
func TestLeftoverLockFile(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, LockFileName)

	stale, err := json.Marshal(LockContent{PID: 12345, Hostname: "crashed-host", AcquiredAt: time.Now().Add(-time.Hour), AppID: "old"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(lockPath, stale, 0644))

	lock, err := Acquire(context.Background(), dir, "new-app")
	require.NoError(t, err)
	defer lock.Release()

	content, err := readLockContent(lockPath)
	require.NoError(t, err)
	assert.Equal(t, "new-app", content.AppID)
}

func TestAcquire_CreatesDirectoryAndHonorsContext(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "not", "yet")
	lock, err := Acquire(context.Background(), dir, "app")
	require.NoError(t, err)
	lock.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Acquire(ctx, dir, "app")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestErrLockActive_WithoutContent(t *testing.T) {
	err := &ErrLockActive{Path: "/r/.~pgl-mirror.lock"}
	assert.Equal(t, "lock /r/.~pgl-mirror.lock is held by another process", err.Error())
}
