package pathsync_test

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/paulschiretz/pgl-mirror/pkg/pathsync"
	"github.com/paulschiretz/pgl-mirror/pkg/plog"
)

func TestSyncMetrics_Adders(t *testing.T) {
	m := &pathsync.SyncMetrics{}

	m.AddFilesCopied(5)
	m.AddFilesUpdated(2)
	m.AddFilesDeleted(3)
	m.AddFilesUpToDate(10)
	m.AddBytesWritten(1024)
	m.AddDirsCreated(4)
	m.AddDirsUpdated(1)
	m.AddDirsDeleted(1)
	m.AddErrors(7)

	assert.EqualValues(t, 5, m.FilesCopied.Load())
	assert.EqualValues(t, 2, m.FilesUpdated.Load())
	assert.EqualValues(t, 3, m.FilesDeleted.Load())
	assert.EqualValues(t, 10, m.FilesUpToDate.Load())
	assert.EqualValues(t, 1024, m.BytesWritten.Load())
	assert.EqualValues(t, 4, m.DirsCreated.Load())
	assert.EqualValues(t, 1, m.DirsUpdated.Load())
	assert.EqualValues(t, 1, m.DirsDeleted.Load())
	assert.EqualValues(t, 7, m.Errors.Load())
}

func TestSyncMetrics_LogSummary(t *testing.T) {
	var logBuf bytes.Buffer
	plog.SetOutput(&logBuf)
	t.Cleanup(func() { plog.SetOutput(os.Stderr) })

	m := &pathsync.SyncMetrics{}
	m.AddFilesCopied(10)
	m.AddBytesWritten(2048)
	m.StartProgress("Test", time.Hour)
	m.StopProgress()
	m.StopProgress() // second stop is a no-op
	m.LogSummary("Test Summary")

	output := logBuf.String()
	assert.Contains(t, output, `msg="Test Summary"`)
	assert.Contains(t, output, "files_copied=10")
	assert.Contains(t, output, `bytes_written="2.0 KiB"`)
}

func TestNoopMetrics(t *testing.T) {
	var m pathsync.Metrics = &pathsync.NoopMetrics{}
	m.AddFilesCopied(1)
	m.StartProgress("noop", time.Millisecond)
	m.StopProgress()
	m.LogSummary("noop")
}
