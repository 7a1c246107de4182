package promfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulschiretz/pgl-mirror/pkg/pathsync"
)

func TestRecord(t *testing.T) {
	e := New("pgl_mirror")
	report := &pathsync.Report{
		StartedAt:    time.Unix(1700000000, 0),
		Duration:     2 * time.Second,
		SourceFiles:  4,
		BytesWritten: 100,
		FilesCreated: []pathsync.Copied{
			{Entity: pathsync.EntityFile, RelPath: "a", Reason: pathsync.ReasonCreated},
			{Entity: pathsync.EntityFile, RelPath: "b", Reason: pathsync.ReasonCreated},
		},
		FoldersRemoved: []pathsync.Removed{{Entity: pathsync.EntityFolder, RelPath: "old"}},
		Errors:         []error{errors.New("boom")},
	}

	e.Record(report, nil)
	e.Record(nil, errors.New("scan failed"))

	assert.Equal(t, 2.0, testutil.ToFloat64(e.actionsTotal.WithLabelValues("file", "created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.actionsTotal.WithLabelValues("folder", "removed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.errorsTotal))
	assert.Equal(t, 100.0, testutil.ToFloat64(e.bytesWrittenTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.passesTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.passesTotal.WithLabelValues("aborted")))
	assert.Equal(t, 1700000002.0, testutil.ToFloat64(e.lastPassTimestamp))
	assert.Equal(t, 4.0, testutil.ToFloat64(e.rootEntries.WithLabelValues("source", "file")))
}

func TestWriteTextfile(t *testing.T) {
	e := New("pgl_mirror")
	e.Record(&pathsync.Report{BytesWritten: 42}, nil)

	path := filepath.Join(t.TempDir(), "textfile", "pgl_mirror.prom")
	require.NoError(t, e.WriteTextfile(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "pgl_mirror_bytes_written_total 42")
	assert.Contains(t, string(content), `pgl_mirror_passes_total{result="ok"} 1`)

	assert.Error(t, e.WriteTextfile(""))
}
