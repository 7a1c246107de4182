package pathsync

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/paulschiretz/pgl-mirror/pkg/plog"
)

// Metrics defines the interface for collecting and reporting synchronization statistics.
type Metrics interface {
	AddFilesCopied(n int64)
	AddFilesUpdated(n int64)
	AddFilesDeleted(n int64)
	AddFilesUpToDate(n int64)
	AddBytesWritten(n int64)
	AddDirsCreated(n int64)
	AddDirsUpdated(n int64)
	AddDirsDeleted(n int64)
	AddErrors(n int64)
	LogSummary(msg string)

	StartProgress(msg string, interval time.Duration)
	StopProgress()
}

// SyncMetrics holds the atomic counters for tracking a pass's progress.
// It is the concrete implementation of the Metrics interface.
type SyncMetrics struct {
	FilesCopied   atomic.Int64
	FilesUpdated  atomic.Int64
	FilesDeleted  atomic.Int64
	FilesUpToDate atomic.Int64
	BytesWritten  atomic.Int64
	DirsCreated   atomic.Int64
	DirsUpdated   atomic.Int64
	DirsDeleted   atomic.Int64
	Errors        atomic.Int64

	stopOnce  sync.Once
	stopChan  chan struct{}
	startTime time.Time
}

func (m *SyncMetrics) AddFilesCopied(n int64)   { m.FilesCopied.Add(n) }
func (m *SyncMetrics) AddFilesUpdated(n int64)  { m.FilesUpdated.Add(n) }
func (m *SyncMetrics) AddFilesDeleted(n int64)  { m.FilesDeleted.Add(n) }
func (m *SyncMetrics) AddFilesUpToDate(n int64) { m.FilesUpToDate.Add(n) }
func (m *SyncMetrics) AddBytesWritten(n int64)  { m.BytesWritten.Add(n) }
func (m *SyncMetrics) AddDirsCreated(n int64)   { m.DirsCreated.Add(n) }
func (m *SyncMetrics) AddDirsUpdated(n int64)   { m.DirsUpdated.Add(n) }
func (m *SyncMetrics) AddDirsDeleted(n int64)   { m.DirsDeleted.Add(n) }
func (m *SyncMetrics) AddErrors(n int64)        { m.Errors.Add(n) }

// StartProgress logs the counters every interval until StopProgress is called.
func (m *SyncMetrics) StartProgress(msg string, interval time.Duration) {
	m.startTime = time.Now()
	m.stopChan = make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.LogSummary(msg)
			case <-m.stopChan:
				return
			}
		}
	}()
}

func (m *SyncMetrics) StopProgress() {
	m.stopOnce.Do(func() {
		if m.stopChan != nil {
			close(m.stopChan)
		}
	})
}

// LogSummary prints the counters with a custom message.
// This can be called by a background ticker or at the end of the run.
func (m *SyncMetrics) LogSummary(msg string) {
	duration := time.Duration(0)
	if !m.startTime.IsZero() {
		duration = time.Since(m.startTime)
	}

	plog.Info(msg,
		"bytes_written", humanize.IBytes(uint64(m.BytesWritten.Load())),
		"files_copied", m.FilesCopied.Load(),
		"files_updated", m.FilesUpdated.Load(),
		"files_uptodate", m.FilesUpToDate.Load(),
		"files_deleted", m.FilesDeleted.Load(),
		"dirs_created", m.DirsCreated.Load(),
		"dirs_updated", m.DirsUpdated.Load(),
		"dirs_deleted", m.DirsDeleted.Load(),
		"errors", m.Errors.Load(),
		"duration", duration.Round(time.Millisecond),
	)
}

// NoopMetrics is an implementation of the Metrics interface that performs no operations.
// It can be used to disable metrics collection without changing the calling code.
type NoopMetrics struct{}

func (m *NoopMetrics) AddFilesCopied(n int64)                           {}
func (m *NoopMetrics) AddFilesUpdated(n int64)                          {}
func (m *NoopMetrics) AddFilesDeleted(n int64)                          {}
func (m *NoopMetrics) AddFilesUpToDate(n int64)                         {}
func (m *NoopMetrics) AddBytesWritten(n int64)                          {}
func (m *NoopMetrics) AddDirsCreated(n int64)                           {}
func (m *NoopMetrics) AddDirsUpdated(n int64)                           {}
func (m *NoopMetrics) AddDirsDeleted(n int64)                           {}
func (m *NoopMetrics) AddErrors(n int64)                                {}
func (m *NoopMetrics) LogSummary(msg string)                            {}
func (m *NoopMetrics) StartProgress(msg string, interval time.Duration) {}
func (m *NoopMetrics) StopProgress()                                    {}

// Statically assert that our types implement the interface.
var _ Metrics = (*SyncMetrics)(nil)
var _ Metrics = (*NoopMetrics)(nil)
