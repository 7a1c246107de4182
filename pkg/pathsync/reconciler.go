// Package pathsync reconciles a replica directory tree against a source tree.
//
// A pass runs in two phases. The folders phase scans both roots, replaces the
// replica subtree of every folder whose source side is strictly newer, copies
// folders that exist only in the source (with their full contents) and deletes
// folders that exist only in the replica. The roots are then scanned again and
// the files phase replaces newer files, copies new files and deletes orphaned
// ones. Every change is recorded in the pass Report; failures on a single entry
// are recorded as errors and never abort the pass. Entries a scan could not
// read are left alone on both sides.
package pathsync

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/afero"

	"github.com/paulschiretz/pgl-mirror/pkg/pathscan"
	"github.com/paulschiretz/pgl-mirror/pkg/plog"
	"github.com/paulschiretz/pgl-mirror/pkg/util"
)

// Reconciler applies one-way mirror passes. It holds configuration only; every
// call to Reconcile starts from fresh scans.
type Reconciler struct {
	fs               afero.Fs
	detection        Detection
	exclusions       []string
	metricsEnabled   bool
	progressInterval time.Duration
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithDetection selects how files present on both sides are compared.
func WithDetection(d Detection) Option {
	return func(r *Reconciler) { r.detection = d }
}

// WithExclusions hides matching entries from both scans, so they are neither
// copied nor deleted.
func WithExclusions(patterns []string) Option {
	return func(r *Reconciler) { r.exclusions = append([]string(nil), patterns...) }
}

// WithMetrics enables per-pass counters and periodic progress logging.
func WithMetrics(enabled bool, progressInterval time.Duration) Option {
	return func(r *Reconciler) {
		r.metricsEnabled = enabled
		if progressInterval > 0 {
			r.progressInterval = progressInterval
		}
	}
}

// NewReconciler creates a Reconciler operating on fs.
func NewReconciler(fs afero.Fs, opts ...Option) *Reconciler {
	r := &Reconciler{
		fs:               fs,
		detection:        DetectModTime,
		progressInterval: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// pass carries the fixed inputs of one Reconcile call. Results are returned as
// outcome values by each step, never stored here.
type pass struct {
	fs          afero.Fs
	sourceRoot  string
	replicaRoot string
	detection   Detection
	metrics     Metrics
}

func (p *pass) sourcePath(key string) string  { return util.DenormalizePath(p.sourceRoot, key) }
func (p *pass) replicaPath(key string) string { return util.DenormalizePath(p.replicaRoot, key) }

// Reconcile runs one pass. A *pathscan.ScanError or a cancelled context ends the
// pass early; the partial report is returned together with the error and, on
// cancellation, marked Interrupted. Per-entry
// failures never produce an error here, they are listed in Report.Errors.
func (r *Reconciler) Reconcile(ctx context.Context, sourceRoot, replicaRoot string) (*Report, error) {
	report := newReport(sourceRoot, replicaRoot)
	defer func() {
		report.Duration = time.Since(report.StartedAt)
		report.Interrupted = ctx.Err() != nil
	}()

	var m Metrics = &NoopMetrics{}
	if r.metricsEnabled {
		m = &SyncMetrics{}
	}
	m.StartProgress("Sync progress", r.progressInterval)
	defer m.StopProgress()

	if err := r.fs.MkdirAll(replicaRoot, util.UserWritableDirPerms); err != nil {
		return report, fmt.Errorf("failed to create replica root %s: %w", replicaRoot, err)
	}

	p := &pass{
		fs:          r.fs,
		sourceRoot:  sourceRoot,
		replicaRoot: replicaRoot,
		detection:   r.detection,
		metrics:     m,
	}
	scanner := pathscan.NewScanner(r.fs, pathscan.WithExclusions(r.exclusions))

	src, rep, err := scanner.ScanPair(ctx, sourceRoot, replicaRoot)
	if err != nil {
		return report, err
	}
	report.SourceFiles, report.SourceFolders = src.FileCount(), src.FolderCount()
	report.ReplicaFiles, report.ReplicaFolders = rep.FileCount(), rep.FolderCount()
	plog.Info("Scanned roots",
		"pass", report.PassID,
		"source_files", report.SourceFiles,
		"source_folders", report.SourceFolders,
		"replica_files", report.ReplicaFiles,
		"replica_folders", report.ReplicaFolders,
		"unreadable", src.Unreadable.Cardinality()+rep.Unreadable.Cardinality(),
	)

	report.absorb(p.reconcileFolders(ctx, src, rep))
	if err := ctx.Err(); err != nil {
		return report, err
	}

	// The folders phase changed the replica; the files phase needs a fresh view.
	src, rep, err = scanner.ScanPair(ctx, sourceRoot, replicaRoot)
	if err != nil {
		return report, err
	}
	report.absorb(p.reconcileFiles(ctx, src, rep))

	m.AddErrors(int64(len(report.Errors)))
	m.LogSummary("Pass finished")
	return report, ctx.Err()
}
