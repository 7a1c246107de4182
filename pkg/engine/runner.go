// Package engine drives the mirror: it validates the roots, locks the replica
// and then runs reconcile passes on a fixed interval until cancelled.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/afero"

	"github.com/paulschiretz/pgl-mirror/pkg/buildinfo"
	"github.com/paulschiretz/pgl-mirror/pkg/hints"
	"github.com/paulschiretz/pgl-mirror/pkg/lockfile"
	"github.com/paulschiretz/pgl-mirror/pkg/pathsync"
	"github.com/paulschiretz/pgl-mirror/pkg/plog"
	"github.com/paulschiretz/pgl-mirror/pkg/preflight"
)

// Reporter presents the outcome of a pass.
type Reporter interface {
	Render(rep *pathsync.Report) error
}

// Exporter records pass outcomes and persists them after every pass.
type Exporter interface {
	Record(rep *pathsync.Report, passErr error)
	WriteTextfile(path string) error
}

// Rotator rotates the log sink between passes.
type Rotator interface {
	RotateIfNeeded() (bool, error)
}

type Runner struct {
	fs       afero.Fs
	reporter Reporter
	exporter Exporter
	rotator  Rotator
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithExporter records every pass with e.
func WithExporter(e Exporter) RunnerOption {
	return func(r *Runner) { r.exporter = e }
}

// WithRotator rotates the log sink after every pass.
func WithRotator(rot Rotator) RunnerOption {
	return func(r *Runner) { r.rotator = rot }
}

// NewRunner creates a Runner mirroring on fs and presenting reports through reporter.
func NewRunner(fs afero.Fs, reporter Reporter, opts ...RunnerOption) *Runner {
	r := &Runner{fs: fs, reporter: reporter}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the plan. It returns when the context is cancelled (with the
// context's error), after the single pass of a Once plan, or after MaxPasses.
// A pass that aborts with a scan error is logged and retried at the next
// interval; only a Once plan returns it.
func (r *Runner) Run(ctx context.Context, p *Plan) error {
	// Check for cancellation at the very beginning.
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !p.Once && p.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", p.Interval)
	}

	if err := preflight.Run(p.Preflight, p.SourceRoot, p.ReplicaRoot); err != nil {
		return fmt.Errorf("preflight failed: %w", err)
	}

	if p.Lock {
		releaseLock, err := r.acquireReplicaLock(ctx, p.ReplicaRoot)
		if err != nil {
			return err
		}
		defer releaseLock()
	}

	reconciler := pathsync.NewReconciler(r.fs,
		pathsync.WithDetection(p.Detection),
		pathsync.WithExclusions(p.Exclusions),
		pathsync.WithMetrics(p.Metrics, p.ProgressInterval),
	)

	plog.Info("Starting mirror", "source", p.SourceRoot, "replica", p.ReplicaRoot, "interval", p.Interval)
	for passNo := 1; ; passNo++ {
		err := r.runPass(ctx, reconciler, p)
		if ctx.Err() != nil {
			plog.Info("Mirror stopped", "passes", passNo)
			return ctx.Err()
		}
		if err != nil {
			if p.Once {
				return err
			}
			plog.Error("Pass aborted, retrying at next interval", "pass", passNo, "error", err)
		}
		if p.Once || (p.MaxPasses > 0 && passNo >= p.MaxPasses) {
			return nil
		}

		plog.Info("Next pass", "in", p.Interval, "at", time.Now().Add(p.Interval).Format(time.TimeOnly))
		timer := time.NewTimer(p.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			plog.Info("Mirror stopped", "passes", passNo)
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// runPass reconciles once and hands the report, complete or interrupted, to the
// collaborators. Their failures are logged; only the reconcile error is returned.
func (r *Runner) runPass(ctx context.Context, reconciler *pathsync.Reconciler, p *Plan) error {
	report, err := reconciler.Reconcile(ctx, p.SourceRoot, p.ReplicaRoot)

	// A cancelled pass is still rendered so the changes it applied are not lost.
	if report != nil {
		if rerr := r.reporter.Render(report); rerr != nil {
			plog.Warn("Could not render report", "error", rerr)
		}
	}

	if r.exporter != nil {
		r.exporter.Record(report, err)
		if p.MetricsTextfile != "" {
			if werr := r.exporter.WriteTextfile(p.MetricsTextfile); werr != nil {
				plog.Warn("Could not write metrics textfile", "path", p.MetricsTextfile, "error", werr)
			}
		}
	}

	if r.rotator != nil {
		if rotated, rerr := r.rotator.RotateIfNeeded(); rerr != nil {
			plog.Warn("Could not rotate log file", "error", rerr)
		} else if rotated {
			plog.Debug("Log file rotated")
		}
	}
	return err
}

// acquireReplicaLock takes the replica lock for the lifetime of Run.
// It returns a release function that must be called to unlock the directory.
// A lock held by another mirror is returned as a hint.
func (r *Runner) acquireReplicaLock(ctx context.Context, replicaRoot string) (func(), error) {
	appID := fmt.Sprintf("%s:%s", buildinfo.AppID, replicaRoot)

	plog.Debug("Attempting to acquire lock", "path", replicaRoot)
	lock, err := lockfile.Acquire(ctx, replicaRoot, appID)
	if err != nil {
		var lockErr *lockfile.ErrLockActive
		if errors.As(err, &lockErr) {
			plog.Warn("Another mirror is already running for this replica", "details", lockErr.Error())
			return nil, hints.Wrap(err)
		}
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	plog.Debug("Lock acquired successfully.")

	return lock.Release, nil
}
