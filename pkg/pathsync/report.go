package pathsync

import (
	"time"

	"github.com/google/uuid"
)

// Report is the outcome of one reconciliation pass. It is built fresh for every
// pass and carries no state into the next one.
type Report struct {
	PassID      string
	SourceRoot  string
	ReplicaRoot string
	StartedAt   time.Time
	Duration    time.Duration
	// Interrupted is set when the pass was cancelled before it finished. The
	// records list what was applied up to that point.
	Interrupted bool

	// Entry counts of both roots as found by the first scan of the pass.
	SourceFiles    int
	SourceFolders  int
	ReplicaFiles   int
	ReplicaFolders int

	BytesWritten int64

	FoldersUpdated []Copied
	FoldersCreated []Copied
	FoldersRemoved []Removed
	FilesUpdated   []Copied
	FilesCreated   []Copied
	FilesRemoved   []Removed

	// Errors holds every *CopyError and *RemovalError hit during the pass.
	Errors []error
}

func newReport(sourceRoot, replicaRoot string) *Report {
	return &Report{
		PassID:      uuid.NewString(),
		SourceRoot:  sourceRoot,
		ReplicaRoot: replicaRoot,
		StartedAt:   time.Now(),
	}
}

// absorb files the records and errors of a finished step into the report.
func (r *Report) absorb(o outcome) {
	for _, a := range o.actions {
		switch rec := a.(type) {
		case Copied:
			switch {
			case rec.Entity == EntityFolder && rec.Reason == ReasonModified:
				r.FoldersUpdated = append(r.FoldersUpdated, rec)
			case rec.Entity == EntityFolder:
				r.FoldersCreated = append(r.FoldersCreated, rec)
			case rec.Reason == ReasonModified:
				r.FilesUpdated = append(r.FilesUpdated, rec)
			default:
				r.FilesCreated = append(r.FilesCreated, rec)
			}
		case Removed:
			if rec.Entity == EntityFolder {
				r.FoldersRemoved = append(r.FoldersRemoved, rec)
			} else {
				r.FilesRemoved = append(r.FilesRemoved, rec)
			}
		}
	}
	r.BytesWritten += o.bytes
	r.Errors = append(r.Errors, o.errs...)
}

// Actions returns every record in report order: folders updated, created and
// removed, then files updated, created and removed.
func (r *Report) Actions() []ActionRecord {
	out := make([]ActionRecord, 0, r.ActionCount())
	for _, c := range r.FoldersUpdated {
		out = append(out, c)
	}
	for _, c := range r.FoldersCreated {
		out = append(out, c)
	}
	for _, rm := range r.FoldersRemoved {
		out = append(out, rm)
	}
	for _, c := range r.FilesUpdated {
		out = append(out, c)
	}
	for _, c := range r.FilesCreated {
		out = append(out, c)
	}
	for _, rm := range r.FilesRemoved {
		out = append(out, rm)
	}
	return out
}

// ActionCount returns the total number of records.
func (r *Report) ActionCount() int {
	return len(r.FoldersUpdated) + len(r.FoldersCreated) + len(r.FoldersRemoved) +
		len(r.FilesUpdated) + len(r.FilesCreated) + len(r.FilesRemoved)
}

// IsEmpty reports whether the pass changed nothing and hit no errors.
func (r *Report) IsEmpty() bool {
	return r.ActionCount() == 0 && len(r.Errors) == 0
}

// outcome is what a single reconciliation step hands back to be merged into the Report.
type outcome struct {
	actions []ActionRecord
	errs    []error
	bytes   int64
}

func (o *outcome) record(a ActionRecord) { o.actions = append(o.actions, a) }
func (o *outcome) fail(err error)        { o.errs = append(o.errs, err) }

func (o *outcome) merge(other outcome) {
	o.actions = append(o.actions, other.actions...)
	o.errs = append(o.errs, other.errs...)
	o.bytes += other.bytes
}
