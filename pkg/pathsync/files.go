package pathsync

import (
	"context"

	"github.com/paulschiretz/pgl-mirror/pkg/pathscan"
	"github.com/paulschiretz/pgl-mirror/pkg/plog"
)

// reconcileFiles brings replica files in line with the source. It expects the
// folder structure to be reconciled already.
func (p *pass) reconcileFiles(ctx context.Context, src, rep pathscan.PathSet) outcome {
	var out outcome
	unread := newFence(src, rep)

	for _, key := range pathscan.Sorted(src.Files.Intersect(rep.Files)) {
		if ctx.Err() != nil {
			return out
		}
		if unread.blocks(key) {
			continue
		}
		changed, err := p.detection.fileChanged(p.fs, p.sourcePath(key), p.replicaPath(key))
		if err != nil {
			plog.Warn("Could not compare file", "path", key, "error", err)
			out.fail(&CopyError{RelPath: key, SourcePath: p.sourcePath(key), ReplicaPath: p.replicaPath(key), Err: err})
			continue
		}
		if !changed {
			p.metrics.AddFilesUpToDate(1)
			continue
		}
		out.merge(p.replaceFile(key))
	}

	for _, key := range pathscan.Sorted(src.Files.Difference(rep.Files)) {
		if ctx.Err() != nil {
			return out
		}
		if unread.blocks(key) {
			continue
		}
		out.merge(p.copyFile(key, ReasonCreated))
	}

	for _, key := range pathscan.Sorted(rep.Files.Difference(src.Files)) {
		if ctx.Err() != nil {
			return out
		}
		if unread.blocks(key) {
			continue
		}
		out.merge(p.removeFile(key))
	}
	return out
}

// replaceFile deletes the stale replica copy and writes the source file again.
func (p *pass) replaceFile(key string) outcome {
	repAbs := p.replicaPath(key)
	if err := p.fs.Remove(repAbs); err != nil {
		plog.Warn("Could not remove outdated file", "path", repAbs, "error", err)
		return outcome{errs: []error{&RemovalError{RelPath: key, ReplicaPath: repAbs, Err: err}}}
	}
	return p.copyFile(key, ReasonModified)
}

// copyFile copies one file and records it with the given reason.
func (p *pass) copyFile(key string, reason Reason) outcome {
	var out outcome
	srcAbs, repAbs := p.sourcePath(key), p.replicaPath(key)

	n, err := copyFileDirect(p.fs, srcAbs, repAbs)
	out.bytes += n
	p.metrics.AddBytesWritten(n)
	if err != nil {
		plog.Warn("Could not copy file", "path", key, "error", err)
		out.fail(&CopyError{RelPath: key, SourcePath: srcAbs, ReplicaPath: repAbs, Err: err})
		return out
	}

	if reason == ReasonModified {
		p.metrics.AddFilesUpdated(1)
	} else {
		p.metrics.AddFilesCopied(1)
	}
	out.record(Copied{Entity: EntityFile, RelPath: key, SourcePath: srcAbs, ReplicaPath: repAbs, Reason: reason})
	return out
}

// removeFile deletes one orphaned replica file.
func (p *pass) removeFile(key string) outcome {
	var out outcome
	repAbs := p.replicaPath(key)
	if err := p.fs.Remove(repAbs); err != nil {
		plog.Warn("Could not remove file", "path", repAbs, "error", err)
		out.fail(&RemovalError{RelPath: key, ReplicaPath: repAbs, Err: err})
		return out
	}
	p.metrics.AddFilesDeleted(1)
	out.record(Removed{Entity: EntityFile, RelPath: key, ReplicaPath: repAbs})
	return out
}
