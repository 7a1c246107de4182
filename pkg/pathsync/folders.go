package pathsync

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/paulschiretz/pgl-mirror/pkg/pathscan"
	"github.com/paulschiretz/pgl-mirror/pkg/plog"
	"github.com/paulschiretz/pgl-mirror/pkg/util"
)

// reconcileFolders brings the replica's folder structure in line with the source.
func (p *pass) reconcileFolders(ctx context.Context, src, rep pathscan.PathSet) outcome {
	var out outcome
	srcIdx, repIdx := src.Index(), rep.Index()
	unread := newFence(src, rep)

	// Subtrees already replaced in full; nothing below them needs another look.
	var replaced []string
	covered := func(key string) bool { return underAny(key, replaced) }

	for _, key := range pathscan.Sorted(src.Folders.Intersect(rep.Folders)) {
		if ctx.Err() != nil {
			return out
		}
		if covered(key) || unread.blocks(key) {
			continue
		}
		modified, err := p.folderModified(key)
		if err != nil {
			plog.Warn("Could not compare folder", "path", key, "error", err)
			out.fail(&CopyError{RelPath: key, SourcePath: p.sourcePath(key), ReplicaPath: p.replicaPath(key), Err: err})
			continue
		}
		if !modified {
			continue
		}
		if unread.encloses(key) {
			// Its children are reconciled one by one instead.
			plog.Warn("Folder holds unreadable entries, not replacing it", "path", key)
			continue
		}
		replaced = append(replaced, key)
		out.merge(p.replaceFolder(key, src, srcIdx, repIdx))
	}

	for _, key := range pathscan.TopLevel(src.Folders.Difference(rep.Folders)) {
		if ctx.Err() != nil {
			return out
		}
		if covered(key) || unread.blocks(key) {
			continue
		}
		out.merge(p.copyFolderTree(key, ReasonCreated, srcIdx))
	}

	for _, key := range pathscan.TopLevel(rep.Folders.Difference(src.Folders)) {
		if ctx.Err() != nil {
			return out
		}
		if covered(key) || unread.blocks(key) {
			continue
		}
		if unread.encloses(key) {
			plog.Warn("Folder holds unreadable entries, not removing it", "path", key)
			continue
		}
		out.merge(p.removeFolderTree(key, repIdx))
	}
	return out
}

// folderModified reports whether the source folder is strictly newer than its replica.
func (p *pass) folderModified(key string) (bool, error) {
	srcInfo, err := p.fs.Stat(p.sourcePath(key))
	if err != nil {
		return false, err
	}
	repInfo, err := p.fs.Stat(p.replicaPath(key))
	if err != nil {
		return false, err
	}
	return srcInfo.ModTime().After(repInfo.ModTime()), nil
}

// replaceFolder deletes the replica subtree at key and copies the source subtree
// in its place. The folder itself is recorded as modified, everything below it as
// created. Replica entries the source no longer has are recorded as removed,
// each at its topmost level. Leftovers from a failed deletion are overwritten by
// the copy.
func (p *pass) replaceFolder(key string, src pathscan.PathSet, srcIdx, repIdx *pathscan.ChildIndex) outcome {
	var out outcome
	repFiles, repDirs := repIdx.Subtree(key)
	removal := p.removeSubtree(key, repIdx)
	out.errs = append(out.errs, removal.errs...)

	failed := make([]string, 0, len(removal.errs))
	for _, err := range removal.errs {
		if rerr, ok := err.(*RemovalError); ok {
			failed = append(failed, rerr.RelPath)
		}
	}
	removed := func(k string) bool {
		for _, f := range failed {
			if util.IsWithin(f, k) {
				return false
			}
		}
		return true
	}

	goneDirs := mapset.NewSet[string]()
	for _, d := range repDirs {
		if !src.Folders.Contains(d) {
			goneDirs.Add(d)
		}
	}
	topGone := pathscan.TopLevel(goneDirs)
	for _, d := range topGone {
		if removed(d) {
			out.record(Removed{Entity: EntityFolder, RelPath: d, ReplicaPath: p.replicaPath(d)})
		}
	}
	for _, f := range repFiles {
		if src.Files.Contains(f) || !removed(f) || underAny(f, topGone) {
			continue
		}
		out.record(Removed{Entity: EntityFile, RelPath: f, ReplicaPath: p.replicaPath(f)})
	}

	out.merge(p.copyFolderTree(key, ReasonModified, srcIdx))
	if len(removal.errs) == 0 {
		p.metrics.AddDirsUpdated(1)
	}
	return out
}

func underAny(key string, roots []string) bool {
	for _, r := range roots {
		if util.IsWithin(key, r) {
			return true
		}
	}
	return false
}

// copyFolderTree creates the replica folder for key and recursively fills it
// from the source index. Folder timestamps are applied after the contents, so
// writing children does not disturb them. A folder that cannot be created is
// skipped along with everything below it.
func (p *pass) copyFolderTree(key string, reason Reason, srcIdx *pathscan.ChildIndex) outcome {
	var out outcome
	srcAbs, repAbs := p.sourcePath(key), p.replicaPath(key)

	srcInfo, err := p.fs.Stat(srcAbs)
	if err != nil {
		plog.Warn("Could not read source folder", "path", srcAbs, "error", err)
		out.fail(&CopyError{RelPath: key, SourcePath: srcAbs, ReplicaPath: repAbs, Err: err})
		return out
	}

	// A replica entry of another type in the way is removed first.
	if repInfo, err := lstat(p.fs, repAbs); err == nil && !repInfo.IsDir() {
		if err := p.fs.Remove(repAbs); err != nil {
			plog.Warn("Could not remove file in the way of a folder", "path", repAbs, "error", err)
			out.fail(&RemovalError{RelPath: key, ReplicaPath: repAbs, Err: err})
			return out
		}
		p.metrics.AddFilesDeleted(1)
		out.record(Removed{Entity: EntityFile, RelPath: key, ReplicaPath: repAbs})
	}

	if err := p.fs.MkdirAll(repAbs, util.WithUserWritePermission(srcInfo.Mode().Perm())); err != nil {
		plog.Warn("Could not create folder", "path", repAbs, "error", err)
		out.fail(&CopyError{RelPath: key, SourcePath: srcAbs, ReplicaPath: repAbs, Err: err})
		return out
	}
	p.metrics.AddDirsCreated(1)
	out.record(Copied{Entity: EntityFolder, RelPath: key, SourcePath: srcAbs, ReplicaPath: repAbs, Reason: reason})

	for _, file := range srcIdx.Files(key) {
		out.merge(p.copyFile(file, ReasonCreated))
	}
	for _, dir := range srcIdx.Dirs(key) {
		out.merge(p.copyFolderTree(dir, ReasonCreated, srcIdx))
	}

	if err := p.fs.Chtimes(repAbs, srcInfo.ModTime(), srcInfo.ModTime()); err != nil {
		plog.Warn("Could not set folder timestamps", "path", repAbs, "error", err)
		out.fail(&CopyError{RelPath: key, SourcePath: srcAbs, ReplicaPath: repAbs, Err: err})
	}
	return out
}

// removeFolderTree deletes the replica folder at key with its contents and
// records a single folder removal when the folder is gone.
func (p *pass) removeFolderTree(key string, repIdx *pathscan.ChildIndex) outcome {
	out := p.removeSubtree(key, repIdx)
	if len(out.errs) == 0 {
		out.record(Removed{Entity: EntityFolder, RelPath: key, ReplicaPath: p.replicaPath(key)})
	}
	return out
}

// removeSubtree deletes files first, then folders from the deepest up, then the
// folder itself. Each failure is recorded and the remaining entries are still
// attempted.
func (p *pass) removeSubtree(key string, repIdx *pathscan.ChildIndex) outcome {
	var out outcome
	files, dirs := repIdx.Subtree(key)

	for _, f := range files {
		abs := p.replicaPath(f)
		if err := p.fs.Remove(abs); err != nil {
			plog.Warn("Could not remove file", "path", abs, "error", err)
			out.fail(&RemovalError{RelPath: f, ReplicaPath: abs, Err: err})
			continue
		}
		p.metrics.AddFilesDeleted(1)
	}
	for _, d := range append(dirs, key) {
		abs := p.replicaPath(d)
		if err := p.fs.Remove(abs); err != nil {
			plog.Warn("Could not remove folder", "path", abs, "error", err)
			out.fail(&RemovalError{RelPath: d, ReplicaPath: abs, Err: err})
			continue
		}
		p.metrics.AddDirsDeleted(1)
	}
	return out
}
