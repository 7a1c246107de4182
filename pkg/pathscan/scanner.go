// Package pathscan enumerates a directory tree into a PathSet.
package pathscan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/paulschiretz/pgl-mirror/pkg/plog"
	"github.com/paulschiretz/pgl-mirror/pkg/util"
)

// ErrNotDirectory is returned (wrapped in a ScanError) when a root exists but is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// ScanError reports that a root could not be enumerated. The pass that hit it
// must be aborted: an empty listing would make every entry look deleted.
type ScanError struct {
	Root string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("failed to scan %s: %v", e.Root, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// Scanner walks a root on an afero.Fs.
type Scanner struct {
	fs         afero.Fs
	exclusions exclusionSet
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithExclusions hides entries matching the given glob patterns from every scan.
// Excluded directories are not descended into.
func WithExclusions(patterns []string) Option {
	return func(s *Scanner) {
		s.exclusions = makeExclusionSet(patterns, util.IsHostCaseInsensitiveFS())
	}
}

// NewScanner creates a Scanner on fs.
func NewScanner(fs afero.Fs, opts ...Option) *Scanner {
	s := &Scanner{
		fs:         fs,
		exclusions: makeExclusionSet(nil, false),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// maxRootLinks bounds how many symlinks are followed to reach a root directory.
const maxRootLinks = 40

// Scan returns every file and folder below root. Entries are classified by
// their own type; a symlink to a directory is skipped, any other symlink counts
// as a file. A root that is itself a symlink is followed to its target.
//
// Only a root that cannot be listed is an error. An entry or subtree below it
// that cannot be read is logged, kept out of Files and Folders and listed in
// Unreadable instead.
func (s *Scanner) Scan(ctx context.Context, root string) (PathSet, error) {
	base, err := s.followRoot(root)
	if err != nil {
		return PathSet{}, &ScanError{Root: root, Err: err}
	}
	info, err := s.fs.Stat(base)
	if err != nil {
		return PathSet{}, &ScanError{Root: root, Err: err}
	}
	if !info.IsDir() {
		return PathSet{}, &ScanError{Root: root, Err: ErrNotDirectory}
	}

	set := NewPathSet()
	walkErr := afero.Walk(s.fs, base, func(absPath string, info os.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if absPath == base {
			return err
		}

		rel, relErr := filepath.Rel(base, absPath)
		if relErr != nil {
			return fmt.Errorf("could not compute relative path for %s: %w", absPath, relErr)
		}
		key := util.NormalizePath(rel)

		if err != nil {
			// A folder that cannot be listed was already added on the way in.
			plog.Warn("Skipping unreadable entry", "root", root, "path", key, "error", err)
			set.Folders.Remove(key)
			set.Unreadable.Add(key)
			return nil
		}

		if s.exclusions.matches(key) {
			plog.Debug("Excluding path", "root", root, "path", key)
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		switch {
		case info.IsDir():
			set.Folders.Add(key)
		case info.Mode()&os.ModeSymlink != 0:
			target, statErr := s.fs.Stat(absPath)
			if statErr != nil {
				plog.Warn("Skipping dangling symlink", "path", absPath, "error", statErr)
				return nil
			}
			if target.IsDir() {
				plog.Debug("Skipping symlink to directory", "path", absPath)
				return nil
			}
			set.Files.Add(key)
		default:
			set.Files.Add(key)
		}
		return nil
	})
	if walkErr != nil {
		return PathSet{}, &ScanError{Root: root, Err: walkErr}
	}
	return set, nil
}

// followRoot returns the path afero.Walk should start from. Walk does not
// follow a symlink at its starting point, so a symlinked root is replaced by
// its target.
func (s *Scanner) followRoot(root string) (string, error) {
	linker, ok := s.fs.(afero.Symlinker)
	if !ok {
		return root, nil
	}
	current := root
	for n := 0; n < maxRootLinks; n++ {
		info, lstatCalled, err := linker.LstatIfPossible(current)
		if err != nil {
			return "", err
		}
		if !lstatCalled || info.Mode()&os.ModeSymlink == 0 {
			return current, nil
		}
		target, err := linker.ReadlinkIfPossible(current)
		if err != nil {
			return "", err
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(current), target)
		}
		current = target
	}
	return "", fmt.Errorf("too many levels of symbolic links at %s", root)
}

// ScanPair scans source and replica concurrently. The first failure cancels the
// other scan and is returned.
func (s *Scanner) ScanPair(ctx context.Context, sourceRoot, replicaRoot string) (src, rep PathSet, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var scanErr error
		src, scanErr = s.Scan(gctx, sourceRoot)
		return scanErr
	})
	g.Go(func() error {
		var scanErr error
		rep, scanErr = s.Scan(gctx, replicaRoot)
		return scanErr
	})
	if err := g.Wait(); err != nil {
		return PathSet{}, PathSet{}, err
	}
	return src, rep, nil
}
