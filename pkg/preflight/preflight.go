// Package preflight provides functions for validation and checks that run before
// the first pass. Apart from creating a missing replica directory they leave the
// system unchanged.
package preflight

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulschiretz/pgl-mirror/pkg/util"
)

// ErrPathNesting is returned when source and replica overlap.
var ErrPathNesting = errors.New("source and replica must not be the same directory or nested in each other")

// CheckSourceAccessible validates that the source path exists, is a directory and can be listed.
func CheckSourceAccessible(srcPath string) error {
	srcInfo, err := os.Stat(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("source directory %s does not exist", srcPath)
		}
		return fmt.Errorf("cannot stat source directory %s: %w", srcPath, err)
	}

	if !srcInfo.IsDir() {
		return fmt.Errorf("source path %s is not a directory", srcPath)
	}

	if err := checkReadable(srcPath); err != nil {
		return fmt.Errorf("source directory %s is not readable: %w", srcPath, err)
	}
	return nil
}

// CheckReplicaAccessible ensures the replica is usable. It provides more
// user-friendly errors than letting os.MkdirAll fail.
//
// The checks include:
//  1. On Windows, verifies that the drive or network share (e.g., "Z:", "\\Server\Share") exists.
//  2. If the replica path exists, confirms it is a directory.
//  3. If it does not exist, confirms its deepest existing ancestor is an accessible directory.
func CheckReplicaAccessible(replicaPath string) error {
	if err := checkVolumeExists(replicaPath); err != nil {
		return err
	}

	info, err := os.Stat(replicaPath)
	if os.IsNotExist(err) {
		ancestor := filepath.Dir(replicaPath)
		for {
			ancestorInfo, statErr := os.Stat(ancestor)
			if statErr == nil {
				if !ancestorInfo.IsDir() {
					return fmt.Errorf("replica ancestor %s exists but is not a directory", ancestor)
				}
				break
			}
			if !os.IsNotExist(statErr) {
				return fmt.Errorf("cannot access ancestor directory %s: %w", ancestor, statErr)
			}
			parent := filepath.Dir(ancestor)
			if parent == ancestor {
				return fmt.Errorf("no existing ancestor found for replica path %s", replicaPath)
			}
			ancestor = parent
		}
		return nil
	} else if err != nil {
		return fmt.Errorf("cannot access replica path: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("replica path exists but is not a directory: %s", replicaPath)
	}
	return nil
}

// CheckReplicaWritable ensures the replica directory can be created and is writable
// by performing filesystem modifications.
func CheckReplicaWritable(replicaPath string) error {
	if err := os.MkdirAll(replicaPath, util.UserWritableDirPerms); err != nil {
		return fmt.Errorf("failed to create replica directory %s: %w", replicaPath, err)
	}

	// Perform a thorough write check by creating and deleting a temporary file.
	tempFile := filepath.Join(replicaPath, ".~pgl-mirror-writetest.tmp")
	f, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("replica directory %s is not writable: %w", replicaPath, err)
	}
	f.Close()
	_ = os.Remove(tempFile)
	return nil
}

// CheckPathNesting rejects a replica that equals the source or lies inside it,
// and a source inside the replica. Either would make the mirror feed on itself
// or delete its own source.
func CheckPathNesting(sourcePath, replicaPath string) error {
	src := comparablePath(sourcePath)
	rep := comparablePath(replicaPath)
	if src == rep || isSubPath(src, rep) || isSubPath(rep, src) {
		return fmt.Errorf("%w: source %s, replica %s", ErrPathNesting, sourcePath, replicaPath)
	}
	return nil
}

func comparablePath(p string) string {
	p = filepath.Clean(p)
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		p = resolved
	}
	if util.IsHostCaseInsensitiveFS() {
		p = strings.ToLower(p)
	}
	return p
}

// isSubPath reports whether child lies strictly below parent.
func isSubPath(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
