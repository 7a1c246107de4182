package pathsync

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/paulschiretz/pgl-mirror/pkg/pool"
	"github.com/paulschiretz/pgl-mirror/pkg/util"
)

const copyBufferSize = 256 * 1024

var ioBufferPool = pool.NewFixedBuffer(copyBufferSize)

// copyFileDirect writes the content of src over dst in place and stamps dst with
// the source modification time. Missing parent directories are created. The
// write is not atomic: an interrupted copy leaves a truncated file that the
// next pass replaces, because its modification time stays behind the source.
func copyFileDirect(fs afero.Fs, src, dst string) (int64, error) {
	in, err := fs.Open(src)
	if err != nil {
		return 0, fmt.Errorf("failed to open source file %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat source file %s: %w", src, err)
	}

	// 1. Ensure the destination directory exists.
	if err := fs.MkdirAll(filepath.Dir(dst), util.UserWritableDirPerms); err != nil {
		return 0, fmt.Errorf("failed to create parent directory for %s: %w", dst, err)
	}

	// 2. Open the destination, truncating any previous content. The owner-write
	// bit is forced so later passes can replace the file.
	out, err := fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, util.WithUserWritePermission(info.Mode().Perm()))
	if err != nil {
		return 0, fmt.Errorf("failed to open destination file %s: %w", dst, err)
	}

	bufPtr := ioBufferPool.Get()
	defer ioBufferPool.Put(bufPtr)

	// 3. Copy content.
	n, err := io.CopyBuffer(out, in, *bufPtr)
	if err != nil {
		out.Close()
		return n, fmt.Errorf("failed to copy content from %s to %s: %w", src, dst, err)
	}

	// 4. Close before Chtimes, closing may touch the modification time.
	if err := out.Close(); err != nil {
		return n, fmt.Errorf("failed to close destination file %s: %w", dst, err)
	}

	// 5. Copy file timestamps.
	if err := fs.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return n, fmt.Errorf("failed to set timestamps on %s: %w", dst, err)
	}
	return n, nil
}

// lstat stats path without following a final symlink when fs supports it.
func lstat(fs afero.Fs, path string) (os.FileInfo, error) {
	if l, ok := fs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(path)
		return info, err
	}
	return fs.Stat(path)
}
