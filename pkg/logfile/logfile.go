// Package logfile is the append-only log sink with size based rotation. Rotated
// files are compressed and only the newest backups are kept.
package logfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"

	"github.com/paulschiretz/pgl-mirror/pkg/pool"
	"github.com/paulschiretz/pgl-mirror/pkg/util"
)

const rotationTimeFormat = "20060102T150405.000000000"

var compressBufferPool = pool.NewFixedBuffer(256 * 1024)

// Options controls rotation. A MaxSizeBytes of zero disables rotation; a
// MaxBackups of zero keeps every archive.
type Options struct {
	MaxSizeBytes int64
	MaxBackups   int
	Format       Format
}

// File is an io.Writer over the log file that is safe for concurrent use.
type File struct {
	mu   sync.Mutex
	path string
	opts Options
	f    *os.File
	size int64
}

// Open opens (or creates) the log file at path for appending.
func Open(path string, opts Options) (*File, error) {
	if opts.Format == "" {
		opts.Format = Gzip
	}
	if err := os.MkdirAll(filepath.Dir(path), util.UserWritableDirPerms); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	l := &File{path: path, opts: opts}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *File) open() error {
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, util.UserWritableFilePerms)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", l.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to stat log file %s: %w", l.path, err)
	}
	l.f = f
	l.size = info.Size()
	return nil
}

// Path returns the path of the active log file.
func (l *File) Path() string { return l.path }

func (l *File) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return 0, os.ErrClosed
	}
	n, err := l.f.Write(p)
	l.size += int64(n)
	return n, err
}

// Close closes the active log file.
func (l *File) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

// RotateIfNeeded rotates the log when it has reached MaxSizeBytes. It is meant
// to be called between passes. Writes block while the file is being swapped,
// so nothing in here may log.
func (l *File) RotateIfNeeded() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.opts.MaxSizeBytes <= 0 || l.f == nil || l.size < l.opts.MaxSizeBytes {
		return false, nil
	}

	if err := l.f.Close(); err != nil {
		return false, fmt.Errorf("failed to close log file for rotation: %w", err)
	}
	l.f = nil

	rotated := fmt.Sprintf("%s.%s", l.path, time.Now().UTC().Format(rotationTimeFormat))
	if err := os.Rename(l.path, rotated); err != nil {
		// Keep logging into the old file rather than losing the sink.
		if openErr := l.open(); openErr != nil {
			return false, fmt.Errorf("failed to rotate log file: %w (reopen failed: %v)", err, openErr)
		}
		return false, fmt.Errorf("failed to rotate log file: %w", err)
	}
	if err := l.open(); err != nil {
		return false, err
	}

	archive := rotated + l.opts.Format.Extension()
	if err := compressFile(rotated, archive, l.opts.Format); err != nil {
		return true, fmt.Errorf("failed to compress rotated log %s: %w", rotated, err)
	}
	if err := os.Remove(rotated); err != nil {
		return true, fmt.Errorf("failed to remove uncompressed rotated log: %w", err)
	}
	return true, l.prune()
}

// prune removes the oldest archives beyond MaxBackups.
func (l *File) prune() error {
	if l.opts.MaxBackups <= 0 {
		return nil
	}
	archives, err := l.archives()
	if err != nil {
		return err
	}
	if len(archives) <= l.opts.MaxBackups {
		return nil
	}
	for _, old := range archives[:len(archives)-l.opts.MaxBackups] {
		if err := os.Remove(old); err != nil {
			return fmt.Errorf("failed to remove old log archive %s: %w", old, err)
		}
	}
	return nil
}

// archives lists rotated archives of this log, oldest first.
func (l *File) archives() ([]string, error) {
	dir, base := filepath.Split(l.path)
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list log directory: %w", err)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, base+".") {
			continue
		}
		if strings.HasSuffix(name, Gzip.Extension()) || strings.HasSuffix(name, Zstd.Extension()) {
			out = append(out, filepath.Join(dir, name))
		}
	}
	// The timestamp suffix sorts chronologically.
	slices.Sort(out)
	return out, nil
}

// compressFile writes src compressed to dst through a temporary file and a rename.
func compressFile(src, dst string, format Format) (retErr error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	targetF, err := os.CreateTemp(filepath.Dir(dst), "pgl-mirror-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp archive: %w", err)
	}
	tempName := targetF.Name()
	defer func() {
		if retErr != nil {
			targetF.Close()
			os.Remove(tempName)
		}
	}()

	bufWriter := bufio.NewWriterSize(targetF, 256*1024)
	var compressedWriter io.WriteCloser
	switch format {
	case Zstd:
		zstdWriter, err := zstd.NewWriter(bufWriter, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fmt.Errorf("failed to create zstd writer: %w", err)
		}
		compressedWriter = zstdWriter
	default:
		pgzipWriter, err := pgzip.NewWriterLevel(bufWriter, pgzip.DefaultCompression)
		if err != nil {
			return fmt.Errorf("failed to create gzip writer: %w", err)
		}
		compressedWriter = pgzipWriter
	}

	bufPtr := compressBufferPool.Get()
	defer compressBufferPool.Put(bufPtr)

	if _, err := io.CopyBuffer(compressedWriter, in, *bufPtr); err != nil {
		compressedWriter.Close()
		return fmt.Errorf("failed to compress: %w", err)
	}
	if err := compressedWriter.Close(); err != nil {
		return fmt.Errorf("compressed writer close failed: %w", err)
	}
	if err := bufWriter.Flush(); err != nil {
		return fmt.Errorf("buffer flush failed: %w", err)
	}
	if err := targetF.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tempName, dst); err != nil {
		return fmt.Errorf("failed to rename temp archive to final path: %w", err)
	}
	return nil
}
