package pathscan

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createFile is a helper to create a file with content.
func createFile(t *testing.T, afs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afs.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, afero.WriteFile(afs, path, []byte(content), 0644))
}

func TestScan(t *testing.T) {
	afs := afero.NewMemMapFs()
	root := "/src"
	createFile(t, afs, "/src/a.txt", "a")
	createFile(t, afs, "/src/docs/b.txt", "b")
	createFile(t, afs, "/src/docs/deep/c.txt", "c")
	require.NoError(t, afs.MkdirAll("/src/empty", 0755))

	set, err := NewScanner(afs).Scan(context.Background(), root)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a.txt", "docs/b.txt", "docs/deep/c.txt"}, set.Files.ToSlice())
	assert.ElementsMatch(t, []string{"docs", "docs/deep", "empty"}, set.Folders.ToSlice())
	assert.Equal(t, 3, set.FileCount())
	assert.Equal(t, 3, set.FolderCount())
}

func TestScan_EmptyRoot(t *testing.T) {
	afs := afero.NewMemMapFs()
	require.NoError(t, afs.MkdirAll("/rep", 0755))

	set, err := NewScanner(afs).Scan(context.Background(), "/rep")
	require.NoError(t, err)
	assert.Zero(t, set.FileCount())
	assert.Zero(t, set.FolderCount())
}

func TestScan_Errors(t *testing.T) {
	afs := afero.NewMemMapFs()
	createFile(t, afs, "/file.txt", "x")

	t.Run("Missing root", func(t *testing.T) {
		_, err := NewScanner(afs).Scan(context.Background(), "/missing")
		var scanErr *ScanError
		require.ErrorAs(t, err, &scanErr)
		assert.Equal(t, "/missing", scanErr.Root)
		assert.True(t, errors.Is(err, fs.ErrNotExist))
	})

	t.Run("Root is a file", func(t *testing.T) {
		_, err := NewScanner(afs).Scan(context.Background(), "/file.txt")
		assert.ErrorIs(t, err, ErrNotDirectory)
	})

	t.Run("Cancelled context", func(t *testing.T) {
		require.NoError(t, afs.MkdirAll("/tree/sub", 0755))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewScanner(afs).Scan(ctx, "/tree")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestScan_Exclusions(t *testing.T) {
	afs := afero.NewMemMapFs()
	createFile(t, afs, "/src/keep.txt", "k")
	createFile(t, afs, "/src/skip.tmp", "s")
	createFile(t, afs, "/src/node_modules/pkg/index.js", "n")
	createFile(t, afs, "/src/logs/app.log", "l")
	createFile(t, afs, "/src/.~pgl-mirror.lock", "")

	scanner := NewScanner(afs, WithExclusions([]string{"*.tmp", "node_modules", "**/*.log", ".~pgl-mirror.lock"}))
	set, err := scanner.Scan(context.Background(), "/src")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"keep.txt"}, set.Files.ToSlice())
	assert.ElementsMatch(t, []string{"logs"}, set.Folders.ToSlice())
}

func TestScanPair(t *testing.T) {
	afs := afero.NewMemMapFs()
	createFile(t, afs, "/src/a.txt", "a")
	require.NoError(t, afs.MkdirAll("/rep/old", 0755))

	src, rep, err := NewScanner(afs).ScanPair(context.Background(), "/src", "/rep")
	require.NoError(t, err)
	assert.True(t, src.Files.Contains("a.txt"))
	assert.True(t, rep.Folders.Contains("old"))

	_, _, err = NewScanner(afs).ScanPair(context.Background(), "/src", "/nope")
	var scanErr *ScanError
	require.ErrorAs(t, err, &scanErr)
	assert.Equal(t, "/nope", scanErr.Root)
}

func TestScan_OsFs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub", "inner"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "inner", "f.txt"), []byte("f"), 0644))

	if runtime.GOOS != "windows" {
		outside := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(outside, "target.txt"), []byte("t"), 0644))
		require.NoError(t, os.Symlink(outside, filepath.Join(root, "dirlink")))
		require.NoError(t, os.Symlink(filepath.Join(outside, "target.txt"), filepath.Join(root, "filelink")))
	}

	set, err := NewScanner(afero.NewOsFs()).Scan(context.Background(), root)
	require.NoError(t, err)

	assert.True(t, set.Folders.Contains("sub/inner"))
	assert.True(t, set.Files.Contains("sub/inner/f.txt"))
	if runtime.GOOS != "windows" {
		assert.False(t, set.Folders.Contains("dirlink"))
		assert.False(t, set.Files.Contains("dirlink"))
		assert.True(t, set.Files.Contains("filelink"))
	}
}

// openFailFs refuses to open the listed paths.
type openFailFs struct {
	afero.Fs
	fail map[string]bool
}

func (o *openFailFs) Open(name string) (afero.File, error) {
	if o.fail[name] {
		return nil, &os.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
	}
	return o.Fs.Open(name)
}

func TestScan_UnreadableSubtree(t *testing.T) {
	base := afero.NewMemMapFs()
	createFile(t, base, "/src/a.txt", "a")
	createFile(t, base, "/src/private/secret.txt", "s")
	createFile(t, base, "/src/public/deep/b.txt", "b")
	afs := &openFailFs{Fs: base, fail: map[string]bool{"/src/private": true}}

	set, err := NewScanner(afs).Scan(context.Background(), "/src")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a.txt", "public/deep/b.txt"}, set.Files.ToSlice())
	assert.ElementsMatch(t, []string{"public", "public/deep"}, set.Folders.ToSlice())
	assert.ElementsMatch(t, []string{"private"}, set.Unreadable.ToSlice())

	t.Run("Unreadable root", func(t *testing.T) {
		afs := &openFailFs{Fs: base, fail: map[string]bool{"/src": true}}
		_, err := NewScanner(afs).Scan(context.Background(), "/src")
		var scanErr *ScanError
		require.ErrorAs(t, err, &scanErr)
		assert.ErrorIs(t, err, fs.ErrPermission)
	})
}

func TestScan_SymlinkedRoot(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation needs privileges on windows")
	}
	realDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(realDir, "d"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(realDir, "d", "x.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(realDir, "top.txt"), []byte("t"), 0644))

	linkDir := t.TempDir()
	require.NoError(t, os.Symlink(realDir, filepath.Join(linkDir, "first")))
	// A relative link to a link resolves through both.
	require.NoError(t, os.Symlink("first", filepath.Join(linkDir, "second")))

	for _, root := range []string{filepath.Join(linkDir, "first"), filepath.Join(linkDir, "second")} {
		set, err := NewScanner(afero.NewOsFs()).Scan(context.Background(), root)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"d/x.txt", "top.txt"}, set.Files.ToSlice(), root)
		assert.ElementsMatch(t, []string{"d"}, set.Folders.ToSlice(), root)
	}

	t.Run("Symlink to a file", func(t *testing.T) {
		link := filepath.Join(linkDir, "filelink")
		require.NoError(t, os.Symlink(filepath.Join(realDir, "top.txt"), link))
		_, err := NewScanner(afero.NewOsFs()).Scan(context.Background(), link)
		assert.ErrorIs(t, err, ErrNotDirectory)
	})
}
