package util

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Permission constants for file and directory modes.
const (
	// PermUserRead is the user-read permission bit (0400).
	PermUserRead os.FileMode = 0400
	// PermUserWrite is the user-write permission bit (0200).
	PermUserWrite os.FileMode = 0200

	// UserWritableDirPerms represents the standard permissions for newly created directories (rwxr-xr-x).
	UserWritableDirPerms os.FileMode = 0755
	// UserWritableFilePerms represents the standard permissions for newly created files (rw-r--r--).
	UserWritableFilePerms os.FileMode = 0644
)

// WithUserReadPermission ensures that any directory/file permission has the owner-read
// bit (0400) set.
func WithUserReadPermission(basePerm os.FileMode) os.FileMode {
	return basePerm | PermUserRead
}

// WithUserWritePermission ensures that any directory/file permission has the owner-write
// bit (0200) set. Without it the next pass could not overwrite or remove the replica copy.
func WithUserWritePermission(basePerm os.FileMode) os.FileMode {
	return basePerm | PermUserWrite
}

// IsHostCaseInsensitiveFS checks if the current operating system (the "host") has a case-insensitive filesystem by default.
func IsHostCaseInsensitiveFS() bool {
	return runtime.GOOS == "windows" || runtime.GOOS == "darwin"
}

// ExpandPath expands the tilde (~) prefix in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil // No tilde, return as-is.
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not get user home directory: %w", err)
	}

	// Replace the tilde with the home directory.
	return filepath.Join(home, path[1:]), nil
}

// ResolveRoot turns a user-supplied root into a clean absolute path with
// symlinks resolved.
// Backslashes are accepted as separators on every platform.
func ResolveRoot(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is empty")
	}
	expanded, err := ExpandPath(path)
	if err != nil {
		return "", err
	}
	if filepath.Separator == '/' {
		expanded = strings.ReplaceAll(expanded, `\`, "/")
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("could not resolve absolute path for %q: %w", path, err)
	}
	// A root given through a symlink is replaced by its target. A root that
	// does not exist yet (a fresh replica) is kept as written.
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return filepath.Clean(abs), nil
		}
		return "", fmt.Errorf("could not resolve symlinks for %q: %w", path, err)
	}
	return resolved, nil
}

// NormalizePath converts an OS path relative to a root into the forward-slash
// key form used throughout the sync engine.
func NormalizePath(relPath string) string {
	p := filepath.ToSlash(filepath.Clean(relPath))
	p = strings.TrimPrefix(p, "./")
	return strings.TrimPrefix(p, "/")
}

// DenormalizePath joins a forward-slash key onto root using OS separators.
func DenormalizePath(root, key string) string {
	return filepath.Join(root, filepath.FromSlash(key))
}

// ParentKey returns the parent of a normalized key, or "" for top-level entries.
func ParentKey(key string) string {
	i := strings.LastIndexByte(key, '/')
	if i < 0 {
		return ""
	}
	return key[:i]
}

// IsWithin reports whether key equals ancestor or lies below it.
func IsWithin(key, ancestor string) bool {
	if ancestor == "" {
		return true
	}
	return key == ancestor || strings.HasPrefix(key, ancestor+"/")
}

// InvertMap takes a map[K]V and returns a map[V]K.
// It's a generic helper for creating reverse lookup maps for enums.
func InvertMap[K comparable, V comparable](m map[K]V) map[V]K {
	inv := make(map[V]K, len(m))
	for k, v := range m {
		inv[v] = k
	}
	return inv
}

// MergeAndDeduplicate combines multiple string slices into a single slice,
// removing any duplicate entries. Order of first appearance is kept.
func MergeAndDeduplicate(slices ...[]string) []string {
	seen := make(map[string]struct{})
	result := make([]string, 0)
	for _, s := range slices {
		for _, item := range s {
			if _, ok := seen[item]; ok {
				continue
			}
			seen[item] = struct{}{}
			result = append(result, item)
		}
	}
	return result
}
