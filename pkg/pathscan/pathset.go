package pathscan

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/paulschiretz/pgl-mirror/pkg/util"
)

// PathSet is the complete enumeration of one root: every file and every folder
// below it, keyed by root-relative forward-slash paths. The root itself is never
// a member.
type PathSet struct {
	Files   mapset.Set[string]
	Folders mapset.Set[string]
	// Unreadable holds entries whose type or contents could not be read.
	// Nothing at or below them is known.
	Unreadable mapset.Set[string]
}

// NewPathSet returns an empty PathSet.
func NewPathSet() PathSet {
	return PathSet{
		Files:      mapset.NewSet[string](),
		Folders:    mapset.NewSet[string](),
		Unreadable: mapset.NewSet[string](),
	}
}

// FileCount returns the number of files in the set.
func (p PathSet) FileCount() int { return p.Files.Cardinality() }

// FolderCount returns the number of folders in the set.
func (p PathSet) FolderCount() int { return p.Folders.Cardinality() }

// Index builds the parent to children lookup used for recursive operations.
func (p PathSet) Index() *ChildIndex {
	idx := &ChildIndex{
		dirs:  make(map[string][]string),
		files: make(map[string][]string),
	}
	for _, d := range Sorted(p.Folders) {
		parent := util.ParentKey(d)
		idx.dirs[parent] = append(idx.dirs[parent], d)
	}
	for _, f := range Sorted(p.Files) {
		parent := util.ParentKey(f)
		idx.files[parent] = append(idx.files[parent], f)
	}
	return idx
}

// ChildIndex maps a folder key to its immediate children. The root is "".
type ChildIndex struct {
	dirs  map[string][]string
	files map[string][]string
}

// Dirs returns the immediate child folders of parent in sorted order.
func (ci *ChildIndex) Dirs(parent string) []string { return ci.dirs[parent] }

// Files returns the immediate child files of parent in sorted order.
func (ci *ChildIndex) Files(parent string) []string { return ci.files[parent] }

// Subtree returns every file below key and every folder below key. Folders are
// ordered deepest first so they can be removed in order once the files are gone.
// key itself is not included.
func (ci *ChildIndex) Subtree(key string) (files, dirs []string) {
	var walk func(parent string)
	walk = func(parent string) {
		files = append(files, ci.files[parent]...)
		for _, d := range ci.dirs[parent] {
			walk(d)
			dirs = append(dirs, d)
		}
	}
	walk(key)
	return files, dirs
}

// Sorted returns the members of s in lexical order.
func Sorted(s mapset.Set[string]) []string {
	out := s.ToSlice()
	slices.Sort(out)
	return out
}

// TopLevel returns the sorted members of s that have no ancestor in s.
// Operating on these covers every member exactly once when the operation is recursive.
func TopLevel(s mapset.Set[string]) []string {
	sorted := Sorted(s)
	out := make([]string, 0, len(sorted))
	for _, k := range sorted {
		covered := false
		for parent := util.ParentKey(k); parent != ""; parent = util.ParentKey(parent) {
			if s.Contains(parent) {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, k)
		}
	}
	return out
}
