package pathsync

import (
	"github.com/paulschiretz/pgl-mirror/pkg/pathscan"
	"github.com/paulschiretz/pgl-mirror/pkg/util"
)

// fence holds the keys that could not be read on either side. Nothing at or
// below a fenced key is copied or removed, since its real contents are unknown.
type fence []string

func newFence(src, rep pathscan.PathSet) fence {
	var f fence
	for _, set := range []pathscan.PathSet{src, rep} {
		if set.Unreadable != nil {
			f = append(f, pathscan.Sorted(set.Unreadable)...)
		}
	}
	return f
}

// blocks reports whether key is fenced or lies below a fenced key.
func (f fence) blocks(key string) bool {
	return underAny(key, f)
}

// encloses reports whether a fenced key lies below key.
func (f fence) encloses(key string) bool {
	for _, u := range f {
		if u != key && util.IsWithin(u, key) {
			return true
		}
	}
	return false
}
