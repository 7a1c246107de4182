package pathscan

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/paulschiretz/pgl-mirror/pkg/plog"
)

type exclusionMatchType int

const (
	prefixMatch exclusionMatchType = iota
	suffixMatch
	globMatch
)

// exclusionSet holds the categorized exclusion patterns for efficient matching.
type exclusionSet struct {
	// literals are for exact full-path matches, which are the fastest to check.
	literals map[string]struct{}
	// basenameLiterals are for exact basename matches (e.g., "node_modules").
	basenameLiterals map[string]struct{}
	// nonLiterals are for patterns requiring wildcard or prefix logic.
	nonLiterals []exclusion
	// foldCase lowercases paths and patterns before matching.
	foldCase bool
}

// exclusion stores the pre-analyzed pattern details.
type exclusion struct {
	pattern       string             // The original pattern for logging/debugging.
	cleanPattern  string             // Wildcard-free part for prefix/suffix matches, the full pattern otherwise.
	matchType     exclusionMatchType // The type of match to perform.
	matchBasename bool               // Match against the basename instead of the full relative path.
	dirPrefix     bool               // A "dir/" or "dir/*" pattern that must match on a path boundary.
}

// makeExclusionSet analyzes and categorizes patterns to enable optimized matching later.
func makeExclusionSet(patterns []string, foldCase bool) exclusionSet {
	set := exclusionSet{
		literals:         make(map[string]struct{}),
		basenameLiterals: make(map[string]struct{}),
		nonLiterals:      make([]exclusion, 0, len(patterns)),
		foldCase:         foldCase,
	}

	// A pattern without a separator matches the basename anywhere in the tree,
	// the way .gitignore treats "node_modules".
	shouldMatchBasename := func(p string) bool { return !strings.Contains(strings.TrimSuffix(p, "/"), "/") }

	for _, raw := range patterns {
		p := set.normalize(raw)
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			plog.Warn("Ignoring invalid exclusion pattern", "pattern", raw)
			continue
		}

		switch {
		case strings.HasSuffix(p, "/*") && !strings.ContainsAny(p[:len(p)-2], "*?[]{}"):
			// "build/*" excludes everything below build, but not build itself.
			set.nonLiterals = append(set.nonLiterals, exclusion{
				pattern: p, cleanPattern: strings.TrimSuffix(p, "*"), matchType: prefixMatch,
			})
		case strings.HasSuffix(p, "/") && !strings.ContainsAny(p, "*?[]{}"):
			// "build/" excludes the directory and its contents.
			set.nonLiterals = append(set.nonLiterals, exclusion{
				pattern:       p,
				cleanPattern:  strings.TrimSuffix(p, "/"),
				matchType:     prefixMatch,
				matchBasename: shouldMatchBasename(p),
				dirPrefix:     true,
			})
		case strings.HasPrefix(p, "*") && !strings.ContainsAny(p[1:], "*?[]{}/"):
			// "*.tmp"
			set.nonLiterals = append(set.nonLiterals, exclusion{
				pattern: p, cleanPattern: p[1:], matchType: suffixMatch, matchBasename: true,
			})
		case strings.ContainsAny(p, "*?[]{}"):
			set.nonLiterals = append(set.nonLiterals, exclusion{
				pattern: p, cleanPattern: p, matchType: globMatch, matchBasename: shouldMatchBasename(p),
			})
		case shouldMatchBasename(p):
			set.basenameLiterals[p] = struct{}{}
		default:
			set.literals[p] = struct{}{}
		}
	}
	return set
}

// empty reports whether the set can never match.
func (es *exclusionSet) empty() bool {
	return len(es.literals) == 0 && len(es.basenameLiterals) == 0 && len(es.nonLiterals) == 0
}

// matches checks if a normalized relative path matches any exclusion pattern.
func (es *exclusionSet) matches(relPathKey string) bool {
	if es.empty() {
		return false
	}
	normalizedPath := es.normalize(relPathKey)
	normalizedBasename := path.Base(normalizedPath)

	if _, ok := es.literals[normalizedPath]; ok {
		return true
	}
	if _, ok := es.basenameLiterals[normalizedBasename]; ok {
		return true
	}

	for _, p := range es.nonLiterals {
		pathToCheck := normalizedPath
		if p.matchBasename {
			pathToCheck = normalizedBasename
		}

		switch p.matchType {
		case prefixMatch:
			if p.dirPrefix {
				if pathToCheck == p.cleanPattern || strings.HasPrefix(pathToCheck, p.cleanPattern+"/") {
					return true
				}
				continue
			}
			if strings.HasPrefix(pathToCheck, p.cleanPattern) {
				return true
			}
		case suffixMatch:
			if strings.HasSuffix(pathToCheck, p.cleanPattern) {
				return true
			}
		case globMatch:
			if ok, _ := doublestar.Match(p.cleanPattern, pathToCheck); ok {
				return true
			}
		}
	}
	return false
}

func (es *exclusionSet) normalize(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, `\`, "/"))
	p = strings.TrimPrefix(strings.TrimPrefix(p, "./"), "/")
	if es.foldCase {
		p = strings.ToLower(p)
	}
	return p
}
