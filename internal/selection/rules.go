package selection

import (
	"regexp"
	"strings"
)

// Rules is an include/exclude pattern pair determining which filesystem
// paths participate in indexing. Patterns may be plain path prefixes or
// glob-like strings containing "*" or "**".
type Rules struct {
	Include []string `json:"include"`
	Exclude []string `json:"exclude"`
}

// IsSelected reports whether path participates in indexing under these rules.
// A path is selected iff it matches at least one include pattern (an empty
// include list means "match everything") and matches no exclude pattern.
// Any exclude match overrides every include match.
func (r Rules) IsSelected(path string) bool {
	p := normalizePath(path)

	for _, pattern := range r.Exclude {
		if matchPattern(p, pattern) {
			return false
		}
	}

	if len(r.Include) == 0 {
		return true
	}
	for _, pattern := range r.Include {
		if matchPattern(p, pattern) {
			return true
		}
	}
	return false
}

// IsExcluded reports whether path matches an exclude pattern. Directory
// pruning uses only this side of the rules: a directory that matches no
// include pattern may still contain files that do, so failing the include
// check must not prevent descending into it.
func (r Rules) IsExcluded(path string) bool {
	p := normalizePath(path)
	for _, pattern := range r.Exclude {
		if matchPattern(p, pattern) {
			return true
		}
	}
	return false
}

// Roots returns the wildcard-free include patterns, which double as walk
// roots. fallback is used when the include list yields none.
func (r Rules) Roots(fallback []string) []string {
	var roots []string
	for _, pattern := range r.Include {
		if !strings.Contains(pattern, "*") {
			roots = append(roots, pattern)
		}
	}
	if len(roots) == 0 {
		return fallback
	}
	return roots
}

// normalizePath lowercases and converts separators to forward slashes so
// matching is case-insensitive and platform-independent. Backslashes are
// rewritten on every platform, not via filepath.ToSlash, so rules stored
// with Windows separators still match on a unix host.
func normalizePath(p string) string {
	return strings.ToLower(strings.ReplaceAll(p, "\\", "/"))
}

// matchPattern matches one normalized path against one raw pattern.
func matchPattern(path, pattern string) bool {
	pat := normalizePath(pattern)
	switch {
	case strings.Contains(pat, "**"):
		return matchRecursiveGlob(path, pat)
	case strings.Contains(pat, "*"):
		re, err := compileGlob(pat)
		if err != nil {
			return false
		}
		return re.MatchString(path)
	default:
		return matchPrefix(path, pat)
	}
}

// matchPrefix treats a wildcard-free pattern as a directory prefix. The
// prefix must end on a path segment boundary, so "/data" matches "/data"
// and "/data/a.txt" but never "/database".
func matchPrefix(path, pat string) bool {
	pat = strings.TrimSuffix(pat, "/")
	if pat == "" {
		return true
	}
	if !strings.HasPrefix(path, pat) {
		return false
	}
	return len(path) == len(pat) || path[len(pat)] == '/'
}

// matchRecursiveGlob handles patterns containing "**": the pattern is split
// on "**/" and each non-empty literal segment must appear in order as a
// substring of the remaining path.
func matchRecursiveGlob(path, pat string) bool {
	rest := path
	for _, segment := range strings.Split(pat, "**/") {
		segment = strings.Trim(segment, "/*")
		if segment == "" {
			continue
		}
		idx := strings.Index(rest, segment)
		if idx < 0 {
			return false
		}
		rest = rest[idx+len(segment):]
	}
	return true
}

// compileGlob compiles a single-star pattern to an anchored regex where "*"
// maps to ".*" and every other rune is matched literally.
func compileGlob(pat string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pat {
		if r == '*' {
			b.WriteString(".*")
			continue
		}
		b.WriteString(regexp.QuoteMeta(string(r)))
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
