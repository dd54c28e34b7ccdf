package fragment

import "strings"

// DefaultBasePath is prefixed to relative source references.
const DefaultBasePath = "./content/"

// Resolver turns raw content-source references into fetch targets.
// Relative references are joined onto a base path; absolute URLs,
// protocol-relative URLs (//host/...) and root-relative paths (/...)
// bypass the base entirely.
type Resolver struct {
	base string
}

// NewResolver creates a resolver with the given base path.
// An empty base falls back to DefaultBasePath.
func NewResolver(base string) *Resolver {
	if base == "" {
		base = DefaultBasePath
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &Resolver{base: base}
}

// Base returns the configured base path.
func (r *Resolver) Base() string {
	return r.base
}

// Resolve returns the fetch target for a source reference.
func (r *Resolver) Resolve(source string) string {
	source = strings.TrimSpace(source)
	if source == "" {
		return ""
	}
	if bypassesBase(source) {
		return source
	}
	return r.base + strings.TrimPrefix(source, "./")
}

// bypassesBase reports whether the reference is absolute enough to skip
// base-path resolution.
func bypassesBase(source string) bool {
	if strings.HasPrefix(source, "//") || strings.HasPrefix(source, "/") {
		return true
	}
	return hasScheme(source)
}

// hasScheme reports whether the reference starts with a URL scheme
// (e.g. "https:", "file:"). Schemes begin with a letter.
func hasScheme(source string) bool {
	i := strings.Index(source, ":")
	if i <= 0 {
		return false
	}
	for pos, c := range source[:i] {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case pos > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}
