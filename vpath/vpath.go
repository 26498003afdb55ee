// Package vpath implements the VFS path model and safety validation:
// forward-slash paths, case-sensitive, no drive letters, "." / ".." /
// backslash / colon forbidden in any component.
package vpath

import (
	"strings"

	"github.com/gophysfs/gophysfs/errs"
)

// Clean strips a single leading slash, silently, and returns the path
// unchanged otherwise. It does not validate; call Validate for that.
func Clean(p string) string {
	return strings.TrimPrefix(p, "/")
}

// Split breaks a cleaned VFS path into its forward-slash components.
// An empty path yields zero components.
func Split(p string) []string {
	p = Clean(p)
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// Join re-joins components back into a VFS path.
func Join(parts ...string) string {
	return strings.Join(parts, "/")
}

// forbidden reports whether a single path component is disallowed: it
// must contain neither "." nor ".." nor backslash nor colon.
func forbidden(component string) bool {
	if component == "." || component == ".." {
		return true
	}
	return strings.ContainsAny(component, `\:`)
}

// SymlinkChecker is consulted once per path prefix during Validate when
// the symlink policy is deny: if the active backend reports is-symlink
// for a prefix, validation fails.
type SymlinkChecker interface {
	// IsSymlink reports whether prefix names a symlink. prefix is a
	// VFS path with no leading slash.
	IsSymlink(prefix string) bool
}

// Validate walks p component by component, failing on any forbidden
// component, and — when permitSymlinks is false — failing as soon as any
// non-empty prefix is reported as a symlink by checker. checker may be
// nil, in which case the symlink check is skipped (callers that have no
// backend yet, e.g. validating a bare mount point).
//
// Validate returns the cleaned path on success.
func Validate(p string, permitSymlinks bool, checker SymlinkChecker) (string, error) {
	clean := Clean(p)
	parts := Split(clean)
	for i, part := range parts {
		if forbidden(part) {
			return "", errs.Wrap(errs.InsecurePath, "forbidden path component %q in %q", part, p)
		}
		if !permitSymlinks && checker != nil {
			prefix := Join(parts[:i+1]...)
			if checker.IsSymlink(prefix) {
				return "", errs.Wrap(errs.SymlinkForbidden, "symlink in path prefix %q", prefix)
			}
		}
	}
	return clean, nil
}

// ValidateMountPoint normalizes and validates a mount point: empty
// string means root; otherwise it must pass the same component rules
// as any other VFS path, failing with errs.InvalidArgument if not, and
// must not carry a trailing slash.
func ValidateMountPoint(p string) (string, error) {
	p = Clean(p)
	p = strings.TrimSuffix(p, "/")
	if p == "" {
		return "", nil
	}
	for _, part := range Split(p) {
		if forbidden(part) || part == "" {
			return "", errs.Wrap(errs.InvalidArgument, "malformed mount point %q", p)
		}
	}
	return p, nil
}

// UnderMount reports whether VFS path v falls under mount point mp —
// v equals mp, or begins with mp + "/" — and if so returns the
// remainder to hand to the backend (mp and its trailing slash stripped).
func UnderMount(v, mp string) (remainder string, ok bool) {
	if mp == "" {
		return v, true
	}
	if v == mp {
		return "", true
	}
	if strings.HasPrefix(v, mp+"/") {
		return v[len(mp)+1:], true
	}
	return "", false
}
