// Package types provides type definitions for structured data used throughout the listing-copy-guard system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "strings"

// FieldPath addresses one text leaf inside a Document, e.g. "instagram.professional"
// or "postcard.front.body". Segments are separated by dots.
type FieldPath string

// PathSeparator separates the segments of a FieldPath
const PathSeparator = "."

// JoinPath builds a FieldPath from its segments
func JoinPath(segments ...string) FieldPath {
	return FieldPath(strings.Join(segments, PathSeparator))
}

// Segments returns the dot-separated parts of the path
func (p FieldPath) Segments() []string {
	if p == "" {
		return nil
	}
	return strings.Split(string(p), PathSeparator)
}

// Channel returns the first segment (the output channel)
func (p FieldPath) Channel() string {
	segments := p.Segments()
	if len(segments) == 0 {
		return ""
	}
	return segments[0]
}

// Leaf returns the last segment of the path
func (p FieldPath) Leaf() string {
	segments := p.Segments()
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}

// Matches reports whether the pattern addresses this path. A pattern matches when it
// is no longer than the path and each of its segments equals the path segment at the
// same position or is "*". An empty pattern matches nothing.
func (p FieldPath) Matches(pattern string) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return false
	}
	patternSegments := strings.Split(pattern, PathSeparator)
	pathSegments := p.Segments()
	if len(patternSegments) > len(pathSegments) {
		return false
	}
	for i, seg := range patternSegments {
		if seg != "*" && seg != pathSegments[i] {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer
func (p FieldPath) String() string {
	return string(p)
}
