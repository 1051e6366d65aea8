// Package routepath normalizes and resolves navigation targets.
//
// Every location that enters the navigator, whether from a link, a redirect
// result or a submission, goes through Parse or Resolve first, so matching
// always sees a canonical path: leading slash, no empty or "." segments,
// ".." resolved, and no trailing slash except for "/".
package routepath

import (
	"errors"
	"net/url"
	"strings"
)

// Path errors.
var (
	ErrInvalidPath           = errors.New("routepath: invalid path")
	ErrAbsoluteURL           = errors.New("routepath: absolute URLs are not navigable")
	ErrBackslashInPath       = errors.New("routepath: path contains backslash")
	ErrNullByteInPath        = errors.New("routepath: path contains null byte")
	ErrInvalidPercentEscape  = errors.New("routepath: invalid percent escape sequence")
	ErrPathEscapesRoot       = errors.New("routepath: path escapes root via ..")
	ErrEncodedSlashInSegment = errors.New("routepath: encoded slash (%2F) in segment")
)

// Location is a canonical in-app location.
type Location struct {
	// Path is the canonical path, always starting with "/".
	Path string

	// Query is the raw query string without the leading "?".
	Query string
}

// String renders the location as path plus optional query.
func (l Location) String() string {
	if l.Query == "" {
		return l.Path
	}
	return l.Path + "?" + l.Query
}

// URL returns the location as a *url.URL with only path and query set.
func (l Location) URL() *url.URL {
	return &url.URL{Path: l.Path, RawQuery: l.Query}
}

// Values parses the query string. Malformed pairs are skipped.
func (l Location) Values() url.Values {
	v, _ := url.ParseQuery(l.Query)
	return v
}

// Parse canonicalizes an absolute in-app path such as "/events/e1?x=1".
//
// The following are rejected: full URLs ("http://", "//host"), backslashes,
// NUL bytes, malformed percent escapes, and ".." that escapes the root.
// A fragment, if present, is dropped.
func Parse(input string) (Location, error) {
	if isAbsoluteURL(input) {
		return Location{}, ErrAbsoluteURL
	}
	input, _, _ = strings.Cut(input, "#")
	path, query, _ := strings.Cut(input, "?")

	path, err := canonicalize(path)
	if err != nil {
		return Location{}, err
	}
	return Location{Path: path, Query: query}, nil
}

// Resolve resolves target against base the way an anchor href does.
//
// Absolute targets ("/x") replace the base path. Relative targets are
// joined to the base path treated as a directory, so "edit" from
// "/events/e1" is "/events/e1/edit" and ".." is "/events". An empty
// target or a bare "?query" keeps the base path.
func Resolve(base Location, target string) (Location, error) {
	if isAbsoluteURL(target) {
		return Location{}, ErrAbsoluteURL
	}
	target, _, _ = strings.Cut(target, "#")
	path, query, hasQuery := strings.Cut(target, "?")

	switch {
	case path == "":
		path = base.Path
		if !hasQuery {
			query = base.Query
		}
	case strings.HasPrefix(path, "/"):
	default:
		path = strings.TrimSuffix(base.Path, "/") + "/" + path
	}

	path, err := canonicalize(path)
	if err != nil {
		return Location{}, err
	}
	return Location{Path: path, Query: query}, nil
}

// Segments splits a canonical path into decoded segments.
// The root path has no segments.
func Segments(path string) ([]string, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil, nil
	}

	raw := strings.Split(path, "/")
	out := make([]string, 0, len(raw))
	for _, seg := range raw {
		decoded, err := DecodeSegment(seg)
		if err != nil {
			return nil, err
		}
		out = append(out, decoded)
	}
	return out, nil
}

// DecodeSegment decodes a single path segment. A segment that decodes to
// something containing "/" is rejected, since it would let a single param
// smuggle extra path segments.
func DecodeSegment(segment string) (string, error) {
	decoded, err := url.PathUnescape(segment)
	if err != nil {
		return "", ErrInvalidPercentEscape
	}
	if strings.Contains(decoded, "/") {
		return "", ErrEncodedSlashInSegment
	}
	return decoded, nil
}

// EscapeSegment is the inverse of DecodeSegment.
func EscapeSegment(segment string) string {
	return url.PathEscape(segment)
}

func canonicalize(path string) (string, error) {
	if strings.Contains(path, "\\") {
		return "", ErrBackslashInPath
	}
	if strings.Contains(path, "\x00") || strings.Contains(strings.ToUpper(path), "%00") {
		return "", ErrNullByteInPath
	}
	if strings.Contains(path, "%") {
		if err := validatePercentEscapes(path); err != nil {
			return "", err
		}
	}

	var result []string
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(result) == 0 {
				return "", ErrPathEscapesRoot
			}
			result = result[:len(result)-1]
		default:
			result = append(result, seg)
		}
	}

	return "/" + strings.Join(result, "/"), nil
}

func isAbsoluteURL(s string) bool {
	if strings.HasPrefix(s, "//") {
		return true
	}
	u, err := url.Parse(s)
	return err == nil && u.Scheme != ""
}

// validatePercentEscapes checks that all percent-escapes are %XX hex pairs.
func validatePercentEscapes(path string) error {
	for i := 0; i < len(path); i++ {
		if path[i] != '%' {
			continue
		}
		if i+2 >= len(path) || !isHexDigit(path[i+1]) || !isHexDigit(path[i+2]) {
			return ErrInvalidPercentEscape
		}
		i += 2
	}
	return nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
