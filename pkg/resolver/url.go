package resolver

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	maxURLNameLength = 50
	unknownName      = "unknown"
)

var (
	reNumeric  = regexp.MustCompile(`^\d+$`)
	reNameChar = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)
)

// Path segments which never make a useful file name
var genericSegments = map[string]bool{
	"photo": true,
	"image": true,
	"file":  true,
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// NameFromURL infers a file name from a URL. The last path segment is used
// when it has an extension; otherwise the last meaningful segment, or the
// host name, is cleaned up and used. Returns an empty string when the value
// cannot be parsed as a URL.
func NameFromURL(value string) string {
	u, err := url.Parse(value)
	if err != nil || u.Host == "" {
		return ""
	}

	segments := make([]string, 0, 4)
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}

	// Use the last segment if it looks like a file name
	if n := len(segments); n > 0 {
		if last := segments[n-1]; path.Ext(last) != "" && path.Ext(last) != last {
			return last
		}
	}

	// Otherwise pick the last meaningful segment, or the host
	var name string
	for i := len(segments) - 1; i >= 0; i-- {
		if s := segments[i]; !genericSegments[s] && !reNumeric.MatchString(s) {
			name = s
			break
		}
	}
	if name == "" {
		name = strings.TrimPrefix(u.Hostname(), "www.")
	}

	// Clean up
	name = strings.Trim(reNameChar.ReplaceAllString(name, "-"), "-")
	if len(name) > maxURLNameLength {
		name = strings.Trim(name[:maxURLNameLength], "-")
	}
	if name == "" {
		name = unknownName
	}
	return name
}
