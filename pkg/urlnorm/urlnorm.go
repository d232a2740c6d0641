// Package urlnorm normalizes page URLs into stable cache keys and classifies
// browser-internal URLs that no user action can meaningfully target.
package urlnorm

import (
	"errors"
	"net/url"
	"strings"
)

var (
	// ErrEmptyURL is returned when the input URL is empty.
	ErrEmptyURL = errors.New("url is required")
	// ErrInvalidURL is returned when the input cannot be parsed as an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid url")
)

// restrictedSchemes are browser-internal or non-navigable schemes. Pages under
// these schemes cannot be bookmarked and get no badge affordance.
var restrictedSchemes = map[string]struct{}{
	"about":            {},
	"chrome":           {},
	"chrome-extension": {},
	"moz-extension":    {},
	"edge":             {},
	"brave":            {},
	"opera":            {},
	"vivaldi":          {},
	"devtools":         {},
	"view-source":      {},
	"file":             {},
	"data":             {},
	"javascript":       {},
	"blob":             {},
}

// Normalize canonicalizes a page URL for use as a cache key: scheme and host
// are lowercased, the default port and fragment are stripped, and a bare "/"
// path collapses to empty. The query string is preserved since it commonly
// identifies distinct pages.
func Normalize(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", ErrEmptyURL
	}

	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", errors.Join(ErrInvalidURL, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", ErrInvalidURL
	}
	if u.Host == "" {
		return "", ErrInvalidURL
	}

	u.Scheme = scheme
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	switch {
	case scheme == "http" && strings.HasSuffix(u.Host, ":80"):
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case scheme == "https" && strings.HasSuffix(u.Host, ":443"):
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	if u.Path == "/" && u.RawQuery == "" {
		u.Path = ""
	}

	return u.String(), nil
}

// IsRestricted reports whether the URL points at a browser-internal surface
// (settings pages, extension pages, local files) where saving is meaningless.
// Unparseable and empty URLs are treated as restricted.
func IsRestricted(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return true
	}

	u, err := url.Parse(raw)
	if err != nil {
		return true
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		return true
	}

	_, restricted := restrictedSchemes[scheme]
	return restricted
}
