// Package urlnorm reduces user-submitted URL text to the scheme://host form
// used as the identity of a tracked site.
package urlnorm

import (
	"html"
	"net/url"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// MaxAddressLength bounds a normalized address (urls.address is VARCHAR(255)).
const MaxAddressLength = 255

var policy = bluemonday.StrictPolicy()

// Normalize trims and sanitizes raw, then returns "scheme://host" when raw is an
// absolute http or https URL with a host. Path, query, fragment and userinfo are
// dropped; scheme and host are lowercased. It performs no I/O.
func Normalize(raw string) (string, bool) {
	cleaned := Sanitize(raw)
	if cleaned == "" {
		return "", false
	}
	u, err := url.Parse(cleaned)
	if err != nil {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	host := strings.ToLower(u.Host)
	if u.Hostname() == "" || strings.ContainsFunc(host, unsafeHostRune) {
		return "", false
	}
	address := scheme + "://" + host
	if len(address) > MaxAddressLength {
		return "", false
	}
	// Percent-escapes in the host are decoded by url.Parse; reject hosts that
	// would not survive a second pass.
	if again, err := url.Parse(address); err != nil || strings.ToLower(again.Host) != host {
		return "", false
	}
	return address, true
}

// Sanitize strips surrounding whitespace and any markup or script content,
// returning plain text.
func Sanitize(raw string) string {
	stripped := policy.Sanitize(strings.TrimSpace(raw))
	return strings.TrimSpace(html.UnescapeString(stripped))
}

// unsafeHostRune reports characters that Sanitize would rewrite on a later pass
// (markup, entity and escape syntax) or that never appear in a host.
func unsafeHostRune(r rune) bool {
	switch r {
	case '&', '<', '>', ';', '"', '\'', '\\', '%', '`':
		return true
	}
	return unicode.IsSpace(r) || unicode.IsControl(r)
}
