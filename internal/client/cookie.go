package client

import (
	"net/url"
	"strings"
)

// ReadCookieHeader parses a Cookie request header (a ;-separated list of
// name=value pairs with optional surrounding whitespace) and returns the
// URL-decoded value of the first pair whose name matches exactly. The
// bool reports whether the cookie was present. Values that fail to
// decode are returned raw.
func ReadCookieHeader(header, name string) (string, bool) {
	if header == "" || name == "" {
		return "", false
	}
	for _, pair := range strings.Split(header, ";") {
		pair = strings.TrimSpace(pair)
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key != name {
			continue
		}
		if decoded, err := url.QueryUnescape(value); err == nil {
			return decoded, true
		}
		return value, true
	}
	return "", false
}
