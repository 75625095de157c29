package utils

import (
	"net/http"
	"net/url"
)

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "cve-tracker/1.0"

// BuildHeaders creates request headers for a JSON API call.
func BuildHeaders(userAgent string) http.Header {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	headers := http.Header{}
	headers.Set("User-Agent", userAgent)
	headers.Set("Accept", "application/json")

	return headers
}

// RedactQuery returns rawURL with the values of the named query parameters
// replaced, so credentials never reach the logs.
func RedactQuery(rawURL string, keys ...string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}

	q := u.Query()
	for _, k := range keys {
		if q.Has(k) {
			q.Set(k, "REDACTED")
		}
	}

	u.RawQuery = q.Encode()

	return u.String()
}
