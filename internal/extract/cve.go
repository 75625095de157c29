// Package extract pulls CVE identifiers and publish dates out of free text.
package extract

import (
	"regexp"
	"strings"
)

// cvePattern matches a CVE id with a 4-digit year and a sequence of at least 4 digits.
var cvePattern = regexp.MustCompile(`(?i)CVE-\d{4}-\d{4,}`)

// CVE returns the first CVE identifier found in text, upper-cased.
func CVE(text string) (string, bool) {
	if text == "" {
		return "", false
	}

	match := cvePattern.FindString(text)
	if match == "" {
		return "", false
	}

	return strings.ToUpper(match), true
}
