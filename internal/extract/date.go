package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// DateLayout is the canonical rendering of a first-observed date.
const DateLayout = "2006-01-02"

// isoLayouts cover the ISO-8601 shapes seen in article metadata. Fractional
// seconds are accepted by time.Parse even when the layout omits them.
var isoLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	DateLayout,
}

var explicitLayouts = []string{
	DateLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

var embeddedDatePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// digitsOnly matches bare years and Unix timestamps, which are not publish dates.
var digitsOnly = regexp.MustCompile(`^\d+$`)

type dateStrategy func(s string) (time.Time, bool)

// dateStrategies run in order; the first success wins.
var dateStrategies = []dateStrategy{
	parseISO,
	parseExplicit,
	parseEmbedded,
	parseFreeForm,
}

// ParseDate normalizes a raw publish date string. It never fails loudly:
// anything it cannot understand yields ok == false.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	for _, strategy := range dateStrategies {
		if t, ok := strategy(s); ok {
			return t, true
		}
	}

	return time.Time{}, false
}

// FormatDate renders t as YYYY-MM-DD in its own location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

func parseISO(s string) (time.Time, bool) {
	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z") + "+00:00"
	}

	return parseLayouts(s, isoLayouts)
}

func parseExplicit(s string) (time.Time, bool) {
	return parseLayouts(s, explicitLayouts)
}

func parseEmbedded(s string) (time.Time, bool) {
	match := embeddedDatePattern.FindString(s)
	if match == "" {
		return time.Time{}, false
	}

	return parseLayouts(match, []string{DateLayout})
}

// parseFreeForm handles RFC 1123 style feed dates such as "Mon, 03 Mar 2025 10:00:00 GMT".
// Results without a year are rejected.
func parseFreeForm(s string) (t time.Time, ok bool) {
	if digitsOnly.MatchString(s) {
		return time.Time{}, false
	}

	defer func() {
		if recover() != nil {
			t, ok = time.Time{}, false
		}
	}()

	parsed, err := dateparse.ParseIn(s, time.UTC)
	if err != nil || parsed.Year() == 0 {
		return time.Time{}, false
	}

	return parsed, true
}

func parseLayouts(s string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}
