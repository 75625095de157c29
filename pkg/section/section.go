// Package section locates and replaces marker-delimited blocks inside Markdown documents.
package section

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// TagStart opens the generated summary block.
	TagStart = "<!-- CVE-SUMMARY-START -->"
	// TagEnd closes the generated summary block.
	TagEnd = "<!-- CVE-SUMMARY-END -->"
)

// Section errors.
var (
	ErrMultipleSections  = errors.New("document contains more than one marked section")
	ErrUnbalancedMarkers = errors.New("document markers are unbalanced")
)

// Action describes how Splice changed a document.
type Action int

const (
	// Appended means no section existed and one was added at the end.
	Appended Action = iota
	// Replaced means an existing section was swapped for the new one.
	Replaced
)

func (a Action) String() string {
	switch a {
	case Appended:
		return "appended"
	case Replaced:
		return "replaced"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Markers is a start/end marker pair.
type Markers struct {
	Start string
	End   string
}

// DefaultMarkers delimit the CVE summary table.
var DefaultMarkers = Markers{Start: TagStart, End: TagEnd}

// Wrap surrounds body with the markers, each on its own line. Body is
// expected to end with a newline.
func (m Markers) Wrap(body string) string {
	return m.Start + "\n" + body + m.End + "\n"
}

// Splice puts section into content. An existing marked span is replaced
// in place; otherwise the section is appended. Ambiguous documents are
// rejected so that nothing is overwritten by guesswork.
func (m Markers) Splice(content, section string) (string, Action, error) {
	start, end, err := m.locate(content)
	if err != nil {
		return content, Appended, err
	}

	if start < 0 {
		if content != "" && !strings.HasSuffix(content, "\n") {
			content += "\n"
		}

		return content + section, Appended, nil
	}

	updated := content[:start] + strings.TrimRight(section, "\n") + content[end:]
	if !strings.HasSuffix(updated, "\n") {
		updated += "\n"
	}

	return updated, Replaced, nil
}

// locate returns the byte span [start, end) covering both markers, or
// start = -1 when neither marker is present.
func (m Markers) locate(content string) (int, int, error) {
	starts := strings.Count(content, m.Start)
	ends := strings.Count(content, m.End)

	switch {
	case starts == 0 && ends == 0:
		return -1, -1, nil
	case starts > 1 || ends > 1:
		return 0, 0, fmt.Errorf("%w: %d start and %d end markers", ErrMultipleSections, starts, ends)
	case starts != ends:
		return 0, 0, fmt.Errorf("%w: %d start and %d end markers", ErrUnbalancedMarkers, starts, ends)
	}

	start := strings.Index(content, m.Start)
	end := strings.Index(content, m.End)

	if end < start+len(m.Start) {
		return 0, 0, fmt.Errorf("%w: end marker precedes start marker", ErrUnbalancedMarkers)
	}

	return start, end + len(m.End), nil
}
