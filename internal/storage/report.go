package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"cvetracker/internal/formatter"
	"cvetracker/internal/models"
	"cvetracker/pkg/section"
)

// ReportAction reports whether UpdateReport appended or replaced the section.
type ReportAction = section.Action

// Report actions.
const (
	ReportAppended = section.Appended
	ReportReplaced = section.Replaced
)

// UpdateReport renders the summary section and splices it into the
// document at path. A missing document is created. Content outside the
// markers is left untouched; a document with ambiguous markers is not
// written at all.
func UpdateReport(path, heading string, summaries map[string]models.CVESummary) (ReportAction, error) {
	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ReportAppended, fmt.Errorf("read report: %w", err)
	}

	rendered := formatter.RenderSummarySection(heading, summaries)

	updated, action, err := section.DefaultMarkers.Splice(string(existing), rendered)
	if err != nil {
		return action, fmt.Errorf("update report %s: %w", path, err)
	}

	if err := WriteFileAtomic(path, []byte(updated), existingMode(path, defaultFileMode)); err != nil {
		return action, fmt.Errorf("write report: %w", err)
	}

	return action, nil
}
