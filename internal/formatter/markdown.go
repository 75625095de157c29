// Package formatter renders CVE summaries as Markdown.
package formatter

import (
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"cvetracker/internal/aggregator"
	"cvetracker/internal/models"
	"cvetracker/pkg/section"
	"cvetracker/pkg/utils"
)

const (
	// NotAvailable fills cells that have no value.
	NotAvailable = "N/A"
	// VictimSeparator joins victim mentions inside one cell.
	VictimSeparator = " ; "
)

// summaryHeader lists the report columns in order.
var summaryHeader = []string{"CVE ID", "Article Count", "First Observed Date", "Victims Mentioned"}

// RenderSummarySection returns the complete marker-delimited report block:
// heading, aligned table sorted by CVE id, and a trailing newline.
func RenderSummarySection(heading string, summaries map[string]models.CVESummary) string {
	table := [][]string{summaryHeader}

	for _, id := range aggregator.SortedIDs(summaries) {
		table = append(table, summaryRow(id, summaries[id]))
	}

	var body strings.Builder

	body.WriteString("\n## ")
	body.WriteString(utils.NormalizeWhitespace(heading))
	body.WriteString("\n\n")
	body.WriteString(strings.Join(alignTable(table), "\n"))
	body.WriteString("\n\n")

	return section.DefaultMarkers.Wrap(body.String())
}

func summaryRow(id string, summary models.CVESummary) []string {
	date := NotAvailable
	if summary.FirstObservedDate != nil {
		date = *summary.FirstObservedDate
	}

	victims := NotAvailable
	if len(summary.Victims) > 0 {
		victims = strings.TrimSpace(utils.CollapseNewlines(strings.Join(summary.Victims, VictimSeparator)))
	}

	return []string{id, strconv.Itoa(summary.ArticleCount), date, victims}
}

// alignTable renders rows as a Markdown table with a separator after the
// first row. Cells are padded to the widest display width in their column.
func alignTable(table [][]string) []string {
	if len(table) == 0 {
		return nil
	}

	colCount := 0
	for _, row := range table {
		colCount = max(colCount, len(row))
	}

	colWidths := make([]int, colCount)

	for _, row := range table {
		for i, cell := range row {
			colWidths[i] = max(colWidths[i], runewidth.StringWidth(cell))
		}
	}

	// Separator needs at least "---".
	for i := range colWidths {
		colWidths[i] = max(colWidths[i], 3)
	}

	result := make([]string, 0, len(table)+1)
	result = append(result, renderRow(table[0], colWidths))
	result = append(result, renderSeparator(colWidths))

	for _, row := range table[1:] {
		result = append(result, renderRow(row, colWidths))
	}

	return result
}

func renderRow(row []string, colWidths []int) string {
	var sb strings.Builder

	sb.WriteString("|")

	for j, width := range colWidths {
		content := ""
		if j < len(row) {
			content = row[j]
		}

		sb.WriteString(" ")
		sb.WriteString(content)

		if padding := width - runewidth.StringWidth(content); padding > 0 {
			sb.WriteString(strings.Repeat(" ", padding))
		}

		sb.WriteString(" |")
	}

	return sb.String()
}

func renderSeparator(colWidths []int) string {
	var sb strings.Builder

	sb.WriteString("|")

	for _, width := range colWidths {
		sb.WriteString(" ")
		sb.WriteString(strings.Repeat("-", width))
		sb.WriteString(" |")
	}

	return sb.String()
}
