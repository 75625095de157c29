// Package aggregator folds harvested articles into per-CVE summaries.
package aggregator

import (
	"slices"
	"strings"
	"time"

	"cvetracker/internal/extract"
	"cvetracker/internal/models"
	"cvetracker/pkg/utils"
)

const (
	// excerptRunes bounds the raw snippet kept as a victim mention.
	excerptRunes = 400
	// mentionMaxLength bounds a victim mention after sanitization.
	mentionMaxLength = 500
)

// victimTerms mark a snippet as describing affected parties.
var victimTerms = []string{"victim", "affected", "compromised", "ransom"}

// accumulator collects statistics for one CVE during a single pass.
type accumulator struct {
	firstSeen time.Time
	mentions  map[string]struct{}
	count     int
	hasDate   bool
}

// Aggregate groups articles by the first CVE identifier found in their
// title or snippet. Articles without an identifier contribute nothing.
func Aggregate(articles []models.Article) map[string]models.CVESummary {
	accs := make(map[string]*accumulator)

	for _, article := range articles {
		id, ok := extract.CVE(article.CombinedText())
		if !ok {
			continue
		}

		acc, exists := accs[id]
		if !exists {
			acc = &accumulator{mentions: make(map[string]struct{})}
			accs[id] = acc
		}

		acc.count++

		if article.PublishDateRaw != nil {
			if t, ok := extract.ParseDate(*article.PublishDateRaw); ok {
				if !acc.hasDate || t.Before(acc.firstSeen) {
					acc.firstSeen = t
					acc.hasDate = true
				}
			}
		}

		if mentionsVictims(article.Snippet) {
			acc.mentions[utils.TruncateRunes(article.Snippet, excerptRunes)] = struct{}{}
		}
	}

	summaries := make(map[string]models.CVESummary, len(accs))
	for id, acc := range accs {
		summaries[id] = acc.finalize()
	}

	return summaries
}

// SortedIDs returns the summary keys in ascending order.
func SortedIDs(summaries map[string]models.CVESummary) []string {
	ids := make([]string, 0, len(summaries))
	for id := range summaries {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids
}

func (a *accumulator) finalize() models.CVESummary {
	victims := make([]string, 0, len(a.mentions))

	seen := make(map[string]bool, len(a.mentions))

	for raw := range a.mentions {
		clean := utils.Sanitize(raw, mentionMaxLength)
		if seen[clean] {
			continue
		}

		seen[clean] = true
		victims = append(victims, clean)
	}

	slices.Sort(victims)

	summary := models.CVESummary{
		ArticleCount: a.count,
		Victims:      victims,
	}

	if a.hasDate {
		date := extract.FormatDate(a.firstSeen)
		summary.FirstObservedDate = &date
	}

	return summary
}

func mentionsVictims(snippet string) bool {
	lower := strings.ToLower(snippet)
	for _, term := range victimTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}

	return false
}
