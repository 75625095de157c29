// Package models defines data structures shared by the harvester, aggregator and storage.
package models

// Article represents one search result item as received from the search API.
type Article struct {
	// PublishDateRaw is nil when no date field was present on the item.
	PublishDateRaw *string `json:"publish_date_raw"`
	Title          string  `json:"title"`
	Link           string  `json:"link"`
	Snippet        string  `json:"snippet"`
}

// ArchiveEntry is the sanitized projection of an Article written to the archive file.
type ArchiveEntry struct {
	Title          string  `json:"title"`
	Link           string  `json:"link"`
	Snippet        string  `json:"snippet"`
	PublishDateRaw *string `json:"publish_date_raw"`
}

// CombinedText joins title and snippet with a single space, skipping empty parts.
func (a Article) CombinedText() string {
	switch {
	case a.Title == "":
		return a.Snippet
	case a.Snippet == "":
		return a.Title
	}

	return a.Title + " " + a.Snippet
}
