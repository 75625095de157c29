package models

// CVESummary holds the aggregated statistics for a single CVE identifier.
type CVESummary struct {
	// FirstObservedDate is the earliest parsed publish date as YYYY-MM-DD, nil if none parsed.
	FirstObservedDate *string  `json:"first_observed_date"`
	Victims           []string `json:"victims"`
	ArticleCount      int      `json:"article_count"`
}
