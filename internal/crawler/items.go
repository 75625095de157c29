package crawler

import (
	"github.com/tidwall/gjson"

	"cvetracker/internal/models"
)

// dateStrategy looks for a publish date in one place of a loosely typed search item.
type dateStrategy func(item gjson.Result) (string, bool)

// publishDateStrategies are tried in order; the first non-empty value wins.
var publishDateStrategies = []dateStrategy{
	metatag("article:published_time"),
	metatag("og:published_time"),
	metatag("date"),
	field("published"),
	field("isoDate"),
}

// ParseItems converts the items array of a search response into articles,
// preserving API order. A missing or malformed items value yields nil.
func ParseItems(doc gjson.Result) []models.Article {
	items := doc.Get("items")
	if !items.IsArray() {
		return nil
	}

	raw := items.Array()
	articles := make([]models.Article, 0, len(raw))

	for _, item := range raw {
		if !item.IsObject() {
			continue
		}

		fields := item.Map()
		articles = append(articles, models.Article{
			Title:          text(fields["title"]),
			Link:           text(fields["link"]),
			Snippet:        text(fields["snippet"]),
			PublishDateRaw: resolvePublishDate(item),
		})
	}

	return articles
}

func resolvePublishDate(item gjson.Result) *string {
	for _, strategy := range publishDateStrategies {
		if v, ok := strategy(item); ok {
			return &v
		}
	}

	return nil
}

// metatag reads key from the first entry of pagemap.metatags.
func metatag(key string) dateStrategy {
	return func(item gjson.Result) (string, bool) {
		pagemap := item.Map()["pagemap"]
		if !pagemap.IsObject() {
			return "", false
		}

		metatags := pagemap.Map()["metatags"]
		if !metatags.IsArray() {
			return "", false
		}

		tags := metatags.Array()
		if len(tags) == 0 || !tags[0].IsObject() {
			return "", false
		}

		return present(tags[0].Map()[key])
	}
}

// field reads a top-level key of the item.
func field(key string) dateStrategy {
	return func(item gjson.Result) (string, bool) {
		return present(item.Map()[key])
	}
}

func present(v gjson.Result) (string, bool) {
	s := text(v)
	if s == "" {
		return "", false
	}

	return s, true
}

func text(v gjson.Result) string {
	if !v.Exists() || v.Type == gjson.Null {
		return ""
	}

	return v.String()
}
