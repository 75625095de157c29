package crawler

import (
	"context"
	"errors"
	"net/url"

	"github.com/tidwall/gjson"

	"cvetracker/internal/config"
	"cvetracker/internal/logger"
	"cvetracker/internal/models"
	"cvetracker/internal/telemetry"
)

// ErrMissingCredentials indicates the API key or engine id is not configured.
var ErrMissingCredentials = errors.New("search API credentials are not configured")

// Searcher fetches one page of search results.
type Searcher interface {
	Fetch(ctx context.Context, endpoint string, params url.Values) (gjson.Result, error)
}

// QueryFailure records a keyword whose query failed after retries.
type QueryFailure struct {
	Err     error
	Keyword string
}

// Result is the outcome of a harvest across all keywords.
type Result struct {
	// Err is set when the harvest could not start at all.
	Err      error
	Articles []models.Article
	Failures []QueryFailure
}

// Harvester runs one search per keyword and collects the resulting articles.
type Harvester struct {
	searcher    Searcher
	logger      *logger.Logger
	metrics     *telemetry.Metrics
	search      config.SearchConfig
	dedupeLinks bool
}

// NewHarvester creates a harvester that queries through searcher.
func NewHarvester(searcher Searcher, cfg *config.Config, log *logger.Logger, metrics *telemetry.Metrics) *Harvester {
	if log == nil {
		log = logger.Discard()
	}

	if metrics == nil {
		metrics = telemetry.NewMetrics()
	}

	return &Harvester{
		searcher:    searcher,
		logger:      log,
		metrics:     metrics,
		search:      cfg.Tracker.Search,
		dedupeLinks: cfg.Features.DedupeLinks,
	}
}

// Harvest queries each keyword in order and concatenates the articles found.
// A failing keyword is logged and recorded; the remaining keywords still run.
func (h *Harvester) Harvest(ctx context.Context, keywords []string) Result {
	if h.search.APIKey == "" || h.search.EngineID == "" {
		h.logger.Error("❌ Search API credentials not set, skipping harvest",
			"hint", "set GOOGLE_CSE_API_KEY and GOOGLE_CSE_ID")

		return Result{Err: ErrMissingCredentials}
	}

	var result Result

	seen := make(map[string]bool)

	for _, keyword := range keywords {
		if err := ctx.Err(); err != nil {
			result.Failures = append(result.Failures, QueryFailure{Keyword: keyword, Err: err})
			h.metrics.QueriesFailed.Inc()

			continue
		}

		h.logger.Info("🔍 Querying search API", "keyword", keyword)

		doc, err := h.searcher.Fetch(ctx, h.search.Endpoint, h.queryParams(keyword))
		if err != nil {
			h.logger.Warn("Query failed, continuing with next keyword", "keyword", keyword, "error", err)
			result.Failures = append(result.Failures, QueryFailure{Keyword: keyword, Err: err})
			h.metrics.QueriesFailed.Inc()

			continue
		}

		articles := ParseItems(doc)
		kept := 0

		for _, article := range articles {
			if h.dedupeLinks && article.Link != "" {
				if seen[article.Link] {
					continue
				}

				seen[article.Link] = true
			}

			result.Articles = append(result.Articles, article)
			kept++
		}

		h.metrics.ArticlesHarvested.Add(float64(kept))
		h.logger.Debug("Query complete", "keyword", keyword, "items", len(articles), "kept", kept)
	}

	h.logger.Info("✅ Harvest complete",
		"articles", len(result.Articles),
		"failed_queries", len(result.Failures))

	return result
}

func (h *Harvester) queryParams(keyword string) url.Values {
	return url.Values{
		"q":   {keyword},
		"key": {h.search.APIKey},
		"cx":  {h.search.EngineID},
	}
}
