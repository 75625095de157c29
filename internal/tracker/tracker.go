// Package tracker sequences one harvest, aggregation and persistence run.
package tracker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cvetracker/internal/aggregator"
	"cvetracker/internal/config"
	"cvetracker/internal/crawler"
	"cvetracker/internal/logger"
	"cvetracker/internal/models"
	"cvetracker/internal/storage"
	"cvetracker/internal/telemetry"
)

const tracerName = "cvetracker/internal/tracker"

// Harvester collects articles for a list of keywords.
type Harvester interface {
	Harvest(ctx context.Context, keywords []string) crawler.Result
}

// RunSummary describes the outcome of a single run.
type RunSummary struct {
	HarvestErr   error
	// InterruptErr is set when the run context ended during the harvest;
	// no output is written in that case.
	InterruptErr error
	ArchiveErr   error
	ReportErr    error
	MetricsErr   error
	Summaries    map[string]models.CVESummary
	RunID        string
	Failures     []crawler.QueryFailure
	Articles     int
	ReportAction storage.ReportAction
}

// OK reports whether every output was written.
func (s RunSummary) OK() bool {
	return s.InterruptErr == nil && s.ArchiveErr == nil && s.ReportErr == nil && s.MetricsErr == nil
}

// Tracker runs the pipeline with a fixed configuration.
type Tracker struct {
	cfg       *config.Config
	harvester Harvester
	logger    *logger.Logger
	metrics   *telemetry.Metrics
	tracer    trace.Tracer
	now       func() time.Time
}

// New builds a tracker that queries the configured search API.
func New(cfg *config.Config, log *logger.Logger, metrics *telemetry.Metrics) *Tracker {
	if log == nil {
		log = logger.Discard()
	}

	if metrics == nil {
		metrics = telemetry.NewMetrics()
	}

	fetcher := crawler.NewFetcher(cfg, log, metrics)

	return NewWithHarvester(cfg, crawler.NewHarvester(fetcher, cfg, log, metrics), log, metrics)
}

// NewWithHarvester builds a tracker around an existing harvester.
func NewWithHarvester(cfg *config.Config, harvester Harvester, log *logger.Logger, metrics *telemetry.Metrics) *Tracker {
	if log == nil {
		log = logger.Discard()
	}

	if metrics == nil {
		metrics = telemetry.NewMetrics()
	}

	return &Tracker{
		cfg:       cfg,
		harvester: harvester,
		logger:    log,
		metrics:   metrics,
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}
}

// Run harvests, aggregates and writes both outputs. A failed write is
// logged and recorded; the remaining writes are still attempted. When ctx
// ends during the harvest the partial corpus is discarded and the existing
// outputs are left as they are.
func (t *Tracker) Run(ctx context.Context) RunSummary {
	summary := RunSummary{RunID: uuid.NewString()}
	log := t.logger.With("run_id", summary.RunID)

	ctx, span := t.tracer.Start(ctx, "tracker.run", trace.WithAttributes(
		attribute.String("run.id", summary.RunID),
		attribute.Int("keywords", len(t.cfg.Tracker.Keywords)),
	))
	defer span.End()

	log.Info("🚀 Starting CVE tracker run", "keywords", len(t.cfg.Tracker.Keywords))

	result := t.harvest(ctx)
	summary.HarvestErr = result.Err
	summary.Failures = result.Failures
	summary.Articles = len(result.Articles)

	if err := ctx.Err(); err != nil {
		summary.InterruptErr = err
		span.RecordError(err)
		span.SetStatus(codes.Error, "run interrupted")
		log.Warn("⚠️  Run interrupted, archive and report left untouched",
			"error", err,
			"articles", summary.Articles,
			"failed_queries", len(summary.Failures))

		return summary
	}

	if result.Err != nil {
		log.Debug("Continuing with an empty corpus", "error", result.Err)
	}

	summary.Summaries = t.aggregate(ctx, result.Articles)
	log.Info("📊 Aggregated CVE summaries", "articles", summary.Articles, "cves", len(summary.Summaries))

	summary.ArchiveErr = t.writeArchive(ctx, result.Articles)
	if summary.ArchiveErr != nil {
		log.Error("❌ Failed to write article archive", "path", t.cfg.Tracker.Output.ArchivePath, "error", summary.ArchiveErr)
	} else {
		log.Info("💾 Wrote article archive", "path", t.cfg.Tracker.Output.ArchivePath, "articles", summary.Articles)
	}

	summary.ReportAction, summary.ReportErr = t.updateReport(ctx, summary.Summaries)
	if summary.ReportErr != nil {
		log.Error("❌ Failed to update report", "path", t.cfg.Tracker.Output.ReportPath, "error", summary.ReportErr)
	} else {
		log.Info("📝 Updated report section", "path", t.cfg.Tracker.Output.ReportPath, "action", summary.ReportAction.String())
	}

	t.metrics.LastRunTimestamp.Set(float64(t.now().Unix()))

	if path := t.cfg.Advanced.MetricsTextfile; path != "" {
		if err := t.metrics.WriteTextfile(path); err != nil {
			summary.MetricsErr = err
			log.Error("Failed to write metrics textfile", "path", path, "error", err)
		}
	}

	if !summary.OK() {
		span.SetStatus(codes.Error, "one or more outputs failed")
	}

	log.Info("✅ Run complete",
		"articles", summary.Articles,
		"cves", len(summary.Summaries),
		"failed_queries", len(summary.Failures))

	return summary
}

func (t *Tracker) harvest(ctx context.Context) crawler.Result {
	ctx, span := t.tracer.Start(ctx, "tracker.harvest")
	defer span.End()

	result := t.harvester.Harvest(ctx, t.cfg.Tracker.Keywords)

	span.SetAttributes(
		attribute.Int("articles", len(result.Articles)),
		attribute.Int("failed_queries", len(result.Failures)),
	)

	if result.Err != nil {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.Err.Error())
	}

	return result
}

func (t *Tracker) aggregate(ctx context.Context, articles []models.Article) map[string]models.CVESummary {
	_, span := t.tracer.Start(ctx, "tracker.aggregate")
	defer span.End()

	summaries := aggregator.Aggregate(articles)
	t.metrics.CVEsTracked.Set(float64(len(summaries)))
	span.SetAttributes(attribute.Int("cves", len(summaries)))

	return summaries
}

func (t *Tracker) writeArchive(ctx context.Context, articles []models.Article) error {
	_, span := t.tracer.Start(ctx, "tracker.write_archive")
	defer span.End()

	err := storage.WriteArchive(t.cfg.Tracker.Output.ArchivePath, articles)
	if err != nil {
		t.metrics.WriteFailures.WithLabelValues("archive").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return err
}

func (t *Tracker) updateReport(ctx context.Context, summaries map[string]models.CVESummary) (storage.ReportAction, error) {
	_, span := t.tracer.Start(ctx, "tracker.update_report")
	defer span.End()

	action, err := storage.UpdateReport(t.cfg.Tracker.Output.ReportPath, t.cfg.Tracker.Report.Heading, summaries)
	if err != nil {
		t.metrics.WriteFailures.WithLabelValues("report").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return action, err
	}

	span.SetAttributes(attribute.String("action", action.String()))

	return action, nil
}
