package tracker

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"cvetracker/internal/config"
	"cvetracker/internal/crawler"
	"cvetracker/internal/logger"
	"cvetracker/internal/models"
	"cvetracker/internal/storage"
	"cvetracker/internal/telemetry"
	"cvetracker/pkg/section"
)

type stubHarvester struct {
	result   crawler.Result
	keywords []string
}

func (s *stubHarvester) Harvest(_ context.Context, keywords []string) crawler.Result {
	s.keywords = keywords

	return s.result
}

func ptr(s string) *string {
	return &s
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Tracker.Output.ArchivePath = filepath.Join(dir, "articles.json")
	cfg.Tracker.Output.ReportPath = filepath.Join(dir, "README.md")

	return cfg
}

func scenarioArticles() []models.Article {
	return []models.Article{
		{Title: "CVE-2025-1234 affects routers", Snippet: "victims reported", PublishDateRaw: ptr("2025-03-01")},
		{Title: "Other news", Snippet: "no CVE here", PublishDateRaw: ptr("2025-01-01")},
	}
}

func TestRun_WritesBothOutputs(t *testing.T) {
	cfg := testConfig(t)
	cfg.Advanced.MetricsTextfile = filepath.Join(filepath.Dir(cfg.Tracker.Output.ArchivePath), "tracker.prom")

	harvester := &stubHarvester{result: crawler.Result{Articles: scenarioArticles()}}
	metrics := telemetry.NewMetrics()
	tr := NewWithHarvester(cfg, harvester, logger.Discard(), metrics)
	tr.now = func() time.Time { return time.Unix(1750000000, 0) }

	summary := tr.Run(context.Background())

	assert.True(t, summary.OK())
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, cfg.Tracker.Keywords, harvester.keywords)
	assert.Equal(t, 2, summary.Articles)
	assert.Equal(t, storage.ReportAppended, summary.ReportAction)
	require.Len(t, summary.Summaries, 1)
	assert.Equal(t, 1, summary.Summaries["CVE-2025-1234"].ArticleCount)

	entries, err := storage.ReadArchive(cfg.Tracker.Output.ArchivePath)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	report, err := os.ReadFile(cfg.Tracker.Output.ReportPath)
	require.NoError(t, err)
	assert.Contains(t, string(report), "| CVE-2025-1234 | 1 ")
	assert.Contains(t, string(report), "2025-03-01")
	assert.Contains(t, string(report), "victims reported")

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CVEsTracked))
	assert.Equal(t, 1750000000.0, testutil.ToFloat64(metrics.LastRunTimestamp))

	prom, err := os.ReadFile(cfg.Advanced.MetricsTextfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "cvetracker_cves_tracked 1")
}

func TestRun_SecondRunReplacesSection(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.Tracker.Output.ReportPath, []byte("# Notes\n"), 0o644))

	harvester := &stubHarvester{result: crawler.Result{Articles: scenarioArticles()}}
	tr := NewWithHarvester(cfg, harvester, logger.Discard(), nil)

	first := tr.Run(context.Background())
	assert.Equal(t, storage.ReportAppended, first.ReportAction)

	before, err := os.ReadFile(cfg.Tracker.Output.ReportPath)
	require.NoError(t, err)

	second := tr.Run(context.Background())
	assert.Equal(t, storage.ReportReplaced, second.ReportAction)
	assert.NotEqual(t, first.RunID, second.RunID)

	after, err := os.ReadFile(cfg.Tracker.Output.ReportPath)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
	assert.True(t, strings.HasPrefix(string(after), "# Notes\n"))
}

func TestRun_MissingCredentialsStillWritesOutputs(t *testing.T) {
	cfg := testConfig(t)
	harvester := &stubHarvester{result: crawler.Result{Err: crawler.ErrMissingCredentials}}

	summary := NewWithHarvester(cfg, harvester, logger.Discard(), nil).Run(context.Background())

	assert.ErrorIs(t, summary.HarvestErr, crawler.ErrMissingCredentials)
	assert.True(t, summary.OK())
	assert.Empty(t, summary.Summaries)

	raw, err := os.ReadFile(cfg.Tracker.Output.ArchivePath)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(raw))

	report, err := os.ReadFile(cfg.Tracker.Output.ReportPath)
	require.NoError(t, err)
	assert.Contains(t, string(report), section.TagStart)
}

func TestRun_MissingCredentialsNotReportedTwice(t *testing.T) {
	var buf bytes.Buffer

	cfg := testConfig(t)
	harvester := &stubHarvester{result: crawler.Result{Err: crawler.ErrMissingCredentials}}
	log := logger.NewLoggerWithWriter(&buf, "debug", "text")

	NewWithHarvester(cfg, harvester, log, nil).Run(context.Background())

	// The harvester owns the error-level report of missing credentials.
	assert.NotContains(t, buf.String(), "level=ERROR")
}

func TestRun_InterruptedRunLeavesOutputsUntouched(t *testing.T) {
	cfg := testConfig(t)
	cfg.Advanced.MetricsTextfile = filepath.Join(filepath.Dir(cfg.Tracker.Output.ArchivePath), "tracker.prom")

	archive := `[{"title":"CVE-2025-1234 earlier run","snippet":"","link":"https://example.com/a","publishDateRaw":null}]` + "\n"
	report := "# Notes\n\n" + section.TagStart + "\n\n| CVE-2025-1234 | 7 |\n\n" + section.TagEnd + "\n"

	require.NoError(t, os.WriteFile(cfg.Tracker.Output.ArchivePath, []byte(archive), 0o644))
	require.NoError(t, os.WriteFile(cfg.Tracker.Output.ReportPath, []byte(report), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	harvester := &stubHarvester{result: crawler.Result{
		Failures: []crawler.QueryFailure{
			{Keyword: "CVE-2025", Err: context.Canceled},
			{Keyword: "zero-day", Err: context.Canceled},
		},
	}}

	summary := NewWithHarvester(cfg, harvester, logger.Discard(), nil).Run(ctx)

	assert.ErrorIs(t, summary.InterruptErr, context.Canceled)
	assert.False(t, summary.OK())
	assert.NoError(t, summary.ArchiveErr)
	assert.NoError(t, summary.ReportErr)
	assert.Len(t, summary.Failures, 2)

	gotArchive, err := os.ReadFile(cfg.Tracker.Output.ArchivePath)
	require.NoError(t, err)
	assert.Equal(t, archive, string(gotArchive))

	gotReport, err := os.ReadFile(cfg.Tracker.Output.ReportPath)
	require.NoError(t, err)
	assert.Equal(t, report, string(gotReport))

	assert.NoFileExists(t, cfg.Advanced.MetricsTextfile)
}

func TestRun_ArchiveFailureDoesNotBlockReport(t *testing.T) {
	cfg := testConfig(t)
	// A directory at the archive path makes the rename fail.
	require.NoError(t, os.Mkdir(cfg.Tracker.Output.ArchivePath, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Tracker.Output.ArchivePath, "x"), nil, 0o644))

	metrics := telemetry.NewMetrics()
	harvester := &stubHarvester{result: crawler.Result{Articles: scenarioArticles()}}

	summary := NewWithHarvester(cfg, harvester, logger.Discard(), metrics).Run(context.Background())

	assert.Error(t, summary.ArchiveErr)
	assert.NoError(t, summary.ReportErr)
	assert.False(t, summary.OK())
	assert.FileExists(t, cfg.Tracker.Output.ReportPath)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WriteFailures.WithLabelValues("archive")))
}

func TestRun_ReportFailureStillWritesArchive(t *testing.T) {
	cfg := testConfig(t)
	ambiguous := section.TagEnd + "\n" + section.TagStart + "\n"
	require.NoError(t, os.WriteFile(cfg.Tracker.Output.ReportPath, []byte(ambiguous), 0o644))

	harvester := &stubHarvester{result: crawler.Result{
		Articles: scenarioArticles(),
		Failures: []crawler.QueryFailure{{Keyword: "zero-day", Err: errors.New("boom")}},
	}}

	summary := NewWithHarvester(cfg, harvester, logger.Discard(), nil).Run(context.Background())

	assert.ErrorIs(t, summary.ReportErr, section.ErrUnbalancedMarkers)
	assert.NoError(t, summary.ArchiveErr)
	assert.Len(t, summary.Failures, 1)
	assert.FileExists(t, cfg.Tracker.Output.ArchivePath)

	report, err := os.ReadFile(cfg.Tracker.Output.ReportPath)
	require.NoError(t, err)
	assert.Equal(t, ambiguous, string(report))
}

func TestRun_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	cfg := testConfig(t)
	harvester := &stubHarvester{result: crawler.Result{Articles: scenarioArticles()}}
	NewWithHarvester(cfg, harvester, logger.Discard(), nil).Run(context.Background())

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}

	assert.ElementsMatch(t, []string{
		"tracker.harvest",
		"tracker.aggregate",
		"tracker.write_archive",
		"tracker.update_report",
		"tracker.run",
	}, names)
}
