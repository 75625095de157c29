package telemetry

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.FetchAttempts.WithLabelValues(OutcomeSuccess).Inc()
	m.FetchAttempts.WithLabelValues(OutcomeRetryable).Add(2)
	m.ArticlesHarvested.Add(5)
	m.CVEsTracked.Set(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchAttempts.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FetchAttempts.WithLabelValues(OutcomeRetryable)))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.ArticlesHarvested))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.CVEsTracked))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.QueriesFailed.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.QueriesFailed))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.QueriesFailed))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.WriteFailures.WithLabelValues("report").Inc()

	path := filepath.Join(t.TempDir(), "tracker.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `cvetracker_write_failures_total{target="report"} 1`)
}

func TestMetrics_WriteTextfile_BadDirectory(t *testing.T) {
	m := NewMetrics()

	err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "tracker.prom"))
	assert.Error(t, err)
}

func TestInitTracer_Disabled(t *testing.T) {
	shutdown, err := InitTracer(false, &bytes.Buffer{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracer_Enabled(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer

	shutdown, err := InitTracer(true, &buf)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "unit-span")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.True(t, strings.Contains(buf.String(), "unit-span"), "span not exported: %s", buf.String())
}
