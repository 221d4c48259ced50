package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/infrastructure/monitoring/logging"
)

func newTestCollector(t *testing.T) MetricsCollector {
	t.Helper()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test", Subsystem: "unit"}, logging.NewNopLogger())
	require.NoError(t, err)
	return c
}

func scrapeMetrics(t *testing.T, collector MetricsCollector) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	collector.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestNewMetricsCollector_EmptyNamespace(t *testing.T) {
	_, err := NewMetricsCollector(CollectorConfig{Subsystem: "unit"}, nil)
	assert.Error(t, err)
}

func TestNewMetricsCollector_WithRuntimeMetrics(t *testing.T) {
	c, err := NewMetricsCollector(CollectorConfig{
		Namespace:            "test",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, nil)
	require.NoError(t, err)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, "go_goroutines")
	if !strings.Contains(output, "test_process_") {
		t.Log("process collector unsupported on this platform")
	}
}

func TestRegisterCounter_WithLabels(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("chunks_seen", "Chunks seen", "doc_type").WithLabelValues("lab_report").Add(3)

	expected := `
# HELP test_unit_chunks_seen Chunks seen
# TYPE test_unit_chunks_seen counter
test_unit_chunks_seen{doc_type="lab_report"} 3
`
	require.NoError(t, testutil.GatherAndCompare(c.Gatherer(), strings.NewReader(expected), "test_unit_chunks_seen"))
}

func TestRegisterCounter_DuplicateSharesVector(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("dup_total", "help").WithLabelValues().Inc()
	c.RegisterCounter("dup_total", "help").WithLabelValues().Inc()

	expected := `
# HELP test_unit_dup_total help
# TYPE test_unit_dup_total counter
test_unit_dup_total 2
`
	require.NoError(t, testutil.GatherAndCompare(c.Gatherer(), strings.NewReader(expected), "test_unit_dup_total"))
}

func TestRegisterGauge(t *testing.T) {
	c := newTestCollector(t)
	g := c.RegisterGauge("in_flight", "In flight").WithLabelValues()
	g.Set(4)
	g.Dec()

	assert.Contains(t, scrapeMetrics(t, c), "test_unit_in_flight 3")
}

func TestRegisterHistogram_DefaultBuckets(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterHistogram("latency_seconds", "Latency", nil).WithLabelValues().Observe(0.1)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_latency_seconds_bucket{le="0.1"} 1`)
	assert.Contains(t, output, "test_unit_latency_seconds_count 1")
}

func TestTimer_ObservesElapsed(t *testing.T) {
	c := newTestCollector(t)
	timer := NewTimer(c.RegisterHistogram("timer_seconds", "Timer", nil).WithLabelValues())
	time.Sleep(5 * time.Millisecond)
	d := timer.ObserveDuration()

	assert.GreaterOrEqual(t, d, 5*time.Millisecond)
	assert.Contains(t, scrapeMetrics(t, c), "test_unit_timer_seconds_count 1")

	assert.NotPanics(t, func() { NewTimer(nil).ObserveDuration() })
}

func TestConcurrentRegistration(t *testing.T) {
	c := newTestCollector(t)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RegisterCounter("concurrent_total", "help", "id").WithLabelValues("1").Inc()
		}()
	}
	wg.Wait()

	assert.Contains(t, scrapeMetrics(t, c), `test_unit_concurrent_total{id="1"} 50`)
}

func TestTypeMismatch_ReturnsNoop(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test", Subsystem: "unit"}, logging.NewLoggerFromCore(core))
	require.NoError(t, err)

	c.RegisterCounter("conflict", "help").WithLabelValues().Inc()
	assert.NotPanics(t, func() {
		c.RegisterGauge("conflict", "help").WithLabelValues().Set(10)
		c.RegisterHistogram("conflict", "help", nil).WithLabelValues().Observe(1)
	})

	assert.Contains(t, scrapeMetrics(t, c), "# TYPE test_unit_conflict counter")
	assert.Equal(t, 2, logs.FilterMessage("metric type mismatch").Len())
}

func TestMustRegisterAndUnregister(t *testing.T) {
	c := newTestCollector(t)
	pc := prometheus.NewCounter(prometheus.CounterOpts{Name: "custom_total", Help: "custom"})
	c.MustRegister(pc)
	pc.Inc()
	assert.Contains(t, scrapeMetrics(t, c), "custom_total 1")

	assert.True(t, c.Unregister(pc))
	assert.NotContains(t, scrapeMetrics(t, c), "custom_total")
}

//Personal.AI order the ending
