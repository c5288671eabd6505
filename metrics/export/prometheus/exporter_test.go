package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	goClerk "github.com/MrEthical07/goClerk"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	snapshot goClerk.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goClerk.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                     { return f.dropped }

func scrape(t *testing.T, exp *PrometheusExporter) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestCollectNothingWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goClerk.MetricsSnapshot{
			Counters:   map[goClerk.MetricID]uint64{},
			Histograms: map[goClerk.MetricID][]uint64{},
		},
	})

	if n := testutil.CollectAndCount(exp); n != 0 {
		t.Fatalf("expected no metrics for disabled source, got %d", n)
	}
}

func TestHandlerIncludesCounterAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goClerk.MetricsSnapshot{
			Counters: map[goClerk.MetricID]uint64{
				goClerk.MetricSignUpCreate: 7,
			},
			Histograms: map[goClerk.MetricID][]uint64{
				goClerk.MetricRequestLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
			HistogramSums: map[goClerk.MetricID]time.Duration{
				goClerk.MetricRequestLatency: 3 * time.Second,
			},
		},
		dropped: 2,
	})

	out := scrape(t, exp)
	for _, want := range []string{
		"goclerk_sign_up_create_total 7",
		`goclerk_request_latency_seconds_bucket{le="0.05"} 1`,
		`goclerk_request_latency_seconds_bucket{le="5"} 28`,
		`goclerk_request_latency_seconds_bucket{le="+Inf"} 36`,
		"goclerk_request_latency_seconds_sum 3",
		"goclerk_request_latency_seconds_count 36",
		"goclerk_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestCollectorPassesLint(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goClerk.MetricsSnapshot{
			Counters: map[goClerk.MetricID]uint64{goClerk.MetricRequest: 1},
		},
	})

	problems, err := testutil.CollectAndLint(exp)
	if err != nil {
		t.Fatalf("lint failed: %v", err)
	}
	if len(problems) != 0 {
		t.Fatalf("unexpected lint problems: %v", problems)
	}
}

func TestRegisterIntoCallerRegistry(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{})
	reg := prom.NewRegistry()
	if err := exp.Register(reg); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := exp.Register(reg); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}
