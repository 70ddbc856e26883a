package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	promclient "github.com/prometheus/client_golang/prometheus"

	goAuthClient "github.com/MrEthical07/goAuthClient"
)

type fakeSource struct {
	snapshot goAuthClient.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goAuthClient.MetricsSnapshot { return f.snapshot }
func (f fakeSource) EventsDropped() uint64                         { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goAuthClient.MetricsSnapshot{
			Counters:   map[goAuthClient.MetricID]uint64{},
			Histograms: map[goAuthClient.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCounterAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goAuthClient.MetricsSnapshot{
			Counters: map[goAuthClient.MetricID]uint64{
				goAuthClient.MetricRefreshJoined: 7,
			},
			Histograms: map[goAuthClient.MetricID][]uint64{
				goAuthClient.MetricRefreshLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"goauthclient_refresh_joined_total 7",
		"# TYPE goauthclient_refresh_joined_total counter",
		"goauthclient_refresh_latency_seconds_bucket{le=\"0.005\"} 1",
		"goauthclient_refresh_latency_seconds_bucket{le=\"+Inf\"} 36",
		"goauthclient_refresh_latency_seconds_count 36",
		"goauthclient_events_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goAuthClient.MetricsSnapshot{
			Counters:   map[goAuthClient.MetricID]uint64{goAuthClient.MetricLoginSuccess: 1},
			Histograms: map[goAuthClient.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "goauthclient_login_success_total 1") {
		t.Fatalf("unexpected body:\n%s", rec.Body.String())
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goAuthClient.MetricsSnapshot{
			Counters:   map[goAuthClient.MetricID]uint64{goAuthClient.MetricRefreshSuccess: 4},
			Histograms: map[goAuthClient.MetricID][]uint64{},
		},
	})
	extra := promclient.NewCounter(promclient.CounterOpts{Name: "app_requests_total", Help: "Requests."})
	extra.Add(2)
	exp.Registry().MustRegister(extra)

	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		"goauthclient_refresh_success_total 4",
		"app_requests_total 2",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in body, got:\n%s", want, body)
		}
	}
	if rendered := exp.Render(); !strings.Contains(rendered, "app_requests_total 2") {
		t.Fatalf("Render must gather the same registry, got:\n%s", rendered)
	}
}

func TestRenderNilExporter(t *testing.T) {
	var exp *PrometheusExporter
	if exp.Render() != "" {
		t.Fatal("nil exporter must render nothing")
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goAuthClient.MetricsSnapshot{
			Counters: map[goAuthClient.MetricID]uint64{
				goAuthClient.MetricLoginSuccess:   1000,
				goAuthClient.MetricUnauthorized:   400,
				goAuthClient.MetricRefreshSuccess: 80,
				goAuthClient.MetricRefreshJoined:  320,
			},
			Histograms: map[goAuthClient.MetricID][]uint64{
				goAuthClient.MetricRefreshLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
