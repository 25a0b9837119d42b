package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/moodjournal/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type fakeSource struct {
	snapshot metrics.Snapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() metrics.Snapshot { return f.snapshot }
func (f fakeSource) EventsDropped() uint64             { return f.dropped }

func scrape(t *testing.T, src Source) string {
	t.Helper()
	h, err := Handler(src)
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func gather(t testing.TB, c *Collector) int {
	t.Helper()
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	return len(families)
}

func TestCollectEmptyWhenMetricsDisabled(t *testing.T) {
	c := NewCollector(fakeSource{snapshot: metrics.New(metrics.Config{}).Snapshot()})
	if n := gather(t, c); n != 0 {
		t.Fatalf("expected no series for disabled metrics, got %d", n)
	}
}

func TestScrapeIncludesCounterAndHistogram(t *testing.T) {
	out := scrape(t, fakeSource{
		snapshot: metrics.Snapshot{
			Counters: map[metrics.ID]uint64{
				metrics.RefreshStarted:    1,
				metrics.RetryAfterRefresh: 3,
			},
			Histograms: map[metrics.ID][]uint64{
				metrics.RefreshLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
			Sums: map[metrics.ID]float64{metrics.RefreshLatency: 1.5},
		},
		dropped: 2,
	})

	for _, want := range []string{
		"moodjournal_refresh_started_total 1",
		"moodjournal_retry_after_refresh_total 3",
		`moodjournal_refresh_latency_seconds_bucket{le="0.005"} 1`,
		`moodjournal_refresh_latency_seconds_bucket{le="+Inf"} 36`,
		"moodjournal_refresh_latency_seconds_sum 1.5",
		"moodjournal_events_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestCollectorCountsLiveMetrics(t *testing.T) {
	m := metrics.New(metrics.Config{Enabled: true})
	m.Inc(metrics.LoginSuccess)
	m.Inc(metrics.LoginSuccess)

	out := scrape(t, fakeSource{snapshot: m.Snapshot()})
	if !strings.Contains(out, "# TYPE moodjournal_login_success_total counter") ||
		!strings.Contains(out, "moodjournal_login_success_total 2") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if strings.Contains(out, "moodjournal_refresh_latency_seconds") {
		t.Fatal("histogram must be absent when latency collection is off")
	}
	if n := gather(t, NewCollector(fakeSource{snapshot: m.Snapshot()})); n != len(m.Snapshot().Counters)+1 {
		t.Fatalf("expected one family per counter plus dropped, got %d", n)
	}
}

func BenchmarkCollect(b *testing.B) {
	m := metrics.New(metrics.Config{Enabled: true, EnableLatencyHistograms: true})
	c := NewCollector(fakeSource{snapshot: m.Snapshot()})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = gather(b, c)
	}
}
