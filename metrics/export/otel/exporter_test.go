package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/MrEthical07/moodjournal/internal/metrics"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot metrics.Snapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() metrics.Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := metrics.Snapshot{
		Counters:   make(map[metrics.ID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[metrics.ID][]uint64, len(f.snapshot.Histograms)),
		Sums:       make(map[metrics.ID]float64, len(f.snapshot.Sums)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	for k, v := range f.snapshot.Sums {
		out.Sums[k] = v
	}
	return out
}

func (f *fakeSource) EventsDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newMeterReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func findInt64(rm metricdata.ResourceMetrics, name string) (int64, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if len(data.DataPoints) > 0 {
					return data.DataPoints[0].Value, true
				}
			case metricdata.Gauge[int64]:
				if len(data.DataPoints) > 0 {
					return data.DataPoints[0].Value, true
				}
			}
		}
	}
	return 0, false
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newMeterReader()
	meter := provider.Meter("moodjournal-test")

	src := &fakeSource{
		snapshot: metrics.Snapshot{
			Counters: map[metrics.ID]uint64{
				metrics.RefreshStarted: 3,
			},
			Histograms: map[metrics.ID][]uint64{
				metrics.RefreshLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
			Sums: map[metrics.ID]float64{metrics.RefreshLatency: 0.25},
		},
		dropped: 1,
	}

	exp, err := NewExporter(meter, src)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if v, ok := findInt64(rm, "moodjournal_refresh_started_total"); !ok || v != 3 {
		t.Fatalf("expected refresh_started 3, got %d %v", v, ok)
	}
	if v, ok := findInt64(rm, "moodjournal_refresh_latency_seconds_bucket_le_inf"); !ok || v != 8 {
		t.Fatalf("expected +Inf bucket 8, got %d %v", v, ok)
	}
	if v, ok := findInt64(rm, "moodjournal_events_dropped_total"); !ok || v != 1 {
		t.Fatalf("expected events dropped 1, got %d %v", v, ok)
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newMeterReader()
	meter := provider.Meter("moodjournal-test")

	if _, err := NewExporter(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporter(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newMeterReader()
	meter := provider.Meter("moodjournal-test")

	src := &fakeSource{
		snapshot: metrics.Snapshot{
			Counters: map[metrics.ID]uint64{
				metrics.RetryAfterRefresh: 1,
			},
			Histograms: map[metrics.ID][]uint64{
				metrics.RefreshLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewExporter(meter, src)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[metrics.RetryAfterRefresh] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
