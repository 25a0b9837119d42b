package internaldefs

import (
	"strings"
	"testing"

	"github.com/MrEthical07/moodjournal/internal/metrics"
)

func TestDefinitionsCoverEveryMetric(t *testing.T) {
	seen := make(map[metrics.ID]string)
	for _, def := range CounterDefs {
		seen[def.ID] = def.Name
		if !strings.HasPrefix(def.Name, "moodjournal_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("bad counter name %q", def.Name)
		}
	}
	for _, def := range HistogramDefs {
		seen[def.ID] = def.Name
	}
	if len(seen) != metrics.Count {
		t.Fatalf("expected %d definitions, got %d", metrics.Count, len(seen))
	}
	if len(HistogramBounds)+1 != len(HistogramBoundSuffix) {
		t.Fatal("bounds and suffixes disagree")
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("got %v want %v", got, want)
	}
}
