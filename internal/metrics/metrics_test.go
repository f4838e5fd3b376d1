package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInitMetrics(t *testing.T) {
	// Should be idempotent (safe to call multiple times)
	InitMetrics()
	InitMetrics()
	InitMetrics()
}

func TestRecordSourceFetch(t *testing.T) {
	InitMetrics()

	before := testutil.ToFloat64(sourceFetchTotal.WithLabelValues("URLHaus", "success"))
	RecordSourceFetch("URLHaus", "success", 12, 250*time.Millisecond)
	after := testutil.ToFloat64(sourceFetchTotal.WithLabelValues("URLHaus", "success"))

	if after-before != 1 {
		t.Errorf("expected fetch counter to grow by 1, got %v", after-before)
	}

	// Should not panic for errors with no records
	RecordSourceFetch("AbuseIPDB", "error", 0, time.Second)
}

func TestRecordStage(t *testing.T) {
	InitMetrics()

	tests := []struct {
		stage string
		count int
	}{
		{"fetched", 120},
		{"deduped", 100},
		{"filtered", 40},
		{"limited", 10},
	}

	for _, tt := range tests {
		t.Run(tt.stage, func(t *testing.T) {
			RecordStage(tt.stage, tt.count)
			if got := testutil.ToFloat64(pipelineRecords.WithLabelValues(tt.stage)); got != float64(tt.count) {
				t.Errorf("expected %d, got %v", tt.count, got)
			}
		})
	}
}
