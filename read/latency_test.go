package read

import (
	"testing"
	"time"
)

func TestLatencyTrackerNoSamplesReturnsZero(t *testing.T) {
	tr := NewLatencyTracker(100)
	if got := tr.SpeculativeThreshold("t1"); got != 0 {
		t.Errorf("expected 0 with no samples, got %v", got)
	}
}

func TestLatencyTrackerTracksRoughMagnitude(t *testing.T) {
	tr := NewLatencyTracker(1000)
	for i := 0; i < 50; i++ {
		tr.Update("t1", 5*time.Millisecond)
	}
	got := tr.SpeculativeThreshold("t1")
	if got < time.Millisecond || got > 50*time.Millisecond {
		t.Errorf("expected threshold near 5ms, got %v", got)
	}
}

func TestLatencyTrackerDecays(t *testing.T) {
	tr := NewLatencyTracker(10)
	for i := 0; i < 100; i++ {
		tr.Update("t1", time.Millisecond)
	}
	h := tr.tables["t1"]
	if h.count >= 100 {
		t.Errorf("expected decay to have halved the count repeatedly, got %d", h.count)
	}
}
