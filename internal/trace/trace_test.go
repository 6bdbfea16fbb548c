package trace

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestSpanRecordsEntry(t *testing.T) {
	tr := New(true)

	span := tr.Start("route_analysis", map[string]any{"route": "a-b"})
	time.Sleep(5 * time.Millisecond)
	span.End(nil)

	entries := tr.Entries("route_analysis")
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	e := entries[0]
	if e.Status != StatusSuccess {
		t.Errorf("expected success status, got %s", e.Status)
	}
	if e.Duration < 5*time.Millisecond {
		t.Errorf("expected duration >= 5ms, got %v", e.Duration)
	}
	if e.Metadata["route"] != "a-b" {
		t.Errorf("metadata not preserved: %v", e.Metadata)
	}
}

func TestSpanErrorStatus(t *testing.T) {
	tr := New(true)

	span := tr.Start("risk_scoring", nil)
	span.End(errors.New("provider down"))

	entries := tr.Entries("risk_scoring")
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Status != StatusError {
		t.Errorf("expected error status, got %s", entries[0].Status)
	}
}

func TestDisabledTracerIsNoop(t *testing.T) {
	tr := New(false)

	span := tr.Start("anything", nil)
	span.End(nil)

	if tr.Len() != 0 {
		t.Errorf("disabled tracer recorded %d entries", tr.Len())
	}
}

func TestDoubleEndIgnored(t *testing.T) {
	tr := New(true)

	span := tr.Start("op", nil)
	span.End(nil)
	span.End(nil)

	if got := tr.Len(); got != 1 {
		t.Errorf("expected 1 entry after double End, got %d", got)
	}
}

func TestStatsRecomputed(t *testing.T) {
	tr := New(true)

	for i := 0; i < 3; i++ {
		span := tr.Start("safety_data", nil)
		time.Sleep(time.Millisecond)
		span.End(nil)
	}
	span := tr.Start("alert_generation", nil)
	span.End(nil)

	stats := tr.Stats()

	sd, ok := stats["safety_data"]
	if !ok {
		t.Fatal("missing safety_data stats")
	}
	if sd.Count != 3 {
		t.Errorf("expected count 3, got %d", sd.Count)
	}
	if sd.MinDuration > sd.MaxDuration {
		t.Errorf("min %v > max %v", sd.MinDuration, sd.MaxDuration)
	}
	if sd.AvgDuration != sd.TotalDuration/3 {
		t.Errorf("avg %v != total/3 %v", sd.AvgDuration, sd.TotalDuration/3)
	}

	if _, ok := stats["alert_generation"]; !ok {
		t.Error("missing alert_generation stats")
	}
}

func TestConcurrentSpansSameOperation(t *testing.T) {
	tr := New(true)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			span := tr.Start("batch_item", nil)
			span.End(nil)
		}()
	}
	wg.Wait()

	stats := tr.Stats()
	if stats["batch_item"].Count != n {
		t.Errorf("expected %d entries under parallel writers, got %d",
			n, stats["batch_item"].Count)
	}
}
