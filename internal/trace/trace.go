// Package trace records operation timing for pipeline instrumentation.
package trace

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status of a completed span.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Entry is one recorded operation interval.
type Entry struct {
	ID        string         `json:"id"`
	Operation string         `json:"operation"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Status    Status         `json:"status"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// OperationStats aggregates all entries sharing one operation name.
type OperationStats struct {
	Count         int           `json:"count"`
	TotalDuration time.Duration `json:"total_duration"`
	MinDuration   time.Duration `json:"min_duration"`
	MaxDuration   time.Duration `json:"max_duration"`
	AvgDuration   time.Duration `json:"avg_duration"`
}

// Tracer collects spans for the lifetime of one orchestrator instance.
// Entry insertion is serialized; the traced operation itself is never
// blocked beyond that insertion.
type Tracer struct {
	mu      sync.RWMutex
	entries map[string]Entry
	enabled bool
}

// New creates a tracer. A disabled tracer hands out no-op spans.
func New(enabled bool) *Tracer {
	return &Tracer{
		entries: make(map[string]Entry),
		enabled: enabled,
	}
}

// Span is one in-flight traced interval. End must be called on every exit
// path of the wrapped operation; defer span.End(...) is the usual form.
type Span struct {
	tracer    *Tracer
	operation string
	startedAt time.Time
	metadata  map[string]any
	done      bool
}

// noopSpan is shared by all disabled traces.
var noopSpan = &Span{done: true}

// Start opens a span for an operation. Returns immediately; duration is
// measured from this call to End.
func (t *Tracer) Start(operation string, metadata map[string]any) *Span {
	if !t.enabled {
		return noopSpan
	}
	return &Span{
		tracer:    t,
		operation: operation,
		startedAt: time.Now(),
		metadata:  metadata,
	}
}

// End closes the span and records its entry. A non-nil err marks the
// entry as failed; duration is recorded either way. Safe to call at most
// once per span; extra calls are ignored.
func (s *Span) End(err error) {
	if s.done {
		return
	}
	s.done = true

	status := StatusSuccess
	if err != nil {
		status = StatusError
	}

	entry := Entry{
		ID:        uuid.New().String(),
		Operation: s.operation,
		StartedAt: s.startedAt,
		Duration:  time.Since(s.startedAt),
		Status:    status,
		Metadata:  s.metadata,
	}

	s.tracer.mu.Lock()
	s.tracer.entries[entry.ID] = entry
	s.tracer.mu.Unlock()
}

// Entries returns a snapshot of recorded entries, optionally filtered by
// operation name (empty name returns all).
func (t *Tracer) Entries(operation string) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		if operation == "" || e.Operation == operation {
			out = append(out, e)
		}
	}
	return out
}

// Stats recomputes per-operation statistics from the stored entries.
// It is not maintained incrementally, so it always reflects exactly the
// entries currently held.
func (t *Tracer) Stats() map[string]OperationStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := make(map[string]OperationStats)
	for _, e := range t.entries {
		s, ok := stats[e.Operation]
		if !ok {
			s = OperationStats{MinDuration: e.Duration, MaxDuration: e.Duration}
		}
		s.Count++
		s.TotalDuration += e.Duration
		if e.Duration < s.MinDuration {
			s.MinDuration = e.Duration
		}
		if e.Duration > s.MaxDuration {
			s.MaxDuration = e.Duration
		}
		stats[e.Operation] = s
	}

	for op, s := range stats {
		s.AvgDuration = s.TotalDuration / time.Duration(s.Count)
		stats[op] = s
	}
	return stats
}

// Len reports how many entries the tracer holds.
func (t *Tracer) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
