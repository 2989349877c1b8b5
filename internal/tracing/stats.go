package tracing

import "sort"

// minSamplesForP95 is the sample count below which the 95th percentile is
// not meaningful; MaxMS is reported instead.
const minSamplesForP95 = 20

// DurationStats summarizes the retained duration samples for one operation.
// All values are in milliseconds, rounded to 2 decimals.
type DurationStats struct {
	Count int     `json:"count"`
	MinMS float64 `json:"min_ms"`
	MaxMS float64 `json:"max_ms"`
	AvgMS float64 `json:"avg_ms"`
	P95MS float64 `json:"p95_ms"`
}

// Snapshot is a point-in-time copy of the tracer's aggregated metrics.
type Snapshot struct {
	TotalSpans      int64                    `json:"total_spans"`
	ErrorSpans      int64                    `json:"error_spans"`
	ErrorRatePct    float64                  `json:"error_rate_pct"`
	ActiveSpans     int                      `json:"active_spans"`
	OperationCounts map[string]int64         `json:"operation_counts"`
	DurationStats   map[string]DurationStats `json:"duration_stats"`
}

// Metrics returns a consistent snapshot of span counters and per-operation
// duration statistics. Safe to call concurrently with tracing activity.
func (t *Tracer) Metrics() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{
		TotalSpans:      t.totalSpans,
		ErrorSpans:      t.errorSpans,
		ActiveSpans:     len(t.active),
		OperationCounts: make(map[string]int64, len(t.opCounts)),
		DurationStats:   make(map[string]DurationStats, len(t.opDurations)),
	}
	if t.totalSpans > 0 {
		snap.ErrorRatePct = round2(float64(t.errorSpans) / float64(t.totalSpans) * 100)
	}
	for op, count := range t.opCounts {
		snap.OperationCounts[op] = count
	}
	for op, samples := range t.opDurations {
		if len(samples) == 0 {
			continue
		}
		snap.DurationStats[op] = summarize(samples)
	}
	return snap
}

// RecentTraces returns records for the most recent limit finished spans,
// oldest first. A non-positive limit falls back to 50.
func (t *Tracer) RecentTraces(limit int) []Record {
	if limit <= 0 {
		limit = 50
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.completed.Length()
	if limit > n {
		limit = n
	}
	records := make([]Record, 0, limit)
	for i := n - limit; i < n; i++ {
		records = append(records, t.completed.Get(i).(*Span).Record())
	}
	return records
}

// ActiveSpans returns records for all currently-open spans. The records are
// detached copies; open spans keep mutating after the call returns.
func (t *Tracer) ActiveSpans() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	records := make([]Record, 0, len(t.active))
	for _, span := range t.active {
		records = append(records, span.Record())
	}
	return records
}

// summarize computes min/max/avg/p95 for one operation's samples.
func summarize(samples []float64) DurationStats {
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	n := len(sorted)
	p95 := sorted[n-1]
	if n >= minSamplesForP95 {
		idx := int(float64(n) * 0.95)
		if idx >= n {
			idx = n - 1
		}
		p95 = sorted[idx]
	}

	return DurationStats{
		Count: n,
		MinMS: round2(sorted[0]),
		MaxMS: round2(sorted[n-1]),
		AvgMS: round2(sum / float64(n)),
		P95MS: round2(p95),
	}
}
