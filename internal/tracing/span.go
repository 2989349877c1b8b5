package tracing

import (
	"math"
	"sync"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// TraceID identifies the tree of spans belonging to one logical operation.
type TraceID string

// SpanID identifies a single span.
type SpanID string

// Status describes a span's lifecycle outcome.
type Status string

const (
	StatusRunning Status = "running"
	StatusOK      Status = "ok"
	StatusError   Status = "error"
)

// Event is a timestamped annotation within a span.
type Event struct {
	Name       string
	Timestamp  time.Time
	Attributes map[string]interface{}
}

// Span records one traced operation: identity, timing, attributes and
// outcome. Identity and start time are fixed at creation; everything else
// is mutable until Finish, after which the span is read-only.
//
// Safe for concurrent use by multiple goroutines.
type Span struct {
	mu sync.Mutex

	traceID   TraceID
	spanID    SpanID
	parentID  SpanID
	name      string
	startTime time.Time
	endTime   time.Time
	status    Status
	errMsg    string
	attrs     *orderedmap.OrderedMap[string, interface{}]
	events    []Event
}

func newSpan(traceID TraceID, spanID, parentID SpanID, name string) *Span {
	return &Span{
		traceID:   traceID,
		spanID:    spanID,
		parentID:  parentID,
		name:      name,
		startTime: time.Now(),
		status:    StatusRunning,
		attrs:     orderedmap.New[string, interface{}](),
	}
}

// TraceID returns the trace this span belongs to.
func (s *Span) TraceID() TraceID { return s.traceID }

// SpanID returns the span's identifier.
func (s *Span) SpanID() SpanID { return s.spanID }

// ParentID returns the enclosing span's identifier, or "" for a root span.
func (s *Span) ParentID() SpanID { return s.parentID }

// Name returns the operation name.
func (s *Span) Name() string { return s.name }

// StartTime returns when the span was opened.
func (s *Span) StartTime() time.Time { return s.startTime }

// EndTime returns when the span finished, or the zero time while running.
func (s *Span) EndTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endTime
}

// Status returns the span's current status.
func (s *Span) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err returns the recorded error description, or "".
func (s *Span) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// Duration returns how long the span ran, or 0 while still running.
func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.endTime.IsZero() {
		return 0
	}
	return s.endTime.Sub(s.startTime)
}

// DurationMS returns the span duration in milliseconds, or 0 while running.
func (s *Span) DurationMS() float64 {
	return float64(s.Duration()) / float64(time.Millisecond)
}

// SetAttribute records a key/value attribute on the span. Attributes keep
// insertion order; setting an existing key updates it in place. No-op once
// the span is finished.
func (s *Span) SetAttribute(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.endTime.IsZero() {
		return
	}
	s.attrs.Set(key, value)
}

// AddEvent appends a timestamped event to the span. No-op once finished.
func (s *Span) AddEvent(name string, attrs map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.endTime.IsZero() {
		return
	}
	s.events = append(s.events, Event{
		Name:       name,
		Timestamp:  time.Now(),
		Attributes: copyAttrs(attrs),
	})
}

// SetError records an error description and moves the span into the error
// state. No-op once finished.
func (s *Span) SetError(description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.endTime.IsZero() {
		return
	}
	s.errMsg = description
	s.status = StatusError
}

// Finish finalizes the span with the given status, exactly once. An error
// status already recorded on the span is never downgraded, and the end time
// is never rewritten.
func (s *Span) Finish(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.endTime.IsZero() {
		return
	}
	s.endTime = time.Now()
	if s.status != StatusError {
		s.status = status
	}
}

func (s *Span) finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.endTime.IsZero()
}

// Record is a serializable snapshot of a span. Timestamps are ISO-8601.
type Record struct {
	TraceID    string                                      `json:"trace_id"`
	SpanID     string                                      `json:"span_id"`
	ParentID   string                                      `json:"parent_id,omitempty"`
	Name       string                                      `json:"operation_name"`
	StartTime  string                                      `json:"start_time"`
	EndTime    string                                      `json:"end_time,omitempty"`
	DurationMS float64                                     `json:"duration_ms"`
	Status     string                                      `json:"status"`
	Error      string                                      `json:"error,omitempty"`
	Attributes *orderedmap.OrderedMap[string, interface{}] `json:"attributes,omitempty"`
	Events     []EventRecord                               `json:"events,omitempty"`
}

// EventRecord is the serializable form of an Event.
type EventRecord struct {
	Name       string                 `json:"name"`
	Timestamp  string                 `json:"timestamp"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// Record returns a detached snapshot of the span. The snapshot shares no
// mutable state with the span, so callers may hold it indefinitely.
func (s *Span) Record() Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := Record{
		TraceID:   string(s.traceID),
		SpanID:    string(s.spanID),
		ParentID:  string(s.parentID),
		Name:      s.name,
		StartTime: s.startTime.Format(time.RFC3339Nano),
		Status:    string(s.status),
		Error:     s.errMsg,
	}
	if !s.endTime.IsZero() {
		rec.EndTime = s.endTime.Format(time.RFC3339Nano)
		rec.DurationMS = round2(float64(s.endTime.Sub(s.startTime)) / float64(time.Millisecond))
	}
	if s.attrs.Len() > 0 {
		attrs := orderedmap.New[string, interface{}]()
		for pair := s.attrs.Oldest(); pair != nil; pair = pair.Next() {
			attrs.Set(pair.Key, pair.Value)
		}
		rec.Attributes = attrs
	}
	if len(s.events) > 0 {
		rec.Events = make([]EventRecord, 0, len(s.events))
		for _, e := range s.events {
			rec.Events = append(rec.Events, EventRecord{
				Name:       e.Name,
				Timestamp:  e.Timestamp.Format(time.RFC3339Nano),
				Attributes: copyAttrs(e.Attributes),
			})
		}
	}
	return rec
}

func copyAttrs(attrs map[string]interface{}) map[string]interface{} {
	if attrs == nil {
		return nil
	}
	out := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
