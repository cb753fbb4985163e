package debug

import (
	"sync"
	"time"
)

// EventKind tags an execution timeline entry.
type EventKind string

// Execution event kinds.
const (
	EventBreakpoint     EventKind = "breakpoint"
	EventStep           EventKind = "step"
	EventPause          EventKind = "pause"
	EventResume         EventKind = "resume"
	EventFunctionCall   EventKind = "function_call"
	EventFunctionReturn EventKind = "function_return"
)

// ExecutionEvent is one entry in the execution timeline.
type ExecutionEvent struct {
	// Timestamp is when the event was recorded.
	Timestamp time.Time

	// Kind is the event type tag.
	Kind EventKind

	// Location is an optional "file:line" or free-form location.
	Location string

	// Data carries optional event-specific key/value payload.
	Data map[string]string
}

// defaultTimelineMax bounds the timeline when no limit is configured.
const defaultTimelineMax = 1000

// Timeline is a bounded append-only log of execution events. Once the
// maximum length is reached the oldest entry is evicted first (strict FIFO).
// Timeline is safe for concurrent use.
type Timeline struct {
	mu     sync.RWMutex
	max    int
	events []ExecutionEvent
}

// NewTimeline creates a timeline bounded to max entries; max <= 0 uses the
// default of 1000.
func NewTimeline(max int) *Timeline {
	if max <= 0 {
		max = defaultTimelineMax
	}
	return &Timeline{max: max}
}

// Record appends an event with the current timestamp and returns it.
func (t *Timeline) Record(kind EventKind, location string, data map[string]string) ExecutionEvent {
	ev := ExecutionEvent{
		Timestamp: time.Now(),
		Kind:      kind,
		Location:  location,
		Data:      data,
	}
	t.Append(ev)
	return ev
}

// Append adds an event, evicting the oldest entry first when the bound
// would be exceeded.
func (t *Timeline) Append(ev ExecutionEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.events = append(t.events, ev)
	if len(t.events) > t.max {
		t.events = t.events[len(t.events)-t.max:]
	}
}

// Events returns a copy of the timeline, oldest first.
func (t *Timeline) Events() []ExecutionEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]ExecutionEvent(nil), t.events...)
}

// Len returns the current number of entries.
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.events)
}

// Clear empties the timeline without touching any other engine state.
func (t *Timeline) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = nil
}
