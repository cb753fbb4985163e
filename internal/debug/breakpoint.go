package debug

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// BreakpointKind represents the kind of breakpoint.
type BreakpointKind int

const (
	// KindLine is a standard line breakpoint.
	KindLine BreakpointKind = iota
	// KindFunction is a function-entry breakpoint.
	KindFunction
	// KindConditional is a breakpoint with a condition expression.
	KindConditional
)

// String returns a string representation of the kind.
func (k BreakpointKind) String() string {
	switch k {
	case KindLine:
		return "line"
	case KindFunction:
		return "function"
	case KindConditional:
		return "conditional"
	default:
		return "unknown"
	}
}

// Breakpoint represents a user-defined breakpoint.
//
// Records are owned exclusively by the Registry; all accessors return
// copies.
type Breakpoint struct {
	// ID uniquely identifies the breakpoint. IDs are monotonically
	// increasing and never reused.
	ID int `json:"id"`

	// File is the source file path.
	File string `json:"file"`

	// Line is the line number (1-based).
	Line int `json:"line"`

	// Enabled indicates if the breakpoint is active on the debugger.
	Enabled bool `json:"enabled"`

	// Kind is the breakpoint kind.
	Kind BreakpointKind `json:"kind"`

	// Condition is the condition expression, empty for plain breakpoints.
	Condition string `json:"condition,omitempty"`

	// HitCount is the number of confirmed hits.
	HitCount int `json:"hitCount"`
}

// location keys the registry's per-location index.
type location struct {
	file string
	line int
}

// Registry owns breakpoint identity and state.
//
// At most one breakpoint exists per (file, line) location; adding a second
// at the same location returns the existing one. Registry is safe for
// concurrent use.
type Registry struct {
	mu         sync.RWMutex
	byID       map[int]*Breakpoint
	byLocation map[location]int
	order      []int
	nextID     int
}

// NewRegistry creates an empty breakpoint registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:       make(map[int]*Breakpoint),
		byLocation: make(map[location]int),
		nextID:     1,
	}
}

// Add registers a breakpoint at the given location. If the location already
// has a breakpoint the existing one is returned and created is false.
// A non-empty condition classifies the breakpoint as conditional.
func (r *Registry) Add(file string, line int, condition string) (Breakpoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	loc := location{file: file, line: line}
	if id, ok := r.byLocation[loc]; ok {
		return *r.byID[id], false
	}

	kind := KindLine
	if condition != "" {
		kind = KindConditional
	}

	bp := &Breakpoint{
		ID:        r.nextID,
		File:      file,
		Line:      line,
		Enabled:   true,
		Kind:      kind,
		Condition: condition,
	}
	r.nextID++

	r.byID[bp.ID] = bp
	r.byLocation[loc] = bp.ID
	r.order = append(r.order, bp.ID)

	return *bp, true
}

// Remove deletes a breakpoint by id, clearing both the id and location
// indexes. It returns the removed breakpoint and false if the id is unknown.
func (r *Registry) Remove(id int) (Breakpoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bp, ok := r.byID[id]
	if !ok {
		return Breakpoint{}, false
	}

	delete(r.byID, id)
	delete(r.byLocation, location{file: bp.File, line: bp.Line})
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	return *bp, true
}

// Toggle flips the enabled flag. It returns the updated breakpoint and
// false if the id is unknown.
func (r *Registry) Toggle(id int) (Breakpoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bp, ok := r.byID[id]
	if !ok {
		return Breakpoint{}, false
	}

	bp.Enabled = !bp.Enabled
	return *bp, true
}

// Get returns a breakpoint by id.
func (r *Registry) Get(id int) (Breakpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bp, ok := r.byID[id]
	if !ok {
		return Breakpoint{}, false
	}
	return *bp, true
}

// All returns every breakpoint in registry (insertion) order.
func (r *Registry) All() []Breakpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Breakpoint, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, *r.byID[id])
	}
	return result
}

// ForFile returns the breakpoints in one file, in registry order.
func (r *Registry) ForFile(file string) []Breakpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Breakpoint
	for _, id := range r.order {
		if bp := r.byID[id]; bp.File == file {
			result = append(result, *bp)
		}
	}
	return result
}

// AtLine returns the breakpoint at a location via the O(1) location index.
func (r *Registry) AtLine(file string, line int) (Breakpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byLocation[location{file: file, line: line}]
	if !ok {
		return Breakpoint{}, false
	}
	return *r.byID[id], true
}

// RecordHit increments the hit count of the breakpoint at the given
// location, once per call. The second result is false when the location has
// no registered breakpoint (the hit is still a valid execution event; the
// device may stop at locations the registry never saw).
func (r *Registry) RecordHit(file string, line int) (Breakpoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byLocation[location{file: file, line: line}]
	if !ok {
		return Breakpoint{}, false
	}

	bp := r.byID[id]
	bp.HitCount++
	return *bp, true
}

// Len returns the number of registered breakpoints.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// persistedBreakpoints is the on-disk format for the breakpoint set.
type persistedBreakpoints struct {
	Version     int          `json:"version"`
	Breakpoints []Breakpoint `json:"breakpoints"`
}

// Save writes the breakpoint set to path as JSON.
func (r *Registry) Save(path string) error {
	if path == "" {
		return fmt.Errorf("persist path not set")
	}

	r.mu.RLock()
	data := persistedBreakpoints{Version: 1}
	for _, id := range r.order {
		data.Breakpoints = append(data.Breakpoints, *r.byID[id])
	}
	r.mu.RUnlock()

	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal breakpoints: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("write breakpoints: %w", err)
	}
	return nil
}

// Load replaces the registry contents with the set saved at path. A missing
// file leaves the registry untouched. IDs continue above the highest loaded
// id so they are never reused.
func (r *Registry) Load(path string) error {
	if path == "" {
		return fmt.Errorf("persist path not set")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read breakpoints: %w", err)
	}

	var data persistedBreakpoints
	if err := json.Unmarshal(content, &data); err != nil {
		return fmt.Errorf("unmarshal breakpoints: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.byID = make(map[int]*Breakpoint)
	r.byLocation = make(map[location]int)
	r.order = nil

	maxID := 0
	for i := range data.Breakpoints {
		bp := data.Breakpoints[i]
		loc := location{file: bp.File, line: bp.Line}
		if _, dup := r.byLocation[loc]; dup {
			continue
		}
		r.byID[bp.ID] = &bp
		r.byLocation[loc] = bp.ID
		r.order = append(r.order, bp.ID)
		if bp.ID > maxID {
			maxID = bp.ID
		}
	}
	r.nextID = maxID + 1

	return nil
}
