package debug

import (
	"fmt"
	"sort"
	"sync"
)

// Variable represents a variable in the debug context. Children form an
// owned tree for struct and array expansion; there are no back-references.
type Variable struct {
	// Name is the variable name.
	Name string

	// Value is the display value.
	Value string

	// Type is the declared or inferred type.
	Type string

	// Scope tags the variable as "local" or "watch".
	Scope string

	// Address is the memory address, if known.
	Address string

	// Children are the expanded members of a struct or array.
	Children []Variable
}

// StackFrame represents one call stack frame. Level 0 is the innermost
// frame.
type StackFrame struct {
	// Level is the zero-based frame depth.
	Level int

	// Function is the function name.
	Function string

	// File is the source file, if known.
	File string

	// Line is the source line, if known.
	Line int

	// Address is the frame address, if known.
	Address string
}

// FormatLocation returns a "file:line" location string.
func (f StackFrame) FormatLocation() string {
	if f.File == "" {
		return fmt.Sprintf("<unknown>:%d", f.Line)
	}
	return fmt.Sprintf("%s:%d", f.File, f.Line)
}

// MemoryRegion describes usage of one target memory region (SRAM, FLASH,
// stack, heap).
type MemoryRegion struct {
	// Name identifies the region.
	Name string

	// Size is the total region size in bytes.
	Size int

	// Used is the number of bytes in use.
	Used int

	// Free is Size - Used.
	Free int
}

// UsagePercent returns the used fraction as a percentage, 0 when the region
// size is unknown.
func (m MemoryRegion) UsagePercent() float64 {
	if m.Size <= 0 {
		return 0
	}
	return float64(m.Used) / float64(m.Size) * 100
}

// placeholder values shown for a watch before its first real update.
const (
	pendingValue = "<pending>"
	unknownType  = "unknown"
)

// Store holds the latest inspection snapshots: watched variables, local
// variables, the call stack, and memory regions.
//
// The call stack is replaced atomically on each stack update; variables are
// merged by name; memory regions are upserted by region name. Store is safe
// for concurrent use and exclusively owns its records — accessors return
// copies.
type Store struct {
	mu sync.RWMutex

	watched    map[string]Variable
	watchOrder []string

	locals map[string]Variable

	stack        []StackFrame
	currentFrame int

	regions map[string]MemoryRegion
}

// NewStore creates an empty inspection store.
func NewStore() *Store {
	return &Store{
		watched: make(map[string]Variable),
		locals:  make(map[string]Variable),
		regions: make(map[string]MemoryRegion),
	}
}

// AddWatch registers a watch with a placeholder value so consumers have
// something to render before the first real update arrives. It returns
// false if the name is already watched.
func (s *Store) AddWatch(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.watched[name]; ok {
		return false
	}

	s.watched[name] = Variable{
		Name:  name,
		Value: pendingValue,
		Type:  unknownType,
		Scope: "watch",
	}
	s.watchOrder = append(s.watchOrder, name)
	return true
}

// RemoveWatch drops a watch by name, returning false if it was not watched.
func (s *Store) RemoveWatch(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.watched[name]; !ok {
		return false
	}
	delete(s.watched, name)
	for i, n := range s.watchOrder {
		if n == name {
			s.watchOrder = append(s.watchOrder[:i], s.watchOrder[i+1:]...)
			break
		}
	}
	return true
}

// IsWatched reports whether a name is in the watch set.
func (s *Store) IsWatched(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.watched[name]
	return ok
}

// WatchedVariables returns the watch set in the order watches were added.
func (s *Store) WatchedVariables() []Variable {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Variable, 0, len(s.watchOrder))
	for _, name := range s.watchOrder {
		result = append(result, s.watched[name])
	}
	return result
}

// LocalVariables returns the current locals, sorted by name.
func (s *Store) LocalVariables() []Variable {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Variable, 0, len(s.locals))
	for _, v := range s.locals {
		result = append(result, v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// SetVariable merges an incoming variable update. The variable is always
// mirrored into the locals map; if its name is watched the watch entry is
// updated too and the first result is true.
func (s *Store) SetVariable(v Variable) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	watched := false
	if _, ok := s.watched[v.Name]; ok {
		w := v
		w.Scope = "watch"
		s.watched[v.Name] = w
		watched = true
	}

	if v.Scope == "" {
		v.Scope = "local"
	}
	s.locals[v.Name] = v

	return watched
}

// ReplaceStack atomically replaces the call stack. Frame 0 becomes the
// selected frame.
func (s *Store) ReplaceStack(frames []StackFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stack = append([]StackFrame(nil), frames...)
	s.currentFrame = 0
}

// Stack returns a copy of the current call stack.
func (s *Store) Stack() []StackFrame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]StackFrame(nil), s.stack...)
}

// SelectFrame validates and records the selected frame index.
func (s *Store) SelectFrame(level int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if level < 0 || level >= len(s.stack) {
		return false
	}
	s.currentFrame = level
	return true
}

// CurrentFrame returns the selected stack frame, false when the stack is
// empty.
func (s *Store) CurrentFrame() (StackFrame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.currentFrame < 0 || s.currentFrame >= len(s.stack) {
		return StackFrame{}, false
	}
	return s.stack[s.currentFrame], true
}

// UpsertRegions merges incoming memory region snapshots by name. Unknown
// region names create new entries.
func (s *Store) UpsertRegions(regions []MemoryRegion) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range regions {
		s.regions[r.Name] = r
	}
}

// Regions returns a copy of all memory regions keyed by name.
func (s *Store) Regions() map[string]MemoryRegion {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]MemoryRegion, len(s.regions))
	for name, r := range s.regions {
		result[name] = r
	}
	return result
}

// ClearTransient drops the per-session state (stack and frame selection)
// while keeping the watch set and region history.
func (s *Store) ClearTransient() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stack = nil
	s.currentFrame = 0
	s.locals = make(map[string]Variable)
}
