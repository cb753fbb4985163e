package debug

import (
	"reflect"
	"testing"
)

// recordingHandler captures every structured update a parser delivers.
type recordingHandler struct {
	console   []string
	hits      []string
	hitLines  []int
	variables []Variable
	stacks    [][]StackFrame
	memories  [][]MemoryRegion
	states    []State
}

func (r *recordingHandler) handleConsole(line string)            { r.console = append(r.console, line) }
func (r *recordingHandler) handleVariable(v Variable)            { r.variables = append(r.variables, v) }
func (r *recordingHandler) handleStack(frames []StackFrame)      { r.stacks = append(r.stacks, frames) }
func (r *recordingHandler) handleMemory(regs []MemoryRegion)     { r.memories = append(r.memories, regs) }
func (r *recordingHandler) handleProtocolState(st State)         { r.states = append(r.states, st) }
func (r *recordingHandler) handleBreakpointHit(file string, line int) {
	r.hits = append(r.hits, file)
	r.hitLines = append(r.hitLines, line)
}

func TestSerialParserConsolePassthrough(t *testing.T) {
	h := &recordingHandler{}
	p := NewSerialParser(h)

	p.ParseLine("Sketch booting...")
	p.ParseLine("DBG:BREAKPOINT:main.cpp:42")

	// Every non-empty line reaches the console, structured or not.
	want := []string{"Sketch booting...", "DBG:BREAKPOINT:main.cpp:42"}
	if !reflect.DeepEqual(h.console, want) {
		t.Errorf("console = %v, want %v", h.console, want)
	}
}

func TestSerialParserBreakpoint(t *testing.T) {
	h := &recordingHandler{}
	p := NewSerialParser(h)

	p.ParseLine("DBG:BREAKPOINT:main.cpp:42")

	if len(h.hits) != 1 {
		t.Fatalf("expected 1 breakpoint hit, got %d", len(h.hits))
	}
	if h.hits[0] != "main.cpp" || h.hitLines[0] != 42 {
		t.Errorf("hit = %s:%d, want main.cpp:42", h.hits[0], h.hitLines[0])
	}
}

func TestSerialParserVariable(t *testing.T) {
	h := &recordingHandler{}
	p := NewSerialParser(h)

	p.ParseLine("DBG:VARIABLE:counter = 17 (int)")

	if len(h.variables) != 1 {
		t.Fatalf("expected 1 variable, got %d", len(h.variables))
	}
	v := h.variables[0]
	if v.Name != "counter" || v.Value != "17" || v.Type != "int" {
		t.Errorf("variable = %+v", v)
	}
	if v.Scope != "local" {
		t.Errorf("expected local scope, got %q", v.Scope)
	}
}

func TestSerialParserStack(t *testing.T) {
	h := &recordingHandler{}
	p := NewSerialParser(h)

	p.ParseLine("DBG:STACK:loop@sketch.ino:10;setup@sketch.ino:3")

	if len(h.stacks) != 1 {
		t.Fatalf("expected 1 stack update, got %d", len(h.stacks))
	}
	frames := h.stacks[0]
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[0].Function != "loop" || frames[0].File != "sketch.ino" || frames[0].Line != 10 {
		t.Errorf("frame 0 = %+v", frames[0])
	}
	if frames[0].Level != 0 || frames[1].Level != 1 {
		t.Errorf("frame levels = %d, %d", frames[0].Level, frames[1].Level)
	}
	if frames[1].Function != "setup" || frames[1].Line != 3 {
		t.Errorf("frame 1 = %+v", frames[1])
	}
}

func TestSerialParserStackFunctionOnly(t *testing.T) {
	h := &recordingHandler{}
	p := NewSerialParser(h)

	p.ParseLine("DBG:STACK:loop;setup")

	frames := h.stacks[0]
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[0].Function != "loop" || frames[0].File != "" || frames[0].Line != 0 {
		t.Errorf("frame 0 = %+v", frames[0])
	}
}

func TestSerialParserMemory(t *testing.T) {
	h := &recordingHandler{}
	p := NewSerialParser(h)

	p.ParseLine("DBG:MEMORY:SRAM:2048:512;FLASH:32768:16384")

	if len(h.memories) != 1 {
		t.Fatalf("expected 1 memory update, got %d", len(h.memories))
	}
	regs := h.memories[0]
	if len(regs) != 2 {
		t.Fatalf("expected 2 regions, got %d", len(regs))
	}
	sram := regs[0]
	if sram.Name != "SRAM" || sram.Free != 1536 {
		t.Errorf("SRAM = %+v", sram)
	}
	if pct := sram.UsagePercent(); pct != 25.0 {
		t.Errorf("SRAM usage = %v, want 25.0", pct)
	}
	flash := regs[1]
	if flash.Free != 16384 {
		t.Errorf("FLASH free = %d, want 16384", flash.Free)
	}
	if pct := flash.UsagePercent(); pct != 50.0 {
		t.Errorf("FLASH usage = %v, want 50.0", pct)
	}
}

func TestSerialParserState(t *testing.T) {
	h := &recordingHandler{}
	p := NewSerialParser(h)

	p.ParseLine("DBG:STATE:RUNNING")
	p.ParseLine("DBG:STATE:PAUSED")
	p.ParseLine("DBG:STATE:STOPPED")

	want := []State{StateRunning, StatePaused, StateIdle}
	if !reflect.DeepEqual(h.states, want) {
		t.Errorf("states = %v, want %v", h.states, want)
	}
}

func TestSerialParserMalformed(t *testing.T) {
	h := &recordingHandler{}
	p := NewSerialParser(h)

	lines := []string{
		"DBG:BREAKPOINT:main.cpp",          // missing line number
		"DBG:BREAKPOINT:main.cpp:notanum",  // bad line number
		"DBG:VARIABLE:garbage",             // no name=value (type)
		"DBG:MEMORY:SRAM:2048",             // missing used field
		"DBG:MEMORY:SRAM:x:y",              // non-numeric fields
		"DBG:STATE:HALTED",                 // unknown state
		"DBG:NONSENSE:whatever",            // unknown message type
		"DBG:",                             // marker with nothing after it
		"   ",                              // blank
	}
	for _, line := range lines {
		p.ParseLine(line)
	}

	if len(h.hits) != 0 || len(h.variables) != 0 || len(h.memories) != 0 || len(h.states) != 0 {
		t.Errorf("malformed input produced structured updates: %+v", h)
	}

	// Parser state is not desynchronized; a valid line still decodes.
	p.ParseLine("DBG:BREAKPOINT:main.cpp:7")
	if len(h.hits) != 1 || h.hitLines[0] != 7 {
		t.Errorf("parser did not recover after malformed input")
	}
}

func TestSerialParserBlankLineIgnored(t *testing.T) {
	h := &recordingHandler{}
	p := NewSerialParser(h)

	p.ParseLine("")
	p.ParseLine("\r")

	if len(h.console) != 0 {
		t.Errorf("blank lines reached the console: %v", h.console)
	}
}

func TestSerialParserMemorySkipsBadRegion(t *testing.T) {
	h := &recordingHandler{}
	p := NewSerialParser(h)

	p.ParseLine("DBG:MEMORY:bogus;SRAM:2048:512")

	if len(h.memories) != 1 {
		t.Fatalf("expected 1 memory update, got %d", len(h.memories))
	}
	if len(h.memories[0]) != 1 || h.memories[0][0].Name != "SRAM" {
		t.Errorf("regions = %+v", h.memories[0])
	}
}
