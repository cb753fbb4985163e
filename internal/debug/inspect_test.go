package debug

import "testing"

func TestStoreAddWatch(t *testing.T) {
	s := NewStore()

	if !s.AddWatch("counter") {
		t.Fatal("AddWatch failed")
	}
	if s.AddWatch("counter") {
		t.Error("duplicate watch should be rejected")
	}

	watched := s.WatchedVariables()
	if len(watched) != 1 {
		t.Fatalf("expected 1 watched variable, got %d", len(watched))
	}
	if watched[0].Value != "<pending>" || watched[0].Type != "unknown" {
		t.Errorf("expected placeholder, got %q (%s)", watched[0].Value, watched[0].Type)
	}
	if watched[0].Scope != "watch" {
		t.Errorf("expected watch scope, got %q", watched[0].Scope)
	}
}

func TestStoreRemoveWatch(t *testing.T) {
	s := NewStore()
	s.AddWatch("counter")

	if !s.RemoveWatch("counter") {
		t.Error("RemoveWatch failed")
	}
	if s.RemoveWatch("counter") {
		t.Error("removing unknown watch should fail")
	}
	if len(s.WatchedVariables()) != 0 {
		t.Error("watch still present after remove")
	}
}

func TestStoreSetVariable(t *testing.T) {
	s := NewStore()
	s.AddWatch("counter")

	watched := s.SetVariable(Variable{Name: "counter", Value: "42", Type: "int"})
	if !watched {
		t.Error("expected update to be flagged as watched")
	}

	watched = s.SetVariable(Variable{Name: "temp", Value: "21.5", Type: "float"})
	if watched {
		t.Error("unwatched variable flagged as watched")
	}

	// Both updates are mirrored into locals.
	locals := s.LocalVariables()
	if len(locals) != 2 {
		t.Fatalf("expected 2 locals, got %d", len(locals))
	}

	vars := s.WatchedVariables()
	if vars[0].Value != "42" {
		t.Errorf("watch value not updated: %q", vars[0].Value)
	}
}

func TestStoreReplaceStack(t *testing.T) {
	s := NewStore()

	s.ReplaceStack([]StackFrame{
		{Level: 0, Function: "loop", File: "sketch.ino", Line: 10},
		{Level: 1, Function: "setup", File: "sketch.ino", Line: 3},
	})

	stack := s.Stack()
	if len(stack) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(stack))
	}

	frame, ok := s.CurrentFrame()
	if !ok {
		t.Fatal("expected a selected frame")
	}
	if frame.Function != "loop" || frame.Level != 0 {
		t.Errorf("frame 0 should be selected by default, got %+v", frame)
	}

	// Replacement is atomic and resets the selection.
	s.SelectFrame(1)
	s.ReplaceStack([]StackFrame{{Level: 0, Function: "main"}})
	frame, _ = s.CurrentFrame()
	if frame.Function != "main" {
		t.Errorf("expected selection reset to frame 0, got %+v", frame)
	}
}

func TestStoreSelectFrame(t *testing.T) {
	s := NewStore()
	s.ReplaceStack([]StackFrame{
		{Level: 0, Function: "loop"},
		{Level: 1, Function: "setup"},
	})

	if s.SelectFrame(-1) {
		t.Error("negative frame index should be rejected")
	}
	if s.SelectFrame(2) {
		t.Error("out-of-range frame index should be rejected")
	}
	if !s.SelectFrame(1) {
		t.Error("valid frame index rejected")
	}

	frame, _ := s.CurrentFrame()
	if frame.Function != "setup" {
		t.Errorf("expected setup selected, got %s", frame.Function)
	}
}

func TestStoreRegions(t *testing.T) {
	s := NewStore()

	s.UpsertRegions([]MemoryRegion{
		{Name: "SRAM", Size: 2048, Used: 512, Free: 1536},
	})
	s.UpsertRegions([]MemoryRegion{
		{Name: "SRAM", Size: 2048, Used: 1024, Free: 1024},
		{Name: "FLASH", Size: 32768, Used: 16384, Free: 16384},
	})

	regions := s.Regions()
	if len(regions) != 2 {
		t.Fatalf("expected 2 regions, got %d", len(regions))
	}
	if regions["SRAM"].Used != 1024 {
		t.Errorf("SRAM not upserted: used=%d", regions["SRAM"].Used)
	}
}

func TestMemoryRegionUsagePercent(t *testing.T) {
	r := MemoryRegion{Name: "SRAM", Size: 2048, Used: 512}
	if got := r.UsagePercent(); got != 25.0 {
		t.Errorf("expected 25.0, got %v", got)
	}

	empty := MemoryRegion{Name: "EEPROM"}
	if got := empty.UsagePercent(); got != 0 {
		t.Errorf("zero-size region should report 0, got %v", got)
	}
}

func TestStoreClearTransient(t *testing.T) {
	s := NewStore()
	s.AddWatch("counter")
	s.SetVariable(Variable{Name: "temp", Value: "1", Type: "int"})
	s.ReplaceStack([]StackFrame{{Level: 0, Function: "loop"}})
	s.UpsertRegions([]MemoryRegion{{Name: "SRAM", Size: 10, Used: 1}})

	s.ClearTransient()

	if len(s.Stack()) != 0 {
		t.Error("stack not cleared")
	}
	if _, ok := s.CurrentFrame(); ok {
		t.Error("frame selection not cleared")
	}
	if len(s.LocalVariables()) != 0 {
		t.Error("locals not cleared")
	}
	// Watches and region history survive a disconnect.
	if len(s.WatchedVariables()) != 1 {
		t.Error("watch set should survive ClearTransient")
	}
	if len(s.Regions()) != 1 {
		t.Error("regions should survive ClearTransient")
	}
}
