package debug

import (
	"path/filepath"
	"testing"
)

func TestRegistryAdd(t *testing.T) {
	r := NewRegistry()

	bp, created := r.Add("main.cpp", 42, "")
	if !created {
		t.Fatal("expected breakpoint to be created")
	}
	if bp.ID != 1 {
		t.Errorf("expected id 1, got %d", bp.ID)
	}
	if bp.File != "main.cpp" || bp.Line != 42 {
		t.Errorf("unexpected location %s:%d", bp.File, bp.Line)
	}
	if !bp.Enabled {
		t.Error("expected breakpoint to be enabled")
	}
	if bp.Kind != KindLine {
		t.Errorf("expected kind line, got %v", bp.Kind)
	}
}

func TestRegistryAddConditional(t *testing.T) {
	r := NewRegistry()

	bp, _ := r.Add("main.cpp", 10, "x > 5")
	if bp.Kind != KindConditional {
		t.Errorf("expected kind conditional, got %v", bp.Kind)
	}
	if bp.Condition != "x > 5" {
		t.Errorf("expected condition 'x > 5', got %q", bp.Condition)
	}
}

func TestRegistryAddDuplicateLocation(t *testing.T) {
	r := NewRegistry()

	first, _ := r.Add("main.cpp", 42, "")
	second, created := r.Add("main.cpp", 42, "")

	if created {
		t.Error("duplicate add should not create a new breakpoint")
	}
	if second.ID != first.ID {
		t.Errorf("duplicate add returned id %d, want %d", second.ID, first.ID)
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 breakpoint after duplicate add, got %d", r.Len())
	}
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()

	bp, _ := r.Add("main.cpp", 42, "")
	removed, ok := r.Remove(bp.ID)
	if !ok {
		t.Fatal("Remove failed")
	}
	if removed.ID != bp.ID {
		t.Errorf("removed wrong breakpoint: %d", removed.ID)
	}

	if _, ok := r.Get(bp.ID); ok {
		t.Error("breakpoint still present after remove")
	}
	if _, ok := r.AtLine("main.cpp", 42); ok {
		t.Error("location index still present after remove")
	}

	// The location is free again.
	again, created := r.Add("main.cpp", 42, "")
	if !created {
		t.Error("expected add to succeed after remove")
	}
	if again.ID == bp.ID {
		t.Error("breakpoint id was reused")
	}
}

func TestRegistryRemoveUnknown(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Remove(999); ok {
		t.Error("removing unknown id should fail")
	}
}

func TestRegistryToggle(t *testing.T) {
	r := NewRegistry()

	bp, _ := r.Add("main.cpp", 42, "")

	toggled, ok := r.Toggle(bp.ID)
	if !ok {
		t.Fatal("Toggle failed")
	}
	if toggled.Enabled {
		t.Error("expected breakpoint to be disabled after toggle")
	}

	toggled, _ = r.Toggle(bp.ID)
	if !toggled.Enabled {
		t.Error("expected breakpoint to be enabled after second toggle")
	}

	if _, ok := r.Toggle(999); ok {
		t.Error("toggling unknown id should fail")
	}
}

func TestRegistryOrder(t *testing.T) {
	r := NewRegistry()

	r.Add("b.cpp", 30, "")
	r.Add("a.cpp", 10, "")
	r.Add("b.cpp", 5, "")

	all := r.All()
	if len(all) != 3 {
		t.Fatalf("expected 3 breakpoints, got %d", len(all))
	}
	// Registry order is insertion order, not sorted by file or line.
	if all[0].File != "b.cpp" || all[0].Line != 30 {
		t.Errorf("unexpected first breakpoint: %s:%d", all[0].File, all[0].Line)
	}
	if all[2].Line != 5 {
		t.Errorf("unexpected last breakpoint line: %d", all[2].Line)
	}

	forB := r.ForFile("b.cpp")
	if len(forB) != 2 {
		t.Fatalf("expected 2 breakpoints in b.cpp, got %d", len(forB))
	}
	if forB[0].Line != 30 || forB[1].Line != 5 {
		t.Errorf("unexpected file order: %d, %d", forB[0].Line, forB[1].Line)
	}
}

func TestRegistryRecordHit(t *testing.T) {
	r := NewRegistry()

	bp, _ := r.Add("main.cpp", 42, "")

	hit, ok := r.RecordHit("main.cpp", 42)
	if !ok {
		t.Fatal("expected hit to find the breakpoint")
	}
	if hit.HitCount != 1 {
		t.Errorf("expected hit count 1, got %d", hit.HitCount)
	}

	// Increment is exactly once per reported hit, including duplicates.
	hit, _ = r.RecordHit("main.cpp", 42)
	if hit.HitCount != 2 {
		t.Errorf("expected hit count 2, got %d", hit.HitCount)
	}

	if _, ok := r.RecordHit("other.cpp", 1); ok {
		t.Error("hit at unregistered location should report not found")
	}

	stored, _ := r.Get(bp.ID)
	if stored.HitCount != 2 {
		t.Errorf("stored hit count = %d, want 2", stored.HitCount)
	}
}

func TestRegistrySaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "breakpoints.json")

	r := NewRegistry()
	r.Add("main.cpp", 42, "")
	bp2, _ := r.Add("loop.cpp", 7, "i == 3")
	r.Remove(1)

	if err := r.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	restored := NewRegistry()
	if err := restored.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	all := restored.All()
	if len(all) != 1 {
		t.Fatalf("expected 1 breakpoint after load, got %d", len(all))
	}
	if all[0].ID != bp2.ID || all[0].Condition != "i == 3" {
		t.Errorf("unexpected restored breakpoint: %+v", all[0])
	}

	// IDs continue above the highest loaded id.
	next, _ := restored.Add("new.cpp", 1, "")
	if next.ID <= bp2.ID {
		t.Errorf("id %d reused after load", next.ID)
	}
}

func TestRegistryLoadMissingFile(t *testing.T) {
	r := NewRegistry()
	r.Add("main.cpp", 1, "")

	if err := r.Load(filepath.Join(t.TempDir(), "missing.json")); err != nil {
		t.Fatalf("Load of missing file should not error: %v", err)
	}
	if r.Len() != 1 {
		t.Error("missing file should leave registry untouched")
	}
}
