package event

import "testing"

func TestTopicMatch(t *testing.T) {
	tests := []struct {
		pattern Topic
		topic   Topic
		want    bool
	}{
		{"debug.state.changed", "debug.state.changed", true},
		{"debug.state.changed", "debug.state", false},
		{"debug.*", "debug.console", true},
		{"debug.*", "debug.state.changed", false},
		{"debug.*.changed", "debug.state.changed", true},
		{"debug.*.changed", "debug.memory.updated", false},
		{"debug.**", "debug.state.changed", true},
		{"debug.**", "debug.console", true},
		{"**", "anything.at.all", true},
		{"*.changed", "state.changed", true},
		{"*.changed", "debug.state.changed", false},
	}

	for _, tt := range tests {
		if got := tt.pattern.Match(tt.topic); got != tt.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tt.pattern, tt.topic, got, tt.want)
		}
	}
}

func TestTopicIsPattern(t *testing.T) {
	if Topic("debug.state.changed").IsPattern() {
		t.Error("concrete topic reported as pattern")
	}
	if !Topic("debug.*").IsPattern() {
		t.Error("wildcard topic not reported as pattern")
	}
	if !Topic("debug.**").IsPattern() {
		t.Error("multi-wildcard topic not reported as pattern")
	}
}

func TestTopicSegments(t *testing.T) {
	segs := Topic("debug.state.changed").Segments()
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segs))
	}
	if segs[0] != "debug" || segs[1] != "state" || segs[2] != "changed" {
		t.Errorf("unexpected segments: %v", segs)
	}

	if Topic("").Segments() != nil {
		t.Error("empty topic should have nil segments")
	}
}
