package event

import "strings"

// Topic identifies an event stream using dot-separated segments.
type Topic string

// String returns the topic as a plain string.
func (t Topic) String() string {
	return string(t)
}

// Segments returns the dot-separated segments of the topic.
func (t Topic) Segments() []string {
	if t == "" {
		return nil
	}
	return strings.Split(string(t), ".")
}

// IsPattern reports whether the topic contains wildcard segments.
func (t Topic) IsPattern() bool {
	for _, seg := range t.Segments() {
		if seg == "*" || seg == "**" {
			return true
		}
	}
	return false
}

// Match reports whether the pattern matches the given concrete topic.
// "*" matches exactly one segment; "**" matches zero or more trailing
// segments.
func (t Topic) Match(concrete Topic) bool {
	return matchSegments(t.Segments(), concrete.Segments())
}

func matchSegments(pattern, topic []string) bool {
	for i, seg := range pattern {
		if seg == "**" {
			return true
		}
		if i >= len(topic) {
			return false
		}
		if seg != "*" && seg != topic[i] {
			return false
		}
	}
	return len(pattern) == len(topic)
}
