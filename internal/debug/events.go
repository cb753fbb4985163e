package debug

import "github.com/mcuforge/ember/internal/event"

// Engine event topics.
const (
	// TopicStateChanged is published when the session state changes.
	TopicStateChanged event.Topic = "debug.state.changed"

	// TopicBreakpointAdded is published when a breakpoint is registered.
	TopicBreakpointAdded event.Topic = "debug.breakpoint.added"

	// TopicBreakpointRemoved is published when a breakpoint is removed.
	TopicBreakpointRemoved event.Topic = "debug.breakpoint.removed"

	// TopicBreakpointUpdated is published when a breakpoint is toggled.
	TopicBreakpointUpdated event.Topic = "debug.breakpoint.updated"

	// TopicBreakpointHit is published when the target stops at a location.
	TopicBreakpointHit event.Topic = "debug.breakpoint.hit"

	// TopicVariableUpdated is published when a watched variable changes.
	TopicVariableUpdated event.Topic = "debug.variable.updated"

	// TopicVariablesUpdated is published when the locals set changes.
	TopicVariablesUpdated event.Topic = "debug.variables.updated"

	// TopicStackUpdated is published when the call stack is replaced.
	TopicStackUpdated event.Topic = "debug.stack.updated"

	// TopicMemoryUpdated is published when memory regions change.
	TopicMemoryUpdated event.Topic = "debug.memory.updated"

	// TopicTimelineAppended is published for every execution event.
	TopicTimelineAppended event.Topic = "debug.timeline.appended"

	// TopicConsoleOutput carries raw console output lines.
	TopicConsoleOutput event.Topic = "debug.console.output"

	// TopicError carries error messages.
	TopicError event.Topic = "debug.error"
)

// StateChange is the payload for TopicStateChanged.
type StateChange struct {
	Old State
	New State
}

// BreakpointHit is the payload for TopicBreakpointHit. Breakpoint is nil
// when the target stopped at a location with no registered breakpoint.
type BreakpointHit struct {
	Breakpoint *Breakpoint
	File       string
	Line       int
}

// VariableUpdate is the payload for TopicVariableUpdated.
type VariableUpdate struct {
	Name     string
	Variable Variable
}
