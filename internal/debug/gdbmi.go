package debug

import "strings"

// MIParser pattern-matches the reduced subset of GDB Machine Interface
// records the engine needs to drive the state machine and console.
//
// It is intentionally partial: async exec records (*stopped, *running) move
// the state machine, everything else is passed through as console output.
type MIParser struct {
	handler protocolHandler
}

// NewMIParser creates a parser delivering updates to handler.
func NewMIParser(handler protocolHandler) *MIParser {
	return &MIParser{handler: handler}
}

// ParseLine consumes one complete line of gdb output. Every line is echoed
// to the console stream whether or not it matched a pattern.
func (p *MIParser) ParseLine(line string) {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return
	}

	p.handler.handleConsole(line)

	switch {
	case strings.HasPrefix(line, "*stopped"):
		p.handler.handleProtocolState(StatePaused)
	case strings.HasPrefix(line, "*running"):
		p.handler.handleProtocolState(StateRunning)
	case strings.Contains(line, "breakpoint-hit"):
		// Structured extraction of the stop location is not implemented;
		// the *stopped record on the same stop already pauses the session.
	}
}
