package debug

import (
	"regexp"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// serialMarker prefixes structured messages on the serial debug link.
// Anything else is raw console output from the sketch.
const serialMarker = "DBG:"

// variablePattern matches "name=value (type)" payloads.
var variablePattern = regexp.MustCompile(`(\w+)\s*=\s*(.+?)\s*\((\w+)\)`)

// protocolHandler receives the structured updates a parser decodes. The
// Session implements it; parsers never mutate engine state directly.
type protocolHandler interface {
	handleConsole(line string)
	handleBreakpointHit(file string, line int)
	handleVariable(v Variable)
	handleStack(frames []StackFrame)
	handleMemory(regions []MemoryRegion)
	handleProtocolState(st State)
}

// SerialParser decodes the line-oriented DBG: protocol spoken by the debug
// stub on the target board.
//
// Malformed payloads are logged and dropped; they never desynchronize
// subsequent lines.
type SerialParser struct {
	handler protocolHandler
}

// NewSerialParser creates a parser delivering updates to handler.
func NewSerialParser(handler protocolHandler) *SerialParser {
	return &SerialParser{handler: handler}
}

// ParseLine consumes one complete line from the serial link.
func (p *SerialParser) ParseLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	p.handler.handleConsole(line)

	if !strings.HasPrefix(line, serialMarker) {
		return
	}

	msg := line[len(serialMarker):]
	msgType, payload, ok := strings.Cut(msg, ":")
	if !ok {
		log.WithField("line", line).Debug("serial debug message without payload")
		return
	}

	msgType = strings.TrimSpace(msgType)
	payload = strings.TrimSpace(payload)

	switch msgType {
	case "BREAKPOINT":
		p.parseBreakpoint(payload)
	case "VARIABLE":
		p.parseVariable(payload)
	case "STACK":
		p.parseStack(payload)
	case "MEMORY":
		p.parseMemory(payload)
	case "STATE":
		p.parseState(payload)
	default:
		log.WithField("type", msgType).Debug("unrecognized serial debug message")
	}
}

// parseBreakpoint handles "file:line".
func (p *SerialParser) parseBreakpoint(payload string) {
	file, lineStr, ok := strings.Cut(payload, ":")
	if !ok {
		log.WithField("payload", payload).Warn("malformed breakpoint message")
		return
	}

	// The line field may be followed by extra colon-separated data;
	// only the first two fields matter.
	if i := strings.IndexByte(lineStr, ':'); i >= 0 {
		lineStr = lineStr[:i]
	}

	line, err := strconv.Atoi(strings.TrimSpace(lineStr))
	if err != nil {
		log.WithField("payload", payload).Warn("malformed breakpoint line number")
		return
	}

	p.handler.handleBreakpointHit(file, line)
}

// parseVariable handles "name=value (type)".
func (p *SerialParser) parseVariable(payload string) {
	m := variablePattern.FindStringSubmatch(payload)
	if m == nil {
		log.WithField("payload", payload).Warn("malformed variable message")
		return
	}

	p.handler.handleVariable(Variable{
		Name:  m[1],
		Value: m[2],
		Type:  m[3],
		Scope: "local",
	})
}

// parseStack handles "function@file:line;function@file:line;...". The
// file and line parts are optional per frame.
func (p *SerialParser) parseStack(payload string) {
	var frames []StackFrame

	for _, frameData := range strings.Split(payload, ";") {
		frameData = strings.TrimSpace(frameData)
		if frameData == "" {
			continue
		}

		frame := StackFrame{Level: len(frames)}

		function, loc, hasLoc := strings.Cut(frameData, "@")
		frame.Function = function
		if hasLoc {
			file, lineStr, hasLine := strings.Cut(loc, ":")
			frame.File = file
			if hasLine {
				if line, err := strconv.Atoi(lineStr); err == nil {
					frame.Line = line
				} else {
					log.WithField("frame", frameData).Warn("malformed stack frame line number")
				}
			}
		}

		frames = append(frames, frame)
	}

	p.handler.handleStack(frames)
}

// parseMemory handles "name:size:used;name:size:used;...".
func (p *SerialParser) parseMemory(payload string) {
	var regions []MemoryRegion

	for _, regionData := range strings.Split(payload, ";") {
		regionData = strings.TrimSpace(regionData)
		if regionData == "" {
			continue
		}

		parts := strings.Split(regionData, ":")
		if len(parts) < 3 {
			log.WithField("region", regionData).Warn("malformed memory region")
			continue
		}

		size, err1 := strconv.Atoi(parts[1])
		used, err2 := strconv.Atoi(parts[2])
		if err1 != nil || err2 != nil {
			log.WithField("region", regionData).Warn("malformed memory region numbers")
			continue
		}

		regions = append(regions, MemoryRegion{
			Name: parts[0],
			Size: size,
			Used: used,
			Free: size - used,
		})
	}

	if len(regions) > 0 {
		p.handler.handleMemory(regions)
	}
}

// parseState handles "RUNNING", "PAUSED" and "STOPPED".
func (p *SerialParser) parseState(payload string) {
	switch payload {
	case "RUNNING":
		p.handler.handleProtocolState(StateRunning)
	case "PAUSED":
		p.handler.handleProtocolState(StatePaused)
	case "STOPPED":
		p.handler.handleProtocolState(StateIdle)
	default:
		log.WithField("state", payload).Warn("unrecognized device state")
	}
}
