package debug

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/mcuforge/ember/internal/config"
	"github.com/mcuforge/ember/internal/debug/transport"
	"github.com/mcuforge/ember/internal/event"
)

// Serial debug protocol commands (engine -> device). The same command text
// is routed to gdb's stdin when the process transport is active.
const (
	cmdInit        = "DEBUG_INIT"
	cmdStart       = "DEBUG_START"
	cmdContinue    = "DEBUG_CONTINUE"
	cmdPause       = "DEBUG_PAUSE"
	cmdStepOver    = "DEBUG_STEP_OVER"
	cmdStepInto    = "DEBUG_STEP_INTO"
	cmdStepOut     = "DEBUG_STEP_OUT"
	cmdStop        = "DEBUG_STOP"
	cmdExit        = "DEBUG_EXIT"
	cmdGetStack    = "DEBUG_GET_STACK"
	cmdGetLocals   = "DEBUG_GET_LOCALS"
	cmdMemoryInfo  = "DEBUG_MEMORY_INFO"
	cmdGetVar      = "DEBUG_GET_VAR"
	cmdEval        = "DEBUG_EVAL"
	cmdSelectFrame = "DEBUG_SELECT_FRAME"
	cmdSetBP       = "DEBUG_SET_BREAKPOINT"
	cmdClearBP     = "DEBUG_CLEAR_BREAKPOINT"
)

// pendingEvent is a notification queued while the session lock is held and
// published after it is released.
type pendingEvent struct {
	topic   event.Topic
	payload any
}

// Session drives one debug session. At most one transport is active at a
// time; switching transports requires a full disconnect first.
//
// A single mutex serializes every mutation: UI-originated commands and
// transport callbacks (the serial poll and the gdb pipe readers) all funnel
// through it. Event publication happens after the lock is released so
// subscribers may call back into the session.
type Session struct {
	mu      sync.Mutex
	pending []pendingEvent

	cfg config.Config
	bus *event.Bus

	state     State
	transport transport.Transport

	serialParser *SerialParser
	miParser     *MIParser

	registry *Registry
	store    *Store
	timeline *Timeline

	currentFile string
	currentLine int
}

// NewSession creates an idle session publishing onto bus.
func NewSession(cfg config.Config, bus *event.Bus) *Session {
	s := &Session{
		cfg:      cfg,
		bus:      bus,
		state:    StateIdle,
		registry: NewRegistry(),
		store:    NewStore(),
		timeline: NewTimeline(cfg.Timeline.MaxEvents),
	}
	s.serialParser = NewSerialParser(s)
	s.miParser = NewMIParser(s)
	return s
}

// unlockAndFlush releases the session lock and publishes every event the
// locked section queued, in order. Use via defer right after locking.
func (s *Session) unlockAndFlush() {
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, e := range pending {
		s.bus.Publish(e.topic, e.payload)
	}
}

func (s *Session) emitLocked(topic event.Topic, payload any) {
	s.pending = append(s.pending, pendingEvent{topic: topic, payload: payload})
}

// setStateLocked moves the state machine. Re-entering the current state is
// silently ignored. Entering Paused by any path triggers the batch refresh.
func (s *Session) setStateLocked(next State) {
	if next == s.state {
		return
	}

	old := s.state
	s.state = next
	log.WithFields(log.Fields{"from": old, "to": next}).Info("debug state")
	s.emitLocked(TopicStateChanged, StateChange{Old: old, New: next})

	if next == StatePaused {
		s.requestRefreshLocked()
	}
}

// requestRefreshLocked issues the fire-and-forget batch refresh: stack
// trace, locals, memory info. Results arrive asynchronously via the parser.
func (s *Session) requestRefreshLocked() {
	s.sendLocked(cmdGetStack)
	s.sendLocked(cmdGetLocals)
	s.sendLocked(cmdMemoryInfo)
}

// sendLocked routes a command to the active transport. With no transport
// active the send is a logged no-op; a transport write failure is surfaced
// as an error event, never a crash.
func (s *Session) sendLocked(cmd string) {
	if s.transport == nil {
		log.WithField("cmd", cmd).Debug("no transport active, command dropped")
		return
	}

	if err := s.transport.Send(cmd); err != nil {
		log.WithField("cmd", cmd).Warnf("send failed: %v", err)
		s.emitLocked(TopicError, fmt.Sprintf("send %s: %v", cmd, err))
	}
}

// recordLocked appends to the execution timeline and publishes the entry.
func (s *Session) recordLocked(kind EventKind, location string, data map[string]string) {
	ev := s.timeline.Record(kind, location, data)
	s.emitLocked(TopicTimelineAppended, ev)
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// TransportKind returns the active transport kind, KindNone when idle.
func (s *Session) TransportKind() transport.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transport == nil {
		return transport.KindNone
	}
	return s.transport.Kind()
}

// CurrentLocation returns the file and line of the last reported stop.
func (s *Session) CurrentLocation() (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentFile, s.currentLine
}

// ==================== Connection management ====================

// ConnectSerial opens a serial debug connection to the target board.
// A baud of 0 uses the configured default.
func (s *Session) ConnectSerial(port string, baud int) error {
	if baud <= 0 {
		baud = s.cfg.Serial.Baud
	}

	s.mu.Lock()
	if s.transport != nil || s.state == StateConnecting {
		s.mu.Unlock()
		return fmt.Errorf("debug session already active, disconnect first")
	}
	s.setStateLocked(StateConnecting)
	s.unlockAndFlush()

	t, err := transport.OpenSerial(transport.SerialConfig{
		Port:         port,
		Baud:         baud,
		PollInterval: s.cfg.Serial.PollInterval,
		ReadTimeout:  s.cfg.Serial.ReadTimeout,
		Handshake:    cmdInit,
		Farewell:     cmdExit,
	}, transport.Callbacks{
		OnLine:   s.handleSerialLine,
		OnClosed: s.handleTransportClosed,
	})

	s.mu.Lock()

	if err != nil {
		defer s.unlockAndFlush()
		log.WithField("port", port).Errorf("serial debug connection failed: %v", err)
		if s.state == StateConnecting {
			s.setStateLocked(StateError)
		}
		s.emitLocked(TopicError, fmt.Sprintf("failed to connect: %v", err))
		return err
	}

	// A disconnect may have landed while the port was being opened; it wins.
	if s.state != StateConnecting || s.transport != nil {
		s.mu.Unlock()
		_ = t.Close()
		return fmt.Errorf("connect aborted: session disconnected")
	}

	defer s.unlockAndFlush()
	s.transport = t
	s.setStateLocked(StateConnected)
	s.emitLocked(TopicConsoleOutput, fmt.Sprintf("Connected to %s for debugging", port))
	return nil
}

// ConnectGDB spawns gdb in MI mode against elfFile and attaches it to the
// remote debug server. Empty gdbPath or server use the configured defaults.
func (s *Session) ConnectGDB(gdbPath, elfFile, server string) error {
	if gdbPath == "" {
		gdbPath = s.cfg.GDB.Path
	}
	if server == "" {
		server = s.cfg.GDB.Server
	}

	s.mu.Lock()
	if s.transport != nil || s.state == StateConnecting {
		s.mu.Unlock()
		return fmt.Errorf("debug session already active, disconnect first")
	}
	s.setStateLocked(StateConnecting)
	s.unlockAndFlush()

	t, err := transport.StartGDB(transport.GDBConfig{
		Path:      gdbPath,
		ELF:       elfFile,
		Server:    server,
		StopGrace: s.cfg.GDB.StopGrace,
	}, transport.Callbacks{
		OnLine:       s.handleGDBLine,
		OnDiagnostic: s.handleGDBDiagnostic,
		OnClosed:     s.handleTransportClosed,
	})

	s.mu.Lock()

	if err != nil {
		defer s.unlockAndFlush()
		log.WithField("gdb", gdbPath).Errorf("gdb connection failed: %v", err)
		if s.state == StateConnecting {
			s.setStateLocked(StateError)
		}
		s.emitLocked(TopicError, fmt.Sprintf("failed to connect gdb: %v", err))
		return err
	}

	// A disconnect may have landed while gdb was being spawned; it wins.
	if s.state != StateConnecting || s.transport != nil {
		s.mu.Unlock()
		_ = t.Close()
		return fmt.Errorf("connect aborted: session disconnected")
	}

	defer s.unlockAndFlush()
	s.transport = t
	s.setStateLocked(StateConnected)
	s.emitLocked(TopicConsoleOutput, fmt.Sprintf("GDB connected to %s", server))
	return nil
}

// Disconnect ends the session. It is idempotent, safe from any state
// (including Idle, where it is a no-op), and leaves no callbacks firing
// afterwards. Per-session transient state is cleared.
func (s *Session) Disconnect() {
	s.mu.Lock()
	t := s.transport
	s.transport = nil
	s.mu.Unlock()

	// Close outside the lock: the serial close waits for the poll loop,
	// which may be blocked delivering a line into the session.
	if t != nil {
		if err := t.Close(); err != nil {
			log.Warnf("transport close failed: %v", err)
		}
	}

	s.mu.Lock()
	defer s.unlockAndFlush()

	if t == nil && s.state == StateIdle {
		return
	}

	s.store.ClearTransient()
	s.currentFile = ""
	s.currentLine = 0

	s.setStateLocked(StateDisconnected)
	if t != nil {
		s.emitLocked(TopicConsoleOutput, "Debug session disconnected")
	}
}

// ==================== Execution control ====================

// StartDebugging starts or resumes execution. From Connected it issues the
// initial run command; from Paused it behaves exactly like
// ContinueExecution. Callers need not distinguish first run from resume.
func (s *Session) StartDebugging() bool {
	s.mu.Lock()

	switch s.state {
	case StateConnected:
		defer s.unlockAndFlush()
		s.sendLocked(cmdStart)
		s.setStateLocked(StateRunning)
		s.recordLocked(EventResume, "Debug session started", nil)
		return true

	case StatePaused:
		s.mu.Unlock()
		return s.ContinueExecution()

	default:
		log.WithField("state", s.state).Warn("cannot start debugging")
		s.mu.Unlock()
		return false
	}
}

// ContinueExecution resumes after a pause or breakpoint. Fails unless the
// session is Paused.
func (s *Session) ContinueExecution() bool {
	s.mu.Lock()
	defer s.unlockAndFlush()

	if s.state != StatePaused {
		log.WithField("state", s.state).Warn("not paused, cannot continue")
		return false
	}

	s.sendLocked(cmdContinue)
	s.setStateLocked(StateRunning)
	s.recordLocked(EventResume, "Execution continued", nil)
	return true
}

// PauseExecution pauses the running target. Fails unless Running.
func (s *Session) PauseExecution() bool {
	s.mu.Lock()
	defer s.unlockAndFlush()

	if s.state != StateRunning {
		log.WithField("state", s.state).Warn("not running, cannot pause")
		return false
	}

	s.sendLocked(cmdPause)
	s.recordLocked(EventPause, "Execution paused", nil)
	s.setStateLocked(StatePaused)
	return true
}

// StepOver executes the current line without descending into calls.
func (s *Session) StepOver() bool {
	return s.step(cmdStepOver, "Step over")
}

// StepInto descends into the call on the current line.
func (s *Session) StepInto() bool {
	return s.step(cmdStepInto, "Step into")
}

// StepOut runs until the current function returns.
func (s *Session) StepOut() bool {
	return s.step(cmdStepOut, "Step out")
}

// step issues one step command. Steps are only legal from Paused; the step
// completes when the device reports the next stop, which returns the
// session to Paused.
func (s *Session) step(cmd, description string) bool {
	s.mu.Lock()
	defer s.unlockAndFlush()

	if s.state != StatePaused {
		log.WithField("state", s.state).Warn("not paused, cannot step")
		return false
	}

	s.sendLocked(cmd)
	s.setStateLocked(StateStepping)
	s.recordLocked(EventStep, description, nil)
	return true
}

// StopDebugging tells the target to stop and tears the session down.
// Returns false when no transport is active.
func (s *Session) StopDebugging() bool {
	s.mu.Lock()
	if s.transport == nil {
		s.mu.Unlock()
		return false
	}
	s.sendLocked(cmdStop)
	s.unlockAndFlush()

	s.Disconnect()
	return true
}

// ==================== Breakpoints ====================

// AddBreakpoint registers a breakpoint. Adding at a location that already
// has one returns the existing breakpoint; no duplicate is created. When a
// transport is active the breakpoint is synced to the debugger
// immediately.
func (s *Session) AddBreakpoint(file string, line int, condition string) Breakpoint {
	bp, created := s.registry.Add(file, line, condition)

	s.mu.Lock()
	defer s.unlockAndFlush()

	if created {
		if s.state.syncable() {
			s.syncBreakpointLocked(bp)
		}
		log.WithFields(log.Fields{"file": file, "line": line, "id": bp.ID}).
			Info("breakpoint added")
	} else {
		log.WithFields(log.Fields{"file": file, "line": line}).
			Warn("breakpoint already exists")
	}

	s.emitLocked(TopicBreakpointAdded, bp)
	return bp
}

// RemoveBreakpoint deletes a breakpoint by id, clearing it from the
// debugger if connected. Unknown ids fail silently with false.
func (s *Session) RemoveBreakpoint(id int) bool {
	bp, ok := s.registry.Remove(id)
	if !ok {
		log.WithField("id", id).Warn("breakpoint not found")
		return false
	}

	s.mu.Lock()
	defer s.unlockAndFlush()

	if s.state.syncable() {
		s.clearBreakpointLocked(bp)
	}
	s.emitLocked(TopicBreakpointRemoved, bp)
	return true
}

// ToggleBreakpoint flips a breakpoint's enabled flag. Disabled breakpoints
// are cleared from the debugger and tracked only locally.
func (s *Session) ToggleBreakpoint(id int) bool {
	bp, ok := s.registry.Toggle(id)
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.unlockAndFlush()

	if s.state.syncable() {
		if bp.Enabled {
			s.syncBreakpointLocked(bp)
		} else {
			s.clearBreakpointLocked(bp)
		}
	}
	s.emitLocked(TopicBreakpointUpdated, bp)
	return true
}

// Breakpoints returns all breakpoints, or those in one file, in
// registration order.
func (s *Session) Breakpoints(file string) []Breakpoint {
	if file == "" {
		return s.registry.All()
	}
	return s.registry.ForFile(file)
}

// BreakpointAt returns the breakpoint at a location, if any.
func (s *Session) BreakpointAt(file string, line int) (Breakpoint, bool) {
	return s.registry.AtLine(file, line)
}

// SaveBreakpoints persists the breakpoint set to the configured path.
func (s *Session) SaveBreakpoints() error {
	return s.registry.Save(s.cfg.Breakpoints.PersistPath)
}

// LoadBreakpoints restores the breakpoint set from the configured path.
func (s *Session) LoadBreakpoints() error {
	return s.registry.Load(s.cfg.Breakpoints.PersistPath)
}

func (s *Session) syncBreakpointLocked(bp Breakpoint) {
	cmd := fmt.Sprintf("%s %s:%d", cmdSetBP, bp.File, bp.Line)
	if bp.Condition != "" {
		cmd += " IF " + bp.Condition
	}
	s.sendLocked(cmd)
}

func (s *Session) clearBreakpointLocked(bp Breakpoint) {
	s.sendLocked(fmt.Sprintf("%s %s:%d", cmdClearBP, bp.File, bp.Line))
}

// ==================== Variables, stack, memory ====================

// AddWatch puts a variable under continuous inspection. A placeholder
// value is stored immediately; the real value is requested asynchronously.
// Duplicate watches are rejected.
func (s *Session) AddWatch(name string) bool {
	if !s.store.AddWatch(name) {
		log.WithField("name", name).Warn("variable already watched")
		return false
	}

	s.mu.Lock()
	defer s.unlockAndFlush()

	s.sendLocked(cmdGetVar + " " + name)
	return true
}

// RemoveWatch drops a watch variable.
func (s *Session) RemoveWatch(name string) bool {
	return s.store.RemoveWatch(name)
}

// WatchedVariables returns the watch set in watch order.
func (s *Session) WatchedVariables() []Variable {
	return s.store.WatchedVariables()
}

// LocalVariables returns the locals of the selected frame.
func (s *Session) LocalVariables() []Variable {
	return s.store.LocalVariables()
}

// EvaluateExpression asks the debugger to evaluate expr. The result is
// delivered asynchronously as a variable update, not returned.
func (s *Session) EvaluateExpression(expr string) bool {
	s.mu.Lock()
	defer s.unlockAndFlush()

	if s.transport == nil {
		return false
	}
	s.sendLocked(cmdEval + " " + expr)
	return true
}

// CallStack returns the current call stack, innermost frame first.
func (s *Session) CallStack() []StackFrame {
	return s.store.Stack()
}

// CurrentFrame returns the selected stack frame.
func (s *Session) CurrentFrame() (StackFrame, bool) {
	return s.store.CurrentFrame()
}

// SetCurrentFrame selects a stack frame for variable inspection and
// refreshes the locals scoped to it. Fails on an out-of-range index.
func (s *Session) SetCurrentFrame(level int) bool {
	if !s.store.SelectFrame(level) {
		return false
	}

	s.mu.Lock()
	defer s.unlockAndFlush()

	s.sendLocked(fmt.Sprintf("%s %d", cmdSelectFrame, level))
	s.sendLocked(cmdGetLocals)
	return true
}

// MemoryInfo returns the last known memory region snapshots.
func (s *Session) MemoryInfo() map[string]MemoryRegion {
	return s.store.Regions()
}

// RefreshMemoryInfo requests updated memory information.
func (s *Session) RefreshMemoryInfo() {
	s.mu.Lock()
	defer s.unlockAndFlush()
	s.sendLocked(cmdMemoryInfo)
}

// ==================== Timeline ====================

// TimelineEvents returns the execution timeline, oldest first.
func (s *Session) TimelineEvents() []ExecutionEvent {
	return s.timeline.Events()
}

// ClearTimeline empties the timeline without touching other engine state.
func (s *Session) ClearTimeline() {
	s.timeline.Clear()
}

// ==================== Transport callbacks ====================

// handleSerialLine feeds one serial line through the serial parser. Runs
// on the poll goroutine.
func (s *Session) handleSerialLine(line string) {
	s.mu.Lock()
	defer s.unlockAndFlush()
	s.serialParser.ParseLine(line)
}

// handleGDBLine feeds one gdb stdout line through the MI parser. Runs on
// the stdout reader goroutine.
func (s *Session) handleGDBLine(line string) {
	s.mu.Lock()
	defer s.unlockAndFlush()
	s.miParser.ParseLine(line)
}

// handleGDBDiagnostic surfaces gdb stderr as console output.
func (s *Session) handleGDBDiagnostic(text string) {
	log.Warnf("gdb: %s", text)

	s.mu.Lock()
	defer s.unlockAndFlush()
	s.emitLocked(TopicConsoleOutput, "GDB: "+text)
}

// handleTransportClosed reacts to the transport ending on its own (process
// exit or unrecoverable failure). The session always lands in
// Disconnected, regardless of exit code.
func (s *Session) handleTransportClosed(err error) {
	s.mu.Lock()
	defer s.unlockAndFlush()

	if s.transport == nil && (s.state == StateDisconnected || s.state == StateIdle) {
		return
	}

	s.transport = nil
	s.store.ClearTransient()
	s.currentFile = ""
	s.currentLine = 0

	if err != nil {
		s.emitLocked(TopicError, fmt.Sprintf("transport closed: %v", err))
	}
	s.setStateLocked(StateDisconnected)
}

// ==================== Parser callbacks (lock held) ====================

// The protocolHandler methods below are invoked by the parsers, which only
// run inside handleSerialLine/handleGDBLine, so the session lock is held.

func (s *Session) handleConsole(line string) {
	s.emitLocked(TopicConsoleOutput, line)
}

func (s *Session) handleBreakpointHit(file string, line int) {
	s.currentFile = file
	s.currentLine = line

	hit := BreakpointHit{File: file, Line: line}
	if bp, ok := s.registry.RecordHit(file, line); ok {
		hit.Breakpoint = &bp
	}

	s.emitLocked(TopicBreakpointHit, hit)
	s.recordLocked(EventBreakpoint, fmt.Sprintf("%s:%d", file, line), nil)
	s.setStateLocked(StatePaused)
}

func (s *Session) handleVariable(v Variable) {
	if s.store.SetVariable(v) {
		s.emitLocked(TopicVariableUpdated, VariableUpdate{Name: v.Name, Variable: v})
	}
	s.emitLocked(TopicVariablesUpdated, s.store.LocalVariables())
}

func (s *Session) handleStack(frames []StackFrame) {
	s.store.ReplaceStack(frames)
	s.emitLocked(TopicStackUpdated, frames)
}

func (s *Session) handleMemory(regions []MemoryRegion) {
	s.store.UpsertRegions(regions)
	s.emitLocked(TopicMemoryUpdated, s.store.Regions())
}

func (s *Session) handleProtocolState(st State) {
	s.setStateLocked(st)
}
