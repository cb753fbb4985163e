// Package debug implements the firmware debug session engine.
//
// A Session drives a remote debugging session over one of two transports: a
// line-oriented protocol on a serial link to the target board, or a spawned
// gdb process speaking the GDB Machine Interface attached to a remote debug
// server. The session owns the state machine, the breakpoint registry, the
// inspection store (variables, call stack, memory regions), and the bounded
// execution timeline, and publishes every notification onto an event bus for
// UI-layer consumers.
//
// All commands are fire-and-forget: the caller never blocks on transport
// I/O, and responses surface asynchronously through the protocol parsers.
package debug
