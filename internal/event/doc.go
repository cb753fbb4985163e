// Package event provides the publish/subscribe bus used to deliver engine
// notifications to UI-layer consumers.
//
// Topics use dot-notation to create hierarchical namespaces:
//
//	debug.state.changed
//	debug.breakpoint.hit
//	debug.console.output
//
// Subscriptions may name an exact topic or a pattern containing wildcards:
// "*" matches exactly one segment and "**" matches any remaining segments.
// Delivery is synchronous and in subscription order; a panicking handler is
// recovered and counted, never propagated to the publisher.
package event
