// Package notifications pushes installation events to an ntfy topic.
//
// An empty topic yields a no-op Service, so callers publish unconditionally.
// Delivery failures are returned to the caller, which treats them as
// warnings: a missed push never rolls back a stored change.
package notifications
