// Package notifier fans messages out to the channels registered for a
// severity and every level below it.
//
// # Cascade
//
// A message at severity S reaches every channel bound at a level L with
// weight(L) <= weight(S). Every binding is sent independently, so a channel
// bound at several matching levels receives one message per binding.
//
// # Delivery
//
// Sends go through a chat Sender, paced by a token bucket and bounded by a
// per-send timeout. A failed send never aborts the fan-out; failures are
// collected and reported once at the end. Every outcome is published on the
// event bus and kept in a small in-memory history.
package notifier
