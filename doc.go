// Package tracecap is an in-process tracing capture core. It records one
// transaction at a time per Agent, nests timed spans inside it, links
// captured errors to the active trace, and serializes the resulting tree
// into wire-ready intake records.
//
// The package does no network I/O itself. Completed events accumulate in
// stores until Send hands them to a Dispatcher (see the transport package
// for ready-made connectors).
//
// An Agent supports exactly one concurrently open transaction and performs
// no internal locking. Hosts that serve concurrent logical requests must
// give each request its own Agent.
package tracecap
