// Package safepoint implements the page-protection-based safepoint
// mechanism and signal-listener/per-thread signal protocol of a
// multi-threaded, garbage-collected runtime.
//
// Mutator goroutines voluntarily poll a per-slot guard page (Poll); when
// the page is protected, the poll faults and the fault is routed to
// either a GC wait or an injected exception. A dedicated listener
// goroutine fans out asynchronous OS signals: it can suspend any
// registered mutator, capture its call stack, and resume it — optionally
// injecting an exception or driving process exit.
//
// See DESIGN.md for the grounding of each component and SPEC_FULL.md for
// the full requirements this package implements.
package safepoint
