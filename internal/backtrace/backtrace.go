// Package backtrace captures Go call-stack snapshots as the in-process
// substitute for libunwind's rec_backtrace_ctx over a trapped ucontext_t.
// A goroutine has no register context to hand to another goroutine, so
// the rendezvous and listener capture a []uintptr of program counters
// instead (see DESIGN.md, C5/C7 entries).
package backtrace

import (
	"fmt"
	"runtime"
)

// MaxFrames bounds a single capture, mirroring JL_MAX_BT_SIZE.
const MaxFrames = 128

// Capture records up to MaxFrames program counters for the calling
// goroutine, skipping skip frames above Capture itself.
func Capture(skip int) []uintptr {
	pcs := make([]uintptr, MaxFrames)
	n := runtime.Callers(skip+2, pcs)
	return pcs[:n]
}

// Format renders a captured backtrace into symbolized lines, for crash
// reports and profile dumps.
func Format(pcs []uintptr) []string {
	if len(pcs) == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pcs)
	var lines []string
	for {
		frame, more := frames.Next()
		lines = append(lines, fmt.Sprintf("%s\n\t%s:%d", frame.Function, frame.File, frame.Line))
		if !more {
			break
		}
	}
	return lines
}
