package safepoint

// ctxinject.go is the Go-native form of §4.7's context injection.
// Rewriting a trapped thread's SP/PC/LR to resume at a runtime routine on
// its alternate signal stack has no meaning for a goroutine: there is no
// register context to hand to another goroutine, and nothing plays the
// role of "the instruction the fault handler returns to". The equivalent
// effect — "the faulting thread resumes execution inside a runtime-chosen
// routine instead of at the faulting instruction" — is achieved by having
// the poll site itself receive a typed Exception and panic with it
// (Inject, in exceptions.go) rather than by rewriting any context.
//
// exit_thread_zero is the one case in §4.6 where the routine to "resume
// into" is not an exception type but an orderly-exit callback running on
// thread 0. runExitThreadZeroCallback plays that role: it is invoked from
// CheckSignals on thread 0's own goroutine (the Go-native stand-in for
// "resumes at fptr on its own signal stack"), and its return value, if
// non-nil, is treated like any other injected exception by the caller.

// runExitThreadZeroCallback runs on the target thread's own goroutine
// once its signal_request reaches srExit, logs the recorded backtrace,
// and terminates the process via the configured exit function.
func (rt *Runtime) runExitThreadZeroCallback(ts *ThreadState) Exception {
	rt.logger.Error().
		Int("thread", ts.ID).
		Int("status", int(ts.exitState)).
		Strs("backtrace", formatBacktrace(ts.Backtrace())).
		Msg("safepoint: exit-thread-zero callback running")
	rt.exit(int(ts.exitState))
	return nil
}
