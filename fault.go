package safepoint

import (
	"os"
	"runtime/debug"
	"unsafe"
)

// signalStackOverflowExitCode mirrors §4.4 step 5's "exit immediately
// with status sig+128"; SIGSEGV is 11 on every platform this targets.
const signalStackOverflowExitCode = 128 + 11

// Poll performs a guarded load of ts's safepoint address: thread 0 reads
// the master GC page, every other thread reads the worker GC page (§3).
// If the page is currently protected the load takes a real page fault,
// which debug.SetPanicOnFault turns into a recoverable panic — this is
// the zero-overhead "poll instruction" of §4.1/§9 reimplemented without
// a custom SIGSEGV handler. A non-nil return must be passed to Inject (or
// handled) by the caller; Poll itself never panics.
func (rt *Runtime) Poll(ts *ThreadState) Exception {
	addr := rt.pollAddr(ts)
	faulted, faultAddr := loadGuarded(addr)
	if !faulted {
		return nil
	}
	return rt.routeFault(ts, faultAddr, false)
}

func (rt *Runtime) pollAddr(ts *ThreadState) uintptr {
	if ts.ID == MainThreadID {
		return rt.pages.Addr(slotMasterGC)
	}
	return rt.pages.Addr(slotWorkerGC)
}

// loadGuarded performs the faulting load, reporting whether it faulted
// and, if so, the address the fault reported (the runtime's panic value
// for a faulting dereference implements interface{ Addr() uintptr }).
func loadGuarded(addr uintptr) (faulted bool, faultAddr uintptr) {
	prev := debug.SetPanicOnFault(true)
	defer debug.SetPanicOnFault(prev)
	defer func() {
		if r := recover(); r != nil {
			faulted = true
			if a, ok := r.(interface{ Addr() uintptr }); ok {
				faultAddr = a.Addr()
			} else {
				faultAddr = addr
			}
		}
	}()
	_ = *(*byte)(unsafe.Pointer(addr))
	return false, 0
}

// routeFault is the fault router's decision procedure (§4.4), shared by
// Poll (real safepoint-page faults) and ClassifyFault
// (caller-supplied checks for the other fault categories, which Go cannot
// deliver as genuine asynchronous signals to a single goroutine — see
// DESIGN.md's C4 entry). writeFault corresponds to step 6's
// platform-specific WnR bit, supplied by the caller since Go's guarded
// load never itself produces a write fault.
func (rt *Runtime) routeFault(ts *ThreadState, addr uintptr, writeFault bool) Exception {
	if sr := ts.safeRestore.Load(); sr != nil {
		return (*sr)(addr)
	}
	if !ts.CurrentTask.Load() {
		rt.sigdie(ts, addr)
		return nil
	}

	switch {
	case rt.pages.Contains(addr):
		rt.WaitGC(ts)
		if ts.ID != MainThreadID {
			return nil
		}
		if ts.DeferSignal.Load() != 0 {
			rt.DeferSigint()
			return nil
		}
		if rt.ConsumeSigint() {
			rt.forceSigint.Store(false)
			return InterruptError{}
		}
		return nil

	case ts.isOnTaskStack(addr):
		return StackOverflowError{Addr: addr}

	case ts.isOnSignalStack(addr):
		rt.logger.Error().Uint64("addr", uint64(addr)).Int("thread", ts.ID).
			Msg("safepoint: signal stack overflow, exiting")
		rt.exit(signalStackOverflowExitCode)
		return nil

	case writeFault:
		return ReadOnlyMemoryError{Addr: addr}

	default:
		if rt.opts.InjectSegvException {
			return SegvError{Addr: addr}
		}
		rt.sigdie(ts, addr)
		return nil
	}
}

// ClassifyFault exposes routeFault's decision table for a caller-supplied
// address outside the genuine guard-page path — i.e. for scenarios the
// original receives as a process-wide SIGSEGV/SIGBUS but that Go's
// per-goroutine fault delivery cannot reproduce faithfully (stack
// overflow, RO-memory write, unknown crash). Tests use this to exercise
// steps 4-7 directly.
func (rt *Runtime) ClassifyFault(ts *ThreadState, addr uintptr, writeFault bool) Exception {
	return rt.routeFault(ts, addr, writeFault)
}

// sigdie logs a crash report and terminates the process, the Go-native
// stand-in for "print crash info, re-raise with default action" (§7):
// Go gives us no portable way to re-deliver a signal with default
// disposition after recovering from it, so this always exits.
func (rt *Runtime) sigdie(ts *ThreadState, addr uintptr) {
	rt.logger.Error().
		Uint64("addr", uint64(addr)).
		Int("thread", ts.ID).
		Int("nrunning", rt.NumRunning()).
		Msg("safepoint: fatal fault, exiting")
	rt.exit(2)
}

func (rt *Runtime) exit(status int) {
	if rt.opts.OnExit != nil {
		rt.opts.OnExit(status)
		return
	}
	os.Exit(status)
}
