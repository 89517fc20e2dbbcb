package safepoint

import (
	"sync"
	"sync/atomic"
)

// MainThreadID is the logical id reserved for thread 0, the only thread
// that ever owns the sigint page or runs the exit-thread-zero callback.
const MainThreadID = 0

// GCPhase is a ThreadState's gc_state.
type GCPhase int32

const (
	GCRunning GCPhase = iota
	GCWaiting
)

// signal_request values, per §4.5.
const (
	srAcknowledging int32 = -1
	srIdle          int32 = 0
	srCapture       int32 = 1
	srEvaluate      int32 = 2
	srExit          int32 = 3
)

// SafeRestoreFunc is an installable fault continuation (§4.4 step 1):
// while set on a ThreadState, any fault routed to that thread is handed
// straight to this function instead of the normal classification chain.
// Used by a profiler's own stack walk so a profiler fault cannot recurse
// into the fault router (SPEC_FULL.md §4, "SafeRestore").
type SafeRestoreFunc func(addr uintptr) Exception

// ThreadState is the per-mutator TLS block of §3: an OS-thread identifier
// (here, a logical id), gc_state, signal_request, defer_signal, io_wait,
// sleep_check_state, stack bounds, and the captured-backtrace slot filled
// in while the thread is suspended.
type ThreadState struct {
	ID int

	CurrentTask     atomic.Bool
	GCState         atomic.Int32
	SignalRequest   atomic.Int32
	DeferSignal     atomic.Int32
	IOWait          atomic.Bool
	SleepCheckState atomic.Int32

	// StackBase/StackSize and SignalStackBase/SignalStackSize describe
	// [base-size, base) address ranges used purely for fault
	// classification (§4.4 steps 4-5). Go does not expose a goroutine's
	// real stack bounds, so these are set explicitly via SetStackBounds
	// rather than read from the runtime; they are a deliberate modeling
	// stand-in.
	StackBase       uintptr
	StackSize       uintptr
	SignalStackBase uintptr
	SignalStackSize uintptr

	safeRestore atomic.Pointer[SafeRestoreFunc]

	ctxMu     sync.Mutex
	backtrace []uintptr
	exitState int32

	// caughtCh/resumeCh back the in-signal rendezvous's two condition
	// variables (caught/exit) with one-shot channels, installed by the
	// listener under Runtime.inSignalMu for the duration of a single
	// suspend-capture-resume sequence (§4.5, §9's channel substitution).
	caughtCh chan struct{}
	resumeCh chan int32
}

func newThreadState(id int, opts Options) *ThreadState {
	ts := &ThreadState{ID: id}
	ts.CurrentTask.Store(true)
	ts.GCState.Store(int32(GCRunning))
	ts.StackSize = opts.TaskStackSize
	ts.SignalStackSize = opts.SignalStackSize
	return ts
}

// SetStackBounds sets the synthetic task-stack bounds used by the fault
// router's stack-overflow classification (§4.4 step 4). base is the
// stack's high address, size its depth.
func (ts *ThreadState) SetStackBounds(base, size uintptr) {
	ts.StackBase, ts.StackSize = base, size
}

// SetSignalStackBounds sets the synthetic signal-stack bounds used by
// step 5's signal-stack-overflow classification.
func (ts *ThreadState) SetSignalStackBounds(base, size uintptr) {
	ts.SignalStackBase, ts.SignalStackSize = base, size
}

// SetSafeRestore installs or clears a fault continuation.
func (ts *ThreadState) SetSafeRestore(fn SafeRestoreFunc) {
	if fn == nil {
		ts.safeRestore.Store(nil)
		return
	}
	ts.safeRestore.Store(&fn)
}

func (ts *ThreadState) isOnTaskStack(addr uintptr) bool {
	return ts.StackSize != 0 && addr >= ts.StackBase-ts.StackSize && addr < ts.StackBase
}

func (ts *ThreadState) isOnSignalStack(addr uintptr) bool {
	return ts.SignalStackSize != 0 && addr >= ts.SignalStackBase-ts.SignalStackSize && addr < ts.SignalStackBase
}

// Backtrace returns the most recently captured stack snapshot, valid
// only for the caller holding invariant C1 as documented at WithSuspended
// (between a successful suspend and the matching resume).
func (ts *ThreadState) Backtrace() []uintptr {
	ts.ctxMu.Lock()
	defer ts.ctxMu.Unlock()
	bt := make([]uintptr, len(ts.backtrace))
	copy(bt, ts.backtrace)
	return bt
}
