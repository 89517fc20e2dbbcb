package safepoint

import (
	"errors"
	"time"

	"github.com/acxz/safepoint/internal/backtrace"
)

// ErrRendezvousTimeout is returned when a target thread does not
// acknowledge a suspend request within the ~1s window of §4.5/§5.
var ErrRendezvousTimeout = errors.New("safepoint: suspend rendezvous timed out")

// rendezvousTimeout is the ~1s bound of §4.5 step 3 / §5 "Cancellation".
const rendezvousTimeout = time.Second

// CheckSignals is the target side of the per-thread signal rendezvous
// (§4.5 "Target side"). A mutator calls this cooperatively at its own
// poll sites; Go gives a program no way to deliver an async signal to one
// specific goroutine the way pthread_kill targets one OS thread, so the
// "dedicated user signal" of §4.5 step 2 is modeled as the listener's
// atomic store into SignalRequest, observed here the next time the
// target itself calls CheckSignals (documented Go-native substitution,
// SPEC_FULL.md §0 and DESIGN.md's C5 entry).
func (rt *Runtime) CheckSignals(ts *ThreadState) Exception {
	prior := ts.SignalRequest.Swap(srAcknowledging)
	switch prior {
	case srCapture:
		ts.ctxMu.Lock()
		ts.backtrace = backtrace.Capture(1)
		ts.ctxMu.Unlock()

		ts.SignalRequest.Store(srIdle)
		notify(ts.caughtCh)

		sig := <-ts.resumeCh
		ts.SignalRequest.Store(srIdle)
		notify(ts.caughtCh)

		if sig == srExit {
			return rt.runExitThreadZeroCallback(ts)
		}
		return nil

	case srEvaluate:
		return rt.deliverIfDue(ts)

	case srExit:
		return rt.runExitThreadZeroCallback(ts)

	default:
		// Nothing was pending; restore the word (the Swap above was a
		// no-op read in all but name).
		ts.SignalRequest.Store(prior)
		return nil
	}
}

// deliverIfDue implements usr2_handler's request==2 branch: delivery is
// due if force-sigint is latched, or if the thread is neither deferring
// signals nor outside a blocking I/O wait — io_wait is exactly the
// "parked in a blocking read" state async delivery exists to wake, not a
// reason to skip it.
func (rt *Runtime) deliverIfDue(ts *ThreadState) Exception {
	force := rt.forceSigint.Load()
	if !force && (ts.DeferSignal.Load() != 0 || !ts.IOWait.Load()) {
		return nil
	}
	if rt.ConsumeSigint() {
		rt.forceSigint.Store(false)
		return InterruptError{}
	}
	return nil
}

// WithSuspended implements the requester side of §4.5 combined with
// Resume, matching §5's requirement that the listener hold the in-signal
// lock across the whole suspend-capture-resume sequence so thread
// sampling is serialized (invariant C1). fn receives the captured
// backtrace; the target is resumed with resumeSig (srCapture for a plain
// resume, srExit to drive the exit-thread-zero callback) once fn
// returns.
func (rt *Runtime) WithSuspended(ts *ThreadState, resumeSig int32, fn func(bt []uintptr)) error {
	rt.inSignalMu.Lock()
	defer rt.inSignalMu.Unlock()

	bt, err := rt.suspendAndCaptureLocked(ts)
	if err != nil {
		return err
	}
	fn(bt)
	rt.resumeLocked(ts, resumeSig)
	return nil
}

func (rt *Runtime) suspendAndCaptureLocked(ts *ThreadState) ([]uintptr, error) {
	caught := make(chan struct{}, 1)
	ts.caughtCh = caught
	ts.resumeCh = make(chan int32, 1)
	ts.SignalRequest.Store(srCapture)

	if !waitOn(caught, rendezvousTimeout) {
		if ts.SignalRequest.CompareAndSwap(srCapture, srIdle) {
			return nil, ErrRendezvousTimeout
		}
		// The word is -1: the target has claimed the request but not
		// yet reached its park point. Re-wait once.
		if !waitOn(caught, rendezvousTimeout) {
			return nil, ErrRendezvousTimeout
		}
	}
	return ts.Backtrace(), nil
}

func (rt *Runtime) resumeLocked(ts *ThreadState, sig int32) {
	ts.resumeCh <- sig
	waitOn(ts.caughtCh, rendezvousTimeout)
}

func waitOn(ch chan struct{}, timeout time.Duration) bool {
	select {
	case <-ch:
		return true
	case <-time.After(timeout):
		return false
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
