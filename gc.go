package safepoint

// spinIterations bounds WaitGC's short busy-wait before it parks on the
// safepoint condition variable, ported from the original's relaxed-load
// spin loop ahead of taking the lock.
const spinIterations = 1000

// StartGC implements the single-writer election of §4.2. A thread that
// returns true is the collector and must call EndGC when it finishes; a
// thread that returns false has already waited out the winner's run.
func (rt *Runtime) StartGC(ts *ThreadState) bool {
	if rt.numThreads.Load() <= 1 {
		rt.gcRunning.Store(true)
		return true
	}

	rt.mu.Lock()
	if rt.gcRunning.CompareAndSwap(false, true) {
		rt.enableLocked(slotMasterGC)
		rt.enableLocked(slotWorkerGC)
		rt.mu.Unlock()
		return true
	}
	rt.mu.Unlock()

	rt.WaitGC(ts)
	return false
}

// EndGC is called by the collector once a collection completes. Slot 2
// is disabled before slot 1 so that a waking thread observes the pages
// revert before it re-polls and sees gc_running cleared (§4.2). With a
// single attached thread StartGC enabled no pages, so EndGC only clears
// gc_running and wakes any waiter.
func (rt *Runtime) EndGC(ts *ThreadState) {
	if rt.numThreads.Load() <= 1 {
		rt.mu.Lock()
		rt.gcRunning.Store(false)
		rt.cond.Broadcast()
		rt.mu.Unlock()
		return
	}

	rt.mu.Lock()
	rt.disableLocked(slotWorkerGC)
	rt.disableLocked(slotMasterGC)
	rt.gcRunning.Store(false)
	rt.cond.Broadcast()
	rt.mu.Unlock()
}

// WaitGC blocks the calling thread until gc_running clears. It marks
// ts.GCState WAITING for the duration of the wait, so the collector can
// tell this thread is paused (§4.2), and RUNNING again on return.
func (rt *Runtime) WaitGC(ts *ThreadState) {
	ts.GCState.Store(int32(GCWaiting))
	defer ts.GCState.Store(int32(GCRunning))

	for i := 0; i < spinIterations; i++ {
		if !rt.gcRunning.Load() {
			return
		}
	}

	rt.mu.Lock()
	for rt.gcRunning.Load() {
		rt.cond.Wait()
	}
	rt.mu.Unlock()
}
