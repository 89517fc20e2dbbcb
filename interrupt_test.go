package safepoint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// P3: after enable_sigint followed by consume_sigint, the pending level
// returns to 0 and both affected pages return to the protection state
// they would have had with no interrupt activity.
func TestEnableConsumeSigintRoundTrip(t *testing.T) {
	rt := newTestRuntime(t)

	rt.EnableSigint()
	rt.EnableSigint()
	rt.mu.Lock()
	require.EqualValues(t, levelSigintAndGC, rt.pendingLevelLocked())
	rt.mu.Unlock()

	require.True(t, rt.ConsumeSigint())

	rt.mu.Lock()
	defer rt.mu.Unlock()
	require.EqualValues(t, levelNone, rt.pendingLevelLocked())
	require.EqualValues(t, 0, rt.counterLocked(slotSigint))
	require.EqualValues(t, 0, rt.counterLocked(slotMasterGC))
}

func TestConsumeSigintReportsWhetherPending(t *testing.T) {
	rt := newTestRuntime(t)
	require.False(t, rt.ConsumeSigint())

	rt.EnableSigint()
	require.True(t, rt.ConsumeSigint())
	require.False(t, rt.ConsumeSigint())
}

// Scenario 3: SIGINT during GC. While GC holds slots 1 and 2 enabled, the
// listener delivers enable_sigint. On end_gc, slot 1 remains inaccessible
// (interrupt counter > 0) even though the GC counter has been
// decremented. consume_sigint then restores slot 1 to read-only.
func TestSigintDuringGC(t *testing.T) {
	rt := newTestRuntime(t, WithNumThreads(2))
	ts := rt.Attach(1)
	defer rt.Detach(ts)
	other := rt.Attach(2) // two attached threads: StartGC enables slots 1 and 2
	defer rt.Detach(other)

	require.True(t, rt.StartGC(ts))
	rt.EnableSigint()
	rt.EnableSigint() // level 2: slot 0 and slot 1 both interrupt-enabled

	rt.EndGC(ts)

	rt.mu.Lock()
	require.EqualValues(t, 1, rt.counterLocked(slotMasterGC), "interrupt's increment on slot 1 must survive end_gc")
	rt.mu.Unlock()

	require.True(t, rt.ConsumeSigint())

	rt.mu.Lock()
	defer rt.mu.Unlock()
	require.EqualValues(t, 0, rt.counterLocked(slotMasterGC))
	require.EqualValues(t, 0, rt.counterLocked(slotSigint))
}

// Scenario 4: deferred SIGINT. A SIGINT-triggered poll fault on a thread
// with defer_signal != 0 calls defer_sigint, dropping the level from 2 to
// 1; once defer_signal clears and the thread polls again, it consumes the
// interrupt and takes InterruptError.
func TestDeferredSigint(t *testing.T) {
	rt := newTestRuntime(t, WithNumThreads(1))
	ts := rt.Attach(MainThreadID)
	defer rt.Detach(ts)

	rt.EnableSigint()
	rt.EnableSigint()
	ts.DeferSignal.Store(1)

	exc := rt.routeFault(ts, rt.pages.Addr(slotMasterGC), false)
	require.Nil(t, exc)
	rt.mu.Lock()
	require.EqualValues(t, levelSigintOnly, rt.pendingLevelLocked())
	rt.mu.Unlock()

	ts.DeferSignal.Store(0)
	exc = rt.routeFault(ts, rt.pages.Addr(slotMasterGC), false)
	require.IsType(t, InterruptError{}, exc)
}
