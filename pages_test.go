package safepoint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// P1: balanced enable/disable sequences leave the counter at 0 and the
// page read-only; an unbalanced extra disable is a programming error.
func TestEnableDisableBalanced(t *testing.T) {
	rt := newTestRuntime(t)

	rt.mu.Lock()
	rt.enableLocked(slotWorkerGC)
	require.EqualValues(t, 1, rt.counterLocked(slotWorkerGC))
	rt.enableLocked(slotWorkerGC)
	require.EqualValues(t, 2, rt.counterLocked(slotWorkerGC))
	rt.disableLocked(slotWorkerGC)
	require.EqualValues(t, 1, rt.counterLocked(slotWorkerGC))
	rt.disableLocked(slotWorkerGC)
	require.EqualValues(t, 0, rt.counterLocked(slotWorkerGC))
	rt.mu.Unlock()
}

func TestEnableOverflowPanics(t *testing.T) {
	rt := newTestRuntime(t)

	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.enableLocked(slotSigint)
	rt.enableLocked(slotSigint)
	require.Panics(t, func() { rt.enableLocked(slotSigint) })
}

func TestDisableUnderflowPanics(t *testing.T) {
	rt := newTestRuntime(t)

	rt.mu.Lock()
	defer rt.mu.Unlock()
	require.Panics(t, func() { rt.disableLocked(slotSigint) })
}

// P4: addr_is_safepoint(a) iff a lies in [P, P+3*S).
func TestAddrIsSafepoint(t *testing.T) {
	rt := newTestRuntime(t)

	require.True(t, rt.AddrIsSafepoint(rt.pages.Addr(slotSigint)))
	require.True(t, rt.AddrIsSafepoint(rt.pages.Addr(slotMasterGC)))
	require.True(t, rt.AddrIsSafepoint(rt.pages.Addr(slotWorkerGC)))
	require.False(t, rt.AddrIsSafepoint(0))
	require.False(t, rt.AddrIsSafepoint(^uintptr(0)))
}
