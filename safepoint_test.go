package safepoint

import "testing"

func newTestRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	rt, err := New(opts...)
	if err != nil {
		t.Fatalf("safepoint.New: %v", err)
	}
	t.Cleanup(func() { _ = rt.Shutdown() })
	return rt
}
