package safepoint

// enableLocked increments slot's enable counter, protecting the page on
// the 0→1 transition. Callers must hold rt.mu (§4.1).
func (rt *Runtime) enableLocked(slot int) {
	c := rt.counters[slot]
	if c >= maxSlotCount {
		panic("safepoint: enable counter overflow")
	}
	rt.counters[slot] = c + 1
	if c == 0 {
		if err := rt.pages.Protect(slot); err != nil {
			rt.logger.Error().Err(err).Int("slot", slot).Msg("safepoint: mprotect failed enabling slot")
		}
	}
}

// disableLocked decrements slot's enable counter, unprotecting the page
// on the 1→0 transition. Callers must hold rt.mu. An unbalanced extra
// disable is a programming error (P1) and panics rather than silently
// underflowing the counter.
func (rt *Runtime) disableLocked(slot int) {
	c := rt.counters[slot]
	if c == 0 {
		panic("safepoint: disable underflow")
	}
	rt.counters[slot] = c - 1
	if c == 1 {
		if err := rt.pages.Unprotect(slot); err != nil {
			rt.logger.Error().Err(err).Int("slot", slot).Msg("safepoint: mprotect failed disabling slot")
		}
	}
}

// counterLocked returns slot's current enable counter, for tests
// asserting P1/P3. Callers must hold rt.mu.
func (rt *Runtime) counterLocked(slot int) int32 {
	return rt.counters[slot]
}
