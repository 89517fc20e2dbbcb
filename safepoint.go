package safepoint

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/acxz/safepoint/internal/guardpage"
)

// slot indices into the three-slot guard-page region (§3).
const (
	slotSigint    = 0
	slotMasterGC  = 1
	slotWorkerGC  = 2
	numSlots      = guardpage.NumSlots
	maxSlotCount  = 2
)

// Runtime bundles every piece of global mutable state §9 describes as "a
// single initialization-ordered bundle": the three guard pages and their
// enable counters, the GC-running flag, the pending interrupt level, the
// attached thread table, the in-signal rendezvous lock, and the profile
// buffer. The original expresses this as process-wide globals created by
// safepoint_init + restore_signals; a constructed value is the more
// idiomatic Go shape for the same lifecycle and additionally lets tests
// build more than one independent instance.
type Runtime struct {
	opts   Options
	logger zerolog.Logger
	pages  *guardpage.Region

	mu       sync.Mutex // the safepoint lock: guards counters/pendingLevel
	cond     *sync.Cond // broadcast on end_gc
	counters [numSlots]int32
	gcRunning    atomic.Bool
	pendingLevel int32 // guarded by mu

	numThreads atomic.Int32
	threadsMu  sync.RWMutex
	threads    map[int]*ThreadState

	inSignalMu sync.Mutex // the in-signal lock
	exitAttempts atomic.Int32

	profileMu        sync.Mutex
	profile          *profileBuffer
	profiling        atomic.Bool
	profileStoppedAt time.Time

	ignoreSigint atomic.Bool
	exitOnSigint atomic.Bool
	forceSigint  atomic.Bool
	sigintCount  int
	sigintWindowStartNanos int64

	listenerStop chan struct{}
	listenerWG   sync.WaitGroup

	wakeFD int
}

// New allocates the guard-page region and returns a ready Runtime. The
// pages live for the Runtime's lifetime; call Shutdown to release them.
func New(opts ...Option) (*Runtime, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	pages, err := guardpage.New()
	if err != nil {
		return nil, err
	}
	rt := &Runtime{
		opts:    o,
		logger:  pkgLogger,
		pages:   pages,
		threads: make(map[int]*ThreadState, o.NumThreads),
		profile: newProfileBuffer(o.ProfileBufferSize),
		wakeFD:  -1,
	}
	rt.cond = sync.NewCond(&rt.mu)
	if err := rt.initWakeFD(); err != nil {
		rt.logger.Error().Err(err).Msg("safepoint: event-loop wake fd unavailable, io_wait threads will not be woken")
	}
	return rt, nil
}

// Attach creates the TLS block for a newly joined mutator thread (logical
// id), registering it so StartGC's thread count and the listener's
// sampling/critical-path iteration see it.
func (rt *Runtime) Attach(id int) *ThreadState {
	ts := newThreadState(id, rt.opts)
	rt.threadsMu.Lock()
	rt.threads[id] = ts
	rt.threadsMu.Unlock()
	rt.numThreads.Add(1)
	return ts
}

// Detach removes a thread's TLS block, as happens when a mutator thread
// exits (§3, "Lifecycle").
func (rt *Runtime) Detach(ts *ThreadState) {
	rt.threadsMu.Lock()
	delete(rt.threads, ts.ID)
	rt.threadsMu.Unlock()
	rt.numThreads.Add(-1)
}

func (rt *Runtime) threadByID(id int) *ThreadState {
	rt.threadsMu.RLock()
	defer rt.threadsMu.RUnlock()
	return rt.threads[id]
}

func (rt *Runtime) snapshotThreads() []*ThreadState {
	rt.threadsMu.RLock()
	defer rt.threadsMu.RUnlock()
	out := make([]*ThreadState, 0, len(rt.threads))
	for _, ts := range rt.threads {
		out = append(out, ts)
	}
	return out
}

// NumRunning reports how many attached threads are not currently WAITING,
// the nrunning diagnostic carried into crash reports (SPEC_FULL.md §4).
func (rt *Runtime) NumRunning() int {
	n := 0
	for _, ts := range rt.snapshotThreads() {
		if GCPhase(ts.GCState.Load()) == GCRunning {
			n++
		}
	}
	return n
}

// Shutdown releases the guard pages and resets counters to 0, as
// required at process shutdown by §3's lifecycle note ("Counters return
// to 0 at process shutdown by design; tests may assert this").
func (rt *Runtime) Shutdown() error {
	rt.StopListener()
	rt.mu.Lock()
	for i := range rt.counters {
		rt.counters[i] = 0
	}
	rt.pendingLevel = 0
	rt.mu.Unlock()
	rt.gcRunning.Store(false)
	rt.closeWakeFD()
	return rt.pages.Close()
}

// AddrIsSafepoint reports whether addr lies within the guard-page region,
// i.e. addr_is_safepoint (§6, P4).
func (rt *Runtime) AddrIsSafepoint(addr uintptr) bool {
	return rt.pages.Contains(addr)
}

// IgnoreSigint sets the global "drop SIGINT" toggle (SPEC_FULL.md §4).
func (rt *Runtime) IgnoreSigint(ignore bool) { rt.ignoreSigint.Store(ignore) }

// ExitOnSigint sets the global "SIGINT is always critical" toggle.
func (rt *Runtime) ExitOnSigint(exit bool) { rt.exitOnSigint.Store(exit) }
