package safepoint

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/acxz/safepoint/internal/backtrace"
)

// profileGracePeriod is the 2s window during which trailing profile-timer
// signals must be ignored after the timer stops (§4.6).
const profileGracePeriod = 2 * time.Second

// sampleConcurrency is the weight of the semaphore a sampling pass
// acquires around each per-thread sample. The pass samples threads one at
// a time on the listener goroutine, so at most one unit is ever held; the
// in-signal lock serializes the suspend/capture/resume regardless.
const sampleConcurrency = 8

// StartListener spawns the dedicated signal-dispatch goroutine of §4.6.
// It owns os/signal.Notify for the monitored signal set and a ticker
// standing in for the profile-timer signal (Go has no portable interval
// timer without cgo). Call StopListener to shut it down.
func (rt *Runtime) StartListener() {
	sigCh := make(chan os.Signal, 8)
	signal.Notify(sigCh,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
		syscall.SIGABRT,
		syscall.SIGUSR1,
	)

	rt.listenerStop = make(chan struct{})
	ticker := time.NewTicker(rt.opts.ProfileInterval)

	rt.listenerWG.Add(1)
	go func() {
		defer rt.listenerWG.Done()
		defer signal.Stop(sigCh)
		defer ticker.Stop()

		for {
			select {
			case <-rt.listenerStop:
				return
			case sig := <-sigCh:
				rt.dispatchSignal(sig)
			case <-ticker.C:
				rt.profileTick()
			}
		}
	}()
}

// StopListener halts the listener goroutine and waits for it to exit.
func (rt *Runtime) StopListener() {
	if rt.listenerStop == nil {
		return
	}
	select {
	case <-rt.listenerStop:
	default:
		close(rt.listenerStop)
	}
	rt.listenerWG.Wait()
}

func (rt *Runtime) dispatchSignal(sig os.Signal) {
	switch sig {
	case syscall.SIGINT:
		rt.handleSigint()
	case syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGABRT:
		rt.criticalStacktrace()
		rt.ExitThreadZero(128+signum(sig), nil)
	case syscall.SIGUSR1:
		if !rt.profiling.Load() {
			rt.startProfilePeek()
		}
	}
}

func signum(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return int(s)
	}
	return 0
}

// handleSigint implements §4.6's user-interrupt handling: honor the
// global ignore/exit-on-sigint toggles, otherwise try_deliver_sigint,
// with the force-sigint escalation of SPEC_FULL.md §4 layered on top.
func (rt *Runtime) handleSigint() {
	if rt.ignoreSigint.Load() {
		return
	}
	if rt.exitOnSigint.Load() {
		rt.criticalStacktrace()
		rt.ExitThreadZero(128+int(syscall.SIGINT), nil)
		return
	}
	rt.tryDeliverSigint()
}

func (rt *Runtime) tryDeliverSigint() {
	now := time.Now().UnixNano()
	window := rt.opts.ForceSigintWindow.Nanoseconds()
	if rt.sigintWindowStartNanos == 0 || now-rt.sigintWindowStartNanos > window {
		rt.sigintWindowStartNanos = now
		rt.sigintCount = 0
	}
	rt.sigintCount++
	forced := rt.opts.ForceSigintThreshold > 0 && rt.sigintCount >= rt.opts.ForceSigintThreshold

	rt.EnableSigint()
	rt.wakeEventLoop()

	ts0 := rt.threadByID(MainThreadID)
	if ts0 == nil {
		return
	}
	if forced {
		rt.logger.Error().Int("count", rt.sigintCount).Msg("safepoint: SIGINT repeated too often, forcing delivery")
		rt.forceSigint.Store(true)
	}
	ts0.SignalRequest.CompareAndSwap(srIdle, srEvaluate)
}

// startProfilePeek runs a profile-peek: marks profiling active and
// schedules an autostop (§4.6). The buffer, allocated by New, is not
// reset here; ResetProfile clears it.
func (rt *Runtime) startProfilePeek() {
	rt.profiling.Store(true)
	rt.logger.Debug().Msg("safepoint: profile-peek started")
	go func(stop <-chan struct{}) {
		select {
		case <-time.After(time.Second):
			rt.StopProfileTimer()
		case <-stop:
		}
	}(rt.listenerStop)
}

// StopProfileTimer stops active profiling, engaging the grace period
// during which trailing timer ticks are ignored.
func (rt *Runtime) StopProfileTimer() {
	rt.profiling.Store(false)
	rt.profileStoppedAt = time.Now()
}

// profileTick is invoked on every profile-interval ticker fire; it is a
// no-op unless profiling is active and the grace period has elapsed.
func (rt *Runtime) profileTick() {
	if !rt.profiling.Load() {
		return
	}
	if !rt.profileStoppedAt.IsZero() && time.Since(rt.profileStoppedAt) < profileGracePeriod {
		return
	}
	rt.samplePass(context.Background())
}

// samplePass implements §4.6's profile-timer handling and scenario 6:
// take the profile lock, visit attached threads in a random permutation,
// suspend each via C5, record a backtrace annotated with thread id+1,
// whether a task is current, the sample cycle, and sleep state+1. If the
// buffer fills mid-pass the timer is stopped and no further samples are
// taken until restarted.
func (rt *Runtime) samplePass(ctx context.Context) {
	rt.profileMu.Lock()
	defer rt.profileMu.Unlock()

	threads := rt.snapshotThreads()
	if len(threads) == 0 {
		return
	}
	perm := randPerm(len(threads))
	sem := semaphore.NewWeighted(int64(sampleConcurrency))

	for _, idx := range perm {
		if rt.profile.isFull() {
			rt.StopProfileTimer()
			return
		}
		ts := threads[idx]
		if err := sem.Acquire(ctx, 1); err != nil {
			return
		}
		rt.sampleThread(ts)
		sem.Release(1)
	}
}

func (rt *Runtime) sampleThread(ts *ThreadState) {
	sleepState := ts.SleepCheckState.Load()
	hasTask := ts.CurrentTask.Load()
	err := rt.WithSuspended(ts, srCapture, func(bt []uintptr) {
		sample := ProfileSample{
			Backtrace:  append([]uintptr(nil), bt...),
			ThreadID:   ts.ID + 1,
			HasTask:    hasTask,
			SleepState: sleepState + 1,
		}
		rt.profile.record(sample)
	})
	if err != nil {
		rt.logger.Debug().Int("thread", ts.ID).Err(err).Msg("safepoint: sample rendezvous skipped")
	}
}

// criticalStacktrace implements the "critical-with-stacktrace path":
// every attached thread, visited in reverse id order, is suspended, its
// backtrace appended to the returned slice (one entry per thread that
// acknowledged; no sentinel entry), and resumed.
func (rt *Runtime) criticalStacktrace() [][]uintptr {
	threads := rt.snapshotThreads()
	sort.Slice(threads, func(i, j int) bool { return threads[i].ID > threads[j].ID })

	var out [][]uintptr
	for _, ts := range threads {
		_ = rt.WithSuspended(ts, srCapture, func(bt []uintptr) {
			out = append(out, append([]uintptr(nil), bt...))
		})
	}
	rt.logger.Error().Int("threads", len(out)).Msg("safepoint: critical signal, captured stacktraces")
	return out
}

// ExitThreadZero drives the three-step escalation of §4.6: first
// suspends thread 0 and hands it the exit callback to run on its own
// goroutine, a repeated call posts the request directly, and any further
// call falls back to an immediate exit.
func (rt *Runtime) ExitThreadZero(status int, bt []uintptr) {
	n := rt.exitAttempts.Add(1)
	ts0 := rt.threadByID(MainThreadID)

	switch {
	case n == 1 && ts0 != nil:
		ts0.exitState = int32(status)
		if bt != nil {
			ts0.ctxMu.Lock()
			ts0.backtrace = bt
			ts0.ctxMu.Unlock()
		}
		if err := rt.WithSuspended(ts0, srExit, func([]uintptr) {}); err != nil {
			rt.logger.Error().Err(err).Msg("safepoint: could not hand off exit to thread 0, exiting directly")
			rt.exit(status)
		}
	case n == 2 && ts0 != nil:
		ts0.exitState = int32(status)
		ts0.SignalRequest.Store(srExit)
	default:
		rt.exit(status)
	}
}

func formatBacktrace(pcs []uintptr) []string {
	return backtrace.Format(pcs)
}
