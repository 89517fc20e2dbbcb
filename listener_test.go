package safepoint

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Scenario 6: profile sampling. With N=3 threads, profiling active and a
// buffer of capacity 2, a sampling pass records one sample per visited
// thread until the buffer is full and records nothing further.
func TestProfileSamplingPass(t *testing.T) {
	rt := newTestRuntime(t, WithNumThreads(3), WithProfileBufferSize(2))
	var wg sync.WaitGroup
	done := make(chan struct{})

	threads := make([]*ThreadState, 3)
	for i := 0; i < 3; i++ {
		ts := rt.Attach(i)
		threads[i] = ts
		wg.Add(1)
		go func(ts *ThreadState) {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				rt.CheckSignals(ts)
				time.Sleep(time.Millisecond)
			}
		}(ts)
	}

	rt.profiling.Store(true)
	rt.samplePass(context.Background())

	close(done)
	wg.Wait()
	for _, ts := range threads {
		rt.Detach(ts)
	}

	samples := rt.ProfileSamples()
	require.LessOrEqual(t, len(samples), 2, "buffer capacity must bound sample count")
	require.True(t, rt.IsProfileBufferFull())
}

// The exit-thread-zero escalation's first call hands off to thread 0's
// own goroutine; repeated calls escalate to a direct exit.
func TestExitThreadZeroEscalation(t *testing.T) {
	var exits []int
	var mu sync.Mutex
	rt := newTestRuntime(t, WithNumThreads(1), WithExitFunc(func(status int) {
		mu.Lock()
		exits = append(exits, status)
		mu.Unlock()
	}))

	ts0 := rt.Attach(MainThreadID)
	defer rt.Detach(ts0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			if ts0.SignalRequest.Load() != srIdle {
				rt.CheckSignals(ts0)
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	rt.ExitThreadZero(130, nil)
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{130}, exits)
}

func TestExitThreadZeroDirectAfterTwoAttempts(t *testing.T) {
	var exits []int
	var mu sync.Mutex
	rt := newTestRuntime(t, WithExitFunc(func(status int) {
		mu.Lock()
		exits = append(exits, status)
		mu.Unlock()
	}))

	// No thread 0 attached: both the first and second escalation steps
	// fall straight through, and the third always does.
	rt.ExitThreadZero(1, nil)
	rt.ExitThreadZero(1, nil)
	rt.ExitThreadZero(1, nil)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, exits, 3)
}
