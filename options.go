package safepoint

import "time"

// Options tunes a Runtime at construction time. The original exposes this
// state as process-wide globals set once during bootstrap; bundling them
// into a functional-options struct keeps the same "single
// initialization-ordered bundle" shape (see DESIGN.md, §9 note) while
// letting a test construct more than one independent Runtime.
type Options struct {
	// NumThreads is a capacity hint for the attached-thread table; the
	// count StartGC's single-thread fast path actually checks comes
	// solely from Attach/Detach, not from this value.
	NumThreads int

	// ForceSigintThreshold is the number of SIGINTs within
	// ForceSigintWindow after which the listener force-delivers the
	// interrupt regardless of defer_signal (supplemented feature, see
	// SPEC_FULL.md §4).
	ForceSigintThreshold int
	ForceSigintWindow    time.Duration

	// ProfileInterval is the period of the profile-timer signal
	// substitute (a time.Ticker standing in for a POSIX interval timer).
	ProfileInterval time.Duration

	// ProfileBufferSize bounds the number of samples a profiling pass
	// will record before IsProfileBufferFull() reports true.
	ProfileBufferSize int

	// InjectSegvException selects step 7's optional branch: inject
	// SegvError instead of falling back directly to a crash report.
	InjectSegvException bool

	// OnExit is invoked by the exit-thread-zero escalation's terminal
	// step (the "immediate-exit syscall"); defaults to os.Exit.
	OnExit func(status int)

	// TaskStackSize/SignalStackSize size the synthetic stack bounds a
	// ThreadState is given on Attach, used by the fault router's
	// stack-overflow and signal-stack-overflow classification.
	TaskStackSize   uintptr
	SignalStackSize uintptr
}

// Option mutates Options during New.
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		NumThreads:            1,
		ForceSigintThreshold:  4,
		ForceSigintWindow:     time.Second,
		ProfileInterval:       10 * time.Millisecond,
		ProfileBufferSize:     4096,
		InjectSegvException:   true,
		TaskStackSize:         8 << 20,
		SignalStackSize:       8 << 20,
	}
}

// WithNumThreads hints at the number of mutator threads expected, sizing
// the initial attached-thread table. It does not itself affect StartGC's
// single-thread fast path (§4.2) — only Attach/Detach do that.
func WithNumThreads(n int) Option {
	return func(o *Options) { o.NumThreads = n }
}

// WithForceSigintThreshold configures the repeat-SIGINT escalation window.
func WithForceSigintThreshold(n int, window time.Duration) Option {
	return func(o *Options) { o.ForceSigintThreshold = n; o.ForceSigintWindow = window }
}

// WithProfileInterval overrides the profile-timer period.
func WithProfileInterval(d time.Duration) Option {
	return func(o *Options) { o.ProfileInterval = d }
}

// WithProfileBufferSize overrides the profile sample buffer capacity.
func WithProfileBufferSize(n int) Option {
	return func(o *Options) { o.ProfileBufferSize = n }
}

// WithSegvException toggles step 7's optional SegvError injection.
func WithSegvException(inject bool) Option {
	return func(o *Options) { o.InjectSegvException = inject }
}

// WithExitFunc overrides the terminal exit callback (tests use this to
// observe exit-thread-zero escalation without actually exiting).
func WithExitFunc(f func(status int)) Option {
	return func(o *Options) { o.OnExit = f }
}

// WithStackSizes overrides the synthetic task/signal stack sizes used for
// fault classification.
func WithStackSizes(task, signal uintptr) Option {
	return func(o *Options) { o.TaskStackSize = task; o.SignalStackSize = signal }
}
