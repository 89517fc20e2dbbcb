package safepoint

import "golang.org/x/sys/unix"

// initWakeFD creates the eventfd used to wake an io_wait thread parked in
// a blocking read, grounded on the pack's wakeup_linux.go
// (createWakeFd/drainWakeUpPipe) — the same primitive, reused here for
// wake_event_loop (§6).
func (rt *Runtime) initWakeFD() error {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return err
	}
	rt.wakeFD = fd
	return nil
}

// wakeEventLoop posts to the wake eventfd, the Go-native form of
// wake_event_loop(): any goroutine blocked reading rt.wakeFD observes it
// immediately rather than waiting for a poll.
func (rt *Runtime) wakeEventLoop() {
	if rt.wakeFD < 0 {
		return
	}
	buf := make([]byte, 8)
	buf[0] = 1
	_, _ = unix.Write(rt.wakeFD, buf)
}

// drainWakeFD clears a pending wake, mirroring drainWakeUpPipe.
func (rt *Runtime) drainWakeFD() {
	if rt.wakeFD < 0 {
		return
	}
	buf := make([]byte, 8)
	_, _ = unix.Read(rt.wakeFD, buf)
}

func (rt *Runtime) closeWakeFD() {
	if rt.wakeFD < 0 {
		return
	}
	_ = unix.Close(rt.wakeFD)
	rt.wakeFD = -1
}
