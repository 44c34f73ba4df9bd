package app

import (
	"sync"
	"time"
)

// TimerDriver owns the per-session countdown goroutine. The countdown
// itself lives in Session.Tick, which only moves while the session is
// answering, so review screens never tick in the background. The driver
// exits on its own once the session reaches a terminal state, and Stop
// must be called on teardown paths (abandonment) so no ticker leaks.
type TimerDriver struct {
	session  *Session
	interval time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// StartTimer launches the countdown for a session. interval is one second
// in production; tests pass something shorter or drive Tick directly.
func StartTimer(session *Session, interval time.Duration) *TimerDriver {
	d := &TimerDriver{
		session:  session,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *TimerDriver) run() {
	defer close(d.done)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			state, _ := d.session.Tick()
			if state == StateFinished || state == StateSubmitting || state == StateDone {
				return
			}
		}
	}
}

// Stop cancels the countdown and waits for the goroutine to exit. Safe to
// call more than once.
func (d *TimerDriver) Stop() {
	d.stopOnce.Do(func() { close(d.stop) })
	<-d.done
}
