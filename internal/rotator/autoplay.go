package rotator

import "time"

// SchedulerState is the lifecycle of an Autoplay scheduler.
type SchedulerState int

const (
	Stopped SchedulerState = iota
	Running
	Paused
)

func (s SchedulerState) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// Autoplay advances its Rotator at a fixed interval.
//
// A fire that lands while the rotator is paused is skipped and rescheduled
// rather than cancelled, so rotation picks up on its own once the pause is
// lifted. Manual navigation restarts the interval from zero. All fields are
// guarded by the owning Rotator's lock.
type Autoplay struct {
	r     *Rotator
	state SchedulerState
	timer Timer
	gen   uint64 // invalidates callbacks of replaced timers
}

// Start schedules the first fire one interval from now. It is a no-op when
// autoplay is disabled, the rotator has nothing to rotate, the scheduler is
// already started or the rotator is closed.
func (a *Autoplay) Start() {
	r := a.r
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || a.state != Stopped {
		return
	}
	if r.cfg.AutoplayInterval <= 0 || r.state.ItemCount <= 1 {
		return
	}
	a.state = Running
	if r.state.Paused {
		a.state = Paused
	}
	r.state.LastAdvance = r.clock.Now()
	a.scheduleLocked(r.cfg.AutoplayInterval)
}

// Stop cancels the pending fire. A stopped scheduler can be started again.
func (a *Autoplay) Stop() {
	a.r.mu.Lock()
	defer a.r.mu.Unlock()
	a.stopLocked()
}

// State reports the scheduler lifecycle state.
func (a *Autoplay) State() SchedulerState {
	a.r.mu.Lock()
	defer a.r.mu.Unlock()
	return a.state
}

func (a *Autoplay) stopLocked() {
	a.state = Stopped
	a.gen++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *Autoplay) scheduleLocked(d time.Duration) {
	if a.timer != nil {
		a.timer.Stop()
	}
	a.gen++
	gen := a.gen
	a.timer = a.r.clock.AfterFunc(d, func() { a.fire(gen) })
}

// restartLocked gives a manual step a full interval before the next fire.
func (a *Autoplay) restartLocked() {
	if a.state == Stopped {
		return
	}
	a.scheduleLocked(a.r.cfg.AutoplayInterval)
}

func (a *Autoplay) pausedLocked() {
	if a.state == Running {
		a.state = Paused
	}
}

// resumedLocked reschedules for the time left in the current interval,
// measured from the last advance. Once that interval has already elapsed a
// full interval is granted instead of firing at once.
func (a *Autoplay) resumedLocked() {
	if a.state != Paused {
		return
	}
	a.state = Running
	interval := a.r.cfg.AutoplayInterval
	remaining := interval - a.r.clock.Now().Sub(a.r.state.LastAdvance)
	if remaining <= 0 {
		remaining = interval
	}
	a.scheduleLocked(remaining)
}

func (a *Autoplay) fire(gen uint64) {
	r := a.r
	r.mu.Lock()
	if r.closed || a.state == Stopped || gen != a.gen {
		r.mu.Unlock()
		return
	}
	a.timer = nil
	interval := r.cfg.AutoplayInterval
	if r.state.Paused {
		a.scheduleLocked(interval)
		r.mu.Unlock()
		return
	}
	r.navigateLocked(1, OriginAutoplay, true)
	a.scheduleLocked(interval)
	st, ls := r.state, r.snapshotListenersLocked()
	r.mu.Unlock()
	notify(ls, st, OriginAutoplay)
}
