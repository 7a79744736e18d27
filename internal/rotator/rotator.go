// Package rotator implements the carousel state machine shared by the process
// wheel, the services cards and the project screenshot gallery.
//
// A Rotator tracks which of N items is active. Navigation requests arrive from
// three sources (the autoplay timer, indicator clicks and drag gestures) and
// are serialized through the Rotator's lock, so a timer fire racing a manual
// step can never produce a visible double advance.
package rotator

import (
	"slices"
	"sync"
	"time"
)

// Direction records which way the most recent navigation moved.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// MarshalText renders the direction as "forward" or "backward" in JSON.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Origin identifies what caused a state change.
type Origin int

const (
	OriginUser Origin = iota
	OriginGesture
	OriginAutoplay
)

func (o Origin) String() string {
	switch o {
	case OriginGesture:
		return "gesture"
	case OriginAutoplay:
		return "autoplay"
	default:
		return "user"
	}
}

// Config is fixed for the lifetime of a Rotator.
type Config struct {
	ItemCount int

	// AutoplayInterval of zero disables autoplay.
	AutoplayInterval time.Duration

	SwipeDistance float64
	SwipeVelocity float64
	GesturePolicy GesturePolicy

	// ResumeDelay is the grace period between a gesture ending and autoplay
	// resuming.
	ResumeDelay time.Duration

	// Clamp stops navigation at the first and last item instead of wrapping.
	Clamp bool
}

// State is a read-only snapshot of a Rotator.
type State struct {
	ActiveIndex int       `json:"active_index"`
	ItemCount   int       `json:"item_count"`
	Direction   Direction `json:"direction"`
	Paused      bool      `json:"paused"`
	LastAdvance time.Time `json:"last_advance"`
}

// Listener receives every state change together with its origin. Listeners
// are invoked outside the Rotator's lock, in subscription order.
type Listener func(State, Origin)

// Rotator is the single source of truth for the active item of a carousel.
type Rotator struct {
	cfg   Config
	clock Clock

	mu        sync.Mutex
	state     State
	autoplay  *Autoplay
	resume    Timer // pending gesture grace resume
	holds     PauseReason
	listeners map[int]Listener
	nextID    int
	closed    bool
}

// New creates a Rotator at index 0. A nil clock means SystemClock.
func New(cfg Config, clock Clock) *Rotator {
	if clock == nil {
		clock = SystemClock()
	}
	r := &Rotator{
		cfg:       cfg,
		clock:     clock,
		listeners: make(map[int]Listener),
	}
	r.state = State{
		ItemCount:   max(cfg.ItemCount, 0),
		Direction:   Forward,
		LastAdvance: clock.Now(),
	}
	r.autoplay = &Autoplay{r: r}
	return r
}

// Config returns the configuration the Rotator was built with.
func (r *Rotator) Config() Config { return r.cfg }

// Autoplay returns the Rotator's scheduler. It starts stopped.
func (r *Rotator) Autoplay() *Autoplay { return r.autoplay }

// State returns a snapshot of the current state.
func (r *Rotator) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Subscribe registers l for state changes. The returned func unregisters it.
func (r *Rotator) Subscribe(l Listener) (cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = l
	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// GoTo makes index active. Any integer is accepted and normalized.
func (r *Rotator) GoTo(index int) {
	r.navigate(index, OriginUser, false)
}

// Advance moves to the next item.
func (r *Rotator) Advance() {
	r.navigate(1, OriginUser, true)
}

// Retreat moves to the previous item.
func (r *Rotator) Retreat() {
	r.navigate(-1, OriginUser, true)
}

// Apply executes a navigation intent. IntentNone is ignored.
func (r *Rotator) Apply(in Intent) {
	r.apply(in, OriginUser)
}

func (r *Rotator) apply(in Intent, origin Origin) {
	switch in.Kind {
	case IntentAdvance:
		r.navigate(1, origin, true)
	case IntentRetreat:
		r.navigate(-1, origin, true)
	case IntentGoTo:
		r.navigate(in.Index, origin, false)
	}
}

// PauseReason is one independent hold on autoplay. The Rotator stays paused
// while any reason is held, so a drag ending does not lift a hover pause.
type PauseReason uint8

const (
	PauseUser PauseReason = 1 << iota
	PauseGesture
	PauseHover
)

// Pause suppresses autoplay until Resume.
func (r *Rotator) Pause() { r.hold(PauseUser, OriginUser) }

// Resume lifts a Pause. Autoplay continues from the time remaining until the
// next fire, never with an immediate advance. Other holds still apply.
func (r *Rotator) Resume() { r.release(PauseUser, OriginUser) }

// Hold pauses for reason. Holding a reason twice is a no-op.
func (r *Rotator) Hold(reason PauseReason) { r.hold(reason, OriginUser) }

// Release drops reason; autoplay resumes once no reason is held.
func (r *Rotator) Release(reason PauseReason) { r.release(reason, OriginUser) }

func (r *Rotator) hold(reason PauseReason, origin Origin) {
	r.mu.Lock()
	if r.closed || r.holds&reason != 0 {
		r.mu.Unlock()
		return
	}
	r.holds |= reason
	if r.state.Paused {
		r.mu.Unlock()
		return
	}
	r.state.Paused = true
	r.autoplay.pausedLocked()
	st, ls := r.state, r.snapshotListenersLocked()
	r.mu.Unlock()
	notify(ls, st, origin)
}

func (r *Rotator) release(reason PauseReason, origin Origin) {
	r.mu.Lock()
	if r.closed || r.holds&reason == 0 {
		r.mu.Unlock()
		return
	}
	r.holds &^= reason
	if r.holds != 0 {
		r.mu.Unlock()
		return
	}
	r.state.Paused = false
	r.autoplay.resumedLocked()
	st, ls := r.state, r.snapshotListenersLocked()
	r.mu.Unlock()
	notify(ls, st, origin)
}

// Close releases the Rotator: the autoplay timer and any pending gesture
// resume are cancelled and listeners are dropped. Close is idempotent.
func (r *Rotator) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.autoplay.stopLocked()
	if r.resume != nil {
		r.resume.Stop()
		r.resume = nil
	}
	clear(r.listeners)
}

// Closed reports whether Close has been called.
func (r *Rotator) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// navigate applies a step (relative) or a jump (absolute) and notifies.
func (r *Rotator) navigate(n int, origin Origin, relative bool) {
	r.mu.Lock()
	changed := r.navigateLocked(n, origin, relative)
	if !changed {
		r.mu.Unlock()
		return
	}
	st, ls := r.state, r.snapshotListenersLocked()
	r.mu.Unlock()
	notify(ls, st, origin)
}

func (r *Rotator) navigateLocked(n int, origin Origin, relative bool) bool {
	count := r.state.ItemCount
	if r.closed || count <= 1 {
		return false
	}
	old := r.state.ActiveIndex
	requested := n
	if relative {
		requested = old + n
	}

	var next int
	if r.cfg.Clamp {
		next = min(max(requested, 0), count-1)
	} else {
		next = Normalize(requested, count)
	}

	if dir, ok := direction(old, next, requested, count, r.cfg.Clamp); ok {
		r.state.Direction = dir
	}
	r.state.ActiveIndex = next
	r.state.LastAdvance = r.clock.Now()

	if origin != OriginAutoplay {
		r.autoplay.restartLocked()
	}
	return true
}

func (r *Rotator) snapshotListenersLocked() []Listener {
	if len(r.listeners) == 0 {
		return nil
	}
	ids := make([]int, 0, len(r.listeners))
	for id := range r.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	ls := make([]Listener, len(ids))
	for i, id := range ids {
		ls[i] = r.listeners[id]
	}
	return ls
}

func notify(ls []Listener, st State, origin Origin) {
	for _, l := range ls {
		l(st, origin)
	}
}

// Normalize maps any integer onto [0, count) using a true modulo, so negative
// indices wrap from the end. It returns 0 when count <= 0.
func Normalize(index, count int) int {
	if count <= 0 {
		return 0
	}
	return ((index % count) + count) % count
}

// direction picks the shortest signed path from old to next. Equal distances
// (two items, or the exact opposite item) follow the sign of the raw request.
// ok is false when there is no movement to describe.
func direction(old, next, requested, count int, clamp bool) (Direction, bool) {
	if clamp {
		switch {
		case next > old:
			return Forward, true
		case next < old:
			return Backward, true
		}
		return Forward, false
	}
	fwd := Normalize(next-old, count)
	if fwd == 0 {
		return Forward, false
	}
	back := count - fwd
	switch {
	case fwd < back:
		return Forward, true
	case back < fwd:
		return Backward, true
	case requested < old:
		return Backward, true
	default:
		return Forward, true
	}
}
