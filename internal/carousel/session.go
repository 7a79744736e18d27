package carousel

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Zachkp/folio/internal/catalog"
	"github.com/Zachkp/folio/internal/device"
	"github.com/Zachkp/folio/internal/rotator"
	"github.com/Zachkp/folio/internal/store"
)

var (
	ErrUnknownAction = errors.New("unknown carousel action")
	ErrClosed        = errors.New("carousel session closed")
)

// Action is a command a client can send to a session.
type Action string

const (
	ActionNext       Action = "next"
	ActionPrev       Action = "prev"
	ActionGoTo       Action = "goto"
	ActionPause      Action = "pause"
	ActionResume     Action = "resume"
	ActionHoverStart Action = "hover-start"
	ActionHoverEnd   Action = "hover-end"
	ActionSwipeStart Action = "swipe-start"
	ActionSwipeEnd   Action = "swipe-end"
	ActionView       Action = "view"
)

// Command is one client request. Only the fields relevant to Action are read.
type Command struct {
	Action   Action  `json:"action"`
	Index    int     `json:"index,omitempty"`
	Offset   float64 `json:"offset,omitempty"`
	Velocity float64 `json:"velocity,omitempty"`
	View     string  `json:"view,omitempty"`
}

// Snapshot is what the render layer needs to draw a carousel.
type Snapshot struct {
	SessionID    string        `json:"session_id"`
	Kind         Kind          `json:"kind"`
	ProjectID    string        `json:"project_id,omitempty"`
	View         catalog.View  `json:"view,omitempty"`
	Autoplay     string        `json:"autoplay"`
	HoverPause   bool          `json:"hover_pause"`
	ReduceMotion bool          `json:"reduce_motion"`
	Intent       string        `json:"intent,omitempty"`
	State        rotator.State `json:"state"`
}

// Session is one mounted carousel: a rotator plus the view state around it.
// Closing the session closes the rotator, cancelling its timers.
type Session struct {
	ID        string
	Kind      Kind
	ProjectID string

	mgr    *Manager
	caps   device.Capabilities
	tuning catalog.Carousel

	mu       sync.Mutex
	view     catalog.View
	rot      *rotator.Rotator
	prev     rotator.State
	lastSeen time.Time
	watchers map[int]chan Snapshot
	nextW    int
	hovering bool
	// active is set by the first watcher or command; autoplay only runs
	// for sessions something is looking at.
	active   bool
	watched  bool
	closed   bool
}

// Do executes cmd and returns the resulting snapshot.
func (s *Session) Do(cmd Command) (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	s.lastSeen = s.mgr.clock.Now()
	s.activateLocked()
	rot := s.rot
	s.mu.Unlock()

	var intent rotator.Intent
	switch cmd.Action {
	case ActionNext:
		rot.Advance()
	case ActionPrev:
		rot.Retreat()
	case ActionGoTo:
		rot.GoTo(cmd.Index)
	case ActionPause:
		rot.Pause()
	case ActionResume:
		rot.Resume()
	case ActionHoverStart, ActionHoverEnd:
		s.hover(rot, cmd.Action == ActionHoverStart)
	case ActionSwipeStart:
		rot.Gesture().Begin()
	case ActionSwipeEnd:
		intent = rot.Gesture().End(cmd.Offset, cmd.Velocity)
	case ActionView:
		if err := s.setView(cmd.View); err != nil {
			return Snapshot{}, err
		}
	default:
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}

	snap := s.Snapshot()
	if cmd.Action == ActionSwipeEnd {
		snap.Intent = intent.Kind.String()
	}
	return snap, nil
}

// hover holds a pause from pointer enter until leave, for pointers that can
// hover. Touch devices ignore it. The hold is separate from drag and button
// pauses, so releasing a drag inside the carousel keeps it paused.
func (s *Session) hover(rot *rotator.Rotator, entering bool) {
	if !s.tuning.HoverPause || !s.caps.HoverPause() {
		return
	}
	s.mu.Lock()
	s.hovering = entering
	s.mu.Unlock()
	if entering {
		rot.Hold(rotator.PauseHover)
	} else {
		rot.Release(rotator.PauseHover)
	}
}

func (s *Session) activateLocked() {
	if s.active {
		return
	}
	s.active = true
	s.rot.Autoplay().Start()
}

// setView switches the gallery between desktop and mobile screenshots. The
// item count changes, so a fresh rotator starts at the first screenshot.
func (s *Session) setView(raw string) error {
	if s.Kind != KindGallery {
		return fmt.Errorf("%w: view on %s carousel", ErrUnknownAction, s.Kind)
	}
	view, err := catalog.ParseView(raw)
	if err != nil {
		return err
	}
	p, err := s.mgr.catalog.Project(s.ProjectID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	old := s.rot
	s.view = view
	s.rot = s.newRotatorLocked(len(p.Screenshots(view)))
	s.prev = s.rot.State()
	rot, hovering := s.rot, s.hovering
	s.mu.Unlock()

	old.Close()
	if hovering {
		rot.Hold(rotator.PauseHover)
	}
	s.mgr.record(s, "view:"+string(view), rotator.OriginUser, 0)
	s.publish(s.Snapshot())
	return nil
}

func (s *Session) newRotatorLocked(items int) *rotator.Rotator {
	r := rotator.New(rotatorConfig(s.tuning, items), s.mgr.clock)
	r.Subscribe(func(st rotator.State, origin rotator.Origin) {
		s.changed(r, st, origin)
	})
	if s.active {
		r.Autoplay().Start()
	}
	return r
}

// changed is the rotator listener. Notifications from a rotator that has
// since been replaced are dropped. Autoplay steps are published but not
// recorded; only visitor interactions are worth keeping.
func (s *Session) changed(r *rotator.Rotator, st rotator.State, origin rotator.Origin) {
	s.mu.Lock()
	if s.closed || s.rot != r {
		s.mu.Unlock()
		return
	}
	action := describe(s.prev, st)
	s.prev = st
	snap := s.snapshotLocked(st)
	s.mu.Unlock()

	if origin != rotator.OriginAutoplay {
		s.mgr.record(s, action, origin, st.ActiveIndex)
	}
	s.publish(snap)
}

func describe(prev, next rotator.State) string {
	switch {
	case !prev.Paused && next.Paused:
		return "pause"
	case prev.Paused && !next.Paused:
		return "resume"
	case prev.ActiveIndex == next.ActiveIndex:
		return "reset"
	}
	return next.Direction.String()
}

// Snapshot returns the current state of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	rot := s.rot
	s.mu.Unlock()
	st := rot.State()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(st)
}

func (s *Session) snapshotLocked(st rotator.State) Snapshot {
	return Snapshot{
		SessionID:    s.ID,
		Kind:         s.Kind,
		ProjectID:    s.ProjectID,
		View:         s.view,
		Autoplay:     s.rot.Autoplay().State().String(),
		HoverPause:   s.tuning.HoverPause && s.caps.HoverPause(),
		ReduceMotion: s.caps.ReduceMotion,
		State:        st,
	}
}

// Watch streams snapshots after every change. Slow watchers miss
// intermediate snapshots rather than blocking the carousel. The channel is
// closed when the session closes or cancel is called. The first watcher
// starts autoplay.
func (s *Session) Watch() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 16)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	s.activateLocked()
	s.watched = true
	id := s.nextW
	s.nextW++
	s.watchers[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if w, ok := s.watchers[id]; ok {
			delete(s.watchers, id)
			close(w)
		}
	}
}

func (s *Session) publish(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.watchers {
		select {
		case w <- snap:
		default:
		}
	}
}

// Touch marks the session as in use.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = s.mgr.clock.Now()
	s.mu.Unlock()
}

type usage struct {
	lastSeen time.Time
	watchers int
	// watched is false for sessions no client ever attached to, such as
	// pages fetched by crawlers.
	watched  bool
}

func (s *Session) usage() usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return usage{lastSeen: s.lastSeen, watchers: len(s.watchers), watched: s.watched}
}

// close is called by the Manager once the session is unregistered.
func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	rot := s.rot
	for id, w := range s.watchers {
		close(w)
		delete(s.watchers, id)
	}
	s.mu.Unlock()
	rot.Close()
}

// Closed reports whether the session has been closed.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func rotatorConfig(t catalog.Carousel, items int) rotator.Config {
	// policies are validated when content is parsed
	policy, _ := rotator.ParseGesturePolicy(t.Policy)
	return rotator.Config{
		ItemCount:        items,
		AutoplayInterval: time.Duration(t.AutoplayMS) * time.Millisecond,
		SwipeDistance:    t.SwipeDistance,
		SwipeVelocity:    t.SwipeVelocity,
		GesturePolicy:    policy,
		ResumeDelay:      time.Duration(t.ResumeDelayMS) * time.Millisecond,
		Clamp:            t.Clamp,
	}
}

func toEvent(s *Session, action string, origin rotator.Origin, index int) store.CarouselEvent {
	return store.CarouselEvent{
		SessionID:   s.ID,
		Kind:        string(s.Kind),
		Action:      action,
		Origin:      origin.String(),
		ActiveIndex: index,
	}
}
