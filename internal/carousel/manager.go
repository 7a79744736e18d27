// Package carousel hosts live carousels on the server. Each page view that
// mounts a carousel opens a Session; the session owns one rotator and is
// closed when the view goes away (its WebSocket disconnects or it idles out),
// which cancels every timer the rotator holds.
package carousel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Zachkp/folio/internal/catalog"
	"github.com/Zachkp/folio/internal/device"
	"github.com/Zachkp/folio/internal/rotator"
	"github.com/Zachkp/folio/internal/store"
)

var (
	ErrUnknownKind     = errors.New("unknown carousel kind")
	ErrSessionNotFound = errors.New("carousel session not found")
	ErrTooManySessions = errors.New("too many carousel sessions")
	ErrManagerShutdown = errors.New("carousel manager shut down")
)

// Kind names a carousel on the site.
type Kind string

const (
	KindProcess  Kind = "process"
	KindServices Kind = "services"
	KindGallery  Kind = "gallery"
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindProcess, KindServices, KindGallery:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// defaultTuning applies when the content file has no carousels entry.
var defaultTuning = map[Kind]catalog.Carousel{
	KindProcess:  {AutoplayMS: 3000, SwipeDistance: 50, SwipeVelocity: 500, Policy: "distance-or-velocity", HoverPause: true},
	KindServices: {AutoplayMS: 5000, SwipeDistance: 50, SwipeVelocity: 10000, Policy: "confidence", HoverPause: true},
	KindGallery:  {SwipeDistance: 50, Policy: "distance"},
}

// EventSink persists carousel interactions.
type EventSink interface {
	RecordCarouselEvent(ctx context.Context, e store.CarouselEvent) error
}

// Options configure a new session.
type Options struct {
	Device    device.Capabilities
	ProjectID string // gallery only
	View      string // gallery only; defaults to desktop
}

type Config struct {
	// IdleTimeout closes unwatched sessions that have not been used for this
	// long.
	IdleTimeout      time.Duration
	// UnwatchedTimeout is the shorter idle limit for sessions no client ever
	// attached to. It never exceeds IdleTimeout.
	UnwatchedTimeout time.Duration
	// MaxSessions caps live sessions. At the cap the least recently used
	// unwatched session is evicted to make room.
	MaxSessions      int
}

// Manager owns every live session.
type Manager struct {
	catalog *catalog.Catalog
	clock   rotator.Clock
	sink    EventSink
	logger  *zap.Logger
	cfg     Config

	events chan store.CarouselEvent

	mu       sync.Mutex
	sessions map[string]*Session
	shutdown bool
}

// NewManager creates a manager. sink may be nil; clock nil means the system
// clock.
func NewManager(c *catalog.Catalog, sink EventSink, clock rotator.Clock, logger *zap.Logger, cfg Config) *Manager {
	if clock == nil {
		clock = rotator.SystemClock()
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	if cfg.UnwatchedTimeout <= 0 {
		cfg.UnwatchedTimeout = 2 * time.Minute
	}
	cfg.UnwatchedTimeout = min(cfg.UnwatchedTimeout, cfg.IdleTimeout)
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 10000
	}
	return &Manager{
		catalog:  c,
		clock:    clock,
		sink:     sink,
		logger:   logger,
		cfg:      cfg,
		events:   make(chan store.CarouselEvent, 256),
		sessions: make(map[string]*Session),
	}
}

// Open mounts a new carousel of the given kind.
func (m *Manager) Open(kind Kind, opts Options) (*Session, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}

	s := &Session{
		ID:       uuid.NewString(),
		Kind:     kind,
		mgr:      m,
		caps:     opts.Device,
		tuning:   m.tuning(kind),
		lastSeen: m.clock.Now(),
		watchers: make(map[int]chan Snapshot),
	}

	site := m.catalog.Site()
	var items int
	switch kind {
	case KindProcess:
		items = len(site.Process)
	case KindServices:
		items = len(site.Services)
	case KindGallery:
		view, err := catalog.ParseView(opts.View)
		if err != nil {
			return nil, err
		}
		p, err := m.catalog.Project(opts.ProjectID)
		if err != nil {
			return nil, err
		}
		s.ProjectID = p.ID
		s.view = view
		items = len(p.Screenshots(view))
	}

	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil, ErrManagerShutdown
	}
	var evicted *Session
	if len(m.sessions) >= m.cfg.MaxSessions {
		evicted = m.oldestUnwatchedLocked()
		if evicted == nil {
			m.mu.Unlock()
			return nil, ErrTooManySessions
		}
		delete(m.sessions, evicted.ID)
	}

	s.mu.Lock()
	s.rot = s.newRotatorLocked(items)
	s.prev = s.rot.State()
	s.mu.Unlock()

	m.sessions[s.ID] = s
	m.mu.Unlock()

	if evicted != nil {
		evicted.close()
		m.logger.Debug("carousel evicted", zap.String("session", evicted.ID))
	}
	m.logger.Debug("carousel opened",
		zap.String("session", s.ID),
		zap.String("kind", string(kind)),
		zap.Int("items", items))
	return s, nil
}

func (m *Manager) oldestUnwatchedLocked() *Session {
	var (
		oldest *Session
		at     time.Time
	)
	for _, s := range m.sessions {
		u := s.usage()
		if u.watchers > 0 {
			continue
		}
		if oldest == nil || u.lastSeen.Before(at) {
			oldest, at = s, u.lastSeen
		}
	}
	return oldest
}

func (m *Manager) tuning(kind Kind) catalog.Carousel {
	if t, ok := m.catalog.Carousel(string(kind)); ok {
		return t
	}
	return defaultTuning[kind]
}

// Get returns a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Close unmounts a session. Closing an unknown id is not an error.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.close()
		m.logger.Debug("carousel closed", zap.String("session", id))
	}
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep closes sessions that are unwatched and idle past the timeout, and
// returns how many were closed. Sessions that were never watched use the
// shorter UnwatchedTimeout.
func (m *Manager) Sweep() int {
	now := m.clock.Now()
	idle := now.Add(-m.cfg.IdleTimeout)
	fresh := now.Add(-m.cfg.UnwatchedTimeout)

	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		u := s.usage()
		cutoff := idle
		if !u.watched {
			cutoff = fresh
		}
		if u.watchers == 0 && u.lastSeen.Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.close()
	}
	if len(stale) > 0 {
		m.logger.Debug("idle carousels swept", zap.Int("closed", len(stale)))
	}
	return len(stale)
}

// Shutdown closes every session and refuses new ones.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.shutdown = true
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range all {
		s.close()
	}
}

// Run sweeps idle sessions and writes interaction events to the sink until
// ctx is cancelled, then shuts the manager down.
func (m *Manager) Run(ctx context.Context) error {
	every := max(m.cfg.UnwatchedTimeout/4, time.Second)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	defer m.Shutdown()

	for {
		select {
		case <-ctx.Done():
			m.drain()
			return nil
		case <-ticker.C:
			m.Sweep()
		case e := <-m.events:
			m.write(ctx, e)
		}
	}
}

func (m *Manager) drain() {
	for {
		select {
		case e := <-m.events:
			m.write(context.Background(), e)
		default:
			return
		}
	}
}

func (m *Manager) write(ctx context.Context, e store.CarouselEvent) {
	if err := m.sink.RecordCarouselEvent(ctx, e); err != nil {
		m.logger.Warn("record carousel event", zap.String("session", e.SessionID), zap.Error(err))
	}
}

// record queues an interaction for the sink. Events are dropped when the
// queue is full so carousels never wait on storage.
func (m *Manager) record(s *Session, action string, origin rotator.Origin, index int) {
	if m.sink == nil {
		return
	}
	e := toEvent(s, action, origin, index)
	e.At = m.clock.Now()
	select {
	case m.events <- e:
	default:
		m.logger.Debug("carousel event dropped", zap.String("session", s.ID))
	}
}
