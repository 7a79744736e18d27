package carousel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/Zachkp/folio/internal/catalog"
	"github.com/Zachkp/folio/internal/device"
	"github.com/Zachkp/folio/internal/rotator"
	"github.com/Zachkp/folio/internal/rotator/rotatortest"
	"github.com/Zachkp/folio/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type memSink struct {
	mu     sync.Mutex
	events []store.CarouselEvent
}

func (s *memSink) RecordCarouselEvent(_ context.Context, e store.CarouselEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *memSink) all() []store.CarouselEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.CarouselEvent(nil), s.events...)
}

func newManager(t *testing.T, cfg Config) (*Manager, *rotatortest.Clock, *memSink) {
	t.Helper()
	clk := rotatortest.NewClock()
	sink := &memSink{}
	m := NewManager(catalog.New(catalog.Default()), sink, clk, zap.NewNop(), cfg)
	t.Cleanup(m.Shutdown)
	return m, clk, sink
}

var desktop = device.Capabilities{}

func TestProcessAutoplays(t *testing.T) {
	m, clk, _ := newManager(t, Config{})

	s, err := m.Open(KindProcess, Options{Device: desktop})
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Equal(t, 5, snap.State.ItemCount)
	assert.Equal(t, "stopped", snap.Autoplay, "nothing is watching yet")
	assert.True(t, snap.HoverPause)
	assert.Zero(t, clk.Pending())

	updates, cancel := s.Watch()
	defer cancel()
	assert.Equal(t, "running", s.Snapshot().Autoplay)

	clk.Advance(3 * time.Second)
	got := <-updates
	assert.Equal(t, 1, got.State.ActiveIndex)
	assert.Equal(t, s.ID, got.SessionID)
}

func TestCommands(t *testing.T) {
	m, _, _ := newManager(t, Config{})
	s, err := m.Open(KindProcess, Options{Device: desktop})
	require.NoError(t, err)

	snap, err := s.Do(Command{Action: ActionPrev})
	require.NoError(t, err)
	assert.Equal(t, 4, snap.State.ActiveIndex)
	assert.Equal(t, rotator.Backward, snap.State.Direction)

	snap, err = s.Do(Command{Action: ActionGoTo, Index: 7})
	require.NoError(t, err)
	assert.Equal(t, 2, snap.State.ActiveIndex)

	snap, err = s.Do(Command{Action: ActionSwipeStart})
	require.NoError(t, err)
	assert.True(t, snap.State.Paused)

	snap, err = s.Do(Command{Action: ActionSwipeEnd, Offset: -80})
	require.NoError(t, err)
	assert.Equal(t, "advance", snap.Intent)
	assert.Equal(t, 3, snap.State.ActiveIndex)
	assert.False(t, snap.State.Paused)

	_, err = s.Do(Command{Action: "spin"})
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = s.Do(Command{Action: ActionView, View: "mobile"})
	assert.ErrorIs(t, err, ErrUnknownAction, "only galleries switch views")
}

func TestFirstCommandStartsAutoplay(t *testing.T) {
	m, clk, _ := newManager(t, Config{})
	s, err := m.Open(KindServices, Options{Device: desktop})
	require.NoError(t, err)
	clk.Advance(time.Minute)
	assert.Zero(t, s.Snapshot().State.ActiveIndex)

	snap, err := s.Do(Command{Action: ActionNext})
	require.NoError(t, err)
	assert.Equal(t, "running", snap.Autoplay)
	clk.Advance(5 * time.Second)
	assert.Equal(t, 2, s.Snapshot().State.ActiveIndex)
}

func TestDragInsideHoveredCarouselStaysPaused(t *testing.T) {
	m, clk, _ := newManager(t, Config{})
	s, err := m.Open(KindProcess, Options{Device: desktop})
	require.NoError(t, err)

	_, err = s.Do(Command{Action: ActionHoverStart})
	require.NoError(t, err)
	_, err = s.Do(Command{Action: ActionSwipeStart})
	require.NoError(t, err)
	snap, err := s.Do(Command{Action: ActionSwipeEnd, Offset: -80})
	require.NoError(t, err)
	assert.Equal(t, 1, snap.State.ActiveIndex)
	assert.True(t, snap.State.Paused, "pointer never left")

	clk.Advance(3 * time.Second)
	assert.Equal(t, 1, s.Snapshot().State.ActiveIndex)

	snap, err = s.Do(Command{Action: ActionHoverEnd})
	require.NoError(t, err)
	assert.False(t, snap.State.Paused)
	clk.Advance(3 * time.Second)
	assert.Equal(t, 2, s.Snapshot().State.ActiveIndex)
}

func TestHoverPausesOnDesktopOnly(t *testing.T) {
	m, _, _ := newManager(t, Config{})

	desk, err := m.Open(KindProcess, Options{Device: desktop})
	require.NoError(t, err)
	snap, err := desk.Do(Command{Action: ActionHoverStart})
	require.NoError(t, err)
	assert.True(t, snap.State.Paused)
	assert.Equal(t, "paused", snap.Autoplay)
	snap, err = desk.Do(Command{Action: ActionHoverEnd})
	require.NoError(t, err)
	assert.False(t, snap.State.Paused)

	phone, err := m.Open(KindProcess, Options{Device: device.Capabilities{Mobile: true, Touch: true}})
	require.NoError(t, err)
	snap, err = phone.Do(Command{Action: ActionHoverStart})
	require.NoError(t, err)
	assert.False(t, snap.State.Paused)
	assert.False(t, snap.HoverPause)
}

func TestGalleryViewToggleResetsIndex(t *testing.T) {
	m, clk, _ := newManager(t, Config{})

	s, err := m.Open(KindGallery, Options{ProjectID: "suryas-solar"})
	require.NoError(t, err)
	snap := s.Snapshot()
	assert.Equal(t, catalog.Desktop, snap.View)
	assert.Equal(t, 8, snap.State.ItemCount)
	assert.Equal(t, "stopped", snap.Autoplay)

	snap, err = s.Do(Command{Action: ActionGoTo, Index: -1})
	require.NoError(t, err)
	assert.Equal(t, 7, snap.State.ActiveIndex)

	snap, err = s.Do(Command{Action: ActionView, View: "mobile"})
	require.NoError(t, err)
	assert.Equal(t, catalog.Mobile, snap.View)
	assert.Equal(t, 0, snap.State.ActiveIndex)
	assert.Equal(t, 5, snap.State.ItemCount)

	_, err = s.Do(Command{Action: ActionView, View: "watch"})
	assert.ErrorIs(t, err, catalog.ErrUnknownView)
	assert.Zero(t, clk.Pending())
}

func TestSingleScreenshotGalleryIsInert(t *testing.T) {
	m, _, _ := newManager(t, Config{})
	s, err := m.Open(KindGallery, Options{ProjectID: "harry-designs"})
	require.NoError(t, err)

	snap, err := s.Do(Command{Action: ActionNext})
	require.NoError(t, err)
	assert.Equal(t, 0, snap.State.ActiveIndex)
}

func TestOpenErrors(t *testing.T) {
	m, _, _ := newManager(t, Config{MaxSessions: 1})

	_, err := m.Open("wheel", Options{})
	assert.ErrorIs(t, err, ErrUnknownKind)
	_, err = m.Open(KindGallery, Options{ProjectID: "missing"})
	assert.ErrorIs(t, err, catalog.ErrProjectNotFound)
	_, err = m.Open(KindGallery, Options{ProjectID: "gokul-oils", View: "tv"})
	assert.ErrorIs(t, err, catalog.ErrUnknownView)

	first, err := m.Open(KindServices, Options{})
	require.NoError(t, err)
	second, err := m.Open(KindServices, Options{})
	require.NoError(t, err, "unwatched sessions make room")
	assert.True(t, first.Closed())

	_, cancel := second.Watch()
	defer cancel()
	_, err = m.Open(KindServices, Options{})
	assert.ErrorIs(t, err, ErrTooManySessions)
	assert.False(t, second.Closed())
}

func TestUnwatchedPageLoadsDoNotExhaustSessions(t *testing.T) {
	m, clk, _ := newManager(t, Config{MaxSessions: 4})

	var oldest *Session
	for i := 0; i < 50; i++ {
		s, err := m.Open(KindProcess, Options{Device: desktop})
		require.NoError(t, err)
		if i == 0 {
			oldest = s
		}
		clk.Advance(time.Second)
	}

	assert.Equal(t, 4, m.Len())
	assert.True(t, oldest.Closed())
	assert.Zero(t, clk.Pending(), "no autoplay timers for pages nobody watches")
}

func TestEvictionPrefersLeastRecentlyUsed(t *testing.T) {
	m, clk, _ := newManager(t, Config{MaxSessions: 2})
	a, err := m.Open(KindServices, Options{})
	require.NoError(t, err)
	clk.Advance(time.Second)
	b, err := m.Open(KindServices, Options{})
	require.NoError(t, err)
	clk.Advance(time.Second)
	a.Touch()

	_, err = m.Open(KindServices, Options{})
	require.NoError(t, err)
	assert.False(t, a.Closed())
	assert.True(t, b.Closed())
}

func TestCloseCancelsTimers(t *testing.T) {
	m, clk, _ := newManager(t, Config{})
	s, err := m.Open(KindProcess, Options{Device: desktop})
	require.NoError(t, err)
	updates, _ := s.Watch()
	require.Equal(t, 1, clk.Pending())

	m.Close(s.ID)

	assert.Zero(t, clk.Pending())
	assert.True(t, s.Closed())
	_, open := <-updates
	assert.False(t, open)
	_, err = m.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = s.Do(Command{Action: ActionNext})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSweepClosesIdleUnwatchedSessions(t *testing.T) {
	m, clk, _ := newManager(t, Config{IdleTimeout: time.Minute})

	idle, err := m.Open(KindGallery, Options{ProjectID: "gokul-oils"})
	require.NoError(t, err)
	watched, err := m.Open(KindProcess, Options{Device: desktop})
	require.NoError(t, err)
	_, cancel := watched.Watch()
	defer cancel()
	busy, err := m.Open(KindGallery, Options{ProjectID: "gokul-oils"})
	require.NoError(t, err)

	clk.Advance(50 * time.Second)
	busy.Touch()
	clk.Advance(20 * time.Second)

	assert.Equal(t, 1, m.Sweep())
	assert.True(t, idle.Closed())
	assert.False(t, watched.Closed())
	assert.False(t, busy.Closed())
	assert.Equal(t, 2, m.Len())
}

func TestSweepDropsNeverWatchedSessionsSooner(t *testing.T) {
	m, clk, _ := newManager(t, Config{IdleTimeout: 30 * time.Minute, UnwatchedTimeout: time.Minute})

	crawled, err := m.Open(KindProcess, Options{Device: desktop})
	require.NoError(t, err)
	viewed, err := m.Open(KindProcess, Options{Device: desktop})
	require.NoError(t, err)
	_, cancel := viewed.Watch()
	cancel()

	clk.Advance(61 * time.Second)
	assert.Equal(t, 1, m.Sweep())
	assert.True(t, crawled.Closed())
	assert.False(t, viewed.Closed())

	clk.Advance(30 * time.Minute)
	assert.Equal(t, 1, m.Sweep())
	assert.True(t, viewed.Closed())
}

func TestShutdownRefusesNewSessions(t *testing.T) {
	m, clk, _ := newManager(t, Config{})
	s, err := m.Open(KindProcess, Options{})
	require.NoError(t, err)

	m.Shutdown()

	assert.True(t, s.Closed())
	assert.Zero(t, clk.Pending())
	_, err = m.Open(KindProcess, Options{})
	assert.ErrorIs(t, err, ErrManagerShutdown)
}

func TestRunRecordsEvents(t *testing.T) {
	m, clk, sink := newManager(t, Config{})
	s, err := m.Open(KindProcess, Options{Device: desktop})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	_, err = s.Do(Command{Action: ActionNext})
	require.NoError(t, err)
	_, err = s.Do(Command{Action: ActionPause})
	require.NoError(t, err)
	_, err = s.Do(Command{Action: ActionResume})
	require.NoError(t, err)
	clk.Advance(3 * time.Second)
	assert.Equal(t, 2, s.Snapshot().State.ActiveIndex, "autoplay stepped once")

	cancel()
	require.NoError(t, <-done)

	var got []string
	for _, e := range sink.all() {
		got = append(got, e.Action+"/"+e.Origin)
		assert.Equal(t, "process", e.Kind)
		assert.Equal(t, s.ID, e.SessionID)
	}
	assert.Equal(t, []string{"forward/user", "pause/user", "resume/user"}, got, "autoplay steps are not recorded")
	assert.True(t, s.Closed(), "Run shuts the manager down on exit")
}

func TestUnwatchedSessionsRecordNothing(t *testing.T) {
	m, clk, sink := newManager(t, Config{})
	_, err := m.Open(KindProcess, Options{Device: desktop})
	require.NoError(t, err)
	watched, err := m.Open(KindServices, Options{Device: desktop})
	require.NoError(t, err)
	_, stop := watched.Watch()
	defer stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	clk.Advance(29 * time.Minute)
	assert.Equal(t, 1, clk.Pending(), "only the watched carousel runs a timer")
	cancel()
	require.NoError(t, <-done)

	assert.Empty(t, sink.all())
}
