package rotator_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zachkp/folio/internal/rotator"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		policy   rotator.GesturePolicy
		offset   float64
		velocity float64
		want     rotator.IntentKind
	}{
		{"distance left swipe", rotator.DistanceOnly, -80, 0, rotator.IntentAdvance},
		{"distance short drag", rotator.DistanceOnly, -20, 0, rotator.IntentNone},
		{"distance right swipe", rotator.DistanceOnly, 120, 0, rotator.IntentRetreat},
		{"distance ignores flick", rotator.DistanceOnly, -20, 4000, rotator.IntentNone},
		{"exact threshold snaps back", rotator.DistanceOnly, 50, 0, rotator.IntentNone},
		{"flick counts with velocity", rotator.DistanceOrVelocity, -10, -800, rotator.IntentAdvance},
		{"slow short drag", rotator.DistanceOrVelocity, 10, 100, rotator.IntentNone},
		{"zero offset uses velocity sign", rotator.DistanceOrVelocity, 0, 900, rotator.IntentRetreat},
		{"zero offset with leftward flick advances", rotator.DistanceOrVelocity, 0, -900, rotator.IntentAdvance},
		{"confidence product", rotator.Confidence, -20, 30, rotator.IntentAdvance},
		{"confidence too low", rotator.Confidence, -20, 10, rotator.IntentNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// velocity threshold 500 for the velocity policy, 500 px²/s for confidence
			got := rotator.Classify(tt.policy, 50, 500, tt.offset, tt.velocity)
			assert.Equal(t, tt.want, got.Kind)
		})
	}
}

func TestGestureSwipeAdvancesOnce(t *testing.T) {
	r, _ := newRotator(t, rotator.Config{ItemCount: 5, SwipeDistance: 50})
	steps := 0
	r.Subscribe(func(_ rotator.State, o rotator.Origin) {
		if o == rotator.OriginGesture {
			steps++
		}
	})

	g := r.Gesture()
	g.Begin()
	in := g.End(-80, 0)

	assert.Equal(t, rotator.IntentAdvance, in.Kind)
	assert.Equal(t, 1, r.State().ActiveIndex)
	// one navigation plus the resume
	assert.Equal(t, 2, steps)

	g.Begin()
	in = g.End(-20, 0)
	assert.Equal(t, rotator.IntentNone, in.Kind)
	assert.Equal(t, 1, r.State().ActiveIndex)
}

func TestGesturePausesAndResumesImmediately(t *testing.T) {
	r, _ := newRotator(t, rotator.Config{ItemCount: 5, SwipeDistance: 50, AutoplayInterval: time.Second})
	r.Autoplay().Start()
	g := r.Gesture()

	g.Begin()
	require.True(t, r.State().Paused)
	assert.Equal(t, rotator.Paused, r.Autoplay().State())

	g.End(90, 0)
	assert.False(t, r.State().Paused)
	assert.Equal(t, 4, r.State().ActiveIndex)
	assert.Equal(t, rotator.Backward, r.State().Direction)
}

func TestGestureResumeDelay(t *testing.T) {
	r, clk := newRotator(t, rotator.Config{
		ItemCount:        5,
		SwipeDistance:    50,
		AutoplayInterval: time.Second,
		ResumeDelay:      300 * time.Millisecond,
	})
	fires := countAdvances(r)
	r.Autoplay().Start()
	g := r.Gesture()

	clk.Advance(800 * time.Millisecond)
	g.Begin()
	g.End(-100, 0)
	assert.True(t, r.State().Paused)

	clk.Advance(299 * time.Millisecond)
	assert.True(t, r.State().Paused)
	clk.Advance(time.Millisecond)
	assert.False(t, r.State().Paused)

	// the swipe at 800ms restarted the interval: next fire at 1800ms
	clk.Advance(699 * time.Millisecond)
	assert.Zero(t, fires.Load())
	clk.Advance(time.Millisecond)
	assert.EqualValues(t, 1, fires.Load())
	assert.Equal(t, 2, r.State().ActiveIndex)
}

func TestNewGestureCancelsPendingResume(t *testing.T) {
	r, clk := newRotator(t, rotator.Config{ItemCount: 5, SwipeDistance: 50, ResumeDelay: 100 * time.Millisecond})
	g := r.Gesture()

	g.Begin()
	g.End(-100, 0)
	clk.Advance(50 * time.Millisecond)
	g.Begin()
	clk.Advance(500 * time.Millisecond)

	assert.True(t, r.State().Paused, "second drag still in progress")
}

func TestGestureEndKeepsHoverPause(t *testing.T) {
	r, clk := newRotator(t, rotator.Config{ItemCount: 5, SwipeDistance: 50, AutoplayInterval: 3 * time.Second})
	fires := countAdvances(r)
	r.Autoplay().Start()
	g := r.Gesture()

	r.Hold(rotator.PauseHover)
	g.Begin()
	g.End(-80, 0)

	assert.Equal(t, 1, r.State().ActiveIndex)
	assert.True(t, r.State().Paused, "pointer is still over the carousel")
	clk.Advance(10 * time.Second)
	assert.Zero(t, fires.Load())

	r.Release(rotator.PauseHover)
	assert.False(t, r.State().Paused)
	clk.Advance(3 * time.Second)
	assert.EqualValues(t, 1, fires.Load())
}

func TestPauseReasonsAreIndependent(t *testing.T) {
	r, _ := newRotator(t, rotator.Config{ItemCount: 3})
	var flips int
	r.Subscribe(func(rotator.State, rotator.Origin) { flips++ })

	r.Pause()
	r.Hold(rotator.PauseHover)
	r.Hold(rotator.PauseHover)
	assert.Equal(t, 1, flips)

	r.Resume()
	assert.True(t, r.State().Paused)
	r.Release(rotator.PauseGesture)
	assert.True(t, r.State().Paused, "releasing a reason that was never held")
	r.Release(rotator.PauseHover)
	assert.False(t, r.State().Paused)
	assert.Equal(t, 2, flips)
}

func TestCloseCancelsPendingResume(t *testing.T) {
	r, clk := newRotator(t, rotator.Config{ItemCount: 5, SwipeDistance: 50, ResumeDelay: 100 * time.Millisecond})
	g := r.Gesture()
	g.Begin()
	g.End(-100, 0)

	r.Close()

	assert.Zero(t, clk.Pending())
}

func TestParseGesturePolicy(t *testing.T) {
	for _, p := range []rotator.GesturePolicy{rotator.DistanceOnly, rotator.DistanceOrVelocity, rotator.Confidence} {
		got, err := rotator.ParseGesturePolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := rotator.ParseGesturePolicy("magnetic")
	assert.Error(t, err)
}
