package rotator

import (
	"fmt"
	"math"
)

// IntentKind is a discrete navigation request, independent of its origin.
type IntentKind int

const (
	IntentNone IntentKind = iota
	IntentAdvance
	IntentRetreat
	IntentGoTo
)

func (k IntentKind) String() string {
	switch k {
	case IntentAdvance:
		return "advance"
	case IntentRetreat:
		return "retreat"
	case IntentGoTo:
		return "goto"
	default:
		return "none"
	}
}

// Intent is a navigation request. Index is only read for IntentGoTo.
type Intent struct {
	Kind  IntentKind
	Index int
}

// GesturePolicy decides when a drag release counts as a swipe.
type GesturePolicy int

const (
	// DistanceOnly: |offset| > distance.
	DistanceOnly GesturePolicy = iota
	// DistanceOrVelocity: |offset| > distance or |velocity| > velocity.
	DistanceOrVelocity
	// Confidence: |offset| > distance or |offset|*|velocity| > velocity.
	Confidence
)

func (p GesturePolicy) String() string {
	switch p {
	case DistanceOrVelocity:
		return "distance-or-velocity"
	case Confidence:
		return "confidence"
	default:
		return "distance"
	}
}

// ParseGesturePolicy is the inverse of GesturePolicy.String.
func ParseGesturePolicy(s string) (GesturePolicy, error) {
	switch s {
	case "", "distance":
		return DistanceOnly, nil
	case "distance-or-velocity":
		return DistanceOrVelocity, nil
	case "confidence":
		return Confidence, nil
	}
	return DistanceOnly, fmt.Errorf("unknown gesture policy %q", s)
}

// Classify turns a drag release into an intent. offset is the signed distance
// moved along the primary axis in pixels, velocity the signed release speed in
// pixels per second. Leftward motion (negative) means "next".
func Classify(policy GesturePolicy, distance, velocity, offset, releaseVelocity float64) Intent {
	absOff, absVel := math.Abs(offset), math.Abs(releaseVelocity)

	var swiped bool
	switch policy {
	case DistanceOrVelocity:
		swiped = absOff > distance || absVel > velocity
	case Confidence:
		swiped = absOff > distance || absOff*absVel > velocity
	default:
		swiped = absOff > distance
	}
	if !swiped {
		return Intent{}
	}

	// A zero offset falls back to the release velocity, so a flick that
	// ends where it started still moves the way it was thrown rather than
	// always retreating.
	sign := offset
	if sign == 0 {
		sign = releaseVelocity
	}
	switch {
	case sign < 0:
		return Intent{Kind: IntentAdvance}
	case sign > 0:
		return Intent{Kind: IntentRetreat}
	}
	return Intent{}
}

// Gesture feeds pointer and touch drags into a Rotator. Begin pauses the
// rotator; End classifies the release, navigates, and resumes after the
// configured grace delay.
type Gesture struct {
	r *Rotator
}

// Gesture returns the drag adapter for r, configured from r's Config.
func (r *Rotator) Gesture() *Gesture { return &Gesture{r: r} }

// Begin marks the start of a drag.
func (g *Gesture) Begin() {
	r := g.r
	r.mu.Lock()
	if r.resume != nil {
		r.resume.Stop()
		r.resume = nil
	}
	r.mu.Unlock()
	r.hold(PauseGesture, OriginGesture)
}

// End finishes a drag and returns the intent that was applied. Only the
// drag's own pause is lifted; a hover or user pause stays in place.
func (g *Gesture) End(offset, velocity float64) Intent {
	r := g.r
	cfg := r.cfg
	in := Classify(cfg.GesturePolicy, cfg.SwipeDistance, cfg.SwipeVelocity, offset, velocity)
	r.apply(in, OriginGesture)

	if cfg.ResumeDelay <= 0 {
		r.release(PauseGesture, OriginGesture)
		return in
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return in
	}
	if r.resume != nil {
		r.resume.Stop()
	}
	var t Timer
	t = r.clock.AfterFunc(cfg.ResumeDelay, func() {
		r.mu.Lock()
		if r.resume != t {
			r.mu.Unlock()
			return
		}
		r.resume = nil
		r.mu.Unlock()
		r.release(PauseGesture, OriginGesture)
	})
	r.resume = t
	return in
}
