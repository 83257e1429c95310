package timeline

import (
	"math"
	"time"
)

// InputKind distinguishes pointer from touch gestures; they activate
// differently.
type InputKind int

const (
	InputPointer InputKind = iota
	InputTouch
)

const (
	// PointerActivationDistance is how far a pointer must travel before a
	// press on a cut point becomes a drag.
	PointerActivationDistance = 5.0
	// TouchActivationDelay is how long a touch must be held before it drags.
	TouchActivationDelay = 100 * time.Millisecond
	// TouchTolerance is how far a touch may move during the delay before it
	// is treated as a scroll.
	TouchTolerance = 5.0
)

// GestureKind tags the Gesture variant.
type GestureKind int

const (
	GestureIdle GestureKind = iota
	// GesturePending: pressed on a cut point, not yet past the activation
	// threshold.
	GesturePending
	GestureDragging
)

// Gesture is the transient drag state. It lives in the Controller, never in
// the Store.
type Gesture struct {
	Kind        GestureKind
	CutPointID  string
	Origin      float64
	PreviewTime float64
	Input       InputKind
	StartedAt   time.Time
}

// Zone is a horizontal band of the timeline surface.
type Zone int

const (
	ZoneHandles Zone = iota
	ZoneSegments
	ZoneRuler
)

const (
	handleBandHeight  = 30
	segmentBandBottom = 120
)

// ZoneAt classifies a vertical position on the canvas-style layout.
func ZoneAt(y float64) Zone {
	switch {
	case y <= handleBandHeight:
		return ZoneHandles
	case y <= segmentBandBottom:
		return ZoneSegments
	default:
		return ZoneRuler
	}
}

// Controller turns gestures into store mutations. Move only updates the
// preview; End commits with a single UpdateCutPoint.
type Controller struct {
	store   *Store
	measure func() float64
	now     func() time.Time
	scroll  float64
	gesture Gesture
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithClock overrides the time source used for the touch delay.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		c.now = now
	}
}

// NewController returns a controller driving store. measure reports the
// current viewport width in pixels and is called on every mapping.
func NewController(store *Store, measure func() float64, opts ...ControllerOption) *Controller {
	c := &Controller{
		store:   store,
		measure: measure,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the controlled store.
func (c *Controller) Store() *Store {
	return c.store
}

// SetScrollOffset sets the horizontal pan in seconds.
func (c *Controller) SetScrollOffset(offset float64) {
	c.scroll = offset
}

// Viewport builds a viewport from the current measurement and store state.
func (c *Controller) Viewport() Viewport {
	return Viewport{
		Width:        c.measure(),
		Duration:     c.store.Duration(),
		Zoom:         c.store.ZoomLevel(),
		ScrollOffset: c.scroll,
	}
}

// Gesture returns the current gesture.
func (c *Controller) Gesture() Gesture {
	return c.gesture
}

// Phase combines the store state with the gesture.
func (c *Controller) Phase() Phase {
	return PhaseOf(c.store.State(), c.gesture)
}

// Begin starts a gesture on a cut point and selects it.
func (c *Controller) Begin(id string, input InputKind) Outcome {
	cp, ok := c.store.CutPoint(id)
	if !ok {
		return NotFound
	}
	c.gesture = Gesture{
		Kind:        GesturePending,
		CutPointID:  id,
		Origin:      cp.Time,
		PreviewTime: cp.Time,
		Input:       input,
		StartedAt:   c.now(),
	}
	return c.store.SelectCutPoint(&id)
}

// Move updates the preview for a pointer delta of dx pixels from the
// gesture's start. It returns the preview time and whether the gesture is
// dragging.
func (c *Controller) Move(dx float64) (float64, bool) {
	if !c.advance(dx) {
		return 0, false
	}
	c.gesture.PreviewTime = c.candidate(dx)
	return c.gesture.PreviewTime, true
}

// End finishes the gesture. A drag commits the final time once; anything
// that never activated or ends where it began stays a selection tap.
func (c *Controller) End(dx float64) Outcome {
	if c.gesture.Kind == GestureIdle {
		return NotFound
	}
	// A touch hold released in place activates without moving.
	if !c.advance(dx) || dx == 0 {
		c.gesture = Gesture{}
		return Applied
	}
	id := c.gesture.CutPointID
	final := c.candidate(dx)
	c.gesture = Gesture{}
	return c.store.UpdateCutPoint(id, final)
}

// Cancel abandons the gesture without committing.
func (c *Controller) Cancel() {
	c.gesture = Gesture{}
}

// Preview returns the cut point being dragged and its live time.
func (c *Controller) Preview() (string, float64, bool) {
	if c.gesture.Kind != GestureDragging {
		return "", 0, false
	}
	return c.gesture.CutPointID, c.gesture.PreviewTime, true
}

// Tap handles a click or tap at x in zone. On the handle band it selects a
// cut point within HitToleranceRatio of the duration. On the segment band it
// selects the segment and seeks to its start. Otherwise it seeks and clears
// the cut point selection.
func (c *Controller) Tap(x float64, zone Zone) Outcome {
	d := c.store.Duration()
	if d <= 0 {
		return RejectedNoVideo
	}
	t := c.Viewport().XToTime(x)

	if zone == ZoneHandles {
		if cp, ok := c.store.CutPointNear(t, d*HitToleranceRatio); ok {
			return c.store.SelectCutPoint(&cp.ID)
		}
	}
	if zone == ZoneSegments {
		if idx := c.store.SegmentIndexAt(t); idx >= 0 {
			if out := c.store.SelectSegment(&idx); !out.Ok() {
				return out
			}
			return c.store.SetCurrentTime(c.store.State().Segments[idx].Start)
		}
	}
	c.store.SetCurrentTime(t)
	return c.store.SelectCutPoint(nil)
}

// advance applies activation rules and reports whether the gesture is
// dragging. A touch that moves beyond tolerance before the delay is a
// scroll and cancels the gesture.
func (c *Controller) advance(dx float64) bool {
	switch c.gesture.Kind {
	case GestureDragging:
		return true
	case GesturePending:
	default:
		return false
	}

	dist := math.Abs(dx)
	switch c.gesture.Input {
	case InputTouch:
		if c.now().Sub(c.gesture.StartedAt) < TouchActivationDelay {
			if dist > TouchTolerance {
				c.gesture = Gesture{}
			}
			return false
		}
	default:
		if dist < PointerActivationDistance {
			return false
		}
	}
	c.gesture.Kind = GestureDragging
	return true
}

// candidate maps the origin shifted by dx back to a time on a fresh viewport.
func (c *Controller) candidate(dx float64) float64 {
	vp := c.Viewport()
	return vp.XToTime(vp.TimeToX(c.gesture.Origin) + dx)
}
