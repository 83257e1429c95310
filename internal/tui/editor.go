package tui

import (
	"github.com/heimdex/repcut/internal/timeline"
)

// Editor is the session the terminal UI drives. session.Handle satisfies
// it; LocalEditor keeps everything in memory.
type Editor interface {
	Apply(fn func(c *timeline.Controller) timeline.Outcome) (timeline.State, timeline.Outcome, error)
	UpdateDetails(index int, details *timeline.SegmentDetails) (timeline.State, timeline.Outcome, error)
	ClearAll() (timeline.State, timeline.Outcome, error)
	View(width float64) (timeline.View, error)
}

// LocalEditor is an unpersisted Editor over a single store.
type LocalEditor struct {
	ctrl  *timeline.Controller
	width float64
}

func NewLocalEditor(store *timeline.Store, opts ...timeline.ControllerOption) *LocalEditor {
	e := &LocalEditor{}
	e.ctrl = timeline.NewController(store, func() float64 { return e.width }, opts...)
	return e
}

func (e *LocalEditor) Apply(fn func(c *timeline.Controller) timeline.Outcome) (timeline.State, timeline.Outcome, error) {
	out := fn(e.ctrl)
	return e.ctrl.Store().State(), out, nil
}

func (e *LocalEditor) UpdateDetails(index int, details *timeline.SegmentDetails) (timeline.State, timeline.Outcome, error) {
	return e.Apply(func(c *timeline.Controller) timeline.Outcome {
		out := c.Store().UpdateSegmentDetails(index, details)
		if out.Ok() && details != nil {
			c.Store().AddTags(timeline.Tags{MuscleGroups: details.MuscleGroups, Equipment: details.Equipment})
		}
		return out
	})
}

func (e *LocalEditor) ClearAll() (timeline.State, timeline.Outcome, error) {
	return e.Apply(func(c *timeline.Controller) timeline.Outcome {
		c.Cancel()
		return c.Store().ClearAllCutPoints()
	})
}

func (e *LocalEditor) View(width float64) (timeline.View, error) {
	e.width = width
	return e.ctrl.BuildView(), nil
}
