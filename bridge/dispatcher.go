package bridge

import (
	"sync/atomic"

	"go-nonagon/debug"
	"go-nonagon/engine"
	"go-nonagon/grid"
)

// Dispatcher turns raw press/release attempts from any number of gesture
// sources into balanced edge events. Only the Released->Pressed and
// Pressed->Released transitions reach the engine.
//
// Cell state is a CompareAndSwap on one atomic flag per physical cell, so
// two sources racing on the same cell still produce exactly one edge.
type Dispatcher struct {
	h       *engine.Handle
	pressed [grid.StoreSize]atomic.Bool
	aux     int
}

// NewDispatcher creates a dispatcher forwarding to h. aux is the number of
// auxiliary buttons the engine exposes.
func NewDispatcher(h *engine.Handle, aux int) *Dispatcher {
	return &Dispatcher{h: h, aux: aux}
}

// Press records a press attempt on a logical cell. It reports whether a
// press event was forwarded.
func (d *Dispatcher) Press(s grid.Surface, x, y int) bool {
	c := grid.Map(s, x, y)
	if !d.pressed[c.Index()].CompareAndSwap(false, true) {
		return false
	}
	e := d.h.Engine()
	if e == nil {
		return false
	}
	e.Press(c.Surface, c.X, c.Y)
	debug.Log("input", "press %s", c)
	return true
}

// Release records a release attempt. It reports whether a release event was
// forwarded.
func (d *Dispatcher) Release(s grid.Surface, x, y int) bool {
	c := grid.Map(s, x, y)
	return d.release(c)
}

func (d *Dispatcher) release(c grid.Cell) bool {
	if !d.pressed[c.Index()].CompareAndSwap(true, false) {
		return false
	}
	e := d.h.Engine()
	if e == nil {
		return false
	}
	e.Release(c.Surface, c.X, c.Y)
	debug.Log("input", "release %s", c)
	return true
}

// Pressed reports the current state of a logical cell
func (d *Dispatcher) Pressed(s grid.Surface, x, y int) bool {
	return d.pressed[grid.Map(s, x, y).Index()].Load()
}

// ReleaseAll releases every held cell, e.g. when a controller disappears
// while pads are still down. It returns how many releases were forwarded.
func (d *Dispatcher) ReleaseAll() int {
	n := 0
	for i := range d.pressed {
		if d.pressed[i].Load() && d.release(grid.CellAt(i)) {
			n++
		}
	}
	return n
}

// AuxPress forwards a press on an auxiliary menu button. Aux buttons are
// momentary actions, so there is no press state to debounce.
func (d *Dispatcher) AuxPress(index int) bool {
	if index < 0 || index >= d.aux {
		return false
	}
	e := d.h.Engine()
	if e == nil {
		return false
	}
	e.AuxPress(index)
	debug.Log("input", "aux press %d", index)
	return true
}

// AuxCount is the number of auxiliary buttons
func (d *Dispatcher) AuxCount() int {
	return d.aux
}
