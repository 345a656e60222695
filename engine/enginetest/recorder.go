// Package enginetest provides an Engine double that records every call.
package enginetest

import (
	"sync"

	"go-nonagon/engine"
	"go-nonagon/grid"
)

// Call is one recorded engine invocation
type Call struct {
	Op      string // press, release, color, aux-color, aux-press, process, midi-in, midi-out
	Surface grid.Surface
	X, Y    int
	Index   int
}

// Recorder is a thread-safe fake engine.
//
// Colors are deterministic: cell (s,x,y) returns {s, x, y} and aux i returns
// {i, i, i}, so snapshot tests can check placement. Process writes Fill into
// every sample so tests can tell delegation from the silence fallback.
type Recorder struct {
	mu     sync.Mutex
	calls  []Call
	counts map[string]int

	Aux    int
	Fill   float32
	Closed bool

	// OnColor, if set, runs before every colour read (used to close the
	// handle mid-tick)
	OnColor func()
	// PanicOnProcess makes Process panic
	PanicOnProcess bool
}

// NewRecorder returns a recorder exposing aux auxiliary indicators
func NewRecorder(aux int) *Recorder {
	return &Recorder{Aux: aux, Fill: 0.5, counts: make(map[string]int)}
}

func (r *Recorder) record(c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	r.counts[c.Op]++
}

// Count returns how many times op was called
func (r *Recorder) Count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[op]
}

// Calls returns a copy of the call log
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Reset clears the call log
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
	r.counts = make(map[string]int)
}

func (r *Recorder) Press(s grid.Surface, x, y int) {
	grid.Check(grid.Cell{Surface: s, X: x, Y: y})
	r.record(Call{Op: "press", Surface: s, X: x, Y: y})
}

func (r *Recorder) Release(s grid.Surface, x, y int) {
	grid.Check(grid.Cell{Surface: s, X: x, Y: y})
	r.record(Call{Op: "release", Surface: s, X: x, Y: y})
}

func (r *Recorder) Color(s grid.Surface, x, y int) engine.RGB {
	if r.OnColor != nil {
		r.OnColor()
	}
	grid.Check(grid.Cell{Surface: s, X: x, Y: y})
	r.record(Call{Op: "color", Surface: s, X: x, Y: y})
	return engine.RGB{uint8(s), uint8(x), uint8(y)}
}

func (r *Recorder) AuxColor(index int) engine.RGB {
	r.record(Call{Op: "aux-color", Index: index})
	return engine.RGB{uint8(index), uint8(index), uint8(index)}
}

func (r *Recorder) AuxPress(index int) {
	r.record(Call{Op: "aux-press", Index: index})
}

func (r *Recorder) Process(buffers [][]float32, frames int) {
	if r.PanicOnProcess {
		panic("recorder: process failure")
	}
	for _, ch := range buffers {
		for i := 0; i < frames; i++ {
			ch[i] = r.Fill
		}
	}
	r.record(Call{Op: "process", Index: frames})
}

func (r *Recorder) SetMidiInput(index int) {
	r.record(Call{Op: "midi-in", Index: index})
}

func (r *Recorder) SetMidiOutput(index int) {
	r.record(Call{Op: "midi-out", Index: index})
}

func (r *Recorder) AuxCount() int {
	return r.Aux
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Closed = true
	r.counts["close"]++
	return nil
}
