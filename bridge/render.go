package bridge

import (
	"sync/atomic"

	"go-nonagon/engine"
)

// Status is what the render callback hands back to the audio driver
type Status int

const (
	// StatusOK is the only status Process ever returns
	StatusOK Status = iota
)

// Timestamp is the driver's position for the first frame of a block
type Timestamp struct {
	SampleTime int64 // frames since the stream started
	HostNanos  int64 // monotonic host clock, 0 if unknown
}

// Renderer adapts one driver block callback into one engine render call.
// Process runs on the audio goroutine: it takes no locks, does not allocate
// and never returns an error.
type Renderer struct {
	h *engine.Handle

	blocks    atomic.Uint64
	silent    atomic.Uint64
	recovered atomic.Uint64
	lastTime  atomic.Int64
}

// NewRenderer returns a renderer reading the engine from h
func NewRenderer(h *engine.Handle) *Renderer {
	return &Renderer{h: h}
}

// Process fills buffers[ch][0:frames] for every channel. With no engine the
// block is silence.
func (r *Renderer) Process(buffers [][]float32, frames int, ts Timestamp) Status {
	r.blocks.Add(1)
	r.lastTime.Store(ts.SampleTime)

	e := r.h.Engine()
	if e == nil {
		r.silent.Add(1)
		silence(buffers, frames)
		return StatusOK
	}
	r.render(e, buffers, frames)
	return StatusOK
}

func (r *Renderer) render(e engine.Engine, buffers [][]float32, frames int) {
	defer func() {
		if rec := recover(); rec != nil {
			r.recovered.Add(1)
			silence(buffers, frames)
		}
	}()
	e.Process(buffers, frames)
}

func silence(buffers [][]float32, frames int) {
	for _, ch := range buffers {
		n := frames
		if n > len(ch) {
			n = len(ch)
		}
		clear(ch[:n])
	}
}

// RenderStats are counters for diagnostics
type RenderStats struct {
	Blocks     uint64
	Silent     uint64
	Recovered  uint64
	SampleTime int64
}

// Stats reads the counters. Safe from any goroutine.
func (r *Renderer) Stats() RenderStats {
	return RenderStats{
		Blocks:     r.blocks.Load(),
		Silent:     r.silent.Load(),
		Recovered:  r.recovered.Load(),
		SampleTime: r.lastTime.Load(),
	}
}
