// Package audio connects the render bridge to a sound device. The device
// pulls interleaved float32 little-endian bytes; Pump turns each pull into
// one or more planar render calls.
package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"sync/atomic"
	"time"

	"go-nonagon/bridge"
	"go-nonagon/config"
)

// ErrStopTimeout is returned when a device read is still running after Halt's
// deadline
var ErrStopTimeout = errors.New("audio read still in flight")

const bytesPerSample = 4

// Pump is an io.Reader for the device. Read is called from the driver's
// goroutine; after allocation in NewPump it allocates nothing.
type Pump struct {
	r        *bridge.Renderer
	channels int
	bufs     [][]float32 // planar, each BufferFrames long
	frames   int         // per render call

	sampleTime int64 // owned by Read
	start      time.Time

	inflight atomic.Int32
	halted   atomic.Bool
}

// NewPump sizes the planar buffers from cfg
func NewPump(r *bridge.Renderer, cfg config.AudioConfig) *Pump {
	p := &Pump{
		r:        r,
		channels: max(cfg.Channels, 1),
		frames:   max(cfg.BufferFrames, 1),
		start:    time.Now(),
	}
	p.bufs = make([][]float32, p.channels)
	for i := range p.bufs {
		p.bufs[i] = make([]float32, p.frames)
	}
	return p
}

// Read renders len(buf)/frameSize frames into buf. Bytes that do not make a
// whole frame, and everything after Halt, are zero.
func (p *Pump) Read(buf []byte) (int, error) {
	p.inflight.Add(1)
	defer p.inflight.Add(-1)
	if p.halted.Load() {
		clear(buf)
		return len(buf), nil
	}

	frameSize := p.channels * bytesPerSample
	total := len(buf) / frameSize
	out := buf
	for done := 0; done < total; {
		n := min(total-done, p.frames)
		block := p.bufs
		for c := range block {
			block[c] = block[c][:n]
		}
		p.r.Process(block, n, bridge.Timestamp{
			SampleTime: p.sampleTime,
			HostNanos:  int64(time.Since(p.start)),
		})
		for i := 0; i < n; i++ {
			for c := 0; c < p.channels; c++ {
				binary.LittleEndian.PutUint32(out, math.Float32bits(block[c][i]))
				out = out[bytesPerSample:]
			}
		}
		for c := range block {
			block[c] = block[c][:p.frames]
		}
		p.sampleTime += int64(n)
		done += n
	}
	clear(out)
	return len(buf), nil
}

// Halt makes later reads silent and waits for a running one to return.
// After a nil return no render call is in flight or will start.
func (p *Pump) Halt(timeout time.Duration) error {
	p.halted.Store(true)
	deadline := time.Now().Add(timeout)
	for p.inflight.Load() != 0 {
		if time.Now().After(deadline) {
			return ErrStopTimeout
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}

// Channels is the interleaved channel count
func (p *Pump) Channels() int {
	return p.channels
}
