package audio

import (
	"context"
	"time"

	"go-nonagon/debug"
)

// Output is a started or stopped sound sink pulling from a Pump
type Output interface {
	Start() error
	// Stop returns once no render call is in flight
	Stop() error
}

const haltTimeout = time.Second

// Null drives the pump from a ticker at the stream's real-time rate and
// throws the samples away. The engine keeps its clock, so MIDI output still
// runs without a sound device.
type Null struct {
	pump   *Pump
	period time.Duration
	buf    []byte

	cancel context.CancelFunc
	done   chan struct{}
}

// NewNull returns a sink that pulls one block per period
func NewNull(p *Pump, sampleRate int) *Null {
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	return &Null{
		pump:   p,
		period: time.Duration(p.frames) * time.Second / time.Duration(sampleRate),
		buf:    make([]byte, p.frames*p.channels*bytesPerSample),
	}
}

func (n *Null) Start() error {
	if n.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.done = make(chan struct{})
	go n.loop(ctx)
	debug.Log("audio", "null output, %v per block", n.period)
	return nil
}

func (n *Null) loop(ctx context.Context) {
	defer close(n.done)
	ticker := time.NewTicker(n.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.pump.Read(n.buf)
		}
	}
}

func (n *Null) Stop() error {
	if n.cancel != nil {
		n.cancel()
		<-n.done
		n.cancel = nil
	}
	return n.pump.Halt(haltTimeout)
}
