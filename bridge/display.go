package bridge

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go-nonagon/debug"
	"go-nonagon/engine"
	"go-nonagon/grid"
)

// Accepted display refresh range
const (
	MinFPS = 30
	MaxFPS = 60
)

// ClampFPS forces a refresh rate into [MinFPS, MaxFPS]
func ClampFPS(fps int) int {
	if fps < MinFPS {
		return MinFPS
	}
	if fps > MaxFPS {
		return MaxFPS
	}
	return fps
}

// DisplayLoop polls engine colours at a fixed rate and publishes them as
// snapshots for presentation code. It only ever reads from the engine.
type DisplayLoop struct {
	h   *engine.Handle
	aux int

	rate    atomic.Int64 // fps
	rateChg chan struct{}

	current atomic.Pointer[Snapshot]
	seq     uint64 // only touched by the ticking goroutine

	subsMu sync.Mutex
	subs   []chan struct{}

	skipped  atomic.Uint64
	overruns atomic.Uint64
}

// NewDisplayLoop creates a loop reading from h with aux auxiliary
// indicators, ticking at fps (clamped to the accepted range)
func NewDisplayLoop(h *engine.Handle, aux, fps int) *DisplayLoop {
	l := &DisplayLoop{
		h:       h,
		aux:     aux,
		rateChg: make(chan struct{}, 1),
	}
	l.rate.Store(int64(ClampFPS(fps)))
	return l
}

// Rate returns the current target refresh rate
func (l *DisplayLoop) Rate() int {
	return int(l.rate.Load())
}

// SetRate adapts the refresh rate, e.g. to match the display
func (l *DisplayLoop) SetRate(fps int) {
	fps = ClampFPS(fps)
	if int(l.rate.Swap(int64(fps))) == fps {
		return
	}
	select {
	case l.rateChg <- struct{}{}:
	default:
	}
}

func (l *DisplayLoop) period() time.Duration {
	return time.Second / time.Duration(l.rate.Load())
}

// Run ticks until ctx is done. Ticks that fall behind are dropped rather
// than queued.
func (l *DisplayLoop) Run(ctx context.Context) error {
	period := l.period()
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.rateChg:
			period = l.period()
			ticker.Reset(period)
			debug.Log("display", "rate now %d fps", l.Rate())
		case <-ticker.C:
			start := time.Now()
			l.Tick()
			if took := time.Since(start); took > period {
				l.overruns.Add(1)
				debug.LogEvery(30, "display", "tick overrun %v > %v", took, period)
			}
		}
	}
}

// Tick reads one full snapshot. It returns false when the engine was not
// available for the whole pass; the previous snapshot then stays current.
func (l *DisplayLoop) Tick() bool {
	snap := &Snapshot{Aux: make([]engine.RGB, l.aux)}

	for _, s := range grid.Surfaces() {
		for y := 0; y < grid.Height; y++ {
			for x := 0; x < grid.Width; x++ {
				e := l.h.Engine()
				if e == nil {
					l.skipped.Add(1)
					return false
				}
				c := grid.Map(s, x, y)
				snap.Cells[c.Index()] = e.Color(c.Surface, c.X, c.Y)
			}
		}
	}
	for i := range snap.Aux {
		e := l.h.Engine()
		if e == nil {
			l.skipped.Add(1)
			return false
		}
		snap.Aux[i] = e.AuxColor(i)
	}

	l.seq++
	snap.Seq = l.seq
	snap.Taken = time.Now()
	l.current.Store(snap)
	l.notify()
	return true
}

// Snapshot returns the latest complete snapshot, or nil before the first
// successful tick
func (l *DisplayLoop) Snapshot() *Snapshot {
	return l.current.Load()
}

// Subscribe returns a channel that receives a signal after each published
// snapshot. Signals coalesce when the reader is slow.
func (l *DisplayLoop) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	l.subsMu.Lock()
	l.subs = append(l.subs, ch)
	l.subsMu.Unlock()
	return ch
}

func (l *DisplayLoop) notify() {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()
	for _, ch := range l.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Skipped is the number of ticks abandoned because the engine was gone
func (l *DisplayLoop) Skipped() uint64 {
	return l.skipped.Load()
}

// Overruns is the number of ticks that took longer than one period
func (l *DisplayLoop) Overruns() uint64 {
	return l.overruns.Load()
}
