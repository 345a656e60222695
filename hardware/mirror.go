// Package hardware mirrors the surfaces onto a grid controller. Pads become
// press/release attempts, snapshot colours become LEDs.
package hardware

import (
	"context"
	"sync"
	"time"

	"go-nonagon/bridge"
	"go-nonagon/debug"
	"go-nonagon/engine"
	"go-nonagon/grid"
	"go-nonagon/midi"
)

// Gestures receives raw gesture attempts. *bridge.Dispatcher is the real one.
type Gestures interface {
	Press(s grid.Surface, x, y int) bool
	Release(s grid.Surface, x, y int) bool
	AuxPress(index int) bool
	AuxCount() int
}

// Snapshots is where LED colours come from. *bridge.DisplayLoop is the real
// one.
type Snapshots interface {
	Snapshot() *bridge.Snapshot
	Subscribe() <-chan struct{}
}

// LED refresh rate
const ledFPS = 30

// DefaultPages are the surfaces the right column selects, top button first
var DefaultPages = []grid.Surface{
	grid.Matrix, grid.RHS, grid.CoMute, grid.Topology,
	grid.Swing, grid.Interval, grid.LHS, grid.TimbreFire,
}

var (
	pageSelected = engine.RGB{255, 255, 255}
	pageIdle     = engine.RGB{30, 30, 30}
)

type pad [2]int // row, col

// Mirror shows one surface at a time on the 8x8 pads. Pad row 7 is surface
// row 0 so the layout reads the same as the screen.
type Mirror struct {
	g     Gestures
	snaps Snapshots
	pages []grid.Surface

	mu    sync.Mutex // guards everything below
	ctrl  midi.Controller
	page  int
	held  map[pad]grid.Cell
	prev  map[pad]midi.LEDUpdate
	dirty bool
}

// NewMirror creates a mirror with no controller attached. Empty pages means
// DefaultPages.
func NewMirror(g Gestures, snaps Snapshots, pages []grid.Surface) *Mirror {
	if len(pages) == 0 {
		pages = DefaultPages
	}
	if len(pages) > midi.GridRows {
		pages = pages[:midi.GridRows]
	}
	return &Mirror{
		g:     g,
		snaps: snaps,
		pages: pages,
		held:  make(map[pad]grid.Cell),
		prev:  make(map[pad]midi.LEDUpdate),
	}
}

// Page returns the surface currently on the pads
func (m *Mirror) Page() grid.Surface {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pages[m.page]
}

// Attach makes c the mirrored controller and starts reading its pads. The
// reader stops when c closes its pad channel.
func (m *Mirror) Attach(c midi.Controller) {
	m.mu.Lock()
	m.ctrl = c
	m.prev = make(map[pad]midi.LEDUpdate) // diff will repaint everything
	m.dirty = true
	m.mu.Unlock()

	debug.Log("mirror", "attached %s", c.ID())
	go m.listen(c)
}

// Detach forgets controller id if it is the attached one
func (m *Mirror) Detach(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctrl != nil && m.ctrl.ID() == id {
		m.ctrl = nil
		debug.Log("mirror", "detached %s", id)
	}
}

func (m *Mirror) listen(c midi.Controller) {
	for ev := range c.PadEvents() {
		m.handle(ev)
	}
	// Unplugged with pads down: release what this controller pressed
	if n := m.releaseHeld(); n > 0 {
		debug.Log("mirror", "%s gone, released %d", c.ID(), n)
	}
}

func (m *Mirror) handle(ev midi.PadEvent) {
	switch {
	case ev.Row == midi.TopRow:
		if ev.Pressed {
			m.g.AuxPress(ev.Col)
		}
	case ev.Col == midi.RightCol:
		if ev.Pressed {
			m.selectPage(midi.GridRows - 1 - ev.Row)
		}
	default:
		m.gridPad(ev)
	}
}

func (m *Mirror) selectPage(i int) {
	if i < 0 || i >= len(m.pages) {
		return
	}
	m.mu.Lock()
	m.page = i
	m.dirty = true
	m.mu.Unlock()
	debug.Log("mirror", "page %s", m.pages[i])
}

// gridPad forwards a grid pad. The release goes to the cell the press went to,
// even if the page changed in between.
func (m *Mirror) gridPad(ev midi.PadEvent) {
	key := pad{ev.Row, ev.Col}
	m.mu.Lock()
	c, wasHeld := m.held[key]
	if ev.Pressed {
		c = grid.Cell{Surface: m.pages[m.page], X: ev.Col, Y: midi.GridRows - 1 - ev.Row}
		m.held[key] = c
	} else {
		delete(m.held, key)
	}
	m.mu.Unlock()

	switch {
	case ev.Pressed:
		m.g.Press(c.Surface, c.X, c.Y)
	case wasHeld:
		m.g.Release(c.Surface, c.X, c.Y)
	}
}

func (m *Mirror) releaseHeld() int {
	m.mu.Lock()
	held := m.held
	m.held = make(map[pad]grid.Cell)
	m.mu.Unlock()

	n := 0
	for _, c := range held {
		if m.g.Release(c.Surface, c.X, c.Y) {
			n++
		}
	}
	return n
}

// Run repaints LEDs at ledFPS whenever a new snapshot or page is pending
func (m *Mirror) Run(ctx context.Context) error {
	updates := m.snaps.Subscribe()
	ticker := time.NewTicker(time.Second / ledFPS)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-updates:
			m.mu.Lock()
			m.dirty = true
			m.mu.Unlock()
		case <-ticker.C:
			m.mu.Lock()
			dirty := m.dirty
			m.dirty = false
			m.mu.Unlock()
			if dirty {
				m.flush()
			}
		}
	}
}

// render lays the snapshot out on the full 9x9 button area
func (m *Mirror) render(snap *bridge.Snapshot, page int) map[pad]midi.LEDUpdate {
	leds := make(map[pad]midi.LEDUpdate, midi.GridRows*midi.GridCols+midi.GridRows+midi.TopRowLen)
	set := func(row, col int, c engine.RGB) {
		leds[pad{row, col}] = midi.LEDUpdate{Row: row, Col: col, Color: c, Channel: midi.ChannelStatic}
	}

	surface := m.pages[page]
	for row := 0; row < midi.GridRows; row++ {
		for col := 0; col < midi.GridCols; col++ {
			set(row, col, snap.Color(surface, col, midi.GridRows-1-row))
		}
	}
	for i := range m.pages {
		c := pageIdle
		if i == page {
			c = pageSelected
		}
		set(midi.GridRows-1-i, midi.RightCol, c)
	}
	for col := 0; col < min(m.g.AuxCount(), midi.TopRowLen); col++ {
		set(midi.TopRow, col, snap.AuxColor(col))
	}
	return leds
}

// flush sends only changed LEDs to the controller (diffing + batching)
func (m *Mirror) flush() {
	snap := m.snaps.Snapshot()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctrl == nil || snap == nil {
		return
	}

	next := m.render(snap, m.page)
	var updates []midi.LEDUpdate
	for key, led := range next {
		if prev, ok := m.prev[key]; !ok || prev != led {
			updates = append(updates, led)
		}
	}
	// Clear LEDs that are no longer lit
	for key := range m.prev {
		if _, ok := next[key]; !ok {
			updates = append(updates, midi.LEDUpdate{Row: key[0], Col: key[1]})
		}
	}
	if len(updates) == 0 {
		return
	}

	if err := m.ctrl.SetLEDBatch(updates); err != nil {
		debug.Log("led", "flush: %v", err)
		m.prev = make(map[pad]midi.LEDUpdate)
		m.dirty = true
		return
	}
	debug.LogEvery(100, "led", "flush: batch=%d prev=%d", len(updates), len(m.prev))
	m.prev = next
}
