package sequencer

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"go-nonagon/debug"
	"go-nonagon/engine"
	"go-nonagon/grid"
	"go-nonagon/midi"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// Ports opens MIDI ports by index. midi.System is the real implementation.
type Ports interface {
	OpenOut(index int) (func(gomidi.Message) error, error)
	ListenIn(index int, recv func(gomidi.Message)) (func(), error)
}

const (
	MaxPatterns  = 4
	MinTempo     = 20.0
	MaxTempo     = 300.0
	DefaultTempo = 120.0

	// Aux indicators: transport, mute all, then one per pattern
	AuxTransport = 0
	AuxMuteAll   = 1
	AuxFirstBank = 2

	stepWrap    = 840 * 64 // multiple of every loop length 1..8
	drumChannel = 9
	outQueue    = 256
)

// ErrSampleRate is returned by New for a non-positive sample rate
var ErrSampleRate = errors.New("sample rate must be positive")

// Options configures a Nonagon
type Options struct {
	SampleRate int
	AuxCount   int // clamped to [2, 2+MaxPatterns]
	Tempo      float64
	Kit        string
	Ports      Ports // nil disables MIDI
}

type sender struct {
	send func(gomidi.Message) error
}

// Nonagon is the built-in engine: an eight voice step sequencer laid out
// over the surfaces.
//
//   - Matrix: row y is voice y, column x is step x of the queued pattern.
//   - CoMute: row 0 mutes voice x. Other rows are plain toggles.
//   - Topology: pressing (x, y) sets voice y's loop length to x+1, so voices
//     can run polymetric against each other.
//   - Every other surface is a grid of toggles.
//
// UI-side state is all atomics. Voices, the step counter and the sample
// clock belong to the audio goroutine.
type Nonagon struct {
	kit        DrumKit
	kitID      string
	sampleRate float64
	aux        int
	ports      Ports
	shades     [grid.NumSurfaces]shade

	cells    [grid.NumSurfaces]atomic.Uint64 // toggles, bit y*Width+x
	held     [grid.NumSurfaces]atomic.Uint64
	patterns [MaxPatterns]atomic.Uint64
	lengths  [Voices]atomic.Int32
	pattern  atomic.Int32 // playing
	next     atomic.Int32 // queued, and the one shown and edited
	tempo    atomic.Uint64
	playing  atomic.Bool
	restart  atomic.Bool
	muteAll  atomic.Bool
	pending  atomic.Uint32 // voices struck from MIDI input
	playhead atomic.Int64  // last fired step, -1 when stopped

	voices    [Voices]voice
	step      int
	untilStep float64

	out      chan midi.Event
	dropped  atomic.Uint64
	sender   atomic.Pointer[sender]
	outIndex atomic.Int32
	inIndex  atomic.Int32

	mu     sync.Mutex // guards stopIn
	stopIn func()

	done      chan struct{}
	closeOnce sync.Once
}

// New builds a stopped engine with empty patterns and every loop at full
// length
func New(opts Options) (*Nonagon, error) {
	if opts.SampleRate <= 0 {
		return nil, fmt.Errorf("sequencer: %w", ErrSampleRate)
	}
	n := &Nonagon{
		kit:        GetKit(opts.Kit),
		kitID:      DefaultKit,
		sampleRate: float64(opts.SampleRate),
		aux:        min(max(opts.AuxCount, AuxFirstBank), AuxFirstBank+MaxPatterns),
		ports:      opts.Ports,
		out:        make(chan midi.Event, outQueue),
		done:       make(chan struct{}),
	}
	if _, ok := Kits[opts.Kit]; ok {
		n.kitID = opts.Kit
	}
	for v := range n.voices {
		n.voices[v] = newVoice(n.kit.pitch(v), n.sampleRate)
		n.lengths[v].Store(grid.Width)
	}
	for s := range n.shades {
		n.shades[s] = newShade(grid.Surface(s))
	}
	n.SetTempo(opts.Tempo)
	n.playhead.Store(-1)
	n.inIndex.Store(engine.NoneSelected)
	n.outIndex.Store(engine.NoneSelected)

	go n.midiOutLoop()
	return n, nil
}

// Create adapts New to engine.Open
func Create(opts Options) func() (engine.Engine, error) {
	return func() (engine.Engine, error) {
		n, err := New(opts)
		if err != nil {
			return nil, err
		}
		return n, nil
	}
}

func bit(x, y int) uint64 {
	return 1 << uint(y*grid.Width+x)
}

func toggle(a *atomic.Uint64, b uint64) {
	for {
		old := a.Load()
		if a.CompareAndSwap(old, old^b) {
			return
		}
	}
}

func (n *Nonagon) Press(s grid.Surface, x, y int) {
	grid.Check(grid.Cell{Surface: s, X: x, Y: y})
	b := bit(x, y)
	n.held[s].Or(b)

	switch s {
	case grid.Matrix:
		toggle(&n.patterns[n.next.Load()], b)
	case grid.Topology:
		n.lengths[y].Store(int32(x + 1))
	default:
		toggle(&n.cells[s], b)
	}
}

func (n *Nonagon) Release(s grid.Surface, x, y int) {
	grid.Check(grid.Cell{Surface: s, X: x, Y: y})
	n.held[s].And(^bit(x, y))
}

func (n *Nonagon) Color(s grid.Surface, x, y int) engine.RGB {
	grid.Check(grid.Cell{Surface: s, X: x, Y: y})
	sh := &n.shades[s]
	b := bit(x, y)
	if n.held[s].Load()&b != 0 {
		return sh.held
	}

	switch s {
	case grid.Matrix:
		on := n.patterns[n.next.Load()].Load()&b != 0
		if n.voiceStep(y) == x {
			if on {
				return sh.accent
			}
			return sh.cursor
		}
		return sh.pick(on)
	case grid.Topology:
		l := int(n.lengths[y].Load())
		if x == l-1 {
			return sh.accent
		}
		return sh.pick(x < l)
	case grid.CoMute:
		if y == 0 && n.mutedVoices()&(1<<x) != 0 {
			return sh.accent
		}
	}
	return sh.pick(n.cells[s].Load()&b != 0)
}

// voiceStep is where voice v's playhead is, or -1 when stopped
func (n *Nonagon) voiceStep(v int) int {
	ph := n.playhead.Load()
	if ph < 0 || !n.playing.Load() {
		return -1
	}
	return int(ph % int64(n.lengths[v].Load()))
}

var (
	auxTransport = [2]engine.RGB{{0, 40, 0}, {0, 220, 0}}
	auxMute      = [2]engine.RGB{{40, 0, 0}, {220, 0, 0}}
	auxBank      = [3]engine.RGB{{0, 20, 50}, {80, 150, 255}, {0, 110, 255}} // idle, queued, playing
)

func lit(on bool) int {
	if on {
		return 1
	}
	return 0
}

func (n *Nonagon) AuxColor(index int) engine.RGB {
	switch {
	case index == AuxTransport:
		return auxTransport[lit(n.playing.Load())]
	case index == AuxMuteAll:
		return auxMute[lit(n.muteAll.Load())]
	case index >= AuxFirstBank && index < n.aux:
		p := int32(index - AuxFirstBank)
		switch {
		case n.pattern.Load() == p:
			return auxBank[2]
		case n.next.Load() == p:
			return auxBank[1]
		}
		return auxBank[0]
	}
	return engine.Neutral
}

func (n *Nonagon) AuxPress(index int) {
	switch {
	case index == AuxTransport:
		if n.playing.Load() {
			n.Stop()
		} else {
			n.Start()
		}
	case index == AuxMuteAll:
		for {
			old := n.muteAll.Load()
			if n.muteAll.CompareAndSwap(old, !old) {
				break
			}
		}
	case index >= AuxFirstBank && index < n.aux:
		n.QueuePattern(index - AuxFirstBank)
	}
}

// AuxLabel names aux button index for legends
func (n *Nonagon) AuxLabel(index int) string {
	switch {
	case index == AuxTransport:
		return "play"
	case index == AuxMuteAll:
		return "mute all"
	case index >= AuxFirstBank && index < n.aux:
		return fmt.Sprintf("pattern %d", index-AuxFirstBank+1)
	}
	return ""
}

// AuxCount is how many aux indicators the engine exposes
func (n *Nonagon) AuxCount() int {
	return n.aux
}

// Start plays from step zero
func (n *Nonagon) Start() {
	n.restart.Store(true)
	n.playing.Store(true)
}

// Stop halts the clock. Ringing voices decay on their own.
func (n *Nonagon) Stop() {
	n.playing.Store(false)
	n.playhead.Store(-1)
}

func (n *Nonagon) Playing() bool {
	return n.playing.Load()
}

func (n *Nonagon) Tempo() float64 {
	return math.Float64frombits(n.tempo.Load())
}

// SetTempo sets beats per minute; zero means the default
func (n *Nonagon) SetTempo(bpm float64) {
	if bpm == 0 {
		bpm = DefaultTempo
	}
	n.tempo.Store(math.Float64bits(min(max(bpm, MinTempo), MaxTempo)))
}

// QueuePattern switches patterns at the next master loop boundary, or
// right away when stopped
func (n *Nonagon) QueuePattern(p int) {
	if p < 0 || p >= MaxPatterns {
		return
	}
	n.next.Store(int32(p))
	if !n.playing.Load() {
		n.pattern.Store(int32(p))
	}
}

// Patterns returns the playing and queued pattern
func (n *Nonagon) Patterns() (pattern, next int) {
	return int(n.pattern.Load()), int(n.next.Load())
}

// Length returns voice v's loop length
func (n *Nonagon) Length(v int) int {
	return int(n.lengths[v].Load())
}

// masterLength is the longest loop; pattern switches wait for it
func (n *Nonagon) masterLength() int {
	longest := 1
	for v := range n.lengths {
		if l := int(n.lengths[v].Load()); l > longest {
			longest = l
		}
	}
	return longest
}

func (n *Nonagon) mutedVoices() uint8 {
	if n.muteAll.Load() {
		return 0xff
	}
	return uint8(n.cells[grid.CoMute].Load())
}

// Process renders one block: sixteenth-note steps against the sample
// clock, summed voices copied into every channel
func (n *Nonagon) Process(buffers [][]float32, frames int) {
	if n.restart.Swap(false) {
		n.step = 0
		n.untilStep = 0
	}
	if struck := n.pending.Swap(0); struck != 0 {
		for v := range n.voices {
			if struck&(1<<v) != 0 {
				n.voices[v].strike()
			}
		}
	}

	playing := n.playing.Load()
	perStep := n.sampleRate * 60 / (n.Tempo() * 4)

	for i := 0; i < frames; i++ {
		if playing {
			if n.untilStep <= 0 {
				n.advance()
				n.untilStep += perStep
			}
			n.untilStep--
		}
		var mix float32
		for v := range n.voices {
			mix += n.voices[v].next()
		}
		for _, ch := range buffers {
			if i < len(ch) {
				ch[i] = mix
			}
		}
	}
}

func (n *Nonagon) advance() {
	if n.step%n.masterLength() == 0 {
		n.pattern.Store(n.next.Load())
	}
	bits := n.patterns[n.pattern.Load()].Load()
	muted := n.mutedVoices()

	// Each voice loops at its own length
	for v := 0; v < Voices; v++ {
		s := n.step % int(n.lengths[v].Load())
		if bits&bit(s, v) == 0 || muted&(1<<v) != 0 {
			continue
		}
		n.voices[v].strike()
		n.emit(midi.Event{Type: midi.NoteOn, Channel: drumChannel, Note: n.kit.Notes[v], Velocity: 100})
	}

	n.playhead.Store(int64(n.step))
	n.step = (n.step + 1) % stepWrap
}

// emit hands a note to the output goroutine without blocking the render
func (n *Nonagon) emit(ev midi.Event) {
	select {
	case n.out <- ev:
	default:
		n.dropped.Add(1)
	}
}

// Dropped counts notes lost to a full output queue
func (n *Nonagon) Dropped() uint64 {
	return n.dropped.Load()
}

func (n *Nonagon) midiOutLoop() {
	for {
		select {
		case <-n.done:
			return
		case ev := <-n.out:
			s := n.sender.Load()
			if s == nil {
				continue
			}
			if err := s.send(ev.Message()); err != nil {
				debug.LogEvery(50, "engine", "midi out: %v", err)
			}
		}
	}
}

func (n *Nonagon) closed() bool {
	select {
	case <-n.done:
		return true
	default:
		return false
	}
}

// SetMidiOutput routes triggered notes to output port index. NoneSelected,
// or a port that fails to open, leaves the output disconnected.
func (n *Nonagon) SetMidiOutput(index int) {
	n.sender.Store(nil)
	n.outIndex.Store(engine.NoneSelected)
	if index < 0 || n.ports == nil || n.closed() {
		return
	}
	send, err := n.ports.OpenOut(index)
	if err != nil {
		debug.Log("engine", "midi output %d: %v", index, err)
		return
	}
	n.sender.Store(&sender{send: send})
	n.outIndex.Store(int32(index))
	debug.Log("engine", "midi output -> %d", index)
}

// SetMidiInput listens on input port index: Start and Stop drive the
// transport, kit notes strike their voice
func (n *Nonagon) SetMidiInput(index int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stopIn != nil {
		n.stopIn()
		n.stopIn = nil
	}
	n.inIndex.Store(engine.NoneSelected)
	if index < 0 || n.ports == nil || n.closed() {
		return
	}
	stop, err := n.ports.ListenIn(index, n.receive)
	if err != nil {
		debug.Log("engine", "midi input %d: %v", index, err)
		return
	}
	n.stopIn = stop
	n.inIndex.Store(int32(index))
	debug.Log("engine", "midi input <- %d", index)
}

// MidiPorts returns the selected input and output indices
func (n *Nonagon) MidiPorts() (in, out int) {
	return int(n.inIndex.Load()), int(n.outIndex.Load())
}

func (n *Nonagon) receive(msg gomidi.Message) {
	ev, ok := midi.ParseEvent(msg)
	if !ok {
		return
	}
	switch ev.Type {
	case midi.Start:
		n.Start()
	case midi.Stop:
		n.Stop()
	case midi.NoteOn:
		if v := n.kit.Voice(ev.Note); v >= 0 {
			n.pending.Or(1 << v)
		}
	}
}

// Close stops MIDI input and the output goroutine. Safe to call twice.
func (n *Nonagon) Close() error {
	n.closeOnce.Do(func() {
		n.mu.Lock()
		if n.stopIn != nil {
			n.stopIn()
			n.stopIn = nil
		}
		n.mu.Unlock()
		n.sender.Store(nil)
		close(n.done)
	})
	return nil
}
