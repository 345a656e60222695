package sequencer

import (
	"errors"
	"sync"
	"testing"
	"time"

	"go-nonagon/engine"
	"go-nonagon/grid"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"
)

type fakePorts struct {
	mu      sync.Mutex
	sent    []gomidi.Message
	recv    func(gomidi.Message)
	stopped int
	outErr  error
}

func (f *fakePorts) OpenOut(index int) (func(gomidi.Message) error, error) {
	if f.outErr != nil {
		return nil, f.outErr
	}
	return func(m gomidi.Message) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.sent = append(f.sent, m)
		return nil
	}, nil
}

func (f *fakePorts) ListenIn(index int, recv func(gomidi.Message)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recv = recv
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.stopped++
	}, nil
}

func (f *fakePorts) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// 480 Hz at 120 bpm gives 60 samples per step
const testRate = 480

func newTestEngine(t *testing.T, ports Ports) *Nonagon {
	t.Helper()
	n, err := New(Options{SampleRate: testRate, AuxCount: 4, Ports: ports})
	require.NoError(t, err)
	t.Cleanup(func() { n.Close() })
	return n
}

func buffers(channels, frames int) [][]float32 {
	b := make([][]float32, channels)
	for i := range b {
		b[i] = make([]float32, frames)
	}
	return b
}

func steps(n int) int { return n * testRate * 60 / (DefaultTempo * 4) }

func TestNew_RejectsBadSampleRate(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, ErrSampleRate)

	h, err := engine.Open(Create(Options{}))
	assert.Error(t, err)
	assert.Nil(t, h)
}

func TestNew_Defaults(t *testing.T) {
	n := newTestEngine(t, nil)
	assert.Equal(t, DefaultTempo, n.Tempo())
	assert.Equal(t, 4, n.AuxCount())
	for v := 0; v < Voices; v++ {
		assert.Equal(t, grid.Width, n.Length(v))
	}
	in, out := n.MidiPorts()
	assert.Equal(t, engine.NoneSelected, in)
	assert.Equal(t, engine.NoneSelected, out)

	n2, err := New(Options{SampleRate: testRate, AuxCount: 40, Tempo: 1000})
	require.NoError(t, err)
	defer n2.Close()
	assert.Equal(t, AuxFirstBank+MaxPatterns, n2.AuxCount())
	assert.Equal(t, MaxTempo, n2.Tempo())
}

func TestPress_TogglesAndHolds(t *testing.T) {
	n := newTestEngine(t, nil)
	sh := n.shades[grid.Matrix]

	assert.Equal(t, sh.off, n.Color(grid.Matrix, 1, 2))
	n.Press(grid.Matrix, 1, 2)
	assert.Equal(t, sh.held, n.Color(grid.Matrix, 1, 2))
	n.Release(grid.Matrix, 1, 2)
	assert.Equal(t, sh.on, n.Color(grid.Matrix, 1, 2))

	n.Press(grid.Matrix, 1, 2)
	n.Release(grid.Matrix, 1, 2)
	assert.Equal(t, sh.off, n.Color(grid.Matrix, 1, 2))

	// Surfaces are independent
	n.Press(grid.Interval, 1, 2)
	n.Release(grid.Interval, 1, 2)
	assert.Equal(t, n.shades[grid.Interval].on, n.Color(grid.Interval, 1, 2))
	assert.Equal(t, sh.off, n.Color(grid.Matrix, 1, 2))
}

func TestPress_OutOfRangePanics(t *testing.T) {
	n := newTestEngine(t, nil)
	assert.Panics(t, func() { n.Press(grid.Matrix, 8, 0) })
	assert.Panics(t, func() { n.Color(grid.Matrix, 0, -1) })
	assert.Panics(t, func() { n.Release(grid.NumSurfaces, 0, 0) })
}

func TestTopology_SetsLoopLength(t *testing.T) {
	n := newTestEngine(t, nil)
	n.Press(grid.Topology, 2, 5)
	n.Release(grid.Topology, 2, 5)
	assert.Equal(t, 3, n.Length(5))

	sh := n.shades[grid.Topology]
	assert.Equal(t, sh.on, n.Color(grid.Topology, 1, 5))
	assert.Equal(t, sh.accent, n.Color(grid.Topology, 2, 5))
	assert.Equal(t, sh.off, n.Color(grid.Topology, 3, 5))
}

func TestProcess_StoppedIsSilent(t *testing.T) {
	n := newTestEngine(t, nil)
	n.Press(grid.Matrix, 0, 0)

	bufs := buffers(2, 256)
	for i := range bufs[0] {
		bufs[0][i] = 1
	}
	n.Process(bufs, 256)
	for _, ch := range bufs {
		for _, s := range ch {
			require.Zero(t, s)
		}
	}
}

func TestProcess_PlaysActiveStep(t *testing.T) {
	n := newTestEngine(t, nil)
	n.Press(grid.Matrix, 0, 0)
	n.AuxPress(AuxTransport)
	require.True(t, n.Playing())

	bufs := buffers(2, 64)
	n.Process(bufs, 64)

	var energy float32
	for i := range bufs[0] {
		assert.Equal(t, bufs[0][i], bufs[1][i], "channels carry the same mix")
		energy += bufs[0][i] * bufs[0][i]
	}
	assert.Greater(t, energy, float32(0))
}

func TestProcess_MutedVoiceIsSilent(t *testing.T) {
	for name, mute := range map[string]func(n *Nonagon){
		"comute row": func(n *Nonagon) { n.Press(grid.CoMute, 0, 0) },
		"mute all":   func(n *Nonagon) { n.AuxPress(AuxMuteAll) },
	} {
		t.Run(name, func(t *testing.T) {
			n := newTestEngine(t, nil)
			n.Press(grid.Matrix, 0, 0)
			mute(n)
			n.Start()

			bufs := buffers(1, 64)
			n.Process(bufs, 64)
			for _, s := range bufs[0] {
				require.Zero(t, s)
			}
		})
	}
}

func TestProcess_ShortBufferIsClamped(t *testing.T) {
	n := newTestEngine(t, nil)
	n.Start()
	bufs := [][]float32{make([]float32, 16), make([]float32, 64)}
	assert.NotPanics(t, func() { n.Process(bufs, 64) })
}

func TestProcess_DoesNotAllocate(t *testing.T) {
	n := newTestEngine(t, nil)
	for x := 0; x < grid.Width; x++ {
		n.Press(grid.Matrix, x, x)
	}
	n.Start()
	bufs := buffers(2, 256)
	allocs := testing.AllocsPerRun(50, func() { n.Process(bufs, 256) })
	assert.Zero(t, allocs)
}

func TestPolymeter_VoiceLoopsAtItsOwnLength(t *testing.T) {
	ports := &fakePorts{}
	n := newTestEngine(t, ports)
	n.SetMidiOutput(0)
	n.Press(grid.Matrix, 0, 0)
	n.Press(grid.Topology, 2, 0) // voice 0 loops every 3 steps
	n.Start()

	frames := steps(6)
	n.Process(buffers(1, frames), frames)

	// steps 0 and 3
	require.Eventually(t, func() bool { return ports.sentCount() == 2 }, time.Second, 5*time.Millisecond)
	var ch, key, vel uint8
	require.True(t, ports.sent[0].GetNoteOn(&ch, &key, &vel))
	assert.Equal(t, uint8(drumChannel), ch)
	assert.Equal(t, GetKit(DefaultKit).Notes[0], key)

	assert.Equal(t, 5%3, n.voiceStep(0))
	assert.Equal(t, 5, n.voiceStep(1))
}

func TestQueuePattern_WaitsForLoopBoundary(t *testing.T) {
	n := newTestEngine(t, nil)

	n.AuxPress(AuxFirstBank + 1)
	p, next := n.Patterns()
	assert.Equal(t, 1, p, "stopped engines switch right away")
	assert.Equal(t, 1, next)

	n.Start()
	n.Process(buffers(1, 1), 1)
	n.QueuePattern(0)
	p, next = n.Patterns()
	assert.Equal(t, 1, p)
	assert.Equal(t, 0, next)
	assert.Equal(t, auxBank[2], n.AuxColor(AuxFirstBank+1))
	assert.Equal(t, auxBank[1], n.AuxColor(AuxFirstBank))

	frames := steps(grid.Width)
	n.Process(buffers(1, frames), frames)
	p, _ = n.Patterns()
	assert.Equal(t, 0, p)
}

func TestAux_OutOfRangeIgnored(t *testing.T) {
	n := newTestEngine(t, nil)
	n.AuxPress(-1)
	n.AuxPress(n.AuxCount())
	n.AuxPress(99)
	assert.False(t, n.Playing())
	assert.Equal(t, engine.Neutral, n.AuxColor(n.AuxCount()))
	assert.Equal(t, auxTransport[0], n.AuxColor(AuxTransport))
	n.AuxPress(AuxTransport)
	assert.Equal(t, auxTransport[1], n.AuxColor(AuxTransport))
}

func TestAuxLabel(t *testing.T) {
	n := newTestEngine(t, nil)
	assert.Equal(t, "play", n.AuxLabel(AuxTransport))
	assert.Equal(t, "mute all", n.AuxLabel(AuxMuteAll))
	assert.Equal(t, "pattern 2", n.AuxLabel(3))
	assert.Empty(t, n.AuxLabel(4))
}

func TestMidiInput_TransportAndNotes(t *testing.T) {
	ports := &fakePorts{}
	n := newTestEngine(t, ports)
	n.SetMidiInput(0)
	in, _ := n.MidiPorts()
	assert.Equal(t, 0, in)

	ports.recv(gomidi.Start())
	assert.True(t, n.Playing())
	ports.recv(gomidi.Stop())
	assert.False(t, n.Playing())

	ports.recv(gomidi.NoteOn(9, GetKit(DefaultKit).Notes[2], 100))
	bufs := buffers(1, 32)
	n.Process(bufs, 32)
	var energy float32
	for _, s := range bufs[0] {
		energy += s * s
	}
	assert.Greater(t, energy, float32(0))

	n.SetMidiInput(engine.NoneSelected)
	assert.Equal(t, 1, ports.stopped)
	in, _ = n.MidiPorts()
	assert.Equal(t, engine.NoneSelected, in)
}

func TestMidiOutput_OpenFailureLeavesNone(t *testing.T) {
	ports := &fakePorts{outErr: errors.New("gone")}
	n := newTestEngine(t, ports)
	n.SetMidiOutput(3)
	_, out := n.MidiPorts()
	assert.Equal(t, engine.NoneSelected, out)
}

func TestClose_StopsInputOnce(t *testing.T) {
	ports := &fakePorts{}
	n, err := New(Options{SampleRate: testRate, Ports: ports})
	require.NoError(t, err)
	n.SetMidiInput(1)

	require.NoError(t, n.Close())
	require.NoError(t, n.Close())
	assert.Equal(t, 1, ports.stopped)

	n.SetMidiInput(1)
	in, _ := n.MidiPorts()
	assert.Equal(t, engine.NoneSelected, in, "closed engines do not reopen ports")
}

func TestEngine_ThroughHandle(t *testing.T) {
	h, err := engine.Open(Create(Options{SampleRate: testRate, AuxCount: 3}))
	require.NoError(t, err)
	assert.Equal(t, 3, h.AuxCount(2))
	_, ok := h.Engine().(engine.Clock)
	assert.True(t, ok)
	require.NoError(t, h.Close())
	assert.Nil(t, h.Engine())
}
