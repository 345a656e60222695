package midi

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

func TestDecodePad_PressAndRelease(t *testing.T) {
	ev, ok := decodePad(gomidi.NoteOn(0, 34, 100))
	require.True(t, ok)
	assert.Equal(t, PadEvent{Row: 2, Col: 3, Velocity: 100, Pressed: true}, ev)

	ev, ok = decodePad(gomidi.NoteOn(0, 34, 0))
	require.True(t, ok)
	assert.Equal(t, PadEvent{Row: 2, Col: 3}, ev)

	ev, ok = decodePad(gomidi.NoteOff(0, 89))
	require.True(t, ok)
	assert.Equal(t, PadEvent{Row: 7, Col: RightCol}, ev)

	ev, ok = decodePad(gomidi.ControlChange(0, 93, 127))
	require.True(t, ok)
	assert.Equal(t, PadEvent{Row: TopRow, Col: 2, Velocity: 127, Pressed: true}, ev)

	ev, ok = decodePad(gomidi.ControlChange(0, 93, 0))
	require.True(t, ok)
	assert.False(t, ev.Pressed)

	_, ok = decodePad(gomidi.NoteOn(0, 5, 100))
	assert.False(t, ok, "note outside the grid")
	_, ok = decodePad(gomidi.ControlChange(0, 7, 100))
	assert.False(t, ok)
}

func TestNoteMapping_RoundTrip(t *testing.T) {
	for row := 0; row < GridRows; row++ {
		for col := 0; col <= RightCol; col++ {
			r, c := noteToRowCol(rowColToNote(row, col))
			assert.Equal(t, row, r)
			assert.Equal(t, col, c)
		}
	}
	for col := 0; col < TopRowLen; col++ {
		r, c := noteToRowCol(rowColToNote(TopRow, col))
		assert.Equal(t, TopRow, r)
		assert.Equal(t, col, c)
	}
}

func TestMapRGBToLaunchpad(t *testing.T) {
	assert.Equal(t, uint8(0), mapRGBToLaunchpad([3]uint8{0, 0, 0}))
	assert.Equal(t, uint8(5), mapRGBToLaunchpad([3]uint8{250, 0, 0}))
	assert.Equal(t, uint8(21), mapRGBToLaunchpad([3]uint8{0, 250, 0}))
	assert.Equal(t, uint8(119), mapRGBToLaunchpad([3]uint8{255, 255, 255}))
}

func TestEvent_MessageRoundTrip(t *testing.T) {
	for _, e := range []Event{
		{Type: NoteOn, Channel: 3, Note: 60, Velocity: 90},
		{Type: NoteOff, Channel: 3, Note: 60},
		{Type: CC, Channel: 1, Note: 74, Velocity: 12},
		{Type: Start},
		{Type: Stop},
	} {
		got, ok := ParseEvent(e.Message())
		require.True(t, ok, "%+v", e)
		assert.Equal(t, e, got)
	}
	assert.Nil(t, Event{Type: 0x42}.Message())
}

func TestPortList_NoneSentinel(t *testing.T) {
	empty := NewPortList(nil)
	assert.True(t, empty.Empty())
	assert.Equal(t, NoneSelected, empty.Selected)
	require.Len(t, empty.Ports, 1)
	assert.Equal(t, NoneName, empty.Ports[0].Name)
	assert.Equal(t, NoneSelected, empty.Select(0), "selecting a missing port falls back to None")
	assert.Equal(t, "", empty.SelectedName())

	pl := NewPortList([]string{"IAC Bus 1", "Launchpad X LPX MIDI"})
	assert.False(t, pl.Empty())
	assert.Equal(t, 1, pl.SelectName("Launchpad X LPX MIDI"))
	assert.Equal(t, "Launchpad X LPX MIDI", pl.SelectedName())
	assert.Equal(t, 2, pl.Position())
	assert.Equal(t, NoneSelected, pl.SelectName(""))
	assert.Equal(t, 0, pl.Position())
	assert.Equal(t, NoneSelected, pl.IndexOf(NoneName))
}

type fakeIn struct {
	drivers.In
	name string
}

func (f fakeIn) String() string { return f.name }

type fakeOut struct {
	drivers.Out
	name string
}

func (f fakeOut) String() string { return f.name }

type fakeController struct {
	id     string
	mu     sync.Mutex
	closed bool
	pads   chan PadEvent
}

func (f *fakeController) ID() string                 { return f.id }
func (f *fakeController) Type() ControllerType       { return ControllerLaunchpad }
func (f *fakeController) PadEvents() <-chan PadEvent { return f.pads }
func (f *fakeController) SetLEDRGB(int, int, [3]uint8, uint8) error {
	return nil
}
func (f *fakeController) SetLEDBatch([]LEDUpdate) error { return nil }
func (f *fakeController) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestDeviceManager_HotPlug(t *testing.T) {
	dm := NewDeviceManager()
	dm.pollRate = 10 * time.Millisecond

	var mu sync.Mutex
	present := true
	dm.scan = func() (Ports, error) {
		mu.Lock()
		defer mu.Unlock()
		if !present {
			return Ports{Ins: []drivers.In{fakeIn{name: "IAC Bus"}}}, nil
		}
		return Ports{
			Ins:  []drivers.In{fakeIn{name: "IAC Bus"}, fakeIn{name: "Launchpad X LPX MIDI"}},
			Outs: []drivers.Out{fakeOut{name: "Launchpad X LPX MIDI"}},
		}, nil
	}
	var made *fakeController
	dm.connect = func(id string, in drivers.In, out drivers.Out) (Controller, error) {
		assert.NotNil(t, out, "matching output port is paired")
		made = &fakeController{id: id, pads: make(chan PadEvent)}
		return made, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dm.Run(ctx)

	ev := <-dm.Events()
	assert.Equal(t, DeviceConnected, ev.Type)
	assert.Equal(t, "Launchpad X LPX MIDI", ev.ID)
	assert.NotNil(t, dm.GetLaunchpad())

	mu.Lock()
	present = false
	mu.Unlock()

	ev = <-dm.Events()
	assert.Equal(t, DeviceDisconnected, ev.Type)
	assert.Nil(t, dm.GetLaunchpad())
	made.mu.Lock()
	assert.True(t, made.closed)
	made.mu.Unlock()

	cancel()
	for range dm.Events() {
	}
}

func TestDeviceManager_ScanErrorSkipsPoll(t *testing.T) {
	dm := NewDeviceManager()
	dm.scan = func() (Ports, error) { return Ports{}, ErrScanTimeout }
	dm.poll(context.Background())
	assert.Empty(t, dm.Controllers())
}

func TestDeviceManager_ConnectErrorSkipsPort(t *testing.T) {
	dm := NewDeviceManager()
	dm.scan = func() (Ports, error) {
		return Ports{Ins: []drivers.In{fakeIn{name: "Launchpad X LPX MIDI"}}}, nil
	}
	dm.connect = func(string, drivers.In, drivers.Out) (Controller, error) {
		return nil, errors.New("busy")
	}
	dm.poll(context.Background())
	assert.Empty(t, dm.Controllers())
}
