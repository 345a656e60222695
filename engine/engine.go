package engine

import "go-nonagon/grid"

// RGB is a colour with byte components. Normalising to floats is up to
// whoever draws it.
type RGB [3]uint8

// Neutral is returned for colour reads when there is no engine
var Neutral = RGB{0, 0, 0}

// NoneSelected is the MIDI port index meaning "no port"
const NoneSelected = -1

// Engine is the boundary the bridge is written against. All coordinates
// and indices are physical; the engine never wraps anything itself.
//
// Implementations must tolerate Press/Release/Color/AuxColor calls from the
// UI goroutines interleaving with Process on the audio goroutine.
type Engine interface {
	Press(s grid.Surface, x, y int)
	Release(s grid.Surface, x, y int)
	Color(s grid.Surface, x, y int) RGB

	AuxColor(index int) RGB
	AuxPress(index int)

	// Process renders one block. len(buffers) is the channel count and
	// every channel holds at least frames samples.
	Process(buffers [][]float32, frames int)

	SetMidiInput(index int)
	SetMidiOutput(index int)

	// Close releases everything the engine holds. It is called exactly once
	// by the owning Handle.
	Close() error
}

// AuxCounter is implemented by engines that know how many auxiliary
// indicators they expose
type AuxCounter interface {
	AuxCount() int
}

// AuxLabeler is implemented by engines that name their auxiliary buttons
type AuxLabeler interface {
	AuxLabel(index int) string
}

// Clock is implemented by engines with an adjustable tempo
type Clock interface {
	Tempo() float64
	SetTempo(bpm float64)
	Playing() bool
}
