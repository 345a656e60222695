package midi

// ControllerType identifies the kind of controller
type ControllerType int

const (
	ControllerUnknown ControllerType = iota
	ControllerLaunchpad
)

// PadEvent is sent when a pad/button goes down or comes up on a grid
// controller. Controllers report every raw edge they see; de-duplication
// happens downstream.
type PadEvent struct {
	Row, Col int
	Velocity uint8
	Pressed  bool
}

// LEDUpdate is one LED change in a batch
type LEDUpdate struct {
	Row, Col int
	Color    [3]uint8
	Channel  uint8
}

// Controller is the interface for MIDI grid controllers
type Controller interface {
	ID() string
	Type() ControllerType

	// Input events from the controller
	PadEvents() <-chan PadEvent

	// Output to the controller
	SetLEDRGB(row, col int, rgb [3]uint8, channel uint8) error // maps RGB to palette
	SetLEDBatch(updates []LEDUpdate) error

	// Lifecycle
	Close() error
}

// Channel modes for LEDs (use as 'channel' parameter)
const (
	ChannelStatic uint8 = 0 // solid color
	ChannelFlash  uint8 = 1 // flashing A/B alternating
	ChannelPulse  uint8 = 2 // pulsing (fades)
)

// Launchpad grid geometry: 8x8 pads, a right column (col 8) of scene
// buttons and a top row (row 8) of control buttons
const (
	GridRows  = 8
	GridCols  = 8
	RightCol  = 8
	TopRow    = 8
	TopRowLen = 8
)
