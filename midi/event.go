package midi

import gomidi "gitlab.com/gomidi/midi/v2"

// MIDI message types
const (
	NoteOn  uint8 = 0x90
	NoteOff uint8 = 0x80
	CC      uint8 = 0xB0
	Start   uint8 = 0xFA
	Stop    uint8 = 0xFC
)

// Event is a MIDI event travelling between the engine and the ports. It is a
// plain value so it can cross goroutines through a channel without
// allocating.
type Event struct {
	Type     uint8 // NoteOn, NoteOff, CC, Start, Stop
	Channel  uint8 // 0-15
	Note     uint8 // note or controller number
	Velocity uint8 // velocity or controller value
}

// Message converts the event to a wire message
func (e Event) Message() gomidi.Message {
	switch e.Type {
	case NoteOn:
		return gomidi.NoteOn(e.Channel, e.Note, e.Velocity)
	case NoteOff:
		return gomidi.NoteOff(e.Channel, e.Note)
	case CC:
		return gomidi.ControlChange(e.Channel, e.Note, e.Velocity)
	case Start:
		return gomidi.Start()
	case Stop:
		return gomidi.Stop()
	}
	return nil
}

// ParseEvent decodes the messages the engine cares about. ok is false for
// anything else.
func ParseEvent(msg gomidi.Message) (e Event, ok bool) {
	var channel, note, velocity uint8
	switch {
	case msg.GetNoteStart(&channel, &note, &velocity):
		return Event{Type: NoteOn, Channel: channel, Note: note, Velocity: velocity}, true
	case msg.GetNoteEnd(&channel, &note):
		return Event{Type: NoteOff, Channel: channel, Note: note}, true
	case msg.GetControlChange(&channel, &note, &velocity):
		return Event{Type: CC, Channel: channel, Note: note, Velocity: velocity}, true
	case msg.Is(gomidi.StartMsg):
		return Event{Type: Start}, true
	case msg.Is(gomidi.StopMsg):
		return Event{Type: Stop}, true
	}
	return Event{}, false
}
