package midi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// NoneSelected is the index meaning "no port". It is also what an empty
// device list selects.
const NoneSelected = -1

// NoneName labels the NoneSelected entry
const NoneName = "None"

// ErrScanTimeout is returned when the MIDI system does not answer
var ErrScanTimeout = errors.New("midi port scan timed out")

// Port is one selectable MIDI port. Index is the driver's port number, or
// NoneSelected for the "None" entry.
type Port struct {
	Index int
	Name  string
}

// PortList is a set of choices that always starts with the "None" entry
type PortList struct {
	Ports    []Port
	Selected int // a Port.Index
}

// NewPortList builds a list from port names with nothing selected
func NewPortList(names []string) PortList {
	pl := PortList{Ports: []Port{{Index: NoneSelected, Name: NoneName}}, Selected: NoneSelected}
	for i, n := range names {
		pl.Ports = append(pl.Ports, Port{Index: i, Name: n})
	}
	return pl
}

// Empty reports whether there is nothing to choose besides "None"
func (pl PortList) Empty() bool {
	return len(pl.Ports) <= 1
}

// Select sets the selection, falling back to NoneSelected for indices that
// are not in the list. It returns the effective selection.
func (pl *PortList) Select(index int) int {
	pl.Selected = NoneSelected
	for _, p := range pl.Ports {
		if p.Index == index {
			pl.Selected = index
			break
		}
	}
	return pl.Selected
}

// SelectName selects the port with the given name, or None
func (pl *PortList) SelectName(name string) int {
	return pl.Select(pl.IndexOf(name))
}

// IndexOf returns the port index for a name, or NoneSelected
func (pl PortList) IndexOf(name string) int {
	if name == "" {
		return NoneSelected
	}
	for _, p := range pl.Ports {
		if p.Index != NoneSelected && p.Name == name {
			return p.Index
		}
	}
	return NoneSelected
}

// SelectedName returns the selected port's name; "" for None
func (pl PortList) SelectedName() string {
	if pl.Selected == NoneSelected {
		return ""
	}
	for _, p := range pl.Ports {
		if p.Index == pl.Selected {
			return p.Name
		}
	}
	return ""
}

// Position returns where the selection sits in Ports (0 is None)
func (pl PortList) Position() int {
	for i, p := range pl.Ports {
		if p.Index == pl.Selected {
			return i
		}
	}
	return 0
}

// Ports is a snapshot of the system's MIDI ports
type Ports struct {
	Ins  []drivers.In
	Outs []drivers.Out
}

// InputList returns the inputs as a selectable list
func (p Ports) InputList() PortList {
	names := make([]string, len(p.Ins))
	for i, in := range p.Ins {
		names[i] = in.String()
	}
	return NewPortList(names)
}

// OutputList returns the outputs as a selectable list
func (p Ports) OutputList() PortList {
	names := make([]string, len(p.Outs))
	for i, out := range p.Outs {
		names[i] = out.String()
	}
	return NewPortList(names)
}

// ScanPorts reads the current MIDI ports with a timeout (CoreMIDI can hang)
func ScanPorts(timeout time.Duration) (Ports, error) {
	ch := make(chan Ports, 1)
	go func() {
		ch <- Ports{Ins: gomidi.GetInPorts(), Outs: gomidi.GetOutPorts()}
	}()

	select {
	case p := <-ch:
		return p, nil
	case <-time.After(timeout):
		// User needs to run: sudo killall coreaudiod midiserver
		return Ports{}, ErrScanTimeout
	}
}

// System opens real ports through the registered gomidi driver
type System struct {
	Timeout time.Duration
}

func (s System) timeout() time.Duration {
	if s.Timeout <= 0 {
		return 3 * time.Second
	}
	return s.Timeout
}

// OpenOut opens output port index and returns its send function
func (s System) OpenOut(index int) (func(gomidi.Message) error, error) {
	ports, err := ScanPorts(s.timeout())
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(ports.Outs) {
		return nil, fmt.Errorf("output port %d: no such port", index)
	}
	send, err := gomidi.SendTo(ports.Outs[index])
	if err != nil {
		return nil, fmt.Errorf("open output %q: %w", ports.Outs[index].String(), err)
	}
	return send, nil
}

// ListenIn starts listening on input port index. The returned func stops it.
func (s System) ListenIn(index int, recv func(gomidi.Message)) (func(), error) {
	ports, err := ScanPorts(s.timeout())
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(ports.Ins) {
		return nil, fmt.Errorf("input port %d: no such port", index)
	}
	stop, err := gomidi.ListenTo(ports.Ins[index], func(msg gomidi.Message, timestampms int32) {
		recv(msg)
	})
	if err != nil {
		return nil, fmt.Errorf("open input %q: %w", ports.Ins[index].String(), err)
	}
	return stop, nil
}

func isLaunchpad(name string) bool {
	name = strings.ToLower(name)
	return strings.Contains(name, "launchpad") && strings.Contains(name, "midi")
}
