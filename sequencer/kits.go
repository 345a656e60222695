package sequencer

import "math"

// Voices is the number of Matrix rows; each row is one voice
const Voices = 8

// DrumKit maps the eight voices to MIDI notes
type DrumKit struct {
	Name  string
	Notes [Voices]uint8
}

// Voice order: kick, snare, closed HH, open HH, low tom, high tom, clap, rimshot

// Kits contains all available drum kit mappings
var Kits = map[string]DrumKit{
	"gm": {
		Name:  "General MIDI",
		Notes: [Voices]uint8{36, 38, 42, 46, 41, 45, 39, 37},
	},
	"rd8": {
		Name: "Behringer RD-8",
		// RD-8 snare is 40, not 38
		Notes: [Voices]uint8{36, 40, 42, 46, 45, 50, 39, 37},
	},
	"tr8s": {
		Name:  "Roland TR-8S",
		Notes: [Voices]uint8{36, 38, 42, 46, 41, 45, 39, 37},
	},
	"er1": {
		Name:  "Korg ER-1",
		Notes: [Voices]uint8{36, 38, 42, 46, 40, 41, 39, 43},
	},
}

// KitNames returns the list of available kit names
func KitNames() []string {
	return []string{"gm", "rd8", "tr8s", "er1"}
}

// GetKit returns a kit by name, defaulting to GM if not found
func GetKit(name string) DrumKit {
	if kit, ok := Kits[name]; ok {
		return kit
	}
	return Kits[DefaultKit]
}

// DefaultKit is the default kit name
const DefaultKit = "gm"

// Voice returns the voice playing note, or -1
func (k DrumKit) Voice(note uint8) int {
	for v, n := range k.Notes {
		if n == note {
			return v
		}
	}
	return -1
}

// pitch is the synth frequency for a voice. Drum notes sit low, so the
// internal voices are shifted up two octaves.
func (k DrumKit) pitch(v int) float64 {
	return 440 * math.Pow(2, (float64(k.Notes[v])+24-69)/12)
}
