package sequencer

import (
	"go-nonagon/grid"
)

// State is the saved form of everything a user edits. Transport and
// playhead are runtime only and not part of it.
type State struct {
	Tempo    float64             `json:"tempo"`
	Kit      string              `json:"kit"`
	Pattern  int                 `json:"pattern"`
	Patterns [MaxPatterns]uint64 `json:"patterns"`
	Lengths  [Voices]int         `json:"lengths"`
	MuteAll  bool                `json:"muteAll"`

	// Toggle bits for every surface except Matrix and Topology, keyed by
	// surface name
	Surfaces map[string]uint64 `json:"surfaces,omitempty"`
}

// State captures the engine's editable state
func (n *Nonagon) State() State {
	st := State{
		Tempo:    n.Tempo(),
		Kit:      n.kitID,
		Pattern:  int(n.next.Load()),
		MuteAll:  n.muteAll.Load(),
		Surfaces: make(map[string]uint64),
	}
	for p := range n.patterns {
		st.Patterns[p] = n.patterns[p].Load()
	}
	for v := range n.lengths {
		st.Lengths[v] = int(n.lengths[v].Load())
	}
	for _, s := range grid.Surfaces() {
		if s == grid.Matrix || s == grid.Topology {
			continue
		}
		if bits := n.cells[s].Load(); bits != 0 {
			st.Surfaces[s.String()] = bits
		}
	}
	return st
}

// Restore loads st into the engine. Out-of-range values are clamped and
// unknown surfaces skipped. The kit is fixed at construction and ignored.
func (n *Nonagon) Restore(st State) {
	n.SetTempo(st.Tempo)
	for p := range n.patterns {
		n.patterns[p].Store(st.Patterns[p])
	}
	for v := range n.lengths {
		l := st.Lengths[v]
		if l == 0 {
			l = grid.Width
		}
		n.lengths[v].Store(int32(min(max(l, 1), grid.Width)))
	}
	n.muteAll.Store(st.MuteAll)
	for _, s := range grid.Surfaces() {
		n.cells[s].Store(0)
	}
	for name, bits := range st.Surfaces {
		s, err := grid.ParseSurface(name)
		if err != nil || s == grid.Matrix || s == grid.Topology {
			continue
		}
		n.cells[s].Store(bits)
	}
	n.QueuePattern(st.Pattern)
}
