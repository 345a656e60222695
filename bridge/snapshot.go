package bridge

import (
	"time"

	"go-nonagon/engine"
	"go-nonagon/grid"
)

// Snapshot is a point-in-time copy of every cell and auxiliary colour.
// Once published it is never written again, so readers need no locking.
type Snapshot struct {
	Seq   uint64
	Taken time.Time
	Cells [grid.StoreSize]engine.RGB
	Aux   []engine.RGB
}

// At returns the colour of a physical cell
func (s *Snapshot) At(c grid.Cell) engine.RGB {
	if s == nil || !c.InRange() {
		return engine.Neutral
	}
	return s.Cells[c.Index()]
}

// Color returns the colour for a logical cell
func (s *Snapshot) Color(surface grid.Surface, x, y int) engine.RGB {
	return s.At(grid.Map(surface, x, y))
}

// AuxColor returns an auxiliary indicator colour
func (s *Snapshot) AuxColor(i int) engine.RGB {
	if s == nil || i < 0 || i >= len(s.Aux) {
		return engine.Neutral
	}
	return s.Aux[i]
}

// Surface copies one surface out as rows: [y][x]
func (s *Snapshot) Surface(surface grid.Surface) [grid.Height][grid.Width]engine.RGB {
	var out [grid.Height][grid.Width]engine.RGB
	for y := 0; y < grid.Height; y++ {
		for x := 0; x < grid.Width; x++ {
			out[y][x] = s.At(grid.Cell{Surface: surface, X: x, Y: y})
		}
	}
	return out
}
