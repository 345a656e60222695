package grid

import "fmt"

// Physical matrix size. Every logical surface is folded onto this.
const (
	Width  = 8
	Height = 8
)

// Surface identifies one logical control grid
type Surface int

const (
	CoMute Surface = iota
	Swing
	Matrix
	TimbreFire
	TimbreEarth
	TimbreWater
	Topology
	Interval
	LHS
	RHS
	ArpFire
	ArpEarth
	ArpWater

	NumSurfaces
)

// StoreSize is the number of physical cells the engine owns
const StoreSize = int(NumSurfaces) * Width * Height

var surfaceNames = [NumSurfaces]string{
	CoMute:      "co-mute",
	Swing:       "swing",
	Matrix:      "matrix",
	TimbreFire:  "timbre-fire",
	TimbreEarth: "timbre-earth",
	TimbreWater: "timbre-water",
	Topology:    "topology",
	Interval:    "interval",
	LHS:         "lhs",
	RHS:         "rhs",
	ArpFire:     "arp-fire",
	ArpEarth:    "arp-earth",
	ArpWater:    "arp-water",
}

func (s Surface) String() string {
	if !s.Valid() {
		return fmt.Sprintf("surface(%d)", int(s))
	}
	return surfaceNames[s]
}

// Valid reports whether s is one of the declared surfaces
func (s Surface) Valid() bool {
	return s >= 0 && s < NumSurfaces
}

// Surfaces returns every surface in declaration order
func Surfaces() []Surface {
	out := make([]Surface, NumSurfaces)
	for i := range out {
		out[i] = Surface(i)
	}
	return out
}

// ParseSurface looks a surface up by its String name
func ParseSurface(name string) (Surface, error) {
	for i, n := range surfaceNames {
		if n == name {
			return Surface(i), nil
		}
	}
	return 0, fmt.Errorf("unknown surface %q", name)
}

// Cell is a physical cell: X in [0,Width), Y in [0,Height)
type Cell struct {
	Surface Surface
	X, Y    int
}

// Map folds a logical coordinate onto the physical matrix of its surface.
// Both axes wrap independently. It is the only way cells are addressed.
func Map(s Surface, x, y int) Cell {
	return Cell{Surface: s, X: wrap(x, Width), Y: wrap(y, Height)}
}

func wrap(v, n int) int {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}

// InRange reports whether c addresses a real physical cell
func (c Cell) InRange() bool {
	return c.Surface.Valid() && c.X >= 0 && c.X < Width && c.Y >= 0 && c.Y < Height
}

// Index returns the dense position of c in a StoreSize-long store
func (c Cell) Index() int {
	return (int(c.Surface)*Height+c.Y)*Width + c.X
}

// CellAt is the inverse of Cell.Index
func CellAt(i int) Cell {
	return Cell{
		Surface: Surface(i / (Width * Height)),
		X:       i % Width,
		Y:       (i / Width) % Height,
	}
}

func (c Cell) String() string {
	return fmt.Sprintf("%s(%d,%d)", c.Surface, c.X, c.Y)
}

// Check panics if c is outside the physical store. Out-of-range cells can
// only come from code that bypassed Map, so this is a bug, not input.
func Check(c Cell) {
	if !c.InRange() {
		panic(fmt.Sprintf("grid: physical cell out of range: %s", c))
	}
}
