package grid

// Pane is a composite layout that packs two surfaces side by side in a
// 2*Width wide view. Views pass their own column numbers (0..15) and the
// pane decides which surface owns the column.
type Pane struct {
	Name  string
	Left  Surface
	Right Surface
}

// Columns is the logical width of a pane
const Columns = 2 * Width

// Resolve picks the owning surface for a pane column. The coordinates are
// returned untouched; wrapping into the surface happens in Map.
func (p Pane) Resolve(x, y int) (Surface, int, int) {
	if x < Width {
		return p.Left, x, y
	}
	return p.Right, x, y
}

// Cell resolves and maps a pane coordinate in one step
func (p Pane) Cell(x, y int) Cell {
	s, lx, ly := p.Resolve(x, y)
	return Map(s, lx, ly)
}

// Default panes, matching the grid and theory pages of the controller
var (
	GridPane   = Pane{Name: "Grid", Left: Matrix, Right: RHS}
	TheoryPane = Pane{Name: "Theory", Left: CoMute, Right: Topology}
)
