package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-nonagon/engine"
	"go-nonagon/grid"
	"go-nonagon/theme"
)

// Screen geometry of a rendered pane. Hit testing depends on these.
const (
	Indent     = 2 // columns before the first pad
	PadWidth   = 2 // columns a pad symbol takes
	CellStride = 3 // pad plus a space
	PaneGap    = 2 // extra columns between the two surfaces of a pane
	AuxStride  = 5 // "● 0" plus spacing
)

// RenderPad renders a single colored pad
func RenderPad(color engine.RGB, symbol string) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(color)))
	return style.Render(symbol)
}

// RenderPane renders two surfaces side by side, row 0 at the top. Surfaces
// are [y][x]. cursor is in pane coordinates (x 0-15) or nil.
func RenderPane(left, right [grid.Height][grid.Width]engine.RGB, cursor *[2]int, sym theme.Symbols) string {
	var lines []string
	for y := 0; y < grid.Height; y++ {
		var line strings.Builder
		line.WriteString(strings.Repeat(" ", Indent))
		for x := 0; x < grid.Columns; x++ {
			if x == grid.Width {
				line.WriteString(strings.Repeat(" ", PaneGap))
			}
			c := left[y][x%grid.Width]
			if x >= grid.Width {
				c = right[y][x-grid.Width]
			}
			symbol := sym.Pad
			if cursor != nil && cursor[0] == x && cursor[1] == y {
				symbol = sym.Cursor
			}
			line.WriteString(RenderPad(c, symbol))
			line.WriteString(" ")
		}
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}

// PaneHit maps a column and row, relative to the top-left of a rendered
// pane, to pane coordinates. Clicks on the gaps between pads miss.
func PaneHit(col, row int) (x, y int, ok bool) {
	if row < 0 || row >= grid.Height {
		return 0, 0, false
	}
	col -= Indent
	half := grid.Width * CellStride
	if col >= half {
		col -= half + PaneGap
		if col < 0 {
			return 0, 0, false
		}
		x = grid.Width
	}
	if col < 0 || col >= half || col%CellStride >= PadWidth {
		return 0, 0, false
	}
	return x + col/CellStride, row, true
}

// PaneTitles renders the surface names above their halves
func PaneTitles(p grid.Pane, style lipgloss.Style) string {
	half := grid.Width * CellStride
	left := fmt.Sprintf("%-*s", half+PaneGap, p.Left.String())
	return strings.Repeat(" ", Indent) + style.Render(left+p.Right.String())
}

// RenderAux renders the auxiliary indicators with their index
func RenderAux(colors []engine.RGB, sym theme.Symbols) string {
	var out strings.Builder
	out.WriteString(strings.Repeat(" ", Indent))
	for i, c := range colors {
		out.WriteString(RenderPad(c, sym.Aux))
		out.WriteString(fmt.Sprintf(" %-*d", AuxStride-2, i))
	}
	return out.String()
}

// AuxHit maps a column on the aux row to an indicator index
func AuxHit(col, count int) (int, bool) {
	col -= Indent
	if col < 0 {
		return 0, false
	}
	i := col / AuxStride
	if i >= count || col%AuxStride >= 3 {
		return 0, false
	}
	return i, true
}

// RenderLegendItem renders a single legend item: "■ Name - description"
func RenderLegendItem(color engine.RGB, symbol, name, desc string) string {
	return fmt.Sprintf("  %s %s - %s", RenderPad(color, symbol), name, desc)
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}

func rgbToHex(c engine.RGB) string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}
