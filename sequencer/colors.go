package sequencer

import (
	"go-nonagon/engine"
	"go-nonagon/grid"

	"github.com/lucasb-eyer/go-colorful"
)

// shade is the set of colours one surface draws with
type shade struct {
	off, on, accent, cursor, held engine.RGB
}

func (s *shade) pick(on bool) engine.RGB {
	if on {
		return s.on
	}
	return s.off
}

// newShade spreads the surfaces evenly around the hue wheel
func newShade(s grid.Surface) shade {
	h := float64(s) * 360 / float64(grid.NumSurfaces)
	on := colorful.Hsv(h, 0.75, 0.85)
	return shade{
		off:    toRGB(colorful.Hsv(h, 0.6, 0.12)),
		on:     toRGB(on),
		accent: toRGB(colorful.Hsv(h, 0.35, 1)),
		cursor: toRGB(colorful.Hsv(h, 0.2, 0.35)),
		held:   toRGB(on.BlendLab(colorful.Color{R: 1, G: 1, B: 1}, 0.6)),
	}
}

func toRGB(c colorful.Color) engine.RGB {
	r, g, b := c.Clamped().RGB255()
	return engine.RGB{r, g, b}
}
