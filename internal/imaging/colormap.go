package imaging

import (
	"image/color"
	"sync"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// jetStop is a control point of one channel of the jet palette.
type jetStop struct{ at, v float64 }

// Piecewise-linear channel curves of the classic jet palette, blue at 0
// through cyan, yellow and red at 1.
var (
	jetRed   = []jetStop{{0, 0}, {0.375, 0}, {0.625, 1}, {0.875, 1}, {1, 0.5}}
	jetGreen = []jetStop{{0, 0}, {0.125, 0}, {0.375, 1}, {0.625, 1}, {0.875, 0}, {1, 0}}
	jetBlue  = []jetStop{{0, 0.5}, {0.125, 1}, {0.375, 1}, {0.625, 0}, {1, 0}}
)

var (
	jetOnce sync.Once
	jetLUT  [256]colorful.Color
)

func interpolate(stops []jetStop, x float64) float64 {
	if x <= stops[0].at {
		return stops[0].v
	}
	for i := 1; i < len(stops); i++ {
		if x <= stops[i].at {
			a, b := stops[i-1], stops[i]
			t := (x - a.at) / (b.at - a.at)
			return a.v + t*(b.v-a.v)
		}
	}
	return stops[len(stops)-1].v
}

func jetTable() *[256]colorful.Color {
	jetOnce.Do(func() {
		for i := range jetLUT {
			x := float64(i) / 255
			jetLUT[i] = colorful.Color{
				R: interpolate(jetRed, x),
				G: interpolate(jetGreen, x),
				B: interpolate(jetBlue, x),
			}
		}
	})
	return &jetLUT
}

// JetColor maps an intensity to the jet palette: 0 is dark blue, 255 dark
// red.
func JetColor(v uint8) color.NRGBA {
	r, g, b := jetTable()[v].Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

// JetPalette returns the full 256-entry palette.
func JetPalette() color.Palette {
	p := make(color.Palette, 256)
	for i := range p {
		p[i] = JetColor(uint8(i))
	}
	return p
}
