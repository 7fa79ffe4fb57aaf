package imaging

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Saliency is a square map of values in [0,1], indexed At(x, y).
type Saliency interface {
	Size() int
	At(x, y int) float64
}

// saliencyGray scales m to 8 bits, truncating 255*v.
func saliencyGray(m Saliency) *image.Gray {
	s := m.Size()
	g := image.NewGray(image.Rect(0, 0, s, s))
	for y := 0; y < s; y++ {
		for x := 0; x < s; x++ {
			v := m.At(x, y)
			switch {
			case v <= 0:
				v = 0
			case v >= 1:
				v = 1
			}
			g.Pix[y*g.Stride+x] = uint8(v * 255)
		}
	}
	return g
}

// resizeSaliency scales m to 8 bits and resamples it bilinearly to
// width x height. Every channel of the result holds the intensity.
func resizeSaliency(m Saliency, width, height int) (*image.NRGBA, error) {
	if m == nil || m.Size() <= 0 {
		return nil, fmt.Errorf("empty saliency map")
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}
	return imaging.Resize(saliencyGray(m), width, height, imaging.Linear), nil
}

// Heatmap renders m in the jet palette at width x height.
func Heatmap(m Saliency, width, height int) (*image.NRGBA, error) {
	scaled, err := resizeSaliency(m, width, height)
	if err != nil {
		return nil, err
	}
	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(out.Pix); i += 4 {
		c := JetColor(scaled.Pix[i])
		out.Pix[i], out.Pix[i+1], out.Pix[i+2], out.Pix[i+3] = c.R, c.G, c.B, 255
	}
	return out, nil
}

// Overlay blends the jet rendering of m onto display as
// alpha*heatmap + (1-alpha)*display. The result has the display's size and
// is opaque. Alpha 0 returns the display pixels, alpha 1 the pure heatmap.
func Overlay(display image.Image, m Saliency, alpha float64) (*image.NRGBA, error) {
	if display == nil {
		return nil, fmt.Errorf("nil display image")
	}
	if !(alpha >= 0 && alpha <= 1) {
		return nil, fmt.Errorf("alpha %.3f outside [0,1]", alpha)
	}
	base := imaging.Clone(display)
	w, h := base.Bounds().Dx(), base.Bounds().Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("empty display image")
	}
	scaled, err := resizeSaliency(m, w, h)
	if err != nil {
		return nil, err
	}

	table := jetTable()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(out.Pix); i += 4 {
		orig := colorful.Color{
			R: float64(base.Pix[i]) / 255,
			G: float64(base.Pix[i+1]) / 255,
			B: float64(base.Pix[i+2]) / 255,
		}
		jet := table[scaled.Pix[i]]
		mixed := colorful.Color{
			R: orig.R*(1-alpha) + jet.R*alpha,
			G: orig.G*(1-alpha) + jet.G*alpha,
			B: orig.B*(1-alpha) + jet.B*alpha,
		}
		out.Pix[i], out.Pix[i+1], out.Pix[i+2] = mixed.Clamped().RGB255()
		out.Pix[i+3] = 255
	}
	return out, nil
}
