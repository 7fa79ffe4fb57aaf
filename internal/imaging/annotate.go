package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"
)

// Hotspot is the region of a saliency map at or above a threshold, in the
// pixel coordinates of the annotated image.
type Hotspot struct {
	Found    bool            `json:"found"`
	Box      image.Rectangle `json:"box"`
	Peak     image.Point     `json:"peak"`
	Coverage float64         `json:"coverage"`
}

// FindHotspot resamples m to w x h and returns the bounding box of pixels
// whose 8-bit intensity is non-zero and at least threshold*255.
func FindHotspot(m Saliency, w, h int, threshold float64) (Hotspot, error) {
	scaled, err := resizeSaliency(m, w, h)
	if err != nil {
		return Hotspot{}, err
	}
	cut := uint8(min(max(threshold, 0), 1) * 255)
	var hs Hotspot
	peak := scaled.Pix[0]
	count := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := scaled.Pix[y*scaled.Stride+x*4]
			if v > peak {
				peak = v
				hs.Peak = image.Pt(x, y)
			}
			if v == 0 || v < cut {
				continue
			}
			if !hs.Found {
				hs.Box = image.Rect(x, y, x+1, y+1)
				hs.Found = true
			} else {
				hs.Box = hs.Box.Union(image.Rect(x, y, x+1, y+1))
			}
			count++
		}
	}
	hs.Coverage = float64(count) / float64(w*h)
	return hs, nil
}

// AnnotateHotspot draws the hotspot box of m on a copy of img with a small
// coverage label. boxColorHex is "#RRGGBB" or "#RRGGBBAA"; an empty or bad
// value falls back to white.
func AnnotateHotspot(img image.Image, m Saliency, threshold float64, boxColorHex string) (*image.NRGBA, Hotspot, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	hs, err := FindHotspot(m, w, h, threshold)
	if err != nil {
		return nil, Hotspot{}, err
	}

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, out.Bounds(), img, bounds.Min, draw.Src)
	if !hs.Found {
		return out, hs, nil
	}

	boxColor, err := parseHexColor(boxColorHex)
	if err != nil {
		boxColor = color.RGBA{255, 255, 255, 255}
	}
	r := hs.Box
	for x := r.Min.X; x < r.Max.X; x++ {
		out.Set(x, r.Min.Y, boxColor)
		out.Set(x, r.Max.Y-1, boxColor)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		out.Set(r.Min.X, y, boxColor)
		out.Set(r.Max.X-1, y, boxColor)
	}

	label := fmt.Sprintf("%d%%", int(hs.Coverage*100+0.5))
	ly := r.Min.Y - 8
	if ly < 1 {
		ly = r.Max.Y + 2
	}
	drawLabel(out, r.Min.X+1, ly, label, color.RGBA{255, 255, 255, 255}, color.RGBA{0, 0, 0, 180})
	return out, hs, nil
}

// parseHexColor parses "#RRGGBB" or "#RRGGBBAA".
func parseHexColor(hex string) (color.RGBA, error) {
	if len(hex) == 0 {
		return color.RGBA{}, fmt.Errorf("empty color string")
	}
	if hex[0] == '#' {
		hex = hex[1:]
	}
	if len(hex) != 6 && len(hex) != 8 {
		return color.RGBA{}, fmt.Errorf("invalid hex color length")
	}
	val, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, err
	}
	if len(hex) == 6 {
		return color.RGBA{R: uint8(val >> 16), G: uint8(val >> 8), B: uint8(val), A: 255}, nil
	}
	return color.RGBA{R: uint8(val >> 24), G: uint8(val >> 16), B: uint8(val >> 8), A: uint8(val)}, nil
}

// 3x5 pixel glyphs for labels.
var glyphs = map[rune][]string{
	'0': {"111", "101", "101", "101", "111"},
	'1': {"010", "110", "010", "010", "111"},
	'2': {"111", "001", "111", "100", "111"},
	'3': {"111", "001", "111", "001", "111"},
	'4': {"101", "101", "111", "001", "001"},
	'5': {"111", "100", "111", "001", "111"},
	'6': {"111", "100", "111", "101", "111"},
	'7': {"111", "001", "001", "001", "001"},
	'8': {"111", "101", "111", "101", "111"},
	'9': {"111", "101", "111", "001", "111"},
	'%': {"101", "001", "010", "100", "101"},
}

// drawLabel draws text with a background box; unknown runes are blank.
func drawLabel(img draw.Image, x, y int, text string, fg, bg color.Color) {
	bounds := img.Bounds()
	const charWidth, labelHeight = 4, 7
	labelWidth := len(text) * charWidth

	set := func(px, py int, c color.Color) {
		if image.Pt(px, py).In(bounds) {
			img.Set(px, py, c)
		}
	}
	for dy := -1; dy < labelHeight; dy++ {
		for dx := -1; dx < labelWidth; dx++ {
			set(x+dx, y+dy, bg)
		}
	}
	cx := x
	for _, ch := range text {
		for row, line := range glyphs[ch] {
			for col, pixel := range line {
				if pixel == '1' {
					set(cx+col, y+row, fg)
				}
			}
		}
		cx += charWidth
	}
}
