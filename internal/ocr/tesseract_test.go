//go:build cgo && tesseract

package ocr

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// renderLines draws black text on white, scaled up for recognition.
func renderLines(lines []string, scale int) *image.RGBA {
	w, h := 0, (len(lines)*16+16)*scale
	for _, l := range lines {
		w = max(w, (len(l)*7+32)*scale)
	}
	small := image.NewRGBA(image.Rect(0, 0, w/scale, h/scale))
	draw.Draw(small, small.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	for i, l := range lines {
		d := &font.Drawer{
			Dst:  small,
			Src:  image.NewUniform(color.Black),
			Face: basicfont.Face7x13,
			Dot:  fixed.Point26_6{X: fixed.I(16), Y: fixed.I(20 + i*16)},
		}
		d.DrawString(l)
	}
	big := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			big.Set(x, y, small.At(x/scale, y/scale))
		}
	}
	return big
}

func writePNG(t *testing.T, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "annot.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtractText_Annotations(t *testing.T) {
	img := renderLines([]string{"SPECTRALIS OD", "2024-11-05"}, 4)
	res, err := ExtractText(writePNG(t, img), "eng")
	if err != nil {
		t.Fatalf("ExtractText failed: %v", err)
	}
	if !strings.Contains(strings.ToUpper(res.FullText), "SPECTRALIS") {
		t.Errorf("FullText %q missing device name", res.FullText)
	}
	if res.Annotations.Eye != "OD" {
		t.Errorf("Eye: got %q, want OD", res.Annotations.Eye)
	}
}

func TestExtractText_NonExistentFile(t *testing.T) {
	if _, err := ExtractText("/nonexistent/scan.png", "eng"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExtractTextFromRegion_Offsets(t *testing.T) {
	img := renderLines([]string{"CIRRUS", "OS"}, 4)
	r := image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()/2)
	res, err := ExtractTextFromRegion(img, r, "")
	if err != nil {
		t.Fatalf("ExtractTextFromRegion failed: %v", err)
	}
	for _, reg := range res.Regions {
		if reg.Bounds.X2 > r.Max.X+1 || reg.Bounds.Y2 > r.Max.Y+1 {
			t.Errorf("region %+v outside %v", reg.Bounds, r)
		}
	}
	if _, err := ExtractTextFromRegion(img, image.Rect(-50, -50, -10, -10), ""); err == nil {
		t.Error("expected error for region outside image")
	}
}
