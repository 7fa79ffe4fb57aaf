package imaging

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// createTestImage writes a solid PNG into a temp dir and returns its path.
func createTestImage(t *testing.T, width, height int, c color.Color) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scan.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, createInMemoryImage(width, height, c)); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

func createInMemoryImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// createPatternImage: red top-left, green top-right, blue bottom-left,
// white bottom-right.
func createPatternImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var c color.RGBA
			switch {
			case x < width/2 && y < height/2:
				c = color.RGBA{255, 0, 0, 255}
			case x >= width/2 && y < height/2:
				c = color.RGBA{0, 255, 0, 255}
			case x < width/2:
				c = color.RGBA{0, 0, 255, 255}
			default:
				c = color.RGBA{255, 255, 255, 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

// createGrayScan is a horizontal grayscale gradient, like a B-scan band.
func createGrayScan(width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Pix[y*img.Stride+x] = uint8(x * 255 / max(1, width-1))
		}
	}
	return img
}

// testSaliency is a row-major square map.
type testSaliency struct {
	size int
	v    []float64
}

func (s testSaliency) Size() int { return s.size }

func (s testSaliency) At(x, y int) float64 { return s.v[y*s.size+x] }

func uniformSaliency(size int, v float64) testSaliency {
	vals := make([]float64, size*size)
	for i := range vals {
		vals[i] = v
	}
	return testSaliency{size: size, v: vals}
}

// blobSaliency is 1 inside the square [lo,hi) and 0 elsewhere.
func blobSaliency(size, lo, hi int) testSaliency {
	s := uniformSaliency(size, 0)
	for y := lo; y < hi; y++ {
		for x := lo; x < hi; x++ {
			s.v[y*size+x] = 1
		}
	}
	return s
}
