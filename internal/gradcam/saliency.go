package gradcam

import (
	"image"

	"github.com/montanaflynn/stats"
)

// SaliencyMap is an immutable square map of values in [0,1], indexed At(x, y)
// with x the column.
type SaliencyMap struct {
	size   int
	values []float64
}

// NewSaliencyMap copies values, which must hold size*size entries in
// row-major order. Values are clamped to [0,1].
func NewSaliencyMap(size int, values []float64) (*SaliencyMap, error) {
	if size <= 0 || len(values) != size*size {
		return nil, ErrInvalidInput
	}
	v := make([]float64, len(values))
	for i, x := range values {
		switch {
		case x < 0:
			v[i] = 0
		case x > 1:
			v[i] = 1
		default:
			v[i] = x
		}
	}
	return &SaliencyMap{size: size, values: v}, nil
}

// Zero returns an all-zero map of the given size.
func Zero(size int) *SaliencyMap {
	return &SaliencyMap{size: size, values: make([]float64, size*size)}
}

// Size returns the side length of the map.
func (m *SaliencyMap) Size() int {
	if m == nil {
		return 0
	}
	return m.size
}

// At returns the value at column x, row y, or 0 outside the map.
func (m *SaliencyMap) At(x, y int) float64 {
	if x < 0 || y < 0 || x >= m.size || y >= m.size {
		return 0
	}
	return m.values[y*m.size+x]
}

// Values returns a row-major copy of the map.
func (m *SaliencyMap) Values() []float64 {
	return append([]float64(nil), m.values...)
}

// Max returns the largest value.
func (m *SaliencyMap) Max() float64 {
	var mx float64
	for _, v := range m.values {
		if v > mx {
			mx = v
		}
	}
	return mx
}

// IsZero reports whether every value is zero.
func (m *SaliencyMap) IsZero() bool { return m.Max() == 0 }

// Stats summarizes a map for reports.
type Stats struct {
	Mean     float64 `json:"mean"`
	Max      float64 `json:"max"`
	P95      float64 `json:"p95"`
	Coverage float64 `json:"coverage"` // fraction of pixels >= 0.5
}

// Stats computes summary statistics of the map.
func (m *SaliencyMap) Stats() Stats {
	data := stats.Float64Data(m.values)
	var s Stats
	s.Mean, _ = data.Mean()
	s.Max, _ = data.Max()
	s.P95, _ = data.Percentile(95)
	hot := 0
	for _, v := range m.values {
		if v >= 0.5 {
			hot++
		}
	}
	if len(m.values) > 0 {
		s.Coverage = float64(hot) / float64(len(m.values))
	}
	return s
}

// Gray renders the map as an 8-bit grayscale image, truncating 255*v.
func (m *SaliencyMap) Gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.size, m.size))
	for i, v := range m.values {
		img.Pix[i] = uint8(v * 255)
	}
	return img
}
