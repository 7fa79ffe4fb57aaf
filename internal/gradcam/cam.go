package gradcam

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// uniformTolerance is the largest max-min spread treated as a flat map.
const uniformTolerance = 1e-12

// grid is a raw class-activation map before resizing.
type grid struct {
	h, w int
	v    []float64
}

// channelWeights averages grad, laid out as channels x positions, over the
// positions axis.
func channelWeights(grad *mat.Dense) *mat.VecDense {
	_, n := grad.Dims()
	ones := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		ones.SetVec(i, 1)
	}
	var w mat.VecDense
	w.MulVec(grad, ones)
	w.ScaleVec(1/float64(n), &w)
	return &w
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// spatialCAM handles activations of shape [1,C,h,w]. It reports false for
// empty dimensions or buffers that do not match them.
func spatialCAM(act, grad []float32, c, h, w int) (grid, bool) {
	if c <= 0 || h <= 0 || w <= 0 || len(act) != c*h*w || len(grad) != c*h*w {
		return grid{}, false
	}
	a := mat.NewDense(c, h*w, toFloat64(act))
	g := mat.NewDense(c, h*w, toFloat64(grad))
	weights := channelWeights(g)

	var cam mat.VecDense
	cam.MulVec(a.T(), weights)
	return grid{h: h, w: w, v: relu(cam.RawVector().Data)}, true
}

// tokenCAM handles activations of shape [1,N,C]. Weights average the gradient
// over all N tokens; the leading N-g*g tokens are then dropped.
func tokenCAM(act, grad []float32, n, c int) (grid, bool) {
	if n <= 0 || c <= 0 || len(act) != n*c || len(grad) != n*c {
		return grid{}, false
	}
	side := int(math.Sqrt(float64(n)))
	for (side+1)*(side+1) <= n {
		side++
	}
	for side*side > n {
		side--
	}
	if side == 0 {
		return grid{}, false
	}
	a := mat.NewDense(n, c, toFloat64(act))
	g := mat.NewDense(n, c, toFloat64(grad))
	weights := channelWeights(mat.DenseCopyOf(g.T()))

	skip := n - side*side
	patches := a.Slice(skip, n, 0, c)
	var cam mat.VecDense
	cam.MulVec(patches, weights)
	return grid{h: side, w: side, v: relu(cam.RawVector().Data)}, true
}

func relu(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		if x > 0 {
			out[i] = x
		}
	}
	return out
}

// upsample resizes src to size x size with bilinear interpolation using
// half-pixel centres and edge clamping.
func upsample(src grid, size int) []float64 {
	out := make([]float64, size*size)
	sy := float64(src.h) / float64(size)
	sx := float64(src.w) / float64(size)
	for y := 0; y < size; y++ {
		y0, y1, fy := sourceCoord(y, sy, src.h)
		for x := 0; x < size; x++ {
			x0, x1, fx := sourceCoord(x, sx, src.w)
			top := src.v[y0*src.w+x0]*(1-fx) + src.v[y0*src.w+x1]*fx
			bot := src.v[y1*src.w+x0]*(1-fx) + src.v[y1*src.w+x1]*fx
			out[y*size+x] = top*(1-fy) + bot*fy
		}
	}
	return out
}

func sourceCoord(dst int, scale float64, n int) (i0, i1 int, frac float64) {
	s := (float64(dst)+0.5)*scale - 0.5
	if s < 0 {
		s = 0
	}
	i0 = int(s)
	if i0 > n-1 {
		i0 = n - 1
	}
	i1 = i0 + 1
	if i1 > n-1 {
		i1 = n - 1
	}
	return i0, i1, s - float64(i0)
}

// normalize min-max scales v in place. It reports false when v has no
// positive value or no spread.
func normalize(v []float64) bool {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, x := range v {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	if hi <= 0 || hi-lo <= uniformTolerance {
		return false
	}
	span := hi - lo
	for i, x := range v {
		v[i] = (x - lo) / span
	}
	return true
}
