package nn

import (
	"math"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// LayerNorm normalises the last axis of [1,D] or [1,N,D] inputs.
type LayerNorm struct {
	hookSet
	Dim    int
	Eps    float64
	Weight *Parameter // [dim]
	Bias   *Parameter // [dim]

	xhat    []float32
	rstd    []float32
	inShape []int
}

// NewLayerNorm creates a layer norm with unit gain and zero bias.
func NewLayerNorm(name string, dim int) *LayerNorm {
	l := &LayerNorm{
		hookSet: hookSet{name: name},
		Dim:     dim,
		Eps:     1e-5,
		Weight:  newParameter(name+".weight", dim),
		Bias:    newParameter(name+".bias", dim),
	}
	l.Weight.fill(1)
	return l
}

func (l *LayerNorm) parameters() []*Parameter { return []*Parameter{l.Weight, l.Bias} }

func (l *LayerNorm) forward(x *tensor.Dense, _ bool) (*tensor.Dense, error) {
	in := Values(x)
	shape := Shape(x)
	if in == nil || len(shape) < 2 || len(shape) > 3 || shape[0] != 1 || shape[len(shape)-1] != l.Dim {
		return nil, errors.Wrapf(ErrShape, "%s: expected [1,%d] or [1,N,%d], got %v", l.name, l.Dim, l.Dim, shape)
	}
	rows := len(in) / l.Dim
	out := make([]float32, len(in))
	l.xhat = make([]float32, len(in))
	l.rstd = make([]float32, rows)
	for r := 0; r < rows; r++ {
		row := in[r*l.Dim : (r+1)*l.Dim]
		var mean, variance float64
		for _, v := range row {
			mean += float64(v)
		}
		mean /= float64(l.Dim)
		for _, v := range row {
			d := float64(v) - mean
			variance += d * d
		}
		variance /= float64(l.Dim)
		rstd := 1 / math.Sqrt(variance+l.Eps)
		l.rstd[r] = float32(rstd)
		for j, v := range row {
			xh := float32((float64(v) - mean) * rstd)
			l.xhat[r*l.Dim+j] = xh
			out[r*l.Dim+j] = xh*l.Weight.Data[j] + l.Bias.Data[j]
		}
	}
	l.inShape = shape
	return dense(Shape(x), out), nil
}

func (l *LayerNorm) backward(grad *tensor.Dense) (*tensor.Dense, error) {
	if l.inShape == nil {
		return nil, errors.Wrap(ErrNoForward, l.name)
	}
	g := Values(grad)
	if len(g) != len(l.xhat) {
		return nil, errors.Wrapf(ErrShape, "%s: gradient size mismatch", l.name)
	}
	rows := len(g) / l.Dim
	out := make([]float32, len(g))
	gh := make([]float32, l.Dim)
	for r := 0; r < rows; r++ {
		xh := l.xhat[r*l.Dim : (r+1)*l.Dim]
		var meanG, meanGX float32
		for j := range gh {
			gh[j] = g[r*l.Dim+j] * l.Weight.Data[j]
			meanG += gh[j]
			meanGX += gh[j] * xh[j]
		}
		meanG /= float32(l.Dim)
		meanGX /= float32(l.Dim)
		for j := range gh {
			out[r*l.Dim+j] = l.rstd[r] * (gh[j] - meanG - xh[j]*meanGX)
		}
	}
	return dense(append([]int(nil), l.inShape...), out), nil
}
