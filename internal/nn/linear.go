package nn

import (
	"math/rand"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Linear is an affine map over the last axis. It accepts [1,In] and
// token-wise [1,N,In] inputs.
type Linear struct {
	hookSet
	In     int
	Out    int
	Weight *Parameter // [out, in]
	Bias   *Parameter // [out]

	in      []float32
	inShape []int
}

// NewLinear creates a linear layer with uniformly initialised weights.
func NewLinear(name string, in, out int, rng *rand.Rand) *Linear {
	l := &Linear{
		hookSet: hookSet{name: name},
		In:      in,
		Out:     out,
		Weight:  newParameter(name+".weight", out, in),
		Bias:    newParameter(name+".bias", out),
	}
	l.Weight.uniform(rng, in)
	l.Bias.uniform(rng, in)
	return l
}

func (l *Linear) parameters() []*Parameter { return []*Parameter{l.Weight, l.Bias} }

func (l *Linear) forward(x *tensor.Dense, _ bool) (*tensor.Dense, error) {
	in := Values(x)
	shape := Shape(x)
	if in == nil || len(shape) < 2 || len(shape) > 3 || shape[0] != 1 || shape[len(shape)-1] != l.In {
		return nil, errors.Wrapf(ErrShape, "%s: expected [1,%d] or [1,N,%d], got %v", l.name, l.In, l.In, shape)
	}
	rows := len(in) / l.In
	out := make([]float32, rows*l.Out)
	for r := 0; r < rows; r++ {
		xr := in[r*l.In : (r+1)*l.In]
		for o := 0; o < l.Out; o++ {
			wr := l.Weight.Data[o*l.In : (o+1)*l.In]
			sum := l.Bias.Data[o]
			for i, v := range xr {
				sum += wr[i] * v
			}
			out[r*l.Out+o] = sum
		}
	}
	l.in, l.inShape = in, shape
	outShape := append([]int(nil), shape...)
	outShape[len(outShape)-1] = l.Out
	return dense(outShape, out), nil
}

func (l *Linear) backward(grad *tensor.Dense) (*tensor.Dense, error) {
	if l.inShape == nil {
		return nil, errors.Wrap(ErrNoForward, l.name)
	}
	g := Values(grad)
	rows := len(l.in) / l.In
	if len(g) != rows*l.Out {
		return nil, errors.Wrapf(ErrShape, "%s: gradient has %d values, want %d", l.name, len(g), rows*l.Out)
	}
	gin := make([]float32, len(l.in))
	for r := 0; r < rows; r++ {
		dst := gin[r*l.In : (r+1)*l.In]
		for o := 0; o < l.Out; o++ {
			gv := g[r*l.Out+o]
			if gv == 0 {
				continue
			}
			wr := l.Weight.Data[o*l.In : (o+1)*l.In]
			for i, wv := range wr {
				dst[i] += gv * wv
			}
		}
	}
	return dense(append([]int(nil), l.inShape...), gin), nil
}
