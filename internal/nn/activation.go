package nn

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ReLU is the rectified linear unit.
type ReLU struct {
	hookSet
	in      []float32
	inShape []int
}

// NewReLU creates a ReLU layer.
func NewReLU(name string) *ReLU { return &ReLU{hookSet: hookSet{name: name}} }

func (r *ReLU) parameters() []*Parameter { return nil }

func (r *ReLU) forward(x *tensor.Dense, _ bool) (*tensor.Dense, error) {
	in := Values(x)
	if in == nil {
		return nil, errors.Wrapf(ErrShape, "%s: expected float32 tensor", r.name)
	}
	out := make([]float32, len(in))
	for i, v := range in {
		if v > 0 {
			out[i] = v
		}
	}
	r.in, r.inShape = in, Shape(x)
	return dense(Shape(x), out), nil
}

func (r *ReLU) backward(grad *tensor.Dense) (*tensor.Dense, error) {
	if r.inShape == nil {
		return nil, errors.Wrap(ErrNoForward, r.name)
	}
	g := Values(grad)
	if len(g) != len(r.in) {
		return nil, errors.Wrapf(ErrShape, "%s: gradient size mismatch", r.name)
	}
	out := make([]float32, len(g))
	for i, v := range r.in {
		if v > 0 {
			out[i] = g[i]
		}
	}
	return dense(append([]int(nil), r.inShape...), out), nil
}

// SiLU is x*sigmoid(x), the activation used throughout EfficientNet.
type SiLU struct {
	hookSet
	in      []float32
	inShape []int
}

// NewSiLU creates a SiLU layer.
func NewSiLU(name string) *SiLU { return &SiLU{hookSet: hookSet{name: name}} }

func (s *SiLU) parameters() []*Parameter { return nil }

func sigmoid(x float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(x))))
}

func (s *SiLU) forward(x *tensor.Dense, _ bool) (*tensor.Dense, error) {
	in := Values(x)
	if in == nil {
		return nil, errors.Wrapf(ErrShape, "%s: expected float32 tensor", s.name)
	}
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = v * sigmoid(v)
	}
	s.in, s.inShape = in, Shape(x)
	return dense(Shape(x), out), nil
}

func (s *SiLU) backward(grad *tensor.Dense) (*tensor.Dense, error) {
	if s.inShape == nil {
		return nil, errors.Wrap(ErrNoForward, s.name)
	}
	g := Values(grad)
	if len(g) != len(s.in) {
		return nil, errors.Wrapf(ErrShape, "%s: gradient size mismatch", s.name)
	}
	out := make([]float32, len(g))
	for i, v := range s.in {
		sg := sigmoid(v)
		out[i] = g[i] * sg * (1 + v*(1-sg))
	}
	return dense(append([]int(nil), s.inShape...), out), nil
}

// Dropout zeroes activations with probability P while training and is the
// identity in evaluation mode.
type Dropout struct {
	hookSet
	P float64

	rng     *rand.Rand
	mask    []float32
	inShape []int
}

// NewDropout creates a dropout layer. The mask stream is seeded so training
// runs are reproducible.
func NewDropout(name string, p float64, seed int64) *Dropout {
	return &Dropout{hookSet: hookSet{name: name}, P: p, rng: rand.New(rand.NewSource(seed))}
}

func (d *Dropout) parameters() []*Parameter { return nil }

func (d *Dropout) forward(x *tensor.Dense, training bool) (*tensor.Dense, error) {
	in := Values(x)
	if in == nil {
		return nil, errors.Wrapf(ErrShape, "%s: expected float32 tensor", d.name)
	}
	d.inShape = Shape(x)
	if !training || d.P <= 0 {
		d.mask = nil
		return dense(Shape(x), append([]float32(nil), in...)), nil
	}
	scale := float32(1 / (1 - d.P))
	d.mask = make([]float32, len(in))
	out := make([]float32, len(in))
	for i, v := range in {
		if d.rng.Float64() >= d.P {
			d.mask[i] = scale
			out[i] = v * scale
		}
	}
	return dense(Shape(x), out), nil
}

func (d *Dropout) backward(grad *tensor.Dense) (*tensor.Dense, error) {
	if d.inShape == nil {
		return nil, errors.Wrap(ErrNoForward, d.name)
	}
	g := Values(grad)
	out := append([]float32(nil), g...)
	if d.mask != nil {
		if len(d.mask) != len(g) {
			return nil, errors.Wrapf(ErrShape, "%s: gradient size mismatch", d.name)
		}
		for i := range out {
			out[i] *= d.mask[i]
		}
	}
	return dense(append([]int(nil), d.inShape...), out), nil
}
