package nn

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// GlobalAvgPool averages each channel of a [1,C,H,W] map to give [1,C].
type GlobalAvgPool struct {
	hookSet
	inShape []int
}

// NewGlobalAvgPool creates a global average pooling layer.
func NewGlobalAvgPool(name string) *GlobalAvgPool {
	return &GlobalAvgPool{hookSet: hookSet{name: name}}
}

func (p *GlobalAvgPool) parameters() []*Parameter { return nil }

func (p *GlobalAvgPool) forward(x *tensor.Dense, _ bool) (*tensor.Dense, error) {
	shape, in, err := expect(x, 4, p.name)
	if err != nil {
		return nil, err
	}
	c, hw := shape[1], shape[2]*shape[3]
	out := make([]float32, c)
	for ch := 0; ch < c; ch++ {
		var sum float32
		for _, v := range in[ch*hw : (ch+1)*hw] {
			sum += v
		}
		out[ch] = sum / float32(hw)
	}
	p.inShape = shape
	return dense([]int{1, c}, out), nil
}

func (p *GlobalAvgPool) backward(grad *tensor.Dense) (*tensor.Dense, error) {
	if p.inShape == nil {
		return nil, errors.Wrap(ErrNoForward, p.name)
	}
	c, hw := p.inShape[1], p.inShape[2]*p.inShape[3]
	g := Values(grad)
	if len(g) != c {
		return nil, errors.Wrapf(ErrShape, "%s: gradient has %d values, want %d", p.name, len(g), c)
	}
	out := make([]float32, c*hw)
	for ch := 0; ch < c; ch++ {
		v := g[ch] / float32(hw)
		for i := ch * hw; i < (ch+1)*hw; i++ {
			out[i] = v
		}
	}
	return dense(append([]int(nil), p.inShape...), out), nil
}

// TokenPool averages a [1,N,D] token sequence over N to give [1,D].
type TokenPool struct {
	hookSet
	inShape []int
}

// NewTokenPool creates a token mean-pooling layer.
func NewTokenPool(name string) *TokenPool {
	return &TokenPool{hookSet: hookSet{name: name}}
}

func (p *TokenPool) parameters() []*Parameter { return nil }

func (p *TokenPool) forward(x *tensor.Dense, _ bool) (*tensor.Dense, error) {
	shape, in, err := expect(x, 3, p.name)
	if err != nil {
		return nil, err
	}
	n, d := shape[1], shape[2]
	out := make([]float32, d)
	for t := 0; t < n; t++ {
		for j, v := range in[t*d : (t+1)*d] {
			out[j] += v
		}
	}
	for j := range out {
		out[j] /= float32(n)
	}
	p.inShape = shape
	return dense([]int{1, d}, out), nil
}

func (p *TokenPool) backward(grad *tensor.Dense) (*tensor.Dense, error) {
	if p.inShape == nil {
		return nil, errors.Wrap(ErrNoForward, p.name)
	}
	n, d := p.inShape[1], p.inShape[2]
	g := Values(grad)
	if len(g) != d {
		return nil, errors.Wrapf(ErrShape, "%s: gradient has %d values, want %d", p.name, len(g), d)
	}
	out := make([]float32, n*d)
	for t := 0; t < n; t++ {
		for j := 0; j < d; j++ {
			out[t*d+j] = g[j] / float32(n)
		}
	}
	return dense(append([]int(nil), p.inShape...), out), nil
}
