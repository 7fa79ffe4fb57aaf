package nn

import (
	"math/rand"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Conv2D is a 2D convolution over [1,C,H,W] inputs with square kernels and
// zero padding.
type Conv2D struct {
	hookSet
	InChannels  int
	OutChannels int
	Kernel      int
	Stride      int
	Padding     int
	Weight      *Parameter // [out, in, k, k]
	Bias        *Parameter // [out]

	in      []float32
	inShape []int
	outH    int
	outW    int
}

// NewConv2D creates a convolution layer with uniformly initialised weights.
func NewConv2D(name string, in, out, kernel, stride, padding int, rng *rand.Rand) *Conv2D {
	c := &Conv2D{
		hookSet:     hookSet{name: name},
		InChannels:  in,
		OutChannels: out,
		Kernel:      kernel,
		Stride:      stride,
		Padding:     padding,
		Weight:      newParameter(name+".weight", out, in, kernel, kernel),
		Bias:        newParameter(name+".bias", out),
	}
	fanIn := in * kernel * kernel
	c.Weight.uniform(rng, fanIn)
	c.Bias.uniform(rng, fanIn)
	return c
}

func (c *Conv2D) parameters() []*Parameter { return []*Parameter{c.Weight, c.Bias} }

func (c *Conv2D) forward(x *tensor.Dense, _ bool) (*tensor.Dense, error) {
	shape, in, err := expect(x, 4, c.name)
	if err != nil {
		return nil, err
	}
	if shape[1] != c.InChannels {
		return nil, errors.Wrapf(ErrShape, "%s: expected %d input channels, got %d", c.name, c.InChannels, shape[1])
	}
	h, w := shape[2], shape[3]
	k, s, p := c.Kernel, c.Stride, c.Padding
	oh := (h+2*p-k)/s + 1
	ow := (w+2*p-k)/s + 1
	if oh <= 0 || ow <= 0 {
		return nil, errors.Wrapf(ErrShape, "%s: input %dx%d too small for kernel %d", c.name, h, w, k)
	}

	out := make([]float32, c.OutChannels*oh*ow)
	wt := c.Weight.Data
	for o := 0; o < c.OutChannels; o++ {
		plane := out[o*oh*ow : (o+1)*oh*ow]
		b := c.Bias.Data[o]
		for i := range plane {
			plane[i] = b
		}
		for ch := 0; ch < c.InChannels; ch++ {
			src := in[ch*h*w : (ch+1)*h*w]
			for ky := 0; ky < k; ky++ {
				for kx := 0; kx < k; kx++ {
					wv := wt[((o*c.InChannels+ch)*k+ky)*k+kx]
					for oy := 0; oy < oh; oy++ {
						iy := oy*s + ky - p
						if iy < 0 || iy >= h {
							continue
						}
						row := src[iy*w : (iy+1)*w]
						dst := plane[oy*ow : (oy+1)*ow]
						for ox := 0; ox < ow; ox++ {
							ix := ox*s + kx - p
							if ix < 0 || ix >= w {
								continue
							}
							dst[ox] += wv * row[ix]
						}
					}
				}
			}
		}
	}

	c.in, c.inShape, c.outH, c.outW = in, shape, oh, ow
	return dense([]int{1, c.OutChannels, oh, ow}, out), nil
}

func (c *Conv2D) backward(grad *tensor.Dense) (*tensor.Dense, error) {
	if c.inShape == nil {
		return nil, errors.Wrap(ErrNoForward, c.name)
	}
	_, g, err := expect(grad, 4, c.name)
	if err != nil {
		return nil, err
	}
	h, w := c.inShape[2], c.inShape[3]
	oh, ow := c.outH, c.outW
	if len(g) != c.OutChannels*oh*ow {
		return nil, errors.Wrapf(ErrShape, "%s: gradient has %d values, want %d", c.name, len(g), c.OutChannels*oh*ow)
	}
	k, s, p := c.Kernel, c.Stride, c.Padding

	gin := make([]float32, len(c.in))
	wt := c.Weight.Data
	for o := 0; o < c.OutChannels; o++ {
		plane := g[o*oh*ow : (o+1)*oh*ow]
		for ch := 0; ch < c.InChannels; ch++ {
			dst := gin[ch*h*w : (ch+1)*h*w]
			for ky := 0; ky < k; ky++ {
				for kx := 0; kx < k; kx++ {
					wv := wt[((o*c.InChannels+ch)*k+ky)*k+kx]
					for oy := 0; oy < oh; oy++ {
						iy := oy*s + ky - p
						if iy < 0 || iy >= h {
							continue
						}
						for ox := 0; ox < ow; ox++ {
							ix := ox*s + kx - p
							if ix < 0 || ix >= w {
								continue
							}
							dst[iy*w+ix] += wv * plane[oy*ow+ox]
						}
					}
				}
			}
		}
	}
	return dense(append([]int(nil), c.inShape...), gin), nil
}
