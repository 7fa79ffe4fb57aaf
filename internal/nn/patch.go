package nn

import (
	"math/rand"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// PatchEmbed splits a [1,C,H,W] image into non-overlapping PxP patches and
// projects each one to a Dim-wide token, giving [1,N,Dim]. With a class
// token the sequence gains one leading token, so a 224 input with 16px
// patches yields N = 1 + 14*14 = 197.
type PatchEmbed struct {
	hookSet
	Patch    int
	Channels int
	Dim      int
	Weight   *Parameter // [dim, channels*patch*patch]
	Bias     *Parameter // [dim]
	ClsToken *Parameter // [dim], nil without a class token

	inShape []int
}

// NewPatchEmbed creates a patch embedding layer.
func NewPatchEmbed(name string, channels, patch, dim int, classToken bool, rng *rand.Rand) *PatchEmbed {
	fan := channels * patch * patch
	p := &PatchEmbed{
		hookSet:  hookSet{name: name},
		Patch:    patch,
		Channels: channels,
		Dim:      dim,
		Weight:   newParameter(name+".weight", dim, fan),
		Bias:     newParameter(name+".bias", dim),
	}
	p.Weight.uniform(rng, fan)
	p.Bias.uniform(rng, fan)
	if classToken {
		p.ClsToken = newParameter(name+".cls_token", dim)
		p.ClsToken.normal(rng, 0.02)
	}
	return p
}

func (p *PatchEmbed) parameters() []*Parameter {
	if p.ClsToken == nil {
		return []*Parameter{p.Weight, p.Bias}
	}
	return []*Parameter{p.Weight, p.Bias, p.ClsToken}
}

func (p *PatchEmbed) lead() int {
	if p.ClsToken != nil {
		return 1
	}
	return 0
}

// patchIndex maps element j of a flattened patch at grid cell (gy,gx) to
// its offset in the CHW input.
func (p *PatchEmbed) patchIndex(h, w, gy, gx, j int) int {
	pp := p.Patch * p.Patch
	ch, r := j/pp, j%pp
	y, x := gy*p.Patch+r/p.Patch, gx*p.Patch+r%p.Patch
	return (ch*h+y)*w + x
}

func (p *PatchEmbed) forward(x *tensor.Dense, _ bool) (*tensor.Dense, error) {
	shape, in, err := expect(x, 4, p.name)
	if err != nil {
		return nil, err
	}
	c, h, w := shape[1], shape[2], shape[3]
	if c != p.Channels || h%p.Patch != 0 || w%p.Patch != 0 {
		return nil, errors.Wrapf(ErrShape, "%s: input %v not divisible into %d-pixel patches of %d channels", p.name, shape, p.Patch, p.Channels)
	}
	gh, gw := h/p.Patch, w/p.Patch
	fan := c * p.Patch * p.Patch
	lead := p.lead()
	n := lead + gh*gw
	out := make([]float32, n*p.Dim)
	if lead == 1 {
		copy(out[:p.Dim], p.ClsToken.Data)
	}
	flat := make([]float32, fan)
	for gy := 0; gy < gh; gy++ {
		for gx := 0; gx < gw; gx++ {
			for j := range flat {
				flat[j] = in[p.patchIndex(h, w, gy, gx, j)]
			}
			tok := out[(lead+gy*gw+gx)*p.Dim : (lead+gy*gw+gx+1)*p.Dim]
			for d := 0; d < p.Dim; d++ {
				wr := p.Weight.Data[d*fan : (d+1)*fan]
				sum := p.Bias.Data[d]
				for j, v := range flat {
					sum += wr[j] * v
				}
				tok[d] = sum
			}
		}
	}
	p.inShape = shape
	return dense([]int{1, n, p.Dim}, out), nil
}

func (p *PatchEmbed) backward(grad *tensor.Dense) (*tensor.Dense, error) {
	if p.inShape == nil {
		return nil, errors.Wrap(ErrNoForward, p.name)
	}
	h, w := p.inShape[2], p.inShape[3]
	gh, gw := h/p.Patch, w/p.Patch
	fan := p.Channels * p.Patch * p.Patch
	lead := p.lead()
	g := Values(grad)
	if len(g) != (lead+gh*gw)*p.Dim {
		return nil, errors.Wrapf(ErrShape, "%s: gradient size mismatch", p.name)
	}
	gin := make([]float32, product(p.inShape))
	for gy := 0; gy < gh; gy++ {
		for gx := 0; gx < gw; gx++ {
			tok := g[(lead+gy*gw+gx)*p.Dim : (lead+gy*gw+gx+1)*p.Dim]
			for d, gv := range tok {
				if gv == 0 {
					continue
				}
				wr := p.Weight.Data[d*fan : (d+1)*fan]
				for j, wv := range wr {
					gin[p.patchIndex(h, w, gy, gx, j)] += gv * wv
				}
			}
		}
	}
	return dense(append([]int(nil), p.inShape...), gin), nil
}
