package nn

import (
	"math"
	"math/rand"

	"gorgonia.org/tensor"
)

// Layer is a named, observable sub-module of a Classifier.
type Layer interface {
	Name() string
	RegisterForwardHook(ForwardHook) *HookHandle
	RegisterBackwardHook(BackwardHook) *HookHandle
	ActiveHooks() int
}

// Module is a Layer that can take part in a Network's forward and backward
// passes. The concrete layers in this package implement it.
type Module interface {
	Layer
	forward(x *tensor.Dense, training bool) (*tensor.Dense, error)
	backward(grad *tensor.Dense) (*tensor.Dense, error)
	parameters() []*Parameter
	capture() *hookSet
}

// Parameter is a named learnable array.
type Parameter struct {
	Name  string
	Shape []int
	Data  []float32
}

func newParameter(name string, shape ...int) *Parameter {
	return &Parameter{Name: name, Shape: shape, Data: make([]float32, product(shape))}
}

// uniform fills p with U(-1/sqrt(fanIn), 1/sqrt(fanIn)).
func (p *Parameter) uniform(rng *rand.Rand, fanIn int) {
	bound := 1 / math.Sqrt(float64(fanIn))
	for i := range p.Data {
		p.Data[i] = float32((rng.Float64()*2 - 1) * bound)
	}
}

func (p *Parameter) normal(rng *rand.Rand, std float64) {
	for i := range p.Data {
		p.Data[i] = float32(rng.NormFloat64() * std)
	}
}

func (p *Parameter) fill(v float32) {
	for i := range p.Data {
		p.Data[i] = v
	}
}

func (h *hookSet) capture() *hookSet { return h }
