package nn

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

var (
	// ErrShape is returned when a tensor does not have the shape a layer expects.
	ErrShape = errors.New("nn: unexpected tensor shape")

	// ErrNoForward is returned by Backward when no forward pass precedes it.
	ErrNoForward = errors.New("nn: backward called before forward")
)

// NewTensor builds a float32 tensor with the given shape over data.
func NewTensor(shape []int, data []float32) (*tensor.Dense, error) {
	if len(shape) == 0 {
		return nil, errors.Wrap(ErrShape, "empty shape")
	}
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return nil, errors.Wrapf(ErrShape, "non-positive dimension in %v", shape)
		}
		n *= d
	}
	if n != len(data) {
		return nil, errors.Wrapf(ErrShape, "shape %v needs %d values, got %d", shape, n, len(data))
	}
	return dense(shape, data), nil
}

// Values returns the float32 backing slice of t, or nil when t is not a
// float32 tensor. The slice is shared with t.
func Values(t *tensor.Dense) []float32 {
	if t == nil {
		return nil
	}
	switch v := t.Data().(type) {
	case []float32:
		return v
	case float32:
		return []float32{v}
	}
	return nil
}

// Shape returns a copy of the shape of t.
func Shape(t *tensor.Dense) []int {
	if t == nil {
		return nil
	}
	return append([]int(nil), t.Shape()...)
}

// Clone deep-copies a float32 tensor.
func Clone(t *tensor.Dense) *tensor.Dense {
	v := Values(t)
	if v == nil {
		return nil
	}
	return dense(Shape(t), append([]float32(nil), v...))
}

func dense(shape []int, data []float32) *tensor.Dense {
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

func product(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

// expect checks that t is a float32 tensor of the given rank and returns its
// shape and values.
func expect(t *tensor.Dense, rank int, layer string) ([]int, []float32, error) {
	v := Values(t)
	if v == nil {
		return nil, nil, errors.Wrapf(ErrShape, "%s: expected float32 tensor", layer)
	}
	shape := Shape(t)
	if len(shape) != rank {
		return nil, nil, errors.Wrapf(ErrShape, "%s: expected rank %d, got shape %v", layer, rank, shape)
	}
	if shape[0] != 1 {
		return nil, nil, errors.Wrapf(ErrShape, "%s: batch size must be 1, got shape %v", layer, shape)
	}
	return shape, v, nil
}
