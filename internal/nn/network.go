package nn

import (
	"sort"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ErrUnknownClass is returned by Backward for a class index outside [0,K).
var ErrUnknownClass = errors.New("nn: class index out of range")

// Classifier is a differentiable function from an image tensor [1,3,H,W] to
// logits [1,K] with named, observable sub-layers.
type Classifier interface {
	Forward(input *tensor.Dense) (*tensor.Dense, error)
	Backward(classIdx int) error
	ZeroGrad()
	Layer(name string) (Layer, bool)
	LayerNames() []string
	NumClasses() int
	Training() bool
	Eval()
}

// Sequential runs its modules in order. Modules registered with Register
// are addressable by name but never run.
type Sequential struct {
	name       string
	numClasses int
	path       []Module
	aux        []Module
	byName     map[string]Module
	training   bool

	ran       bool
	inputGrad *tensor.Dense
}

var _ Classifier = (*Sequential)(nil)

// NewSequential creates an empty network producing numClasses logits.
func NewSequential(name string, numClasses int) *Sequential {
	return &Sequential{name: name, numClasses: numClasses, byName: make(map[string]Module)}
}

// Name returns the network name.
func (s *Sequential) Name() string { return s.name }

// Append adds modules to the forward path.
func (s *Sequential) Append(mods ...Module) *Sequential {
	for _, m := range mods {
		s.path = append(s.path, m)
		s.byName[m.Name()] = m
	}
	return s
}

// Register adds modules that belong to the network but are not on the
// forward path, such as auxiliary heads.
func (s *Sequential) Register(mods ...Module) *Sequential {
	for _, m := range mods {
		s.aux = append(s.aux, m)
		s.byName[m.Name()] = m
	}
	return s
}

func (s *Sequential) Layer(name string) (Layer, bool) {
	m, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return m, true
}

// LayerNames lists forward-path layers in execution order followed by
// auxiliary layers.
func (s *Sequential) LayerNames() []string {
	names := make([]string, 0, len(s.path)+len(s.aux))
	for _, m := range s.path {
		names = append(names, m.Name())
	}
	for _, m := range s.aux {
		names = append(names, m.Name())
	}
	return names
}

func (s *Sequential) NumClasses() int { return s.numClasses }

func (s *Sequential) Training() bool { return s.training }

func (s *Sequential) Eval() { s.training = false }

// Train switches dropout on.
func (s *Sequential) Train() { s.training = true }

// Forward runs the forward path, firing each layer's forward hooks with its
// output.
func (s *Sequential) Forward(input *tensor.Dense) (*tensor.Dense, error) {
	shape := Shape(input)
	if Values(input) == nil || len(shape) != 4 || shape[0] != 1 || shape[1] != 3 {
		return nil, errors.Wrapf(ErrShape, "%s: expected input [1,3,H,W], got %v", s.name, shape)
	}
	s.ran = false
	x := input
	for _, m := range s.path {
		out, err := m.forward(x, s.training)
		if err != nil {
			return nil, errors.Wrapf(err, "forward %s", m.Name())
		}
		m.capture().fireForward(out)
		x = out
	}
	if got := Shape(x); len(got) != 2 || got[0] != 1 || got[1] != s.numClasses {
		return nil, errors.Wrapf(ErrShape, "%s: expected logits [1,%d], got %v", s.name, s.numClasses, got)
	}
	s.ran = true
	return x, nil
}

// Backward propagates d(logit[classIdx]) back through the forward path.
// Each layer's backward hooks see the gradient with respect to its output
// before the layer itself is differentiated.
func (s *Sequential) Backward(classIdx int) error {
	if !s.ran {
		return errors.Wrap(ErrNoForward, s.name)
	}
	if classIdx < 0 || classIdx >= s.numClasses {
		return errors.Wrapf(ErrUnknownClass, "%d not in [0,%d)", classIdx, s.numClasses)
	}
	seed := make([]float32, s.numClasses)
	seed[classIdx] = 1
	g := dense([]int{1, s.numClasses}, seed)
	for i := len(s.path) - 1; i >= 0; i-- {
		m := s.path[i]
		m.capture().fireBackward(g)
		next, err := m.backward(g)
		if err != nil {
			return errors.Wrapf(err, "backward %s", m.Name())
		}
		g = next
	}
	s.inputGrad = g
	return nil
}

// InputGrad returns the gradient with respect to the input of the last
// Backward call, or nil.
func (s *Sequential) InputGrad() *tensor.Dense { return s.inputGrad }

// ZeroGrad discards gradients left by a previous Backward.
func (s *Sequential) ZeroGrad() { s.inputGrad = nil }

// Parameters returns every parameter of the network, auxiliary layers
// included, sorted by name.
func (s *Sequential) Parameters() []*Parameter {
	var out []*Parameter
	for _, m := range append(append([]Module(nil), s.path...), s.aux...) {
		out = append(out, m.parameters()...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// StateDict copies all parameters into a name-keyed map.
func (s *Sequential) StateDict() map[string][]float32 {
	sd := make(map[string][]float32)
	for _, p := range s.Parameters() {
		sd[p.Name] = append([]float32(nil), p.Data...)
	}
	return sd
}

// LoadStateDict copies matching entries of sd into the network. It returns
// the names of parameters sd did not provide. Entries whose length does not
// match are an error. In strict mode missing or unexpected names are also
// errors.
func (s *Sequential) LoadStateDict(sd map[string][]float32, strict bool) ([]string, error) {
	var missing []string
	known := make(map[string]bool)
	for _, p := range s.Parameters() {
		known[p.Name] = true
		v, ok := sd[p.Name]
		if !ok {
			missing = append(missing, p.Name)
			continue
		}
		if len(v) != len(p.Data) {
			return nil, errors.Wrapf(ErrShape, "parameter %s: have %d values, checkpoint has %d", p.Name, len(p.Data), len(v))
		}
	}
	if strict {
		if len(missing) > 0 {
			return missing, errors.Errorf("missing parameters: %v", missing)
		}
		for name := range sd {
			if !known[name] {
				return nil, errors.Errorf("unexpected parameter %q", name)
			}
		}
	}
	for _, p := range s.Parameters() {
		if v, ok := sd[p.Name]; ok {
			copy(p.Data, v)
		}
	}
	return missing, nil
}
