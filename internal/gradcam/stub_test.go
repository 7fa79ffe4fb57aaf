package gradcam

import (
	"gorgonia.org/tensor"

	"github.com/ironsheep/retina-explain-mcp/internal/nn"
)

// stubLayer is a minimal nn.Layer with a single hook of each kind.
type stubLayer struct {
	name string
	fwd  nn.ForwardHook
	bwd  nn.BackwardHook
}

func (l *stubLayer) Name() string { return l.name }

func (l *stubLayer) RegisterForwardHook(fn nn.ForwardHook) *nn.HookHandle {
	l.fwd = fn
	return nn.NewHookHandle(func() { l.fwd = nil })
}

func (l *stubLayer) RegisterBackwardHook(fn nn.BackwardHook) *nn.HookHandle {
	l.bwd = fn
	return nn.NewHookHandle(func() { l.bwd = nil })
}

func (l *stubLayer) ActiveHooks() int {
	n := 0
	if l.fwd != nil {
		n++
	}
	if l.bwd != nil {
		n++
	}
	return n
}

// stubClassifier returns fixed logits. Its layer "feat" has two 2x2
// channels: channel 0 lights the top-left cell and channel 1 the
// bottom-right cell. Backward from class 2 puts all gradient on channel 0,
// any other class on channel 1.
type stubClassifier struct {
	logits     []float32
	layer      *stubLayer
	training   bool
	backwardOn []int
	zeroed     int
}

func newStubClassifier() *stubClassifier {
	return &stubClassifier{
		logits: []float32{0.1, 0.2, 5.0, 0.3},
		layer:  &stubLayer{name: "feat"},
	}
}

func (s *stubClassifier) Forward(input *tensor.Dense) (*tensor.Dense, error) {
	act, _ := nn.NewTensor([]int{1, 2, 2, 2}, []float32{
		1, 0, 0, 0,
		0, 0, 0, 1,
	})
	if s.layer.fwd != nil {
		s.layer.fwd(s.layer.name, act)
	}
	return nn.NewTensor([]int{1, len(s.logits)}, append([]float32(nil), s.logits...))
}

func (s *stubClassifier) Backward(class int) error {
	s.backwardOn = append(s.backwardOn, class)
	g := []float32{0, 0, 0, 0, 1, 1, 1, 1}
	if class == 2 {
		g = []float32{1, 1, 1, 1, 0, 0, 0, 0}
	}
	grad, _ := nn.NewTensor([]int{1, 2, 2, 2}, g)
	if s.layer.bwd != nil {
		s.layer.bwd(s.layer.name, grad)
	}
	return nil
}

func (s *stubClassifier) ZeroGrad() { s.zeroed++ }

func (s *stubClassifier) Layer(name string) (nn.Layer, bool) {
	if name != s.layer.name {
		return nil, false
	}
	return s.layer, true
}

func (s *stubClassifier) LayerNames() []string { return []string{s.layer.name} }
func (s *stubClassifier) NumClasses() int      { return len(s.logits) }
func (s *stubClassifier) Training() bool       { return s.training }
func (s *stubClassifier) Eval()                { s.training = false }

var _ nn.Classifier = (*stubClassifier)(nil)
