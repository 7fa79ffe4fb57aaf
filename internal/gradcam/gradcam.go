package gradcam

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorgonia.org/tensor"

	"github.com/ironsheep/retina-explain-mcp/internal/nn"
)

// DefaultSize is the side length of produced maps.
const DefaultSize = 224

var (
	// ErrUnknownLayer is returned by Attach when the classifier has no layer
	// with the requested name.
	ErrUnknownLayer = errors.New("gradcam: unknown target layer")

	// ErrInvalidInput is returned for malformed input tensors and target
	// classes outside the classifier's range.
	ErrInvalidInput = errors.New("gradcam: invalid input")

	// ErrDetached is returned by Explain on a handle that has been detached.
	ErrDetached = errors.New("gradcam: handle detached")
)

// Degenerate map reasons.
const (
	ReasonNotCaptured = "target layer produced no activation or gradient"
	ReasonRank        = "unsupported activation shape"
	ReasonShape       = "gradient shape does not match activation"
	ReasonNoEvidence  = "no positive evidence for target class"
	ReasonUniform     = "saliency is uniform"
)

// Result is the outcome of one explanation.
type Result struct {
	Map        *SaliencyMap
	Class      int
	Logit      float64
	Logits     []float32
	Degenerate bool
	Reason     string
}

type options struct {
	logger *zap.Logger
	size   int
}

// Option configures Attach.
type Option func(*options)

// WithLogger sets the logger used for warnings.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithOutputSize sets the side length of produced maps.
func WithOutputSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.size = size
		}
	}
}

// Handle owns the capture points installed on one classifier layer.
// A Handle is used by one goroutine at a time.
type Handle struct {
	classifier nn.Classifier
	layer      string
	opts       options

	fwd *nn.HookHandle
	bwd *nn.HookHandle

	activation *tensor.Dense
	gradient   *tensor.Dense
	detached   bool
}

// Attach installs forward and backward capture points on the named layer.
func Attach(c nn.Classifier, layerName string, opts ...Option) (*Handle, error) {
	if c == nil {
		return nil, errors.Wrap(ErrInvalidInput, "nil classifier")
	}
	layer, ok := c.Layer(layerName)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownLayer, "%q", layerName)
	}
	o := options{logger: zap.NewNop(), size: DefaultSize}
	for _, opt := range opts {
		opt(&o)
	}
	h := &Handle{classifier: c, layer: layerName, opts: o}
	h.fwd = layer.RegisterForwardHook(func(_ string, out *tensor.Dense) {
		h.activation = nn.Clone(out)
	})
	h.bwd = layer.RegisterBackwardHook(func(_ string, grad *tensor.Dense) {
		h.gradient = nn.Clone(grad)
	})
	return h, nil
}

// Layer returns the name of the observed layer.
func (h *Handle) Layer() string { return h.layer }

// Detach removes both capture points. It is safe to call more than once.
func (h *Handle) Detach() {
	if h == nil {
		return
	}
	h.fwd.Remove()
	h.bwd.Remove()
	h.release()
	h.detached = true
}

func (h *Handle) release() {
	h.activation = nil
	h.gradient = nil
}

func validateInput(input *tensor.Dense) error {
	if input == nil {
		return errors.Wrap(ErrInvalidInput, "nil input tensor")
	}
	if input.Dtype() != tensor.Float32 {
		return errors.Wrapf(ErrInvalidInput, "input dtype %v, want float32", input.Dtype())
	}
	shape := nn.Shape(input)
	if len(shape) != 4 || shape[0] != 1 || shape[1] != 3 || shape[2] <= 0 || shape[3] <= 0 {
		return errors.Wrapf(ErrInvalidInput, "input shape %v, want [1,3,H,W]", shape)
	}
	return nil
}

// Explain runs one forward and one backward pass and builds the saliency map
// for target, or for the top-scoring class when target is nil.
func (h *Handle) Explain(input *tensor.Dense, target *int) (*Result, error) {
	if h == nil || h.detached {
		return nil, ErrDetached
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if h.classifier.Training() {
		h.opts.logger.Warn("classifier is in training mode; explanation may not be reproducible",
			zap.String("layer", h.layer))
	}
	defer h.release()
	h.release()

	out, err := h.classifier.Forward(input)
	if err != nil {
		return nil, errors.Wrap(err, "forward pass")
	}
	logits := append([]float32(nil), nn.Values(out)...)
	class := nn.Argmax(logits)
	if target != nil {
		class = *target
	}
	if class < 0 || class >= len(logits) {
		return nil, errors.Wrapf(ErrInvalidInput, "target class %d not in [0,%d)", class, len(logits))
	}

	h.classifier.ZeroGrad()
	if err := h.classifier.Backward(class); err != nil {
		return nil, errors.Wrap(err, "backward pass")
	}

	res := &Result{Class: class, Logit: float64(logits[class]), Logits: logits}
	g, reason := h.rawMap()
	if reason == "" {
		res.Map, reason = h.finish(g)
	}
	if reason != "" {
		res.Map = Zero(h.opts.size)
		res.Degenerate = true
		res.Reason = reason
		h.opts.logger.Debug("degenerate saliency map",
			zap.String("layer", h.layer), zap.Int("class", class), zap.String("reason", reason))
	}
	return res, nil
}

// rawMap combines the captured tensors into a rectified grid.
func (h *Handle) rawMap() (grid, string) {
	act, grad := nn.Values(h.activation), nn.Values(h.gradient)
	if act == nil || grad == nil {
		return grid{}, ReasonNotCaptured
	}
	as, gs := nn.Shape(h.activation), nn.Shape(h.gradient)
	if !equalShape(as, gs) {
		return grid{}, ReasonShape
	}
	if hasZeroDim(as) {
		return grid{}, ReasonRank
	}
	var (
		g  grid
		ok bool
	)
	switch {
	case len(as) == 4 && as[0] == 1:
		g, ok = spatialCAM(act, grad, as[1], as[2], as[3])
	case len(as) == 3 && as[0] == 1:
		g, ok = tokenCAM(act, grad, as[1], as[2])
	}
	if !ok {
		return grid{}, ReasonRank
	}
	return g, ""
}

func hasZeroDim(shape []int) bool {
	for _, d := range shape {
		if d <= 0 {
			return true
		}
	}
	return false
}

func (h *Handle) finish(g grid) (*SaliencyMap, string) {
	if !anyPositive(g.v) {
		return nil, ReasonNoEvidence
	}
	v := upsample(g, h.opts.size)
	if !normalize(v) {
		return nil, ReasonUniform
	}
	return &SaliencyMap{size: h.opts.size, values: v}, ""
}

func anyPositive(v []float64) bool {
	for _, x := range v {
		if x > 0 {
			return true
		}
	}
	return false
}

func equalShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Generate attaches to layerName, explains input and detaches, on every
// exit path.
func Generate(c nn.Classifier, layerName string, input *tensor.Dense, target *int, opts ...Option) (*Result, error) {
	h, err := Attach(c, layerName, opts...)
	if err != nil {
		return nil, err
	}
	defer h.Detach()
	return h.Explain(input, target)
}
