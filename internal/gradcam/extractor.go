package gradcam

import (
	"sync"

	"gorgonia.org/tensor"

	"github.com/ironsheep/retina-explain-mcp/internal/nn"
)

// Extractor explains one shared classifier from many goroutines. Each call
// runs attach, explain and detach under a single lock.
type Extractor struct {
	mu         sync.Mutex
	classifier nn.Classifier
	layer      string
	opts       []Option
}

// NewExtractor validates layerName against c and returns an Extractor.
func NewExtractor(c nn.Classifier, layerName string, opts ...Option) (*Extractor, error) {
	h, err := Attach(c, layerName, opts...)
	if err != nil {
		return nil, err
	}
	h.Detach()
	return &Extractor{classifier: c, layer: layerName, opts: opts}, nil
}

// Layer returns the target layer name.
func (e *Extractor) Layer() string { return e.layer }

// Explain produces a saliency map for input. target nil selects the top
// class.
func (e *Extractor) Explain(input *tensor.Dense, target *int) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Generate(e.classifier, e.layer, input, target, e.opts...)
}
