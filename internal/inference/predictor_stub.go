//go:build !onnx

package inference

// Available reports whether ONNX Runtime support is compiled in.
func Available() bool { return false }

// Predictor is a placeholder in builds without ONNX Runtime.
type Predictor struct {
	Metadata Metadata
}

// NewPredictor returns ErrUnavailable in builds without ONNX Runtime.
func NewPredictor(modelPath, metadataPath string) (*Predictor, error) {
	return nil, ErrUnavailable
}

// Predict returns ErrUnavailable in builds without ONNX Runtime.
func (p *Predictor) Predict(input []float32) (*Prediction, error) {
	return nil, ErrUnavailable
}

// InputSize is the square input side the model expects.
func (p *Predictor) InputSize() int { return p.Metadata.Size() }

// Close is a no-op.
func (p *Predictor) Close() error { return nil }
