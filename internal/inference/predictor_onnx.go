//go:build onnx

package inference

import (
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/multierr"
)

// Available reports whether ONNX Runtime support is compiled in.
func Available() bool { return true }

// Predictor owns one ONNX Runtime session with preallocated tensors. It is
// not safe for concurrent use.
type Predictor struct {
	Metadata     Metadata
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// NewPredictor initializes the runtime and opens modelPath using the
// shapes in metadataPath. Tensor names are "input" and "output".
func NewPredictor(modelPath, metadataPath string) (*Predictor, error) {
	meta, err := LoadMetadata(metadataPath)
	if err != nil {
		return nil, err
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, errors.Wrap(err, "initialize onnx environment")
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.InputShape...))
	if err != nil {
		return nil, multierr.Append(errors.Wrap(err, "create input tensor"), ort.DestroyEnvironment())
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.OutputShape...))
	if err != nil {
		return nil, multierr.Combine(errors.Wrap(err, "create output tensor"), inputTensor.Destroy(), ort.DestroyEnvironment())
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"}, []string{"output"},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		return nil, multierr.Combine(errors.Wrap(err, "create onnx session"),
			inputTensor.Destroy(), outputTensor.Destroy(), ort.DestroyEnvironment())
	}

	return &Predictor{
		Metadata:     *meta,
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Predict runs one forward pass over a normalized [1,3,H,W] input.
func (p *Predictor) Predict(input []float32) (*Prediction, error) {
	if want := p.Metadata.InputLen(); len(input) != want {
		return nil, errors.Errorf("inference: input has %d values, want %d", len(input), want)
	}
	copy(p.inputTensor.GetData(), input)

	if err := p.session.Run(); err != nil {
		return nil, errors.Wrap(err, "inference failed")
	}

	out := p.outputTensor.GetData()
	logits := make([]float32, len(out))
	copy(logits, out)
	return p.Metadata.prediction(logits), nil
}

// InputSize is the square input side the model expects.
func (p *Predictor) InputSize() int { return p.Metadata.Size() }

// Close releases the session, its tensors and the runtime environment.
func (p *Predictor) Close() error {
	var err error
	if p.inputTensor != nil {
		err = multierr.Append(err, p.inputTensor.Destroy())
	}
	if p.outputTensor != nil {
		err = multierr.Append(err, p.outputTensor.Destroy())
	}
	if p.session != nil {
		err = multierr.Append(err, p.session.Destroy())
	}
	return multierr.Append(err, ort.DestroyEnvironment())
}
