package inference

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/ironsheep/retina-explain-mcp/internal/nn"
)

// ErrUnavailable is returned when the binary was built without ONNX Runtime.
var ErrUnavailable = errors.New("inference: built without onnx runtime support")

// Metadata describes the tensors and labels of an exported model. It is
// read from a JSON sidecar next to the .onnx file.
type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
}

// Prediction is the result of one ONNX forward pass.
type Prediction struct {
	Class         string             `json:"class"`
	Index         int                `json:"index"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
}

// LoadMetadata reads and validates a metadata sidecar.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read metadata")
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "parse metadata")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that the shapes match an RGB classifier with one output
// per class.
func (m *Metadata) Validate() error {
	if len(m.InputShape) != 4 || m.InputShape[0] != 1 || m.InputShape[1] != 3 {
		return errors.Errorf("metadata: input shape %v, want [1 3 H W]", m.InputShape)
	}
	for _, d := range m.InputShape[2:] {
		if d <= 0 {
			return errors.Errorf("metadata: input shape %v has non-positive spatial size", m.InputShape)
		}
	}
	if len(m.Classes) == 0 {
		return errors.New("metadata: no classes")
	}
	if len(m.OutputShape) != 2 || m.OutputShape[0] != 1 || m.OutputShape[1] != int64(len(m.Classes)) {
		return errors.Errorf("metadata: output shape %v, want [1 %d]", m.OutputShape, len(m.Classes))
	}
	return nil
}

// InputLen is the number of float32 values in one input tensor.
func (m *Metadata) InputLen() int {
	n := int64(1)
	for _, d := range m.InputShape {
		n *= d
	}
	return int(n)
}

// Size is the square input side: ImageSize, or the last input dimension
// when the sidecar leaves it out.
func (m *Metadata) Size() int {
	if m.ImageSize > 0 {
		return m.ImageSize
	}
	if len(m.InputShape) == 4 {
		return int(m.InputShape[3])
	}
	return 0
}

func (m *Metadata) prediction(logits []float32) *Prediction {
	probs := nn.Softmax(logits)
	idx := nn.Argmax(logits)
	p := &Prediction{
		Index:         idx,
		Probabilities: make(map[string]float64, len(m.Classes)),
	}
	for i, name := range m.Classes {
		if i < len(probs) {
			p.Probabilities[name] = probs[i]
		}
	}
	if idx >= 0 && idx < len(m.Classes) {
		p.Class = m.Classes[idx]
		p.Confidence = probs[idx]
	}
	return p
}
