package inference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeMetadata(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMetadata(t *testing.T) {
	path := writeMetadata(t, `{
		"input_shape": [1, 3, 224, 224],
		"output_shape": [1, 4],
		"classes": ["CNV", "DME", "DRUSEN", "NORMAL"],
		"image_size": 224
	}`)

	m, err := LoadMetadata(path)
	require.NoError(t, err)
	require.Equal(t, []string{"CNV", "DME", "DRUSEN", "NORMAL"}, m.Classes)
	require.Equal(t, 224, m.ImageSize)
	require.Equal(t, 3*224*224, m.InputLen())
}

func TestLoadMetadataRejectsBadShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"grayscale input", `{"input_shape":[1,1,224,224],"output_shape":[1,2],"classes":["a","b"]}`},
		{"zero spatial", `{"input_shape":[1,3,0,224],"output_shape":[1,2],"classes":["a","b"]}`},
		{"class mismatch", `{"input_shape":[1,3,224,224],"output_shape":[1,3],"classes":["a","b"]}`},
		{"no classes", `{"input_shape":[1,3,224,224],"output_shape":[1,0],"classes":[]}`},
		{"not json", `input_shape: [1,3]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadMetadata(writeMetadata(t, tt.body))
			require.Error(t, err)
		})
	}
}

func TestLoadMetadataMissingFile(t *testing.T) {
	_, err := LoadMetadata(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestPredictionFromLogits(t *testing.T) {
	m := &Metadata{Classes: []string{"AMD", "DME", "NORMAL"}}
	p := m.prediction([]float32{0.1, 3.0, 0.2})

	require.Equal(t, "DME", p.Class)
	require.Equal(t, 1, p.Index)
	require.Greater(t, p.Confidence, 0.5)
	require.Len(t, p.Probabilities, 3)

	var sum float64
	for _, v := range p.Probabilities {
		sum += v
	}
	require.InDelta(t, 1.0, sum, 1e-9)
	require.InDelta(t, p.Confidence, p.Probabilities["DME"], 1e-12)
}

func TestMetadataSize(t *testing.T) {
	require.Equal(t, 256, (&Metadata{ImageSize: 256, InputShape: []int64{1, 3, 224, 224}}).Size())
	require.Equal(t, 224, (&Metadata{InputShape: []int64{1, 3, 224, 224}}).Size())
	require.Zero(t, (&Metadata{}).Size())
}
