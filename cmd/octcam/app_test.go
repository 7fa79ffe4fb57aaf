package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ironsheep/retina-explain-mcp/internal/nn"
)

func writeScan(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 280, 240))
	for y := 0; y < 240; y++ {
		for x := 0; x < 280; x++ {
			v := uint8(10)
			if (y/16)%2 == 0 {
				v = uint8(90 + x/4)
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	path := filepath.Join(dir, "scan.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func decodePNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	return img
}

func TestModelsAction(t *testing.T) {
	var out, errOut bytes.Buffer
	require.NoError(t, NewApp(&out, &errOut).Run([]string{"octcam", "models"}))

	var specs []nn.Spec
	require.NoError(t, json.Unmarshal(out.Bytes(), &specs))
	require.Len(t, specs, 2)
	require.Equal(t, nn.KindEfficientNetB4, specs[0].Kind)
	require.True(t, specs[1].Disabled)
}

func TestExplainAction(t *testing.T) {
	dir := t.TempDir()
	scan := writeScan(t, dir)
	composite := filepath.Join(dir, "composite.png")
	heatmap := filepath.Join(dir, "heatmap.png")

	var out, errOut bytes.Buffer
	err := NewApp(&out, &errOut).Run([]string{
		"octcam", "explain",
		"--weights-dir", filepath.Join(dir, "models"),
		"--alpha", "0.6",
		"--target", "1",
		"--out", composite,
		"--heatmap", heatmap,
		"--hotspot", "0.5",
		scan,
	})
	require.NoError(t, err)

	var res struct {
		Model          string           `json:"model"`
		Demo           bool             `json:"demo"`
		ExplainedClass string           `json:"explained_class"`
		OutFile        string           `json:"out_file"`
		HeatmapFile    string           `json:"heatmap_file"`
		Overlay        *json.RawMessage `json:"overlay"`
		Hotspot        *json.RawMessage `json:"hotspot"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	require.Equal(t, "efficientnet_b4", res.Model)
	require.True(t, res.Demo)
	require.Equal(t, "DME", res.ExplainedClass)
	require.Equal(t, composite, res.OutFile)
	require.Equal(t, heatmap, res.HeatmapFile)
	require.Nil(t, res.Overlay)
	require.NotNil(t, res.Hotspot)

	for _, path := range []string{composite, heatmap} {
		img := decodePNG(t, path)
		require.Equal(t, 224, img.Bounds().Dx())
		require.Equal(t, 224, img.Bounds().Dy())
	}
}

func TestExplainActionErrors(t *testing.T) {
	dir := t.TempDir()
	scan := writeScan(t, dir)

	tests := []struct {
		name string
		args []string
	}{
		{"no scan", []string{"octcam", "explain"}},
		{"missing scan", []string{"octcam", "explain", filepath.Join(dir, "absent.png")}},
		{"unknown model", []string{"octcam", "explain", "--model", "resnet50", scan}},
		{"disabled model", []string{"octcam", "explain", "--model", "swin_v2", "--weights-dir", dir, scan}},
		{"bad alpha", []string{"octcam", "explain", "--weights-dir", dir, "--alpha", "3", scan}},
		{"bad target", []string{"octcam", "explain", "--weights-dir", dir, "--target", "12", scan}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			require.Error(t, NewApp(&out, &errOut).Run(tt.args))
		})
	}
}
