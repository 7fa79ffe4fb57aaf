package imaging

import (
	"image/color"
	"math"
	"testing"

	"github.com/ironsheep/retina-explain-mcp/internal/nn"
)

func TestToInputTensor_ShapeAndNormalisation(t *testing.T) {
	img := createInMemoryImage(300, 200, color.RGBA{255, 255, 255, 255})
	x, err := ToInputTensor(img, 224)
	if err != nil {
		t.Fatalf("ToInputTensor failed: %v", err)
	}
	shape := nn.Shape(x)
	if len(shape) != 4 || shape[0] != 1 || shape[1] != 3 || shape[2] != 224 || shape[3] != 224 {
		t.Fatalf("shape: got %v, want [1 3 224 224]", shape)
	}

	vals := nn.Values(x)
	plane := 224 * 224
	for ch := 0; ch < 3; ch++ {
		want := (1 - ImageNetMean[ch]) / ImageNetStd[ch]
		got := vals[ch*plane+112*224+112]
		if math.Abs(float64(got-want)) > 0.02 {
			t.Errorf("channel %d: got %f, want %f", ch, got, want)
		}
	}
}

func TestToInputTensor_GrayscaleReplicatesChannels(t *testing.T) {
	x, err := ToInputTensor(createGrayScan(224, 224), 224)
	if err != nil {
		t.Fatalf("ToInputTensor failed: %v", err)
	}
	vals := nn.Values(x)
	plane := 224 * 224
	i := 100*224 + 150
	// undo normalisation: every channel must hold the same raw intensity
	raw := func(ch int) float32 { return vals[ch*plane+i]*ImageNetStd[ch] + ImageNetMean[ch] }
	if math.Abs(float64(raw(0)-raw(1))) > 1e-5 || math.Abs(float64(raw(1)-raw(2))) > 1e-5 {
		t.Errorf("channels differ: %f %f %f", raw(0), raw(1), raw(2))
	}
}

func TestToInputTensor_CentreCropAligned(t *testing.T) {
	// Left half red, right half green; a 2:1 image cropped to the centre
	// keeps both halves.
	img := createInMemoryImage(448, 224, color.RGBA{255, 0, 0, 255})
	for y := 0; y < 224; y++ {
		for x := 224; x < 448; x++ {
			img.Set(x, y, color.RGBA{0, 255, 0, 255})
		}
	}
	x, err := ToInputTensor(img, 224)
	if err != nil {
		t.Fatalf("ToInputTensor failed: %v", err)
	}
	disp, err := DisplayImage(img, 224)
	if err != nil {
		t.Fatalf("DisplayImage failed: %v", err)
	}

	vals := nn.Values(x)
	red := vals[0*224*224+100*224+10]*ImageNetStd[0] + ImageNetMean[0]
	green := vals[1*224*224+100*224+210]*ImageNetStd[1] + ImageNetMean[1]
	if red < 0.9 || green < 0.9 {
		t.Errorf("tensor crop misaligned: red=%f green=%f", red, green)
	}
	if c := disp.NRGBAAt(10, 100); c.R < 230 || c.G > 25 {
		t.Errorf("display left pixel: got %v, want red", c)
	}
	if c := disp.NRGBAAt(210, 100); c.G < 230 || c.R > 25 {
		t.Errorf("display right pixel: got %v, want green", c)
	}
}

func TestDisplayImage(t *testing.T) {
	disp, err := DisplayImage(createPatternImage(512, 496), 224)
	if err != nil {
		t.Fatalf("DisplayImage failed: %v", err)
	}
	if b := disp.Bounds(); b.Dx() != 224 || b.Dy() != 224 {
		t.Errorf("size: got %dx%d, want 224x224", b.Dx(), b.Dy())
	}
	if a := disp.NRGBAAt(3, 3).A; a != 255 {
		t.Errorf("alpha: got %d, want 255", a)
	}
}

func TestPreprocess_InvalidArguments(t *testing.T) {
	if _, err := ToInputTensor(nil, 224); err == nil {
		t.Error("expected error for nil image")
	}
	if _, err := ToInputTensor(createGrayScan(10, 10), 0); err == nil {
		t.Error("expected error for zero size")
	}
	if _, err := DisplayImage(nil, 224); err == nil {
		t.Error("expected error for nil image")
	}
	if _, err := DisplayImage(createGrayScan(0, 0), 224); err == nil {
		t.Error("expected error for empty image")
	}
}
