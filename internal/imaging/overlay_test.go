package imaging

import (
	"image/color"
	"math"
	"testing"
)

func TestJetColor_Endpoints(t *testing.T) {
	tests := []struct {
		v    uint8
		want color.NRGBA
	}{
		{0, color.NRGBA{0, 0, 128, 255}},
		{255, color.NRGBA{128, 0, 0, 255}},
	}
	for _, tt := range tests {
		if got := JetColor(tt.v); got != tt.want {
			t.Errorf("JetColor(%d) = %v, want %v", tt.v, got, tt.want)
		}
	}

	// Low values are cool, high values hot.
	low, high := JetColor(30), JetColor(225)
	if low.B <= low.R {
		t.Errorf("JetColor(30) = %v, want blue dominant", low)
	}
	if high.R <= high.B {
		t.Errorf("JetColor(225) = %v, want red dominant", high)
	}
	if mid := JetColor(128); mid.G < 200 {
		t.Errorf("JetColor(128) = %v, want strong green", mid)
	}
}

func TestJetPalette(t *testing.T) {
	p := JetPalette()
	if len(p) != 256 {
		t.Fatalf("palette length: got %d, want 256", len(p))
	}
	if p[17] != JetColor(17) {
		t.Errorf("palette entry 17 does not match JetColor")
	}
}

func TestOverlay_AlphaZeroReturnsOriginal(t *testing.T) {
	img := createPatternImage(60, 40)
	out, err := Overlay(img, blobSaliency(14, 3, 9), 0)
	if err != nil {
		t.Fatalf("Overlay failed: %v", err)
	}
	for y := 0; y < 40; y++ {
		for x := 0; x < 60; x++ {
			want := img.RGBAAt(x, y)
			got := out.NRGBAAt(x, y)
			if got.R != want.R || got.G != want.G || got.B != want.B || got.A != 255 {
				t.Fatalf("pixel (%d,%d): got %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestOverlay_AlphaOneIgnoresOriginal(t *testing.T) {
	m := blobSaliency(14, 3, 9)
	a, err := Overlay(createPatternImage(50, 50), m, 1)
	if err != nil {
		t.Fatalf("Overlay failed: %v", err)
	}
	b, err := Overlay(createInMemoryImage(50, 50, color.RGBA{12, 34, 56, 255}), m, 1)
	if err != nil {
		t.Fatalf("Overlay failed: %v", err)
	}
	hot, err := Heatmap(m, 50, 50)
	if err != nil {
		t.Fatalf("Heatmap failed: %v", err)
	}
	for i := range a.Pix {
		if a.Pix[i] != b.Pix[i] || a.Pix[i] != hot.Pix[i] {
			t.Fatalf("byte %d differs: %d %d %d", i, a.Pix[i], b.Pix[i], hot.Pix[i])
		}
	}
}

func TestOverlay_MatchesDisplaySize(t *testing.T) {
	sizes := [][2]int{{224, 224}, {300, 120}, {7, 9}}
	for _, s := range sizes {
		out, err := Overlay(createGrayScan(s[0], s[1]), uniformSaliency(14, 0.5), 0.5)
		if err != nil {
			t.Fatalf("Overlay %v failed: %v", s, err)
		}
		b := out.Bounds()
		if b.Dx() != s[0] || b.Dy() != s[1] {
			t.Errorf("size: got %dx%d, want %dx%d", b.Dx(), b.Dy(), s[0], s[1])
		}
	}
}

func TestOverlay_BlendHalf(t *testing.T) {
	img := createInMemoryImage(10, 10, color.RGBA{0, 0, 0, 255})
	out, err := Overlay(img, uniformSaliency(4, 1), 0.5)
	if err != nil {
		t.Fatalf("Overlay failed: %v", err)
	}
	// jet(255) is (128,0,0); half of it over black rounds to 64.
	got := out.NRGBAAt(5, 5)
	if got.R != 64 || got.G != 0 || got.B != 0 {
		t.Errorf("blended pixel: got %v, want {64 0 0 255}", got)
	}
}

func TestOverlay_TruncatesSaliency(t *testing.T) {
	// 0.999*255 truncates to 254, not 255.
	hot, err := Heatmap(uniformSaliency(2, 0.999), 2, 2)
	if err != nil {
		t.Fatalf("Heatmap failed: %v", err)
	}
	if got, want := hot.NRGBAAt(0, 0), JetColor(254); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestOverlay_InvalidArguments(t *testing.T) {
	img := createPatternImage(10, 10)
	m := uniformSaliency(4, 0.2)
	if _, err := Overlay(img, m, -0.1); err == nil {
		t.Error("expected error for negative alpha")
	}
	if _, err := Overlay(img, m, 1.5); err == nil {
		t.Error("expected error for alpha > 1")
	}
	if _, err := Overlay(img, m, math.NaN()); err == nil {
		t.Error("expected error for NaN alpha")
	}
	if _, err := Overlay(nil, m, 0.5); err == nil {
		t.Error("expected error for nil image")
	}
	if _, err := Overlay(img, nil, 0.5); err == nil {
		t.Error("expected error for nil map")
	}
}
