//go:build !cgo || !tesseract

package ocr

import (
	"errors"
	"image"
	"testing"
)

func TestStubUnavailable(t *testing.T) {
	if Available() {
		t.Fatal("stub build reports tesseract available")
	}
	if _, err := ExtractText("scan.png", "eng"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("ExtractText error = %v, want ErrUnavailable", err)
	}
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	if _, err := ExtractTextFromRegion(img, img.Bounds(), ""); !errors.Is(err, ErrUnavailable) {
		t.Errorf("ExtractTextFromRegion error = %v, want ErrUnavailable", err)
	}
}
