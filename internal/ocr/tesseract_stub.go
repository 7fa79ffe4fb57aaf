//go:build !cgo || !tesseract

package ocr

import "image"

// Available reports whether Tesseract support is compiled in.
func Available() bool { return false }

// ExtractText returns ErrUnavailable in builds without Tesseract.
func ExtractText(path, lang string) (*Result, error) {
	return nil, ErrUnavailable
}

// ExtractTextFromRegion returns ErrUnavailable in builds without Tesseract.
func ExtractTextFromRegion(img image.Image, r image.Rectangle, lang string) (*Result, error) {
	return nil, ErrUnavailable
}
