package ocr

import "github.com/pkg/errors"

// ErrUnavailable is returned when the binary was built without Tesseract.
var ErrUnavailable = errors.New("ocr: built without tesseract support")

// DefaultLanguage is the Tesseract language used when none is given.
const DefaultLanguage = "eng"

// Bounds is a bounding box in pixel coordinates, (X2,Y2) exclusive.
type Bounds struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// TextRegion is one recognised word.
type TextRegion struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"` // 0 to 1
	Bounds     Bounds  `json:"bounds"`
}

// Result is the text found in an image.
type Result struct {
	FullText    string       `json:"full_text"`
	Regions     []TextRegion `json:"regions"`
	Annotations Annotations  `json:"annotations"`
}

func language(lang string) string {
	if lang == "" {
		return DefaultLanguage
	}
	return lang
}
