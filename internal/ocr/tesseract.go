//go:build cgo && tesseract

package ocr

import (
	"bytes"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
	"github.com/pkg/errors"
)

// Available reports whether Tesseract support is compiled in.
func Available() bool { return true }

func recognise(client *gosseract.Client, lang string) (*Result, error) {
	if err := client.SetLanguage(language(lang)); err != nil {
		return nil, errors.Wrap(err, "set language")
	}
	text, err := client.Text()
	if err != nil {
		return nil, errors.Wrap(err, "OCR failed")
	}
	res := &Result{FullText: text, Regions: []TextRegion{}, Annotations: ParseAnnotations(text)}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		// text without word boxes is still useful
		return res, nil
	}
	for _, box := range boxes {
		if box.Word == "" {
			continue
		}
		res.Regions = append(res.Regions, TextRegion{
			Text:       box.Word,
			Confidence: float64(box.Confidence) / 100.0,
			Bounds:     Bounds{X1: box.Box.Min.X, Y1: box.Box.Min.Y, X2: box.Box.Max.X, Y2: box.Box.Max.Y},
		})
	}
	return res, nil
}

// ExtractText recognises the text in the image file at path.
func ExtractText(path, lang string) (*Result, error) {
	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetImage(path); err != nil {
		return nil, errors.Wrap(err, "set image")
	}
	return recognise(client, lang)
}

// ExtractTextFromRegion recognises the text inside r of img. Word bounds are
// reported in img coordinates.
func ExtractTextFromRegion(img image.Image, r image.Rectangle, lang string) (*Result, error) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return nil, errors.Errorf("region %v outside image %v", r, img.Bounds())
	}
	// upscale small burned-in fonts
	cropped := imaging.Crop(img, r)
	const upscale = 2
	cropped = imaging.Resize(cropped, r.Dx()*upscale, r.Dy()*upscale, imaging.Lanczos)

	var buf bytes.Buffer
	if err := png.Encode(&buf, cropped); err != nil {
		return nil, errors.Wrap(err, "encode region")
	}
	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, errors.Wrap(err, "set image")
	}
	res, err := recognise(client, lang)
	if err != nil {
		return nil, err
	}
	for i := range res.Regions {
		b := &res.Regions[i].Bounds
		b.X1 = r.Min.X + b.X1/upscale
		b.Y1 = r.Min.Y + b.Y1/upscale
		b.X2 = r.Min.X + (b.X2+upscale-1)/upscale
		b.Y2 = r.Min.Y + (b.Y2+upscale-1)/upscale
	}
	return res, nil
}
