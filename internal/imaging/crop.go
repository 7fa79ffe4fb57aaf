package imaging

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Crop cuts the region (x1,y1)-(x2,y2) out of img, optionally rescales it
// and returns it as a base64 PNG.
func Crop(img image.Image, x1, y1, x2, y2 int, scale float64) (*EncodedImage, error) {
	bounds := img.Bounds()
	if x1 < bounds.Min.X || y1 < bounds.Min.Y || x2 > bounds.Max.X || y2 > bounds.Max.Y {
		return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) outside image bounds (%d,%d)-(%d,%d)",
			x1, y1, x2, y2, bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	}
	if x1 >= x2 || y1 >= y2 {
		return nil, fmt.Errorf("invalid crop region: x1 must be < x2, y1 must be < y2")
	}

	cropped := imaging.Crop(img, image.Rect(x1, y1, x2, y2))
	if scale > 0 && scale != 1.0 {
		w := max(1, int(float64(cropped.Bounds().Dx())*scale))
		h := max(1, int(float64(cropped.Bounds().Dy())*scale))
		cropped = imaging.Resize(cropped, w, h, imaging.Lanczos)
	}
	return EncodePNGBase64(cropped)
}

// RegionRect resolves a named region of a w x h image. Besides the
// quadrants and halves, "fovea" is the central third, where most retinal
// pathology of interest sits on a centred macular scan.
func RegionRect(region string, w, h int) (image.Rectangle, error) {
	midX, midY := w/2, h/2
	switch region {
	case "top-left":
		return image.Rect(0, 0, midX, midY), nil
	case "top-right":
		return image.Rect(midX, 0, w, midY), nil
	case "bottom-left":
		return image.Rect(0, midY, midX, h), nil
	case "bottom-right":
		return image.Rect(midX, midY, w, h), nil
	case "top-half":
		return image.Rect(0, 0, w, midY), nil
	case "bottom-half":
		return image.Rect(0, midY, w, h), nil
	case "left-half":
		return image.Rect(0, 0, midX, h), nil
	case "right-half":
		return image.Rect(midX, 0, w, h), nil
	case "center":
		return image.Rect(w/4, h/4, w-w/4, h-h/4), nil
	case "fovea":
		return image.Rect(w/3, h/3, w-w/3, h-h/3), nil
	}
	return image.Rectangle{}, fmt.Errorf("unknown region: %s", region)
}

// CropRegion crops a named region, see RegionRect.
func CropRegion(img image.Image, region string, scale float64) (*EncodedImage, error) {
	b := img.Bounds()
	r, err := RegionRect(region, b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	r = r.Add(b.Min)
	return Crop(img, r.Min.X, r.Min.Y, r.Max.X, r.Max.Y, scale)
}
