package imaging

import (
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/clone"
	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"gorgonia.org/tensor"

	"github.com/ironsheep/retina-explain-mcp/internal/nn"
)

// DefaultInputSize is the classifier input resolution.
const DefaultInputSize = 224

// ImageNet channel statistics used to normalise classifier inputs.
var (
	ImageNetMean = [3]float32{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float32{0.229, 0.224, 0.225}
)

// resizeShortest scales img so that its shorter side is size pixels.
func resizeShortest(img image.Image, size int) image.Image {
	b := img.Bounds()
	if b.Dx() <= b.Dy() {
		return resize.Resize(uint(size), 0, img, resize.Bilinear)
	}
	return resize.Resize(0, uint(size), img, resize.Bilinear)
}

// ToInputTensor prepares img for a classifier: RGB conversion, bilinear
// resize of the shorter side to size, centre crop to size x size, scaling to
// [0,1] and ImageNet normalisation. The result has shape [1,3,size,size].
func ToInputTensor(img image.Image, size int) (*tensor.Dense, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image")
	}
	if size <= 0 {
		return nil, fmt.Errorf("invalid input size %d", size)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("empty image")
	}
	rgb := clone.AsRGBA(img)
	cropped := imaging.CropCenter(resizeShortest(rgb, size), size, size)
	if cropped.Bounds().Dx() != size || cropped.Bounds().Dy() != size {
		return nil, fmt.Errorf("image %dx%d too small for %d input", b.Dx(), b.Dy(), size)
	}

	plane := size * size
	data := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := y*cropped.Stride + x*4
			for ch := 0; ch < 3; ch++ {
				v := float32(cropped.Pix[i+ch]) / 255
				data[ch*plane+y*size+x] = (v - ImageNetMean[ch]) / ImageNetStd[ch]
			}
		}
	}
	return nn.NewTensor([]int{1, 3, size, size}, data)
}

// DisplayImage produces the size x size RGB image that saliency maps are
// overlaid on. It uses the same shorter-side resize and centre crop as
// ToInputTensor, with a Lanczos filter.
func DisplayImage(img image.Image, size int) (*image.NRGBA, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image")
	}
	if size <= 0 {
		return nil, fmt.Errorf("invalid display size %d", size)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("empty image")
	}
	out := imaging.Fill(clone.AsRGBA(img), size, size, imaging.Center, imaging.Lanczos)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 255
	}
	return out, nil
}
