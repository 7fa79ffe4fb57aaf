// Package imaging prepares OCT scans for classification and renders Grad-CAM
// explanations on top of them.
//
// # Preprocessing
//
// A scan is prepared twice. ToInputTensor produces the normalised
// [1,3,S,S] float32 classifier input; DisplayImage produces the S x S RGB
// image that explanations are drawn on. Both resize the shorter side to S
// and crop the centre, so a saliency map computed on the tensor lines up
// with the display image pixel for pixel.
//
// # Compositing
//
// Overlay turns a saliency map into a jet-coloured heatmap (blue for low
// importance, red for high) at the display image's size and blends it with
// the display image:
//
//	out = alpha*heatmap + (1-alpha)*display
//
// The map is quantised to 8 bits by truncation and resampled bilinearly.
// Blending is done on go-colorful colours, then rounded and clamped. The
// output always has the display image's dimensions, not the map's.
//
// # Coordinate System
//
// Pixel coordinates are 0-based with (0,0) at the top-left. For regions,
// (x1,y1) is inclusive and (x2,y2) exclusive.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. All other functions are pure and
// may run concurrently on independent images.
package imaging
