// Package gradcam computes Grad-CAM saliency maps for nn.Classifier models.
//
// An explanation attaches a forward and a backward capture point to one named
// layer, runs a single forward pass and a single backward pass from the raw
// logit of the target class, and turns the captured activation and gradient
// into a square map in [0,1] at the output resolution (224 by default).
//
// # Lifecycle
//
// Attach installs the capture points and returns a Handle. Detach removes
// them and may be called any number of times. Generate wraps the
// attach, explain, detach sequence so that the capture points never outlive
// the call. Extractor additionally serializes that sequence for a classifier
// shared between goroutines.
//
// # Degenerate Maps
//
// Explain does not fail for architectural reasons. When the capture points
// never fire (the layer is not on the forward path), when the captured
// tensors have an unsupported rank, or when the map has no positive evidence,
// Explain returns an all-zero map and sets Result.Degenerate with a Reason.
// It returns an error only for invalid input tensors, out-of-range target
// classes, classifier failures, and use of a detached handle.
//
// # Token Sequences
//
// Activations of shape [1,N,C] are treated as token sequences. The grid side
// is floor(sqrt(N)) and the N-g*g leading tokens are dropped before the
// remaining tokens are laid out row-major. This matches layouts with leading
// class or register tokens (N=197 gives a 14x14 grid) and is only an
// approximation for other layouts.
//
// # Evaluation Mode
//
// The classifier must be in evaluation mode. Explain logs a warning
// otherwise but still runs; results are then not reproducible.
package gradcam
