// Package inference runs exported OCT classifiers through ONNX Runtime.
//
// The ONNX path only classifies. It has no access to intermediate
// activations, so attention maps always come from the in-process networks
// in package nn. A Predictor is useful to cross-check a deployed model
// against the Grad-CAM network or to serve classification when the
// in-process weights are unavailable.
//
// ONNX Runtime support is compiled in with the "onnx" build tag. Without
// it NewPredictor returns ErrUnavailable.
package inference
