// Package nn is a small differentiable classifier runtime used to serve and
// explain retinal OCT classifiers.
//
// A Classifier maps an image tensor of shape [1,3,H,W] to logits of shape
// [1,K]. Every sub-layer is addressable by a dotted name ("features.5",
// "norm") and exposes capture points: forward hooks observe the layer output
// and backward hooks observe the gradient of the backpropagated logit with
// respect to that output.
//
// # Capture Points
//
// Hooks are layer-global mutable state. A registered hook fires on every
// forward or backward pass until its HookHandle is removed, so callers must
// remove handles on every exit path. HookHandle.Remove is idempotent.
//
// # Thread Safety
//
// A Sequential is not safe for concurrent use. Forward caches per-layer inputs
// for the following Backward call, and hook registries are shared by all
// callers of the same network. Serialize access when one Sequential is shared.
//
// # Evaluation Mode
//
// Networks are returned in evaluation mode by the model loaders. Dropout is
// the identity in evaluation mode; in training mode it drops activations with
// a fixed seed. Explanations produced in training mode are not reproducible.
package nn
