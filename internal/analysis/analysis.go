// Package analysis runs the classify, explain and composite pipeline on a
// scan and optionally records the result for a patient.
package analysis

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorgonia.org/tensor"

	"github.com/ironsheep/retina-explain-mcp/internal/gradcam"
	"github.com/ironsheep/retina-explain-mcp/internal/imaging"
	"github.com/ironsheep/retina-explain-mcp/internal/nn"
	"github.com/ironsheep/retina-explain-mcp/internal/store"
)

// DefaultAlpha is the heatmap opacity used when a request leaves it unset.
const DefaultAlpha = 0.5

// WarningNoSignal is shown to users when the explanation degraded to an
// empty map.
const WarningNoSignal = "Grad-CAM could not be computed for this scan; the heatmap is empty."

var (
	// ErrNoImage is returned when a request carries no image.
	ErrNoImage = errors.New("analysis: no image")

	// ErrNoPatient is returned when a save is requested without a patient.
	ErrNoPatient = errors.New("analysis: saving requires a patient")
)

// ClassScore is the probability of one class.
type ClassScore struct {
	Class       string  `json:"class"`
	Probability float64 `json:"probability"`
}

// Classification is the classifier's verdict on a scan.
type Classification struct {
	Model          string       `json:"model"`
	Demo           bool         `json:"demo"`
	PredictedClass string       `json:"predicted_class"`
	PredictedIndex int          `json:"predicted_index"`
	Confidence     float64      `json:"confidence"`
	Probabilities  []ClassScore `json:"probabilities"`
}

// Result is one analysed scan.
type Result struct {
	ID        string `json:"id"`
	PatientID string `json:"patient_id,omitempty"`
	Classification
	ExplainedClass   string                `json:"explained_class"`
	Logit            float64               `json:"logit"`
	GradCAMAvailable bool                  `json:"gradcam_available"`
	Warning          string                `json:"warning,omitempty"`
	DegenerateReason string                `json:"degenerate_reason,omitempty"`
	Saliency         gradcam.Stats         `json:"saliency"`
	Overlay          *imaging.EncodedImage `json:"overlay,omitempty"`
	Report           string                `json:"report"`
	CreatedAt        time.Time             `json:"created_at"`

	Map     *gradcam.SaliencyMap `json:"-"`
	Display *image.NRGBA         `json:"-"`
	Image   *image.NRGBA         `json:"-"`
}

// Request describes one analysis.
type Request struct {
	Image     image.Image
	PatientID string
	Alpha     *float64 // nil uses the service default
	Target    *int     // nil explains the predicted class
	Save      bool
	Report    string // empty generates a ClinicalReport
}

// Service owns one loaded model. Classifier access is serialized, so a
// Service may be shared between goroutines.
type Service struct {
	mu        sync.Mutex
	model     *nn.Model
	patients  store.PatientRepository
	analyses  store.AnalysisRepository
	logger    *zap.Logger
	alpha     float64
	inputSize int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAlpha sets the default heatmap opacity.
func WithAlpha(a float64) Option {
	return func(s *Service) { s.alpha = a }
}

// WithInputSize overrides the model's square input size.
func WithInputSize(n int) Option {
	return func(s *Service) { s.inputSize = n }
}

// WithRepositories enables saving results.
func WithRepositories(p store.PatientRepository, a store.AnalysisRepository) Option {
	return func(s *Service) {
		s.patients = p
		s.analyses = a
	}
}

// NewService wraps model. The model's target layer is checked up front.
func NewService(model *nn.Model, opts ...Option) (*Service, error) {
	if model == nil || model.Network == nil {
		return nil, errors.New("analysis: nil model")
	}
	s := &Service{
		model:     model,
		logger:    zap.NewNop(),
		alpha:     DefaultAlpha,
		inputSize: model.Spec.InputSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if !(s.alpha >= 0 && s.alpha <= 1) {
		return nil, errors.Errorf("analysis: alpha %g outside [0,1]", s.alpha)
	}
	if s.inputSize <= 0 {
		s.inputSize = imaging.DefaultInputSize
	}
	if _, ok := model.Network.Layer(model.Spec.TargetLayer); !ok {
		return nil, errors.Wrapf(gradcam.ErrUnknownLayer, "%s has no layer %q", model.Spec.Kind, model.Spec.TargetLayer)
	}
	return s, nil
}

// Model returns the served model.
func (s *Service) Model() *nn.Model { return s.model }

// Classes returns the class names in logit order.
func (s *Service) Classes() []string { return append([]string(nil), s.model.Spec.Classes...) }

func (s *Service) className(i int) string {
	if i >= 0 && i < len(s.model.Spec.Classes) {
		return s.model.Spec.Classes[i]
	}
	return ""
}

// Analyze classifies req.Image, explains the predicted (or requested) class
// and blends the heatmap onto the display image. A degenerate explanation
// is not an error: GradCAMAvailable is false and Warning is set.
func (s *Service) Analyze(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Image == nil {
		return nil, ErrNoImage
	}
	alpha := s.alpha
	if req.Alpha != nil {
		alpha = *req.Alpha
	}
	if !(alpha >= 0 && alpha <= 1) {
		return nil, errors.Errorf("alpha %g outside [0,1]", alpha)
	}
	if req.Save && (req.PatientID == "" || s.analyses == nil) {
		return nil, ErrNoPatient
	}
	if req.Save && s.patients != nil {
		if _, err := s.patients.Get(ctx, req.PatientID); err != nil {
			return nil, err
		}
	}

	input, err := imaging.ToInputTensor(req.Image, s.inputSize)
	if err != nil {
		return nil, errors.Wrap(err, "preprocess")
	}
	display, err := imaging.DisplayImage(req.Image, s.inputSize)
	if err != nil {
		return nil, errors.Wrap(err, "display image")
	}

	res, err := s.explain(input, req.Target)
	if err != nil {
		return nil, err
	}

	out := &Result{
		PatientID:        req.PatientID,
		Classification:   s.classification(res.Logits),
		ExplainedClass:   s.className(res.Class),
		Logit:            res.Logit,
		GradCAMAvailable: !res.Degenerate,
		Saliency:         res.Map.Stats(),
		Map:              res.Map,
		Display:          display,
		CreatedAt:        time.Now().UTC(),
	}
	if res.Degenerate {
		out.Warning = WarningNoSignal
		out.DegenerateReason = res.Reason
		s.logger.Warn("explanation degraded",
			zap.String("model", out.Model), zap.String("reason", res.Reason))
	}

	composite, err := imaging.Overlay(display, res.Map, alpha)
	if err != nil {
		return nil, errors.Wrap(err, "overlay")
	}
	out.Image = composite
	out.Report = req.Report
	if out.Report == "" {
		out.Report = ClinicalReport(s.model.Spec, out.PredictedClass, out.Confidence)
	}
	if out.Overlay, err = imaging.EncodePNGBase64(composite); err != nil {
		return nil, err
	}

	if req.Save {
		rec, err := s.save(ctx, out)
		if err != nil {
			return nil, err
		}
		out.ID = rec.ID
		out.CreatedAt = rec.CreatedAt
	} else {
		out.ID = uuid.NewString()
	}
	s.logger.Info("scan analysed",
		zap.String("id", out.ID),
		zap.String("class", out.PredictedClass),
		zap.Float64("confidence", out.Confidence),
		zap.Bool("gradcam", out.GradCAMAvailable))
	return out, nil
}

func (s *Service) classification(logits []float32) Classification {
	probs := nn.Softmax(logits)
	top := nn.Argmax(logits)
	return Classification{
		Model:          string(s.model.Spec.Kind),
		Demo:           s.model.Demo,
		PredictedClass: s.className(top),
		PredictedIndex: top,
		Confidence:     probs[top],
		Probabilities: lo.Map(probs, func(p float64, i int) ClassScore {
			return ClassScore{Class: s.className(i), Probability: p}
		}),
	}
}

// Classify runs the forward pass only.
func (s *Service) Classify(ctx context.Context, img image.Image) (*Classification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img == nil {
		return nil, ErrNoImage
	}
	input, err := imaging.ToInputTensor(img, s.inputSize)
	if err != nil {
		return nil, errors.Wrap(err, "preprocess")
	}
	s.mu.Lock()
	logits, err := s.model.Network.Forward(input)
	s.mu.Unlock()
	if err != nil {
		return nil, errors.Wrap(err, "forward pass")
	}
	c := s.classification(nn.Values(logits))
	return &c, nil
}

// explain serializes classifier use: one forward and backward pass with
// capture points attached and removed under the lock.
func (s *Service) explain(input *tensor.Dense, target *int) (*gradcam.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := gradcam.Generate(s.model.Network, s.model.Spec.TargetLayer, input, target,
		gradcam.WithLogger(s.logger), gradcam.WithOutputSize(s.inputSize))
	if err != nil {
		return nil, errors.Wrap(err, "explain")
	}
	return res, nil
}

func (s *Service) save(ctx context.Context, r *Result) (*store.AnalysisRecord, error) {
	original, err := imaging.EncodePNGBase64(r.Display)
	if err != nil {
		return nil, err
	}
	probs := lo.Associate(r.Probabilities, func(c ClassScore) (string, float64) {
		return c.Class, c.Probability
	})
	return s.analyses.Save(ctx, &store.AnalysisRecord{
		PatientID:        r.PatientID,
		Model:            r.Model,
		PredictedClass:   r.PredictedClass,
		Confidence:       r.Confidence,
		Probabilities:    probs,
		GradCAMAvailable: r.GradCAMAvailable,
		OriginalPNG:      original.ImageBase64,
		OverlayPNG:       r.Overlay.ImageBase64,
		ReportText:       r.Report,
	})
}
