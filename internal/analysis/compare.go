package analysis

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/ironsheep/retina-explain-mcp/internal/store"
)

// ConfidenceBand is the confidence change, in percentage points, that
// Compare treats as noise.
const ConfidenceBand = 5.0

// Trends reported by Compare.
const (
	TrendClassChanged = "class_changed"
	TrendIncreased    = "confidence_increased"
	TrendDecreased    = "confidence_decreased"
	TrendStable       = "stable"
)

// ErrPatientMismatch is returned when compared analyses belong to different
// patients.
var ErrPatientMismatch = errors.New("analysis: analyses belong to different patients")

// Comparison describes how a patient's finding changed between two analyses.
type Comparison struct {
	PatientID       string  `json:"patient_id"`
	CurrentID       string  `json:"current_id"`
	PastID          string  `json:"past_id"`
	CurrentClass    string  `json:"current_class"`
	PastClass       string  `json:"past_class"`
	ClassChanged    bool    `json:"class_changed"`
	ConfidenceDelta float64 `json:"confidence_delta"` // percentage points
	Trend           string  `json:"trend"`
	Summary         string  `json:"summary"`
}

// Compare reports a class change between past and current, or otherwise
// whether confidence moved by more than ConfidenceBand points.
func Compare(current, past *store.AnalysisRecord) (*Comparison, error) {
	if current == nil || past == nil {
		return nil, errors.New("analysis: compare needs two analyses")
	}
	if current.PatientID != past.PatientID {
		return nil, errors.Wrapf(ErrPatientMismatch, "%s and %s", current.ID, past.ID)
	}
	// rounded to 1e-6 points; 0.85 vs 0.80 is exactly 5
	delta := math.Round((current.Confidence-past.Confidence)*100*1e6) / 1e6

	c := &Comparison{
		PatientID:       current.PatientID,
		CurrentID:       current.ID,
		PastID:          past.ID,
		CurrentClass:    current.PredictedClass,
		PastClass:       past.PredictedClass,
		ClassChanged:    current.PredictedClass != past.PredictedClass,
		ConfidenceDelta: delta,
	}
	switch {
	case c.ClassChanged:
		c.Trend = TrendClassChanged
		c.Summary = fmt.Sprintf("Class changed: %s -> %s", past.PredictedClass, current.PredictedClass)
	case delta > ConfidenceBand:
		c.Trend = TrendIncreased
		c.Summary = fmt.Sprintf("Confidence increased: +%.1f points", delta)
	case delta < -ConfidenceBand:
		c.Trend = TrendDecreased
		c.Summary = fmt.Sprintf("Confidence decreased: %.1f points", delta)
	default:
		c.Trend = TrendStable
		c.Summary = fmt.Sprintf("No significant change: %s, %+.1f points", current.PredictedClass, delta)
	}
	return c, nil
}
