package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ironsheep/retina-explain-mcp/internal/store"
)

func record(id, patient, class string, confidence float64) *store.AnalysisRecord {
	return &store.AnalysisRecord{ID: id, PatientID: patient, PredictedClass: class, Confidence: confidence}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name    string
		current *store.AnalysisRecord
		past    *store.AnalysisRecord
		trend   string
		delta   float64
		summary string
	}{
		{
			name:    "class changed",
			current: record("a2", "p1", "CNV", 0.7),
			past:    record("a1", "p1", "DRUSEN", 0.95),
			trend:   TrendClassChanged,
			delta:   -25,
			summary: "Class changed: DRUSEN -> CNV",
		},
		{
			name:    "increased",
			current: record("a2", "p1", "DME", 0.9),
			past:    record("a1", "p1", "DME", 0.8),
			trend:   TrendIncreased,
			delta:   10,
			summary: "Confidence increased: +10.0 points",
		},
		{
			name:    "decreased",
			current: record("a2", "p1", "DME", 0.7),
			past:    record("a1", "p1", "DME", 0.8),
			trend:   TrendDecreased,
			delta:   -10,
			summary: "Confidence decreased: -10.0 points",
		},
		{
			name:    "upper band edge",
			current: record("a2", "p1", "NORMAL", 0.85),
			past:    record("a1", "p1", "NORMAL", 0.8),
			trend:   TrendStable,
			delta:   5,
			summary: "No significant change: NORMAL, +5.0 points",
		},
		{
			name:    "lower band edge",
			current: record("a2", "p1", "NORMAL", 0.8),
			past:    record("a1", "p1", "NORMAL", 0.85),
			trend:   TrendStable,
			delta:   -5,
		},
		{
			name:    "just outside band",
			current: record("a2", "p1", "NORMAL", 0.851),
			past:    record("a1", "p1", "NORMAL", 0.8),
			trend:   TrendIncreased,
			delta:   5.1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Compare(tt.current, tt.past)
			require.NoError(t, err)
			require.Equal(t, tt.trend, c.Trend)
			require.InDelta(t, tt.delta, c.ConfidenceDelta, 1e-9)
			require.Equal(t, tt.trend == TrendClassChanged, c.ClassChanged)
			require.Equal(t, "p1", c.PatientID)
			require.Equal(t, "a2", c.CurrentID)
			require.Equal(t, "a1", c.PastID)
			if tt.summary != "" {
				require.Equal(t, tt.summary, c.Summary)
			}
		})
	}
}

func TestCompareErrors(t *testing.T) {
	_, err := Compare(record("a2", "p1", "CNV", 0.9), record("a1", "p2", "CNV", 0.9))
	require.ErrorIs(t, err, ErrPatientMismatch)

	_, err = Compare(nil, record("a1", "p1", "CNV", 0.9))
	require.Error(t, err)
	_, err = Compare(record("a2", "p1", "CNV", 0.9), nil)
	require.Error(t, err)
}
