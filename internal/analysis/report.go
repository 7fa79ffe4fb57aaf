package analysis

import (
	"fmt"
	"strings"

	"github.com/ironsheep/retina-explain-mcp/internal/nn"
)

// LowConfidence is the confidence below which reports carry a caution.
const LowConfidence = 0.70

// Disclaimer closes every generated report.
const Disclaimer = "This report is the output of an AI-assisted analysis and is not a diagnosis. " +
	"Clinical decisions require evaluation by a specialist."

var pathologyDescriptions = map[string]string{
	"CNV": "Choroidal neovascularization (CNV) detected. Abnormal vessel growth is seen beneath the retina. " +
		"Evaluation for anti-VEGF treatment is recommended.",
	"DME": "Diabetic macular edema (DME) detected. Fluid accumulation is seen in the macula. " +
		"Review of diabetes management and intraocular treatment options is recommended.",
	"DRUSEN": "Drusen deposits detected. Yellowish deposits are seen beneath the retinal pigment epithelium. " +
		"Regular follow-up for age-related macular degeneration (AMD) risk is recommended.",
	"AMD": "Age-related macular degeneration (AMD) detected. Degenerative changes are seen in the macula. " +
		"Further examination and treatment planning are recommended.",
	"NORMAL": "No pathological finding detected. Retinal structures appear within normal limits. " +
		"Continue the routine follow-up schedule.",
}

// ClinicalReport builds the plain-text report stored with an analysis.
// confidence is a probability in [0,1].
func ClinicalReport(spec nn.Spec, class string, confidence float64) string {
	name := spec.DisplayName
	if name == "" {
		name = string(spec.Kind)
	}
	pct := confidence * 100

	var b strings.Builder
	fmt.Fprintf(&b, "CLINICAL ANALYSIS REPORT\n\n")
	fmt.Fprintf(&b, "Model: %s\nPrediction: %s\nConfidence: %.1f%%\n\n---\n\n", name, class, pct)

	if class == "NORMAL" {
		b.WriteString(pathologyDescriptions["NORMAL"])
		b.WriteString("\n")
	} else {
		desc, ok := pathologyDescriptions[class]
		if !ok {
			desc = class + " finding detected."
		}
		fmt.Fprintf(&b, "%s analysis found %s with %.1f%% confidence.\n\n%s\n\n", name, class, pct, desc)
		b.WriteString("Review the regions highlighted in the Grad-CAM heatmap.\n")
	}

	// swin_v2 was trained with CNV and DRUSEN merged into AMD
	if spec.Kind == nn.KindSwinV2 && class == "AMD" {
		b.WriteString("\nNote: an AMD result from Swin Transformer V2 may stem from CNV or DRUSEN, " +
			"which were merged under AMD in training. Detailed clinical examination is recommended " +
			"for a differential diagnosis.\n")
	}

	if confidence < LowConfidence {
		fmt.Fprintf(&b, "\nLow confidence: %.1f%%. Interpret this result with care and confirm it "+
			"with clinical correlation.\n", pct)
	}

	b.WriteString("\n---\n")
	b.WriteString(Disclaimer)
	return b.String()
}
