package ocr

import (
	"regexp"
	"strings"
	"time"
)

// Annotations are the fields recognised in burned-in scan text.
type Annotations struct {
	Eye       string `json:"eye,omitempty"` // "OD" or "OS"
	ScanDate  string `json:"scan_date,omitempty"`
	PatientID string `json:"patient_id,omitempty"`
	Device    string `json:"device,omitempty"`
}

var (
	eyeRe     = regexp.MustCompile(`(?i)\b(OD|OS|right\s+eye|left\s+eye)\b`)
	isoDateRe = regexp.MustCompile(`\b(\d{4})[-/.](\d{2})[-/.](\d{2})\b`)
	dmyDateRe = regexp.MustCompile(`\b(\d{2})[./](\d{2})[./](\d{4})\b`)
	idRe      = regexp.MustCompile(`(?i)\b(?:patient\s*id|pid|id|file\s*no)\s*[:#]?\s*([A-Z0-9][A-Z0-9-]{2,})`)
	deviceRe  = regexp.MustCompile(`(?i)\b(spectralis|cirrus|topcon|optovue|avanti|triton|maestro)\b`)
)

// ParseAnnotations extracts annotation fields from OCR text. Dates are
// returned as YYYY-MM-DD; day-first dates are assumed for dd.mm.yyyy and
// dd/mm/yyyy. Fields that cannot be found are empty.
func ParseAnnotations(text string) Annotations {
	var a Annotations
	if m := eyeRe.FindStringSubmatch(text); m != nil {
		switch strings.ToUpper(strings.Fields(m[1])[0]) {
		case "OD", "RIGHT":
			a.Eye = "OD"
		default:
			a.Eye = "OS"
		}
	}
	if m := isoDateRe.FindStringSubmatch(text); m != nil {
		a.ScanDate = validDate(m[1], m[2], m[3])
	}
	if a.ScanDate == "" {
		if m := dmyDateRe.FindStringSubmatch(text); m != nil {
			a.ScanDate = validDate(m[3], m[2], m[1])
		}
	}
	if m := idRe.FindStringSubmatch(text); m != nil {
		a.PatientID = strings.ToUpper(m[1])
	}
	if m := deviceRe.FindStringSubmatch(text); m != nil {
		a.Device = strings.ToUpper(m[1][:1]) + strings.ToLower(m[1][1:])
	}
	return a
}

func validDate(y, m, d string) string {
	s := y + "-" + m + "-" + d
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return ""
	}
	return s
}
