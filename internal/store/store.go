// Package store keeps patients and their scan analyses.
//
// The repositories are ports; MemoryPatientRepository and
// MemoryAnalysisRepository are the in-process implementations used by the
// MCP server and tests.
package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when no record has the requested ID.
	ErrNotFound = errors.New("store: not found")

	// ErrInvalid is returned for records that fail validation.
	ErrInvalid = errors.New("store: invalid record")

	// ErrDuplicate is returned when a patient file number is already taken.
	ErrDuplicate = errors.New("store: duplicate file number")
)

// Patient is a registered patient.
type Patient struct {
	ID        string    `json:"id"`
	FileNo    string    `json:"file_no"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	BirthDate string    `json:"birth_date,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName returns "First Last".
func (p *Patient) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// Validate checks the required fields.
func (p *Patient) Validate() error {
	if p.FileNo == "" {
		return errors.Wrap(ErrInvalid, "file number is required")
	}
	if p.FirstName == "" || p.LastName == "" {
		return errors.Wrap(ErrInvalid, "first and last name are required")
	}
	if p.BirthDate != "" {
		if _, err := time.Parse("2006-01-02", p.BirthDate); err != nil {
			return errors.Wrapf(ErrInvalid, "birth date %q is not YYYY-MM-DD", p.BirthDate)
		}
	}
	return nil
}

// PatientUpdate carries the fields to change; nil fields are left alone.
type PatientUpdate struct {
	FileNo    *string `json:"file_no,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	BirthDate *string `json:"birth_date,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Email     *string `json:"email,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

func (u PatientUpdate) apply(p *Patient) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&p.FileNo, u.FileNo)
	set(&p.FirstName, u.FirstName)
	set(&p.LastName, u.LastName)
	set(&p.BirthDate, u.BirthDate)
	set(&p.Phone, u.Phone)
	set(&p.Email, u.Email)
	set(&p.Notes, u.Notes)
}

// AnalysisRecord is a stored classification with its explanation.
type AnalysisRecord struct {
	ID               string             `json:"id"`
	PatientID        string             `json:"patient_id"`
	Model            string             `json:"model"`
	PredictedClass   string             `json:"predicted_class"`
	Confidence       float64            `json:"confidence"`
	Probabilities    map[string]float64 `json:"probabilities"`
	GradCAMAvailable bool               `json:"gradcam_available"`
	OriginalPNG      string             `json:"original_image_b64,omitempty"`
	OverlayPNG       string             `json:"gradcam_image_b64,omitempty"`
	ReportText       string             `json:"report_text,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

// PatientRepository stores patients.
type PatientRepository interface {
	// Add assigns an ID and timestamps and stores p.
	Add(ctx context.Context, p *Patient) (*Patient, error)

	Get(ctx context.Context, id string) (*Patient, error)

	// Search matches query case-insensitively against first name, last
	// name, full name and file number, newest first. An empty query lists
	// every patient.
	Search(ctx context.Context, query string) ([]*Patient, error)

	Update(ctx context.Context, id string, u PatientUpdate) (*Patient, error)

	// Delete removes the patient. Analyses are removed by the caller.
	Delete(ctx context.Context, id string) error
}

// AnalysisRepository stores analyses.
type AnalysisRepository interface {
	Save(ctx context.Context, r *AnalysisRecord) (*AnalysisRecord, error)
	Get(ctx context.Context, id string) (*AnalysisRecord, error)

	// ListByPatient returns the patient's analyses, newest first.
	ListByPatient(ctx context.Context, patientID string) ([]*AnalysisRecord, error)

	CountByPatient(ctx context.Context, patientID string) (int, error)
	DeleteByPatient(ctx context.Context, patientID string) (int, error)
}
