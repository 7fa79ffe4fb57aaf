package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// MemoryPatientRepository is an in-memory PatientRepository.
type MemoryPatientRepository struct {
	mu       sync.RWMutex
	patients map[string]*Patient
	now      func() time.Time
}

// NewMemoryPatientRepository creates an empty repository.
func NewMemoryPatientRepository() *MemoryPatientRepository {
	return &MemoryPatientRepository{patients: make(map[string]*Patient), now: time.Now}
}

func (r *MemoryPatientRepository) fileNoTaken(fileNo, except string) bool {
	for id, p := range r.patients {
		if id != except && strings.EqualFold(p.FileNo, fileNo) {
			return true
		}
	}
	return false
}

// Add stores a copy of p.
func (r *MemoryPatientRepository) Add(ctx context.Context, p *Patient) (*Patient, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fileNoTaken(p.FileNo, "") {
		return nil, errors.Wrapf(ErrDuplicate, "%q", p.FileNo)
	}
	c := *p
	c.ID = uuid.NewString()
	c.CreatedAt = r.now().UTC()
	c.UpdatedAt = c.CreatedAt
	r.patients[c.ID] = &c
	out := c
	return &out, nil
}

// Get returns a copy of the patient.
func (r *MemoryPatientRepository) Get(ctx context.Context, id string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "patient %s", id)
	}
	c := *p
	return &c, nil
}

// Search returns matching patients, newest first.
func (r *MemoryPatientRepository) Search(ctx context.Context, query string) ([]*Patient, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	r.mu.RLock()
	var out []*Patient
	for _, p := range r.patients {
		if q == "" ||
			strings.Contains(strings.ToLower(p.FirstName), q) ||
			strings.Contains(strings.ToLower(p.LastName), q) ||
			strings.Contains(strings.ToLower(p.FullName()), q) ||
			strings.Contains(strings.ToLower(p.FileNo), q) {
			c := *p
			out = append(out, &c)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Update applies u and bumps UpdatedAt.
func (r *MemoryPatientRepository) Update(ctx context.Context, id string, u PatientUpdate) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "patient %s", id)
	}
	c := *p
	u.apply(&c)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if r.fileNoTaken(c.FileNo, id) {
		return nil, errors.Wrapf(ErrDuplicate, "%q", c.FileNo)
	}
	c.UpdatedAt = r.now().UTC()
	r.patients[id] = &c
	out := c
	return &out, nil
}

// Delete removes the patient.
func (r *MemoryPatientRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.patients[id]; !ok {
		return errors.Wrapf(ErrNotFound, "patient %s", id)
	}
	delete(r.patients, id)
	return nil
}

// MemoryAnalysisRepository is an in-memory AnalysisRepository.
type MemoryAnalysisRepository struct {
	mu       sync.RWMutex
	analyses map[string]*AnalysisRecord
	now      func() time.Time
}

// NewMemoryAnalysisRepository creates an empty repository.
func NewMemoryAnalysisRepository() *MemoryAnalysisRepository {
	return &MemoryAnalysisRepository{analyses: make(map[string]*AnalysisRecord), now: time.Now}
}

func copyRecord(a *AnalysisRecord) *AnalysisRecord {
	c := *a
	if a.Probabilities != nil {
		c.Probabilities = make(map[string]float64, len(a.Probabilities))
		for k, v := range a.Probabilities {
			c.Probabilities[k] = v
		}
	}
	return &c
}

// Save stores a copy of a, assigning an ID and a timestamp when unset.
func (r *MemoryAnalysisRepository) Save(ctx context.Context, a *AnalysisRecord) (*AnalysisRecord, error) {
	if a.PatientID == "" {
		return nil, errors.Wrap(ErrInvalid, "analysis needs a patient")
	}
	c := copyRecord(a)
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.now().UTC()
	}
	r.mu.Lock()
	r.analyses[c.ID] = c
	r.mu.Unlock()
	return copyRecord(c), nil
}

// Get returns a copy of the analysis.
func (r *MemoryAnalysisRepository) Get(ctx context.Context, id string) (*AnalysisRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.analyses[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "analysis %s", id)
	}
	return copyRecord(a), nil
}

// ListByPatient returns the patient's analyses, newest first.
func (r *MemoryAnalysisRepository) ListByPatient(ctx context.Context, patientID string) ([]*AnalysisRecord, error) {
	r.mu.RLock()
	var out []*AnalysisRecord
	for _, a := range r.analyses {
		if a.PatientID == patientID {
			out = append(out, copyRecord(a))
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// CountByPatient counts the patient's analyses.
func (r *MemoryAnalysisRepository) CountByPatient(ctx context.Context, patientID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, a := range r.analyses {
		if a.PatientID == patientID {
			n++
		}
	}
	return n, nil
}

// DeleteByPatient removes the patient's analyses and reports how many.
func (r *MemoryAnalysisRepository) DeleteByPatient(ctx context.Context, patientID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, a := range r.analyses {
		if a.PatientID == patientID {
			delete(r.analyses, id)
			n++
		}
	}
	return n, nil
}

// interface checks
var (
	_ PatientRepository  = (*MemoryPatientRepository)(nil)
	_ AnalysisRepository = (*MemoryAnalysisRepository)(nil)
)
