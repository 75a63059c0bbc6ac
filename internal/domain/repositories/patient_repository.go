package repositories

import (
	"context"

	"github.com/zatekoja/clinicbooking/internal/domain/entities"
)

// PatientRepository defines the interface for the patient directory
type PatientRepository interface {
	// Create registers a patient and assigns its ID
	Create(ctx context.Context, patient *entities.Patient) error

	// GetByID retrieves a patient by ID
	GetByID(ctx context.Context, id string) (*entities.Patient, error)
}

type freshReadKey struct{}

// WithFreshReads marks ctx so that caching decorators read through to the
// source of record instead of answering from cache
func WithFreshReads(ctx context.Context) context.Context {
	return context.WithValue(ctx, freshReadKey{}, true)
}

// FreshReads reports whether ctx was marked with WithFreshReads
func FreshReads(ctx context.Context) bool {
	fresh, _ := ctx.Value(freshReadKey{}).(bool)
	return fresh
}

// DoctorRepository defines read access to consultation doctors
type DoctorRepository interface {
	// GetByID retrieves a consultation doctor by ID
	GetByID(ctx context.Context, id string) (*entities.Doctor, error)

	// List returns every consultation doctor ordered by name
	List(ctx context.Context) ([]*entities.Doctor, error)
}
