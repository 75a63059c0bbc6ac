package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/clinicbooking/internal/domain/entities"
	"github.com/zatekoja/clinicbooking/internal/domain/providers"
	"github.com/zatekoja/clinicbooking/internal/domain/repositories"
)

// CachedPatientAdapter wraps a PatientRepository with a read-through cache
type CachedPatientAdapter struct {
	adapter repositories.PatientRepository
	cache   providers.CacheProvider
	ttl     time.Duration
}

// NewCachedPatientAdapter creates a new cached patient adapter
func NewCachedPatientAdapter(adapter repositories.PatientRepository, cache providers.CacheProvider, ttl time.Duration) repositories.PatientRepository {
	return &CachedPatientAdapter{
		adapter: adapter,
		cache:   cache,
		ttl:     ttl,
	}
}

func patientCacheKey(id string) string {
	return fmt.Sprintf("patient:%s", id)
}

// Create registers a patient and primes the cache
func (a *CachedPatientAdapter) Create(ctx context.Context, patient *entities.Patient) error {
	if err := a.adapter.Create(ctx, patient); err != nil {
		return err
	}
	a.store(ctx, patient)
	return nil
}

// GetByID retrieves a patient, consulting the cache first. Contexts marked
// with repositories.WithFreshReads skip the cache lookup and refresh the entry.
func (a *CachedPatientAdapter) GetByID(ctx context.Context, id string) (*entities.Patient, error) {
	if !repositories.FreshReads(ctx) {
		if patient, ok := a.lookup(ctx, id); ok {
			return patient, nil
		}
	}

	patient, err := a.adapter.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	a.store(ctx, patient)
	return patient, nil
}

func (a *CachedPatientAdapter) lookup(ctx context.Context, id string) (*entities.Patient, bool) {
	cached, err := a.cache.Get(ctx, patientCacheKey(id))
	if err != nil {
		if !errors.Is(err, providers.ErrCacheMiss) {
			log.Warn().Err(err).Str("patient_id", id).Msg("patient cache read failed")
		}
		return nil, false
	}

	var patient entities.Patient
	if decodeErr := json.Unmarshal(cached, &patient); decodeErr != nil {
		log.Warn().Err(decodeErr).Str("patient_id", id).Msg("discarding unreadable cached patient")
		return nil, false
	}
	return &patient, true
}

func (a *CachedPatientAdapter) store(ctx context.Context, patient *entities.Patient) {
	data, err := json.Marshal(patient)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, patientCacheKey(patient.ID), data, a.ttl); err != nil {
		log.Warn().Err(err).Str("patient_id", patient.ID).Msg("failed to cache patient")
	}
}
