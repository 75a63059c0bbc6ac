package database_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/clinicbooking/internal/adapters/database"
	"github.com/zatekoja/clinicbooking/internal/domain/entities"
	"github.com/zatekoja/clinicbooking/internal/domain/providers"
	"github.com/zatekoja/clinicbooking/internal/domain/repositories"
	apperrors "github.com/zatekoja/clinicbooking/pkg/errors"
)

type MockPatientRepository struct {
	mock.Mock
}

func (m *MockPatientRepository) Create(ctx context.Context, patient *entities.Patient) error {
	args := m.Called(ctx, patient)
	return args.Error(0)
}

func (m *MockPatientRepository) GetByID(ctx context.Context, id string) (*entities.Patient, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Patient), args.Error(1)
}

type MockCacheProvider struct {
	mock.Mock
}

func (m *MockCacheProvider) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockCacheProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCacheProvider) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func TestCachedPatientAdapter_GetByID(t *testing.T) {
	ctx := context.Background()
	patient := &entities.Patient{ID: "patient-1", Name: "Asha", Phone: "+919812345678"}

	t.Run("serves a cache hit without touching the database", func(t *testing.T) {
		repo := new(MockPatientRepository)
		cache := new(MockCacheProvider)
		data, _ := json.Marshal(patient)
		cache.On("Get", ctx, "patient:patient-1").Return(data, nil)

		adapter := database.NewCachedPatientAdapter(repo, cache, time.Minute)
		got, err := adapter.GetByID(ctx, "patient-1")

		require.NoError(t, err)
		assert.Equal(t, "Asha", got.Name)
		repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
		cache.AssertExpectations(t)
	})

	t.Run("loads and stores on a miss", func(t *testing.T) {
		repo := new(MockPatientRepository)
		cache := new(MockCacheProvider)
		cache.On("Get", ctx, "patient:patient-1").Return(nil, providers.ErrCacheMiss)
		repo.On("GetByID", ctx, "patient-1").Return(patient, nil)
		cache.On("Set", ctx, "patient:patient-1", mock.Anything, 5*time.Minute).Return(nil)

		adapter := database.NewCachedPatientAdapter(repo, cache, 5*time.Minute)
		got, err := adapter.GetByID(ctx, "patient-1")

		require.NoError(t, err)
		assert.Equal(t, patient, got)
		repo.AssertExpectations(t)
		cache.AssertExpectations(t)
	})

	t.Run("does not cache a missing patient", func(t *testing.T) {
		repo := new(MockPatientRepository)
		cache := new(MockCacheProvider)
		cache.On("Get", ctx, "patient:ghost").Return(nil, providers.ErrCacheMiss)
		repo.On("GetByID", ctx, "ghost").Return(nil, apperrors.NewNotFoundError("patient with id ghost not found"))

		adapter := database.NewCachedPatientAdapter(repo, cache, time.Minute)
		got, err := adapter.GetByID(ctx, "ghost")

		assert.Nil(t, got)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
		cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("fresh reads skip the cache and refresh it", func(t *testing.T) {
		repo := new(MockPatientRepository)
		cache := new(MockCacheProvider)
		renamed := &entities.Patient{ID: "patient-1", Name: "Asha Menon"}
		freshCtx := repositories.WithFreshReads(ctx)
		repo.On("GetByID", freshCtx, "patient-1").Return(renamed, nil)
		cache.On("Set", freshCtx, "patient:patient-1", mock.Anything, time.Minute).Return(nil)

		adapter := database.NewCachedPatientAdapter(repo, cache, time.Minute)
		got, err := adapter.GetByID(freshCtx, "patient-1")

		require.NoError(t, err)
		assert.Equal(t, "Asha Menon", got.Name)
		cache.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
		repo.AssertExpectations(t)
		cache.AssertExpectations(t)
	})

	t.Run("logs the decode error of an unreadable entry", func(t *testing.T) {
		var buf bytes.Buffer
		previous := log.Logger
		log.Logger = zerolog.New(&buf)
		t.Cleanup(func() { log.Logger = previous })

		repo := new(MockPatientRepository)
		cache := new(MockCacheProvider)
		cache.On("Get", ctx, "patient:patient-1").Return([]byte("{not json"), nil)
		repo.On("GetByID", ctx, "patient-1").Return(patient, nil)
		cache.On("Set", ctx, "patient:patient-1", mock.Anything, time.Minute).Return(nil)

		adapter := database.NewCachedPatientAdapter(repo, cache, time.Minute)
		got, err := adapter.GetByID(ctx, "patient-1")

		require.NoError(t, err)
		assert.Equal(t, patient, got)

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "discarding unreadable cached patient", entry["message"])
		assert.NotEmpty(t, entry["error"])
	})
}
