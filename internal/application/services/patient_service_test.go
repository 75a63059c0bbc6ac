package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/clinicbooking/internal/application/services"
	apperrors "github.com/zatekoja/clinicbooking/pkg/errors"
)

func TestPatientService_Register(t *testing.T) {
	store := newMemStore()
	service := services.NewPatientService(&fakePatients{store}, "IN")
	ctx := context.Background()

	t.Run("normalizes the phone number", func(t *testing.T) {
		patient, err := service.Register(ctx, &services.RegisterPatientInput{Name: "  Asha Menon ", Phone: "098123 45678"})

		require.NoError(t, err)
		assert.NotEmpty(t, patient.ID)
		assert.Equal(t, "Asha Menon", patient.Name)
		assert.Equal(t, "+919812345678", patient.Phone)

		got, err := service.Get(ctx, patient.ID)
		require.NoError(t, err)
		assert.Equal(t, patient.Name, got.Name)
	})

	t.Run("keeps an unparseable phone verbatim", func(t *testing.T) {
		patient, err := service.Register(ctx, &services.RegisterPatientInput{Name: "Ravi", Phone: "ext 42"})

		require.NoError(t, err)
		assert.Equal(t, "ext 42", patient.Phone)
	})

	t.Run("requires a name", func(t *testing.T) {
		_, err := service.Register(ctx, &services.RegisterPatientInput{Name: "   "})

		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
		assert.Contains(t, err.Error(), "name is required")
	})

	t.Run("rejects a bad email", func(t *testing.T) {
		_, err := service.Register(ctx, &services.RegisterPatientInput{Name: "Ravi", Email: "ravi@"})

		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})
}

func TestPatientService_Get_NotFound(t *testing.T) {
	service := services.NewPatientService(&fakePatients{newMemStore()}, "IN")

	_, err := service.Get(context.Background(), "ghost")

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}
