package providers

import (
	"context"

	"github.com/zatekoja/clinicbooking/internal/domain/entities"
)

// BookingHit is a search result pointing at a booking
type BookingHit struct {
	AppointmentID   string                    `json:"appointment_id"`
	OpNumber        string                    `json:"op_number"`
	Name            string                    `json:"name"`
	Phone           string                    `json:"phone"`
	Department      entities.Department       `json:"department"`
	State           entities.AppointmentState `json:"state"`
	AppointmentDate string                    `json:"appointment_date"`
}

// BookingIndex is a full-text index over bookings for front-desk lookup
type BookingIndex interface {
	// EnsureSchema creates the index collection when it does not exist
	EnsureSchema(ctx context.Context) error

	// Index upserts the search document of a booking
	Index(ctx context.Context, appointment *entities.Appointment) error

	// Search matches name, op number, phone and reference id
	Search(ctx context.Context, query string, limit int) ([]BookingHit, error)
}
