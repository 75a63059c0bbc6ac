package repositories

import (
	"context"
	"time"

	"github.com/zatekoja/clinicbooking/internal/domain/entities"
)

// AppointmentRepository defines the interface for booking data operations
type AppointmentRepository interface {
	// Create inserts a booking and assigns its ID and timestamps
	Create(ctx context.Context, appointment *entities.Appointment) error

	// GetByID retrieves a booking by ID
	GetByID(ctx context.Context, id string) (*entities.Appointment, error)

	// Update writes the mutable fields of a booking
	Update(ctx context.Context, appointment *entities.Appointment) error

	// SetState writes only the state column
	SetState(ctx context.Context, id string, state entities.AppointmentState) error

	// LinkDoctorAppointment stores the doctor appointment created for a booking
	LinkDoctorAppointment(ctx context.Context, id, doctorAppointmentID string) error

	// CountByPatient counts bookings of a patient, ignoring excludeID when set
	CountByPatient(ctx context.Context, patientID, excludeID string) (int, error)

	// CountByPatients counts bookings per patient in one query. Patients
	// without bookings are absent from the result.
	CountByPatients(ctx context.Context, patientIDs []string) (map[string]int, error)

	// List retrieves bookings matching the filter
	List(ctx context.Context, filter AppointmentFilter) ([]*entities.Appointment, error)
}

// AppointmentFilter defines filters for listing bookings
type AppointmentFilter struct {
	PatientID  string
	State      entities.AppointmentState
	Department entities.Department
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// DoctorAppointmentRepository defines the interface for doctor appointment operations
type DoctorAppointmentRepository interface {
	// Create inserts a doctor appointment and assigns its ID
	Create(ctx context.Context, da *entities.DoctorAppointment) error

	// GetByID retrieves a doctor appointment by ID
	GetByID(ctx context.Context, id string) (*entities.DoctorAppointment, error)

	// SetState writes only the state column
	SetState(ctx context.Context, id string, state entities.AppointmentState) error
}

// StateChangeRepository stores the tracked state history of bookings
type StateChangeRepository interface {
	// Record appends a state change
	Record(ctx context.Context, change *entities.StateChange) error

	// ListByAppointment returns the history of a booking, oldest first
	ListByAppointment(ctx context.Context, appointmentID string) ([]*entities.StateChange, error)
}

// Transactor runs a function inside a single database transaction. The
// context passed to fn carries the transaction; repositories called with it
// take part in the same unit of work.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
