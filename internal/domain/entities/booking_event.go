package entities

import (
	"time"

	"github.com/google/uuid"
)

// BookingEventType represents the type of booking event
type BookingEventType string

const (
	BookingEventBooked    BookingEventType = "appointment.booked"
	BookingEventUpdated   BookingEventType = "appointment.updated"
	BookingEventCancelled BookingEventType = "appointment.cancelled"
)

// BookingEvent is published after a booking change has been committed
type BookingEvent struct {
	ID                  string           `json:"id"`
	EventType           BookingEventType `json:"event_type"`
	AppointmentID       string           `json:"appointment_id"`
	OpNumber            string           `json:"op_number"`
	PatientID           string           `json:"patient_id"`
	Department          Department       `json:"department,omitempty"`
	State               AppointmentState `json:"state"`
	DoctorAppointmentID string           `json:"doctor_appointment_id,omitempty"`
	Timestamp           time.Time        `json:"timestamp"`
}

// NewBookingEvent creates an event describing the current state of a
func NewBookingEvent(eventType BookingEventType, a *Appointment) *BookingEvent {
	event := &BookingEvent{
		ID:            time.Now().UTC().Format("20060102150405") + "-" + uuid.NewString()[:8],
		EventType:     eventType,
		AppointmentID: a.ID,
		OpNumber:      a.OpNumber,
		PatientID:     a.PatientID,
		Department:    a.Department,
		State:         a.State,
		Timestamp:     time.Now().UTC(),
	}
	if a.DoctorAppointmentID != nil {
		event.DoctorAppointmentID = *a.DoctorAppointmentID
	}
	return event
}
