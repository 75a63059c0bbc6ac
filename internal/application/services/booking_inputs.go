package services

import (
	"time"

	"github.com/zatekoja/clinicbooking/internal/domain/entities"
)

// BookingInput carries the caller-supplied fields of a new booking
type BookingInput struct {
	PatientID            string                    `json:"patient_id" validate:"required"`
	ReferenceID          string                    `json:"reference_id" validate:"max=64"`
	Gender               entities.Gender           `json:"gender" validate:"enum"`
	DateOfBirth          *time.Time                `json:"date_of_birth"`
	Phone                string                    `json:"phone" validate:"max=32"`
	Email                string                    `json:"email" validate:"omitempty,email"`
	AppointmentDate      time.Time                 `json:"appointment_date" validate:"required"`
	OpNumber             string                    `json:"op_number" validate:"max=32"`
	Department           entities.Department       `json:"department" validate:"enum"`
	ConsultationDoctorID *string                   `json:"consultation_doctor_id"`
	ConsultationMode     entities.ConsultationMode `json:"consultation_mode" validate:"enum"`
	IfOnline             string                    `json:"if_online"`
	Referral             string                    `json:"referral"`
	Priority             string                    `json:"priority"`
	Notes                string                    `json:"notes"`
}

func (in *BookingInput) toAppointment() *entities.Appointment {
	var dob *time.Time
	if in.DateOfBirth != nil {
		d := entities.DateOnly(*in.DateOfBirth)
		dob = &d
	}
	return &entities.Appointment{
		PatientID:            in.PatientID,
		ReferenceID:          in.ReferenceID,
		Gender:               in.Gender,
		DateOfBirth:          dob,
		Phone:                in.Phone,
		Email:                in.Email,
		AppointmentDate:      entities.DateOnly(in.AppointmentDate),
		OpNumber:             in.OpNumber,
		Department:           in.Department,
		ConsultationDoctorID: in.ConsultationDoctorID,
		ConsultationMode:     in.ConsultationMode,
		IfOnline:             in.IfOnline,
		Referral:             in.Referral,
		Priority:             in.Priority,
		Notes:                in.Notes,
	}
}

// BookingPatch holds field writes to an existing booking. Nil fields are left
// unchanged. An empty ConsultationDoctorID clears the doctor.
type BookingPatch struct {
	PatientID            *string                    `json:"patient_id"`
	ReferenceID          *string                    `json:"reference_id" validate:"omitempty,max=64"`
	Gender               *entities.Gender           `json:"gender" validate:"omitempty,enum"`
	DateOfBirth          *time.Time                 `json:"date_of_birth"`
	Phone                *string                    `json:"phone" validate:"omitempty,max=32"`
	Email                *string                    `json:"email" validate:"omitempty,email"`
	AppointmentDate      *time.Time                 `json:"appointment_date"`
	OpNumber             *string                    `json:"op_number"`
	Department           *entities.Department       `json:"department" validate:"omitempty,enum"`
	ConsultationDoctorID *string                    `json:"consultation_doctor_id"`
	ConsultationMode     *entities.ConsultationMode `json:"consultation_mode" validate:"omitempty,enum"`
	IfOnline             *string                    `json:"if_online"`
	Referral             *string                    `json:"referral"`
	Priority             *string                    `json:"priority"`
	Notes                *string                    `json:"notes"`
	State                *entities.AppointmentState `json:"state" validate:"omitempty,enum"`
}

// Draft is an unsaved booking form being filled in at the front desk
type Draft struct {
	ID          string               `json:"id,omitempty"`
	PatientID   string               `json:"patient_id" validate:"required"`
	Name        string               `json:"name"`
	Phone       string               `json:"phone"`
	Email       string               `json:"email"`
	PatientType entities.PatientType `json:"patient_type"`
}
