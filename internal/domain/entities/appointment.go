package entities

import (
	"time"
)

// AppointmentState represents the pipeline status of a booking
type AppointmentState string

const (
	AppointmentStateBooked    AppointmentState = "booked"
	AppointmentStateCompleted AppointmentState = "completed"
	AppointmentStateCancelled AppointmentState = "cancelled"
)

// Valid reports whether s is a known state
func (s AppointmentState) Valid() bool {
	switch s {
	case AppointmentStateBooked, AppointmentStateCompleted, AppointmentStateCancelled:
		return true
	}
	return false
}

// Department is the clinic department a booking is made for
type Department string

const (
	DepartmentKayachikitsa            Department = "kayachikitsa"
	DepartmentPanchakarma             Department = "panchakarma"
	DepartmentStreerogamPrasutitantra Department = "streerogam_prasutitantra"
	DepartmentKaumarabrityam          Department = "kaumarabrityam"
	DepartmentShalyam                 Department = "shalyam"
	DepartmentShalakyam               Department = "shalakyam"
	DepartmentSwastavrittan           Department = "swastavrittan"
	DepartmentEmergency               Department = "emergency"
	DepartmentIP                      Department = "ip"
	DepartmentCounterSales            Department = "counter_sales"
)

// Departments lists every department in display order
var Departments = []Department{
	DepartmentKayachikitsa,
	DepartmentPanchakarma,
	DepartmentStreerogamPrasutitantra,
	DepartmentKaumarabrityam,
	DepartmentShalyam,
	DepartmentShalakyam,
	DepartmentSwastavrittan,
	DepartmentEmergency,
	DepartmentIP,
	DepartmentCounterSales,
}

// Valid reports whether d is a known department. Empty is allowed.
func (d Department) Valid() bool {
	if d == "" {
		return true
	}
	for _, known := range Departments {
		if d == known {
			return true
		}
	}
	return false
}

// ConsultationMode says whether the consultation happens online or in person
type ConsultationMode string

const (
	ConsultationModeOnline  ConsultationMode = "online"
	ConsultationModeOffline ConsultationMode = "offline"
)

// Valid reports whether m is a known mode. Empty is allowed.
func (m ConsultationMode) Valid() bool {
	return m == "" || m == ConsultationModeOnline || m == ConsultationModeOffline
}

// Gender of the patient as captured on the booking
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOthers Gender = "others"
)

// Valid reports whether g is a known gender. Empty is allowed.
func (g Gender) Valid() bool {
	return g == "" || g == GenderMale || g == GenderFemale || g == GenderOthers
}

// PatientType distinguishes first-time patients from returning ones
type PatientType string

const (
	PatientTypeNew PatientType = "new"
	PatientTypeOld PatientType = "old"
)

// OpNumberPlaceholder is the value a draft carries before a number is assigned
const OpNumberPlaceholder = "New"

// OpNumberFallback is assigned when the sequence yields nothing
const OpNumberFallback = "0000"

// Appointment represents a patient's clinic booking.
//
// Age and PatientType are derived and never persisted; services fill them on
// every read.
type Appointment struct {
	ID                   string           `json:"id" db:"id"`
	PatientID            string           `json:"patient_id" db:"patient_id"`
	Name                 string           `json:"name" db:"name"`
	ReferenceID          string           `json:"reference_id" db:"reference_id"`
	Gender               Gender           `json:"gender" db:"gender"`
	DateOfBirth          *time.Time       `json:"date_of_birth" db:"date_of_birth"`
	Phone                string           `json:"phone" db:"phone"`
	Email                string           `json:"email" db:"email"`
	AppointmentDate      time.Time        `json:"appointment_date" db:"appointment_date"`
	OpNumber             string           `json:"op_number" db:"op_number"`
	Department           Department       `json:"department" db:"department"`
	ConsultationDoctorID *string          `json:"consultation_doctor_id" db:"consultation_doctor_id"`
	ConsultationMode     ConsultationMode `json:"consultation_mode" db:"consultation_mode"`
	IfOnline             string           `json:"if_online" db:"if_online"`
	Referral             string           `json:"referral" db:"referral"`
	Priority             string           `json:"priority" db:"priority"`
	Notes                string           `json:"notes" db:"notes"`
	State                AppointmentState `json:"state" db:"state"`
	DoctorAppointmentID  *string          `json:"doctor_appointment_id" db:"doctor_appointment_id"`
	CreatedAt            time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at" db:"updated_at"`

	Age         int         `json:"age" db:"-"`
	PatientType PatientType `json:"patient_type" db:"-"`
}

// NeedsOpNumber reports whether the create pipeline must draw a number
func (a *Appointment) NeedsOpNumber() bool {
	return a.OpNumber == "" || a.OpNumber == OpNumberPlaceholder
}

// CopyForDuplicate returns a new unsaved booking carrying the business fields
// of a. Identity, op number, state and the doctor appointment link are not
// copied.
func (a *Appointment) CopyForDuplicate() *Appointment {
	dup := *a
	dup.ID = ""
	dup.OpNumber = ""
	dup.State = ""
	dup.DoctorAppointmentID = nil
	dup.CreatedAt = time.Time{}
	dup.UpdatedAt = time.Time{}
	dup.Age = 0
	dup.PatientType = ""
	if a.DateOfBirth != nil {
		dob := *a.DateOfBirth
		dup.DateOfBirth = &dob
	}
	if a.ConsultationDoctorID != nil {
		doctorID := *a.ConsultationDoctorID
		dup.ConsultationDoctorID = &doctorID
	}
	return &dup
}

// DoctorAppointment is the doctor-facing mirror created with every booking.
// Only the cancel action keeps its state in step with the booking.
type DoctorAppointment struct {
	ID              string           `json:"id" db:"id"`
	BookingID       string           `json:"booking_id" db:"booking_id"`
	PatientID       string           `json:"patient_id" db:"patient_id"`
	AppointmentDate time.Time        `json:"appointment_date" db:"appointment_date"`
	ReferenceID     string           `json:"reference_id" db:"reference_id"`
	State           AppointmentState `json:"state" db:"state"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at" db:"updated_at"`
}

// MirrorOf builds the doctor appointment for a freshly inserted booking
func MirrorOf(a *Appointment) *DoctorAppointment {
	return &DoctorAppointment{
		BookingID:       a.ID,
		PatientID:       a.PatientID,
		AppointmentDate: a.AppointmentDate,
		ReferenceID:     a.ReferenceID,
		State:           a.State,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.CreatedAt,
	}
}

// StateChange is one entry of a booking's tracked state history
type StateChange struct {
	ID            string           `json:"id" db:"id"`
	AppointmentID string           `json:"appointment_id" db:"appointment_id"`
	FromState     AppointmentState `json:"from_state" db:"from_state"`
	ToState       AppointmentState `json:"to_state" db:"to_state"`
	ChangedAt     time.Time        `json:"changed_at" db:"changed_at"`
}
