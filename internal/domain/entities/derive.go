package entities

import "time"

// ComputeAge returns the age in whole years on the day today falls on.
// A missing birth date yields 0.
func ComputeAge(dob *time.Time, today time.Time) int {
	if dob == nil || dob.IsZero() {
		return 0
	}
	age := today.Year() - dob.Year()
	if today.Month() < dob.Month() || (today.Month() == dob.Month() && today.Day() < dob.Day()) {
		age--
	}
	return age
}

// ClassifyPatientType returns old when the patient has at least one other
// booking. Bookings without a patient are always new.
func ClassifyPatientType(patientID string, otherBookings int) PatientType {
	if patientID == "" || otherBookings <= 0 {
		return PatientTypeNew
	}
	return PatientTypeOld
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
