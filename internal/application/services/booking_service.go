package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/zatekoja/clinicbooking/internal/application/loaders"
	"github.com/zatekoja/clinicbooking/internal/domain/entities"
	"github.com/zatekoja/clinicbooking/internal/domain/providers"
	"github.com/zatekoja/clinicbooking/internal/domain/repositories"
	"github.com/zatekoja/clinicbooking/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/clinicbooking/pkg/errors"
	"github.com/zatekoja/clinicbooking/pkg/phone"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// BookingRepositories groups the persistence ports used by BookingService
type BookingRepositories struct {
	Appointments       repositories.AppointmentRepository
	DoctorAppointments repositories.DoctorAppointmentRepository
	StateChanges       repositories.StateChangeRepository
	Patients           repositories.PatientRepository
	Doctors            repositories.DoctorRepository
	Transactor         repositories.Transactor
}

// BookingOptions configures the booking workflow
type BookingOptions struct {
	SequenceCode string
	// SequenceStrict fails a booking whose op number cannot be drawn instead
	// of assigning entities.OpNumberFallback
	SequenceStrict bool
	Location       *time.Location
	PhoneRegion    string
}

// BookingService handles the appointment booking workflow
type BookingService struct {
	repos    BookingRepositories
	sequence providers.SequenceProvider
	events   providers.EventBus
	index    providers.BookingIndex
	metrics  *observability.Metrics
	opts     BookingOptions
	validate *validator.Validate
	phone    *phone.Normalizer
	now      func() time.Time
}

// NewBookingService creates a new booking service
func NewBookingService(repos BookingRepositories, sequence providers.SequenceProvider, opts BookingOptions) *BookingService {
	if opts.SequenceCode == "" {
		opts.SequenceCode = entities.OpNumberSequence.Code
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &BookingService{
		repos:    repos,
		sequence: sequence,
		opts:     opts,
		validate: newValidator(),
		phone:    phone.NewNormalizer(opts.PhoneRegion),
		now:      time.Now,
	}
}

// WithEventBus publishes committed booking changes on bus
func (s *BookingService) WithEventBus(bus providers.EventBus) *BookingService {
	s.events = bus
	return s
}

// WithIndex keeps index in step with committed booking changes
func (s *BookingService) WithIndex(index providers.BookingIndex) *BookingService {
	s.index = index
	return s
}

// WithMetrics records booking counters on metrics
func (s *BookingService) WithMetrics(metrics *observability.Metrics) *BookingService {
	s.metrics = metrics
	return s
}

// WithClock replaces the wall clock, used to decide what today is
func (s *BookingService) WithClock(now func() time.Time) *BookingService {
	s.now = now
	return s
}

func (s *BookingService) today() time.Time {
	return s.now().In(s.opts.Location)
}

// Create validates input and runs the creation pipeline
func (s *BookingService) Create(ctx context.Context, input *BookingInput) (*entities.Appointment, error) {
	if input == nil {
		return nil, apperrors.NewValidationError("booking is required")
	}
	if err := s.validate.Struct(input); err != nil {
		return nil, validationError(err)
	}
	if err := checkBirthDate(input.DateOfBirth, s.today()); err != nil {
		return nil, err
	}

	return s.create(ctx, input.toAppointment())
}

// Duplicate books a copy of an existing booking. The copy gets its own op
// number, state and doctor appointment.
func (s *BookingService) Duplicate(ctx context.Context, id string) (*entities.Appointment, error) {
	source, err := s.repos.Appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, source.CopyForDuplicate())
}

func (s *BookingService) create(ctx context.Context, appointment *entities.Appointment) (*entities.Appointment, error) {
	logger := observability.LoggerFromContext(ctx)

	patient, err := s.resolvePatient(ctx, appointment.PatientID)
	if err != nil {
		return nil, err
	}
	if err := s.resolveDoctor(ctx, appointment); err != nil {
		return nil, err
	}

	if appointment.NeedsOpNumber() {
		opNumber, err := s.nextOpNumber(ctx)
		if err != nil {
			return nil, err
		}
		appointment.OpNumber = opNumber
	}

	appointment.Name = patient.Name
	if appointment.Phone == "" {
		appointment.Phone = patient.Phone
	}
	if appointment.Email == "" {
		appointment.Email = patient.Email
	}
	appointment.Phone = s.phone.Normalize(appointment.Phone)
	appointment.State = entities.AppointmentStateBooked

	err = s.repos.Transactor.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repos.Appointments.Create(ctx, appointment); err != nil {
			return err
		}

		mirror := entities.MirrorOf(appointment)
		if err := s.repos.DoctorAppointments.Create(ctx, mirror); err != nil {
			return err
		}
		if err := s.repos.Appointments.LinkDoctorAppointment(ctx, appointment.ID, mirror.ID); err != nil {
			return err
		}
		appointment.DoctorAppointmentID = &mirror.ID

		return s.repos.StateChanges.Record(ctx, &entities.StateChange{
			AppointmentID: appointment.ID,
			ToState:       entities.AppointmentStateBooked,
			ChangedAt:     appointment.CreatedAt,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to book appointment: %w", err)
	}

	logger.Info().
		Str("appointment_id", appointment.ID).
		Str("op_number", appointment.OpNumber).
		Str("patient_id", appointment.PatientID).
		Msg("appointment booked")
	observability.RecordBookingCreated(ctx, s.metrics, string(appointment.Department))
	s.afterCommit(ctx, entities.BookingEventBooked, appointment)

	if err := s.derive(ctx, appointment); err != nil {
		return nil, err
	}
	return appointment, nil
}

// nextOpNumber draws the next op number. Without a value the booking still
// goes through with the fallback number unless strict mode is on.
func (s *BookingService) nextOpNumber(ctx context.Context) (string, error) {
	value, err := s.sequence.Next(ctx, s.opts.SequenceCode)
	if err == nil && value != "" {
		return value, nil
	}
	if err == nil {
		err = fmt.Errorf("sequence %s is not defined", s.opts.SequenceCode)
	}

	if s.opts.SequenceStrict {
		return "", apperrors.NewExternalError("failed to assign op number", err)
	}

	observability.LoggerFromContext(ctx).Warn().
		Err(err).
		Str("sequence", s.opts.SequenceCode).
		Str("op_number", entities.OpNumberFallback).
		Msg("op number sequence unavailable, using fallback")
	observability.RecordSequenceFallback(ctx, s.metrics, s.opts.SequenceCode)
	return entities.OpNumberFallback, nil
}

// resolvePatient loads the patient whose name and contact details get copied,
// bypassing the patient cache
func (s *BookingService) resolvePatient(ctx context.Context, patientID string) (*entities.Patient, error) {
	patient, err := s.repos.Patients.GetByID(repositories.WithFreshReads(ctx), patientID)
	if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		return nil, apperrors.NewReferenceError("patient_id", patientID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load patient: %w", err)
	}
	return patient, nil
}

// resolveDoctor checks the consultation doctor exists; an empty id clears it
func (s *BookingService) resolveDoctor(ctx context.Context, appointment *entities.Appointment) error {
	if appointment.ConsultationDoctorID == nil {
		return nil
	}
	doctorID := *appointment.ConsultationDoctorID
	if doctorID == "" {
		appointment.ConsultationDoctorID = nil
		return nil
	}

	_, err := s.repos.Doctors.GetByID(ctx, doctorID)
	if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		return apperrors.NewReferenceError("consultation_doctor_id", doctorID)
	}
	if err != nil {
		return fmt.Errorf("failed to load doctor: %w", err)
	}
	return nil
}

// PrefillFromPatient fills the patient details of a draft when its patient
// is selected. Nothing is persisted.
func (s *BookingService) PrefillFromPatient(ctx context.Context, draft *Draft) (*Draft, error) {
	if draft == nil {
		return nil, apperrors.NewValidationError("draft is required")
	}
	if err := s.validate.Struct(draft); err != nil {
		return nil, validationError(err)
	}

	patient, err := s.resolvePatient(ctx, draft.PatientID)
	if err != nil {
		return nil, err
	}

	others, err := s.repos.Appointments.CountByPatient(ctx, patient.ID, draft.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count bookings: %w", err)
	}

	filled := *draft
	filled.Name = patient.Name
	filled.Phone = patient.Phone
	filled.Email = patient.Email
	filled.PatientType = entities.ClassifyPatientType(patient.ID, others)
	return &filled, nil
}

// Cancel cancels a booking together with its doctor appointment. Any state
// can be cancelled and repeating the call changes nothing.
func (s *BookingService) Cancel(ctx context.Context, id string) (*entities.Appointment, error) {
	var appointment *entities.Appointment
	changed := false

	err := s.repos.Transactor.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.repos.Appointments.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if current.State != entities.AppointmentStateCancelled {
			if err := s.repos.Appointments.SetState(ctx, id, entities.AppointmentStateCancelled); err != nil {
				return err
			}
			if err := s.repos.StateChanges.Record(ctx, &entities.StateChange{
				AppointmentID: id,
				FromState:     current.State,
				ToState:       entities.AppointmentStateCancelled,
				ChangedAt:     s.now().UTC(),
			}); err != nil {
				return err
			}
			current.State = entities.AppointmentStateCancelled
			changed = true
		}

		if current.DoctorAppointmentID != nil {
			if err := s.repos.DoctorAppointments.SetState(ctx, *current.DoctorAppointmentID, entities.AppointmentStateCancelled); err != nil {
				return err
			}
		}

		appointment = current
		return nil
	})
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to cancel appointment: %w", err)
	}

	if changed {
		observability.LoggerFromContext(ctx).Info().
			Str("appointment_id", id).
			Str("op_number", appointment.OpNumber).
			Msg("appointment cancelled")
		observability.RecordBookingCancelled(ctx, s.metrics)
		s.afterCommit(ctx, entities.BookingEventCancelled, appointment)
	}

	if err := s.derive(ctx, appointment); err != nil {
		return nil, err
	}
	return appointment, nil
}

// Update applies field writes to a booking. A state written here is tracked
// but, unlike Cancel, is not pushed to the doctor appointment.
func (s *BookingService) Update(ctx context.Context, id string, patch *BookingPatch) (*entities.Appointment, error) {
	if patch == nil {
		return nil, apperrors.NewValidationError("patch is required")
	}
	if err := s.validate.Struct(patch); err != nil {
		return nil, validationError(err)
	}
	if patch.PatientID != nil && *patch.PatientID == "" {
		return nil, apperrors.NewValidationError("patient_id is required")
	}
	if patch.State != nil && !patch.State.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("state has unknown value %q", *patch.State))
	}
	if patch.AppointmentDate != nil && patch.AppointmentDate.IsZero() {
		return nil, apperrors.NewValidationError("appointment_date is required")
	}
	if err := checkBirthDate(patch.DateOfBirth, s.today()); err != nil {
		return nil, err
	}

	var appointment *entities.Appointment
	var fromState entities.AppointmentState

	err := s.repos.Transactor.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.repos.Appointments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		fromState = current.State

		if patch.OpNumber != nil && *patch.OpNumber != current.OpNumber {
			return apperrors.NewValidationError("op_number cannot be changed")
		}

		if patch.PatientID != nil && *patch.PatientID != current.PatientID {
			patient, err := s.resolvePatient(ctx, *patch.PatientID)
			if err != nil {
				return err
			}
			current.PatientID = patient.ID
			current.Name = patient.Name
		}

		if patch.ConsultationDoctorID != nil {
			doctorID := *patch.ConsultationDoctorID
			current.ConsultationDoctorID = &doctorID
			if err := s.resolveDoctor(ctx, current); err != nil {
				return err
			}
		}

		applyPatch(current, patch)
		if patch.Phone != nil {
			current.Phone = s.phone.Normalize(*patch.Phone)
		}

		if err := s.repos.Appointments.Update(ctx, current); err != nil {
			return err
		}

		if current.State != fromState {
			if err := s.repos.StateChanges.Record(ctx, &entities.StateChange{
				AppointmentID: id,
				FromState:     fromState,
				ToState:       current.State,
				ChangedAt:     current.UpdatedAt,
			}); err != nil {
				return err
			}
		}

		appointment = current
		return nil
	})
	if err != nil {
		if _, ok := apperrors.As(err); ok {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update appointment: %w", err)
	}

	s.afterCommit(ctx, entities.BookingEventUpdated, appointment)

	if err := s.derive(ctx, appointment); err != nil {
		return nil, err
	}
	return appointment, nil
}

func applyPatch(a *entities.Appointment, patch *BookingPatch) {
	if patch.ReferenceID != nil {
		a.ReferenceID = *patch.ReferenceID
	}
	if patch.Gender != nil {
		a.Gender = *patch.Gender
	}
	if patch.DateOfBirth != nil {
		dob := entities.DateOnly(*patch.DateOfBirth)
		a.DateOfBirth = &dob
	}
	if patch.Email != nil {
		a.Email = *patch.Email
	}
	if patch.AppointmentDate != nil {
		a.AppointmentDate = entities.DateOnly(*patch.AppointmentDate)
	}
	if patch.Department != nil {
		a.Department = *patch.Department
	}
	if patch.ConsultationMode != nil {
		a.ConsultationMode = *patch.ConsultationMode
	}
	if patch.IfOnline != nil {
		a.IfOnline = *patch.IfOnline
	}
	if patch.Referral != nil {
		a.Referral = *patch.Referral
	}
	if patch.Priority != nil {
		a.Priority = *patch.Priority
	}
	if patch.Notes != nil {
		a.Notes = *patch.Notes
	}
	if patch.State != nil {
		a.State = *patch.State
	}
}

// afterCommit publishes the change and refreshes the search index. Both are
// best effort; the booking is already committed.
func (s *BookingService) afterCommit(ctx context.Context, eventType entities.BookingEventType, appointment *entities.Appointment) {
	logger := observability.LoggerFromContext(ctx)

	if s.events != nil {
		event := entities.NewBookingEvent(eventType, appointment)
		channels := []string{providers.EventChannelBookings}
		if appointment.Department != "" {
			channels = append(channels, providers.DepartmentChannel(appointment.Department))
		}
		for _, channel := range channels {
			if err := s.events.Publish(ctx, channel, event); err != nil {
				logger.Warn().Err(err).Str("channel", channel).Str("appointment_id", appointment.ID).Msg("failed to publish booking event")
			}
		}
	}

	if s.index != nil {
		if err := s.index.Index(ctx, appointment); err != nil {
			logger.Warn().Err(err).Str("appointment_id", appointment.ID).Msg("failed to index booking")
		}
	}
}

// derive fills the fields computed on read
func (s *BookingService) derive(ctx context.Context, appointment *entities.Appointment) error {
	return s.deriveAll(ctx, []*entities.Appointment{appointment})
}

// deriveAll fills derived fields for persisted bookings. Booking counts for
// all distinct patients are loaded in one batch.
func (s *BookingService) deriveAll(ctx context.Context, appointments []*entities.Appointment) error {
	today := s.today()
	patientIDs := make([]string, 0, len(appointments))
	seen := make(map[string]bool)
	for _, appointment := range appointments {
		appointment.Age = entities.ComputeAge(appointment.DateOfBirth, today)
		if appointment.PatientID != "" && !seen[appointment.PatientID] {
			seen[appointment.PatientID] = true
			patientIDs = append(patientIDs, appointment.PatientID)
		}
	}

	totals := map[string]int{}
	if len(patientIDs) > 0 {
		var err error
		totals, err = loaders.NewBookingCounts(s.repos.Appointments, len(patientIDs)).Load(ctx, patientIDs)
		if err != nil {
			return fmt.Errorf("failed to classify patient: %w", err)
		}
	}

	for _, appointment := range appointments {
		if appointment.PatientID == "" {
			appointment.PatientType = entities.PatientTypeNew
			continue
		}
		// the booking itself is among the patient's total
		appointment.PatientType = entities.ClassifyPatientType(appointment.PatientID, totals[appointment.PatientID]-1)
	}
	return nil
}

// Get retrieves a booking by ID
func (s *BookingService) Get(ctx context.Context, id string) (*entities.Appointment, error) {
	appointment, err := s.repos.Appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.derive(ctx, appointment); err != nil {
		return nil, err
	}
	return appointment, nil
}

// List retrieves bookings matching filter
func (s *BookingService) List(ctx context.Context, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	if filter.State != "" && !filter.State.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("state has unknown value %q", filter.State))
	}
	if !filter.Department.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("department has unknown value %q", filter.Department))
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, apperrors.NewValidationError("from must not be after to")
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}

	appointments, err := s.repos.Appointments.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if err := s.deriveAll(ctx, appointments); err != nil {
		return nil, err
	}
	return appointments, nil
}

// ListByPatient retrieves the bookings of one patient
func (s *BookingService) ListByPatient(ctx context.Context, patientID string, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	if _, err := s.repos.Patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	filter.PatientID = patientID
	return s.List(ctx, filter)
}

// History returns the tracked state changes of a booking, oldest first
func (s *BookingService) History(ctx context.Context, id string) ([]*entities.StateChange, error) {
	if _, err := s.repos.Appointments.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repos.StateChanges.ListByAppointment(ctx, id)
}

// GetDoctorAppointment retrieves a doctor appointment by ID
func (s *BookingService) GetDoctorAppointment(ctx context.Context, id string) (*entities.DoctorAppointment, error) {
	return s.repos.DoctorAppointments.GetByID(ctx, id)
}

// ListDoctors returns the consultation doctors a booking can be assigned to
func (s *BookingService) ListDoctors(ctx context.Context) ([]*entities.Doctor, error) {
	return s.repos.Doctors.List(ctx)
}

// Search looks bookings up by op number, name, phone or reference id
func (s *BookingService) Search(ctx context.Context, query string, limit int) ([]providers.BookingHit, error) {
	if s.index == nil {
		return nil, apperrors.NewUnavailableError("booking search is not configured")
	}
	hits, err := s.index.Search(ctx, query, limit)
	if err != nil {
		return nil, apperrors.NewExternalError("booking search failed", err)
	}
	return hits, nil
}

// Reindex upserts every booking into the search index and returns the count
func (s *BookingService) Reindex(ctx context.Context, batchSize int) (int, error) {
	if s.index == nil {
		return 0, apperrors.NewUnavailableError("booking search is not configured")
	}
	if err := s.index.EnsureSchema(ctx); err != nil {
		return 0, apperrors.NewExternalError("failed to prepare search index", err)
	}
	if batchSize <= 0 {
		batchSize = maxListLimit
	}

	indexed := 0
	for offset := 0; ; offset += batchSize {
		page, err := s.repos.Appointments.List(ctx, repositories.AppointmentFilter{Limit: batchSize, Offset: offset})
		if err != nil {
			return indexed, err
		}
		for _, appointment := range page {
			if err := s.index.Index(ctx, appointment); err != nil {
				return indexed, apperrors.NewExternalError("failed to index booking", err)
			}
			indexed++
		}
		if len(page) < batchSize {
			return indexed, nil
		}
	}
}
