package services_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/zatekoja/clinicbooking/internal/application/services"
	"github.com/zatekoja/clinicbooking/internal/domain/entities"
	"github.com/zatekoja/clinicbooking/internal/domain/providers"
	"github.com/zatekoja/clinicbooking/internal/domain/repositories"
	apperrors "github.com/zatekoja/clinicbooking/pkg/errors"
)

// memStore is an in-memory database shared by the fake repositories. The
// fake transactor snapshots it and restores the snapshot on rollback.
type memStore struct {
	mu                 sync.Mutex
	seq                int
	appointments       map[string]entities.Appointment
	doctorAppointments map[string]entities.DoctorAppointment
	stateChanges       []entities.StateChange
	patients           map[string]entities.Patient
	doctors            map[string]entities.Doctor
	countCalls         int
	batchCountCalls    int
	batchCountErr      error
	freshPatientReads  int

	failDoctorAppointmentCreate error
}

func newMemStore() *memStore {
	return &memStore{
		appointments:       map[string]entities.Appointment{},
		doctorAppointments: map[string]entities.DoctorAppointment{},
		patients:           map[string]entities.Patient{},
		doctors:            map[string]entities.Doctor{},
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *memStore) addPatient(id, name, phone string) {
	s.patients[id] = entities.Patient{ID: id, Name: name, Phone: phone}
}

func (s *memStore) repositories() services.BookingRepositories {
	return services.BookingRepositories{
		Appointments:       &fakeAppointments{s},
		DoctorAppointments: &fakeDoctorAppointments{s},
		StateChanges:       &fakeStateChanges{s},
		Patients:           &fakePatients{s},
		Doctors:            &fakeDoctors{s},
		Transactor:         &fakeTransactor{s},
	}
}

func (s *memStore) history(appointmentID string) []entities.StateChange {
	var out []entities.StateChange
	for _, c := range s.stateChanges {
		if c.AppointmentID == appointmentID {
			out = append(out, c)
		}
	}
	return out
}

type fakeTransactor struct{ s *memStore }

func (t *fakeTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.s.mu.Lock()
	appointments := make(map[string]entities.Appointment, len(t.s.appointments))
	for k, v := range t.s.appointments {
		appointments[k] = v
	}
	doctorAppointments := make(map[string]entities.DoctorAppointment, len(t.s.doctorAppointments))
	for k, v := range t.s.doctorAppointments {
		doctorAppointments[k] = v
	}
	stateChanges := append([]entities.StateChange(nil), t.s.stateChanges...)
	t.s.mu.Unlock()

	if err := fn(ctx); err != nil {
		t.s.mu.Lock()
		t.s.appointments = appointments
		t.s.doctorAppointments = doctorAppointments
		t.s.stateChanges = stateChanges
		t.s.mu.Unlock()
		return err
	}
	return nil
}

type fakeAppointments struct{ s *memStore }

func (r *fakeAppointments) Create(ctx context.Context, a *entities.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a.ID == "" {
		a.ID = r.s.nextID("appt")
	}
	a.CreatedAt = time.Date(2026, 3, 1, 9, 0, r.s.seq, 0, time.UTC)
	a.UpdatedAt = a.CreatedAt
	if a.OpNumber != entities.OpNumberFallback {
		for _, existing := range r.s.appointments {
			if existing.OpNumber == a.OpNumber {
				return apperrors.NewConflictError("failed to create appointment: duplicate appointments_op_number_key")
			}
		}
	}
	r.s.appointments[a.ID] = *a
	return nil
}

func (r *fakeAppointments) GetByID(ctx context.Context, id string) (*entities.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", id))
	}
	return &a, nil
}

func (r *fakeAppointments) Update(ctx context.Context, a *entities.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.appointments[a.ID]
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", a.ID))
	}
	updated := *a
	updated.OpNumber = existing.OpNumber
	updated.DoctorAppointmentID = existing.DoctorAppointmentID
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = existing.UpdatedAt.Add(time.Minute)
	a.UpdatedAt = updated.UpdatedAt
	r.s.appointments[a.ID] = updated
	return nil
}

func (r *fakeAppointments) SetState(ctx context.Context, id string, state entities.AppointmentState) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", id))
	}
	a.State = state
	r.s.appointments[id] = a
	return nil
}

func (r *fakeAppointments) LinkDoctorAppointment(ctx context.Context, id, doctorAppointmentID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", id))
	}
	a.DoctorAppointmentID = &doctorAppointmentID
	r.s.appointments[id] = a
	return nil
}

func (r *fakeAppointments) CountByPatient(ctx context.Context, patientID, excludeID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.countCalls++
	count := 0
	for _, a := range r.s.appointments {
		if a.PatientID == patientID && (excludeID == "" || a.ID != excludeID) {
			count++
		}
	}
	return count, nil
}

func (r *fakeAppointments) CountByPatients(ctx context.Context, patientIDs []string) (map[string]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.batchCountCalls++
	if r.s.batchCountErr != nil {
		return nil, r.s.batchCountErr
	}
	wanted := make(map[string]bool, len(patientIDs))
	for _, id := range patientIDs {
		wanted[id] = true
	}
	counts := make(map[string]int)
	for _, a := range r.s.appointments {
		if wanted[a.PatientID] {
			counts[a.PatientID]++
		}
	}
	return counts, nil
}

func (r *fakeAppointments) List(ctx context.Context, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entities.Appointment
	for _, a := range r.s.appointments {
		if filter.PatientID != "" && a.PatientID != filter.PatientID {
			continue
		}
		if filter.State != "" && a.State != filter.State {
			continue
		}
		if filter.Department != "" && a.Department != filter.Department {
			continue
		}
		a := a
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Offset >= len(out) {
		return []*entities.Appointment{}, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

type fakeDoctorAppointments struct{ s *memStore }

func (r *fakeDoctorAppointments) Create(ctx context.Context, da *entities.DoctorAppointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failDoctorAppointmentCreate != nil {
		return r.s.failDoctorAppointmentCreate
	}
	if da.ID == "" {
		da.ID = r.s.nextID("docappt")
	}
	r.s.doctorAppointments[da.ID] = *da
	return nil
}

func (r *fakeDoctorAppointments) GetByID(ctx context.Context, id string) (*entities.DoctorAppointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	da, ok := r.s.doctorAppointments[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("doctor appointment with id %s not found", id))
	}
	return &da, nil
}

func (r *fakeDoctorAppointments) SetState(ctx context.Context, id string, state entities.AppointmentState) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	da, ok := r.s.doctorAppointments[id]
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("doctor appointment with id %s not found", id))
	}
	da.State = state
	r.s.doctorAppointments[id] = da
	return nil
}

type fakeStateChanges struct{ s *memStore }

func (r *fakeStateChanges) Record(ctx context.Context, change *entities.StateChange) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	change.ID = r.s.nextID("change")
	r.s.stateChanges = append(r.s.stateChanges, *change)
	return nil
}

func (r *fakeStateChanges) ListByAppointment(ctx context.Context, appointmentID string) ([]*entities.StateChange, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*entities.StateChange{}
	for _, c := range r.s.stateChanges {
		if c.AppointmentID == appointmentID {
			c := c
			out = append(out, &c)
		}
	}
	return out, nil
}

type fakePatients struct{ s *memStore }

func (r *fakePatients) Create(ctx context.Context, p *entities.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.ID == "" {
		p.ID = r.s.nextID("patient")
	}
	r.s.patients[p.ID] = *p
	return nil
}

func (r *fakePatients) GetByID(ctx context.Context, id string) (*entities.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if repositories.FreshReads(ctx) {
		r.s.freshPatientReads++
	}
	p, ok := r.s.patients[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("patient with id %s not found", id))
	}
	return &p, nil
}

// memCache is a map-backed CacheProvider
type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]byte{}}
}

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.entries[key]
	if !ok {
		return nil, providers.ErrCacheMiss
	}
	return value, nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

type fakeDoctors struct{ s *memStore }

func (r *fakeDoctors) GetByID(ctx context.Context, id string) (*entities.Doctor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.doctors[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("doctor with id %s not found", id))
	}
	return &d, nil
}

func (r *fakeDoctors) List(ctx context.Context) ([]*entities.Doctor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*entities.Doctor{}
	for _, d := range r.s.doctors {
		d := d
		out = append(out, &d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Mocks

type MockSequenceProvider struct {
	mock.Mock
}

func (m *MockSequenceProvider) Next(ctx context.Context, code string) (string, error) {
	args := m.Called(ctx, code)
	return args.String(0), args.Error(1)
}

// counterSequence hands out OP00001, OP00002, ...
type counterSequence struct {
	mu sync.Mutex
	n  int64
}

func (c *counterSequence) Next(ctx context.Context, code string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return entities.OpNumberSequence.Format(c.n), nil
}

type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.BookingEvent) error {
	args := m.Called(ctx, channel, event)
	return args.Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.BookingEvent, error) {
	args := m.Called(ctx, channel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan *entities.BookingEvent), args.Error(1)
}

func (m *MockEventBus) Close() error {
	return m.Called().Error(0)
}

type MockBookingIndex struct {
	mock.Mock
}

func (m *MockBookingIndex) EnsureSchema(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockBookingIndex) Index(ctx context.Context, appointment *entities.Appointment) error {
	return m.Called(ctx, appointment).Error(0)
}

func (m *MockBookingIndex) Search(ctx context.Context, query string, limit int) ([]providers.BookingHit, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]providers.BookingHit), args.Error(1)
}
