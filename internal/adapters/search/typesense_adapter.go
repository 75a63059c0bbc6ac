package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
	"github.com/zatekoja/clinicbooking/internal/domain/entities"
	"github.com/zatekoja/clinicbooking/internal/domain/providers"
	tsclient "github.com/zatekoja/clinicbooking/internal/infrastructure/clients/typesense"
)

const (
	dateLayout   = "2006-01-02"
	defaultLimit = 20
	maxLimit     = 100
)

// TypesenseAdapter implements booking search using Typesense
type TypesenseAdapter struct {
	client *tsclient.Client
}

var _ providers.BookingIndex = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// EnsureSchema ensures the bookings collection exists
func (a *TypesenseAdapter) EnsureSchema(ctx context.Context) error {
	return a.client.EnsureBookingsCollection(ctx)
}

// Index upserts the search document of a booking
func (a *TypesenseAdapter) Index(ctx context.Context, appointment *entities.Appointment) error {
	_, err := a.client.Client().Collection(tsclient.BookingsCollection).Documents().Upsert(ctx, bookingDocument(appointment))
	if err != nil {
		return fmt.Errorf("failed to index booking %s: %w", appointment.ID, err)
	}
	return nil
}

// Search matches op number, name, phone and reference id
func (a *TypesenseAdapter) Search(ctx context.Context, query string, limit int) ([]providers.BookingHit, error) {
	searchParams := &api.SearchCollectionParams{
		Q:       pointer.String(normalizeQuery(query)),
		QueryBy: pointer.String("op_number,name,phone,reference_id"),
		SortBy:  pointer.String("appointment_ts:desc"),
		Page:    pointer.Int(1),
		PerPage: pointer.Int(clampLimit(limit)),
	}

	result, err := a.client.Client().Collection(tsclient.BookingsCollection).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, fmt.Errorf("failed to search bookings: %w", err)
	}

	hits := []providers.BookingHit{}
	if result.Hits == nil {
		return hits, nil
	}
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		hits = append(hits, hitFromDocument(*hit.Document))
	}
	return hits, nil
}

func bookingDocument(a *entities.Appointment) map[string]interface{} {
	return map[string]interface{}{
		"id":               a.ID,
		"op_number":        a.OpNumber,
		"name":             a.Name,
		"patient_id":       a.PatientID,
		"phone":            a.Phone,
		"reference_id":     a.ReferenceID,
		"department":       string(a.Department),
		"state":            string(a.State),
		"appointment_date": a.AppointmentDate.Format(dateLayout),
		"appointment_ts":   a.AppointmentDate.Unix(),
	}
}

func hitFromDocument(doc map[string]interface{}) providers.BookingHit {
	str := func(key string) string {
		s, _ := doc[key].(string)
		return s
	}
	return providers.BookingHit{
		AppointmentID:   str("id"),
		OpNumber:        str("op_number"),
		Name:            str("name"),
		Phone:           str("phone"),
		Department:      entities.Department(str("department")),
		State:           entities.AppointmentState(str("state")),
		AppointmentDate: str("appointment_date"),
	}
}

func normalizeQuery(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return "*"
	}
	return query
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
