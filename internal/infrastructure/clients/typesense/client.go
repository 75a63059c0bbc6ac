package typesense

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
	"github.com/zatekoja/clinicbooking/pkg/config"
	"github.com/zatekoja/clinicbooking/pkg/retry"
)

const (
	BookingsCollection = "bookings"
)

// Client represents a Typesense client
type Client struct {
	client *typesense.Client
}

// NewClient creates a new Typesense client with exponential backoff retry
func NewClient(cfg *config.TypesenseConfig) (*Client, error) {
	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = 5
	err := retry.DoWithLog(
		context.Background(),
		retryCfg,
		"Typesense",
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err := client.Health(ctx, 2*time.Second)
			return err
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", nextDelay).Msg("Typesense connection attempt failed")
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	log.Info().Str("url", cfg.URL).Msg("connected to Typesense")
	return &Client{client: client}, nil
}

// Client returns the underlying Typesense client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// BookingsSchema is the collection schema of the booking index
func BookingsSchema() *api.CollectionSchema {
	return &api.CollectionSchema{
		Name: BookingsCollection,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "op_number", Type: "string"},
			{Name: "name", Type: "string"},
			{Name: "patient_id", Type: "string", Facet: pointer.True()},
			{Name: "phone", Type: "string", Optional: pointer.True()},
			{Name: "reference_id", Type: "string", Optional: pointer.True()},
			{Name: "department", Type: "string", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "state", Type: "string", Facet: pointer.True()},
			{Name: "appointment_date", Type: "string"},
			{Name: "appointment_ts", Type: "int64"},
		},
		DefaultSortingField: pointer.String("appointment_ts"),
	}
}

// EnsureBookingsCollection creates the bookings collection if it is missing
func (c *Client) EnsureBookingsCollection(ctx context.Context) error {
	collections, err := c.client.Collections().Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve collections: %w", err)
	}

	for _, col := range collections {
		if col.Name == BookingsCollection {
			return nil
		}
	}

	if _, err := c.client.Collections().Create(ctx, BookingsSchema()); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	log.Info().Str("collection", BookingsCollection).Msg("created Typesense collection")
	return nil
}
