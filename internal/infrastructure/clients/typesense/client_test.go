package typesense

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/clinicbooking/pkg/config"
)

func TestBookingsSchema(t *testing.T) {
	schema := BookingsSchema()

	assert.Equal(t, BookingsCollection, schema.Name)
	require.NotNil(t, schema.DefaultSortingField)
	assert.Equal(t, "appointment_ts", *schema.DefaultSortingField)

	fields := make(map[string]string)
	for _, f := range schema.Fields {
		fields[f.Name] = f.Type
	}
	assert.Equal(t, "string", fields["op_number"])
	assert.Equal(t, "string", fields["name"])
	assert.Equal(t, "string", fields["state"])
	assert.Equal(t, "int64", fields["appointment_ts"])
}

func TestClient_Integration(t *testing.T) {
	url := os.Getenv("TYPESENSE_URL")
	if url == "" {
		t.Skip("TYPESENSE_URL not set")
	}

	client, err := NewClient(&config.TypesenseConfig{
		URL:    url,
		APIKey: os.Getenv("TYPESENSE_API_KEY"),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, client.EnsureBookingsCollection(ctx))
	// second call finds the existing collection
	assert.NoError(t, client.EnsureBookingsCollection(ctx))
}
