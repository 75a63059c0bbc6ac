package loaders

import (
	"context"
	"time"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/zatekoja/clinicbooking/internal/domain/repositories"
)

const batchWait = 2 * time.Millisecond

// BookingCounts batches per-patient booking counts into one
// CountByPatients query. A loader caches what it loaded, so create one per
// request.
type BookingCounts struct {
	loader *dataloader.Loader[string, int]
}

// NewBookingCounts creates a loader that sends at most capacity patients per
// query. capacity <= 0 leaves batches unbounded.
func NewBookingCounts(repo repositories.AppointmentRepository, capacity int) *BookingCounts {
	opts := []dataloader.Option[string, int]{dataloader.WithWait[string, int](batchWait)}
	if capacity > 0 {
		opts = append(opts, dataloader.WithBatchCapacity[string, int](capacity))
	}

	return &BookingCounts{
		loader: dataloader.NewBatchedLoader(func(ctx context.Context, keys []string) []*dataloader.Result[int] {
			results := make([]*dataloader.Result[int], len(keys))
			counts, err := repo.CountByPatients(ctx, keys)

			for i, key := range keys {
				if err != nil {
					results[i] = &dataloader.Result[int]{Error: err}
				} else {
					// patients without bookings are absent from counts
					results[i] = &dataloader.Result[int]{Data: counts[key]}
				}
			}
			return results
		}, opts...),
	}
}

// Load returns the booking count of every patient in patientIDs
func (c *BookingCounts) Load(ctx context.Context, patientIDs []string) (map[string]int, error) {
	thunks := make([]dataloader.Thunk[int], len(patientIDs))
	for i, id := range patientIDs {
		thunks[i] = c.loader.Load(ctx, id)
	}

	counts := make(map[string]int, len(patientIDs))
	for i, thunk := range thunks {
		count, err := thunk()
		if err != nil {
			return nil, err
		}
		counts[patientIDs[i]] = count
	}
	return counts, nil
}
