package providers

import (
	"context"

	"github.com/zatekoja/clinicbooking/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to booking events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.BookingEvent) error

	// Subscribe subscribes to events on a channel until ctx is done
	Subscribe(ctx context.Context, channel string) (<-chan *entities.BookingEvent, error)

	// Close closes the event bus and all subscriptions
	Close() error
}

const (
	// EventChannelBookings carries every booking event
	EventChannelBookings = "bookings:updates"

	// EventChannelDepartmentPrefix prefixes per-department channels
	EventChannelDepartmentPrefix = "bookings:department:"
)

// DepartmentChannel returns the channel for events of one department
func DepartmentChannel(department entities.Department) string {
	return EventChannelDepartmentPrefix + string(department)
}
