package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrBookingNotFound = errors.New("booking not found")

// Repository contains all DB interactions needed by the booking service.
type Repository interface {
	Create(ctx context.Context, b *Booking) (*Booking, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]Booking, error)

	// UpdateStatus transitions only when the current status matches from;
	// returns ErrBookingNotFound when it no longer does.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Booking, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string, at time.Time) (*Booking, error)
	Reschedule(ctx context.Context, id uuid.UUID, newStart time.Time, origin uuid.UUID) (*Booking, error)

	// FindStalePending returns pending bookings created before the cutoff,
	// for the expiry worker.
	FindStalePending(ctx context.Context, cutoff time.Time) ([]Booking, error)
}
