package availability

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrProfileNotFound       = errors.New("availability profile not found")
	ErrServiceNotFound       = errors.New("service not found")
	ErrBlockedPeriodNotFound = errors.New("blocked period not found")
)

// Repository contains the constraint-source reads the engine depends on.
// Implementations do shape translation only; a fetch failure must surface
// as an error so callers can tell "no slots" from "could not determine".
type Repository interface {
	// GetProfile returns ErrProfileNotFound for providers that never
	// configured availability; the engine substitutes defaults.
	GetProfile(ctx context.Context, providerID uuid.UUID) (*Profile, error)
	GetService(ctx context.Context, serviceID uuid.UUID) (*Service, error)

	// GetBlockedPeriods returns periods overlapping [from, to), UTC.
	GetBlockedPeriods(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]BlockedPeriod, error)

	// GetActiveBookings returns pending/confirmed bookings starting in
	// [from, to). Cancelled and completed bookings never block a slot.
	GetActiveBookings(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]BookingRef, error)
	CountActiveBookings(ctx context.Context, providerID uuid.UUID, from, to time.Time) (int, error)
}

// SettingsRepository extends Repository with the writes the availability
// settings endpoints need.
type SettingsRepository interface {
	Repository

	UpsertProfile(ctx context.Context, p *Profile) (*Profile, error)
	CreateBlockedPeriod(ctx context.Context, bp *BlockedPeriod) (*BlockedPeriod, error)
	DeleteBlockedPeriod(ctx context.Context, providerID, id uuid.UUID) error
	ListServices(ctx context.Context, providerID uuid.UUID) ([]Service, error)
}
