package booking

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Active reports whether the status counts toward slot capacity.
// Cancelled and completed bookings never block a slot.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Booking is a customer's reservation of one slot. StartTime is the UTC
// slot-start instant and doubles as the capacity key; the end is always
// derived from the service duration, never stored.
type Booking struct {
	ID                 uuid.UUID
	ServiceID          uuid.UUID
	ProviderID         uuid.UUID
	CustomerName       string
	CustomerEmail      string
	CustomerPhone      string
	StartTime          time.Time
	Notes              *string
	Status             Status
	CancellationReason *string
	CancelledAt        *time.Time
	RescheduledFrom    *uuid.UUID
	RescheduleCount    int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
