package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/jbxxnn/usebinda/internal/availability"
	redisclient "github.com/jbxxnn/usebinda/internal/redis"
)

var (
	// ErrSlotNoLongerAvailable means the chosen slot failed re-validation
	// at write time: it was taken, blocked, or otherwise closed between
	// the customer seeing it and committing. Distinct from validation
	// errors so callers can prompt for a new slot selection.
	ErrSlotNoLongerAvailable = errors.New("slot is no longer available")

	ErrSlotBeingBooked         = errors.New("slot is currently being booked, please retry")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrCancelledBooking        = errors.New("booking is cancelled")
	ErrMaxReschedules          = errors.New("maximum reschedules reached")
)

type Service struct {
	repo           Repository
	engine         *availability.Engine
	locker         redisclient.Locker
	maxReschedules int
}

func NewService(repo Repository, engine *availability.Engine, locker redisclient.Locker, maxReschedules int) *Service {
	if maxReschedules <= 0 {
		maxReschedules = 3
	}
	return &Service{
		repo:           repo,
		engine:         engine,
		locker:         locker,
		maxReschedules: maxReschedules,
	}
}

type CreateRequest struct {
	ServiceID     uuid.UUID
	ProviderID    uuid.UUID
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	StartTime     time.Time
	Notes         *string
}

// CreateBooking reserves a slot for a customer. The availability engine
// only computes availability at read time, so the same constraint checks
// run again here, inside a per-slot distributed lock, immediately before
// the insert. Two concurrent requests for one slot serialize on the lock
// and the loser sees ErrSlotNoLongerAvailable or ErrSlotBeingBooked.
func (s *Service) CreateBooking(ctx context.Context, req CreateRequest) (*Booking, error) {
	start := req.StartTime.UTC()

	var created *Booking

	err := s.locker.WithSlotLock(ctx, req.ProviderID, start, func(lockCtx context.Context) error {
		if err := s.engine.ValidateSlot(lockCtx, req.ProviderID, req.ServiceID, start); err != nil {
			if errors.Is(err, availability.ErrSlotUnavailable) {
				return fmt.Errorf("%w: %s", ErrSlotNoLongerAvailable, err)
			}
			return err
		}

		b := &Booking{
			ID:            uuid.New(),
			ServiceID:     req.ServiceID,
			ProviderID:    req.ProviderID,
			CustomerName:  req.CustomerName,
			CustomerEmail: req.CustomerEmail,
			CustomerPhone: req.CustomerPhone,
			StartTime:     start,
			Notes:         req.Notes,
			Status:        StatusPending,
		}

		inserted, err := s.repo.Create(lockCtx, b)
		if err != nil {
			return fmt.Errorf("create booking: %w", err)
		}
		created = inserted
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	return created, nil
}

// ConfirmBooking moves a pending booking to confirmed.
func (s *Service) ConfirmBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if b.Status != StatusPending {
		return nil, ErrInvalidStatusTransition
	}
	updated, err := s.repo.UpdateStatus(ctx, id, StatusPending, StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("confirm booking: %w", err)
	}
	return updated, nil
}

// CompleteBooking moves a confirmed booking to completed.
func (s *Service) CompleteBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if b.Status != StatusConfirmed {
		return nil, ErrInvalidStatusTransition
	}
	updated, err := s.repo.UpdateStatus(ctx, id, StatusConfirmed, StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("complete booking: %w", err)
	}
	return updated, nil
}

// CancelBooking cancels a pending or confirmed booking. The slot opens up
// immediately: cancelled bookings never count toward capacity.
func (s *Service) CancelBooking(ctx context.Context, id uuid.UUID, reason string) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if !b.Status.Active() {
		return nil, ErrInvalidStatusTransition
	}
	updated, err := s.repo.Cancel(ctx, id, reason, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("cancel booking: %w", err)
	}
	return updated, nil
}

// RescheduleBooking moves an active booking to a new slot in place,
// validating the new slot the same way creation does. The original slot
// frees up as soon as the start time moves.
func (s *Service) RescheduleBooking(ctx context.Context, id uuid.UUID, newStart time.Time) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if b.Status == StatusCancelled {
		return nil, ErrCancelledBooking
	}
	if !b.Status.Active() {
		return nil, ErrInvalidStatusTransition
	}
	if b.RescheduleCount >= s.maxReschedules {
		return nil, fmt.Errorf("%w (%d)", ErrMaxReschedules, s.maxReschedules)
	}

	newStart = newStart.UTC()

	// First reschedule records the booking itself as the origin.
	origin := b.ID
	if b.RescheduledFrom != nil {
		origin = *b.RescheduledFrom
	}

	var updated *Booking
	err = s.locker.WithSlotLock(ctx, b.ProviderID, newStart, func(lockCtx context.Context) error {
		if err := s.engine.ValidateSlot(lockCtx, b.ProviderID, b.ServiceID, newStart); err != nil {
			if errors.Is(err, availability.ErrSlotUnavailable) {
				return fmt.Errorf("%w: %s", ErrSlotNoLongerAvailable, err)
			}
			return err
		}

		moved, err := s.repo.Reschedule(lockCtx, id, newStart, origin)
		if err != nil {
			return fmt.Errorf("reschedule booking: %w", err)
		}
		updated = moved
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	return updated, nil
}

// GetBooking retrieves a booking by ID.
func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// ListBookingsByProvider retrieves bookings for a provider, newest first.
func (s *Service) ListBookingsByProvider(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]Booking, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	bookings, err := s.repo.ListByProvider(ctx, providerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list bookings by provider: %w", err)
	}
	return bookings, nil
}

// ExpireStalePending cancels pending bookings older than ttl. Intended to
// be called periodically by the expiry worker so abandoned checkouts stop
// holding capacity.
func (s *Service) ExpireStalePending(ctx context.Context, ttl time.Duration) error {
	cutoff := time.Now().UTC().Add(-ttl)
	stale, err := s.repo.FindStalePending(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("find stale pending bookings: %w", err)
	}

	for _, b := range stale {
		_, err := s.repo.Cancel(ctx, b.ID, "expired", time.Now().UTC())
		if err != nil && !errors.Is(err, ErrBookingNotFound) {
			log.Printf("failed to expire booking %s: %v", b.ID, err)
		}
	}

	return nil
}
