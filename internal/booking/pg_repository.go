package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const bookingColumns = `
	id, service_id, provider_id, customer_name, customer_email, customer_phone,
	start_time, notes, status, cancellation_reason, cancelled_at,
	rescheduled_from, reschedule_count, created_at, updated_at
`

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking

	err := row.Scan(
		&b.ID,
		&b.ServiceID,
		&b.ProviderID,
		&b.CustomerName,
		&b.CustomerEmail,
		&b.CustomerPhone,
		&b.StartTime,
		&b.Notes,
		&b.Status,
		&b.CancellationReason,
		&b.CancelledAt,
		&b.RescheduledFrom,
		&b.RescheduleCount,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	return &b, nil
}

func (r *PgRepository) Create(ctx context.Context, b *Booking) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO bookings (
			id, service_id, provider_id, customer_name, customer_email, customer_phone,
			start_time, notes, status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING `+bookingColumns+`
	`, b.ID, b.ServiceID, b.ProviderID, b.CustomerName, b.CustomerEmail, b.CustomerPhone,
		b.StartTime, b.Notes, b.Status)
	return scanBooking(row)
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

func (r *PgRepository) ListByProvider(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE provider_id = $1
		ORDER BY start_time DESC
		LIMIT $2 OFFSET $3
	`, providerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+bookingColumns+`
	`, id, from, to)
	return scanBooking(row)
}

func (r *PgRepository) Cancel(ctx context.Context, id uuid.UUID, reason string, at time.Time) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'cancelled', cancellation_reason = $2, cancelled_at = $3, updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'confirmed')
		RETURNING `+bookingColumns+`
	`, id, reason, at)
	return scanBooking(row)
}

func (r *PgRepository) Reschedule(ctx context.Context, id uuid.UUID, newStart time.Time, origin uuid.UUID) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET start_time = $2,
		    reschedule_count = reschedule_count + 1,
		    rescheduled_from = COALESCE(rescheduled_from, $3),
		    updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'confirmed')
		RETURNING `+bookingColumns+`
	`, id, newStart, origin)
	return scanBooking(row)
}

func (r *PgRepository) FindStalePending(ctx context.Context, cutoff time.Time) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}
