package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
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

// Storage shapes. Working hours and breaks live in JSONB columns keyed by
// lowercase day names; the repository translates them to the enum-indexed
// in-memory form.

type dayHoursJSON struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	Enabled bool   `json:"enabled"`
}

type breakJSON struct {
	Start string   `json:"start"`
	End   string   `json:"end"`
	Days  []string `json:"days"`
}

var dayNames = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

func weekdayFromName(name string) (time.Weekday, bool) {
	for i, n := range dayNames {
		if n == strings.ToLower(name) {
			return time.Weekday(i), true
		}
	}
	return 0, false
}

func workingHoursFromJSON(raw []byte) ([7]DayHours, error) {
	var hours [7]DayHours
	var m map[string]dayHoursJSON
	if err := json.Unmarshal(raw, &m); err != nil {
		return hours, fmt.Errorf("decode working hours: %w", err)
	}
	for name, dh := range m {
		wd, ok := weekdayFromName(name)
		if !ok {
			return hours, fmt.Errorf("unknown day name %q in working hours", name)
		}
		hours[wd] = DayHours{Start: dh.Start, End: dh.End, Enabled: dh.Enabled}
	}
	return hours, nil
}

func workingHoursToJSON(hours [7]DayHours) ([]byte, error) {
	m := make(map[string]dayHoursJSON, 7)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		dh := hours[wd]
		m[dayNames[wd]] = dayHoursJSON{Start: dh.Start, End: dh.End, Enabled: dh.Enabled}
	}
	return json.Marshal(m)
}

func breaksFromJSON(raw []byte) ([]BreakWindow, error) {
	var rows []breakJSON
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode break times: %w", err)
	}
	breaks := make([]BreakWindow, 0, len(rows))
	for _, row := range rows {
		bw := BreakWindow{Start: row.Start, End: row.End}
		for _, name := range row.Days {
			wd, ok := weekdayFromName(name)
			if !ok {
				return nil, fmt.Errorf("unknown day name %q in break time", name)
			}
			bw.Days[wd] = true
		}
		breaks = append(breaks, bw)
	}
	return breaks, nil
}

func breaksToJSON(breaks []BreakWindow) ([]byte, error) {
	rows := make([]breakJSON, 0, len(breaks))
	for _, bw := range breaks {
		row := breakJSON{Start: bw.Start, End: bw.End}
		for wd := time.Sunday; wd <= time.Saturday; wd++ {
			if bw.Days[wd] {
				row.Days = append(row.Days, dayNames[wd])
			}
		}
		rows = append(rows, row)
	}
	return json.Marshal(rows)
}

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	var hoursRaw, breaksRaw []byte

	err := row.Scan(
		&p.ProviderID,
		&p.Timezone,
		&hoursRaw,
		&breaksRaw,
		&p.DefaultBufferMinutes,
		&p.MaxBookingsPerSlot,
		&p.MinAdvanceHours,
		&p.MaxAdvanceDays,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	if p.WorkingHours, err = workingHoursFromJSON(hoursRaw); err != nil {
		return nil, err
	}
	if p.Breaks, err = breaksFromJSON(breaksRaw); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanService(row pgx.Row) (*Service, error) {
	var s Service

	err := row.Scan(
		&s.ID,
		&s.ProviderID,
		&s.Title,
		&s.PriceCents,
		&s.DurationMinutes,
		&s.BufferMinutes,
		&s.Active,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *PgRepository) GetProfile(ctx context.Context, providerID uuid.UUID) (*Profile, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT provider_id, timezone, working_hours, break_times,
		       default_buffer_minutes, max_bookings_per_slot,
		       min_advance_hours, max_advance_days, created_at, updated_at
		FROM availability_profiles
		WHERE provider_id = $1
	`, providerID)
	return scanProfile(row)
}

func (r *PgRepository) UpsertProfile(ctx context.Context, p *Profile) (*Profile, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("validate profile: %w", err)
	}

	hoursRaw, err := workingHoursToJSON(p.WorkingHours)
	if err != nil {
		return nil, err
	}
	breaksRaw, err := breaksToJSON(p.Breaks)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO availability_profiles (
			provider_id, timezone, working_hours, break_times,
			default_buffer_minutes, max_bookings_per_slot,
			min_advance_hours, max_advance_days, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		ON CONFLICT (provider_id) DO UPDATE SET
			timezone = EXCLUDED.timezone,
			working_hours = EXCLUDED.working_hours,
			break_times = EXCLUDED.break_times,
			default_buffer_minutes = EXCLUDED.default_buffer_minutes,
			max_bookings_per_slot = EXCLUDED.max_bookings_per_slot,
			min_advance_hours = EXCLUDED.min_advance_hours,
			max_advance_days = EXCLUDED.max_advance_days,
			updated_at = now()
		RETURNING provider_id, timezone, working_hours, break_times,
		          default_buffer_minutes, max_bookings_per_slot,
		          min_advance_hours, max_advance_days, created_at, updated_at
	`, p.ProviderID, p.Timezone, hoursRaw, breaksRaw,
		p.DefaultBufferMinutes, p.MaxBookingsPerSlot, p.MinAdvanceHours, p.MaxAdvanceDays)
	return scanProfile(row)
}

func (r *PgRepository) GetService(ctx context.Context, serviceID uuid.UUID) (*Service, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, provider_id, title, price_cents, duration_minutes,
		       buffer_minutes, active, created_at, updated_at
		FROM services
		WHERE id = $1
	`, serviceID)
	return scanService(row)
}

func (r *PgRepository) ListServices(ctx context.Context, providerID uuid.UUID) ([]Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, provider_id, title, price_cents, duration_minutes,
		       buffer_minutes, active, created_at, updated_at
		FROM services
		WHERE provider_id = $1
		ORDER BY created_at
	`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, *s)
	}
	return services, rows.Err()
}

func (r *PgRepository) GetBlockedPeriods(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]BlockedPeriod, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, provider_id, start_time, end_time, title, block_type, recurrence, created_at, updated_at
		FROM blocked_periods
		WHERE provider_id = $1
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
	`, providerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var periods []BlockedPeriod
	for rows.Next() {
		var bp BlockedPeriod
		if err := rows.Scan(&bp.ID, &bp.ProviderID, &bp.Start, &bp.End, &bp.Title, &bp.BlockType, &bp.Recurrence, &bp.CreatedAt, &bp.UpdatedAt); err != nil {
			return nil, err
		}
		periods = append(periods, bp)
	}
	return periods, rows.Err()
}

func (r *PgRepository) CreateBlockedPeriod(ctx context.Context, bp *BlockedPeriod) (*BlockedPeriod, error) {
	if err := bp.Validate(); err != nil {
		return nil, fmt.Errorf("validate blocked period: %w", err)
	}

	id := bp.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO blocked_periods (id, provider_id, start_time, end_time, title, block_type, recurrence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING id, provider_id, start_time, end_time, title, block_type, recurrence, created_at, updated_at
	`, id, bp.ProviderID, bp.Start, bp.End, bp.Title, bp.BlockType, bp.Recurrence)

	var created BlockedPeriod
	if err := row.Scan(&created.ID, &created.ProviderID, &created.Start, &created.End, &created.Title, &created.BlockType, &created.Recurrence, &created.CreatedAt, &created.UpdatedAt); err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *PgRepository) DeleteBlockedPeriod(ctx context.Context, providerID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM blocked_periods
		WHERE id = $1 AND provider_id = $2
	`, id, providerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBlockedPeriodNotFound
	}
	return nil
}

func (r *PgRepository) GetActiveBookings(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]BookingRef, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time, service_id
		FROM bookings
		WHERE provider_id = $1
		  AND start_time >= $2
		  AND start_time < $3
		  AND status IN ('pending', 'confirmed')
		ORDER BY start_time
	`, providerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []BookingRef
	for rows.Next() {
		var ref BookingRef
		if err := rows.Scan(&ref.StartUTC, &ref.ServiceID); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (r *PgRepository) CountActiveBookings(ctx context.Context, providerID uuid.UUID, from, to time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM bookings
		WHERE provider_id = $1
		  AND start_time >= $2
		  AND start_time < $3
		  AND status IN ('pending', 'confirmed')
	`, providerID, from, to).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
