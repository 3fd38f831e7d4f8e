package availability

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jbxxnn/usebinda/internal/timeutil"
)

type BlockType string

const (
	BlockManual      BlockType = "manual"
	BlockHoliday     BlockType = "holiday"
	BlockVacation    BlockType = "vacation"
	BlockMaintenance BlockType = "maintenance"
)

// DayHours is a provider's recurring working window for one weekday,
// expressed as wall-clock "HH:MM" strings in the provider's timezone.
type DayHours struct {
	Start   string
	End     string
	Enabled bool
}

// BreakWindow is a recurring wall-clock unavailability window. Days is
// indexed by time.Weekday.
type BreakWindow struct {
	Start string
	End   string
	Days  [7]bool
}

// Profile holds a provider's availability configuration. There is exactly
// one per provider; it is created lazily with defaults on first access and
// never deleted. WorkingHours is indexed by time.Weekday.
type Profile struct {
	ProviderID           uuid.UUID
	Timezone             string
	WorkingHours         [7]DayHours
	Breaks               []BreakWindow
	DefaultBufferMinutes int
	MaxBookingsPerSlot   int
	MinAdvanceHours      int
	MaxAdvanceDays       int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// DefaultProfile returns the profile materialized for providers that have
// never configured availability: Mon-Fri 09:00-17:00, weekends off.
func DefaultProfile(providerID uuid.UUID) *Profile {
	p := &Profile{
		ProviderID:           providerID,
		Timezone:             "America/New_York",
		DefaultBufferMinutes: 30,
		MaxBookingsPerSlot:   1,
		MinAdvanceHours:      2,
		MaxAdvanceDays:       30,
	}
	for d := time.Monday; d <= time.Friday; d++ {
		p.WorkingHours[d] = DayHours{Start: "09:00", End: "17:00", Enabled: true}
	}
	p.WorkingHours[time.Saturday] = DayHours{Start: "10:00", End: "15:00"}
	p.WorkingHours[time.Sunday] = DayHours{Start: "10:00", End: "15:00"}
	return p
}

// Validate checks the structural invariants: a valid IANA timezone and
// start < end for every enabled working day and every break.
func (p *Profile) Validate() error {
	if _, err := timeutil.LoadLocation(p.Timezone); err != nil {
		return err
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		wh := p.WorkingHours[d]
		if !wh.Enabled {
			continue
		}
		start, err := timeutil.ParseClock(wh.Start)
		if err != nil {
			return fmt.Errorf("working hours %s: %w", d, err)
		}
		end, err := timeutil.ParseClock(wh.End)
		if err != nil {
			return fmt.Errorf("working hours %s: %w", d, err)
		}
		if start >= end {
			return fmt.Errorf("working hours %s: start %s must be before end %s", d, wh.Start, wh.End)
		}
	}
	for i, br := range p.Breaks {
		start, err := timeutil.ParseClock(br.Start)
		if err != nil {
			return fmt.Errorf("break %d: %w", i, err)
		}
		end, err := timeutil.ParseClock(br.End)
		if err != nil {
			return fmt.Errorf("break %d: %w", i, err)
		}
		if start >= end {
			return fmt.Errorf("break %d: start %s must be before end %s", i, br.Start, br.End)
		}
	}
	if p.MaxBookingsPerSlot < 1 {
		return fmt.Errorf("max bookings per slot must be at least 1, got %d", p.MaxBookingsPerSlot)
	}
	return nil
}

// Location resolves the profile's timezone. Profiles are validated on
// write, so failure here indicates stored data corruption.
func (p *Profile) Location() (*time.Location, error) {
	return timeutil.LoadLocation(p.Timezone)
}

// BlockedPeriod is an explicit one-off unavailability range stored in UTC.
// Its lifecycle is independent from bookings.
type BlockedPeriod struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	Start      time.Time
	End        time.Time
	Title      string
	BlockType  BlockType
	Recurrence *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (b *BlockedPeriod) Validate() error {
	if !b.Start.Before(b.End) {
		return fmt.Errorf("blocked period start %s must be before end %s", b.Start, b.End)
	}
	switch b.BlockType {
	case BlockManual, BlockHoliday, BlockVacation, BlockMaintenance:
		return nil
	default:
		return fmt.Errorf("unknown block type %q", b.BlockType)
	}
}

// Service is a bookable offering. BufferMinutes, when positive, overrides
// the profile's default buffer for slot-length calculation.
type Service struct {
	ID              uuid.UUID
	ProviderID      uuid.UUID
	Title           string
	PriceCents      int
	DurationMinutes int
	BufferMinutes   int
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EffectiveBuffer returns the buffer applied after this service, falling
// back to the profile default when the service carries no override.
func (s *Service) EffectiveBuffer(p *Profile) int {
	if s.BufferMinutes > 0 {
		return s.BufferMinutes
	}
	return p.DefaultBufferMinutes
}

// TimeSlot is an ephemeral candidate booking window. Start and End are
// UTC instants; End-Start is always service duration plus effective buffer.
type TimeSlot struct {
	Start     time.Time
	End       time.Time
	Available bool
}

// BookingRef is the slice of a booking the engine needs for conflict
// checks: its stored UTC start instant and the service it was made for.
type BookingRef struct {
	StartUTC  time.Time
	ServiceID uuid.UUID
}
