package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jbxxnn/usebinda/internal/timeutil"
)

// GenerationInterval is the fixed step at which candidate slot starts are
// enumerated within a day. It is independent of slot duration, so candidate
// windows overlap and a customer effectively picks any aligned start whose
// window fits and is free.
const GenerationInterval = 15 * time.Minute

const generationIntervalMinutes = 15

var (
	ErrServiceInactive = errors.New("service is not active")

	// ErrSlotUnavailable is returned by ValidateSlot when the requested
	// start fails any availability check.
	ErrSlotUnavailable = errors.New("slot not available")

	// ErrSlotOffGrid rejects starts that are not aligned to the
	// generation grid. Capacity counting keys on exact start-instant
	// equality, so the write path must keep every stored start on the
	// grid or later capacity checks would never see the booking.
	ErrSlotOffGrid = errors.New("slot start is not aligned to the booking grid")

	ErrTooSoon     = errors.New("slot start violates the minimum advance-booking window")
	ErrTooFarAhead = errors.New("slot start is beyond the maximum advance-booking window")
)

// Date is a calendar date, interpreted in the provider's timezone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses "YYYY-MM-DD".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// AddDays returns the date n days later (calendar arithmetic).
func (d Date) AddDays(n int) Date {
	t := time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC)
	return DateOf(t)
}

// Weekday returns the weekday of this date. A calendar date has the same
// weekday in every timezone.
func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Weekday()
}

// Engine computes slot availability from the constraint sources. It holds
// no mutable state; every computation is a pure function of inputs fetched
// fresh from the repository.
type Engine struct {
	repo Repository

	// now is replaceable in tests.
	now func() time.Time
}

func NewEngine(repo Repository) *Engine {
	return &Engine{
		repo: repo,
		now:  time.Now,
	}
}

// dayContext is everything resolved once per provider+service+date before
// slots are generated or probed.
type dayContext struct {
	profile      *Profile
	service      *Service
	loc          *time.Location
	hours        DayHours
	workDay      bool
	startMinutes int
	endMinutes   int
	slotMinutes  int
	breaks       []breakMinutes
}

type breakMinutes struct {
	start int
	end   int
}

// resolveDay loads the profile and service and precomputes the wall-clock
// working window for the date's weekday. A provider without a profile gets
// the lazy defaults rather than an error; an unknown service is a caller
// bug and is reported as one.
func (e *Engine) resolveDay(ctx context.Context, providerID, serviceID uuid.UUID, date Date) (*dayContext, error) {
	profile, err := e.repo.GetProfile(ctx, providerID)
	if errors.Is(err, ErrProfileNotFound) {
		profile = DefaultProfile(providerID)
	} else if err != nil {
		return nil, fmt.Errorf("load availability profile: %w", err)
	}

	service, err := e.repo.GetService(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("load service: %w", err)
	}
	if !service.Active {
		return nil, ErrServiceInactive
	}

	loc, err := profile.Location()
	if err != nil {
		return nil, fmt.Errorf("resolve provider timezone: %w", err)
	}

	dc := &dayContext{
		profile:     profile,
		service:     service,
		loc:         loc,
		hours:       profile.WorkingHours[date.Weekday()],
		slotMinutes: service.DurationMinutes + service.EffectiveBuffer(profile),
	}
	if !dc.hours.Enabled {
		return dc, nil
	}
	dc.workDay = true

	if dc.startMinutes, err = timeutil.ParseClock(dc.hours.Start); err != nil {
		return nil, fmt.Errorf("working hours for %s: %w", date.Weekday(), err)
	}
	if dc.endMinutes, err = timeutil.ParseClock(dc.hours.End); err != nil {
		return nil, fmt.Errorf("working hours for %s: %w", date.Weekday(), err)
	}

	weekday := date.Weekday()
	for _, br := range profile.Breaks {
		if !br.Days[weekday] {
			continue
		}
		bs, err := timeutil.ParseClock(br.Start)
		if err != nil {
			return nil, fmt.Errorf("break window: %w", err)
		}
		be, err := timeutil.ParseClock(br.End)
		if err != nil {
			return nil, fmt.Errorf("break window: %w", err)
		}
		dc.breaks = append(dc.breaks, breakMinutes{start: bs, end: be})
	}

	return dc, nil
}

// ComputeSlots produces the full ordered candidate sequence for one
// calendar date, each with an availability verdict. Callers filter on
// Available when presenting choices; the all-unavailable case is a
// legitimate non-empty result (a fully blocked day).
func (e *Engine) ComputeSlots(ctx context.Context, providerID, serviceID uuid.UUID, date Date) ([]TimeSlot, error) {
	dc, err := e.resolveDay(ctx, providerID, serviceID, date)
	if err != nil {
		return nil, err
	}
	if !dc.workDay {
		return []TimeSlot{}, nil
	}

	// Fetch day-scoped constraints once. The range covers the provider's
	// whole local day so blocks and bookings near midnight are not missed.
	dayStart := timeutil.ToUTC(date.Year, date.Month, date.Day, 0, 0, dc.loc)
	dayEnd := timeutil.ToUTC(date.Year, date.Month, date.Day+1, 0, 0, dc.loc)

	blocked, err := e.repo.GetBlockedPeriods(ctx, providerID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("load blocked periods: %w", err)
	}
	bookings, err := e.repo.GetActiveBookings(ctx, providerID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("load active bookings: %w", err)
	}

	now := e.now()
	slots := make([]TimeSlot, 0, (dc.endMinutes-dc.startMinutes)/generationIntervalMinutes)

	for cur := dc.startMinutes; cur < dc.endMinutes; cur += generationIntervalMinutes {
		endMin := cur + dc.slotMinutes
		if endMin > dc.endMinutes {
			continue
		}

		start := timeutil.ToUTC(date.Year, date.Month, date.Day, cur/60, cur%60, dc.loc)
		end := start.Add(time.Duration(dc.slotMinutes) * time.Minute)

		slots = append(slots, TimeSlot{
			Start:     start,
			End:       end,
			Available: e.slotAvailable(dc, now, start, end, cur, endMin, blocked, bookings),
		})
	}

	return slots, nil
}

// slotAvailable evaluates the conjunctive availability checks for one
// candidate. All checks must pass; evaluation order only affects which
// check trips first, never the verdict.
func (e *Engine) slotAvailable(dc *dayContext, now, start, end time.Time, startMin, endMin int, blocked []BlockedPeriod, bookings []BookingRef) bool {
	// Past slots are never bookable, even earlier today.
	if !start.After(now) {
		return false
	}

	// Breaks are timezone-naive recurring rules, so the comparison happens
	// in wall-clock minute-of-day space rather than UTC.
	for _, br := range dc.breaks {
		if timeutil.MinutesOverlap(startMin, endMin, br.start, br.end) {
			return false
		}
	}

	for _, bp := range blocked {
		if timeutil.Overlaps(start, end, bp.Start, bp.End) {
			return false
		}
	}

	// Capacity counts bookings at this exact start instant. Slot starts
	// are the canonical booking key; booking creation enforces alignment
	// to the generation grid so off-grid starts cannot slip past this.
	count := 0
	for _, b := range bookings {
		if b.StartUTC.Equal(start) {
			count++
		}
	}
	return count < dc.profile.MaxBookingsPerSlot
}

// ValidateSlot re-runs the availability checks for one chosen start
// instant. The booking-creation path calls this immediately before commit,
// under the per-slot lock, to close the read-then-write race.
func (e *Engine) ValidateSlot(ctx context.Context, providerID, serviceID uuid.UUID, start time.Time) error {
	start = start.UTC()

	// Resolve the date in the provider's timezone; a UTC instant can land
	// on a different local calendar day.
	profile, err := e.repo.GetProfile(ctx, providerID)
	if errors.Is(err, ErrProfileNotFound) {
		profile = DefaultProfile(providerID)
	} else if err != nil {
		return fmt.Errorf("load availability profile: %w", err)
	}
	loc, err := profile.Location()
	if err != nil {
		return fmt.Errorf("resolve provider timezone: %w", err)
	}

	date := DateOf(start.In(loc))
	dc, err := e.resolveDay(ctx, providerID, serviceID, date)
	if err != nil {
		return err
	}
	if !dc.workDay {
		return fmt.Errorf("%w: provider does not work on %s", ErrSlotUnavailable, date.Weekday())
	}

	local := start.In(dc.loc)
	if local.Second() != 0 || local.Nanosecond() != 0 {
		return ErrSlotOffGrid
	}
	startMin := local.Hour()*60 + local.Minute()
	endMin := startMin + dc.slotMinutes
	if startMin < dc.startMinutes || endMin > dc.endMinutes {
		return fmt.Errorf("%w: outside working hours", ErrSlotUnavailable)
	}
	if (startMin-dc.startMinutes)%generationIntervalMinutes != 0 {
		return ErrSlotOffGrid
	}

	// Advance-booking policy applies only here, on the write path; the
	// read-path generator keeps showing the full day.
	now := e.now()
	if profile.MinAdvanceHours > 0 && start.Before(now.Add(time.Duration(profile.MinAdvanceHours)*time.Hour)) {
		return ErrTooSoon
	}
	if profile.MaxAdvanceDays > 0 && start.After(now.AddDate(0, 0, profile.MaxAdvanceDays)) {
		return ErrTooFarAhead
	}

	end := start.Add(time.Duration(dc.slotMinutes) * time.Minute)

	blocked, err := e.repo.GetBlockedPeriods(ctx, providerID, start, end)
	if err != nil {
		return fmt.Errorf("load blocked periods: %w", err)
	}
	bookings, err := e.repo.GetActiveBookings(ctx, providerID, start, start.Add(time.Minute))
	if err != nil {
		return fmt.Errorf("load active bookings: %w", err)
	}

	if !e.slotAvailable(dc, now, start, end, startMin, endMin, blocked, bookings) {
		return ErrSlotUnavailable
	}
	return nil
}
