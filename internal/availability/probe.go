package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jbxxnn/usebinda/internal/timeutil"
)

// HasAvailability answers "does this date have any open slot" without
// enumerating slots, so a calendar of many future dates can be filtered
// cheaply. It trades exactness for a constant number of checks: the final
// capacity heuristic ignores break-time subtraction and per-booking
// duration, so it can report availability for a date the precise generator
// would show as fully booked. That over-optimism is deliberate and is
// corrected once the customer drills into the date and ComputeSlots runs.
func (e *Engine) HasAvailability(ctx context.Context, providerID, serviceID uuid.UUID, date Date) (bool, error) {
	dc, err := e.resolveDay(ctx, providerID, serviceID, date)
	if err != nil {
		return false, err
	}
	if !dc.workDay {
		return false, nil
	}

	// Past dates are out; today stays a candidate since partial-day
	// availability is legitimate.
	now := e.now().In(dc.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, dc.loc)
	dayStart := time.Date(date.Year, date.Month, date.Day, 0, 0, 0, 0, dc.loc)
	if dayStart.Before(today) {
		return false, nil
	}

	// A service that cannot physically fit in the working window needs no
	// further inspection.
	span := dc.endMinutes - dc.startMinutes
	if dc.slotMinutes > span {
		return false, nil
	}

	windowStart := timeutil.ToUTC(date.Year, date.Month, date.Day, dc.startMinutes/60, dc.startMinutes%60, dc.loc)
	windowEnd := timeutil.ToUTC(date.Year, date.Month, date.Day, dc.endMinutes/60, dc.endMinutes%60, dc.loc)

	blocked, err := e.repo.GetBlockedPeriods(ctx, providerID, windowStart, windowEnd)
	if err != nil {
		return false, fmt.Errorf("load blocked periods: %w", err)
	}
	if entireWindowBlocked(blocked, windowStart, windowEnd) {
		return false, nil
	}

	count, err := e.repo.CountActiveBookings(ctx, providerID,
		timeutil.ToUTC(date.Year, date.Month, date.Day, 0, 0, dc.loc),
		timeutil.ToUTC(date.Year, date.Month, date.Day+1, 0, 0, dc.loc))
	if err != nil {
		return false, fmt.Errorf("count active bookings: %w", err)
	}

	// Relaxed capacity heuristic: fewer bookings than candidate starts
	// means there is likely an opening.
	maxPossibleSlots := span / generationIntervalMinutes
	return count < maxPossibleSlots, nil
}

// entireWindowBlocked reports whether the union of the blocked periods
// covers [windowStart, windowEnd) with no gap. Sorting by start and
// sweeping forward, any period starting past the covered-until point
// exposes a gap; otherwise coverage advances until it reaches the window
// end.
func entireWindowBlocked(blocked []BlockedPeriod, windowStart, windowEnd time.Time) bool {
	if len(blocked) == 0 {
		return false
	}

	sorted := make([]BlockedPeriod, len(blocked))
	copy(sorted, blocked)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	coveredUntil := windowStart
	for _, bp := range sorted {
		if bp.Start.After(coveredUntil) {
			return false
		}
		if bp.End.After(coveredUntil) {
			coveredUntil = bp.End
		}
		if !coveredUntil.Before(windowEnd) {
			return true
		}
	}
	return !coveredUntil.Before(windowEnd)
}
