package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ScanMode selects the per-date strategy for a date-range scan. The two
// strategies are explicit and never silently blurred: fast accepts the
// probe's documented over-optimism, precise runs full slot generation.
type ScanMode string

const (
	ScanFast    ScanMode = "fast"
	ScanPrecise ScanMode = "precise"
)

var ErrUnknownScanMode = errors.New("unknown scan mode")

func ParseScanMode(s string) (ScanMode, error) {
	switch ScanMode(s) {
	case ScanFast, ScanPrecise:
		return ScanMode(s), nil
	case "":
		return ScanFast, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownScanMode, s)
	}
}

const defaultDaysAhead = 30

// ComputeAvailableDates returns the subset of the next daysAhead dates
// (starting today in the provider's timezone) that have at least one open
// slot. Per-date inputs have no cross-date dependency, so all dates are
// checked concurrently; the result is sorted ascending regardless of
// completion order. The horizon is clamped by the profile's maximum
// advance-booking window.
func (e *Engine) ComputeAvailableDates(ctx context.Context, providerID, serviceID uuid.UUID, daysAhead int, mode ScanMode) ([]Date, error) {
	switch mode {
	case ScanFast, ScanPrecise:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScanMode, mode)
	}

	profile, err := e.repo.GetProfile(ctx, providerID)
	if errors.Is(err, ErrProfileNotFound) {
		profile = DefaultProfile(providerID)
	} else if err != nil {
		return nil, fmt.Errorf("load availability profile: %w", err)
	}
	loc, err := profile.Location()
	if err != nil {
		return nil, fmt.Errorf("resolve provider timezone: %w", err)
	}

	if daysAhead <= 0 {
		daysAhead = defaultDaysAhead
	}
	if profile.MaxAdvanceDays > 0 && daysAhead > profile.MaxAdvanceDays {
		daysAhead = profile.MaxAdvanceDays
	}

	today := DateOf(e.now().In(loc))

	open := make([]bool, daysAhead)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < daysAhead; i++ {
		g.Go(func() error {
			date := today.AddDays(i)
			has, err := e.dateHasAvailability(gctx, providerID, serviceID, date, mode)
			if err != nil {
				return fmt.Errorf("scan %s: %w", date, err)
			}
			open[i] = has
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dates := make([]Date, 0, daysAhead)
	for i, has := range open {
		if has {
			dates = append(dates, today.AddDays(i))
		}
	}
	return dates, nil
}

func (e *Engine) dateHasAvailability(ctx context.Context, providerID, serviceID uuid.UUID, date Date, mode ScanMode) (bool, error) {
	if mode == ScanFast {
		return e.HasAvailability(ctx, providerID, serviceID, date)
	}

	slots, err := e.ComputeSlots(ctx, providerID, serviceID, date)
	if err != nil {
		return false, err
	}
	for _, s := range slots {
		if s.Available {
			return true, nil
		}
	}
	return false, nil
}

// UTCInstant returns midnight of the date in the given location as a UTC
// instant, for callers that serialize scan results.
func (d Date) UTCInstant(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc).UTC()
}
