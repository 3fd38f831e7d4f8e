package availability

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jbxxnn/usebinda/internal/timeutil"
)

// testNow is a Tuesday; the date most tests generate slots for is the
// following Monday, 2026-09-07, in America/New_York (EDT, UTC-4).
var (
	testNow        = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	testMonday     = Date{Year: 2026, Month: time.September, Day: 7}
	testProviderID = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	testServiceID  = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

type fakeRepo struct {
	profile  *Profile
	service  *Service
	blocked  []BlockedPeriod
	bookings []BookingRef

	profileErr  error
	serviceErr  error
	blockedErr  error
	bookingsErr error
}

func (f *fakeRepo) GetProfile(ctx context.Context, providerID uuid.UUID) (*Profile, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	if f.profile == nil {
		return nil, ErrProfileNotFound
	}
	return f.profile, nil
}

func (f *fakeRepo) GetService(ctx context.Context, serviceID uuid.UUID) (*Service, error) {
	if f.serviceErr != nil {
		return nil, f.serviceErr
	}
	if f.service == nil || f.service.ID != serviceID {
		return nil, ErrServiceNotFound
	}
	return f.service, nil
}

func (f *fakeRepo) GetBlockedPeriods(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]BlockedPeriod, error) {
	if f.blockedErr != nil {
		return nil, f.blockedErr
	}
	var out []BlockedPeriod
	for _, bp := range f.blocked {
		if timeutil.Overlaps(bp.Start, bp.End, from, to) {
			out = append(out, bp)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetActiveBookings(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]BookingRef, error) {
	if f.bookingsErr != nil {
		return nil, f.bookingsErr
	}
	var out []BookingRef
	for _, b := range f.bookings {
		if !b.StartUTC.Before(from) && b.StartUTC.Before(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeRepo) CountActiveBookings(ctx context.Context, providerID uuid.UUID, from, to time.Time) (int, error) {
	refs, err := f.GetActiveBookings(ctx, providerID, from, to)
	return len(refs), err
}

// newTestProfile works Mon-Fri 09:00-17:00 New York with no breaks and no
// buffer, so slot arithmetic in tests stays easy to follow.
func newTestProfile() *Profile {
	p := &Profile{
		ProviderID:         testProviderID,
		Timezone:           "America/New_York",
		MaxBookingsPerSlot: 1,
		MaxAdvanceDays:     365,
	}
	for d := time.Monday; d <= time.Friday; d++ {
		p.WorkingHours[d] = DayHours{Start: "09:00", End: "17:00", Enabled: true}
	}
	return p
}

func newTestService(duration, buffer int) *Service {
	return &Service{
		ID:              testServiceID,
		ProviderID:      testProviderID,
		Title:           "Deep clean",
		DurationMinutes: duration,
		BufferMinutes:   buffer,
		Active:          true,
	}
}

func newTestEngine(repo Repository) *Engine {
	e := NewEngine(repo)
	e.now = func() time.Time { return testNow }
	return e
}

// nyTime builds a UTC instant from New York wall-clock components.
func nyTime(year int, month time.Month, day, hour, minute int) time.Time {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
	return timeutil.ToUTC(year, month, day, hour, minute, loc)
}

func weekdays() [7]bool {
	var days [7]bool
	for d := time.Monday; d <= time.Friday; d++ {
		days[d] = true
	}
	return days
}

var _ Repository = (*fakeRepo)(nil)
