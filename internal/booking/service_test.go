package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jbxxnn/usebinda/internal/availability"
	redisclient "github.com/jbxxnn/usebinda/internal/redis"
)

var (
	testProviderID = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	testServiceID  = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

type fakeBookingRepo struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*Booking

	lastLimit  int
	lastOffset int
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: map[uuid.UUID]*Booking{}}
}

func (f *fakeBookingRepo) Create(ctx context.Context, b *Booking) (*Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *b
	stored.CreatedAt = time.Now().UTC()
	stored.UpdatedAt = stored.CreatedAt
	f.bookings[stored.ID] = &stored
	out := stored
	return &out, nil
}

func (f *fakeBookingRepo) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	out := *b
	return &out, nil
}

func (f *fakeBookingRepo) ListByProvider(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit, f.lastOffset = limit, offset
	var out []Booking
	for _, b := range f.bookings {
		if b.ProviderID == providerID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeBookingRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok || b.Status != from {
		return nil, ErrBookingNotFound
	}
	b.Status = to
	b.UpdatedAt = time.Now().UTC()
	out := *b
	return &out, nil
}

func (f *fakeBookingRepo) Cancel(ctx context.Context, id uuid.UUID, reason string, at time.Time) (*Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok || !b.Status.Active() {
		return nil, ErrBookingNotFound
	}
	b.Status = StatusCancelled
	b.CancellationReason = &reason
	b.CancelledAt = &at
	b.UpdatedAt = at
	out := *b
	return &out, nil
}

func (f *fakeBookingRepo) Reschedule(ctx context.Context, id uuid.UUID, newStart time.Time, origin uuid.UUID) (*Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok || !b.Status.Active() {
		return nil, ErrBookingNotFound
	}
	b.StartTime = newStart
	b.RescheduleCount++
	if b.RescheduledFrom == nil {
		b.RescheduledFrom = &origin
	}
	b.UpdatedAt = time.Now().UTC()
	out := *b
	return &out, nil
}

func (f *fakeBookingRepo) FindStalePending(ctx context.Context, cutoff time.Time) ([]Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Booking
	for _, b := range f.bookings {
		if b.Status == StatusPending && b.CreatedAt.Before(cutoff) {
			out = append(out, *b)
		}
	}
	return out, nil
}

// fakeAvailRepo backs a real availability engine with in-memory data.
type fakeAvailRepo struct {
	profile  *availability.Profile
	service  *availability.Service
	blocked  []availability.BlockedPeriod
	bookings []availability.BookingRef
}

func (f *fakeAvailRepo) GetProfile(ctx context.Context, providerID uuid.UUID) (*availability.Profile, error) {
	if f.profile == nil {
		return nil, availability.ErrProfileNotFound
	}
	return f.profile, nil
}

func (f *fakeAvailRepo) GetService(ctx context.Context, serviceID uuid.UUID) (*availability.Service, error) {
	if f.service == nil {
		return nil, availability.ErrServiceNotFound
	}
	return f.service, nil
}

func (f *fakeAvailRepo) GetBlockedPeriods(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]availability.BlockedPeriod, error) {
	return f.blocked, nil
}

func (f *fakeAvailRepo) GetActiveBookings(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]availability.BookingRef, error) {
	var out []availability.BookingRef
	for _, b := range f.bookings {
		if !b.StartUTC.Before(from) && b.StartUTC.Before(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeAvailRepo) CountActiveBookings(ctx context.Context, providerID uuid.UUID, from, to time.Time) (int, error) {
	refs, _ := f.GetActiveBookings(ctx, providerID, from, to)
	return len(refs), nil
}

type fakeLocker struct {
	busy  bool
	calls int
}

func (f *fakeLocker) WithSlotLock(ctx context.Context, providerID uuid.UUID, slotStart time.Time, fn func(ctx context.Context) error) error {
	f.calls++
	if f.busy {
		return redisclient.ErrLockNotAcquired
	}
	return fn(ctx)
}

// allDayProfile keeps booking tests independent of the wall clock: every
// day is a working day and the advance window spans a year.
func allDayProfile() *availability.Profile {
	p := &availability.Profile{
		ProviderID:         testProviderID,
		Timezone:           "UTC",
		MaxBookingsPerSlot: 1,
		MaxAdvanceDays:     365,
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		p.WorkingHours[d] = availability.DayHours{Start: "00:00", End: "23:00", Enabled: true}
	}
	return p
}

// futureSlot returns 10:00 UTC n days from now, always on the generation
// grid and inside the all-day working window.
func futureSlot(n int) time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 10, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

type fixture struct {
	svc    *Service
	repo   *fakeBookingRepo
	avail  *fakeAvailRepo
	locker *fakeLocker
}

func newFixture() *fixture {
	avail := &fakeAvailRepo{
		profile: allDayProfile(),
		service: &availability.Service{
			ID:              testServiceID,
			ProviderID:      testProviderID,
			Title:           "Deep clean",
			DurationMinutes: 60,
			Active:          true,
		},
	}
	repo := newFakeBookingRepo()
	locker := &fakeLocker{}
	return &fixture{
		svc:    NewService(repo, availability.NewEngine(avail), locker, 2),
		repo:   repo,
		avail:  avail,
		locker: locker,
	}
}

func (f *fixture) create(t *testing.T, start time.Time) *Booking {
	t.Helper()
	b, err := f.svc.CreateBooking(context.Background(), CreateRequest{
		ServiceID:     testServiceID,
		ProviderID:    testProviderID,
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
		StartTime:     start,
	})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	return b
}

func TestCreateBooking(t *testing.T) {
	f := newFixture()
	start := futureSlot(2)

	b := f.create(t, start)
	if b.ID == uuid.Nil {
		t.Error("booking ID not assigned")
	}
	if b.Status != StatusPending {
		t.Errorf("status = %s, want pending", b.Status)
	}
	if !b.StartTime.Equal(start) {
		t.Errorf("start = %v, want %v", b.StartTime, start)
	}
	if f.locker.calls != 1 {
		t.Errorf("lock taken %d times, want 1", f.locker.calls)
	}
}

func TestCreateBooking_SlotTaken(t *testing.T) {
	f := newFixture()
	start := futureSlot(2)
	f.avail.bookings = []availability.BookingRef{{StartUTC: start, ServiceID: testServiceID}}

	_, err := f.svc.CreateBooking(context.Background(), CreateRequest{
		ServiceID: testServiceID, ProviderID: testProviderID, StartTime: start,
	})
	if !errors.Is(err, ErrSlotNoLongerAvailable) {
		t.Errorf("got %v, want ErrSlotNoLongerAvailable", err)
	}
}

func TestCreateBooking_ValidationErrorsPassThrough(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.CreateBooking(ctx, CreateRequest{
		ServiceID: testServiceID, ProviderID: testProviderID,
		StartTime: futureSlot(2).Add(5 * time.Minute),
	})
	if !errors.Is(err, availability.ErrSlotOffGrid) {
		t.Errorf("got %v, want ErrSlotOffGrid", err)
	}

	f.avail.profile.MinAdvanceHours = 24
	_, err = f.svc.CreateBooking(ctx, CreateRequest{
		ServiceID: testServiceID, ProviderID: testProviderID, StartTime: futureSlot(0),
	})
	if !errors.Is(err, availability.ErrTooSoon) {
		t.Errorf("got %v, want ErrTooSoon", err)
	}

	f.avail.profile.MinAdvanceHours = 0
	f.avail.profile.MaxAdvanceDays = 1
	_, err = f.svc.CreateBooking(ctx, CreateRequest{
		ServiceID: testServiceID, ProviderID: testProviderID, StartTime: futureSlot(10),
	})
	if !errors.Is(err, availability.ErrTooFarAhead) {
		t.Errorf("got %v, want ErrTooFarAhead", err)
	}
}

func TestCreateBooking_LockContention(t *testing.T) {
	f := newFixture()
	f.locker.busy = true

	_, err := f.svc.CreateBooking(context.Background(), CreateRequest{
		ServiceID: testServiceID, ProviderID: testProviderID, StartTime: futureSlot(2),
	})
	if !errors.Is(err, ErrSlotBeingBooked) {
		t.Errorf("got %v, want ErrSlotBeingBooked", err)
	}
	if len(f.repo.bookings) != 0 {
		t.Error("no booking should be created when the lock is held")
	}
}

func TestStatusTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("confirm then complete", func(t *testing.T) {
		f := newFixture()
		b := f.create(t, futureSlot(2))

		confirmed, err := f.svc.ConfirmBooking(ctx, b.ID)
		if err != nil {
			t.Fatalf("ConfirmBooking: %v", err)
		}
		if confirmed.Status != StatusConfirmed {
			t.Errorf("status = %s, want confirmed", confirmed.Status)
		}

		completed, err := f.svc.CompleteBooking(ctx, b.ID)
		if err != nil {
			t.Fatalf("CompleteBooking: %v", err)
		}
		if completed.Status != StatusCompleted {
			t.Errorf("status = %s, want completed", completed.Status)
		}
	})

	t.Run("confirm twice", func(t *testing.T) {
		f := newFixture()
		b := f.create(t, futureSlot(2))
		if _, err := f.svc.ConfirmBooking(ctx, b.ID); err != nil {
			t.Fatalf("ConfirmBooking: %v", err)
		}
		if _, err := f.svc.ConfirmBooking(ctx, b.ID); !errors.Is(err, ErrInvalidStatusTransition) {
			t.Errorf("got %v, want ErrInvalidStatusTransition", err)
		}
	})

	t.Run("complete pending", func(t *testing.T) {
		f := newFixture()
		b := f.create(t, futureSlot(2))
		if _, err := f.svc.CompleteBooking(ctx, b.ID); !errors.Is(err, ErrInvalidStatusTransition) {
			t.Errorf("got %v, want ErrInvalidStatusTransition", err)
		}
	})

	t.Run("unknown booking", func(t *testing.T) {
		f := newFixture()
		if _, err := f.svc.ConfirmBooking(ctx, uuid.New()); !errors.Is(err, ErrBookingNotFound) {
			t.Errorf("got %v, want ErrBookingNotFound", err)
		}
	})
}

func TestCancelBooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	b := f.create(t, futureSlot(2))

	cancelled, err := f.svc.CancelBooking(ctx, b.ID, "customer request")
	if err != nil {
		t.Fatalf("CancelBooking: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}
	if cancelled.CancellationReason == nil || *cancelled.CancellationReason != "customer request" {
		t.Errorf("reason = %v, want customer request", cancelled.CancellationReason)
	}
	if cancelled.CancelledAt == nil {
		t.Error("CancelledAt not set")
	}

	if _, err := f.svc.CancelBooking(ctx, b.ID, "again"); !errors.Is(err, ErrInvalidStatusTransition) {
		t.Errorf("cancel twice: got %v, want ErrInvalidStatusTransition", err)
	}
}

func TestRescheduleBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("moves start and records origin", func(t *testing.T) {
		f := newFixture()
		b := f.create(t, futureSlot(2))

		moved, err := f.svc.RescheduleBooking(ctx, b.ID, futureSlot(3))
		if err != nil {
			t.Fatalf("RescheduleBooking: %v", err)
		}
		if !moved.StartTime.Equal(futureSlot(3)) {
			t.Errorf("start = %v, want %v", moved.StartTime, futureSlot(3))
		}
		if moved.RescheduleCount != 1 {
			t.Errorf("count = %d, want 1", moved.RescheduleCount)
		}
		if moved.RescheduledFrom == nil || *moved.RescheduledFrom != b.ID {
			t.Errorf("origin = %v, want original booking ID", moved.RescheduledFrom)
		}

		// A second move keeps pointing at the original booking.
		again, err := f.svc.RescheduleBooking(ctx, b.ID, futureSlot(4))
		if err != nil {
			t.Fatalf("second reschedule: %v", err)
		}
		if again.RescheduleCount != 2 {
			t.Errorf("count = %d, want 2", again.RescheduleCount)
		}
		if again.RescheduledFrom == nil || *again.RescheduledFrom != b.ID {
			t.Errorf("origin drifted to %v", again.RescheduledFrom)
		}
	})

	t.Run("limit reached", func(t *testing.T) {
		f := newFixture() // maxReschedules 2
		b := f.create(t, futureSlot(2))
		for i := 3; i <= 4; i++ {
			if _, err := f.svc.RescheduleBooking(ctx, b.ID, futureSlot(i)); err != nil {
				t.Fatalf("reschedule %d: %v", i, err)
			}
		}
		if _, err := f.svc.RescheduleBooking(ctx, b.ID, futureSlot(5)); !errors.Is(err, ErrMaxReschedules) {
			t.Errorf("got %v, want ErrMaxReschedules", err)
		}
	})

	t.Run("cancelled booking", func(t *testing.T) {
		f := newFixture()
		b := f.create(t, futureSlot(2))
		if _, err := f.svc.CancelBooking(ctx, b.ID, "plans changed"); err != nil {
			t.Fatalf("CancelBooking: %v", err)
		}
		if _, err := f.svc.RescheduleBooking(ctx, b.ID, futureSlot(3)); !errors.Is(err, ErrCancelledBooking) {
			t.Errorf("got %v, want ErrCancelledBooking", err)
		}
	})

	t.Run("target slot taken", func(t *testing.T) {
		f := newFixture()
		b := f.create(t, futureSlot(2))
		f.avail.bookings = []availability.BookingRef{{StartUTC: futureSlot(3), ServiceID: testServiceID}}
		if _, err := f.svc.RescheduleBooking(ctx, b.ID, futureSlot(3)); !errors.Is(err, ErrSlotNoLongerAvailable) {
			t.Errorf("got %v, want ErrSlotNoLongerAvailable", err)
		}
	})
}

func TestListBookingsByProvider_Clamps(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	if _, err := f.svc.ListBookingsByProvider(ctx, testProviderID, 0, -5); err != nil {
		t.Fatalf("ListBookingsByProvider: %v", err)
	}
	if f.repo.lastLimit != 20 || f.repo.lastOffset != 0 {
		t.Errorf("got limit=%d offset=%d, want 20/0", f.repo.lastLimit, f.repo.lastOffset)
	}

	if _, err := f.svc.ListBookingsByProvider(ctx, testProviderID, 500, 10); err != nil {
		t.Fatalf("ListBookingsByProvider: %v", err)
	}
	if f.repo.lastLimit != 100 || f.repo.lastOffset != 10 {
		t.Errorf("got limit=%d offset=%d, want 100/10", f.repo.lastLimit, f.repo.lastOffset)
	}
}

func TestExpireStalePending(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	stale := f.create(t, futureSlot(2))
	fresh := f.create(t, futureSlot(3))

	f.repo.mu.Lock()
	f.repo.bookings[stale.ID].CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	f.repo.mu.Unlock()

	if err := f.svc.ExpireStalePending(ctx, time.Hour); err != nil {
		t.Fatalf("ExpireStalePending: %v", err)
	}

	got, err := f.svc.GetBooking(ctx, stale.ID)
	if err != nil {
		t.Fatalf("GetBooking: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("stale booking status = %s, want cancelled", got.Status)
	}
	if got.CancellationReason == nil || *got.CancellationReason != "expired" {
		t.Errorf("reason = %v, want expired", got.CancellationReason)
	}

	got, err = f.svc.GetBooking(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("GetBooking: %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("fresh booking status = %s, want pending", got.Status)
	}
}

var (
	_ Repository              = (*fakeBookingRepo)(nil)
	_ availability.Repository = (*fakeAvailRepo)(nil)
	_ redisclient.Locker      = (*fakeLocker)(nil)
)
