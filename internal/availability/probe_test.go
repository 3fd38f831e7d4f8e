package availability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestHasAvailability(t *testing.T) {
	ctx := context.Background()

	t.Run("open working day", func(t *testing.T) {
		e := newTestEngine(&fakeRepo{profile: newTestProfile(), service: newTestService(60, 0)})
		has, err := e.HasAvailability(ctx, testProviderID, testServiceID, testMonday)
		if err != nil {
			t.Fatalf("HasAvailability: %v", err)
		}
		if !has {
			t.Error("unconstrained working day should have availability")
		}
	})

	t.Run("disabled weekday", func(t *testing.T) {
		e := newTestEngine(&fakeRepo{profile: newTestProfile(), service: newTestService(60, 0)})
		has, err := e.HasAvailability(ctx, testProviderID, testServiceID, Date{Year: 2026, Month: time.September, Day: 6})
		if err != nil {
			t.Fatalf("HasAvailability: %v", err)
		}
		if has {
			t.Error("Sunday is disabled and should have no availability")
		}
	})

	t.Run("past date", func(t *testing.T) {
		e := newTestEngine(&fakeRepo{profile: newTestProfile(), service: newTestService(60, 0)})
		has, err := e.HasAvailability(ctx, testProviderID, testServiceID, Date{Year: 2026, Month: time.August, Day: 25})
		if err != nil {
			t.Fatalf("HasAvailability: %v", err)
		}
		if has {
			t.Error("past date should have no availability")
		}
	})

	t.Run("today remains a candidate", func(t *testing.T) {
		e := newTestEngine(&fakeRepo{profile: newTestProfile(), service: newTestService(60, 0)})
		has, err := e.HasAvailability(ctx, testProviderID, testServiceID, Date{Year: 2026, Month: time.September, Day: 1})
		if err != nil {
			t.Fatalf("HasAvailability: %v", err)
		}
		if !has {
			t.Error("today should not be rejected as past")
		}
	})

	t.Run("service longer than working window", func(t *testing.T) {
		e := newTestEngine(&fakeRepo{profile: newTestProfile(), service: newTestService(600, 0)})
		has, err := e.HasAvailability(ctx, testProviderID, testServiceID, testMonday)
		if err != nil {
			t.Fatalf("HasAvailability: %v", err)
		}
		if has {
			t.Error("a 10-hour service cannot fit an 8-hour window")
		}
	})

	t.Run("window fully blocked", func(t *testing.T) {
		e := newTestEngine(&fakeRepo{
			profile: newTestProfile(),
			service: newTestService(60, 0),
			blocked: []BlockedPeriod{{
				Start:     nyTime(2026, time.September, 7, 8, 0),
				End:       nyTime(2026, time.September, 7, 18, 0),
				BlockType: BlockVacation,
			}},
		})
		has, err := e.HasAvailability(ctx, testProviderID, testServiceID, testMonday)
		if err != nil {
			t.Fatalf("HasAvailability: %v", err)
		}
		if has {
			t.Error("fully blocked window should have no availability")
		}
	})

	t.Run("window partially blocked", func(t *testing.T) {
		e := newTestEngine(&fakeRepo{
			profile: newTestProfile(),
			service: newTestService(60, 0),
			blocked: []BlockedPeriod{{
				Start:     nyTime(2026, time.September, 7, 9, 0),
				End:       nyTime(2026, time.September, 7, 16, 0),
				BlockType: BlockVacation,
			}},
		})
		has, err := e.HasAvailability(ctx, testProviderID, testServiceID, testMonday)
		if err != nil {
			t.Fatalf("HasAvailability: %v", err)
		}
		if !has {
			t.Error("a gap at the end of the window should keep the date available")
		}
	})

	t.Run("capacity heuristic boundary", func(t *testing.T) {
		// 09:00-17:00 is a 480-minute span: 32 generation-interval starts.
		repo := &fakeRepo{profile: newTestProfile(), service: newTestService(60, 0)}
		e := newTestEngine(repo)

		for i := 0; i < 31; i++ {
			repo.bookings = append(repo.bookings, BookingRef{
				StartUTC:  nyTime(2026, time.September, 7, 9, 0).Add(time.Duration(i) * GenerationInterval),
				ServiceID: testServiceID,
			})
		}
		has, err := e.HasAvailability(ctx, testProviderID, testServiceID, testMonday)
		if err != nil {
			t.Fatalf("HasAvailability: %v", err)
		}
		if !has {
			t.Error("31 bookings against 32 possible starts should read as available")
		}

		repo.bookings = append(repo.bookings, BookingRef{
			StartUTC:  nyTime(2026, time.September, 7, 16, 45),
			ServiceID: testServiceID,
		})
		has, err = e.HasAvailability(ctx, testProviderID, testServiceID, testMonday)
		if err != nil {
			t.Fatalf("HasAvailability: %v", err)
		}
		if has {
			t.Error("32 bookings against 32 possible starts should read as full")
		}
	})

	t.Run("fetch errors propagate", func(t *testing.T) {
		boom := errors.New("connection reset")

		e := newTestEngine(&fakeRepo{profile: newTestProfile(), service: newTestService(60, 0), blockedErr: boom})
		if _, err := e.HasAvailability(ctx, testProviderID, testServiceID, testMonday); !errors.Is(err, boom) {
			t.Errorf("blocked fetch: got %v, want wrapped error", err)
		}

		e = newTestEngine(&fakeRepo{profile: newTestProfile(), service: newTestService(60, 0), bookingsErr: boom})
		if _, err := e.HasAvailability(ctx, testProviderID, testServiceID, testMonday); !errors.Is(err, boom) {
			t.Errorf("count fetch: got %v, want wrapped error", err)
		}
	})
}

// HasAvailability is deliberately over-optimistic: it counts bookings
// against interval starts instead of simulating slot packing.
func TestHasAvailability_OverOptimism(t *testing.T) {
	repo := &fakeRepo{profile: newTestProfile(), service: newTestService(60, 30)}
	e := newTestEngine(repo)

	// Fill every one of the 27 candidate starts a 90-minute slot allows.
	for min := 9 * 60; min+90 <= 17*60; min += 15 {
		repo.bookings = append(repo.bookings, BookingRef{
			StartUTC:  nyTime(2026, time.September, 7, min/60, min%60),
			ServiceID: testServiceID,
		})
	}

	slots, err := e.ComputeSlots(context.Background(), testProviderID, testServiceID, testMonday)
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}
	for _, s := range slots {
		if s.Available {
			t.Fatalf("precise generation should show the day fully booked, slot %v open", s.Start)
		}
	}

	has, err := e.HasAvailability(context.Background(), testProviderID, testServiceID, testMonday)
	if err != nil {
		t.Fatalf("HasAvailability: %v", err)
	}
	if !has {
		t.Error("probe should stay optimistic when bookings are below the interval count")
	}
}

func TestEntireWindowBlocked(t *testing.T) {
	ws := time.Date(2026, 9, 7, 13, 0, 0, 0, time.UTC)
	we := time.Date(2026, 9, 7, 21, 0, 0, 0, time.UTC)

	bp := func(startHour, startMin, endHour, endMin int) BlockedPeriod {
		return BlockedPeriod{
			Start: time.Date(2026, 9, 7, startHour, startMin, 0, 0, time.UTC),
			End:   time.Date(2026, 9, 7, endHour, endMin, 0, 0, time.UTC),
		}
	}

	tests := []struct {
		name    string
		blocked []BlockedPeriod
		want    bool
	}{
		{"no blocks", nil, false},
		{"exact cover", []BlockedPeriod{bp(13, 0, 21, 0)}, true},
		{"envelops window", []BlockedPeriod{bp(12, 0, 22, 0)}, true},
		{"adjacent pieces", []BlockedPeriod{bp(13, 0, 17, 0), bp(17, 0, 21, 0)}, true},
		{"overlapping pieces", []BlockedPeriod{bp(13, 0, 18, 0), bp(16, 0, 21, 0)}, true},
		{"unsorted input", []BlockedPeriod{bp(17, 0, 21, 0), bp(13, 0, 17, 0)}, true},
		{"one-minute gap", []BlockedPeriod{bp(13, 0, 16, 59), bp(17, 0, 21, 0)}, false},
		{"starts after window start", []BlockedPeriod{bp(13, 30, 21, 0)}, false},
		{"stops short of window end", []BlockedPeriod{bp(13, 0, 20, 45)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := entireWindowBlocked(tt.blocked, ws, we); got != tt.want {
				t.Errorf("entireWindowBlocked = %v, want %v", got, tt.want)
			}
		})
	}
}
