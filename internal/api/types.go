package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jbxxnn/usebinda/internal/availability"
	"github.com/jbxxnn/usebinda/internal/booking"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type TimeSlotResponse struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	StartLocal string    `json:"start_local,omitempty"`
	EndLocal   string    `json:"end_local,omitempty"`
	Available  bool      `json:"available"`
}

// DayHoursPayload mirrors the stored working-hours shape: wall-clock HH:MM
// strings keyed by lowercase day name in the API body.
type DayHoursPayload struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	Enabled bool   `json:"enabled"`
}

type BreakPayload struct {
	Start string   `json:"start"`
	End   string   `json:"end"`
	Days  []string `json:"days"`
}

type ProfilePayload struct {
	Timezone             string                     `json:"timezone"`
	WorkingHours         map[string]DayHoursPayload `json:"working_hours"`
	BreakTimes           []BreakPayload             `json:"break_times"`
	DefaultBufferMinutes int                        `json:"default_buffer_minutes"`
	MaxBookingsPerSlot   int                        `json:"max_bookings_per_slot"`
	MinAdvanceHours      int                        `json:"min_advance_booking_hours"`
	MaxAdvanceDays       int                        `json:"max_advance_booking_days"`
}

type BlockedPeriodRequest struct {
	Start     time.Time `json:"start_time"`
	End       time.Time `json:"end_time"`
	Title     string    `json:"title"`
	BlockType string    `json:"block_type"`
}

type BlockedPeriodResponse struct {
	ID        uuid.UUID `json:"id"`
	Start     time.Time `json:"start_time"`
	End       time.Time `json:"end_time"`
	Title     string    `json:"title"`
	BlockType string    `json:"block_type"`
}

type CreateBookingRequest struct {
	ServiceID     string    `json:"service_id"`
	ProviderID    string    `json:"provider_id"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	CustomerPhone string    `json:"customer_phone"`
	StartTime     time.Time `json:"start_time"`
	Notes         *string   `json:"notes,omitempty"`
}

type RescheduleBookingRequest struct {
	NewStartTime time.Time `json:"new_start_time"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason"`
}

type BookingResponse struct {
	ID              uuid.UUID  `json:"id"`
	ServiceID       uuid.UUID  `json:"service_id"`
	ProviderID      uuid.UUID  `json:"provider_id"`
	CustomerName    string     `json:"customer_name"`
	StartTime       time.Time  `json:"start_time"`
	Status          string     `json:"status"`
	RescheduleCount int        `json:"reschedule_count"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
}

func bookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID:              b.ID,
		ServiceID:       b.ServiceID,
		ProviderID:      b.ProviderID,
		CustomerName:    b.CustomerName,
		StartTime:       b.StartTime,
		Status:          string(b.Status),
		RescheduleCount: b.RescheduleCount,
		CancelledAt:     b.CancelledAt,
	}
}

func dayName(wd time.Weekday) string {
	return strings.ToLower(wd.String())
}

func parseDayName(name string) (time.Weekday, error) {
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if dayName(wd) == strings.ToLower(name) {
			return wd, nil
		}
	}
	return 0, fmt.Errorf("unknown day name %q", name)
}

func profilePayload(p *availability.Profile) ProfilePayload {
	hours := make(map[string]DayHoursPayload, 7)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		dh := p.WorkingHours[wd]
		hours[dayName(wd)] = DayHoursPayload{Start: dh.Start, End: dh.End, Enabled: dh.Enabled}
	}

	breaks := make([]BreakPayload, 0, len(p.Breaks))
	for _, bw := range p.Breaks {
		bp := BreakPayload{Start: bw.Start, End: bw.End}
		for wd := time.Sunday; wd <= time.Saturday; wd++ {
			if bw.Days[wd] {
				bp.Days = append(bp.Days, dayName(wd))
			}
		}
		breaks = append(breaks, bp)
	}

	return ProfilePayload{
		Timezone:             p.Timezone,
		WorkingHours:         hours,
		BreakTimes:           breaks,
		DefaultBufferMinutes: p.DefaultBufferMinutes,
		MaxBookingsPerSlot:   p.MaxBookingsPerSlot,
		MinAdvanceHours:      p.MinAdvanceHours,
		MaxAdvanceDays:       p.MaxAdvanceDays,
	}
}

func profileFromPayload(providerID uuid.UUID, in ProfilePayload) (*availability.Profile, error) {
	p := &availability.Profile{
		ProviderID:           providerID,
		Timezone:             in.Timezone,
		DefaultBufferMinutes: in.DefaultBufferMinutes,
		MaxBookingsPerSlot:   in.MaxBookingsPerSlot,
		MinAdvanceHours:      in.MinAdvanceHours,
		MaxAdvanceDays:       in.MaxAdvanceDays,
	}

	for name, dh := range in.WorkingHours {
		wd, err := parseDayName(name)
		if err != nil {
			return nil, err
		}
		p.WorkingHours[wd] = availability.DayHours{Start: dh.Start, End: dh.End, Enabled: dh.Enabled}
	}

	for _, bp := range in.BreakTimes {
		bw := availability.BreakWindow{Start: bp.Start, End: bp.End}
		for _, name := range bp.Days {
			wd, err := parseDayName(name)
			if err != nil {
				return nil, err
			}
			bw.Days[wd] = true
		}
		p.Breaks = append(p.Breaks, bw)
	}

	return p, nil
}
