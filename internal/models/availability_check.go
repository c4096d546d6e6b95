package models

import (
	"fmt"
	"time"
)

// AvailabilityVerdict is the outcome of checking a proposed session against
// a tutor's schedule and existing bookings.
type AvailabilityVerdict string

const (
	VerdictAvailable    AvailabilityVerdict = "available"
	VerdictConflict     AvailabilityVerdict = "conflict"
	VerdictOutsideHours AvailabilityVerdict = "outside_declared_hours"
)

const minutesPerDay = 24 * 60

// AvailabilityQuery is a proposed session in the tutor's time zone.
type AvailabilityQuery struct {
	Date          string
	Time          string
	DurationHours float64
}

// AvailabilityResult explains a verdict.
type AvailabilityResult struct {
	Verdict           AvailabilityVerdict `json:"verdict"`
	Day               Weekday             `json:"day"`
	Slot              *TimeSlot           `json:"slot,omitempty"`
	ConflictBookingID string              `json:"conflict_booking_id,omitempty"`
	Reason            string              `json:"reason,omitempty"`
}

// CheckAvailability decides whether q fits inside one declared slot of an
// available day and does not overlap a pending or confirmed booking on the
// same date. Sessions crossing midnight are never inside declared hours.
// An error is returned only for malformed input.
func CheckAvailability(schedule *WeeklySchedule, q AvailabilityQuery, existing []Booking) (AvailabilityResult, error) {
	date, err := time.Parse("2006-01-02", q.Date)
	if err != nil {
		return AvailabilityResult{}, fmt.Errorf("date %q must use YYYY-MM-DD", q.Date)
	}
	start, err := ParseClock(q.Time)
	if err != nil {
		return AvailabilityResult{}, err
	}
	minutes := DurationMinutes(q.DurationHours)
	if minutes <= 0 {
		return AvailabilityResult{}, fmt.Errorf("duration must be positive")
	}
	end := start + minutes

	day := WeekdayOf(date)
	result := AvailabilityResult{Day: day}

	if end > minutesPerDay {
		result.Verdict = VerdictOutsideHours
		result.Reason = "session crosses midnight"
		return result, nil
	}

	var bucket *DaySchedule
	if schedule != nil {
		bucket = schedule.Day(day)
	}
	if bucket == nil || !bucket.IsAvailable {
		result.Verdict = VerdictOutsideHours
		result.Reason = fmt.Sprintf("tutor is not available on %s", day)
		return result, nil
	}

	for _, slot := range bucket.Slots {
		slotStart, slotEnd, err := slot.Bounds()
		if err != nil {
			continue
		}
		if slotStart <= start && end <= slotEnd {
			s := slot
			result.Slot = &s
			break
		}
	}
	if result.Slot == nil {
		result.Verdict = VerdictOutsideHours
		result.Reason = fmt.Sprintf("%s %s is outside declared hours", day, q.Time)
		return result, nil
	}

	for _, b := range existing {
		if b.Date != q.Date || (b.Status != BookingPending && b.Status != BookingConfirmed) {
			continue
		}
		bStart, err := ParseClock(b.Time)
		if err != nil {
			continue
		}
		bEnd := bStart + DurationMinutes(b.DurationHours)
		if overlaps(start, end, bStart, bEnd) {
			result.Verdict = VerdictConflict
			result.ConflictBookingID = b.ID
			result.Reason = fmt.Sprintf("overlaps booking at %s", b.Time)
			return result, nil
		}
	}

	result.Verdict = VerdictAvailable
	return result, nil
}
