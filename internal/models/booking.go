package models

import (
	"fmt"
	"math"
	"time"
)

// BookingStatus is the stored lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

// ParseBookingStatus validates a raw status value.
func ParseBookingStatus(raw string) (BookingStatus, error) {
	switch s := BookingStatus(raw); s {
	case BookingPending, BookingConfirmed, BookingCancelled, BookingCompleted:
		return s, nil
	}
	return "", fmt.Errorf("unknown booking status %q", raw)
}

// DisplayStatus is the label shown to users. It refines a stored confirmed
// status with the position of now relative to the session window.
type DisplayStatus string

const (
	DisplayPending            DisplayStatus = "pending"
	DisplayUpcoming           DisplayStatus = "upcoming"
	DisplayOngoing            DisplayStatus = "ongoing"
	DisplayAwaitingCompletion DisplayStatus = "awaiting_completion"
	DisplayCancelled          DisplayStatus = "cancelled"
	DisplayCompleted          DisplayStatus = "completed"
)

// SessionType selects the price multiplier of a booking.
type SessionType string

const (
	SessionStandard  SessionType = "standard"
	SessionExamPrep  SessionType = "exam_prep"
	SessionIntensive SessionType = "intensive"
	SessionTrial     SessionType = "trial"
)

// sessionMultiplierBPS holds price multipliers in basis points.
var sessionMultiplierBPS = map[SessionType]int64{
	SessionStandard:  10000,
	SessionExamPrep:  12500,
	SessionIntensive: 15000,
	SessionTrial:     5000,
}

// MultiplierBPS returns the multiplier for t, defaulting to standard.
func (t SessionType) MultiplierBPS() int64 {
	if bps, ok := sessionMultiplierBPS[t]; ok {
		return bps
	}
	return sessionMultiplierBPS[SessionStandard]
}

// DurationMinutes converts fractional hours to whole minutes.
func DurationMinutes(hours float64) int {
	return int(math.Round(hours * 60))
}

// BookingPrice is hourlyRate × duration × session multiplier, rounded half up
// to the cent.
func BookingPrice(hourlyRate Money, durationHours float64, sessionType SessionType) Money {
	num := int64(hourlyRate) * int64(DurationMinutes(durationHours)) * sessionType.MultiplierBPS()
	const den = 60 * 10000
	return Money((num + den/2) / den)
}

// Booking is a learner's request for a session with a tutor. Date and Time
// are wall-clock values in TimeZone.
type Booking struct {
	ID            string        `db:"id" json:"id"`
	LearnerID     string        `db:"learner_id" json:"learner_id"`
	TutorID       string        `db:"tutor_id" json:"tutor_id"`
	Date          string        `db:"session_date" json:"date"`
	Time          string        `db:"session_time" json:"time"`
	DurationHours float64       `db:"duration_hours" json:"duration_hours"`
	TimeZone      string        `db:"time_zone" json:"time_zone"`
	SessionType   SessionType   `db:"session_type" json:"session_type"`
	Topic         string        `db:"topic" json:"topic"`
	TotalAmount   Money         `db:"total_amount_cents" json:"total_amount"`
	Status        BookingStatus `db:"status" json:"status"`
	MeetingLink   *string       `db:"meeting_link" json:"meeting_link,omitempty"`
	Notes         *string       `db:"notes" json:"notes,omitempty"`
	DeclineReason *string       `db:"decline_reason" json:"decline_reason,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
	CompletedAt   *time.Time    `db:"completed_at" json:"completed_at,omitempty"`
}

// SessionWindow is the half-open [Start, End) interval of a session.
type SessionWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the window.
func (w SessionWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Window resolves the booking's wall-clock fields into an absolute interval.
func (b Booking) Window() (SessionWindow, error) {
	tz := b.TimeZone
	if tz == "" {
		tz = DefaultTimeZone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return SessionWindow{}, fmt.Errorf("booking %s: unknown time zone %q", b.ID, b.TimeZone)
	}
	start, err := time.ParseInLocation("2006-01-02 15:04", b.Date+" "+b.Time, loc)
	if err != nil {
		return SessionWindow{}, fmt.Errorf("booking %s: invalid date/time: %w", b.ID, err)
	}
	end := start.Add(time.Duration(DurationMinutes(b.DurationHours)) * time.Minute)
	return SessionWindow{Start: start, End: end}, nil
}

// RedactedForLearner hides tutor-private fields.
func (b Booking) RedactedForLearner() Booking {
	b.Notes = nil
	return b
}

// DeriveDisplayStatus maps a stored status to its display label at now.
// Only confirmed bookings depend on the clock.
func DeriveDisplayStatus(stored BookingStatus, now time.Time, window SessionWindow) DisplayStatus {
	switch stored {
	case BookingPending:
		return DisplayPending
	case BookingCancelled:
		return DisplayCancelled
	case BookingCompleted:
		return DisplayCompleted
	case BookingConfirmed:
		switch {
		case now.Before(window.Start):
			return DisplayUpcoming
		case window.Contains(now):
			return DisplayOngoing
		default:
			return DisplayAwaitingCompletion
		}
	}
	return DisplayStatus(stored)
}

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCompleted},
}

// CanTransitionBooking reports whether from→to is an allowed lifecycle step.
func CanTransitionBooking(from, to BookingStatus) bool {
	for _, allowed := range bookingTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// BookingTransitionError describes a rejected status change.
type BookingTransitionError struct {
	From BookingStatus `json:"from"`
	To   BookingStatus `json:"to"`
}

func (e *BookingTransitionError) Error() string {
	return fmt.Sprintf("booking cannot move from %s to %s", e.From, e.To)
}

// BookingAction is a named lifecycle step.
type BookingAction string

const (
	ActionAccept   BookingAction = "accept"
	ActionDecline  BookingAction = "decline"
	ActionComplete BookingAction = "complete"
	ActionCancel   BookingAction = "cancel"
)

// Transition returns the status an action expects and the status it sets.
func (a BookingAction) Transition() (from, to BookingStatus) {
	switch a {
	case ActionAccept:
		return BookingPending, BookingConfirmed
	case ActionDecline, ActionCancel:
		return BookingPending, BookingCancelled
	case ActionComplete:
		return BookingConfirmed, BookingCompleted
	}
	return "", ""
}

// BookingDetail is a booking with its derived display status.
type BookingDetail struct {
	Booking
	DisplayStatus DisplayStatus `json:"display_status"`
}

// CreateBookingRequest is submitted by a learner.
type CreateBookingRequest struct {
	TutorID       string      `json:"tutor_id" validate:"required,uuid"`
	Date          string      `json:"date" validate:"required,datetime=2006-01-02"`
	Time          string      `json:"time" validate:"required,len=5"`
	DurationHours float64     `json:"duration_hours" validate:"required,gt=0,lte=8"`
	SessionType   SessionType `json:"session_type" validate:"omitempty,oneof=standard exam_prep intensive trial"`
	Topic         string      `json:"topic" validate:"required,max=200"`
}

// ConfirmRequest carries the explicit confirmation for irreversible actions.
type ConfirmRequest struct {
	Confirm bool `json:"confirm"`
}

// DeclineBookingRequest carries an optional reason.
type DeclineBookingRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// UpdateSessionRequest edits tutor-managed session details.
type UpdateSessionRequest struct {
	MeetingLink *string `json:"meeting_link" validate:"omitempty,url,max=500"`
	Notes       *string `json:"notes" validate:"omitempty,max=2000"`
}

// BookingFilter captures list criteria. Exactly one of TutorID or LearnerID
// is set by the service from the caller identity.
type BookingFilter struct {
	TutorID   string
	LearnerID string
	Statuses  []BookingStatus
	Cursor    string
	Limit     int
}
