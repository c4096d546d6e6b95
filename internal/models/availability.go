package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Weekday names a day bucket of a weekly schedule.
type Weekday string

const (
	Monday    Weekday = "Monday"
	Tuesday   Weekday = "Tuesday"
	Wednesday Weekday = "Wednesday"
	Thursday  Weekday = "Thursday"
	Friday    Weekday = "Friday"
	Saturday  Weekday = "Saturday"
	Sunday    Weekday = "Sunday"
)

// Weekdays lists the day buckets in schedule order.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// ParseWeekday resolves a day name case-insensitively.
func ParseWeekday(raw string) (Weekday, error) {
	trimmed := strings.TrimSpace(raw)
	for _, d := range Weekdays {
		if strings.EqualFold(string(d), trimmed) {
			return d, nil
		}
	}
	return "", &ScheduleValidationError{Type: ScheduleErrUnknownDay, Message: fmt.Sprintf("unknown day %q", raw)}
}

// WeekdayOf maps a calendar date to its day bucket.
func WeekdayOf(t time.Time) Weekday {
	// time.Weekday starts on Sunday
	return Weekdays[(int(t.Weekday())+6)%7]
}

func (d Weekday) index() int {
	for i, w := range Weekdays {
		if w == d {
			return i
		}
	}
	return -1
}

// ParseClock converts an HH:MM wall-clock string into minutes after midnight.
// 24:00 is accepted as the end of the day.
func ParseClock(raw string) (int, error) {
	if len(raw) != 5 || raw[2] != ':' {
		return 0, fmt.Errorf("time %q must use HH:MM", raw)
	}
	for _, i := range []int{0, 1, 3, 4} {
		if raw[i] < '0' || raw[i] > '9' {
			return 0, fmt.Errorf("time %q must use HH:MM", raw)
		}
	}
	h := int(raw[0]-'0')*10 + int(raw[1]-'0')
	m := int(raw[3]-'0')*10 + int(raw[4]-'0')
	if m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("time %q out of range", raw)
	}
	return h*60 + m, nil
}

// FormatClock renders minutes after midnight as HH:MM.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// TimeSlot is one contiguous availability window on a weekday. Slots are
// never edited in place.
type TimeSlot struct {
	ID          string  `json:"id"`
	Day         Weekday `json:"day"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
	IsRecurring bool    `json:"is_recurring"`
}

// Bounds returns the slot as a half-open [start, end) interval in minutes.
func (s TimeSlot) Bounds() (int, int, error) {
	start, err := ParseClock(s.StartTime)
	if err != nil {
		return 0, 0, &ScheduleValidationError{Type: ScheduleErrInvalidTime, Message: err.Error(), Day: s.Day}
	}
	end, err := ParseClock(s.EndTime)
	if err != nil {
		return 0, 0, &ScheduleValidationError{Type: ScheduleErrInvalidTime, Message: err.Error(), Day: s.Day}
	}
	if start >= end {
		return 0, 0, &ScheduleValidationError{
			Type:    ScheduleErrInvalidInterval,
			Message: fmt.Sprintf("start %s must be before end %s", s.StartTime, s.EndTime),
			Day:     s.Day,
		}
	}
	return start, end, nil
}

// overlaps reports whether two half-open intervals intersect.
func overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && aEnd > bStart
}

// DaySchedule is one bucket of a weekly schedule.
type DaySchedule struct {
	Day         Weekday    `json:"day"`
	Slots       []TimeSlot `json:"slots"`
	IsAvailable bool       `json:"is_available"`
}

// WeeklySchedule is a tutor's declared availability, persisted as one
// document with a monotonic version.
type WeeklySchedule struct {
	TutorID   string        `json:"tutor_id"`
	TimeZone  string        `json:"time_zone"`
	Days      []DaySchedule `json:"days"`
	Version   int           `json:"version"`
	CreatedAt *time.Time    `json:"created_at,omitempty"`
	UpdatedAt *time.Time    `json:"updated_at,omitempty"`
}

// Schedule validation error types.
const (
	ScheduleErrInvalidInterval = "INVALID_INTERVAL"
	ScheduleErrInvalidTime     = "INVALID_TIME"
	ScheduleErrOverlap         = "OVERLAP"
	ScheduleErrUnknownDay      = "UNKNOWN_DAY"
	ScheduleErrSlotNotFound    = "SLOT_NOT_FOUND"
	ScheduleErrTimeZone        = "INVALID_TIME_ZONE"
)

// ScheduleValidationError is returned when an editor operation is rejected.
// The schedule is left untouched whenever one is returned.
type ScheduleValidationError struct {
	Type     string    `json:"type"`
	Message  string    `json:"message"`
	Day      Weekday   `json:"day,omitempty"`
	Conflict *TimeSlot `json:"conflict,omitempty"`
}

func (e *ScheduleValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

// DefaultTimeZone is used when a schedule has no zone set.
const DefaultTimeZone = "UTC"

// NewWeeklySchedule returns seven empty, unavailable day buckets.
func NewWeeklySchedule(tutorID, timeZone string) *WeeklySchedule {
	if timeZone == "" {
		timeZone = DefaultTimeZone
	}
	s := &WeeklySchedule{TutorID: tutorID, TimeZone: timeZone}
	s.Clear()
	return s
}

// Location resolves the schedule time zone.
func (s *WeeklySchedule) Location() (*time.Location, error) {
	tz := s.TimeZone
	if tz == "" {
		tz = DefaultTimeZone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, &ScheduleValidationError{Type: ScheduleErrTimeZone, Message: fmt.Sprintf("unknown time zone %q", s.TimeZone)}
	}
	return loc, nil
}

// Day returns the bucket for d, or nil when d is not a weekday.
func (s *WeeklySchedule) Day(d Weekday) *DaySchedule {
	for i := range s.Days {
		if s.Days[i].Day == d {
			return &s.Days[i]
		}
	}
	return nil
}

// Clone returns a deep copy.
func (s *WeeklySchedule) Clone() *WeeklySchedule {
	out := *s
	out.Days = make([]DaySchedule, len(s.Days))
	for i, day := range s.Days {
		out.Days[i] = day
		out.Days[i].Slots = make([]TimeSlot, len(day.Slots))
		copy(out.Days[i].Slots, day.Slots)
	}
	return &out
}

// Normalize arranges a client supplied schedule into the canonical
// seven-bucket shape: buckets are ordered Monday first, missing buckets are
// added empty, slot days are aligned with their bucket, missing slot ids are
// generated and slots are sorted by start time.
func (s *WeeklySchedule) Normalize() error {
	if s.TimeZone == "" {
		s.TimeZone = DefaultTimeZone
	}
	buckets := make([]DaySchedule, len(Weekdays))
	seen := make(map[Weekday]bool, len(Weekdays))
	for i, d := range Weekdays {
		buckets[i] = DaySchedule{Day: d, Slots: []TimeSlot{}}
	}
	for _, day := range s.Days {
		d, err := ParseWeekday(string(day.Day))
		if err != nil {
			return err
		}
		if seen[d] {
			return &ScheduleValidationError{Type: ScheduleErrUnknownDay, Message: fmt.Sprintf("day %s listed twice", d), Day: d}
		}
		seen[d] = true
		b := &buckets[d.index()]
		b.IsAvailable = day.IsAvailable
		for _, slot := range day.Slots {
			slot.Day = d
			if slot.ID == "" {
				slot.ID = uuid.NewString()
			}
			b.Slots = append(b.Slots, slot)
		}
	}
	s.Days = buckets
	for i := range s.Days {
		sortSlots(s.Days[i].Slots)
	}
	return nil
}

// Validate checks every bucket for well-formed, non-overlapping slots.
func (s *WeeklySchedule) Validate() error {
	if len(s.Days) != len(Weekdays) {
		return &ScheduleValidationError{Type: ScheduleErrUnknownDay, Message: "schedule must contain seven days"}
	}
	if _, err := s.Location(); err != nil {
		return err
	}
	ids := make(map[string]bool)
	for i, day := range s.Days {
		if day.Day != Weekdays[i] {
			return &ScheduleValidationError{Type: ScheduleErrUnknownDay, Message: fmt.Sprintf("unexpected day %q at position %d", day.Day, i+1)}
		}
		for j, slot := range day.Slots {
			start, end, err := slot.Bounds()
			if err != nil {
				return err
			}
			if slot.ID == "" || ids[slot.ID] {
				return &ScheduleValidationError{Type: ScheduleErrInvalidTime, Message: "slot ids must be present and unique", Day: day.Day}
			}
			ids[slot.ID] = true
			for k := j + 1; k < len(day.Slots); k++ {
				other := day.Slots[k]
				oStart, oEnd, err := other.Bounds()
				if err != nil {
					return err
				}
				if overlaps(start, end, oStart, oEnd) {
					conflict := other
					return &ScheduleValidationError{
						Type:     ScheduleErrOverlap,
						Message:  fmt.Sprintf("%s %s-%s overlaps %s-%s", day.Day, slot.StartTime, slot.EndTime, other.StartTime, other.EndTime),
						Day:      day.Day,
						Conflict: &conflict,
					}
				}
			}
		}
	}
	return nil
}

// AddSlot inserts [start, end) on day. The interval must be non-empty and must
// not intersect any existing slot on that day. On success the day is marked
// available.
func (s *WeeklySchedule) AddSlot(day Weekday, start, end string, recurring bool) (TimeSlot, error) {
	bucket := s.Day(day)
	if bucket == nil {
		return TimeSlot{}, &ScheduleValidationError{Type: ScheduleErrUnknownDay, Message: fmt.Sprintf("unknown day %q", day)}
	}
	slot := TimeSlot{ID: uuid.NewString(), Day: day, StartTime: start, EndTime: end, IsRecurring: recurring}
	newStart, newEnd, err := slot.Bounds()
	if err != nil {
		return TimeSlot{}, err
	}
	for _, existing := range bucket.Slots {
		exStart, exEnd, err := existing.Bounds()
		if err != nil {
			return TimeSlot{}, err
		}
		if overlaps(newStart, newEnd, exStart, exEnd) {
			conflict := existing
			return TimeSlot{}, &ScheduleValidationError{
				Type:     ScheduleErrOverlap,
				Message:  fmt.Sprintf("%s %s-%s overlaps existing slot %s-%s", day, start, end, existing.StartTime, existing.EndTime),
				Day:      day,
				Conflict: &conflict,
			}
		}
	}
	slots := make([]TimeSlot, 0, len(bucket.Slots)+1)
	slots = append(slots, bucket.Slots...)
	slots = append(slots, slot)
	sortSlots(slots)
	bucket.Slots = slots
	bucket.IsAvailable = true
	return slot, nil
}

// DeleteSlot removes the slot with id and recomputes that day's availability
// from its remaining slots.
func (s *WeeklySchedule) DeleteSlot(id string) (Weekday, error) {
	for i := range s.Days {
		bucket := &s.Days[i]
		for j, slot := range bucket.Slots {
			if slot.ID != id {
				continue
			}
			slots := make([]TimeSlot, 0, len(bucket.Slots)-1)
			slots = append(slots, bucket.Slots[:j]...)
			slots = append(slots, bucket.Slots[j+1:]...)
			bucket.Slots = slots
			bucket.IsAvailable = len(slots) > 0
			return bucket.Day, nil
		}
	}
	return "", &ScheduleValidationError{Type: ScheduleErrSlotNotFound, Message: fmt.Sprintf("slot %s not found", id)}
}

// ToggleDay flips the availability flag of day without touching its slots and
// returns the new value.
func (s *WeeklySchedule) ToggleDay(day Weekday) (bool, error) {
	bucket := s.Day(day)
	if bucket == nil {
		return false, &ScheduleValidationError{Type: ScheduleErrUnknownDay, Message: fmt.Sprintf("unknown day %q", day)}
	}
	bucket.IsAvailable = !bucket.IsAvailable
	return bucket.IsAvailable, nil
}

// CopyDay replaces the slots and availability of every target with fresh
// copies of source. A target equal to source is skipped.
func (s *WeeklySchedule) CopyDay(source Weekday, targets []Weekday) error {
	src := s.Day(source)
	if src == nil {
		return &ScheduleValidationError{Type: ScheduleErrUnknownDay, Message: fmt.Sprintf("unknown day %q", source)}
	}
	for _, t := range targets {
		if s.Day(t) == nil {
			return &ScheduleValidationError{Type: ScheduleErrUnknownDay, Message: fmt.Sprintf("unknown day %q", t)}
		}
	}
	for _, t := range targets {
		if t == source {
			continue
		}
		dst := s.Day(t)
		slots := make([]TimeSlot, len(src.Slots))
		for i, slot := range src.Slots {
			slot.ID = uuid.NewString()
			slot.Day = t
			slots[i] = slot
		}
		dst.Slots = slots
		dst.IsAvailable = src.IsAvailable
	}
	return nil
}

// Clear resets the schedule to seven empty, unavailable buckets.
func (s *WeeklySchedule) Clear() {
	days := make([]DaySchedule, len(Weekdays))
	for i, d := range Weekdays {
		days[i] = DaySchedule{Day: d, Slots: []TimeSlot{}}
	}
	s.Days = days
}

func sortSlots(slots []TimeSlot) {
	sort.SliceStable(slots, func(i, j int) bool {
		a, _ := ParseClock(slots[i].StartTime)
		b, _ := ParseClock(slots[j].StartTime)
		return a < b
	})
}

// AddSlotRequest is the payload for adding a single slot.
type AddSlotRequest struct {
	Day         string `json:"day" validate:"required"`
	StartTime   string `json:"start_time" validate:"required,len=5"`
	EndTime     string `json:"end_time" validate:"required,len=5"`
	IsRecurring bool   `json:"is_recurring"`
	Version     *int   `json:"version,omitempty" validate:"omitempty,min=0"`
}

// CopyDayRequest lists the days that receive a copy of the source day.
type CopyDayRequest struct {
	Targets []string `json:"targets" validate:"required,min=1,max=7,dive,required"`
	Version *int     `json:"version,omitempty" validate:"omitempty,min=0"`
}

// ClearScheduleRequest requires explicit confirmation.
type ClearScheduleRequest struct {
	Confirm bool `json:"confirm"`
	Version *int `json:"version,omitempty" validate:"omitempty,min=0"`
}

// ReplaceScheduleRequest overwrites the whole schedule.
type ReplaceScheduleRequest struct {
	TimeZone string        `json:"time_zone" validate:"omitempty,max=64"`
	Days     []DaySchedule `json:"days" validate:"max=7"`
	Version  *int          `json:"version,omitempty" validate:"omitempty,min=0"`
}

// VersionedRequest carries only the expected version, used by operations
// without a body such as delete and toggle.
type VersionedRequest struct {
	Version *int `json:"version,omitempty" validate:"omitempty,min=0"`
}
