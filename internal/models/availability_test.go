package models

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validationType(t *testing.T, err error) string {
	t.Helper()
	var verr *ScheduleValidationError
	require.True(t, errors.As(err, &verr), "expected ScheduleValidationError, got %v", err)
	return verr.Type
}

func TestNewWeeklyScheduleHasSevenEmptyDays(t *testing.T) {
	s := NewWeeklySchedule("tutor-1", "")
	require.Len(t, s.Days, 7)
	assert.Equal(t, DefaultTimeZone, s.TimeZone)
	for i, day := range s.Days {
		assert.Equal(t, Weekdays[i], day.Day)
		assert.Empty(t, day.Slots)
		assert.False(t, day.IsAvailable)
	}
}

func TestAddSlotRejectsOverlap(t *testing.T) {
	s := NewWeeklySchedule("tutor-1", "UTC")
	_, err := s.AddSlot(Monday, "09:00", "10:00", true)
	require.NoError(t, err)
	before := s.Clone()

	_, err = s.AddSlot(Monday, "09:30", "10:30", true)
	assert.Equal(t, ScheduleErrOverlap, validationType(t, err))
	assert.Equal(t, before, s)
}

func TestAddSlotAcceptsAdjacentAndSorts(t *testing.T) {
	s := NewWeeklySchedule("tutor-1", "UTC")
	_, err := s.AddSlot(Monday, "10:00", "11:00", false)
	require.NoError(t, err)
	_, err = s.AddSlot(Monday, "09:00", "10:00", false)
	require.NoError(t, err)

	slots := s.Day(Monday).Slots
	require.Len(t, slots, 2)
	assert.Equal(t, "09:00", slots[0].StartTime)
	assert.Equal(t, "10:00", slots[1].StartTime)
	assert.True(t, s.Day(Monday).IsAvailable)
}

func TestAddSlotRejectsEmptyOrInvertedInterval(t *testing.T) {
	cases := []struct{ start, end, want string }{
		{"10:00", "10:00", ScheduleErrInvalidInterval},
		{"11:00", "10:00", ScheduleErrInvalidInterval},
		{"9:00", "10:00", ScheduleErrInvalidTime},
		{"09:00", "25:00", ScheduleErrInvalidTime},
		{"09:60", "10:00", ScheduleErrInvalidTime},
	}
	for _, tc := range cases {
		t.Run(tc.start+"-"+tc.end, func(t *testing.T) {
			s := NewWeeklySchedule("tutor-1", "UTC")
			before := s.Clone()
			_, err := s.AddSlot(Tuesday, tc.start, tc.end, false)
			assert.Equal(t, tc.want, validationType(t, err))
			assert.Equal(t, before, s)
		})
	}
}

func TestAddSlotAllowsEndOfDay(t *testing.T) {
	s := NewWeeklySchedule("tutor-1", "UTC")
	_, err := s.AddSlot(Friday, "22:00", "24:00", false)
	assert.NoError(t, err)
}

func TestAcceptedSlotsNeverOverlap(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := NewWeeklySchedule("tutor-1", "UTC")
	for i := 0; i < 500; i++ {
		start := rng.Intn(23 * 60)
		end := start + 1 + rng.Intn(180)
		if end > 24*60 {
			end = 24 * 60
		}
		day := Weekdays[rng.Intn(len(Weekdays))]
		_, _ = s.AddSlot(day, FormatClock(start), FormatClock(end), false)
	}
	for _, day := range s.Days {
		for i, a := range day.Slots {
			aStart, aEnd, err := a.Bounds()
			require.NoError(t, err)
			for _, b := range day.Slots[i+1:] {
				bStart, bEnd, err := b.Bounds()
				require.NoError(t, err)
				assert.False(t, aStart < bEnd && bStart < aEnd, "%s: %s-%s overlaps %s-%s", day.Day, a.StartTime, a.EndTime, b.StartTime, b.EndTime)
			}
		}
	}
	assert.NoError(t, s.Validate())
}

func TestDeleteSlotRecomputesAvailability(t *testing.T) {
	s := NewWeeklySchedule("tutor-1", "UTC")
	first, err := s.AddSlot(Wednesday, "09:00", "10:00", false)
	require.NoError(t, err)
	second, err := s.AddSlot(Wednesday, "11:00", "12:00", false)
	require.NoError(t, err)

	day, err := s.DeleteSlot(first.ID)
	require.NoError(t, err)
	assert.Equal(t, Wednesday, day)
	assert.True(t, s.Day(Wednesday).IsAvailable)

	_, err = s.DeleteSlot(second.ID)
	require.NoError(t, err)
	assert.False(t, s.Day(Wednesday).IsAvailable)

	_, err = s.DeleteSlot("missing")
	assert.Equal(t, ScheduleErrSlotNotFound, validationType(t, err))
}

func TestToggleDayKeepsSlots(t *testing.T) {
	s := NewWeeklySchedule("tutor-1", "UTC")
	_, err := s.AddSlot(Thursday, "09:00", "10:00", false)
	require.NoError(t, err)

	available, err := s.ToggleDay(Thursday)
	require.NoError(t, err)
	assert.False(t, available)
	assert.Len(t, s.Day(Thursday).Slots, 1)

	available, err = s.ToggleDay(Sunday)
	require.NoError(t, err)
	assert.True(t, available)
	assert.Empty(t, s.Day(Sunday).Slots)

	_, err = s.ToggleDay("Funday")
	assert.Equal(t, ScheduleErrUnknownDay, validationType(t, err))
}

func TestCopyDayClonesSlotsWithFreshIDs(t *testing.T) {
	s := NewWeeklySchedule("tutor-1", "UTC")
	_, err := s.AddSlot(Monday, "09:00", "10:00", true)
	require.NoError(t, err)
	_, err = s.AddSlot(Monday, "13:00", "15:30", false)
	require.NoError(t, err)
	_, err = s.AddSlot(Tuesday, "08:00", "20:00", false)
	require.NoError(t, err)

	require.NoError(t, s.CopyDay(Monday, []Weekday{Tuesday, Wednesday, Monday}))

	src := s.Day(Monday)
	for _, target := range []Weekday{Tuesday, Wednesday} {
		dst := s.Day(target)
		require.Len(t, dst.Slots, len(src.Slots))
		assert.Equal(t, src.IsAvailable, dst.IsAvailable)
		for i := range src.Slots {
			assert.Equal(t, src.Slots[i].StartTime, dst.Slots[i].StartTime)
			assert.Equal(t, src.Slots[i].EndTime, dst.Slots[i].EndTime)
			assert.Equal(t, src.Slots[i].IsRecurring, dst.Slots[i].IsRecurring)
			assert.Equal(t, target, dst.Slots[i].Day)
			assert.NotEqual(t, src.Slots[i].ID, dst.Slots[i].ID)
		}
	}
	assert.Len(t, src.Slots, 2)
	assert.NoError(t, s.Validate())
}

func TestCopyDayRejectsUnknownTargetWithoutMutation(t *testing.T) {
	s := NewWeeklySchedule("tutor-1", "UTC")
	_, err := s.AddSlot(Monday, "09:00", "10:00", false)
	require.NoError(t, err)
	before := s.Clone()

	err = s.CopyDay(Monday, []Weekday{Tuesday, "Someday"})
	assert.Equal(t, ScheduleErrUnknownDay, validationType(t, err))
	assert.Equal(t, before, s)
}

func TestClearAlwaysYieldsSevenEmptyDays(t *testing.T) {
	s := NewWeeklySchedule("tutor-1", "UTC")
	for i, d := range Weekdays {
		_, err := s.AddSlot(d, FormatClock(60*i), FormatClock(60*i+30), false)
		require.NoError(t, err)
	}
	_, err := s.ToggleDay(Sunday)
	require.NoError(t, err)

	s.Clear()

	require.Len(t, s.Days, 7)
	for _, day := range s.Days {
		assert.Empty(t, day.Slots)
		assert.False(t, day.IsAvailable)
	}
}

func TestNormalizeOrdersDaysAndAssignsIDs(t *testing.T) {
	s := &WeeklySchedule{Days: []DaySchedule{
		{Day: "friday", IsAvailable: true, Slots: []TimeSlot{
			{StartTime: "14:00", EndTime: "15:00"},
			{StartTime: "09:00", EndTime: "10:00"},
		}},
		{Day: "Monday", Slots: []TimeSlot{}},
	}}

	require.NoError(t, s.Normalize())
	require.NoError(t, s.Validate())

	require.Len(t, s.Days, 7)
	fri := s.Day(Friday)
	require.Len(t, fri.Slots, 2)
	assert.Equal(t, "09:00", fri.Slots[0].StartTime)
	assert.Equal(t, Friday, fri.Slots[0].Day)
	assert.NotEmpty(t, fri.Slots[0].ID)
	assert.Equal(t, DefaultTimeZone, s.TimeZone)
}

func TestNormalizeRejectsDuplicateDay(t *testing.T) {
	s := &WeeklySchedule{Days: []DaySchedule{{Day: Monday}, {Day: "MONDAY"}}}
	assert.Equal(t, ScheduleErrUnknownDay, validationType(t, s.Normalize()))
}

func TestValidateReportsOverlapAndTimeZone(t *testing.T) {
	s := NewWeeklySchedule("tutor-1", "UTC")
	s.Day(Saturday).Slots = []TimeSlot{
		{ID: "a", Day: Saturday, StartTime: "09:00", EndTime: "11:00"},
		{ID: "b", Day: Saturday, StartTime: "10:00", EndTime: "12:00"},
	}
	assert.Equal(t, ScheduleErrOverlap, validationType(t, s.Validate()))

	s = NewWeeklySchedule("tutor-1", "Mars/Olympus")
	assert.Equal(t, ScheduleErrTimeZone, validationType(t, s.Validate()))
}

func TestParseWeekday(t *testing.T) {
	for _, d := range Weekdays {
		got, err := ParseWeekday(fmt.Sprintf("  %s ", d))
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}
	_, err := ParseWeekday("Mon")
	assert.Error(t, err)
}
