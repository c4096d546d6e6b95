package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type memoryScheduleRepo struct {
	stored  map[string]*models.WeeklySchedule
	saveErr error
	saves   int
}

func newMemoryScheduleRepo() *memoryScheduleRepo {
	return &memoryScheduleRepo{stored: map[string]*models.WeeklySchedule{}}
}

func (m *memoryScheduleRepo) GetByTutor(ctx context.Context, tutorID string) (*models.WeeklySchedule, error) {
	s, ok := m.stored[tutorID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return s.Clone(), nil
}

func (m *memoryScheduleRepo) Save(ctx context.Context, schedule *models.WeeklySchedule, expectedVersion int) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	current := 0
	if s, ok := m.stored[schedule.TutorID]; ok {
		current = s.Version
	}
	if current != expectedVersion {
		return repository.ErrStaleVersion
	}
	m.saves++
	schedule.Version = current + 1
	m.stored[schedule.TutorID] = schedule.Clone()
	return nil
}

type stubProfileFinder struct {
	profiles map[string]*models.TutorProfile
	err      error
}

func (s *stubProfileFinder) FindByUserID(ctx context.Context, userID string) (*models.TutorProfile, error) {
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.profiles[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return p, nil
}

func intPtr(v int) *int { return &v }

func newAvailabilityFixture() (*AvailabilityService, *memoryScheduleRepo) {
	repo := newMemoryScheduleRepo()
	profiles := &stubProfileFinder{profiles: map[string]*models.TutorProfile{
		"t1": {UserID: "t1", TimeZone: "Europe/Berlin"},
	}}
	return NewAvailabilityService(repo, profiles, nil, zap.NewNop()), repo
}

func TestAvailabilityGetReturnsEmptyScheduleInTutorZone(t *testing.T) {
	svc, _ := newAvailabilityFixture()

	schedule, err := svc.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 0, schedule.Version)
	assert.Equal(t, "Europe/Berlin", schedule.TimeZone)
	require.Len(t, schedule.Days, 7)
	for _, day := range schedule.Days {
		assert.False(t, day.IsAvailable)
		assert.Empty(t, day.Slots)
	}

	other, err := svc.Get(context.Background(), "t2")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultTimeZone, other.TimeZone)
}

func TestAvailabilityAddSlotRejectsOverlapAndKeepsStore(t *testing.T) {
	svc, repo := newAvailabilityFixture()
	ctx := context.Background()

	saved, err := svc.AddSlot(ctx, "t1", models.AddSlotRequest{Day: "Monday", StartTime: "09:00", EndTime: "10:00"})
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Version)

	_, err = svc.AddSlot(ctx, "t1", models.AddSlotRequest{Day: "Monday", StartTime: "09:30", EndTime: "10:30"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	require.IsType(t, &models.ScheduleValidationError{}, appErr.Details)

	stored, err := svc.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Version)
	assert.Len(t, stored.Day(models.Monday).Slots, 1)
	assert.Equal(t, 1, repo.saves)
}

func TestAvailabilityAdjacentSlotsSorted(t *testing.T) {
	svc, _ := newAvailabilityFixture()
	ctx := context.Background()

	_, err := svc.AddSlot(ctx, "t1", models.AddSlotRequest{Day: "monday", StartTime: "10:00", EndTime: "11:00"})
	require.NoError(t, err)
	saved, err := svc.AddSlot(ctx, "t1", models.AddSlotRequest{Day: "Monday", StartTime: "09:00", EndTime: "10:00", Version: intPtr(1)})
	require.NoError(t, err)

	slots := saved.Day(models.Monday).Slots
	require.Len(t, slots, 2)
	assert.Equal(t, "09:00", slots[0].StartTime)
	assert.Equal(t, "10:00", slots[1].StartTime)
	assert.True(t, saved.Day(models.Monday).IsAvailable)
}

func TestAvailabilityRejectsInvalidInterval(t *testing.T) {
	svc, repo := newAvailabilityFixture()

	_, err := svc.AddSlot(context.Background(), "t1", models.AddSlotRequest{Day: "Monday", StartTime: "10:00", EndTime: "10:00"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Zero(t, repo.saves)

	_, err = svc.AddSlot(context.Background(), "t1", models.AddSlotRequest{Day: "Funday", StartTime: "09:00", EndTime: "10:00"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAvailabilityStaleVersion(t *testing.T) {
	svc, _ := newAvailabilityFixture()
	ctx := context.Background()

	_, err := svc.AddSlot(ctx, "t1", models.AddSlotRequest{Day: "Tuesday", StartTime: "09:00", EndTime: "10:00"})
	require.NoError(t, err)

	_, err = svc.ToggleDay(ctx, "t1", "Tuesday", intPtr(0))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrStaleVersion.Code, appErr.Code)
	assert.Equal(t, map[string]int{"current_version": 1}, appErr.Details)
}

func TestAvailabilityLostSaveRaceIsStale(t *testing.T) {
	svc, repo := newAvailabilityFixture()
	repo.saveErr = repository.ErrStaleVersion

	_, err := svc.AddSlot(context.Background(), "t1", models.AddSlotRequest{Day: "Monday", StartTime: "09:00", EndTime: "10:00"})
	assert.Equal(t, appErrors.ErrStaleVersion.Code, appErrors.FromError(err).Code)

	repo.saveErr = errors.New("connection reset")
	_, err = svc.AddSlot(context.Background(), "t1", models.AddSlotRequest{Day: "Monday", StartTime: "09:00", EndTime: "10:00"})
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestAvailabilityDeleteToggleCopyClear(t *testing.T) {
	svc, _ := newAvailabilityFixture()
	ctx := context.Background()

	saved, err := svc.AddSlot(ctx, "t1", models.AddSlotRequest{Day: "Monday", StartTime: "09:00", EndTime: "10:00", IsRecurring: true})
	require.NoError(t, err)
	slotID := saved.Day(models.Monday).Slots[0].ID

	saved, err = svc.CopyDay(ctx, "t1", "Monday", models.CopyDayRequest{Targets: []string{"Wednesday", "Friday", "Monday"}})
	require.NoError(t, err)
	for _, d := range []models.Weekday{models.Wednesday, models.Friday} {
		slots := saved.Day(d).Slots
		require.Len(t, slots, 1)
		assert.Equal(t, "09:00", slots[0].StartTime)
		assert.True(t, slots[0].IsRecurring)
		assert.NotEqual(t, slotID, slots[0].ID)
		assert.True(t, saved.Day(d).IsAvailable)
	}

	saved, err = svc.ToggleDay(ctx, "t1", "Wednesday", nil)
	require.NoError(t, err)
	assert.False(t, saved.Day(models.Wednesday).IsAvailable)
	assert.Len(t, saved.Day(models.Wednesday).Slots, 1)

	saved, err = svc.DeleteSlot(ctx, "t1", slotID, nil)
	require.NoError(t, err)
	assert.Empty(t, saved.Day(models.Monday).Slots)
	assert.False(t, saved.Day(models.Monday).IsAvailable)

	_, err = svc.DeleteSlot(ctx, "t1", "missing", nil)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.Clear(ctx, "t1", models.ClearScheduleRequest{})
	assert.Equal(t, appErrors.ErrConfirmation.Code, appErrors.FromError(err).Code)

	saved, err = svc.Clear(ctx, "t1", models.ClearScheduleRequest{Confirm: true})
	require.NoError(t, err)
	for _, day := range saved.Days {
		assert.False(t, day.IsAvailable)
		assert.Empty(t, day.Slots)
	}
}

func TestAvailabilityReplaceValidatesWholeSchedule(t *testing.T) {
	svc, repo := newAvailabilityFixture()
	ctx := context.Background()

	_, err := svc.Replace(ctx, "t1", models.ReplaceScheduleRequest{
		TimeZone: "Asia/Jakarta",
		Days: []models.DaySchedule{{
			Day:         models.Thursday,
			IsAvailable: true,
			Slots: []models.TimeSlot{
				{StartTime: "13:00", EndTime: "15:00"},
				{StartTime: "14:00", EndTime: "16:00"},
			},
		}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Zero(t, repo.saves)

	_, err = svc.Replace(ctx, "t1", models.ReplaceScheduleRequest{TimeZone: "Mars/Olympus"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	saved, err := svc.Replace(ctx, "t1", models.ReplaceScheduleRequest{
		TimeZone: "Asia/Jakarta",
		Days: []models.DaySchedule{{
			Day:         models.Thursday,
			IsAvailable: true,
			Slots: []models.TimeSlot{
				{StartTime: "15:00", EndTime: "16:00"},
				{StartTime: "13:00", EndTime: "15:00"},
			},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Asia/Jakarta", saved.TimeZone)
	assert.Equal(t, 1, saved.Version)
	thursday := saved.Day(models.Thursday)
	require.Len(t, thursday.Slots, 2)
	assert.Equal(t, "13:00", thursday.Slots[0].StartTime)
	assert.NotEmpty(t, thursday.Slots[0].ID)
	assert.Equal(t, models.Thursday, thursday.Slots[0].Day)
}
