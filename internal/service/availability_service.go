package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type availabilityRepository interface {
	GetByTutor(ctx context.Context, tutorID string) (*models.WeeklySchedule, error)
	Save(ctx context.Context, schedule *models.WeeklySchedule, expectedVersion int) error
}

type tutorProfileFinder interface {
	FindByUserID(ctx context.Context, userID string) (*models.TutorProfile, error)
}

// AvailabilityService loads and edits a tutor's weekly schedule. Every edit
// is applied to a copy, validated as a whole and saved against the version
// it was read at.
type AvailabilityService struct {
	repo      availabilityRepository
	profiles  tutorProfileFinder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAvailabilityService constructs the service. profiles may be nil, in
// which case new schedules start in UTC.
func NewAvailabilityService(repo availabilityRepository, profiles tutorProfileFinder, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{repo: repo, profiles: profiles, validator: validate, logger: logger}
}

// Get returns the tutor's schedule, or an empty one at version 0 when none
// has been saved.
func (s *AvailabilityService) Get(ctx context.Context, tutorID string) (*models.WeeklySchedule, error) {
	schedule, err := s.repo.GetByTutor(ctx, tutorID)
	if err == nil {
		return schedule, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, internalError(err, "failed to load schedule")
	}

	timeZone := models.DefaultTimeZone
	if s.profiles != nil {
		profile, perr := s.profiles.FindByUserID(ctx, tutorID)
		switch {
		case perr == nil && profile.TimeZone != "":
			timeZone = profile.TimeZone
		case perr != nil && !errors.Is(perr, sql.ErrNoRows):
			s.logger.Warn("failed to load tutor time zone", zap.String("tutor_id", tutorID), zap.Error(perr))
		}
	}
	return models.NewWeeklySchedule(tutorID, timeZone), nil
}

// Replace overwrites the whole schedule with the client's copy.
func (s *AvailabilityService) Replace(ctx context.Context, tutorID string, req models.ReplaceScheduleRequest) (*models.WeeklySchedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid schedule payload")
	}
	return s.mutate(ctx, tutorID, req.Version, func(schedule *models.WeeklySchedule) error {
		if req.TimeZone != "" {
			schedule.TimeZone = req.TimeZone
		}
		schedule.Days = req.Days
		return schedule.Normalize()
	})
}

// AddSlot inserts one slot and saves.
func (s *AvailabilityService) AddSlot(ctx context.Context, tutorID string, req models.AddSlotRequest) (*models.WeeklySchedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid slot payload")
	}
	day, err := models.ParseWeekday(req.Day)
	if err != nil {
		return nil, scheduleError(err)
	}
	return s.mutate(ctx, tutorID, req.Version, func(schedule *models.WeeklySchedule) error {
		_, err := schedule.AddSlot(day, req.StartTime, req.EndTime, req.IsRecurring)
		return err
	})
}

// DeleteSlot removes one slot and saves.
func (s *AvailabilityService) DeleteSlot(ctx context.Context, tutorID, slotID string, version *int) (*models.WeeklySchedule, error) {
	return s.mutate(ctx, tutorID, version, func(schedule *models.WeeklySchedule) error {
		_, err := schedule.DeleteSlot(slotID)
		return err
	})
}

// ToggleDay flips a day's availability and saves.
func (s *AvailabilityService) ToggleDay(ctx context.Context, tutorID, rawDay string, version *int) (*models.WeeklySchedule, error) {
	day, err := models.ParseWeekday(rawDay)
	if err != nil {
		return nil, scheduleError(err)
	}
	return s.mutate(ctx, tutorID, version, func(schedule *models.WeeklySchedule) error {
		_, err := schedule.ToggleDay(day)
		return err
	})
}

// CopyDay copies one day's slots onto the target days and saves.
func (s *AvailabilityService) CopyDay(ctx context.Context, tutorID, rawSource string, req models.CopyDayRequest) (*models.WeeklySchedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid copy payload")
	}
	source, err := models.ParseWeekday(rawSource)
	if err != nil {
		return nil, scheduleError(err)
	}
	targets := make([]models.Weekday, 0, len(req.Targets))
	for _, raw := range req.Targets {
		day, err := models.ParseWeekday(raw)
		if err != nil {
			return nil, scheduleError(err)
		}
		targets = append(targets, day)
	}
	return s.mutate(ctx, tutorID, req.Version, func(schedule *models.WeeklySchedule) error {
		return schedule.CopyDay(source, targets)
	})
}

// Clear empties every day. It is irreversible and needs Confirm.
func (s *AvailabilityService) Clear(ctx context.Context, tutorID string, req models.ClearScheduleRequest) (*models.WeeklySchedule, error) {
	if !req.Confirm {
		return nil, appErrors.Clone(appErrors.ErrConfirmation, "clearing the schedule requires confirm=true")
	}
	return s.mutate(ctx, tutorID, req.Version, func(schedule *models.WeeklySchedule) error {
		schedule.Clear()
		return nil
	})
}

func (s *AvailabilityService) mutate(ctx context.Context, tutorID string, version *int, apply func(*models.WeeklySchedule) error) (*models.WeeklySchedule, error) {
	current, err := s.Get(ctx, tutorID)
	if err != nil {
		return nil, err
	}
	if version != nil && *version != current.Version {
		return nil, staleSchedule(current.Version)
	}

	next := current.Clone()
	if err := apply(next); err != nil {
		return nil, scheduleError(err)
	}
	if err := next.Validate(); err != nil {
		return nil, scheduleError(err)
	}

	if err := s.repo.Save(ctx, next, current.Version); err != nil {
		if errors.Is(err, repository.ErrStaleVersion) {
			return nil, staleSchedule(current.Version)
		}
		return nil, internalError(err, "failed to save schedule")
	}
	s.logger.Debug("schedule saved", zap.String("tutor_id", tutorID), zap.Int("version", next.Version))
	return next, nil
}

func staleSchedule(current int) error {
	return appErrors.WithDetails(
		appErrors.Clone(appErrors.ErrStaleVersion, "schedule was changed by another session, reload and retry"),
		map[string]int{"current_version": current},
	)
}

func scheduleError(err error) error {
	var verr *models.ScheduleValidationError
	if !errors.As(err, &verr) {
		return validationError(err, err.Error())
	}
	switch verr.Type {
	case models.ScheduleErrOverlap:
		return appErrors.WithDetails(appErrors.Clone(appErrors.ErrConflict, verr.Message), verr)
	case models.ScheduleErrSlotNotFound:
		return appErrors.Clone(appErrors.ErrNotFound, verr.Message)
	default:
		return appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, verr.Message), verr)
	}
}
