package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type bookingRepository interface {
	CreateGuarded(ctx context.Context, booking *models.Booking, guard func(active []models.Booking) error) error
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, string, error)
	TransitionStatus(ctx context.Context, change repository.StatusChange) (bool, error)
	UpdateSession(ctx context.Context, id string, meetingLink, notes *string, at time.Time) error
}

type scheduleReader interface {
	GetByTutor(ctx context.Context, tutorID string) (*models.WeeklySchedule, error)
}

type bookingNotifier interface {
	BookingChanged(ctx context.Context, action string, booking models.Booking)
}

type earningsInvalidator interface {
	InvalidateTutor(ctx context.Context, tutorID string)
}

const (
	defaultBookingLimit = 20
	maxBookingLimit     = 100
)

// BookingListQuery holds caller supplied list parameters.
type BookingListQuery struct {
	Statuses []string
	Cursor   string
	Limit    int
}

// BookingService creates booking requests and drives their lifecycle.
type BookingService struct {
	repo      bookingRepository
	profiles  tutorProfileFinder
	schedules scheduleReader
	notifier  bookingNotifier
	earnings  earningsInvalidator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewBookingService constructs the service. notifier, earnings and metrics
// may be nil.
func NewBookingService(repo bookingRepository, profiles tutorProfileFinder, schedules scheduleReader, notifier bookingNotifier, earnings earningsInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		repo:      repo,
		profiles:  profiles,
		schedules: schedules,
		notifier:  notifier,
		earnings:  earnings,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create records a pending booking for learner. The requested session must
// start in the future, fit a declared slot of the tutor and not overlap
// another pending or confirmed booking of that tutor.
func (s *BookingService) Create(ctx context.Context, learner Actor, req models.CreateBookingRequest) (detail *models.BookingDetail, err error) {
	defer func() { s.record("create", err) }()

	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid booking payload")
	}
	if req.TutorID == learner.ID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "you cannot book a session with yourself")
	}
	if _, err := models.ParseClock(req.Time); err != nil {
		return nil, validationError(err, err.Error())
	}
	sessionType := req.SessionType
	if sessionType == "" {
		sessionType = models.SessionStandard
	}

	profile, err := s.profiles.FindByUserID(ctx, req.TutorID)
	if err != nil {
		return nil, notFoundOr(err, "tutor not found", "failed to load tutor profile")
	}
	if !profile.Bookable() {
		return nil, appErrors.Clone(appErrors.ErrUnprocessable, "tutor is not accepting bookings")
	}

	schedule, err := s.schedules.GetByTutor(ctx, req.TutorID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, internalError(err, "failed to load tutor schedule")
		}
		schedule = nil
	}
	timeZone := profile.TimeZone
	if schedule != nil && schedule.TimeZone != "" {
		timeZone = schedule.TimeZone
	}

	now := s.now()
	booking := &models.Booking{
		LearnerID:     learner.ID,
		TutorID:       req.TutorID,
		Date:          req.Date,
		Time:          req.Time,
		DurationHours: req.DurationHours,
		TimeZone:      timeZone,
		SessionType:   sessionType,
		Topic:         strings.TrimSpace(req.Topic),
		TotalAmount:   models.BookingPrice(profile.HourlyRate, req.DurationHours, sessionType),
		Status:        models.BookingPending,
		CreatedAt:     now,
	}
	window, err := booking.Window()
	if err != nil {
		return nil, validationError(err, "invalid session date or time")
	}
	if !window.Start.After(now) {
		return nil, appErrors.Clone(appErrors.ErrUnprocessable, "session must start in the future")
	}

	query := models.AvailabilityQuery{Date: req.Date, Time: req.Time, DurationHours: req.DurationHours}
	err = s.repo.CreateGuarded(ctx, booking, func(active []models.Booking) error {
		result, err := models.CheckAvailability(schedule, query, active)
		if err != nil {
			return validationError(err, err.Error())
		}
		switch result.Verdict {
		case models.VerdictOutsideHours:
			return appErrors.WithDetails(appErrors.Clone(appErrors.ErrUnprocessable, "requested time is outside the tutor's declared hours"), result)
		case models.VerdictConflict:
			return appErrors.WithDetails(appErrors.Clone(appErrors.ErrConflict, "requested time overlaps another booking"), result)
		}
		return nil
	})
	if err != nil {
		return nil, passThrough(err, "failed to create booking")
	}

	s.logger.Info("booking created", zap.String("booking_id", booking.ID), zap.String("tutor_id", booking.TutorID), zap.String("learner_id", booking.LearnerID))
	s.notify(ctx, "created", *booking)
	out := s.detail(*booking, learner)
	return &out, nil
}

// Get returns a booking visible to viewer.
func (s *BookingService) Get(ctx context.Context, viewer Actor, id string) (*models.BookingDetail, error) {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "booking not found", "failed to load booking")
	}
	if viewer.Role != string(models.RoleAdmin) && viewer.ID != booking.TutorID && viewer.ID != booking.LearnerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "booking belongs to another user")
	}
	out := s.detail(*booking, viewer)
	return &out, nil
}

// List returns the viewer's bookings, newest request first.
func (s *BookingService) List(ctx context.Context, viewer Actor, q BookingListQuery) ([]models.BookingDetail, *models.Pagination, error) {
	filter := models.BookingFilter{Cursor: q.Cursor, Limit: q.Limit}
	switch models.UserRole(viewer.Role) {
	case models.RoleTutor:
		filter.TutorID = viewer.ID
	case models.RoleLearner:
		filter.LearnerID = viewer.ID
	case models.RoleAdmin:
	default:
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot list bookings")
	}
	for _, raw := range q.Statuses {
		status, err := models.ParseBookingStatus(strings.TrimSpace(raw))
		if err != nil {
			return nil, nil, validationError(err, err.Error())
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultBookingLimit
	}
	if filter.Limit > maxBookingLimit {
		filter.Limit = maxBookingLimit
	}

	bookings, next, err := s.repo.List(ctx, filter)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCursor) {
			return nil, nil, validationError(err, "invalid cursor")
		}
		return nil, nil, internalError(err, "failed to list bookings")
	}
	items := make([]models.BookingDetail, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, s.detail(b, viewer))
	}
	return items, &models.Pagination{PageSize: filter.Limit, NextCursor: next}, nil
}

// Accept confirms a pending booking.
func (s *BookingService) Accept(ctx context.Context, tutor Actor, id string, req models.ConfirmRequest) (*models.BookingDetail, error) {
	if !req.Confirm {
		s.record(string(models.ActionAccept), appErrors.ErrConfirmation)
		return nil, appErrors.Clone(appErrors.ErrConfirmation, "accepting a booking requires confirm=true")
	}
	return s.transition(ctx, tutor, id, models.ActionAccept, nil, nil)
}

// Decline cancels a pending booking with an optional reason.
func (s *BookingService) Decline(ctx context.Context, tutor Actor, id string, req models.DeclineBookingRequest) (*models.BookingDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid decline payload")
	}
	var reason *string
	if trimmed := strings.TrimSpace(req.Reason); trimmed != "" {
		reason = &trimmed
	}
	return s.transition(ctx, tutor, id, models.ActionDecline, reason, nil)
}

// Complete marks a confirmed booking as held. The session must have started.
func (s *BookingService) Complete(ctx context.Context, tutor Actor, id string, req models.ConfirmRequest) (*models.BookingDetail, error) {
	if !req.Confirm {
		s.record(string(models.ActionComplete), appErrors.ErrConfirmation)
		return nil, appErrors.Clone(appErrors.ErrConfirmation, "completing a booking requires confirm=true")
	}
	return s.transition(ctx, tutor, id, models.ActionComplete, nil, func(b models.Booking) error {
		window, err := b.Window()
		if err != nil {
			return internalError(err, "booking has an invalid session window")
		}
		if s.now().Before(window.Start) {
			return appErrors.Clone(appErrors.ErrUnprocessable, "session has not started yet")
		}
		return nil
	})
}

// CancelByLearner withdraws the learner's own pending request.
func (s *BookingService) CancelByLearner(ctx context.Context, learner Actor, id string) (*models.BookingDetail, error) {
	return s.transition(ctx, learner, id, models.ActionCancel, nil, nil)
}

// UpdateSession lets the owning tutor set the meeting link and private notes
// of an open booking.
func (s *BookingService) UpdateSession(ctx context.Context, tutor Actor, id string, req models.UpdateSessionRequest) (*models.BookingDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid session payload")
	}
	if req.MeetingLink == nil && req.Notes == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "nothing to update")
	}
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "booking not found", "failed to load booking")
	}
	if booking.TutorID != tutor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the booked tutor can edit this session")
	}
	if booking.Status == models.BookingCancelled || booking.Status == models.BookingCompleted {
		return nil, appErrors.Clone(appErrors.ErrUnprocessable, "booking is closed")
	}

	now := s.now()
	if err := s.repo.UpdateSession(ctx, id, req.MeetingLink, req.Notes, now); err != nil {
		return nil, internalError(err, "failed to update session")
	}
	linkChanged := req.MeetingLink != nil && (booking.MeetingLink == nil || *booking.MeetingLink != *req.MeetingLink)
	if req.MeetingLink != nil {
		booking.MeetingLink = req.MeetingLink
	}
	if req.Notes != nil {
		booking.Notes = req.Notes
	}
	booking.UpdatedAt = now
	if linkChanged {
		s.notify(ctx, "session_updated", *booking)
	}
	out := s.detail(*booking, tutor)
	return &out, nil
}

func (s *BookingService) transition(ctx context.Context, actor Actor, id string, action models.BookingAction, reason *string, precheck func(models.Booking) error) (detail *models.BookingDetail, err error) {
	defer func() { s.record(string(action), err) }()

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "booking not found", "failed to load booking")
	}
	owner := booking.TutorID
	if action == models.ActionCancel {
		owner = booking.LearnerID
	}
	if actor.ID != owner {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "booking belongs to another user")
	}

	from, to := action.Transition()
	if booking.Status != from || !models.CanTransitionBooking(from, to) {
		terr := &models.BookingTransitionError{From: booking.Status, To: to}
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrInvalidTransition, terr.Error()), terr)
	}
	if precheck != nil {
		if err := precheck(*booking); err != nil {
			return nil, err
		}
	}

	now := s.now()
	applied, err := s.repo.TransitionStatus(ctx, repository.StatusChange{ID: id, From: from, To: to, At: now, DeclineReason: reason})
	if err != nil {
		return nil, internalError(err, "failed to update booking")
	}
	if !applied {
		return nil, appErrors.Clone(appErrors.ErrConflict, "booking was updated by another request")
	}

	booking.Status = to
	booking.UpdatedAt = now
	if reason != nil {
		booking.DeclineReason = reason
	}
	if to == models.BookingCompleted {
		booking.CompletedAt = &now
		if s.earnings != nil {
			s.earnings.InvalidateTutor(ctx, booking.TutorID)
		}
	}

	s.logger.Info("booking status changed", zap.String("booking_id", id), zap.String("from", string(from)), zap.String("to", string(to)))
	s.notify(ctx, string(action), *booking)
	out := s.detail(*booking, actor)
	return &out, nil
}

func (s *BookingService) detail(b models.Booking, viewer Actor) models.BookingDetail {
	if viewer.ID != b.TutorID && viewer.Role != string(models.RoleAdmin) {
		b = b.RedactedForLearner()
	}
	display := models.DisplayStatus(b.Status)
	if window, err := b.Window(); err == nil {
		display = models.DeriveDisplayStatus(b.Status, s.now(), window)
	} else {
		s.logger.Warn("cannot derive booking window", zap.String("booking_id", b.ID), zap.Error(err))
	}
	return models.BookingDetail{Booking: b, DisplayStatus: display}
}

func (s *BookingService) notify(ctx context.Context, action string, booking models.Booking) {
	if s.notifier != nil {
		s.notifier.BookingChanged(ctx, action, booking)
	}
}

func (s *BookingService) record(action string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = appErrors.FromError(err).Code
	}
	s.metrics.RecordBookingAction(action, outcome)
}
