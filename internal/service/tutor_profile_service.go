package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type tutorProfileRepository interface {
	FindByUserID(ctx context.Context, userID string) (*models.TutorProfile, error)
	Upsert(ctx context.Context, profile *models.TutorProfile) error
	List(ctx context.Context, filter models.TutorFilter) ([]models.TutorProfile, int, error)
}

const (
	defaultTutorPageSize = 20
	maxTutorPageSize     = 100
)

// TutorProfileService manages public tutor listings.
type TutorProfileService struct {
	repo      tutorProfileRepository
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewTutorProfileService constructs the service.
func NewTutorProfileService(repo tutorProfileRepository, validate *validator.Validate, logger *zap.Logger) *TutorProfileService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TutorProfileService{repo: repo, validator: validate, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Get returns a tutor profile. Inactive profiles are only visible to their owner.
func (s *TutorProfileService) Get(ctx context.Context, userID string, viewer Actor) (*models.TutorProfile, error) {
	profile, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "tutor not found", "failed to load tutor profile")
	}
	if !profile.Active && viewer.ID != userID && viewer.Role != string(models.RoleAdmin) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "tutor not found")
	}
	return profile, nil
}

// Upsert creates or updates the caller's own profile.
// Text fields are trimmed and subjects deduplicated case-insensitively with
// blanks dropped before validation.
func (s *TutorProfileService) Upsert(ctx context.Context, tutorID string, req models.UpsertTutorProfileRequest) (*models.TutorProfile, error) {
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	req.Bio = strings.TrimSpace(req.Bio)
	req.TimeZone = strings.TrimSpace(req.TimeZone)
	req.Subjects = normaliseSubjects(req.Subjects)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid tutor profile payload")
	}
	timeZone := req.TimeZone
	if timeZone == "" {
		timeZone = models.DefaultTimeZone
	}
	if _, err := time.LoadLocation(timeZone); err != nil {
		return nil, validationError(err, "unknown time zone")
	}
	subjects := req.Subjects

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	now := s.now()
	profile := &models.TutorProfile{
		UserID:      tutorID,
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		Subjects:    subjects,
		HourlyRate:  req.HourlyRate,
		TimeZone:    timeZone,
		Active:      active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Upsert(ctx, profile); err != nil {
		return nil, internalError(err, "failed to save tutor profile")
	}
	s.logger.Info("tutor profile saved", zap.String("tutor_id", tutorID))
	return profile, nil
}

// List returns active tutors matching filter.
func (s *TutorProfileService) List(ctx context.Context, filter models.TutorFilter) ([]models.TutorProfile, *models.Pagination, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = defaultTutorPageSize
	}
	if filter.PageSize > maxTutorPageSize {
		filter.PageSize = maxTutorPageSize
	}
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Subject = strings.TrimSpace(filter.Subject)

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list tutors")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

func normaliseSubjects(raw []string) []string {
	subjects := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, subject := range raw {
		subject = strings.TrimSpace(subject)
		key := strings.ToLower(subject)
		if subject == "" || seen[key] {
			continue
		}
		seen[key] = true
		subjects = append(subjects, subject)
	}
	return subjects
}
