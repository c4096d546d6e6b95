package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

// TutorProfileRepository persists public tutor profiles.
type TutorProfileRepository struct {
	db *sqlx.DB
}

// NewTutorProfileRepository constructs the repository.
func NewTutorProfileRepository(db *sqlx.DB) *TutorProfileRepository {
	return &TutorProfileRepository{db: db}
}

const tutorProfileColumns = `user_id, display_name, bio, subjects, hourly_rate_cents, time_zone, active, created_at, updated_at`

// FindByUserID returns the profile owned by userID.
func (r *TutorProfileRepository) FindByUserID(ctx context.Context, userID string) (*models.TutorProfile, error) {
	query := `SELECT ` + tutorProfileColumns + ` FROM tutor_profiles WHERE user_id = $1`
	var profile models.TutorProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if isNoRows(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find tutor profile: %w", err)
	}
	return &profile, nil
}

// Upsert creates or replaces a tutor profile.
func (r *TutorProfileRepository) Upsert(ctx context.Context, profile *models.TutorProfile) error {
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	if profile.Subjects == nil {
		profile.Subjects = []string{}
	}

	const query = `INSERT INTO tutor_profiles (user_id, display_name, bio, subjects, hourly_rate_cents, time_zone, active, created_at, updated_at)
		VALUES (:user_id, :display_name, :bio, :subjects, :hourly_rate_cents, :time_zone, :active, :created_at, :updated_at)
		ON CONFLICT (user_id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    bio = EXCLUDED.bio,
		    subjects = EXCLUDED.subjects,
		    hourly_rate_cents = EXCLUDED.hourly_rate_cents,
		    time_zone = EXCLUDED.time_zone,
		    active = EXCLUDED.active,
		    updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("upsert tutor profile: %w", err)
	}
	return nil
}

// List returns active profiles matching filter with the total count.
func (r *TutorProfileRepository) List(ctx context.Context, filter models.TutorFilter) ([]models.TutorProfile, int, error) {
	baseQuery := `FROM tutor_profiles WHERE active = TRUE`
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(display_name) LIKE $%d OR LOWER(bio) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(subjects)", len(args)+1))
		args = append(args, filter.Subject)
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf("SELECT %s %s ORDER BY display_name ASC, user_id ASC LIMIT %d OFFSET %d", tutorProfileColumns, baseQuery, pageSize, offset)
	var profiles []models.TutorProfile
	if err := r.db.SelectContext(ctx, &profiles, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list tutor profiles: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count tutor profiles: %w", err)
	}
	return profiles, total, nil
}
