package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

// AvailabilityRepository stores each tutor's weekly schedule as one JSON
// document guarded by a version counter.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs the repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

type scheduleRow struct {
	TutorID   string         `db:"tutor_id"`
	TimeZone  string         `db:"time_zone"`
	Days      types.JSONText `db:"days"`
	Version   int            `db:"version"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (row scheduleRow) toModel() (*models.WeeklySchedule, error) {
	schedule := &models.WeeklySchedule{
		TutorID:  row.TutorID,
		TimeZone: row.TimeZone,
		Version:  row.Version,
	}
	if err := row.Days.Unmarshal(&schedule.Days); err != nil {
		return nil, fmt.Errorf("decode schedule for %s: %w", row.TutorID, err)
	}
	created, updated := row.CreatedAt, row.UpdatedAt
	schedule.CreatedAt = &created
	schedule.UpdatedAt = &updated
	return schedule, nil
}

// GetByTutor returns the stored schedule or sql.ErrNoRows.
func (r *AvailabilityRepository) GetByTutor(ctx context.Context, tutorID string) (*models.WeeklySchedule, error) {
	const query = `SELECT tutor_id, time_zone, days, version, created_at, updated_at FROM availability_schedules WHERE tutor_id = $1`
	var row scheduleRow
	if err := r.db.GetContext(ctx, &row, query, tutorID); err != nil {
		if isNoRows(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return row.toModel()
}

// Save writes the whole schedule if the stored version still equals
// expectedVersion. Version 0 means no document exists yet. On success the
// schedule carries its new version and timestamps; a lost race yields
// ErrStaleVersion and leaves the stored document untouched.
func (r *AvailabilityRepository) Save(ctx context.Context, schedule *models.WeeklySchedule, expectedVersion int) error {
	days, err := json.Marshal(schedule.Days)
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}
	now := time.Now().UTC()

	var row scheduleRow
	if expectedVersion == 0 {
		const insertQuery = `INSERT INTO availability_schedules (tutor_id, time_zone, days, version, created_at, updated_at)
		VALUES ($1, $2, $3, 1, $4, $4)
		ON CONFLICT (tutor_id) DO NOTHING
		RETURNING tutor_id, time_zone, days, version, created_at, updated_at`
		err = r.db.GetContext(ctx, &row, insertQuery, schedule.TutorID, schedule.TimeZone, types.JSONText(days), now)
	} else {
		const updateQuery = `UPDATE availability_schedules
		SET time_zone = $3, days = $4, version = version + 1, updated_at = $5
		WHERE tutor_id = $1 AND version = $2
		RETURNING tutor_id, time_zone, days, version, created_at, updated_at`
		err = r.db.GetContext(ctx, &row, updateQuery, schedule.TutorID, expectedVersion, schedule.TimeZone, types.JSONText(days), now)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrStaleVersion
		}
		return fmt.Errorf("save schedule: %w", err)
	}

	schedule.Version = row.Version
	created, updated := row.CreatedAt, row.UpdatedAt
	schedule.CreatedAt = &created
	schedule.UpdatedAt = &updated
	return nil
}
