package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

var tutorProfileRowColumns = []string{"user_id", "display_name", "bio", "subjects", "hourly_rate_cents", "time_zone", "active", "created_at", "updated_at"}

func TestTutorProfileRepositoryUpsertAndFind(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTutorProfileRepository(db)

	mock.ExpectExec("INSERT INTO tutor_profiles").
		WithArgs("tutor-1", "Ada", "", sqlmock.AnyArg(), int64(4000), "UTC", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Upsert(context.Background(), &models.TutorProfile{
		UserID:      "tutor-1",
		DisplayName: "Ada",
		Subjects:    []string{"math"},
		HourlyRate:  models.MoneyFromFloat(40),
		TimeZone:    "UTC",
		Active:      true,
	})
	require.NoError(t, err)

	now := time.Now()
	rows := sqlmock.NewRows(tutorProfileRowColumns).
		AddRow("tutor-1", "Ada", "", "{math,physics}", int64(4000), "UTC", true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM tutor_profiles WHERE user_id = $1")).
		WithArgs("tutor-1").
		WillReturnRows(rows)

	profile, err := repo.FindByUserID(context.Background(), "tutor-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"math", "physics"}, []string(profile.Subjects))
	assert.Equal(t, models.MoneyFromFloat(40), profile.HourlyRate)
	assert.True(t, profile.Bookable())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTutorProfileRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTutorProfileRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(tutorProfileRowColumns).
		AddRow("tutor-1", "Ada", "calculus", "{math}", int64(4000), "UTC", true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM tutor_profiles WHERE active = TRUE AND (LOWER(display_name) LIKE $1 OR LOWER(bio) LIKE $1) AND $2 = ANY(subjects) ORDER BY display_name ASC, user_id ASC LIMIT 10 OFFSET 10")).
		WithArgs("%calc%", "math").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM tutor_profiles WHERE active = TRUE")).
		WithArgs("%calc%", "math").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	profiles, total, err := repo.List(context.Background(), models.TutorFilter{Search: "Calc", Subject: "math", Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
