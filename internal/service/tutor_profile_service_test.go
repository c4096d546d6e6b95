package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type memoryProfileRepo struct {
	profiles   map[string]*models.TutorProfile
	upsertErr  error
	lastFilter models.TutorFilter
}

func (m *memoryProfileRepo) FindByUserID(ctx context.Context, userID string) (*models.TutorProfile, error) {
	p, ok := m.profiles[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *p
	return &copied, nil
}

func (m *memoryProfileRepo) Upsert(ctx context.Context, profile *models.TutorProfile) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	copied := *profile
	m.profiles[profile.UserID] = &copied
	return nil
}

func (m *memoryProfileRepo) List(ctx context.Context, filter models.TutorFilter) ([]models.TutorProfile, int, error) {
	m.lastFilter = filter
	var items []models.TutorProfile
	for _, p := range m.profiles {
		if p.Active {
			items = append(items, *p)
		}
	}
	return items, len(items), nil
}

func newProfileFixture() (*TutorProfileService, *memoryProfileRepo) {
	repo := &memoryProfileRepo{profiles: map[string]*models.TutorProfile{
		"t1": {UserID: "t1", DisplayName: "Ana", HourlyRate: 4000, TimeZone: "UTC", Active: true},
		"t2": {UserID: "t2", DisplayName: "Ben", HourlyRate: 3000, TimeZone: "UTC", Active: false},
	}}
	svc := NewTutorProfileService(repo, nil, nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return svc, repo
}

func TestTutorProfileGetHidesInactiveFromOthers(t *testing.T) {
	svc, _ := newProfileFixture()
	ctx := context.Background()

	_, err := svc.Get(ctx, "t2", Actor{ID: "l1", Role: string(models.RoleLearner)})
	assertCode(t, appErrors.ErrNotFound, err)

	_, err = svc.Get(ctx, "t2", Actor{})
	assertCode(t, appErrors.ErrNotFound, err)

	own, err := svc.Get(ctx, "t2", Actor{ID: "t2", Role: string(models.RoleTutor)})
	require.NoError(t, err)
	assert.Equal(t, "Ben", own.DisplayName)

	asAdmin, err := svc.Get(ctx, "t2", Actor{ID: "a1", Role: string(models.RoleAdmin)})
	require.NoError(t, err)
	assert.False(t, asAdmin.Active)

	_, err = svc.Get(ctx, "missing", Actor{})
	assertCode(t, appErrors.ErrNotFound, err)
}

func TestTutorProfileUpsertNormalisesInput(t *testing.T) {
	svc, repo := newProfileFixture()

	profile, err := svc.Upsert(context.Background(), "t3", models.UpsertTutorProfileRequest{
		DisplayName: "  Cleo ",
		Subjects:    []string{"Math", " math ", "Physics", ""},
		HourlyRate:  models.MoneyFromFloat(35),
	})
	require.NoError(t, err)
	assert.Equal(t, "Cleo", profile.DisplayName)
	assert.Equal(t, []string{"Math", "Physics"}, []string(profile.Subjects))
	assert.Equal(t, models.DefaultTimeZone, profile.TimeZone)
	assert.True(t, profile.Active)
	assert.Contains(t, repo.profiles, "t3")

	paused := false
	profile, err = svc.Upsert(context.Background(), "t3", models.UpsertTutorProfileRequest{
		DisplayName: "Cleo",
		HourlyRate:  models.MoneyFromFloat(35),
		TimeZone:    "Europe/Berlin",
		Active:      &paused,
	})
	require.NoError(t, err)
	assert.False(t, profile.Active)
	assert.Equal(t, "Europe/Berlin", repo.profiles["t3"].TimeZone)

	// the subject limit applies after duplicates and blanks are dropped
	repeated := make([]string, 30)
	for i := range repeated {
		repeated[i] = " Math "
	}
	profile, err = svc.Upsert(context.Background(), "t3", models.UpsertTutorProfileRequest{
		DisplayName: "Cleo",
		Subjects:    append(repeated, "", "  "),
		HourlyRate:  models.MoneyFromFloat(35),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Math"}, []string(profile.Subjects))
}

func TestTutorProfileUpsertRejectsInvalidInput(t *testing.T) {
	svc, repo := newProfileFixture()
	ctx := context.Background()

	_, err := svc.Upsert(ctx, "t3", models.UpsertTutorProfileRequest{DisplayName: "Cleo"})
	assertCode(t, appErrors.ErrValidation, err)

	_, err = svc.Upsert(ctx, "t3", models.UpsertTutorProfileRequest{DisplayName: "Cleo", HourlyRate: 100, TimeZone: "Mars/Olympus"})
	assertCode(t, appErrors.ErrValidation, err)

	_, err = svc.Upsert(ctx, "t3", models.UpsertTutorProfileRequest{DisplayName: strings.Repeat("x", 121), HourlyRate: 100})
	assertCode(t, appErrors.ErrValidation, err)

	_, err = svc.Upsert(ctx, "t3", models.UpsertTutorProfileRequest{DisplayName: "   ", HourlyRate: 100})
	assertCode(t, appErrors.ErrValidation, err)

	many := make([]string, 21)
	for i := range many {
		many[i] = fmt.Sprintf("subject-%d", i)
	}
	_, err = svc.Upsert(ctx, "t3", models.UpsertTutorProfileRequest{DisplayName: "Cleo", HourlyRate: 100, Subjects: many})
	assertCode(t, appErrors.ErrValidation, err)

	repo.upsertErr = errors.New("connection reset")
	_, err = svc.Upsert(ctx, "t3", models.UpsertTutorProfileRequest{DisplayName: "Cleo", HourlyRate: 100})
	assertCode(t, appErrors.ErrInternal, err)
}

func TestTutorProfileListClampsPaging(t *testing.T) {
	svc, repo := newProfileFixture()

	items, page, err := svc.List(context.Background(), models.TutorFilter{Search: "  ana ", PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 100, page.PageSize)
	assert.Equal(t, 1, page.TotalCount)
	assert.Equal(t, "ana", repo.lastFilter.Search)

	_, page, err = svc.List(context.Background(), models.TutorFilter{Page: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, 20, page.PageSize)
}
