package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type availabilityServiceMock struct {
	schedule    *models.WeeklySchedule
	err         error
	lastTutor   string
	lastVersion *int
	lastSlotID  string
	lastDay     string
	lastAdd     models.AddSlotRequest
	lastClear   models.ClearScheduleRequest
}

func (m *availabilityServiceMock) Get(ctx context.Context, tutorID string) (*models.WeeklySchedule, error) {
	m.lastTutor = tutorID
	return m.schedule, m.err
}

func (m *availabilityServiceMock) Replace(ctx context.Context, tutorID string, req models.ReplaceScheduleRequest) (*models.WeeklySchedule, error) {
	m.lastTutor, m.lastVersion = tutorID, req.Version
	return m.schedule, m.err
}

func (m *availabilityServiceMock) AddSlot(ctx context.Context, tutorID string, req models.AddSlotRequest) (*models.WeeklySchedule, error) {
	m.lastTutor, m.lastVersion, m.lastAdd = tutorID, req.Version, req
	return m.schedule, m.err
}

func (m *availabilityServiceMock) DeleteSlot(ctx context.Context, tutorID, slotID string, version *int) (*models.WeeklySchedule, error) {
	m.lastTutor, m.lastSlotID, m.lastVersion = tutorID, slotID, version
	return m.schedule, m.err
}

func (m *availabilityServiceMock) ToggleDay(ctx context.Context, tutorID, day string, version *int) (*models.WeeklySchedule, error) {
	m.lastTutor, m.lastDay, m.lastVersion = tutorID, day, version
	return m.schedule, m.err
}

func (m *availabilityServiceMock) CopyDay(ctx context.Context, tutorID, source string, req models.CopyDayRequest) (*models.WeeklySchedule, error) {
	m.lastTutor, m.lastDay, m.lastVersion = tutorID, source, req.Version
	return m.schedule, m.err
}

func (m *availabilityServiceMock) Clear(ctx context.Context, tutorID string, req models.ClearScheduleRequest) (*models.WeeklySchedule, error) {
	m.lastTutor, m.lastVersion, m.lastClear = tutorID, req.Version, req
	return m.schedule, m.err
}

func TestAvailabilityHandlerGetSetsETag(t *testing.T) {
	mockSvc := &availabilityServiceMock{schedule: &models.WeeklySchedule{TutorID: "t1", Version: 4}}
	handler := NewAvailabilityHandler(mockSvc)

	c, w := newTestContext(http.MethodGet, "/me/availability", "", tutorClaims)
	handler.Get(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `"4"`, w.Header().Get("ETag"))
	assert.Equal(t, "t1", mockSvc.lastTutor)
}

func TestAvailabilityHandlerAddSlotVersionSources(t *testing.T) {
	mockSvc := &availabilityServiceMock{schedule: &models.WeeklySchedule{Version: 3}}
	handler := NewAvailabilityHandler(mockSvc)

	c, w := newTestContext(http.MethodPost, "/me/availability/slots", `{"day":"monday","start_time":"09:00","end_time":"10:00","version":2}`, tutorClaims)
	c.Request.Header.Set("If-Match", `"7"`)
	handler.AddSlot(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, mockSvc.lastVersion)
	assert.Equal(t, 2, *mockSvc.lastVersion)
	assert.Equal(t, "09:00", mockSvc.lastAdd.StartTime)

	c, w = newTestContext(http.MethodPost, "/me/availability/slots", `{"day":"monday","start_time":"09:00","end_time":"10:00"}`, tutorClaims)
	c.Request.Header.Set("If-Match", `W/"7"`)
	handler.AddSlot(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, mockSvc.lastVersion)
	assert.Equal(t, 7, *mockSvc.lastVersion)
}

func TestAvailabilityHandlerDeleteSlotQueryVersion(t *testing.T) {
	mockSvc := &availabilityServiceMock{schedule: &models.WeeklySchedule{Version: 2}}
	handler := NewAvailabilityHandler(mockSvc)

	c, w := newTestContext(http.MethodDelete, "/me/availability/slots/s1?version=1", "", tutorClaims)
	c.Params = gin.Params{{Key: "slotId", Value: "s1"}}
	handler.DeleteSlot(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s1", mockSvc.lastSlotID)
	require.NotNil(t, mockSvc.lastVersion)
	assert.Equal(t, 1, *mockSvc.lastVersion)

	c, w = newTestContext(http.MethodDelete, "/me/availability/slots/s1?version=abc", "", tutorClaims)
	c.Params = gin.Params{{Key: "slotId", Value: "s1"}}
	handler.DeleteSlot(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAvailabilityHandlerToggleWithoutBody(t *testing.T) {
	mockSvc := &availabilityServiceMock{schedule: &models.WeeklySchedule{Version: 1}}
	handler := NewAvailabilityHandler(mockSvc)

	c, w := newTestContext(http.MethodPost, "/me/availability/days/friday/toggle", "", tutorClaims)
	c.Params = gin.Params{{Key: "day", Value: "friday"}}
	handler.ToggleDay(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "friday", mockSvc.lastDay)
	assert.Nil(t, mockSvc.lastVersion)
}

func TestAvailabilityHandlerStaleVersion(t *testing.T) {
	stale := appErrors.WithDetails(appErrors.ErrStaleVersion, map[string]int{"current_version": 5})
	handler := NewAvailabilityHandler(&availabilityServiceMock{err: stale})

	c, w := newTestContext(http.MethodPost, "/me/availability/days/monday/copy", `{"targets":["tuesday"],"version":4}`, tutorClaims)
	c.Params = gin.Params{{Key: "day", Value: "monday"}}
	handler.CopyDay(c)

	require.Equal(t, http.StatusConflict, w.Code)
	payload := decodeEnvelope(t, w)
	errBody := payload["error"].(map[string]interface{})
	assert.Equal(t, "STALE_VERSION", errBody["code"])
	assert.Equal(t, float64(5), errBody["details"].(map[string]interface{})["current_version"])
}

func TestAvailabilityHandlerClearRequiresTutor(t *testing.T) {
	handler := NewAvailabilityHandler(&availabilityServiceMock{})

	c, w := newTestContext(http.MethodPost, "/me/availability/clear", `{"confirm":true}`, nil)
	handler.Clear(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
