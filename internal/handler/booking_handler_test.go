package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/middleware"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/service"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type bookingServiceMock struct {
	detail      *models.BookingDetail
	err         error
	lastActor   service.Actor
	lastID      string
	lastQuery   service.BookingListQuery
	lastCreate  models.CreateBookingRequest
	lastConfirm models.ConfirmRequest
	lastDecline models.DeclineBookingRequest
	calls       []string
}

func (m *bookingServiceMock) Create(ctx context.Context, learner service.Actor, req models.CreateBookingRequest) (*models.BookingDetail, error) {
	m.calls = append(m.calls, "create")
	m.lastActor, m.lastCreate = learner, req
	return m.detail, m.err
}

func (m *bookingServiceMock) Get(ctx context.Context, viewer service.Actor, id string) (*models.BookingDetail, error) {
	m.calls = append(m.calls, "get")
	m.lastActor, m.lastID = viewer, id
	return m.detail, m.err
}

func (m *bookingServiceMock) List(ctx context.Context, viewer service.Actor, q service.BookingListQuery) ([]models.BookingDetail, *models.Pagination, error) {
	m.calls = append(m.calls, "list")
	m.lastActor, m.lastQuery = viewer, q
	if m.err != nil {
		return nil, nil, m.err
	}
	return []models.BookingDetail{*m.detail}, &models.Pagination{PageSize: 20, NextCursor: "next"}, nil
}

func (m *bookingServiceMock) Accept(ctx context.Context, tutor service.Actor, id string, req models.ConfirmRequest) (*models.BookingDetail, error) {
	m.calls = append(m.calls, "accept")
	m.lastActor, m.lastID, m.lastConfirm = tutor, id, req
	return m.detail, m.err
}

func (m *bookingServiceMock) Decline(ctx context.Context, tutor service.Actor, id string, req models.DeclineBookingRequest) (*models.BookingDetail, error) {
	m.calls = append(m.calls, "decline")
	m.lastActor, m.lastID, m.lastDecline = tutor, id, req
	return m.detail, m.err
}

func (m *bookingServiceMock) Complete(ctx context.Context, tutor service.Actor, id string, req models.ConfirmRequest) (*models.BookingDetail, error) {
	m.calls = append(m.calls, "complete")
	m.lastActor, m.lastID, m.lastConfirm = tutor, id, req
	return m.detail, m.err
}

func (m *bookingServiceMock) CancelByLearner(ctx context.Context, learner service.Actor, id string) (*models.BookingDetail, error) {
	m.calls = append(m.calls, "cancel")
	m.lastActor, m.lastID = learner, id
	return m.detail, m.err
}

func (m *bookingServiceMock) UpdateSession(ctx context.Context, tutor service.Actor, id string, req models.UpdateSessionRequest) (*models.BookingDetail, error) {
	m.calls = append(m.calls, "session")
	m.lastActor, m.lastID = tutor, id
	return m.detail, m.err
}

func newTestContext(method, target, body string, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body == "" {
		req, _ = http.NewRequest(method, target, nil)
	} else {
		req, _ = http.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	return payload
}

var (
	learnerClaims = &models.JWTClaims{UserID: "l1", Role: models.RoleLearner}
	tutorClaims   = &models.JWTClaims{UserID: "t1", Role: models.RoleTutor}
	adminClaims   = &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}
)

const (
	sampleBookingID    = "6d4f3c1e-8a2b-4f57-9c1d-2e7b5a9f0c31"
	sampleWithdrawalID = "0b9e7d52-3c6a-4d8f-a1e2-7f4c9b6d5a10"
	sampleTutorID      = "9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d"
)

func sampleDetail() *models.BookingDetail {
	return &models.BookingDetail{
		Booking:       models.Booking{ID: "b1", TutorID: "t1", LearnerID: "l1", Status: models.BookingPending},
		DisplayStatus: models.DisplayPending,
	}
}

func TestBookingHandlerCreate(t *testing.T) {
	mockSvc := &bookingServiceMock{detail: sampleDetail()}
	handler := NewBookingHandler(mockSvc)

	body := `{"tutor_id":"t1","date":"2026-03-02","time":"09:00","duration_hours":1.5,"session_type":"exam_prep","topic":"Algebra"}`
	c, w := newTestContext(http.MethodPost, "/bookings", body, learnerClaims)
	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "l1", mockSvc.lastActor.ID)
	assert.Equal(t, "LEARNER", mockSvc.lastActor.Role)
	assert.Equal(t, 1.5, mockSvc.lastCreate.DurationHours)
	assert.Equal(t, models.SessionExamPrep, mockSvc.lastCreate.SessionType)
}

func TestBookingHandlerCreateRejectsAnonymousAndBadBody(t *testing.T) {
	mockSvc := &bookingServiceMock{detail: sampleDetail()}
	handler := NewBookingHandler(mockSvc)

	c, w := newTestContext(http.MethodPost, "/bookings", `{}`, nil)
	handler.Create(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newTestContext(http.MethodPost, "/bookings", `{"tutor_id":`, learnerClaims)
	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mockSvc.calls)
}

func TestBookingHandlerCreateConflictDetails(t *testing.T) {
	conflict := appErrors.WithDetails(appErrors.Clone(appErrors.ErrConflict, "slot already booked"),
		models.AvailabilityResult{Verdict: models.VerdictConflict, ConflictBookingID: "b0"})
	handler := NewBookingHandler(&bookingServiceMock{err: conflict})

	body := `{"tutor_id":"t1","date":"2026-03-02","time":"09:00","duration_hours":1,"topic":"Algebra"}`
	c, w := newTestContext(http.MethodPost, "/bookings", body, learnerClaims)
	handler.Create(c)

	require.Equal(t, http.StatusConflict, w.Code)
	payload := decodeEnvelope(t, w)
	errBody := payload["error"].(map[string]interface{})
	assert.Equal(t, "CONFLICT", errBody["code"])
	details := errBody["details"].(map[string]interface{})
	assert.Equal(t, "b0", details["conflict_booking_id"])
}

func TestBookingHandlerListParsesQuery(t *testing.T) {
	mockSvc := &bookingServiceMock{detail: sampleDetail()}
	handler := NewBookingHandler(mockSvc)

	c, w := newTestContext(http.MethodGet, "/bookings?status=pending,%20confirmed,&cursor=abc&limit=5", "", tutorClaims)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"pending", "confirmed"}, mockSvc.lastQuery.Statuses)
	assert.Equal(t, "abc", mockSvc.lastQuery.Cursor)
	assert.Equal(t, 5, mockSvc.lastQuery.Limit)

	payload := decodeEnvelope(t, w)
	pagination := payload["pagination"].(map[string]interface{})
	assert.Equal(t, "next", pagination["next_cursor"])
}

func TestBookingHandlerLifecycleActions(t *testing.T) {
	mockSvc := &bookingServiceMock{detail: sampleDetail()}
	handler := NewBookingHandler(mockSvc)

	c, w := newTestContext(http.MethodPost, "/bookings/b1/accept", `{"confirm":true}`, tutorClaims)
	c.Params = gin.Params{{Key: "id", Value: sampleBookingID}}
	handler.Accept(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.lastConfirm.Confirm)
	assert.Equal(t, sampleBookingID, mockSvc.lastID)

	c, w = newTestContext(http.MethodPost, "/bookings/b1/decline", "", tutorClaims)
	c.Params = gin.Params{{Key: "id", Value: sampleBookingID}}
	handler.Decline(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", mockSvc.lastDecline.Reason)

	c, w = newTestContext(http.MethodPost, "/bookings/b1/complete", `{"confirm":false}`, tutorClaims)
	c.Params = gin.Params{{Key: "id", Value: sampleBookingID}}
	handler.Complete(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, mockSvc.lastConfirm.Confirm)

	c, w = newTestContext(http.MethodPost, "/bookings/b1/cancel", "", learnerClaims)
	c.Params = gin.Params{{Key: "id", Value: sampleBookingID}}
	handler.Cancel(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "l1", mockSvc.lastActor.ID)

	assert.Equal(t, []string{"accept", "decline", "complete", "cancel"}, mockSvc.calls)
}

func TestBookingHandlerMapsServiceErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"confirmation", appErrors.Clone(appErrors.ErrConfirmation, "confirm to accept"), http.StatusPreconditionRequired},
		{"transition", appErrors.Clone(appErrors.ErrInvalidTransition, "not pending"), http.StatusConflict},
		{"forbidden", appErrors.Clone(appErrors.ErrForbidden, "not your booking"), http.StatusForbidden},
		{"not found", appErrors.Clone(appErrors.ErrNotFound, "booking not found"), http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewBookingHandler(&bookingServiceMock{err: tc.err})
			c, w := newTestContext(http.MethodPost, "/bookings/b1/accept", `{}`, tutorClaims)
			c.Params = gin.Params{{Key: "id", Value: sampleBookingID}}
			handler.Accept(c)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestBookingHandlerUpdateSession(t *testing.T) {
	mockSvc := &bookingServiceMock{detail: sampleDetail()}
	handler := NewBookingHandler(mockSvc)

	c, w := newTestContext(http.MethodPatch, "/bookings/b1/session", `{"meeting_link":"https://meet.example.com/x"}`, tutorClaims)
	c.Params = gin.Params{{Key: "id", Value: sampleBookingID}}
	handler.UpdateSession(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"session"}, mockSvc.calls)
}

func TestBookingHandlerRejectsMalformedID(t *testing.T) {
	mockSvc := &bookingServiceMock{detail: sampleDetail()}
	handler := NewBookingHandler(mockSvc)

	for _, raw := range []string{"abc", "b1", "6d4f3c1e-8a2b-4f57-9c1d"} {
		c, w := newTestContext(http.MethodGet, "/bookings/"+raw, "", tutorClaims)
		c.Params = gin.Params{{Key: "id", Value: raw}}
		handler.Get(c)

		require.Equal(t, http.StatusNotFound, w.Code, raw)
		errBody := decodeEnvelope(t, w)["error"].(map[string]interface{})
		assert.Equal(t, "NOT_FOUND", errBody["code"])
	}

	c, w := newTestContext(http.MethodPost, "/bookings/abc/accept", `{"confirm":true}`, tutorClaims)
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	handler.Accept(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, mockSvc.calls)
}
