package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

type bookingService interface {
	Create(ctx context.Context, learner service.Actor, req models.CreateBookingRequest) (*models.BookingDetail, error)
	Get(ctx context.Context, viewer service.Actor, id string) (*models.BookingDetail, error)
	List(ctx context.Context, viewer service.Actor, q service.BookingListQuery) ([]models.BookingDetail, *models.Pagination, error)
	Accept(ctx context.Context, tutor service.Actor, id string, req models.ConfirmRequest) (*models.BookingDetail, error)
	Decline(ctx context.Context, tutor service.Actor, id string, req models.DeclineBookingRequest) (*models.BookingDetail, error)
	Complete(ctx context.Context, tutor service.Actor, id string, req models.ConfirmRequest) (*models.BookingDetail, error)
	CancelByLearner(ctx context.Context, learner service.Actor, id string) (*models.BookingDetail, error)
	UpdateSession(ctx context.Context, tutor service.Actor, id string, req models.UpdateSessionRequest) (*models.BookingDetail, error)
}

// BookingHandler serves booking requests for learners and tutors.
type BookingHandler struct {
	service bookingService
}

// NewBookingHandler builds a new handler.
func NewBookingHandler(service bookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// Create godoc
// @Summary Request a session
// @Tags Bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateBookingRequest true "Booking request"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid booking payload"))
		return
	}
	booking, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, booking)
}

// List godoc
// @Summary List own bookings
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param status query string false "Comma separated statuses"
// @Param cursor query string false "Page cursor"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /bookings [get]
func (h *BookingHandler) List(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	q := service.BookingListQuery{
		Cursor: c.Query("cursor"),
		Limit:  queryInt(c, "limit", 0),
	}
	for _, raw := range strings.Split(c.Query("status"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			q.Statuses = append(q.Statuses, raw)
		}
	}
	items, pagination, err := h.service.List(c.Request.Context(), actor, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get a booking
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /bookings/{id} [get]
func (h *BookingHandler) Get(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "booking")
	if !ok {
		return
	}
	booking, err := h.service.Get(c.Request.Context(), actor, id)
	respondBooking(c, booking, err)
}

// Accept godoc
// @Summary Accept a pending booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Param payload body models.ConfirmRequest true "Confirmation"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 428 {object} response.Envelope
// @Router /bookings/{id}/accept [post]
func (h *BookingHandler) Accept(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "booking")
	if !ok {
		return
	}
	var req models.ConfirmRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	booking, err := h.service.Accept(c.Request.Context(), actor, id, req)
	respondBooking(c, booking, err)
}

// Decline godoc
// @Summary Decline a pending booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Param payload body models.DeclineBookingRequest false "Reason"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings/{id}/decline [post]
func (h *BookingHandler) Decline(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "booking")
	if !ok {
		return
	}
	var req models.DeclineBookingRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	booking, err := h.service.Decline(c.Request.Context(), actor, id, req)
	respondBooking(c, booking, err)
}

// Complete godoc
// @Summary Mark a confirmed booking as completed
// @Tags Bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Param payload body models.ConfirmRequest true "Confirmation"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 428 {object} response.Envelope
// @Router /bookings/{id}/complete [post]
func (h *BookingHandler) Complete(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "booking")
	if !ok {
		return
	}
	var req models.ConfirmRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	booking, err := h.service.Complete(c.Request.Context(), actor, id, req)
	respondBooking(c, booking, err)
}

// Cancel godoc
// @Summary Cancel an own pending booking
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "booking")
	if !ok {
		return
	}
	booking, err := h.service.CancelByLearner(c.Request.Context(), actor, id)
	respondBooking(c, booking, err)
}

// UpdateSession godoc
// @Summary Update meeting link or notes
// @Tags Bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Param payload body models.UpdateSessionRequest true "Session details"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id}/session [patch]
func (h *BookingHandler) UpdateSession(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "booking")
	if !ok {
		return
	}
	var req models.UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid session payload"))
		return
	}
	booking, err := h.service.UpdateSession(c.Request.Context(), actor, id, req)
	respondBooking(c, booking, err)
}

func respondBooking(c *gin.Context, booking *models.BookingDetail, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}
