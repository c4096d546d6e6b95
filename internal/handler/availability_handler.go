package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

type availabilityService interface {
	Get(ctx context.Context, tutorID string) (*models.WeeklySchedule, error)
	Replace(ctx context.Context, tutorID string, req models.ReplaceScheduleRequest) (*models.WeeklySchedule, error)
	AddSlot(ctx context.Context, tutorID string, req models.AddSlotRequest) (*models.WeeklySchedule, error)
	DeleteSlot(ctx context.Context, tutorID, slotID string, version *int) (*models.WeeklySchedule, error)
	ToggleDay(ctx context.Context, tutorID, day string, version *int) (*models.WeeklySchedule, error)
	CopyDay(ctx context.Context, tutorID, source string, req models.CopyDayRequest) (*models.WeeklySchedule, error)
	Clear(ctx context.Context, tutorID string, req models.ClearScheduleRequest) (*models.WeeklySchedule, error)
}

// AvailabilityHandler exposes the tutor's schedule editor. Every mutation
// returns the saved schedule with its new version.
type AvailabilityHandler struct {
	service availabilityService
}

// NewAvailabilityHandler builds a new handler.
func NewAvailabilityHandler(service availabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: service}
}

// Get godoc
// @Summary Load own weekly schedule
// @Tags Availability
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /me/availability [get]
func (h *AvailabilityHandler) Get(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	schedule, err := h.service.Get(c.Request.Context(), actor.ID)
	h.respond(c, schedule, err)
}

// Replace godoc
// @Summary Replace own weekly schedule
// @Tags Availability
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.ReplaceScheduleRequest true "Schedule"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /me/availability [put]
func (h *AvailabilityHandler) Replace(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.ReplaceScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid schedule payload"))
		return
	}
	version, err := expectedVersion(c, req.Version)
	if err != nil {
		response.Error(c, err)
		return
	}
	req.Version = version
	schedule, err := h.service.Replace(c.Request.Context(), actor.ID, req)
	h.respond(c, schedule, err)
}

// AddSlot godoc
// @Summary Add a time slot
// @Tags Availability
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.AddSlotRequest true "Slot"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /me/availability/slots [post]
func (h *AvailabilityHandler) AddSlot(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.AddSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid slot payload"))
		return
	}
	version, err := expectedVersion(c, req.Version)
	if err != nil {
		response.Error(c, err)
		return
	}
	req.Version = version
	schedule, err := h.service.AddSlot(c.Request.Context(), actor.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, schedule)
}

// DeleteSlot godoc
// @Summary Delete a time slot
// @Tags Availability
// @Produce json
// @Security BearerAuth
// @Param slotId path string true "Slot ID"
// @Param version query int false "Expected schedule version"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /me/availability/slots/{slotId} [delete]
func (h *AvailabilityHandler) DeleteSlot(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	version, err := expectedVersion(c, nil)
	if err != nil {
		response.Error(c, err)
		return
	}
	schedule, err := h.service.DeleteSlot(c.Request.Context(), actor.ID, c.Param("slotId"), version)
	h.respond(c, schedule, err)
}

// ToggleDay godoc
// @Summary Toggle a day's availability
// @Tags Availability
// @Produce json
// @Security BearerAuth
// @Param day path string true "Weekday name"
// @Param version query int false "Expected schedule version"
// @Success 200 {object} response.Envelope
// @Router /me/availability/days/{day}/toggle [post]
func (h *AvailabilityHandler) ToggleDay(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.VersionedRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	version, err := expectedVersion(c, req.Version)
	if err != nil {
		response.Error(c, err)
		return
	}
	schedule, err := h.service.ToggleDay(c.Request.Context(), actor.ID, c.Param("day"), version)
	h.respond(c, schedule, err)
}

// CopyDay godoc
// @Summary Copy a day's slots to other days
// @Tags Availability
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param day path string true "Source weekday"
// @Param payload body models.CopyDayRequest true "Targets"
// @Success 200 {object} response.Envelope
// @Router /me/availability/days/{day}/copy [post]
func (h *AvailabilityHandler) CopyDay(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.CopyDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid copy payload"))
		return
	}
	version, err := expectedVersion(c, req.Version)
	if err != nil {
		response.Error(c, err)
		return
	}
	req.Version = version
	schedule, err := h.service.CopyDay(c.Request.Context(), actor.ID, c.Param("day"), req)
	h.respond(c, schedule, err)
}

// Clear godoc
// @Summary Clear the whole schedule
// @Tags Availability
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.ClearScheduleRequest true "Confirmation"
// @Success 200 {object} response.Envelope
// @Failure 428 {object} response.Envelope
// @Router /me/availability/clear [post]
func (h *AvailabilityHandler) Clear(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.ClearScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid clear payload"))
		return
	}
	version, err := expectedVersion(c, req.Version)
	if err != nil {
		response.Error(c, err)
		return
	}
	req.Version = version
	schedule, err := h.service.Clear(c.Request.Context(), actor.ID, req)
	h.respond(c, schedule, err)
}

func (h *AvailabilityHandler) respond(c *gin.Context, schedule *models.WeeklySchedule, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("ETag", `"`+strconv.Itoa(schedule.Version)+`"`)
	response.JSON(c, http.StatusOK, schedule, nil)
}
