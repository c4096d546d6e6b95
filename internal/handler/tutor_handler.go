package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

type tutorProfileService interface {
	Get(ctx context.Context, userID string, viewer service.Actor) (*models.TutorProfile, error)
	Upsert(ctx context.Context, tutorID string, req models.UpsertTutorProfileRequest) (*models.TutorProfile, error)
	List(ctx context.Context, filter models.TutorFilter) ([]models.TutorProfile, *models.Pagination, error)
}

type scheduleViewer interface {
	Get(ctx context.Context, tutorID string) (*models.WeeklySchedule, error)
}

// TutorHandler serves public tutor listings and the tutor's own profile.
type TutorHandler struct {
	profiles  tutorProfileService
	schedules scheduleViewer
}

// NewTutorHandler builds a new handler.
func NewTutorHandler(profiles tutorProfileService, schedules scheduleViewer) *TutorHandler {
	return &TutorHandler{profiles: profiles, schedules: schedules}
}

// List godoc
// @Summary List tutors
// @Tags Tutors
// @Produce json
// @Param search query string false "Name or bio search"
// @Param subject query string false "Subject filter"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /tutors [get]
func (h *TutorHandler) List(c *gin.Context) {
	filter := models.TutorFilter{
		Search:   c.Query("search"),
		Subject:  c.Query("subject"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 0),
	}
	items, page, err := h.profiles.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, page)
}

// Get godoc
// @Summary Tutor profile
// @Tags Tutors
// @Produce json
// @Param id path string true "Tutor ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tutors/{id} [get]
func (h *TutorHandler) Get(c *gin.Context) {
	tutorID, ok := pathID(c, "tutor")
	if !ok {
		return
	}
	profile, err := h.profiles.Get(c.Request.Context(), tutorID, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// Availability godoc
// @Summary Tutor weekly availability
// @Tags Tutors
// @Produce json
// @Param id path string true "Tutor ID"
// @Success 200 {object} response.Envelope
// @Router /tutors/{id}/availability [get]
func (h *TutorHandler) Availability(c *gin.Context) {
	tutorID, ok := pathID(c, "tutor")
	if !ok {
		return
	}
	if _, err := h.profiles.Get(c.Request.Context(), tutorID, actorFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	schedule, err := h.schedules.Get(c.Request.Context(), tutorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// GetOwn godoc
// @Summary Own tutor profile
// @Tags Tutors
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /me/tutor-profile [get]
func (h *TutorHandler) GetOwn(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	profile, err := h.profiles.Get(c.Request.Context(), actor.ID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// UpsertOwn godoc
// @Summary Create or update own tutor profile
// @Tags Tutors
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.UpsertTutorProfileRequest true "Profile"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /me/tutor-profile [put]
func (h *TutorHandler) UpsertOwn(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.UpsertTutorProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid tutor profile payload"))
		return
	}
	profile, err := h.profiles.Upsert(c.Request.Context(), actor.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}
