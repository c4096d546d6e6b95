package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/middleware"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

type earningsService interface {
	Summary(ctx context.Context, tutorID, window string) (*models.EarningsSummary, bool, error)
	Statement(ctx context.Context, tutorID, window, format string) (*service.StatementFile, error)
	ListWithdrawals(ctx context.Context, tutorID string) ([]models.Withdrawal, error)
	RequestWithdrawal(ctx context.Context, tutorID string, req models.CreateWithdrawalRequest) (*models.Withdrawal, error)
	UpdateWithdrawalStatus(ctx context.Context, id string, req models.UpdateWithdrawalStatusRequest) (*models.Withdrawal, error)
}

// EarningsHandler serves the tutor ledger and payouts.
type EarningsHandler struct {
	service earningsService
}

// NewEarningsHandler builds a new handler.
func NewEarningsHandler(service earningsService) *EarningsHandler {
	return &EarningsHandler{service: service}
}

// Summary godoc
// @Summary Earnings summary
// @Tags Earnings
// @Produce json
// @Security BearerAuth
// @Param window query string false "week, month, year or all"
// @Success 200 {object} response.Envelope
// @Router /me/earnings [get]
func (h *EarningsHandler) Summary(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	summary, cacheHit, err := h.service.Summary(c.Request.Context(), actor.ID, c.Query("window"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{"cache_hit": cacheHit}
	}
	response.JSON(c, http.StatusOK, summary, nil, meta)
}

// Statement godoc
// @Summary Download an earnings statement
// @Tags Earnings
// @Produce octet-stream
// @Security BearerAuth
// @Param window query string false "week, month, year or all"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /me/earnings/statement [get]
func (h *EarningsHandler) Statement(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	file, err := h.service.Statement(c.Request.Context(), actor.ID, c.Query("window"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Data)
}

// ListWithdrawals godoc
// @Summary List own withdrawals
// @Tags Earnings
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /me/withdrawals [get]
func (h *EarningsHandler) ListWithdrawals(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	items, err := h.service.ListWithdrawals(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// RequestWithdrawal godoc
// @Summary Request a payout
// @Tags Earnings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateWithdrawalRequest true "Withdrawal"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /me/withdrawals [post]
func (h *EarningsHandler) RequestWithdrawal(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid withdrawal payload"))
		return
	}
	withdrawal, err := h.service.RequestWithdrawal(c.Request.Context(), actor.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, withdrawal)
}

// UpdateWithdrawalStatus godoc
// @Summary Advance a withdrawal (admin)
// @Tags Earnings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Withdrawal ID"
// @Param payload body models.UpdateWithdrawalStatusRequest true "Status"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/withdrawals/{id} [patch]
func (h *EarningsHandler) UpdateWithdrawalStatus(c *gin.Context) {
	id, ok := pathID(c, "withdrawal")
	if !ok {
		return
	}
	var req models.UpdateWithdrawalStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid status payload"))
		return
	}
	withdrawal, err := h.service.UpdateWithdrawalStatus(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, withdrawal, nil)
}
