package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/tutorhub-api/internal/middleware"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/service"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext returns the caller, or the zero Actor for anonymous requests.
func actorFromContext(c *gin.Context) service.Actor {
	claims := claimsFromContext(c)
	if claims == nil {
		return service.Actor{}
	}
	return service.Actor{ID: claims.UserID, Role: string(claims.Role)}
}

// requireActor writes 401 and reports false when the request is anonymous.
func requireActor(c *gin.Context) (service.Actor, bool) {
	actor := actorFromContext(c)
	if actor.ID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return actor, false
	}
	return actor, true
}

// pathID reads the :id path parameter. Ids are UUIDs, so anything else
// cannot name a stored resource and is answered with 404.
func pathID(c *gin.Context, resource string) (string, bool) {
	raw := c.Param("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, resource+" not found"))
		return "", false
	}
	return id.String(), true
}

// expectedVersion prefers the body version and falls back to If-Match, then
// the version query parameter.
func expectedVersion(c *gin.Context, body *int) (*int, error) {
	if body != nil {
		return body, nil
	}
	raw := strings.TrimSpace(c.GetHeader("If-Match"))
	if raw == "" {
		raw = c.Query("version")
	}
	if raw == "" {
		return nil, nil
	}
	raw = strings.Trim(strings.TrimPrefix(raw, "W/"), `"`)
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "expected version must be a non-negative integer")
	}
	return &v, nil
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func bindError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

// bindOptionalJSON binds the body when one is present. It writes the error
// response and reports false when the body is malformed.
func bindOptionalJSON(c *gin.Context, dst interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, bindError(err, "invalid request payload"))
		return false
	}
	return true
}
