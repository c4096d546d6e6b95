package errors

import (
	"database/sql"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("load booking: %w", Clone(ErrNotFound, "booking not found"))

	got := FromError(wrapped)
	assert.Equal(t, ErrNotFound.Code, got.Code)
	assert.Equal(t, http.StatusNotFound, got.Status)
	assert.Equal(t, "booking not found", got.Message)
}

func TestFromErrorFallsBackToInternal(t *testing.T) {
	got := FromError(sql.ErrConnDone)
	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.ErrorIs(t, got, sql.ErrConnDone)
}

func TestIsMatchesByCode(t *testing.T) {
	clone := Clone(ErrStaleVersion, "schedule changed")
	assert.True(t, stderrors.Is(clone, ErrStaleVersion))
	assert.False(t, stderrors.Is(clone, ErrConflict))
}

func TestWithDetailsDoesNotMutateOriginal(t *testing.T) {
	detailed := WithDetails(ErrValidation, map[string]string{"amount": "below minimum"})
	assert.NotNil(t, detailed.Details)
	assert.Nil(t, ErrValidation.Details)
}
