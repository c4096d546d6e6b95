package service

import (
	"database/sql"
	"errors"

	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

// Actor identifies the caller of a use case.
type Actor struct {
	ID   string
	Role string
}

func validationError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

func internalError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// notFoundOr maps sql.ErrNoRows to a NotFound error carrying message and
// everything else to an internal error.
func notFoundOr(err error, message, internalMessage string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, message)
	}
	return internalError(err, internalMessage)
}

// passThrough keeps typed application errors and wraps the rest.
func passThrough(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return internalError(err, message)
}
