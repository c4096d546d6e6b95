package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// pgInvalidTextRepresentation is raised when a key is not a valid UUID.
const pgInvalidTextRepresentation = "22P02"

// ErrStaleVersion is returned when a versioned write loses to a concurrent
// writer.
var ErrStaleVersion = errors.New("stale version")

// lockTutorLedger serialises writers on one tutor's bookings and withdrawals
// for the rest of the transaction.
const lockTutorLedger = `SELECT pg_advisory_xact_lock(hashtext($1))`

// isNoRows reports whether err means the lookup matched nothing. A key that
// is not a well-formed UUID cannot match a row either.
func isNoRows(err error) bool {
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgInvalidTextRepresentation
}
