package repository

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

const (
	defaultBookingPageSize = 20
	maxBookingPageSize     = 100
)

// ErrInvalidCursor is returned for a cursor this repository did not issue.
var ErrInvalidCursor = errors.New("invalid cursor")

// BookingRepository persists booking requests.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs the repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `id, learner_id, tutor_id, to_char(session_date, 'YYYY-MM-DD') AS session_date, session_time, duration_hours, time_zone, session_type, topic, total_amount_cents, status, meeting_link, notes, decline_reason, created_at, updated_at, completed_at`

const insertBooking = `INSERT INTO bookings (id, learner_id, tutor_id, session_date, session_time, duration_hours, time_zone, session_type, topic, total_amount_cents, status, meeting_link, notes, decline_reason, created_at, updated_at, completed_at)
	VALUES (:id, :learner_id, :tutor_id, :session_date, :session_time, :duration_hours, :time_zone, :session_type, :topic, :total_amount_cents, :status, :meeting_link, :notes, :decline_reason, :created_at, :updated_at, :completed_at)`

// CreateGuarded inserts booking while holding the tutor's ledger lock. guard
// receives the tutor's pending and confirmed bookings on the same date and may
// veto the insert by returning an error, which is passed through unchanged.
func (r *BookingRepository) CreateGuarded(ctx context.Context, booking *models.Booking, guard func(active []models.Booking) error) (err error) {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = booking.CreatedAt

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin booking transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, lockTutorLedger, booking.TutorID); err != nil {
		return fmt.Errorf("lock tutor ledger: %w", err)
	}

	var active []models.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE tutor_id = $1 AND session_date = $2 AND status IN ('pending', 'confirmed') ORDER BY session_time`
	if err = tx.SelectContext(ctx, &active, query, booking.TutorID, booking.Date); err != nil {
		return fmt.Errorf("list active bookings: %w", err)
	}
	if err = guard(active); err != nil {
		return err
	}

	if _, err = tx.NamedExecContext(ctx, insertBooking, booking); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit booking: %w", err)
	}
	return nil
}

// FindByID returns a booking or sql.ErrNoRows.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		if isNoRows(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find booking: %w", err)
	}
	return &booking, nil
}

// List returns one page of bookings, newest request first, and the cursor of
// the next page when more rows exist.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, string, error) {
	var conditions []string
	var args []interface{}

	if filter.TutorID != "" {
		args = append(args, filter.TutorID)
		conditions = append(conditions, fmt.Sprintf("tutor_id = $%d", len(args)))
	}
	if filter.LearnerID != "" {
		args = append(args, filter.LearnerID)
		conditions = append(conditions, fmt.Sprintf("learner_id = $%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.Cursor != "" {
		createdAt, id, err := DecodeBookingCursor(filter.Cursor)
		if err != nil {
			return nil, "", err
		}
		args = append(args, createdAt, id)
		conditions = append(conditions, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultBookingPageSize
	}
	if limit > maxBookingPageSize {
		limit = maxBookingPageSize
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT %d", limit+1)

	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, "", fmt.Errorf("list bookings: %w", err)
	}

	var next string
	if len(bookings) > limit {
		bookings = bookings[:limit]
		last := bookings[len(bookings)-1]
		next = EncodeBookingCursor(last.CreatedAt, last.ID)
	}
	return bookings, next, nil
}

// ListCompletedByTutor returns every completed booking of a tutor.
func (r *BookingRepository) ListCompletedByTutor(ctx context.Context, tutorID string) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE tutor_id = $1 AND status = 'completed' ORDER BY completed_at DESC`
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, tutorID); err != nil {
		return nil, fmt.Errorf("list completed bookings: %w", err)
	}
	return bookings, nil
}

// StatusChange describes a conditional status update.
type StatusChange struct {
	ID            string
	From          models.BookingStatus
	To            models.BookingStatus
	At            time.Time
	DeclineReason *string
}

// TransitionStatus applies change only if the booking is still in
// change.From. It reports false when another request got there first.
func (r *BookingRepository) TransitionStatus(ctx context.Context, change StatusChange) (bool, error) {
	var completedAt *time.Time
	if change.To == models.BookingCompleted {
		at := change.At
		completedAt = &at
	}
	const query = `UPDATE bookings
		SET status = $3, updated_at = $4, completed_at = COALESCE($5, completed_at), decline_reason = COALESCE($6, decline_reason)
		WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, change.ID, change.From, change.To, change.At, completedAt, change.DeclineReason)
	if err != nil {
		return false, fmt.Errorf("update booking status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update booking status: %w", err)
	}
	return affected == 1, nil
}

// UpdateSession sets meeting link and notes; nil leaves a field unchanged.
func (r *BookingRepository) UpdateSession(ctx context.Context, id string, meetingLink, notes *string, at time.Time) error {
	const query = `UPDATE bookings SET meeting_link = COALESCE($2, meeting_link), notes = COALESCE($3, notes), updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, meetingLink, notes, at); err != nil {
		return fmt.Errorf("update booking session: %w", err)
	}
	return nil
}

// EncodeBookingCursor builds an opaque page token from the last row seen.
func EncodeBookingCursor(createdAt time.Time, id string) string {
	raw := createdAt.UTC().Format(time.RFC3339Nano) + "|" + id
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeBookingCursor reverses EncodeBookingCursor.
func DecodeBookingCursor(cursor string) (time.Time, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", ErrInvalidCursor
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return time.Time{}, "", ErrInvalidCursor
	}
	createdAt, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", ErrInvalidCursor
	}
	return createdAt, parts[1], nil
}
