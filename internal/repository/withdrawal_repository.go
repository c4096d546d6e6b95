package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

// WithdrawalRepository persists payout requests.
type WithdrawalRepository struct {
	db *sqlx.DB
}

// NewWithdrawalRepository constructs the repository.
func NewWithdrawalRepository(db *sqlx.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

const withdrawalColumns = `id, tutor_id, amount_cents, payout_method, destination, status, failure_reason, requested_at, updated_at, completed_at`

// ListByTutor returns a tutor's withdrawals, newest first.
func (r *WithdrawalRepository) ListByTutor(ctx context.Context, tutorID string) ([]models.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE tutor_id = $1 ORDER BY requested_at DESC`
	var items []models.Withdrawal
	if err := r.db.SelectContext(ctx, &items, query, tutorID); err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	return items, nil
}

// FindByID returns a withdrawal or sql.ErrNoRows.
func (r *WithdrawalRepository) FindByID(ctx context.Context, id string) (*models.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1`
	var w models.Withdrawal
	if err := r.db.GetContext(ctx, &w, query, id); err != nil {
		if isNoRows(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find withdrawal: %w", err)
	}
	return &w, nil
}

// CreateGuarded inserts w inside a transaction holding the tutor's ledger
// lock. guard sees the tutor's completed bookings and withdrawals as of the
// lock and vetoes the insert by returning an error.
func (r *WithdrawalRepository) CreateGuarded(ctx context.Context, w *models.Withdrawal, guard func(models.LedgerSnapshot) error) (err error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.RequestedAt.IsZero() {
		w.RequestedAt = time.Now().UTC()
	}
	w.UpdatedAt = w.RequestedAt
	if w.Status == "" {
		w.Status = models.WithdrawalPending
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin withdrawal transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, lockTutorLedger, w.TutorID); err != nil {
		return fmt.Errorf("lock tutor ledger: %w", err)
	}

	var snapshot models.LedgerSnapshot
	completedQuery := `SELECT ` + bookingColumns + ` FROM bookings WHERE tutor_id = $1 AND status = 'completed'`
	if err = tx.SelectContext(ctx, &snapshot.Completed, completedQuery, w.TutorID); err != nil {
		return fmt.Errorf("load completed bookings: %w", err)
	}
	withdrawalQuery := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE tutor_id = $1`
	if err = tx.SelectContext(ctx, &snapshot.Withdrawals, withdrawalQuery, w.TutorID); err != nil {
		return fmt.Errorf("load withdrawals: %w", err)
	}
	if err = guard(snapshot); err != nil {
		return err
	}

	const insertQuery = `INSERT INTO withdrawals (id, tutor_id, amount_cents, payout_method, destination, status, failure_reason, requested_at, updated_at, completed_at)
		VALUES (:id, :tutor_id, :amount_cents, :payout_method, :destination, :status, :failure_reason, :requested_at, :updated_at, :completed_at)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, w); err != nil {
		return fmt.Errorf("insert withdrawal: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit withdrawal: %w", err)
	}
	return nil
}

// TransitionStatus moves a withdrawal from→to if it is still in from.
// Completing stamps completed_at; a reason is kept for failures.
func (r *WithdrawalRepository) TransitionStatus(ctx context.Context, id string, from, to models.WithdrawalStatus, reason *string, at time.Time) (bool, error) {
	var completedAt *time.Time
	if to == models.WithdrawalCompleted {
		completedAt = &at
	}
	const query = `UPDATE withdrawals
		SET status = $3, updated_at = $4, completed_at = COALESCE($5, completed_at), failure_reason = COALESCE($6, failure_reason)
		WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to, at, completedAt, reason)
	if err != nil {
		return false, fmt.Errorf("update withdrawal status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update withdrawal status: %w", err)
	}
	return affected == 1, nil
}
