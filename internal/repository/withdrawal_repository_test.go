package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

var withdrawalRowColumns = []string{"id", "tutor_id", "amount_cents", "payout_method", "destination", "status", "failure_reason", "requested_at", "updated_at", "completed_at"}

func expectLedgerSnapshot(mock sqlmock.Sqlmock, now time.Time) {
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("tutor-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings WHERE tutor_id = $1 AND status = 'completed'")).
		WithArgs("tutor-1").
		WillReturnRows(sqlmock.NewRows(bookingRowColumns).
			AddRow("b1", "learner-1", "tutor-1", "2026-03-02", "10:00", 1.0, "UTC", "standard", "algebra", int64(10000), "completed", nil, nil, nil, now, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM withdrawals WHERE tutor_id = $1")).
		WithArgs("tutor-1").
		WillReturnRows(sqlmock.NewRows(withdrawalRowColumns).
			AddRow("w0", "tutor-1", int64(2000), "paypal", "ada@example.com", "completed", nil, now, now, now))
}

func TestWithdrawalRepositoryCreateGuarded(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewWithdrawalRepository(db)

	expectLedgerSnapshot(mock, time.Now())
	mock.ExpectExec("INSERT INTO withdrawals").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	w := &models.Withdrawal{TutorID: "tutor-1", Amount: models.MoneyFromFloat(60), PayoutMethod: models.PayoutPaypal, Destination: "ada@example.com"}
	var snapshot models.LedgerSnapshot
	err := repo.CreateGuarded(context.Background(), w, func(s models.LedgerSnapshot) error {
		snapshot = s
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalPending, w.Status)
	assert.NotEmpty(t, w.ID)
	require.Len(t, snapshot.Completed, 1)
	require.Len(t, snapshot.Withdrawals, 1)
	assert.Equal(t, models.MoneyFromFloat(65), models.AvailableBalance(snapshot.Completed, snapshot.Withdrawals, 1500))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepositoryCreateGuardedVeto(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewWithdrawalRepository(db)

	expectLedgerSnapshot(mock, time.Now())
	mock.ExpectRollback()

	w := &models.Withdrawal{TutorID: "tutor-1", Amount: models.MoneyFromFloat(40)}
	err := repo.CreateGuarded(context.Background(), w, func(s models.LedgerSnapshot) error {
		return models.CheckWithdrawal(w.Amount, models.MoneyFromFloat(50), models.AvailableBalance(s.Completed, s.Withdrawals, 1500), 0, "acct")
	})
	var rule *models.WithdrawalRuleError
	require.ErrorAs(t, err, &rule)
	assert.Equal(t, models.WithdrawalBelowMinimum, rule.Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepositoryTransitionStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewWithdrawalRepository(db)

	at := time.Now().UTC()
	reason := "account closed"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE withdrawals")).
		WithArgs("w1", "processing", "failed", at, nil, reason).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := repo.TransitionStatus(context.Background(), "w1", models.WithdrawalProcessing, models.WithdrawalFailed, &reason, at)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}
