package models

import (
	"fmt"
	"time"
)

// WithdrawalStatus tracks the manual payout process.
type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "pending"
	WithdrawalProcessing WithdrawalStatus = "processing"
	WithdrawalCompleted  WithdrawalStatus = "completed"
	WithdrawalFailed     WithdrawalStatus = "failed"
)

// PayoutMethod names the rail used to pay a tutor.
type PayoutMethod string

const (
	PayoutBankTransfer PayoutMethod = "bank_transfer"
	PayoutPaypal       PayoutMethod = "paypal"
	PayoutMobileMoney  PayoutMethod = "mobile_money"
)

// Withdrawal is a tutor's request to be paid out part of their balance.
type Withdrawal struct {
	ID            string           `db:"id" json:"id"`
	TutorID       string           `db:"tutor_id" json:"tutor_id"`
	Amount        Money            `db:"amount_cents" json:"amount"`
	PayoutMethod  PayoutMethod     `db:"payout_method" json:"payout_method"`
	Destination   string           `db:"destination" json:"destination"`
	Status        WithdrawalStatus `db:"status" json:"status"`
	FailureReason *string          `db:"failure_reason" json:"failure_reason,omitempty"`
	RequestedAt   time.Time        `db:"requested_at" json:"requested_at"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
	CompletedAt   *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
}

// Outstanding reports whether the withdrawal still reserves balance.
func (w Withdrawal) Outstanding() bool {
	return w.Status == WithdrawalPending || w.Status == WithdrawalProcessing
}

var withdrawalTransitions = map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalPending:    {WithdrawalProcessing, WithdrawalFailed},
	WithdrawalProcessing: {WithdrawalCompleted, WithdrawalFailed},
}

// CanTransitionWithdrawal reports whether an admin may move from→to.
func CanTransitionWithdrawal(from, to WithdrawalStatus) bool {
	for _, allowed := range withdrawalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Withdrawal rejection reasons.
const (
	WithdrawalBelowMinimum        = "BELOW_MINIMUM"
	WithdrawalInsufficientBalance = "INSUFFICIENT_BALANCE"
	WithdrawalMissingDestination  = "MISSING_DESTINATION"
)

// WithdrawalRuleError explains why a withdrawal request was refused.
// Spendable matches the summary's spendable_balance.
type WithdrawalRuleError struct {
	Reason    string `json:"reason"`
	Message   string `json:"message"`
	Minimum   Money  `json:"minimum"`
	Available Money  `json:"available_balance"`
	Spendable Money  `json:"spendable_balance"`
}

func (e *WithdrawalRuleError) Error() string {
	return e.Message
}

// CheckWithdrawal applies the eligibility rules: amount ≥ minimum, a
// non-empty destination and amount within the spendable balance, which is
// the available balance less withdrawals still outstanding.
func CheckWithdrawal(amount, minimum, available, outstanding Money, destination string) error {
	spendable := spendableOf(available, outstanding)
	refuse := func(reason, msg string) error {
		return &WithdrawalRuleError{Reason: reason, Message: msg, Minimum: minimum, Available: available, Spendable: spendable}
	}
	switch {
	case amount < minimum:
		return refuse(WithdrawalBelowMinimum, fmt.Sprintf("minimum withdrawal is %s", minimum))
	case destination == "":
		return refuse(WithdrawalMissingDestination, "payout destination is required")
	case amount > spendable:
		return refuse(WithdrawalInsufficientBalance, fmt.Sprintf(
			"amount %s exceeds spendable balance %s (available balance %s less %s in outstanding withdrawals)",
			amount, spendable, available, outstanding))
	}
	return nil
}

func spendableOf(available, outstanding Money) Money {
	if spendable := available - outstanding; spendable > 0 {
		return spendable
	}
	return 0
}

// LedgerSnapshot is a tutor's completed bookings and withdrawals read under
// the tutor's ledger lock.
type LedgerSnapshot struct {
	Completed   []Booking
	Withdrawals []Withdrawal
}

// CreateWithdrawalRequest is submitted by a tutor.
type CreateWithdrawalRequest struct {
	Amount       Money        `json:"amount" validate:"required,gt=0"`
	PayoutMethod PayoutMethod `json:"payout_method" validate:"required,oneof=bank_transfer paypal mobile_money"`
	Destination  string       `json:"destination" validate:"max=200"`
}

// UpdateWithdrawalStatusRequest advances a withdrawal. Reason is kept for
// failures.
type UpdateWithdrawalStatusRequest struct {
	Status WithdrawalStatus `json:"status" validate:"required,oneof=processing completed failed"`
	Reason string           `json:"reason" validate:"max=500"`
}
