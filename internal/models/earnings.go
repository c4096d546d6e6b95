package models

import (
	"fmt"
	"sort"
	"time"
)

// EarningsWindow selects the trailing period for earnings aggregates.
type EarningsWindow string

const (
	WindowWeek  EarningsWindow = "week"
	WindowMonth EarningsWindow = "month"
	WindowYear  EarningsWindow = "year"
	WindowAll   EarningsWindow = "all"
)

var windowDays = map[EarningsWindow]int{
	WindowWeek:  7,
	WindowMonth: 30,
	WindowYear:  365,
}

// ParseEarningsWindow validates raw, defaulting to month when empty.
func ParseEarningsWindow(raw string) (EarningsWindow, error) {
	if raw == "" {
		return WindowMonth, nil
	}
	w := EarningsWindow(raw)
	if w == WindowAll {
		return w, nil
	}
	if _, ok := windowDays[w]; ok {
		return w, nil
	}
	return "", fmt.Errorf("unknown earnings window %q", raw)
}

// Cutoff returns the earliest completion time included in the window, or nil
// for all time. Windows trail now and are not calendar aligned.
func (w EarningsWindow) Cutoff(now time.Time) *time.Time {
	days, ok := windowDays[w]
	if !ok {
		return nil
	}
	t := now.AddDate(0, 0, -days)
	return &t
}

// EarningsEntry is one completed booking in the ledger.
type EarningsEntry struct {
	BookingID   string      `json:"booking_id"`
	LearnerID   string      `json:"learner_id"`
	Date        string      `json:"date"`
	SessionType SessionType `json:"session_type"`
	Topic       string      `json:"topic"`
	Amount      Money       `json:"amount"`
	PlatformFee Money       `json:"platform_fee"`
	NetAmount   Money       `json:"net_amount"`
	CompletedAt time.Time   `json:"completed_at"`
}

// EarningsSummary aggregates a tutor's ledger for a window. Balance fields
// are always all-time.
type EarningsSummary struct {
	Window             EarningsWindow  `json:"window"`
	GrossAmount        Money           `json:"gross_amount"`
	PlatformFees       Money           `json:"platform_fees"`
	NetAmount          Money           `json:"net_amount"`
	SessionCount       int             `json:"session_count"`
	AverageNet         Money           `json:"average_net"`
	AvailableBalance   Money           `json:"available_balance"`
	TotalWithdrawn     Money           `json:"total_withdrawn"`
	PendingWithdrawals Money           `json:"pending_withdrawals"`
	SpendableBalance   Money           `json:"spendable_balance"`
	Entries            []EarningsEntry `json:"entries"`
	GeneratedAt        time.Time       `json:"generated_at"`
}

// NewEarningsEntry splits a completed booking into fee and net.
func NewEarningsEntry(b Booking, feeBPS int64) EarningsEntry {
	fee := b.TotalAmount.Percent(feeBPS)
	entry := EarningsEntry{
		BookingID:   b.ID,
		LearnerID:   b.LearnerID,
		Date:        b.Date,
		SessionType: b.SessionType,
		Topic:       b.Topic,
		Amount:      b.TotalAmount,
		PlatformFee: fee,
		NetAmount:   b.TotalAmount - fee,
	}
	if b.CompletedAt != nil {
		entry.CompletedAt = *b.CompletedAt
	}
	return entry
}

// AvailableBalance is lifetime net earnings minus completed withdrawals.
func AvailableBalance(completed []Booking, withdrawals []Withdrawal, feeBPS int64) Money {
	var net Money
	for _, b := range completed {
		if b.Status != BookingCompleted {
			continue
		}
		net += NewEarningsEntry(b, feeBPS).NetAmount
	}
	return net - withdrawn(withdrawals)
}

// OutstandingWithdrawals sums pending and processing withdrawals.
func OutstandingWithdrawals(withdrawals []Withdrawal) Money {
	var total Money
	for _, w := range withdrawals {
		if w.Outstanding() {
			total += w.Amount
		}
	}
	return total
}

func withdrawn(withdrawals []Withdrawal) Money {
	var total Money
	for _, w := range withdrawals {
		if w.Status == WithdrawalCompleted {
			total += w.Amount
		}
	}
	return total
}

// SpendableBalance is the largest withdrawal a tutor may request now: the
// available balance less pending and processing withdrawals, never negative.
func SpendableBalance(completed []Booking, withdrawals []Withdrawal, feeBPS int64) Money {
	return spendableOf(AvailableBalance(completed, withdrawals, feeBPS), OutstandingWithdrawals(withdrawals))
}

// BuildEarningsSummary derives the ledger view at now. Bookings that are not
// completed are ignored.
func BuildEarningsSummary(completed []Booking, withdrawals []Withdrawal, window EarningsWindow, now time.Time, feeBPS int64) EarningsSummary {
	summary := EarningsSummary{
		Window:             window,
		Entries:            []EarningsEntry{},
		AvailableBalance:   AvailableBalance(completed, withdrawals, feeBPS),
		TotalWithdrawn:     withdrawn(withdrawals),
		PendingWithdrawals: OutstandingWithdrawals(withdrawals),
		SpendableBalance:   SpendableBalance(completed, withdrawals, feeBPS),
		GeneratedAt:        now,
	}
	cutoff := window.Cutoff(now)
	for _, b := range completed {
		if b.Status != BookingCompleted || b.CompletedAt == nil {
			continue
		}
		if cutoff != nil && b.CompletedAt.Before(*cutoff) {
			continue
		}
		entry := NewEarningsEntry(b, feeBPS)
		summary.GrossAmount += entry.Amount
		summary.PlatformFees += entry.PlatformFee
		summary.NetAmount += entry.NetAmount
		summary.SessionCount++
		summary.Entries = append(summary.Entries, entry)
	}
	if summary.SessionCount > 0 {
		n := Money(summary.SessionCount)
		summary.AverageNet = (summary.NetAmount + n/2) / n
	}
	sort.SliceStable(summary.Entries, func(i, j int) bool {
		return summary.Entries[i].CompletedAt.After(summary.Entries[j].CompletedAt)
	})
	return summary
}
