package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/jobs"
	"github.com/noah-isme/tutorhub-api/pkg/mailer"
)

// Notification job types.
const (
	JobBookingNotification    = "booking_notification"
	JobWithdrawalNotification = "withdrawal_notification"
)

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// NotificationPayload is the body of a notification job.
type NotificationPayload struct {
	RecipientID string
	Subject     string
	Body        string
}

// NotificationService turns domain events into queued e-mails. Enqueue
// failures never fail the originating request.
type NotificationService struct {
	queue   jobDispatcher
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewNotificationService constructs the service. A nil queue disables
// notifications.
func NewNotificationService(queue jobDispatcher, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{queue: queue, metrics: metrics, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// BookingChanged notifies the other party of a booking event. action is the
// lifecycle step, or "created" for a new request.
func (s *NotificationService) BookingChanged(ctx context.Context, action string, booking models.Booking) {
	recipient := booking.LearnerID
	if action == "created" || action == string(models.ActionCancel) {
		recipient = booking.TutorID
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Booking %s for %s on %s at %s (%s) is now %s.\n", booking.ID, booking.Topic, booking.Date, booking.Time, booking.TimeZone, booking.Status)
	if booking.DeclineReason != nil && *booking.DeclineReason != "" {
		fmt.Fprintf(&body, "Reason: %s\n", *booking.DeclineReason)
	}
	if booking.MeetingLink != nil && *booking.MeetingLink != "" {
		fmt.Fprintf(&body, "Meeting link: %s\n", *booking.MeetingLink)
	}

	s.enqueue(JobBookingNotification, NotificationPayload{
		RecipientID: recipient,
		Subject:     fmt.Sprintf("Booking %s: %s", action, booking.Topic),
		Body:        body.String(),
	})
}

// WithdrawalChanged notifies a tutor that a withdrawal changed status.
func (s *NotificationService) WithdrawalChanged(ctx context.Context, withdrawal models.Withdrawal) {
	body := fmt.Sprintf("Your withdrawal of %s via %s is %s.\n", withdrawal.Amount, withdrawal.PayoutMethod, withdrawal.Status)
	if withdrawal.FailureReason != nil && *withdrawal.FailureReason != "" {
		body += fmt.Sprintf("Reason: %s\n", *withdrawal.FailureReason)
	}
	s.enqueue(JobWithdrawalNotification, NotificationPayload{
		RecipientID: withdrawal.TutorID,
		Subject:     fmt.Sprintf("Withdrawal %s", withdrawal.Status),
		Body:        body,
	})
}

func (s *NotificationService) enqueue(jobType string, payload NotificationPayload) {
	if s == nil || s.queue == nil || payload.RecipientID == "" {
		return
	}
	job := jobs.Job{ID: uuid.NewString(), Type: jobType, Payload: payload, Enqueued: s.now()}
	if err := s.queue.Enqueue(job); err != nil {
		s.metrics.RecordNotification("dropped")
		s.logger.Warn("failed to enqueue notification", zap.String("type", jobType), zap.String("recipient_id", payload.RecipientID), zap.Error(err))
		return
	}
	s.metrics.RecordNotification("queued")
}

type contactFinder interface {
	FindContact(ctx context.Context, id string) (*models.Contact, error)
}

// NotificationWorker delivers notification jobs by e-mail.
type NotificationWorker struct {
	users   contactFinder
	mailer  mailer.Mailer
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationWorker constructs the worker.
func NewNotificationWorker(users contactFinder, m mailer.Mailer, metrics *MetricsService, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{users: users, mailer: m, metrics: metrics, logger: logger}
}

// Handle implements jobs.Handler. Returning an error schedules a retry.
func (w *NotificationWorker) Handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(NotificationPayload)
	if !ok {
		w.logger.Error("unexpected notification payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}

	contact, err := w.users.FindContact(ctx, payload.RecipientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			w.metrics.RecordNotification("dropped")
			w.logger.Warn("notification recipient missing or inactive", zap.String("recipient_id", payload.RecipientID))
			return nil
		}
		return err
	}

	body := payload.Body
	if contact.FullName != "" {
		body = fmt.Sprintf("Hi %s,\n\n%s", contact.FullName, payload.Body)
	}
	if err := w.mailer.Send(ctx, mailer.Message{To: contact.Email, Subject: payload.Subject, Body: body}); err != nil {
		w.logger.Warn("notification delivery failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
		return err
	}
	w.metrics.RecordNotification("sent")
	return nil
}

// Exhausted records a job that ran out of retries. It matches jobs.ExhaustedFunc.
func (w *NotificationWorker) Exhausted(job jobs.Job, err error) {
	w.metrics.RecordNotification("failed")
	w.logger.Error("notification abandoned", zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Int("attempts", job.Attempt), zap.Error(err))
}
