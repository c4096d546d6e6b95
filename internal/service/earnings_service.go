package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/export"
)

type completedBookingReader interface {
	ListCompletedByTutor(ctx context.Context, tutorID string) ([]models.Booking, error)
}

type withdrawalRepository interface {
	ListByTutor(ctx context.Context, tutorID string) ([]models.Withdrawal, error)
	FindByID(ctx context.Context, id string) (*models.Withdrawal, error)
	CreateGuarded(ctx context.Context, w *models.Withdrawal, guard func(models.LedgerSnapshot) error) error
	TransitionStatus(ctx context.Context, id string, from, to models.WithdrawalStatus, reason *string, at time.Time) (bool, error)
}

type earningsCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

type withdrawalNotifier interface {
	WithdrawalChanged(ctx context.Context, withdrawal models.Withdrawal)
}

type statementRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// EarningsConfig holds ledger parameters.
type EarningsConfig struct {
	PlatformFeeBPS    int64
	WithdrawalMinimum models.Money
	CacheTTL          time.Duration
}

// StatementFile is a rendered earnings statement.
type StatementFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// EarningsService derives the earnings ledger and manages withdrawals.
type EarningsService struct {
	bookings    completedBookingReader
	withdrawals withdrawalRepository
	cache       earningsCache
	notifier    withdrawalNotifier
	metrics     *MetricsService
	renderers   map[string]statementRenderer
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         EarningsConfig
	now         func() time.Time
	generations *cacheGenerations
}

// cacheGenerations counts invalidations per tutor so a summary loaded before
// an invalidation is never left behind in the cache.
type cacheGenerations struct {
	mu  sync.Mutex
	gen map[string]uint64
}

func newCacheGenerations() *cacheGenerations {
	return &cacheGenerations{gen: make(map[string]uint64)}
}

func (g *cacheGenerations) current(tutorID string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen[tutorID]
}

func (g *cacheGenerations) bump(tutorID string) {
	g.mu.Lock()
	g.gen[tutorID]++
	g.mu.Unlock()
}

// NewEarningsService constructs the service. cache and notifier may be nil.
func NewEarningsService(bookings completedBookingReader, withdrawals withdrawalRepository, cache earningsCache, notifier withdrawalNotifier, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg EarningsConfig) *EarningsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PlatformFeeBPS <= 0 {
		cfg.PlatformFeeBPS = 1500
	}
	if cfg.WithdrawalMinimum <= 0 {
		cfg.WithdrawalMinimum = models.MoneyFromFloat(50)
	}
	csv, pdf := export.NewCSVExporter(), export.NewPDFExporter()
	return &EarningsService{
		bookings:    bookings,
		withdrawals: withdrawals,
		cache:       cache,
		notifier:    notifier,
		metrics:     metrics,
		renderers:   map[string]statementRenderer{csv.Extension(): csv, pdf.Extension(): pdf},
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
		generations: newCacheGenerations(),
	}
}

func earningsCacheKey(tutorID string, window models.EarningsWindow) string {
	return fmt.Sprintf("earnings:%s:%s", tutorID, window)
}

// Summary returns the tutor's ledger for the requested window and whether it
// was served from cache.
func (s *EarningsService) Summary(ctx context.Context, tutorID, rawWindow string) (*models.EarningsSummary, bool, error) {
	window, err := models.ParseEarningsWindow(strings.TrimSpace(rawWindow))
	if err != nil {
		return nil, false, validationError(err, err.Error())
	}

	key := earningsCacheKey(tutorID, window)
	if s.cache != nil {
		var cached models.EarningsSummary
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("earnings cache read failed", zap.String("key", key), zap.Error(err))
		}
		if hit {
			return &cached, true, nil
		}
	}

	generation := s.generations.current(tutorID)
	completed, err := s.bookings.ListCompletedByTutor(ctx, tutorID)
	if err != nil {
		return nil, false, internalError(err, "failed to load completed bookings")
	}
	withdrawals, err := s.withdrawals.ListByTutor(ctx, tutorID)
	if err != nil {
		return nil, false, internalError(err, "failed to load withdrawals")
	}
	summary := models.BuildEarningsSummary(completed, withdrawals, window, s.now(), s.cfg.PlatformFeeBPS)

	if s.cache != nil {
		s.store(ctx, tutorID, key, generation, summary)
	}
	return &summary, false, nil
}

// store caches a summary unless the tutor was invalidated after it was
// loaded. An invalidation racing the write removes the entry again.
func (s *EarningsService) store(ctx context.Context, tutorID, key string, generation uint64, summary models.EarningsSummary) {
	if s.generations.current(tutorID) != generation {
		s.logger.Debug("earnings summary outdated before caching", zap.String("key", key))
		return
	}
	if err := s.cache.Set(ctx, key, summary, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("earnings cache write failed", zap.String("key", key), zap.Error(err))
		return
	}
	if s.generations.current(tutorID) != generation {
		if err := s.cache.Invalidate(ctx, key); err != nil {
			s.logger.Warn("earnings cache invalidation failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// InvalidateTutor drops every cached summary of a tutor.
func (s *EarningsService) InvalidateTutor(ctx context.Context, tutorID string) {
	s.generations.bump(tutorID)
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("earnings:%s:*", tutorID)); err != nil {
		s.logger.Warn("earnings cache invalidation failed", zap.String("tutor_id", tutorID), zap.Error(err))
	}
}

// RequestWithdrawal records a pending withdrawal after checking it against
// the tutor's balance under the ledger lock.
func (s *EarningsService) RequestWithdrawal(ctx context.Context, tutorID string, req models.CreateWithdrawalRequest) (*models.Withdrawal, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid withdrawal payload")
	}
	destination := strings.TrimSpace(req.Destination)
	withdrawal := &models.Withdrawal{
		TutorID:      tutorID,
		Amount:       req.Amount,
		PayoutMethod: req.PayoutMethod,
		Destination:  destination,
		Status:       models.WithdrawalPending,
		RequestedAt:  s.now(),
	}

	err := s.withdrawals.CreateGuarded(ctx, withdrawal, func(snapshot models.LedgerSnapshot) error {
		available := models.AvailableBalance(snapshot.Completed, snapshot.Withdrawals, s.cfg.PlatformFeeBPS)
		outstanding := models.OutstandingWithdrawals(snapshot.Withdrawals)
		if err := models.CheckWithdrawal(req.Amount, s.cfg.WithdrawalMinimum, available, outstanding, destination); err != nil {
			var rule *models.WithdrawalRuleError
			if errors.As(err, &rule) {
				return appErrors.WithDetails(appErrors.Clone(appErrors.ErrUnprocessable, rule.Message), rule)
			}
			return err
		}
		return nil
	})
	if err != nil {
		s.metrics.RecordWithdrawal("rejected")
		return nil, passThrough(err, "failed to create withdrawal")
	}

	s.metrics.RecordWithdrawal(string(models.WithdrawalPending))
	s.logger.Info("withdrawal requested", zap.String("withdrawal_id", withdrawal.ID), zap.String("tutor_id", tutorID), zap.Int64("amount_cents", int64(withdrawal.Amount)))
	s.InvalidateTutor(ctx, tutorID)
	return withdrawal, nil
}

// ListWithdrawals returns the tutor's withdrawals, newest first.
func (s *EarningsService) ListWithdrawals(ctx context.Context, tutorID string) ([]models.Withdrawal, error) {
	items, err := s.withdrawals.ListByTutor(ctx, tutorID)
	if err != nil {
		return nil, internalError(err, "failed to list withdrawals")
	}
	if items == nil {
		items = []models.Withdrawal{}
	}
	return items, nil
}

// UpdateWithdrawalStatus advances a withdrawal through the manual payout
// process.
func (s *EarningsService) UpdateWithdrawalStatus(ctx context.Context, id string, req models.UpdateWithdrawalStatusRequest) (*models.Withdrawal, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid withdrawal status payload")
	}
	withdrawal, err := s.withdrawals.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "withdrawal not found", "failed to load withdrawal")
	}
	if !models.CanTransitionWithdrawal(withdrawal.Status, req.Status) {
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("withdrawal cannot move from %s to %s", withdrawal.Status, req.Status)),
			map[string]models.WithdrawalStatus{"from": withdrawal.Status, "to": req.Status},
		)
	}

	var reason *string
	if trimmed := strings.TrimSpace(req.Reason); trimmed != "" && req.Status == models.WithdrawalFailed {
		reason = &trimmed
	}
	now := s.now()
	applied, err := s.withdrawals.TransitionStatus(ctx, id, withdrawal.Status, req.Status, reason, now)
	if err != nil {
		return nil, internalError(err, "failed to update withdrawal")
	}
	if !applied {
		return nil, appErrors.Clone(appErrors.ErrConflict, "withdrawal was updated by another request")
	}

	withdrawal.Status = req.Status
	withdrawal.UpdatedAt = now
	if reason != nil {
		withdrawal.FailureReason = reason
	}
	if req.Status == models.WithdrawalCompleted {
		withdrawal.CompletedAt = &now
	}

	s.metrics.RecordWithdrawal(string(req.Status))
	s.InvalidateTutor(ctx, withdrawal.TutorID)
	if s.notifier != nil {
		s.notifier.WithdrawalChanged(ctx, *withdrawal)
	}
	return withdrawal, nil
}

// Statement renders the window's completed bookings as csv or pdf.
func (s *EarningsService) Statement(ctx context.Context, tutorID, rawWindow, format string) (*StatementFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported statement format %q", format))
	}

	summary, _, err := s.Summary(ctx, tutorID, rawWindow)
	if err != nil {
		return nil, err
	}

	data := export.Dataset{
		Title: fmt.Sprintf("Earnings statement (%s)", summary.Window),
		Summary: []export.SummaryLine{
			{Label: "Generated at", Value: summary.GeneratedAt.Format(time.RFC3339)},
			{Label: "Sessions", Value: fmt.Sprintf("%d", summary.SessionCount)},
			{Label: "Gross", Value: summary.GrossAmount.String()},
			{Label: "Platform fees", Value: summary.PlatformFees.String()},
			{Label: "Net", Value: summary.NetAmount.String()},
			{Label: "Average net", Value: summary.AverageNet.String()},
			{Label: "Available balance", Value: summary.AvailableBalance.String()},
		},
		Headers: []string{"booking_id", "date", "session_type", "topic", "amount", "platform_fee", "net_amount", "completed_at"},
	}
	for _, entry := range summary.Entries {
		data.Rows = append(data.Rows, map[string]string{
			"booking_id":   entry.BookingID,
			"date":         entry.Date,
			"session_type": string(entry.SessionType),
			"topic":        entry.Topic,
			"amount":       entry.Amount.String(),
			"platform_fee": entry.PlatformFee.String(),
			"net_amount":   entry.NetAmount.String(),
			"completed_at": entry.CompletedAt.Format(time.RFC3339),
		})
	}

	content, err := renderer.Render(data)
	if err != nil {
		return nil, internalError(err, "failed to render statement")
	}
	return &StatementFile{
		Filename:    fmt.Sprintf("earnings-%s-%s.%s", summary.Window, summary.GeneratedAt.Format("20060102"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Data:        content,
	}, nil
}
