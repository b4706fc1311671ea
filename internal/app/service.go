/**
 * @description
 * Core business logic for the reminder pipeline: enumerate candidate invoices,
 * evaluate reminder rules, apply the dedup guard and subscription gate, then
 * dispatch through the queue or the synchronous fallback.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/invoiceflow/reminder-service/internal/config"
	"github.com/invoiceflow/reminder-service/internal/domain"
)

// ErrNotInvoiceOwner is returned when a caller asks for reminder history on an
// invoice that belongs to another account.
var ErrNotInvoiceOwner = errors.New("invoice belongs to another account")

// Repository defines the storage operations the service needs. All status
// transitions are conditional on current status so overlapping sweeps cannot
// double-apply them.
type Repository interface {
	GetInvoice(ctx context.Context, id string) (*domain.Invoice, error)
	ListReminderCandidates(ctx context.Context, asOf time.Time, maxReminders int) ([]domain.Invoice, error)
	ListReminders(ctx context.Context, invoiceID string) ([]domain.ReminderRecord, error)
	CreateScheduledReminder(ctx context.Context, rec *domain.ReminderRecord) error
	RescheduleReminder(ctx context.Context, recordID string, overdueDays int) error
	MarkReminderSent(ctx context.Context, invoiceID string, tone domain.Tone, overdueDays int, emailID string, sentAt time.Time) (bool, error)
	MarkReminderFailed(ctx context.Context, invoiceID string, tone domain.Tone, reason string) error
	CancelReminder(ctx context.Context, invoiceID string, tone domain.Tone, reason string) error
	CancelScheduledReminders(ctx context.Context, invoiceID string, reason string) (int64, error)
}

// Mailer sends one HTML email and returns the provider delivery id.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) (string, error)
}

// SubscriptionGate checks whether the owner's plan still covers a reminder.
type SubscriptionGate interface {
	CanSendReminder(ctx context.Context, userID, invoiceID string) (allowed bool, reason string, err error)
}

// SendLimiter throttles outbound sends per invoice owner.
type SendLimiter interface {
	ConsumeSendQuota(ctx context.Context, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service wires the reminder pipeline together.
type Service struct {
	repo      Repository
	mailer    Mailer
	gate      SubscriptionGate
	publisher QueuePublisher
	limiter   SendLimiter
	logger    *slog.Logger
	config    config.Config
}

// NewService creates the reminder service. The publisher and limiter may be
// nil; dispatch then degrades to the synchronous unthrottled path.
func NewService(repo Repository, mailer Mailer, gate SubscriptionGate, publisher QueuePublisher, limiter SendLimiter, logger *slog.Logger, cfg config.Config) *Service {
	return &Service{
		repo:      repo,
		mailer:    mailer,
		gate:      gate,
		publisher: publisher,
		limiter:   limiter,
		logger:    logger,
		config:    cfg,
	}
}

// SweepResult summarizes one batch sweep.
type SweepResult struct {
	Evaluated  int `json:"evaluated"`
	Dispatched int `json:"dispatched"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// RunSweep evaluates every candidate invoice and dispatches the reminders due
// today. Failures are isolated per invoice: one broken invoice never aborts
// the rest of the batch.
func (s *Service) RunSweep(ctx context.Context) (*SweepResult, error) {
	now := time.Now().UTC()

	invoices, err := s.repo.ListReminderCandidates(ctx, now, s.config.MaxRemindersPerInvoice)
	if err != nil {
		return nil, fmt.Errorf("list reminder candidates: %w", err)
	}

	result := &SweepResult{Evaluated: len(invoices)}
	if len(invoices) == 0 {
		return result, nil
	}

	concurrency := s.config.SweepConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	if concurrency > len(invoices) {
		concurrency = len(invoices)
	}

	// Fan out across invoices; each invoice is processed sequentially within
	// its worker so the per-invoice evaluate-guard-dispatch chain stays ordered.
	work := make(chan domain.Invoice)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for inv := range work {
				dispatched, err := s.processInvoice(ctx, inv, now)
				mu.Lock()
				switch {
				case err != nil:
					result.Failed++
				case dispatched:
					result.Dispatched++
				default:
					result.Skipped++
				}
				mu.Unlock()
				if err != nil {
					s.logger.Error("reminder evaluation failed", "invoice_id", inv.ID, "error", err)
				}
			}
		}()
	}

	for _, inv := range invoices {
		work <- inv
	}
	close(work)
	wg.Wait()

	s.logger.Info("reminder sweep finished",
		"evaluated", result.Evaluated,
		"dispatched", result.Dispatched,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
	return result, nil
}

// RunInvoice runs the same pipeline for a single invoice, used for manual and
// test triggers. Unlike the batch sweep, errors propagate to the caller.
func (s *Service) RunInvoice(ctx context.Context, invoiceID string) (*SweepResult, error) {
	now := time.Now().UTC()

	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{Evaluated: 1}
	dispatched, err := s.processInvoice(ctx, *inv, now)
	if err != nil {
		result.Failed = 1
		return result, err
	}
	if dispatched {
		result.Dispatched = 1
	} else {
		result.Skipped = 1
	}
	return result, nil
}

// processInvoice runs evaluate → guard → gate → dispatch for one invoice.
// The returned bool reports whether a reminder was dispatched (queued or sent).
func (s *Service) processInvoice(ctx context.Context, inv domain.Invoice, now time.Time) (bool, error) {
	if inv.IsSettled() {
		if _, err := s.repo.CancelScheduledReminders(ctx, inv.ID, settledReason(inv.Status)); err != nil {
			s.logger.Error("failed to cancel reminders for settled invoice", "invoice_id", inv.ID, "error", err)
		}
		return false, nil
	}
	if inv.ReminderCount >= s.config.MaxRemindersPerInvoice {
		return false, nil
	}

	decision := Evaluate(now, inv.DueDate, inv.PaymentTerms, inv.ReminderSettings)
	if decision == nil {
		return false, nil
	}

	records, err := s.repo.ListReminders(ctx, inv.ID)
	if err != nil {
		return false, fmt.Errorf("list reminders: %w", err)
	}

	verdict := ShouldSend(*decision, records, inv.LastReminderSent, now)
	if !verdict.Allow {
		s.logger.Debug("reminder vetoed", "invoice_id", inv.ID, "tone", decision.Tone, "reason", verdict.Reason)
		return false, nil
	}

	recordID, err := s.ensureScheduledRecord(ctx, inv.ID, *decision, verdict.Reuse)
	if err != nil {
		return false, err
	}

	allowed, denyReason, err := s.gate.CanSendReminder(ctx, inv.UserID, inv.ID)
	if err != nil {
		// Transient gate failure: leave the record scheduled for the next cycle.
		return false, fmt.Errorf("subscription gate: %w", err)
	}
	if !allowed {
		if denyReason == "" {
			denyReason = "reminder quota exceeded for current plan"
		}
		if err := s.repo.CancelReminder(ctx, inv.ID, decision.Tone, denyReason); err != nil {
			return false, fmt.Errorf("cancel denied reminder: %w", err)
		}
		s.logger.Info("reminder denied by subscription gate", "invoice_id", inv.ID, "tone", decision.Tone, "reason", denyReason)
		return false, nil
	}

	if err := s.dispatch(ctx, inv, *decision, recordID, now); err != nil {
		return false, err
	}
	return true, nil
}

// ensureScheduledRecord reuses the newest scheduled/failed record for the slot
// or creates a fresh one, so a retried trigger never inserts duplicates.
func (s *Service) ensureScheduledRecord(ctx context.Context, invoiceID string, decision domain.Decision, reuse *domain.ReminderRecord) (string, error) {
	if reuse != nil {
		if err := s.repo.RescheduleReminder(ctx, reuse.ID, decision.DaysOverdue); err != nil {
			return "", fmt.Errorf("reschedule reminder: %w", err)
		}
		return reuse.ID, nil
	}

	rec := &domain.ReminderRecord{
		ID:          uuid.NewString(),
		InvoiceID:   invoiceID,
		Tone:        decision.Tone,
		Status:      domain.ReminderStatusScheduled,
		OverdueDays: decision.DaysOverdue,
	}
	if err := s.repo.CreateScheduledReminder(ctx, rec); err != nil {
		return "", fmt.Errorf("create reminder record: %w", err)
	}
	return rec.ID, nil
}

// HandleReminderJob is the queue consumer entrypoint. It re-runs the guard
// before sending: the queue is at-least-once, so the job may be a duplicate or
// the invoice may have been paid since the job was enqueued.
func (s *Service) HandleReminderJob(ctx context.Context, job domain.ReminderJob) error {
	inv, err := s.repo.GetInvoice(ctx, job.InvoiceID)
	if err != nil {
		return err
	}

	if inv.IsSettled() {
		if _, err := s.repo.CancelScheduledReminders(ctx, inv.ID, settledReason(inv.Status)); err != nil {
			s.logger.Error("failed to cancel reminders for settled invoice", "invoice_id", inv.ID, "error", err)
		}
		return nil
	}

	records, err := s.repo.ListReminders(ctx, inv.ID)
	if err != nil {
		return err
	}

	decision := domain.Decision{Tone: job.Tone, DaysOverdue: job.OverdueDays}
	verdict := ShouldSend(decision, records, inv.LastReminderSent, time.Now().UTC())
	if !verdict.Allow {
		s.logger.Info("queued reminder suppressed by guard", "invoice_id", inv.ID, "tone", job.Tone, "reason", verdict.Reason)
		return nil
	}

	return s.deliverNow(ctx, *inv, decision)
}

// SettleInvoice cancels all scheduled reminders for an invoice that was paid,
// written off, or cancelled. It runs synchronously inside the payment flow;
// the caller logs any failure and must not roll the payment back over it.
func (s *Service) SettleInvoice(ctx context.Context, invoiceID, reason string) (int64, error) {
	if reason == "" {
		reason = "invoice settled; reminders cancelled"
	}
	cancelled, err := s.repo.CancelScheduledReminders(ctx, invoiceID, reason)
	if err != nil {
		return 0, fmt.Errorf("cancel scheduled reminders: %w", err)
	}
	if cancelled > 0 {
		s.logger.Info("cancelled scheduled reminders", "invoice_id", invoiceID, "count", cancelled)
	}
	return cancelled, nil
}

// SettleInvoices applies SettleInvoice across a bulk payment operation,
// continuing past individual failures.
func (s *Service) SettleInvoices(ctx context.Context, invoiceIDs []string, reason string) int64 {
	var total int64
	for _, id := range invoiceIDs {
		cancelled, err := s.SettleInvoice(ctx, id, reason)
		if err != nil {
			s.logger.Error("failed to cancel reminders during bulk settle", "invoice_id", id, "error", err)
			continue
		}
		total += cancelled
	}
	return total
}

// ListRemindersForOwner returns the delivery history for an invoice after
// verifying the caller owns it.
func (s *Service) ListRemindersForOwner(ctx context.Context, userID, invoiceID string) ([]domain.ReminderRecord, error) {
	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.UserID != userID {
		return nil, ErrNotInvoiceOwner
	}
	return s.repo.ListReminders(ctx, invoiceID)
}

func settledReason(status domain.InvoiceStatus) string {
	if status == domain.InvoiceStatusCancelled {
		return "invoice cancelled; reminders cancelled"
	}
	return "invoice paid; reminders cancelled"
}
