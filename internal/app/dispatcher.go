/**
 * @description
 * Dispatch state machine: try the durable queue first, fall back to a
 * synchronous inline send when the queue is disabled, unconfigured, or the
 * dispatch callback has no public ingress. The fallback guarantees a reminder
 * still goes out with zero queue infrastructure.
 */
package app

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/invoiceflow/reminder-service/internal/domain"
	"github.com/invoiceflow/reminder-service/pkg/rabbitmq"
)

// queueRetries is the redelivery budget handed to the queue per job.
const queueRetries = 3

// QueuePublisher is the interface the dispatcher needs from the message bus.
type QueuePublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}, opts rabbitmq.PublishOptions) error
}

// dispatch enqueues the send job when the queue path is available, otherwise
// performs the send inline. A publish failure also falls through to the
// synchronous path rather than dropping the reminder.
func (s *Service) dispatch(ctx context.Context, inv domain.Invoice, decision domain.Decision, recordID string, now time.Time) error {
	if s.queueAvailable() {
		job := domain.ReminderJob{
			InvoiceID:   inv.ID,
			Tone:        decision.Tone,
			OverdueDays: decision.DaysOverdue,
			ClientEmail: inv.ClientEmail,
		}
		opts := rabbitmq.PublishOptions{
			MessageID:  dedupKey(inv.ID, decision.Tone, now),
			MaxRetries: queueRetries,
		}
		err := s.publisher.Publish(ctx, domain.EventsExchange, domain.RoutingKeyReminderSend, job, opts)
		if err == nil {
			s.logger.Info("reminder enqueued", "invoice_id", inv.ID, "tone", decision.Tone, "record_id", recordID)
			return nil
		}
		s.logger.Warn("queue enqueue failed, sending synchronously", "invoice_id", inv.ID, "error", err)
	}

	return s.deliverNow(ctx, inv, decision)
}

// queueAvailable reports whether the asynchronous path can be used: feature
// flag on, a connected publisher, and a dispatch callback reachable from
// outside. A loopback callback means the queue could accept the job but never
// deliver it back, so we fast-fail to the synchronous path without network I/O.
func (s *Service) queueAvailable() bool {
	if !s.config.QueueDispatchEnabled {
		return false
	}
	if s.publisher == nil {
		return false
	}
	return !isLoopbackEndpoint(s.config.DispatchCallbackURL)
}

func isLoopbackEndpoint(rawURL string) bool {
	if rawURL == "" {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback() || ip.IsUnspecified()
	}
	return false
}

// dedupKey collapses duplicate enqueue attempts for the same logical job: the
// same invoice, tone, and calendar day always map to one key.
func dedupKey(invoiceID string, tone domain.Tone, now time.Time) string {
	return fmt.Sprintf("%s:%s:%s", invoiceID, tone, now.UTC().Format("2006-01-02"))
}

// deliverNow performs the synchronous send and records the outcome. It is the
// single place that transitions records to sent or failed, shared by the
// fallback path and the queue consumer.
func (s *Service) deliverNow(ctx context.Context, inv domain.Invoice, decision domain.Decision) error {
	now := time.Now().UTC()

	if s.limiter != nil {
		_, retryAfter, err := s.limiter.ConsumeSendQuota(ctx, inv.UserID, s.config.SendRateLimitPerMin, time.Minute)
		if err != nil {
			// Limiter outage must not block reminders; log and continue.
			s.logger.Warn("send rate limiter unavailable", "invoice_id", inv.ID, "error", err)
		} else if retryAfter > 0 {
			reason := fmt.Sprintf("send rate limit exceeded, retry after %ds", retryAfter)
			if err := s.repo.MarkReminderFailed(ctx, inv.ID, decision.Tone, reason); err != nil {
				return fmt.Errorf("record throttled reminder: %w", err)
			}
			return fmt.Errorf("reminder throttled for invoice %s: %s", inv.ID, reason)
		}
	}

	subject, html := domain.BuildReminderEmail(inv, decision.Tone, decision.DaysOverdue)

	emailID, err := s.mailer.Send(ctx, inv.ClientEmail, subject, html)
	if err != nil {
		if recordErr := s.repo.MarkReminderFailed(ctx, inv.ID, decision.Tone, err.Error()); recordErr != nil {
			s.logger.Error("failed to record send failure", "invoice_id", inv.ID, "error", recordErr)
		}
		return fmt.Errorf("send reminder email: %w", err)
	}

	applied, err := s.repo.MarkReminderSent(ctx, inv.ID, decision.Tone, decision.DaysOverdue, emailID, now)
	if err != nil {
		return fmt.Errorf("record sent reminder: %w", err)
	}
	if !applied {
		// A concurrent worker won the slot between our guard check and the
		// commit; the conditional update degrades to a no-op.
		s.logger.Warn("duplicate reminder send suppressed at commit", "invoice_id", inv.ID, "tone", decision.Tone)
		return nil
	}

	s.logger.Info("reminder sent", "invoice_id", inv.ID, "tone", decision.Tone, "email_id", emailID, "overdue_days", decision.DaysOverdue)
	return nil
}
