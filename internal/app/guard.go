/**
 * @description
 * Dedup/state guard: decides whether a matched reminder decision may actually
 * be dispatched, based on the invoice's existing delivery records.
 */
package app

import (
	"time"

	"github.com/invoiceflow/reminder-service/internal/domain"
)

// minReminderGap is the minimum spacing between any two reminders for one
// invoice, across all tones. It stops escalation rules from firing
// back-to-back within the same day when trigger cycles overlap.
const minReminderGap = 24 * time.Hour

// GuardVerdict is the outcome of the dedup check. When Allow is set, Reuse
// points at the newest scheduled/failed record for the slot, if one exists;
// the dispatcher updates it in place instead of inserting a duplicate.
type GuardVerdict struct {
	Allow  bool
	Reason string
	Reuse  *domain.ReminderRecord
}

func vetoed(reason string) GuardVerdict {
	return GuardVerdict{Allow: false, Reason: reason}
}

// ShouldSend applies the per-slot uniqueness and minimum-gap rules. The
// subscription gate is checked separately by the caller because it is an
// external call with its own outcome (cancellation rather than a plain skip).
func ShouldSend(decision domain.Decision, records []domain.ReminderRecord, lastReminderSent *time.Time, now time.Time) GuardVerdict {
	var reuse *domain.ReminderRecord

	for i := range records {
		rec := &records[i]
		if rec.Tone != decision.Tone {
			continue
		}
		switch rec.Status {
		case domain.ReminderStatusSent:
			return vetoed("reminder already sent for this tone")
		case domain.ReminderStatusScheduled, domain.ReminderStatusFailed:
			if reuse == nil || rec.CreatedAt.After(reuse.CreatedAt) {
				reuse = rec
			}
		}
	}

	if lastReminderSent != nil && now.Sub(*lastReminderSent) < minReminderGap {
		if sentWithinGap(records, now) {
			return vetoed("another reminder was sent within the last 24 hours")
		}
	}

	return GuardVerdict{Allow: true, Reuse: reuse}
}

func sentWithinGap(records []domain.ReminderRecord, now time.Time) bool {
	for _, rec := range records {
		if rec.Status != domain.ReminderStatusSent || rec.SentAt == nil {
			continue
		}
		if now.Sub(*rec.SentAt) < minReminderGap {
			return true
		}
	}
	return false
}
