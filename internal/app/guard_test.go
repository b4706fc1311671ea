package app

import (
	"testing"
	"time"

	"github.com/invoiceflow/reminder-service/internal/domain"
)

func sentRecord(tone domain.Tone, sentAt time.Time) domain.ReminderRecord {
	return domain.ReminderRecord{
		ID:        "rec-" + string(tone),
		InvoiceID: "inv-1",
		Tone:      tone,
		Status:    domain.ReminderStatusSent,
		SentAt:    &sentAt,
		CreatedAt: sentAt,
	}
}

func TestShouldSend_AllowsFirstReminder(t *testing.T) {
	now := time.Now().UTC()
	decision := domain.Decision{Tone: domain.ToneFriendly, DaysOverdue: -14}

	verdict := ShouldSend(decision, nil, nil, now)
	if !verdict.Allow {
		t.Fatalf("expected allow, got veto: %s", verdict.Reason)
	}
	if verdict.Reuse != nil {
		t.Fatal("expected no record to reuse")
	}
}

func TestShouldSend_VetoesWhenSlotAlreadySent(t *testing.T) {
	now := time.Now().UTC()
	records := []domain.ReminderRecord{sentRecord(domain.ToneFirm, now.Add(-72*time.Hour))}
	decision := domain.Decision{Tone: domain.ToneFirm, DaysOverdue: 1}

	verdict := ShouldSend(decision, records, &records[0].CreatedAt, now)
	if verdict.Allow {
		t.Fatal("expected veto for already-sent tone slot")
	}
}

func TestShouldSend_VetoesWithinMinimumGapAcrossTones(t *testing.T) {
	now := time.Now().UTC()
	lastSent := now.Add(-2 * time.Hour)
	records := []domain.ReminderRecord{sentRecord(domain.ToneFriendly, lastSent)}
	decision := domain.Decision{Tone: domain.ToneFirm, DaysOverdue: 1}

	verdict := ShouldSend(decision, records, &lastSent, now)
	if verdict.Allow {
		t.Fatal("expected veto inside the 24h minimum gap, regardless of tone")
	}
}

func TestShouldSend_AllowsAfterMinimumGapElapsed(t *testing.T) {
	now := time.Now().UTC()
	lastSent := now.Add(-25 * time.Hour)
	records := []domain.ReminderRecord{sentRecord(domain.ToneFriendly, lastSent)}
	decision := domain.Decision{Tone: domain.ToneFirm, DaysOverdue: 1}

	verdict := ShouldSend(decision, records, &lastSent, now)
	if !verdict.Allow {
		t.Fatalf("expected allow after gap elapsed, got veto: %s", verdict.Reason)
	}
}

func TestShouldSend_StaleCounterWithoutRecentRecordAllows(t *testing.T) {
	// last_reminder_sent can be fresher than the records when another worker
	// is mid-commit; the gap veto requires an actually-sent record inside it.
	now := time.Now().UTC()
	lastSent := now.Add(-2 * time.Hour)

	verdict := ShouldSend(domain.Decision{Tone: domain.ToneFirm}, nil, &lastSent, now)
	if !verdict.Allow {
		t.Fatalf("expected allow without a sent record in the gap, got veto: %s", verdict.Reason)
	}
}

func TestShouldSend_ReusesNewestNonTerminalRecord(t *testing.T) {
	now := time.Now().UTC()
	older := domain.ReminderRecord{
		ID:        "rec-old",
		Tone:      domain.ToneFirm,
		Status:    domain.ReminderStatusFailed,
		CreatedAt: now.Add(-48 * time.Hour),
	}
	newer := domain.ReminderRecord{
		ID:        "rec-new",
		Tone:      domain.ToneFirm,
		Status:    domain.ReminderStatusScheduled,
		CreatedAt: now.Add(-24 * time.Hour),
	}
	cancelled := domain.ReminderRecord{
		ID:        "rec-cancelled",
		Tone:      domain.ToneFirm,
		Status:    domain.ReminderStatusCancelled,
		CreatedAt: now.Add(-1 * time.Hour),
	}

	verdict := ShouldSend(domain.Decision{Tone: domain.ToneFirm}, []domain.ReminderRecord{older, newer, cancelled}, nil, now)
	if !verdict.Allow {
		t.Fatalf("unexpected veto: %s", verdict.Reason)
	}
	if verdict.Reuse == nil || verdict.Reuse.ID != "rec-new" {
		t.Fatalf("expected newest scheduled/failed record reused, got %+v", verdict.Reuse)
	}
}
