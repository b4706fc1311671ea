package app

import (
	"testing"
	"time"

	"github.com/invoiceflow/reminder-service/internal/domain"
)

var due = time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

func day(offset int) time.Time {
	return due.AddDate(0, 0, offset)
}

func systemConfig() domain.ReminderConfig {
	return domain.ReminderConfig{Enabled: true, UseSystemDefaults: true}
}

func TestEvaluate_DisabledConfigNeverMatches(t *testing.T) {
	cfg := domain.ReminderConfig{Enabled: false, UseSystemDefaults: true}
	for offset := -30; offset <= 30; offset++ {
		if d := Evaluate(day(offset), due, "Net 30", cfg); d != nil {
			t.Fatalf("expected no decision at offset %d, got %+v", offset, d)
		}
	}
}

func TestEvaluate_Net30SystemSchedule(t *testing.T) {
	tests := []struct {
		offset int
		tone   domain.Tone
		match  bool
	}{
		{-20, "", false},
		{-14, domain.ToneFriendly, true},
		{-7, domain.TonePolite, true},
		{-1, "", false},
		{1, domain.ToneFirm, true},
		{2, domain.ToneFirm, true}, // after-due slots keep a 2-day window
		{3, "", false},
		{7, domain.ToneUrgent, true},
		{8, domain.ToneUrgent, true},
		{9, "", false},
	}

	for _, tc := range tests {
		d := Evaluate(day(tc.offset), due, "Net 30", systemConfig())
		if !tc.match {
			if d != nil {
				t.Errorf("offset %d: expected no decision, got %+v", tc.offset, d)
			}
			continue
		}
		if d == nil {
			t.Errorf("offset %d: expected tone %s, got none", tc.offset, tc.tone)
			continue
		}
		if d.Tone != tc.tone {
			t.Errorf("offset %d: expected tone %s, got %s", tc.offset, tc.tone, d.Tone)
		}
		if d.DaysOverdue != tc.offset {
			t.Errorf("offset %d: expected daysOverdue %d, got %d", tc.offset, tc.offset, d.DaysOverdue)
		}
	}
}

func TestEvaluate_DueOnReceiptIsAllAfterDue(t *testing.T) {
	if d := Evaluate(day(-1), due, "Due on Receipt", systemConfig()); d != nil {
		t.Fatalf("expected no before-due reminder, got %+v", d)
	}
	d := Evaluate(day(1), due, "Due on Receipt", systemConfig())
	if d == nil || d.Tone != domain.ToneFriendly {
		t.Fatalf("expected friendly at +1, got %+v", d)
	}
}

func TestEvaluate_UnknownTermsFallBackOnLeadingInteger(t *testing.T) {
	// Net 45 > 15 days: follows the Net 30 cadence.
	d := Evaluate(day(-14), due, "Net 45", systemConfig())
	if d == nil || d.Tone != domain.ToneFriendly {
		t.Fatalf("expected Net 30 cadence for Net 45, got %+v", d)
	}

	// Net 7 <= 15 days: follows the Net 15 cadence.
	d = Evaluate(day(-7), due, "Net 7", systemConfig())
	if d == nil || d.Tone != domain.ToneFriendly {
		t.Fatalf("expected Net 15 cadence for Net 7, got %+v", d)
	}

	// No extractable integer: broken config behaves as no match, never panics.
	if d := Evaluate(day(1), due, "Whenever", systemConfig()); d != nil {
		t.Fatalf("expected no decision for unparseable terms, got %+v", d)
	}
}

func TestEvaluate_CustomBeforeRulesPickSmallestReachedThreshold(t *testing.T) {
	cfg := domain.ReminderConfig{
		Enabled: true,
		CustomRules: []domain.ReminderRule{
			{Type: domain.RuleBeforeDue, Days: 7, Tone: domain.ToneFriendly, Enabled: true},
			{Type: domain.RuleBeforeDue, Days: 3, Tone: domain.ToneFirm, Enabled: true},
		},
	}

	// daysUntilDue=5: smallest days >= 5 is the 7-day rule, not the 3-day one.
	d := Evaluate(day(-5), due, "Net 30", cfg)
	if d == nil || d.Tone != domain.ToneFriendly {
		t.Fatalf("expected the 7-day rule to match at daysUntilDue=5, got %+v", d)
	}

	d = Evaluate(day(-2), due, "Net 30", cfg)
	if d == nil || d.Tone != domain.ToneFirm {
		t.Fatalf("expected the 3-day rule to match at daysUntilDue=2, got %+v", d)
	}

	if d := Evaluate(day(-10), due, "Net 30", cfg); d != nil {
		t.Fatalf("expected no match beyond the furthest rule, got %+v", d)
	}
}

func TestEvaluate_CustomAfterRulesPickHighestCrossedThreshold(t *testing.T) {
	cfg := domain.ReminderConfig{
		Enabled: true,
		CustomRules: []domain.ReminderRule{
			{Type: domain.RuleAfterDue, Days: 3, Tone: domain.TonePolite, Enabled: true},
			{Type: domain.RuleAfterDue, Days: 10, Tone: domain.ToneUrgent, Enabled: true},
		},
	}

	d := Evaluate(day(12), due, "Net 30", cfg)
	if d == nil || d.Tone != domain.ToneUrgent {
		t.Fatalf("expected the 10-day rule at 12 days overdue, got %+v", d)
	}

	d = Evaluate(day(5), due, "Net 30", cfg)
	if d == nil || d.Tone != domain.TonePolite {
		t.Fatalf("expected the 3-day rule at 5 days overdue, got %+v", d)
	}

	if d := Evaluate(day(2), due, "Net 30", cfg); d != nil {
		t.Fatalf("expected no match before any threshold, got %+v", d)
	}
}

func TestEvaluate_DisabledRulesAreIgnored(t *testing.T) {
	cfg := domain.ReminderConfig{
		Enabled: true,
		CustomRules: []domain.ReminderRule{
			{Type: domain.RuleAfterDue, Days: 1, Tone: domain.ToneUrgent, Enabled: false},
		},
	}
	if d := Evaluate(day(2), due, "Net 30", cfg); d != nil {
		t.Fatalf("expected disabled rule to be skipped, got %+v", d)
	}
}

func TestEvaluate_MissingRuleToneDefaultsToPolite(t *testing.T) {
	cfg := domain.ReminderConfig{
		Enabled: true,
		CustomRules: []domain.ReminderRule{
			{Type: domain.RuleAfterDue, Days: 1, Enabled: true},
		},
	}
	d := Evaluate(day(2), due, "Net 30", cfg)
	if d == nil || d.Tone != domain.TonePolite {
		t.Fatalf("expected polite default tone, got %+v", d)
	}
}

func TestEvaluate_EmptyRuleListNeverMatches(t *testing.T) {
	cfg := domain.ReminderConfig{Enabled: true}
	for offset := -30; offset <= 30; offset++ {
		if d := Evaluate(day(offset), due, "Net 30", cfg); d != nil {
			t.Fatalf("expected no decision at offset %d, got %+v", offset, d)
		}
	}
}

func TestEvaluate_NormalizesTimeOfDayAndZone(t *testing.T) {
	// 23:30 in UTC+2 on the 16th is still the 16th in UTC (21:30); exactly one
	// day past a midnight-UTC due date of the 15th.
	lagos := time.FixedZone("UTC+2", 2*60*60)
	today := time.Date(2026, 3, 16, 23, 30, 0, 0, lagos)

	d := Evaluate(today, due, "Net 30", systemConfig())
	if d == nil || d.Tone != domain.ToneFirm || d.DaysOverdue != 1 {
		t.Fatalf("expected firm at 1 day overdue after normalization, got %+v", d)
	}
}
