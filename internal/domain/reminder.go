/**
 * @description
 * Domain models for reminder configuration, rules, and delivery records.
 * Reminder settings arrive as a JSON blob on the invoice row; they are parsed
 * and validated once on read so the evaluator always operates on typed values.
 */
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Tone is the escalation level of a reminder, strictly ordered
// friendly < polite < firm < urgent.
type Tone string

const (
	ToneFriendly Tone = "friendly"
	TonePolite   Tone = "polite"
	ToneFirm     Tone = "firm"
	ToneUrgent   Tone = "urgent"
)

// toneRank orders tones by escalation.
var toneRank = map[Tone]int{
	ToneFriendly: 0,
	TonePolite:   1,
	ToneFirm:     2,
	ToneUrgent:   3,
}

// ParseTone validates a tone value.
func ParseTone(s string) (Tone, bool) {
	t := Tone(s)
	_, ok := toneRank[t]
	return t, ok
}

// Escalation returns the tone's position in the escalation order.
func (t Tone) Escalation() int {
	return toneRank[t]
}

// RuleType anchors a rule before or after the due date.
type RuleType string

const (
	RuleBeforeDue RuleType = "before"
	RuleAfterDue  RuleType = "after"
)

// ReminderRule is a single user-authored trigger: fire `Days` days before or
// after the due date, with an optional tone override.
type ReminderRule struct {
	ID      string   `json:"id"`
	Type    RuleType `json:"type"`
	Days    int      `json:"days"`
	Tone    Tone     `json:"tone,omitempty"`
	Enabled bool     `json:"enabled"`
}

// ReminderConfig is the per-invoice reminder configuration. When
// UseSystemDefaults is set, CustomRules is ignored and the schedule is derived
// from the invoice's payment terms.
type ReminderConfig struct {
	Enabled           bool           `json:"enabled"`
	UseSystemDefaults bool           `json:"useSystemDefaults"`
	CustomRules       []ReminderRule `json:"customRules,omitempty"`
}

// ParseReminderConfig decodes and validates a raw reminder settings blob.
// Rules with a negative day offset or an unknown type are dropped; an invalid
// tone override is cleared so the evaluator applies its default. A decode
// failure is returned to the caller, which treats the config as disabled; a
// broken blob must never take down a sweep.
func ParseReminderConfig(raw []byte) (ReminderConfig, error) {
	var cfg ReminderConfig
	if len(raw) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return ReminderConfig{}, fmt.Errorf("decode reminder settings: %w", err)
	}

	valid := cfg.CustomRules[:0]
	for _, rule := range cfg.CustomRules {
		if rule.Days < 0 {
			continue
		}
		if rule.Type != RuleBeforeDue && rule.Type != RuleAfterDue {
			continue
		}
		if rule.Tone != "" {
			if _, ok := ParseTone(string(rule.Tone)); !ok {
				rule.Tone = ""
			}
		}
		valid = append(valid, rule)
	}
	cfg.CustomRules = valid
	return cfg, nil
}

// ReminderStatus enumerates the delivery record lifecycle. Sent is terminal;
// scheduled and failed records may still be cancelled or retried.
type ReminderStatus string

const (
	ReminderStatusScheduled ReminderStatus = "scheduled"
	ReminderStatusSent      ReminderStatus = "sent"
	ReminderStatusFailed    ReminderStatus = "failed"
	ReminderStatusCancelled ReminderStatus = "cancelled"
)

// ReminderRecord is one delivery record for an (invoice, tone) slot. Records
// are never deleted, only status-transitioned.
type ReminderRecord struct {
	ID            string         `json:"id"`
	InvoiceID     string         `json:"invoice_id"`
	Tone          Tone           `json:"reminder_type"`
	Status        ReminderStatus `json:"reminder_status"`
	OverdueDays   int            `json:"overdue_days"`
	EmailID       *string        `json:"email_id,omitempty"`
	SentAt        *time.Time     `json:"sent_at,omitempty"`
	FailureReason *string        `json:"failure_reason,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Decision is the evaluator's output: which tone is due today and how far the
// invoice is past due (negative means not yet due).
type Decision struct {
	Tone        Tone `json:"tone"`
	DaysOverdue int  `json:"days_overdue"`
}
