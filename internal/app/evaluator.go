/**
 * @description
 * Pure reminder rule evaluation. Given an invoice's due date, payment terms,
 * and reminder configuration, decides which tone (if any) is due today.
 */
package app

import (
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/invoiceflow/reminder-service/internal/domain"
)

// systemTones assigns tones positionally: first slot friendly, last urgent.
var systemTones = [4]domain.Tone{
	domain.ToneFriendly,
	domain.TonePolite,
	domain.ToneFirm,
	domain.ToneUrgent,
}

// System default schedules keyed by payment terms label. Offsets are days
// relative to the due date: negative fires before due, positive after.
var systemSchedules = map[string][4]int{
	"due on receipt": {1, 3, 7, 14},
	"net 15":         {-7, -3, 1, 7},
	"net 30":         {-14, -7, 1, 7},
	"2/10 net 30":    {-20, -10, 1, 7},
}

// afterSlotWindow is the number of days an after-due slot stays matchable, so
// a sweep that skips a day does not silently drop an escalation.
const afterSlotWindow = 2

// Evaluate returns the reminder decision due for this invoice today, or nil if
// no rule matches. Both dates are truncated to midnight UTC before comparison.
func Evaluate(today, dueDate time.Time, paymentTerms string, cfg domain.ReminderConfig) *domain.Decision {
	if !cfg.Enabled {
		return nil
	}

	daysOverdue := daysBetween(dueDate, today)

	if cfg.UseSystemDefaults {
		return evaluateSystemDefaults(daysOverdue, paymentTerms)
	}
	return evaluateCustomRules(daysOverdue, cfg.CustomRules)
}

func evaluateSystemDefaults(daysOverdue int, paymentTerms string) *domain.Decision {
	schedule, ok := scheduleForTerms(paymentTerms)
	if !ok {
		return nil
	}

	for slot, offset := range schedule {
		if offset < 0 {
			// Before-due slots match on the exact day only.
			if daysOverdue == offset {
				return &domain.Decision{Tone: systemTones[slot], DaysOverdue: daysOverdue}
			}
			continue
		}
		if daysOverdue >= offset && daysOverdue < offset+afterSlotWindow {
			return &domain.Decision{Tone: systemTones[slot], DaysOverdue: daysOverdue}
		}
	}
	return nil
}

func evaluateCustomRules(daysOverdue int, rules []domain.ReminderRule) *domain.Decision {
	if daysOverdue < 0 {
		daysUntilDue := -daysOverdue

		// Ascending by days: pick the smallest threshold that has been reached
		// from the "soonest" direction.
		candidates := enabledRules(rules, domain.RuleBeforeDue)
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].Days < candidates[j].Days })
		for _, rule := range candidates {
			if daysUntilDue <= rule.Days {
				return &domain.Decision{Tone: ruleTone(rule), DaysOverdue: daysOverdue}
			}
		}
		return nil
	}

	// Descending by days: the highest crossed threshold wins, keeping the
	// most escalated rule when several have matched.
	candidates := enabledRules(rules, domain.RuleAfterDue)
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Days > candidates[j].Days })
	for _, rule := range candidates {
		if daysOverdue >= rule.Days {
			return &domain.Decision{Tone: ruleTone(rule), DaysOverdue: daysOverdue}
		}
	}
	return nil
}

func enabledRules(rules []domain.ReminderRule, ruleType domain.RuleType) []domain.ReminderRule {
	out := make([]domain.ReminderRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Enabled && rule.Type == ruleType {
			out = append(out, rule)
		}
	}
	return out
}

func ruleTone(rule domain.ReminderRule) domain.Tone {
	if rule.Tone != "" {
		if tone, ok := domain.ParseTone(string(rule.Tone)); ok {
			return tone
		}
	}
	return domain.TonePolite
}

// scheduleForTerms resolves the default schedule for a payment terms label.
// Unknown labels fall back on their leading integer: "Net 45" patterns use the
// Net 15 cadence when the term is 15 days or shorter, Net 30 otherwise.
func scheduleForTerms(label string) ([4]int, bool) {
	normalized := strings.ToLower(strings.TrimSpace(label))
	if schedule, ok := systemSchedules[normalized]; ok {
		return schedule, true
	}

	days, ok := leadingInt(normalized)
	if !ok {
		return [4]int{}, false
	}
	if days <= 15 {
		return systemSchedules["net 15"], true
	}
	return systemSchedules["net 30"], true
}

// leadingInt extracts the first run of digits from a label.
func leadingInt(label string) (int, bool) {
	start := -1
	for i, r := range label {
		if unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			n, err := strconv.Atoi(label[start:i])
			return n, err == nil
		}
	}
	if start >= 0 {
		n, err := strconv.Atoi(label[start:])
		return n, err == nil
	}
	return 0, false
}

// daysBetween returns whole calendar days from a to b, both truncated to
// midnight UTC to dodge timezone and clock-skew off-by-ones.
func daysBetween(a, b time.Time) int {
	return int(midnightUTC(b).Sub(midnightUTC(a)).Hours() / 24)
}

func midnightUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
