/**
 * @description
 * Per-tone subject lines and HTML bodies for reminder emails. Tone selects
 * copy only; it carries no business logic beyond its escalation order.
 */
package domain

import (
	"fmt"
	"strings"
)

var toneSubjects = map[Tone]string{
	ToneFriendly: "A quick note about invoice %s",
	TonePolite:   "Reminder: invoice %s is awaiting payment",
	ToneFirm:     "Invoice %s is overdue",
	ToneUrgent:   "Urgent: invoice %s requires immediate payment",
}

var toneOpeners = map[Tone]string{
	ToneFriendly: "Just a friendly heads-up that invoice %s is coming due.",
	TonePolite:   "This is a polite reminder that invoice %s is awaiting payment.",
	ToneFirm:     "Invoice %s is now %d day(s) overdue. Please arrange payment at your earliest convenience.",
	ToneUrgent:   "Invoice %s is %d day(s) overdue. Immediate payment is required to avoid further action.",
}

// BuildReminderEmail renders the subject and HTML body for a reminder.
func BuildReminderEmail(inv Invoice, tone Tone, daysOverdue int) (subject, html string) {
	subject = fmt.Sprintf(toneSubjects[tone], inv.InvoiceNumber)

	var opener string
	switch tone {
	case ToneFirm, ToneUrgent:
		opener = fmt.Sprintf(toneOpeners[tone], inv.InvoiceNumber, daysOverdue)
	default:
		opener = fmt.Sprintf(toneOpeners[tone], inv.InvoiceNumber)
	}

	var b strings.Builder
	b.WriteString("<html><body>")
	b.WriteString(fmt.Sprintf("<p>Hi %s,</p>", inv.ClientName))
	b.WriteString(fmt.Sprintf("<p>%s</p>", opener))
	b.WriteString(fmt.Sprintf(
		"<p><strong>Invoice %s</strong><br>Amount due: %s %s<br>Due date: %s</p>",
		inv.InvoiceNumber,
		FormatAmount(inv.Total),
		inv.Currency,
		inv.DueDate.Format("2 January 2006"),
	))
	b.WriteString("<p>If you have already paid, please disregard this message.</p>")
	b.WriteString("</body></html>")

	return subject, b.String()
}

// FormatAmount renders a minor-unit amount with two decimal places.
func FormatAmount(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}
