/**
 * @description
 * Message bus payloads and routing keys exchanged over the events exchange.
 */
package domain

// EventsExchange is the topic exchange shared by the billing services.
const EventsExchange = "invoiceflow.events"

// Routing keys consumed or published by the reminder service.
const (
	RoutingKeyReminderSend      = "reminder.send"
	RoutingKeyInvoiceSettled    = "invoice.payment.settled"
	RoutingKeyInvoiceWrittenOff = "invoice.written_off"
)

// ReminderJob is the queued send job. The consumer re-runs the dedup guard
// before sending, so a replayed job is harmless.
type ReminderJob struct {
	InvoiceID   string `json:"invoice_id"`
	Tone        Tone   `json:"tone"`
	OverdueDays int    `json:"overdue_days"`
	ClientEmail string `json:"client_email"`
}

// InvoiceSettledEvent announces that an invoice was paid, written off, or
// bulk-marked paid. Receipt cancels any scheduled reminders for it.
type InvoiceSettledEvent struct {
	InvoiceID string `json:"invoice_id"`
	Reason    string `json:"reason,omitempty"`
}
