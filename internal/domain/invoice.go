/**
 * @description
 * Domain models for invoices as seen by the reminder service. The service only
 * reads status/due date/payment terms and writes the reminder counters; the rest
 * of the invoice lifecycle is owned by the billing service.
 */
package domain

import "time"

// InvoiceStatus enumerates the invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
	InvoiceStatusExpired   InvoiceStatus = "expired"
)

// Invoice represents an invoice row relevant to reminder scheduling.
type Invoice struct {
	ID               string         `json:"id"`
	UserID           string         `json:"user_id"`
	InvoiceNumber    string         `json:"invoice_number"`
	ClientName       string         `json:"client_name"`
	ClientEmail      string         `json:"client_email"`
	DueDate          time.Time      `json:"due_date"`
	Status           InvoiceStatus  `json:"status"`
	Total            int64          `json:"total"`
	Currency         string         `json:"currency"`
	PaymentTerms     string         `json:"payment_terms"`
	ReminderCount    int            `json:"reminder_count"`
	LastReminderSent *time.Time     `json:"last_reminder_sent,omitempty"`
	ReminderSettings ReminderConfig `json:"reminder_settings"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// IsSettled reports whether the invoice no longer owes anything a client could
// be reminded about. Write-offs land on the paid status as well.
func (i Invoice) IsSettled() bool {
	return i.Status == InvoiceStatusPaid || i.Status == InvoiceStatusCancelled
}
