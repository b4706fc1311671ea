/**
 * @description
 * Data access layer for the reminder service. All record status transitions
 * use conditional UPDATEs keyed on current status, so two workers racing over
 * the same invoice cannot both move a slot to sent: the loser's write degrades
 * to a no-op instead of corrupting the counter.
 */
package store

import (
	"context"
	"errors"
	"time"

	"github.com/invoiceflow/reminder-service/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrInvoiceNotFound  = errors.New("invoice not found")
	ErrReminderNotFound = errors.New("reminder record not found")
)

// Repository handles database operations for reminders.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const invoiceColumns = `
	id, user_id, invoice_number, client_name, client_email, due_date, status,
	total, currency, payment_terms, reminder_count, last_reminder_sent,
	reminder_settings, created_at, updated_at
`

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var inv domain.Invoice
	var rawSettings []byte
	err := row.Scan(
		&inv.ID,
		&inv.UserID,
		&inv.InvoiceNumber,
		&inv.ClientName,
		&inv.ClientEmail,
		&inv.DueDate,
		&inv.Status,
		&inv.Total,
		&inv.Currency,
		&inv.PaymentTerms,
		&inv.ReminderCount,
		&inv.LastReminderSent,
		&rawSettings,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	settings, err := domain.ParseReminderConfig(rawSettings)
	if err != nil {
		// A broken settings blob disables reminders for this invoice only;
		// it must never fail the whole sweep.
		settings = domain.ReminderConfig{}
	}
	inv.ReminderSettings = settings
	return &inv, nil
}

// GetInvoice fetches a single invoice by id.
func (r *Repository) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	inv, err := scanInvoice(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return inv, nil
}

// ListReminderCandidates fetches invoices eligible for reminder evaluation:
// awaiting payment, under the reminder cap, and due within the evaluation
// horizon. The horizon reaches 30 days forward so before-due rules can fire.
func (r *Repository) ListReminderCandidates(ctx context.Context, asOf time.Time, maxReminders int) ([]domain.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE status = 'sent'
		  AND reminder_count < $1
		  AND (reminder_settings ->> 'enabled')::BOOLEAN = TRUE
		  AND due_date <= $2::DATE + INTERVAL '30 days'
		ORDER BY due_date
	`
	rows, err := r.db.Query(ctx, query, maxReminders, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

const reminderColumns = `
	id, invoice_id, reminder_type, reminder_status, overdue_days, email_id,
	sent_at, failure_reason, created_at, updated_at
`

func scanReminder(row pgx.Row) (*domain.ReminderRecord, error) {
	var rec domain.ReminderRecord
	err := row.Scan(
		&rec.ID,
		&rec.InvoiceID,
		&rec.Tone,
		&rec.Status,
		&rec.OverdueDays,
		&rec.EmailID,
		&rec.SentAt,
		&rec.FailureReason,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListReminders returns all delivery records for an invoice, newest first.
func (r *Repository) ListReminders(ctx context.Context, invoiceID string) ([]domain.ReminderRecord, error) {
	query := `SELECT ` + reminderColumns + ` FROM invoice_reminders WHERE invoice_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.ReminderRecord
	for rows.Next() {
		rec, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// CreateScheduledReminder inserts a fresh scheduled record for a slot.
func (r *Repository) CreateScheduledReminder(ctx context.Context, rec *domain.ReminderRecord) error {
	query := `
		INSERT INTO invoice_reminders (id, invoice_id, reminder_type, reminder_status, overdue_days)
		VALUES ($1, $2, $3, 'scheduled', $4)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query, rec.ID, rec.InvoiceID, rec.Tone, rec.OverdueDays).
		Scan(&rec.CreatedAt, &rec.UpdatedAt)
}

// RescheduleReminder re-arms an existing scheduled/failed record for a new
// attempt instead of inserting a duplicate row for the slot.
func (r *Repository) RescheduleReminder(ctx context.Context, recordID string, overdueDays int) error {
	query := `
		UPDATE invoice_reminders
		SET reminder_status = 'scheduled',
		    overdue_days = $1,
		    failure_reason = NULL,
		    updated_at = NOW()
		WHERE id = $2
		  AND reminder_status IN ('scheduled', 'failed')
	`
	tag, err := r.db.Exec(ctx, query, overdueDays, recordID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrReminderNotFound
	}
	return nil
}

// MarkReminderSent transitions the newest scheduled/failed record for the slot
// to sent and, in the same transaction, increments the invoice's reminder
// counter and stamps last_reminder_sent. The update is conditional on no sent
// record existing for the slot; when another worker already won, it reports
// applied=false and touches nothing.
func (r *Repository) MarkReminderSent(ctx context.Context, invoiceID string, tone domain.Tone, overdueDays int, emailID string, sentAt time.Time) (applied bool, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE invoice_reminders
		SET reminder_status = 'sent',
		    overdue_days = $1,
		    email_id = $2,
		    sent_at = $3,
		    failure_reason = NULL,
		    updated_at = NOW()
		WHERE id = (
			SELECT id FROM invoice_reminders
			WHERE invoice_id = $4
			  AND reminder_type = $5
			  AND reminder_status IN ('scheduled', 'failed')
			ORDER BY created_at DESC
			LIMIT 1
		)
		  AND NOT EXISTS (
			SELECT 1 FROM invoice_reminders
			WHERE invoice_id = $4
			  AND reminder_type = $5
			  AND reminder_status = 'sent'
		  )
	`
	tag, err := tx.Exec(ctx, query, overdueDays, emailID, sentAt, invoiceID, tone)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	counterQuery := `
		UPDATE invoices
		SET reminder_count = reminder_count + 1,
		    last_reminder_sent = $1,
		    updated_at = NOW()
		WHERE id = $2
	`
	if _, err := tx.Exec(ctx, counterQuery, sentAt, invoiceID); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// MarkReminderFailed records a transient delivery failure on the newest
// scheduled record. Failed is not terminal; the next cycle may retry the slot.
func (r *Repository) MarkReminderFailed(ctx context.Context, invoiceID string, tone domain.Tone, reason string) error {
	query := `
		UPDATE invoice_reminders
		SET reminder_status = 'failed',
		    failure_reason = $1,
		    updated_at = NOW()
		WHERE id = (
			SELECT id FROM invoice_reminders
			WHERE invoice_id = $2
			  AND reminder_type = $3
			  AND reminder_status = 'scheduled'
			ORDER BY created_at DESC
			LIMIT 1
		)
	`
	_, err := r.db.Exec(ctx, query, reason, invoiceID, tone)
	return err
}

// CancelReminder cancels the newest non-terminal record for one slot, used
// when the subscription gate denies a specific attempt.
func (r *Repository) CancelReminder(ctx context.Context, invoiceID string, tone domain.Tone, reason string) error {
	query := `
		UPDATE invoice_reminders
		SET reminder_status = 'cancelled',
		    failure_reason = $1,
		    updated_at = NOW()
		WHERE id = (
			SELECT id FROM invoice_reminders
			WHERE invoice_id = $2
			  AND reminder_type = $3
			  AND reminder_status IN ('scheduled', 'failed')
			ORDER BY created_at DESC
			LIMIT 1
		)
	`
	_, err := r.db.Exec(ctx, query, reason, invoiceID, tone)
	return err
}

// CancelScheduledReminders cancels every outstanding record for an invoice.
// It is called synchronously from payment and write-off flows so a client can
// never receive a reminder for an invoice that was just settled.
func (r *Repository) CancelScheduledReminders(ctx context.Context, invoiceID string, reason string) (int64, error) {
	query := `
		UPDATE invoice_reminders
		SET reminder_status = 'cancelled',
		    failure_reason = $1,
		    updated_at = NOW()
		WHERE invoice_id = $2
		  AND reminder_status IN ('scheduled', 'failed')
	`
	tag, err := r.db.Exec(ctx, query, reason, invoiceID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
