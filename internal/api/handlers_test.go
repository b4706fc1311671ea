package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestInternalAuthMiddleware_RejectsMissingKey(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := InternalAuthMiddleware("secret")(next)

	req := httptest.NewRequest(http.MethodPost, "/internal/reminders/sweep", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rec.Code)
	}
}

func TestInternalAuthMiddleware_RejectsWrongKey(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := InternalAuthMiddleware("secret")(next)

	req := httptest.NewRequest(http.MethodPost, "/internal/reminders/sweep", nil)
	req.Header.Set("X-Internal-API-Key", "wrong")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong key, got %d", rec.Code)
	}
}

func TestInternalAuthMiddleware_AllowsMatchingKey(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := InternalAuthMiddleware("secret")(next)

	req := httptest.NewRequest(http.MethodPost, "/internal/reminders/sweep", nil)
	req.Header.Set("X-Internal-API-Key", "secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected request to pass through, got %d", rec.Code)
	}
}

func TestHandleBulkSettle_RejectsInvalidBody(t *testing.T) {
	h := NewHandler(nil)

	req := httptest.NewRequest(http.MethodPost, "/internal/invoices/settled/bulk", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	h.handleBulkSettleInvoices(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid body, got %d", rec.Code)
	}
}

func TestHandleBulkSettle_RequiresInvoiceIDs(t *testing.T) {
	h := NewHandler(nil)

	req := httptest.NewRequest(http.MethodPost, "/internal/invoices/settled/bulk", strings.NewReader(`{"invoice_ids": []}`))
	rec := httptest.NewRecorder()
	h.handleBulkSettleInvoices(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty invoice_ids, got %d", rec.Code)
	}
}

func TestHandleListReminders_RequiresAuthContext(t *testing.T) {
	h := NewHandler(nil)

	req := httptest.NewRequest(http.MethodGet, "/invoices/abc/reminders", nil)
	rec := httptest.NewRecorder()
	h.handleListReminders(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without auth context, got %d", rec.Code)
	}
}
