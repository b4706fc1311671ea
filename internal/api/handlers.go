/**
 * @description
 * HTTP handlers for the reminder service.
 */
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/invoiceflow/reminder-service/internal/app"
	"github.com/invoiceflow/reminder-service/internal/store"
)

// Handler holds the application service that handlers will interact with.
type Handler struct {
	service *app.Service
}

// NewHandler creates a new Handler with the given service.
func NewHandler(service *app.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) handleRunSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RunSweep(r.Context())
	if err != nil {
		log.Printf("Error running reminder sweep: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) handleRunInvoice(w http.ResponseWriter, r *http.Request) {
	invoiceID := chi.URLParam(r, "id")
	if invoiceID == "" {
		http.Error(w, "Invoice ID is required", http.StatusBadRequest)
		return
	}

	result, err := h.service.RunInvoice(r.Context(), invoiceID)
	if err != nil {
		if errors.Is(err, store.ErrInvoiceNotFound) {
			http.Error(w, "Invoice not found", http.StatusNotFound)
			return
		}
		log.Printf("Error running reminder for invoice %s: %v", invoiceID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

type settleRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleSettleInvoice(w http.ResponseWriter, r *http.Request) {
	invoiceID := chi.URLParam(r, "id")
	if invoiceID == "" {
		http.Error(w, "Invoice ID is required", http.StatusBadRequest)
		return
	}

	var req settleRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	cancelled, err := h.service.SettleInvoice(r.Context(), invoiceID, req.Reason)
	if err != nil {
		// Cancellation failure must never fail the payment operation; report
		// it but keep the status code in the success range for the caller.
		log.Printf("Error cancelling reminders for settled invoice %s: %v", invoiceID, err)
		respondWithJSON(w, http.StatusAccepted, map[string]interface{}{
			"cancelled": 0,
			"warning":   "reminder cancellation incomplete; will be retried next cycle",
		})
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]int64{"cancelled": cancelled})
}

type bulkSettleRequest struct {
	InvoiceIDs []string `json:"invoice_ids"`
	Reason     string   `json:"reason"`
}

func (h *Handler) handleBulkSettleInvoices(w http.ResponseWriter, r *http.Request) {
	var req bulkSettleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.InvoiceIDs) == 0 {
		http.Error(w, "invoice_ids is required", http.StatusBadRequest)
		return
	}

	cancelled := h.service.SettleInvoices(r.Context(), req.InvoiceIDs, req.Reason)
	respondWithJSON(w, http.StatusOK, map[string]int64{"cancelled": cancelled})
}

func (h *Handler) handleListReminders(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	invoiceID := chi.URLParam(r, "id")
	if invoiceID == "" {
		http.Error(w, "Invoice ID is required", http.StatusBadRequest)
		return
	}

	records, err := h.service.ListRemindersForOwner(r.Context(), userID, invoiceID)
	if err != nil {
		if errors.Is(err, store.ErrInvoiceNotFound) {
			http.Error(w, "Invoice not found", http.StatusNotFound)
			return
		}
		if errors.Is(err, app.ErrNotInvoiceOwner) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		log.Printf("Error listing reminders for invoice %s: %v", invoiceID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, records)
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
