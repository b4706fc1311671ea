/**
 * @description
 * HTTP router setup for the reminder service using go-chi/chi.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new Chi router and registers reminder routes.
func NewRouter(h *Handler, jwksURL string, internalKey string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Internal-API-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Reminder service is healthy"))
	})

	r.Route("/internal", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(internalKey))
		r.Post("/reminders/sweep", h.handleRunSweep)
		r.Post("/invoices/{id}/reminders/run", h.handleRunInvoice)
		r.Post("/invoices/{id}/settled", h.handleSettleInvoice)
		r.Post("/invoices/settled/bulk", h.handleBulkSettleInvoices)
	})

	r.Group(func(r chi.Router) {
		r.Use(JWTAuthMiddleware(jwksURL))
		r.Get("/invoices/{id}/reminders", h.handleListReminders)
	})

	return r
}
