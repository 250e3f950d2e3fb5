package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/betshop/settlement/internal/handoff"
	"github.com/betshop/settlement/internal/report"
	"github.com/betshop/settlement/internal/settlement"
)

type contextKey string

const tenantKey contextKey = "tenant"

// tenantMiddleware resolves the workspace scope from the X-Tenant-ID header.
// Authentication itself lives upstream; this service only scopes queries.
func tenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant := r.Header.Get("X-Tenant-ID")
		if tenant == "" {
			tenant = "default"
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tenantKey, tenant)))
	})
}

func tenantFrom(r *http.Request) string {
	if t, ok := r.Context().Value(tenantKey).(string); ok {
		return t
	}
	return "default"
}

// NewRouter creates the Chi router with all API routes mounted.
func NewRouter(reportSvc *report.Service, settlementSvc *settlement.Service, sessions *handoff.Store) http.Handler {
	h := &Handlers{
		reportSvc:     reportSvc,
		settlementSvc: settlementSvc,
		sessions:      sessions,
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))
	r.Use(tenantMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Daily reports.
		r.Post("/reports", h.CreateReport)
		r.Get("/reports/unpaid", h.ListUnpaidReports)
		r.Get("/reports/{id}", h.GetReport)
		r.Delete("/reports/{id}", h.DeleteReport)

		// Payout batches.
		r.Post("/batches", h.CreateBatch)
		r.Get("/batches", h.ListBatches)
		r.Get("/batches/{id}", h.GetBatch)

		// Commission withdrawals.
		r.Post("/withdrawals", h.CreateWithdrawal)
		r.Get("/withdrawals", h.ListWithdrawals)

		// Dashboard.
		r.Get("/totals", h.GetTotals)

		// Mobile handoff.
		r.Post("/handoff/sessions", h.CreateHandoffSession)
		r.Post("/handoff/sessions/{id}/upload", h.UploadToSession)
		r.Get("/handoff/sessions/{id}", h.PollSession)
		r.Post("/handoff/sessions/{id}/complete", h.CompleteSession)
	})

	return r
}
