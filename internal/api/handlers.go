package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/betshop/settlement/internal/domain"
	"github.com/betshop/settlement/internal/handoff"
	"github.com/betshop/settlement/internal/report"
	"github.com/betshop/settlement/internal/repository"
	"github.com/betshop/settlement/internal/settlement"
)

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	reportSvc     *report.Service
	settlementSvc *settlement.Service
	sessions      *handoff.Store
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps engine errors onto HTTP statuses. Validation and
// state errors are handled here at the call boundary, per the taxonomy.
func writeDomainError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrReportNotFound),
		errors.Is(err, domain.ErrBatchNotFound),
		errors.Is(err, domain.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrAlreadyPaid), errors.Is(err, domain.ErrDuplicateReport):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrEmptySelection):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrReportPaid),
		errors.Is(err, domain.ErrInsufficientCommission),
		errors.Is(err, domain.ErrSessionExpired),
		errors.Is(err, domain.ErrSessionNotUploaded),
		errors.Is(err, domain.ErrSessionState):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrStaleRate):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}

// --- CreateReport ---

func (h *Handlers) CreateReport(w http.ResponseWriter, r *http.Request) {
	var in report.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}

	result, err := h.reportSvc.Create(r.Context(), tenantFrom(r), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// --- GetReport ---

func (h *Handlers) GetReport(w http.ResponseWriter, r *http.Request) {
	rpt, err := h.reportSvc.Get(tenantFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rpt)
}

// --- DeleteReport ---

func (h *Handlers) DeleteReport(w http.ResponseWriter, r *http.Request) {
	if err := h.reportSvc.Delete(tenantFrom(r), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// --- ListUnpaidReports ---

func (h *Handlers) ListUnpaidReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.ReportFilter{
		MachineID: q.Get("machine_id"),
		From:      parseDate(q.Get("from")),
		To:        parseDate(q.Get("to")),
	}

	reports, err := h.settlementSvc.ListUnpaid(tenantFrom(r), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if q.Get("group") == "date" {
		groups := settlement.GroupByDate(reports)
		writeJSON(w, http.StatusOK, map[string]any{
			"groups": groups,
			"total":  len(reports),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reports": reports,
		"total":   len(reports),
	})
}

// --- CreateBatch ---

func (h *Handlers) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ReportIDs []string `json:"report_ids"`
		Notes     string   `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}

	batch, err := h.settlementSvc.CreateBatch(r.Context(), tenantFrom(r), in.ReportIDs, in.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, batch)
}

// --- ListBatches ---

func (h *Handlers) ListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := h.settlementSvc.ListBatches(tenantFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"batches": batches, "total": len(batches)})
}

// --- GetBatch ---

func (h *Handlers) GetBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := h.settlementSvc.GetBatch(tenantFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

// --- CreateWithdrawal ---

func (h *Handlers) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Amount decimal.Decimal `json:"amount"`
		Notes  string          `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}

	withdrawal, err := h.settlementSvc.Withdraw(r.Context(), tenantFrom(r), in.Amount, in.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, withdrawal)
}

// --- ListWithdrawals ---

func (h *Handlers) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	ws, err := h.settlementSvc.ListWithdrawals(tenantFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"withdrawals": ws, "total": len(ws)})
}

// --- GetTotals ---

func (h *Handlers) GetTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.settlementSvc.RunningTotals(tenantFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

// --- CreateHandoffSession ---

func (h *Handlers) CreateHandoffSession(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Create()
	writeJSON(w, http.StatusCreated, sess)
}

// --- UploadToSession ---

func (h *Handlers) UploadToSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := r.ParseMultipartForm(16 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image field is required: "+err.Error())
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "read image: "+err.Error())
		return
	}

	if err := h.sessions.SubmitUpload(r.Context(), id, image); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) ||
			errors.Is(err, domain.ErrSessionExpired) ||
			errors.Is(err, domain.ErrSessionState) {
			writeDomainError(w, err)
			return
		}
		// OCR failure: the session stays pending, the phone retries.
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "uploaded"})
}

// --- PollSession ---

func (h *Handlers) PollSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Poll(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// --- CompleteSession ---

func (h *Handlers) CompleteSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Complete(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
