package report

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/betshop/settlement/internal/domain"
	"github.com/betshop/settlement/internal/handoff"
	"github.com/betshop/settlement/internal/rates"
	"github.com/betshop/settlement/internal/reconcile"
	"github.com/betshop/settlement/internal/repository"
	"github.com/betshop/settlement/internal/tally"
)

// CreateInput carries everything needed to open a daily report. The receipt
// can come in directly or be pulled from an uploaded handoff session; both
// are optional, a count alone is a valid report.
type CreateInput struct {
	MachineID  string                                       `json:"machine_id"`
	EmployeeID string                                       `json:"employee_id,omitempty"`
	Date       string                                       `json:"date"`
	Counts     map[domain.Currency]domain.DenominationCount `json:"denomination_counts"`
	Receipt    *domain.ParsedReceipt                        `json:"receipt,omitempty"`
	// HandoffSessionID names an uploaded mobile session to consume instead
	// of an inline receipt.
	HandoffSessionID string `json:"handoff_session_id,omitempty"`
	// OperatorCutPct overrides the configured default when non-nil.
	OperatorCutPct *decimal.Decimal `json:"operator_cut_pct,omitempty"`
	// SupersedesReportID replaces an existing unpaid report for the same
	// machine and date with this corrected one.
	SupersedesReportID string `json:"supersedes_report_id,omitempty"`
}

// CreateResult is the stored report plus advisory findings that must reach
// the operator but never block creation.
type CreateResult struct {
	Report   *domain.DailyReport `json:"report"`
	Warnings []string            `json:"warnings,omitempty"`
}

// Service builds daily reports: count the cash, reconcile it against the
// receipt, split the commission, persist unpaid.
type Service struct {
	reports    *repository.ReportRepo
	rates      rates.Provider
	sessions   *handoff.Store
	defaultCut decimal.Decimal
	rateMaxAge time.Duration
	now        func() time.Time
}

func NewService(reports *repository.ReportRepo, provider rates.Provider, sessions *handoff.Store, defaultCut decimal.Decimal, rateMaxAge time.Duration) *Service {
	return &Service{
		reports:    reports,
		rates:      provider,
		sessions:   sessions,
		defaultCut: defaultCut,
		rateMaxAge: rateMaxAge,
		now:        time.Now,
	}
}

func (s *Service) Create(ctx context.Context, tenant string, in CreateInput) (*CreateResult, error) {
	if in.MachineID == "" {
		return nil, &domain.ValidationError{Field: "machine_id", Reason: "required"}
	}
	date, err := time.Parse("2006-01-02", in.Date)
	if err != nil {
		return nil, &domain.ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
	}
	if len(in.Counts) == 0 {
		return nil, &domain.ValidationError{Field: "denomination_counts", Reason: "at least one currency count is required"}
	}
	if err := tally.ValidateCounts(in.Counts); err != nil {
		return nil, err
	}

	receipt, err := s.resolveReceipt(in)
	if err != nil {
		return nil, err
	}
	if receipt != nil {
		if err := receipt.Validate(); err != nil {
			return nil, err
		}
	}

	cut := s.defaultCut
	if in.OperatorCutPct != nil {
		cut = *in.OperatorCutPct
	}

	snapshot, err := s.rates.Rates(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("fetch rates: %w", err)
	}

	now := s.now()
	counted, err := tally.AggregateMultiCurrency(in.Counts, snapshot, s.rateMaxAge, now)
	if err != nil {
		return nil, err
	}

	rec := reconcile.Reconcile(receipt, counted)
	split, err := reconcile.SplitCommission(rec.AuthoritativeTotal, cut, receipt)
	if err != nil {
		return nil, err
	}

	rpt := &domain.DailyReport{
		ID:                  uuid.NewString(),
		TenantID:            tenant,
		MachineID:           in.MachineID,
		EmployeeID:          in.EmployeeID,
		Date:                date,
		Counts:              in.Counts,
		Receipt:             receipt,
		OperatorCutPct:      cut,
		CountedTotal:        rec.CountedTotal,
		ComputedBalance:     rec.AuthoritativeTotal,
		BalanceSource:       rec.Source,
		Variance:            rec.Variance,
		ComputedCommission:  split.TotalCommission,
		OperatorShare:       split.OperatorShare,
		RetailerShare:       split.RetailerShare,
		CommissionWithdrawn: decimal.Zero,
		SupersedesReportID:  in.SupersedesReportID,
		CreatedAt:           now,
	}

	var warnings []string
	if !rec.Variance.IsZero() && rec.Source == domain.BalanceSourceReceipt {
		warnings = append(warnings, fmt.Sprintf(
			"receipt balance %s differs from counted cash %s by %s",
			rec.AuthoritativeTotal, rec.CountedTotal, rec.Variance))
	}
	if receipt == nil {
		warnings = append(warnings, "no receipt: counted cash used as balance and commission base")
	}

	// Loss check against the previous collection on this machine.
	prev, err := s.reports.LatestForMachine(tenant, in.MachineID, date)
	if err != nil {
		return nil, fmt.Errorf("load previous report: %w", err)
	}
	if prev != nil && rpt.ComputedBalance.LessThan(prev.ComputedBalance) {
		rpt.IsLoss = true
		warnings = append(warnings, fmt.Sprintf(
			"balance %s is below the previous collection's %s for machine %s",
			rpt.ComputedBalance, prev.ComputedBalance, in.MachineID))
	}

	if in.SupersedesReportID != "" {
		target, err := s.reports.GetByID(tenant, in.SupersedesReportID)
		if err != nil {
			return nil, err
		}
		if target.MachineID != in.MachineID || !target.Date.Equal(date) {
			return nil, &domain.ValidationError{
				Field:  "supersedes_report_id",
				Reason: "superseded report is for a different machine or date",
			}
		}
		if err := s.reports.InsertSuperseding(rpt, in.SupersedesReportID); err != nil {
			return nil, err
		}
	} else if err := s.reports.Insert(rpt); err != nil {
		return nil, err
	}

	// Consume the handoff session only now that the report is persisted.
	// A failure anywhere above leaves the upload intact for a retry.
	if in.HandoffSessionID != "" {
		if _, err := s.sessions.Complete(in.HandoffSessionID); err != nil {
			log.Printf("[report] session %s not consumable after persist: %v", in.HandoffSessionID, err)
		}
	}

	log.Printf("[report] created %s machine=%s date=%s balance=%s source=%s commission=%s loss=%v",
		rpt.ID, rpt.MachineID, in.Date, rpt.ComputedBalance, rpt.BalanceSource,
		rpt.ComputedCommission, rpt.IsLoss)

	return &CreateResult{Report: rpt, Warnings: warnings}, nil
}

// resolveReceipt returns the inline receipt, or peeks at the named handoff
// session without consuming it. The session stays uploaded until the report
// is persisted, so a rejected submission can retry with the same upload.
func (s *Service) resolveReceipt(in CreateInput) (*domain.ParsedReceipt, error) {
	if in.Receipt != nil && in.HandoffSessionID != "" {
		return nil, &domain.ValidationError{Field: "receipt", Reason: "provide either an inline receipt or a handoff session, not both"}
	}
	if in.HandoffSessionID == "" {
		return in.Receipt, nil
	}
	sess, err := s.sessions.Poll(in.HandoffSessionID)
	if err != nil {
		return nil, err
	}
	switch sess.State {
	case handoff.StateUploaded:
		return sess.Receipt, nil
	case handoff.StateExpired:
		return nil, domain.ErrSessionExpired
	case handoff.StateCompleted:
		return nil, fmt.Errorf("%w: already completed", domain.ErrSessionState)
	default:
		return nil, domain.ErrSessionNotUploaded
	}
}

// Get returns one report.
func (s *Service) Get(tenant, id string) (*domain.DailyReport, error) {
	return s.reports.GetByID(tenant, id)
}

// Delete removes an unpaid report. Paid reports are immutable, and there is
// deliberately no compensating ledger entry for the deleted cash count.
func (s *Service) Delete(tenant, id string) error {
	return s.reports.DeleteUnpaid(tenant, id)
}
