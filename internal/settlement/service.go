package settlement

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/betshop/settlement/internal/domain"
	"github.com/betshop/settlement/internal/ledger"
	"github.com/betshop/settlement/internal/repository"
)

// DateGroup is one collection day's unpaid reports with their payable
// totals. Payouts are settled per collection day, not per machine.
type DateGroup struct {
	Date            string               `json:"date"`
	Reports         []domain.DailyReport `json:"reports"`
	OperatorPayable decimal.Decimal      `json:"operator_payable"`
	TotalCommission decimal.Decimal      `json:"total_commission"`
}

// Totals is the live dashboard aggregate, recomputed from source rows on
// every read. There is no incrementally maintained counter to drift.
type Totals struct {
	UnpaidReportCount     int             `json:"unpaid_report_count"`
	UnpaidOperatorPayable decimal.Decimal `json:"unpaid_operator_payable"`
	UnwithdrawnCommission decimal.Decimal `json:"unwithdrawn_commission"`
}

// Service batches unpaid reports into payouts and handles commission
// withdrawals.
type Service struct {
	reports     *repository.ReportRepo
	settlements *repository.SettlementRepo
	ledger      ledger.Ledger
	now         func() time.Time
}

func NewService(reports *repository.ReportRepo, settlements *repository.SettlementRepo, lg ledger.Ledger) *Service {
	return &Service{
		reports:     reports,
		settlements: settlements,
		ledger:      lg,
		now:         time.Now,
	}
}

// ListUnpaid returns live unpaid reports, optionally filtered.
func (s *Service) ListUnpaid(tenant string, f repository.ReportFilter) ([]domain.DailyReport, error) {
	return s.reports.ListUnpaid(tenant, f)
}

// GroupByDate buckets unpaid reports per calendar date, newest day first,
// summing the operator-payable balance and the commission per bucket.
func GroupByDate(reports []domain.DailyReport) []DateGroup {
	byDate := make(map[string]*DateGroup)
	for _, r := range reports {
		key := r.Date.Format("2006-01-02")
		g, ok := byDate[key]
		if !ok {
			g = &DateGroup{Date: key, OperatorPayable: decimal.Zero, TotalCommission: decimal.Zero}
			byDate[key] = g
		}
		g.Reports = append(g.Reports, r)
		g.OperatorPayable = g.OperatorPayable.Add(r.ComputedBalance)
		g.TotalCommission = g.TotalCommission.Add(r.ComputedCommission)
	}

	groups := make([]DateGroup, 0, len(byDate))
	for _, g := range byDate {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Date > groups[j].Date })
	return groups
}

// CreateBatch settles the given unpaid reports as one payout. The batch
// amount is the sum of the reports' authoritative balances - the operator's
// principal; commission is withdrawn separately. A selection containing any
// already-paid report fails whole with ErrAlreadyPaid so the caller can
// refresh and retry; nothing is skipped silently.
func (s *Service) CreateBatch(_ context.Context, tenant string, reportIDs []string, notes string) (*domain.PayoutBatch, error) {
	if len(reportIDs) == 0 {
		return nil, domain.ErrEmptySelection
	}
	seen := make(map[string]struct{}, len(reportIDs))
	for _, id := range reportIDs {
		if _, dup := seen[id]; dup {
			return nil, &domain.ValidationError{
				Field:  "report_ids",
				Reason: fmt.Sprintf("report %s selected more than once", id),
			}
		}
		seen[id] = struct{}{}
	}

	reports, err := s.reports.GetByIDs(tenant, reportIDs)
	if err != nil {
		return nil, fmt.Errorf("load reports: %w", err)
	}
	if len(reports) != len(reportIDs) {
		return nil, fmt.Errorf("%w: %d of %d reports missing",
			domain.ErrReportNotFound, len(reportIDs)-len(reports), len(reportIDs))
	}

	total := decimal.Zero
	for i := range reports {
		r := &reports[i]
		if r.IsPaid {
			return nil, fmt.Errorf("%w: report %s in batch %s", domain.ErrAlreadyPaid, r.ID, r.PaidInBatchID)
		}
		if r.Superseded {
			return nil, fmt.Errorf("%w: report %s was superseded", domain.ErrReportNotFound, r.ID)
		}
		total = total.Add(r.ComputedBalance)
	}

	batch := &domain.PayoutBatch{
		ID:          uuid.NewString(),
		TenantID:    tenant,
		ReportIDs:   reportIDs,
		TotalAmount: domain.NewMoney(total, domain.CurrencySRD),
		Notes:       notes,
		CreatedAt:   s.now(),
	}

	// The repo re-checks is_paid inside the transaction; the pre-check
	// above only exists to produce a friendlier error before the write.
	if err := s.settlements.CreateBatch(batch); err != nil {
		return nil, err
	}

	log.Printf("[settlement] batch %s: %d reports, %s SRD", batch.ID, len(reportIDs), total)
	return batch, nil
}

// Withdraw collects accumulated retailer commission. Contributing reports
// are consumed oldest-first, the last one possibly partially, so the
// unwithdrawn aggregate drops by exactly the withdrawn amount. On any
// failure the aggregate is untouched.
func (s *Service) Withdraw(ctx context.Context, tenant string, amount decimal.Decimal, notes string) (*domain.CommissionWithdrawal, error) {
	if !amount.IsPositive() {
		return nil, &domain.ValidationError{Field: "amount", Reason: "must be positive"}
	}

	open, err := s.reports.ListUnwithdrawn(tenant)
	if err != nil {
		return nil, fmt.Errorf("load unwithdrawn: %w", err)
	}

	available := decimal.Zero
	for i := range open {
		available = available.Add(open[i].UnwithdrawnCommission())
	}
	if amount.GreaterThan(available) {
		return nil, fmt.Errorf("%w: requested %s, available %s",
			domain.ErrInsufficientCommission, amount, available)
	}

	var plan []repository.CommissionConsumption
	remaining := amount
	for i := range open {
		if remaining.IsZero() {
			break
		}
		r := &open[i]
		take := decimal.Min(remaining, r.UnwithdrawnCommission())
		if !take.IsPositive() {
			continue
		}
		plan = append(plan, repository.CommissionConsumption{
			ReportID: r.ID,
			Before:   r.CommissionWithdrawn,
			After:    r.CommissionWithdrawn.Add(take),
		})
		remaining = remaining.Sub(take)
	}

	w := &domain.CommissionWithdrawal{
		ID:        uuid.NewString(),
		TenantID:  tenant,
		Amount:    domain.NewMoney(amount, domain.CurrencySRD),
		Notes:     notes,
		CreatedAt: s.now(),
	}

	if err := s.settlements.WithdrawCommission(w, plan); err != nil {
		return nil, err
	}

	// Instruct the external cash ledger. The ledger owns its durability;
	// a persistent failure here is logged, not fatal to the withdrawal.
	s.creditLedger(ctx, tenant, w)

	log.Printf("[settlement] withdrawal %s: %s SRD across %d reports", w.ID, amount, len(plan))
	return w, nil
}

func (s *Service) creditLedger(ctx context.Context, tenant string, w *domain.CommissionWithdrawal) {
	memo := fmt.Sprintf("commission withdrawal %s", w.ID)
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		if err = s.ledger.Credit(ctx, tenant, w.Amount, memo); err == nil {
			return
		}
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	log.Printf("[settlement] WARNING: ledger credit for %s failed after retries: %v", w.ID, err)
}

// ListBatches returns past payouts, newest first.
func (s *Service) ListBatches(tenant string) ([]domain.PayoutBatch, error) {
	return s.settlements.ListBatches(tenant)
}

// GetBatch returns one payout with its member report ids.
func (s *Service) GetBatch(tenant, id string) (*domain.PayoutBatch, error) {
	return s.settlements.GetBatch(tenant, id)
}

// ListWithdrawals returns past commission withdrawals, newest first.
func (s *Service) ListWithdrawals(tenant string) ([]domain.CommissionWithdrawal, error) {
	return s.settlements.ListWithdrawals(tenant)
}

// RunningTotals recomputes the dashboard aggregates from source rows.
func (s *Service) RunningTotals(tenant string) (*Totals, error) {
	unpaid, err := s.reports.ListUnpaid(tenant, repository.ReportFilter{})
	if err != nil {
		return nil, fmt.Errorf("list unpaid: %w", err)
	}
	open, err := s.reports.ListUnwithdrawn(tenant)
	if err != nil {
		return nil, fmt.Errorf("list unwithdrawn: %w", err)
	}

	t := &Totals{
		UnpaidReportCount:     len(unpaid),
		UnpaidOperatorPayable: decimal.Zero,
		UnwithdrawnCommission: decimal.Zero,
	}
	for i := range unpaid {
		t.UnpaidOperatorPayable = t.UnpaidOperatorPayable.Add(unpaid[i].ComputedBalance)
	}
	for i := range open {
		t.UnwithdrawnCommission = t.UnwithdrawnCommission.Add(open[i].UnwithdrawnCommission())
	}
	return t, nil
}
