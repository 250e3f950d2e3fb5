package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type BalanceSource string

const (
	BalanceSourceReceipt BalanceSource = "receipt"
	BalanceSourceCounted BalanceSource = "counted"
)

// DailyReport is the central entity: one cash count (and optionally one
// parsed receipt) for one machine on one collection day. All fields are
// write-once at creation except the settlement fields (IsPaid,
// PaidInBatchID) and the commission-withdrawal running amount.
type DailyReport struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenant_id"`
	MachineID  string `json:"machine_id"`
	EmployeeID string `json:"employee_id,omitempty"`
	// Date is the collection day (calendar date, no time component).
	Date time.Time `json:"date"`

	Counts  map[Currency]DenominationCount `json:"denomination_counts"`
	Receipt *ParsedReceipt                 `json:"receipt,omitempty"`

	// OperatorCutPct is the operator's cut of the commission, 0-100.
	// The retailer keeps the complement.
	OperatorCutPct decimal.Decimal `json:"operator_cut_pct"`

	CountedTotal decimal.Decimal `json:"counted_total"`
	// ComputedBalance is the authoritative operator-payable total in SRD:
	// the receipt balance when one is present, the counted total otherwise.
	ComputedBalance decimal.Decimal `json:"computed_balance"`
	BalanceSource   BalanceSource   `json:"balance_source"`
	// Variance is receipt balance minus counted total. Advisory only:
	// recorded on the report, never a blocking error.
	Variance decimal.Decimal `json:"variance"`

	ComputedCommission decimal.Decimal `json:"computed_commission"`
	OperatorShare      decimal.Decimal `json:"operator_share"`
	RetailerShare      decimal.Decimal `json:"retailer_share"`

	// CommissionWithdrawn is how much of ComputedCommission has been
	// consumed by withdrawals, 0..ComputedCommission.
	CommissionWithdrawn decimal.Decimal `json:"commission_withdrawn"`

	// IsLoss marks a report whose authoritative total fell below the
	// previous report's balance for the same machine. Operator warning.
	IsLoss bool `json:"is_loss"`

	IsPaid        bool   `json:"is_paid"`
	PaidInBatchID string `json:"paid_in_batch_id,omitempty"`

	// SupersedesReportID links a correction to the unpaid report it
	// replaces for the same machine and date.
	SupersedesReportID string `json:"supersedes_report_id,omitempty"`
	Superseded         bool   `json:"superseded,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// UnwithdrawnCommission is the commission still owed to the retailer from
// this report.
func (r *DailyReport) UnwithdrawnCommission() decimal.Decimal {
	return r.ComputedCommission.Sub(r.CommissionWithdrawn)
}
