package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/betshop/settlement/internal/domain"
)

// Result compares the terminal-reported balance against the physical count.
// The variance is recorded, never enforced: operators may have legitimate
// reasons the counted cash and terminal balance differ (partial collection,
// float left in the drawer), so a mismatch must not block report creation.
type Result struct {
	AuthoritativeTotal decimal.Decimal      `json:"authoritative_total"`
	CountedTotal       decimal.Decimal      `json:"counted_total"`
	Variance           decimal.Decimal      `json:"variance"`
	Source             domain.BalanceSource `json:"source"`
}

// Reconcile picks the authoritative operator-payable total. A receipt with
// a valid non-negative balance wins; otherwise the physical count stands.
func Reconcile(receipt *domain.ParsedReceipt, countedTotal decimal.Decimal) Result {
	if receipt != nil && receipt.Balance != nil && !receipt.Balance.IsNegative() {
		return Result{
			AuthoritativeTotal: *receipt.Balance,
			CountedTotal:       countedTotal,
			Variance:           receipt.Balance.Sub(countedTotal),
			Source:             domain.BalanceSourceReceipt,
		}
	}
	return Result{
		AuthoritativeTotal: countedTotal,
		CountedTotal:       countedTotal,
		Variance:           decimal.Zero,
		Source:             domain.BalanceSourceCounted,
	}
}
