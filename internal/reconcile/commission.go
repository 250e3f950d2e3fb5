package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/betshop/settlement/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// CommissionSplit divides the commission between the platform operator and
// the retailer. OperatorShare + RetailerShare == TotalCommission exactly.
type CommissionSplit struct {
	TotalCommission decimal.Decimal `json:"total_commission"`
	OperatorShare   decimal.Decimal `json:"operator_share"`
	RetailerShare   decimal.Decimal `json:"retailer_share"`
}

// SplitCommission computes the commission split. operatorCutPct is the
// OPERATOR's cut (0-100); the retailer keeps the complement. The receipt's
// reported POS commission is used when present and non-negative; without a
// receipt the whole authoritative total is treated as commissionable, which
// is a coarse fallback for terminals that print no receipt.
//
// The retailer share is rounded bank-style to cents and the operator share
// is the remainder, so the two always sum exactly to the total.
func SplitCommission(authoritativeTotal decimal.Decimal, operatorCutPct decimal.Decimal, receipt *domain.ParsedReceipt) (CommissionSplit, error) {
	if operatorCutPct.IsNegative() || operatorCutPct.GreaterThan(hundred) {
		return CommissionSplit{}, &domain.ValidationError{Field: "operator_cut_pct", Reason: "must be between 0 and 100"}
	}

	total := authoritativeTotal
	if receipt != nil && receipt.TotalPOSCommission != nil && !receipt.TotalPOSCommission.IsNegative() {
		total = *receipt.TotalPOSCommission
	}

	retailer := total.Mul(hundred.Sub(operatorCutPct)).Div(hundred).RoundBank(2)
	operator := total.Sub(retailer)

	return CommissionSplit{
		TotalCommission: total,
		OperatorShare:   operator,
		RetailerShare:   retailer,
	}, nil
}
