package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReceiptLineItem is one product line on a terminal receipt.
type ReceiptLineItem struct {
	Product       string          `json:"product"`
	TotalBets     decimal.Decimal `json:"total_bets"`
	CommissionPct decimal.Decimal `json:"commission_percentage"`
	Commission    decimal.Decimal `json:"commission"`
}

// ParsedReceipt is the structured output of the external OCR collaborator
// for a photographed terminal receipt. It is untrusted input: every numeric
// field must be validated before the engine uses it. Balance, when present,
// is the terminal-reported net cash change for the period and takes
// precedence over the physical count.
type ParsedReceipt struct {
	TotalSales         decimal.Decimal  `json:"total_sales"`
	TotalPayout        decimal.Decimal  `json:"total_payout"`
	TotalPOSCommission *decimal.Decimal `json:"total_pos_commission,omitempty"`
	Balance            *decimal.Decimal `json:"balance,omitempty"`
	ReceiptDate        time.Time        `json:"receipt_date"`
	LineItems          []ReceiptLineItem `json:"line_items,omitempty"`
}

// Validate rejects a receipt whose numeric fields cannot be trusted.
// Absent optional fields are fine; present fields must be non-negative.
func (r *ParsedReceipt) Validate() error {
	if r.TotalSales.IsNegative() {
		return &ValidationError{Field: "total_sales", Reason: "must not be negative"}
	}
	if r.TotalPayout.IsNegative() {
		return &ValidationError{Field: "total_payout", Reason: "must not be negative"}
	}
	if r.TotalPOSCommission != nil && r.TotalPOSCommission.IsNegative() {
		return &ValidationError{Field: "total_pos_commission", Reason: "must not be negative"}
	}
	if r.Balance != nil && r.Balance.IsNegative() {
		return &ValidationError{Field: "balance", Reason: "must not be negative"}
	}
	for i, li := range r.LineItems {
		if li.Commission.IsNegative() || li.TotalBets.IsNegative() {
			return &ValidationError{Field: "line_items", Reason: "negative amount at line " + li.Product, Index: i}
		}
	}
	return nil
}
