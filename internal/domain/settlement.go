package domain

import "time"

// PayoutBatch settles the operator's principal for a set of daily reports.
// Every referenced report transitions is_paid false->true atomically with
// batch creation, and a report belongs to at most one batch ever.
type PayoutBatch struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	ReportIDs   []string  `json:"report_ids"`
	TotalAmount Money     `json:"total_amount"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CommissionWithdrawal records an operator collecting accumulated retailer
// commission. Contributing reports are consumed oldest-first; the settled
// reports themselves are never deleted.
type CommissionWithdrawal struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Amount    Money     `json:"amount"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
