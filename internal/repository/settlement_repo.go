package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/betshop/settlement/internal/domain"
)

type SettlementRepo struct {
	db *sql.DB
}

func NewSettlementRepo(db *sql.DB) *SettlementRepo {
	return &SettlementRepo{db: db}
}

// CreateBatch persists the payout batch and flips every referenced report to
// paid in one transaction. The conditional update re-checks is_paid at
// commit time: if its affected-row count differs from the selection size,
// another batch got to at least one report first and the whole transaction
// rolls back with ErrAlreadyPaid. Nothing is skipped silently.
func (r *SettlementRepo) CreateBatch(batch *domain.PayoutBatch) error {
	if len(batch.ReportIDs) == 0 {
		return domain.ErrEmptySelection
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	placeholders := strings.Repeat("?,", len(batch.ReportIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(batch.ReportIDs)+2)
	args = append(args, batch.ID, batch.TenantID)
	for _, id := range batch.ReportIDs {
		args = append(args, id)
	}

	res, err := tx.Exec(
		`UPDATE daily_reports SET is_paid = 1, paid_in_batch_id = ?
		 WHERE tenant_id = ? AND id IN (`+placeholders+`)
		   AND is_paid = 0 AND superseded = 0`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("mark paid: %w", err)
	}
	updated, _ := res.RowsAffected()
	if int(updated) != len(batch.ReportIDs) {
		return fmt.Errorf("%w: selected %d, settled %d",
			domain.ErrAlreadyPaid, len(batch.ReportIDs), updated)
	}

	_, err = tx.Exec(
		`INSERT INTO payout_batches
		(id, tenant_id, total_amount, currency, report_count, notes, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		batch.ID, batch.TenantID, batch.TotalAmount.Amount.String(),
		string(batch.TotalAmount.Currency), len(batch.ReportIDs),
		nullableString(batch.Notes), batch.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	return tx.Commit()
}

func (r *SettlementRepo) ListBatches(tenant string) ([]domain.PayoutBatch, error) {
	rows, err := r.db.Query(
		`SELECT id, tenant_id, total_amount, currency, notes, created_at
		 FROM payout_batches WHERE tenant_id = ? ORDER BY created_at DESC`,
		tenant,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []domain.PayoutBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, *b)
	}
	return batches, rows.Err()
}

func (r *SettlementRepo) GetBatch(tenant, id string) (*domain.PayoutBatch, error) {
	row := r.db.QueryRow(
		`SELECT id, tenant_id, total_amount, currency, notes, created_at
		 FROM payout_batches WHERE tenant_id = ? AND id = ?`,
		tenant, id,
	)
	b, err := scanBatch(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrBatchNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(
		"SELECT id FROM daily_reports WHERE tenant_id = ? AND paid_in_batch_id = ? ORDER BY report_date",
		tenant, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var rid string
		if err := rows.Scan(&rid); err != nil {
			return nil, err
		}
		b.ReportIDs = append(b.ReportIDs, rid)
	}
	return b, rows.Err()
}

// CommissionConsumption is one report's contribution to a withdrawal.
type CommissionConsumption struct {
	ReportID string
	// Before/After are the report's commission_withdrawn running amount
	// around this withdrawal; Before doubles as an optimistic guard.
	Before decimal.Decimal
	After  decimal.Decimal
}

// WithdrawCommission persists the withdrawal and advances each contributing
// report's withdrawn amount, guarded against concurrent withdrawals by
// matching the prior value per row.
func (r *SettlementRepo) WithdrawCommission(w *domain.CommissionWithdrawal, plan []CommissionConsumption) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`UPDATE daily_reports SET commission_withdrawn = ?
		 WHERE tenant_id = ? AND id = ? AND commission_withdrawn = ?`,
	)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, c := range plan {
		res, err := stmt.Exec(c.After.String(), w.TenantID, c.ReportID, c.Before.String())
		if err != nil {
			return fmt.Errorf("consume commission on %s: %w", c.ReportID, err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fmt.Errorf("%w: report %s changed concurrently",
				domain.ErrInsufficientCommission, c.ReportID)
		}
	}

	_, err = tx.Exec(
		`INSERT INTO commission_withdrawals
		(id, tenant_id, amount, currency, notes, created_at)
		VALUES (?,?,?,?,?,?)`,
		w.ID, w.TenantID, w.Amount.Amount.String(), string(w.Amount.Currency),
		nullableString(w.Notes), w.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert withdrawal: %w", err)
	}

	return tx.Commit()
}

func (r *SettlementRepo) ListWithdrawals(tenant string) ([]domain.CommissionWithdrawal, error) {
	rows, err := r.db.Query(
		`SELECT id, tenant_id, amount, currency, notes, created_at
		 FROM commission_withdrawals WHERE tenant_id = ? ORDER BY created_at DESC`,
		tenant,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ws []domain.CommissionWithdrawal
	for rows.Next() {
		var (
			w                             domain.CommissionWithdrawal
			amountStr, curStr, createdStr string
			notes                         sql.NullString
		)
		if err := rows.Scan(&w.ID, &w.TenantID, &amountStr, &curStr, &notes, &createdStr); err != nil {
			return nil, err
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", amountStr, err)
		}
		w.Amount = domain.NewMoney(amount, domain.Currency(curStr))
		w.Notes = notes.String
		w.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
		ws = append(ws, w)
	}
	return ws, rows.Err()
}

func scanBatch(s rowScanner) (*domain.PayoutBatch, error) {
	var (
		b                             domain.PayoutBatch
		amountStr, curStr, createdStr string
		notes                         sql.NullString
	)
	if err := s.Scan(&b.ID, &b.TenantID, &amountStr, &curStr, &notes, &createdStr); err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amountStr, err)
	}
	b.TotalAmount = domain.NewMoney(amount, domain.Currency(curStr))
	b.Notes = notes.String
	b.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
	return &b, nil
}
