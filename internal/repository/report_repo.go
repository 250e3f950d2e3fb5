package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/betshop/settlement/internal/domain"
)

const dateLayout = "2006-01-02"

const reportColumns = `id, tenant_id, machine_id, employee_id, report_date,
	counts_json, receipt_json, operator_cut_pct, counted_total,
	computed_balance, balance_source, variance, computed_commission,
	operator_share, retailer_share, commission_withdrawn, is_loss, is_paid,
	paid_in_batch_id, supersedes_report_id, superseded, created_at`

type ReportRepo struct {
	db *sql.DB
}

func NewReportRepo(db *sql.DB) *ReportRepo {
	return &ReportRepo{db: db}
}

// Insert stores a new unpaid report. The partial unique index on
// (tenant, machine, date) rejects a second live report for the same day.
func (r *ReportRepo) Insert(rpt *domain.DailyReport) error {
	return r.insert(r.db, rpt)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (r *ReportRepo) insert(ex execer, rpt *domain.DailyReport) error {
	countsJSON, err := json.Marshal(rpt.Counts)
	if err != nil {
		return fmt.Errorf("marshal counts: %w", err)
	}
	var receiptJSON any
	if rpt.Receipt != nil {
		b, err := json.Marshal(rpt.Receipt)
		if err != nil {
			return fmt.Errorf("marshal receipt: %w", err)
		}
		receiptJSON = string(b)
	}

	_, err = ex.Exec(
		`INSERT INTO daily_reports
		(id, tenant_id, machine_id, employee_id, report_date, counts_json,
		 receipt_json, operator_cut_pct, counted_total, computed_balance,
		 balance_source, variance, computed_commission, operator_share,
		 retailer_share, commission_withdrawn, is_loss, is_paid,
		 paid_in_batch_id, supersedes_report_id, superseded, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rpt.ID, rpt.TenantID, rpt.MachineID, nullableString(rpt.EmployeeID),
		rpt.Date.Format(dateLayout), string(countsJSON), receiptJSON,
		rpt.OperatorCutPct.String(), rpt.CountedTotal.String(),
		rpt.ComputedBalance.String(), string(rpt.BalanceSource),
		rpt.Variance.String(), rpt.ComputedCommission.String(),
		rpt.OperatorShare.String(), rpt.RetailerShare.String(),
		rpt.CommissionWithdrawn.String(), boolToInt(rpt.IsLoss),
		boolToInt(rpt.IsPaid), nullableString(rpt.PaidInBatchID),
		nullableString(rpt.SupersedesReportID), boolToInt(rpt.Superseded),
		rpt.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.ErrDuplicateReport
		}
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// InsertSuperseding atomically marks the corrected report superseded and
// inserts its replacement. The conditional update refuses to supersede a
// paid report.
func (r *ReportRepo) InsertSuperseding(rpt *domain.DailyReport, supersededID string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE daily_reports SET superseded = 1
		 WHERE tenant_id = ? AND id = ? AND is_paid = 0 AND superseded = 0`,
		rpt.TenantID, supersededID,
	)
	if err != nil {
		return fmt.Errorf("mark superseded: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		// Either gone, already superseded, or already settled. Look it up
		// on the same transaction to tell the cases apart.
		row := tx.QueryRow(
			"SELECT "+reportColumns+" FROM daily_reports WHERE tenant_id = ? AND id = ?",
			rpt.TenantID, supersededID,
		)
		prev, err := scanReport(row)
		if err != nil {
			return domain.ErrReportNotFound
		}
		if prev.IsPaid {
			return domain.ErrReportPaid
		}
		return domain.ErrReportNotFound
	}

	if err := r.insert(tx, rpt); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *ReportRepo) GetByID(tenant, id string) (*domain.DailyReport, error) {
	row := r.db.QueryRow(
		"SELECT "+reportColumns+" FROM daily_reports WHERE tenant_id = ? AND id = ?",
		tenant, id,
	)
	rpt, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrReportNotFound
	}
	return rpt, err
}

// ReportFilter narrows unpaid-report listings.
type ReportFilter struct {
	MachineID string
	From      *time.Time
	To        *time.Time
}

// ListUnpaid returns live (non-superseded) unpaid reports, oldest first.
func (r *ReportRepo) ListUnpaid(tenant string, f ReportFilter) ([]domain.DailyReport, error) {
	clauses := []string{"tenant_id = ?", "is_paid = 0", "superseded = 0"}
	args := []any{tenant}

	if f.MachineID != "" {
		clauses = append(clauses, "machine_id = ?")
		args = append(args, f.MachineID)
	}
	if f.From != nil {
		clauses = append(clauses, "report_date >= ?")
		args = append(args, f.From.Format(dateLayout))
	}
	if f.To != nil {
		clauses = append(clauses, "report_date <= ?")
		args = append(args, f.To.Format(dateLayout))
	}

	q := "SELECT " + reportColumns + " FROM daily_reports WHERE " +
		strings.Join(clauses, " AND ") + " ORDER BY report_date, created_at"

	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReports(rows)
}

// GetByIDs loads the given reports in one query.
func (r *ReportRepo) GetByIDs(tenant string, ids []string) ([]domain.DailyReport, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(ids)+1)
	args = append(args, tenant)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := r.db.Query(
		"SELECT "+reportColumns+" FROM daily_reports WHERE tenant_id = ? AND id IN ("+placeholders+")",
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReports(rows)
}

// LatestForMachine returns the most recent live report for a machine dated
// strictly before the given day, or nil if there is none. Used to carry the
// opening balance forward for loss detection.
func (r *ReportRepo) LatestForMachine(tenant, machineID string, before time.Time) (*domain.DailyReport, error) {
	row := r.db.QueryRow(
		"SELECT "+reportColumns+` FROM daily_reports
		 WHERE tenant_id = ? AND machine_id = ? AND superseded = 0 AND report_date < ?
		 ORDER BY report_date DESC, created_at DESC LIMIT 1`,
		tenant, machineID, before.Format(dateLayout),
	)
	rpt, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rpt, err
}

// DeleteUnpaid hard-deletes an unpaid report. Paid reports are immutable.
func (r *ReportRepo) DeleteUnpaid(tenant, id string) error {
	res, err := r.db.Exec(
		"DELETE FROM daily_reports WHERE tenant_id = ? AND id = ? AND is_paid = 0",
		tenant, id,
	)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	if _, err := r.GetByID(tenant, id); err != nil {
		return domain.ErrReportNotFound
	}
	return domain.ErrReportPaid
}

// ListUnwithdrawn returns live reports with commission still owed to the
// retailer, oldest collection day first. Amounts are stored as canonical
// decimal strings; a fully drained report holds the commission value
// verbatim, so text inequality keeps full precision where a float cast
// would not.
func (r *ReportRepo) ListUnwithdrawn(tenant string) ([]domain.DailyReport, error) {
	rows, err := r.db.Query(
		"SELECT "+reportColumns+` FROM daily_reports
		 WHERE tenant_id = ? AND superseded = 0
		   AND commission_withdrawn != computed_commission
		 ORDER BY report_date, created_at`,
		tenant,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReports(rows)
}

func (r *ReportRepo) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM daily_reports").Scan(&count)
	return count, err
}

// --- scan helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(s rowScanner) (*domain.DailyReport, error) {
	var (
		rpt                                          domain.DailyReport
		employeeID, receiptJSON, batchID, supersedes sql.NullString
		dateStr, countsJSON, createdStr              string
		cutStr, countedStr, balanceStr, sourceStr    string
		varianceStr, commStr, opStr, retStr, wdStr   string
		isLoss, isPaid, superseded                   int
	)

	err := s.Scan(
		&rpt.ID, &rpt.TenantID, &rpt.MachineID, &employeeID, &dateStr,
		&countsJSON, &receiptJSON, &cutStr, &countedStr, &balanceStr,
		&sourceStr, &varianceStr, &commStr, &opStr, &retStr, &wdStr,
		&isLoss, &isPaid, &batchID, &supersedes, &superseded, &createdStr,
	)
	if err != nil {
		return nil, err
	}

	rpt.EmployeeID = employeeID.String
	rpt.PaidInBatchID = batchID.String
	rpt.SupersedesReportID = supersedes.String
	rpt.IsLoss = isLoss != 0
	rpt.IsPaid = isPaid != 0
	rpt.Superseded = superseded != 0
	rpt.BalanceSource = domain.BalanceSource(sourceStr)

	if rpt.Date, err = time.Parse(dateLayout, dateStr); err != nil {
		return nil, fmt.Errorf("parse report_date: %w", err)
	}
	rpt.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)

	if err := json.Unmarshal([]byte(countsJSON), &rpt.Counts); err != nil {
		return nil, fmt.Errorf("unmarshal counts: %w", err)
	}
	if receiptJSON.Valid {
		rpt.Receipt = &domain.ParsedReceipt{}
		if err := json.Unmarshal([]byte(receiptJSON.String), rpt.Receipt); err != nil {
			return nil, fmt.Errorf("unmarshal receipt: %w", err)
		}
	}

	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&rpt.OperatorCutPct, cutStr},
		{&rpt.CountedTotal, countedStr},
		{&rpt.ComputedBalance, balanceStr},
		{&rpt.Variance, varianceStr},
		{&rpt.ComputedCommission, commStr},
		{&rpt.OperatorShare, opStr},
		{&rpt.RetailerShare, retStr},
		{&rpt.CommissionWithdrawn, wdStr},
	} {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return nil, fmt.Errorf("parse decimal %q: %w", f.src, err)
		}
	}

	return &rpt, nil
}

func collectReports(rows *sql.Rows) ([]domain.DailyReport, error) {
	var reports []domain.DailyReport
	for rows.Next() {
		rpt, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *rpt)
	}
	return reports, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
