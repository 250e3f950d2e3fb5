package repository

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betshop/settlement/internal/domain"
)

func testDB(t *testing.T) *ReportRepo {
	t.Helper()
	db, err := InitDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewReportRepo(db)
}

func testReport(machine, date string, balance, commission string) *domain.DailyReport {
	d, _ := time.Parse("2006-01-02", date)
	bal := decimal.RequireFromString(balance)
	comm := decimal.RequireFromString(commission)
	retailer := comm.Mul(decimal.RequireFromString("0.2")).RoundBank(2)
	return &domain.DailyReport{
		ID:                  uuid.NewString(),
		TenantID:            "t1",
		MachineID:           machine,
		Date:                d,
		Counts:              map[domain.Currency]domain.DenominationCount{domain.CurrencySRD: {100: 1}},
		OperatorCutPct:      decimal.RequireFromString("80"),
		CountedTotal:        bal,
		ComputedBalance:     bal,
		BalanceSource:       domain.BalanceSourceCounted,
		Variance:            decimal.Zero,
		ComputedCommission:  comm,
		OperatorShare:       comm.Sub(retailer),
		RetailerShare:       retailer,
		CommissionWithdrawn: decimal.Zero,
		CreatedAt:           time.Now().UTC(),
	}
}

func TestInsertAndGet(t *testing.T) {
	repo := testDB(t)

	balance := decimal.RequireFromString("5000")
	rpt := testReport("M1", "2024-05-01", "4250", "850")
	rpt.Receipt = &domain.ParsedReceipt{
		TotalSales: decimal.RequireFromString("9000"),
		Balance:    &balance,
	}
	require.NoError(t, repo.Insert(rpt))

	got, err := repo.GetByID("t1", rpt.ID)
	require.NoError(t, err)
	assert.Equal(t, "M1", got.MachineID)
	assert.True(t, got.ComputedBalance.Equal(decimal.RequireFromString("4250")))
	assert.Equal(t, 1, got.Counts[domain.CurrencySRD][100])
	require.NotNil(t, got.Receipt)
	assert.True(t, got.Receipt.Balance.Equal(balance))
	assert.False(t, got.IsPaid)
	assert.Equal(t, "2024-05-01", got.Date.Format("2006-01-02"))

	// Tenant scoping.
	_, err = repo.GetByID("t2", rpt.ID)
	assert.ErrorIs(t, err, domain.ErrReportNotFound)
}

func TestDuplicateMachineDateRejected(t *testing.T) {
	repo := testDB(t)

	require.NoError(t, repo.Insert(testReport("M1", "2024-05-01", "100", "10")))
	err := repo.Insert(testReport("M1", "2024-05-01", "200", "20"))
	assert.ErrorIs(t, err, domain.ErrDuplicateReport)

	// Other machine or other day is fine.
	require.NoError(t, repo.Insert(testReport("M2", "2024-05-01", "200", "20")))
	require.NoError(t, repo.Insert(testReport("M1", "2024-05-02", "200", "20")))
}

func TestInsertSuperseding(t *testing.T) {
	repo := testDB(t)

	orig := testReport("M1", "2024-05-01", "100", "10")
	require.NoError(t, repo.Insert(orig))

	correction := testReport("M1", "2024-05-01", "150", "15")
	correction.SupersedesReportID = orig.ID
	require.NoError(t, repo.InsertSuperseding(correction, orig.ID))

	got, err := repo.GetByID("t1", orig.ID)
	require.NoError(t, err)
	assert.True(t, got.Superseded)

	// Superseded reports drop out of the unpaid listing.
	unpaid, err := repo.ListUnpaid("t1", ReportFilter{})
	require.NoError(t, err)
	require.Len(t, unpaid, 1)
	assert.Equal(t, correction.ID, unpaid[0].ID)

	// A report cannot be superseded twice.
	again := testReport("M1", "2024-05-01", "175", "17")
	again.SupersedesReportID = orig.ID
	assert.Error(t, repo.InsertSuperseding(again, orig.ID))
}

func TestListUnpaidFilters(t *testing.T) {
	repo := testDB(t)

	require.NoError(t, repo.Insert(testReport("M1", "2024-05-01", "100", "10")))
	require.NoError(t, repo.Insert(testReport("M2", "2024-05-01", "200", "20")))
	require.NoError(t, repo.Insert(testReport("M1", "2024-05-03", "300", "30")))

	all, err := repo.ListUnpaid("t1", ReportFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byMachine, err := repo.ListUnpaid("t1", ReportFilter{MachineID: "M1"})
	require.NoError(t, err)
	assert.Len(t, byMachine, 2)

	from, _ := time.Parse("2006-01-02", "2024-05-02")
	recent, err := repo.ListUnpaid("t1", ReportFilter{From: &from})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "M1", recent[0].MachineID)
}

func TestLatestForMachine(t *testing.T) {
	repo := testDB(t)

	require.NoError(t, repo.Insert(testReport("M1", "2024-05-01", "100", "10")))
	require.NoError(t, repo.Insert(testReport("M1", "2024-05-03", "300", "30")))

	day5, _ := time.Parse("2006-01-02", "2024-05-05")
	prev, err := repo.LatestForMachine("t1", "M1", day5)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.True(t, prev.ComputedBalance.Equal(decimal.RequireFromString("300")))

	day2, _ := time.Parse("2006-01-02", "2024-05-02")
	prev, err = repo.LatestForMachine("t1", "M1", day2)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.True(t, prev.ComputedBalance.Equal(decimal.RequireFromString("100")))

	none, err := repo.LatestForMachine("t1", "M9", day5)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestDeleteUnpaid(t *testing.T) {
	repo := testDB(t)

	rpt := testReport("M1", "2024-05-01", "100", "10")
	require.NoError(t, repo.Insert(rpt))
	require.NoError(t, repo.DeleteUnpaid("t1", rpt.ID))

	_, err := repo.GetByID("t1", rpt.ID)
	assert.ErrorIs(t, err, domain.ErrReportNotFound)

	assert.ErrorIs(t, repo.DeleteUnpaid("t1", rpt.ID), domain.ErrReportNotFound)

	paid := testReport("M1", "2024-05-02", "100", "10")
	paid.IsPaid = true
	paid.PaidInBatchID = "B1"
	require.NoError(t, repo.Insert(paid))
	assert.ErrorIs(t, repo.DeleteUnpaid("t1", paid.ID), domain.ErrReportPaid)
}
