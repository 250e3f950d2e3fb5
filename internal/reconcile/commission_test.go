package reconcile

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betshop/settlement/internal/domain"
)

func receiptWithCommission(commission string) *domain.ParsedReceipt {
	c := dec(commission)
	return &domain.ParsedReceipt{TotalPOSCommission: &c}
}

func TestSplitCommission_FromReceipt(t *testing.T) {
	// Operator cut 80%: retailer keeps 20% of the reported commission.
	split, err := SplitCommission(dec("5000"), dec("80"), receiptWithCommission("800"))
	require.NoError(t, err)

	assert.True(t, split.TotalCommission.Equal(dec("800")), "total %s", split.TotalCommission)
	assert.True(t, split.RetailerShare.Equal(dec("160")), "retailer %s", split.RetailerShare)
	assert.True(t, split.OperatorShare.Equal(dec("640")), "operator %s", split.OperatorShare)
}

func TestSplitCommission_FallbackWithoutReceipt(t *testing.T) {
	// No receipt: the whole counted total is treated as commissionable.
	split, err := SplitCommission(dec("1000"), dec("75"), nil)
	require.NoError(t, err)

	assert.True(t, split.TotalCommission.Equal(dec("1000")))
	assert.True(t, split.RetailerShare.Equal(dec("250")))
	assert.True(t, split.OperatorShare.Equal(dec("750")))
}

func TestSplitCommission_SumsExactly(t *testing.T) {
	totals := []string{"0", "0.01", "1", "33.33", "999.99", "123456789.01"}
	for pct := 0; pct <= 100; pct++ {
		cut := decimal.NewFromInt(int64(pct))
		for _, total := range totals {
			split, err := SplitCommission(dec(total), cut, nil)
			require.NoError(t, err)

			sum := split.OperatorShare.Add(split.RetailerShare)
			assert.True(t, sum.Equal(split.TotalCommission),
				"cut=%d total=%s: %s + %s != %s",
				pct, total, split.OperatorShare, split.RetailerShare, split.TotalCommission)
		}
	}
}

func TestSplitCommission_Rounding(t *testing.T) {
	// 33.335 retailer share before rounding; banker's rounding lands on
	// cents and the operator share absorbs the remainder.
	split, err := SplitCommission(dec("100.005"), dec("66.67"), nil)
	require.NoError(t, err)

	sum := split.OperatorShare.Add(split.RetailerShare)
	assert.True(t, sum.Equal(split.TotalCommission))
	assert.True(t, split.RetailerShare.Equal(split.RetailerShare.Round(2)),
		"retailer share %s not in cents", split.RetailerShare)
}

func TestSplitCommission_Bounds(t *testing.T) {
	_, err := SplitCommission(dec("100"), dec("-1"), nil)
	var ve *domain.ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = SplitCommission(dec("100"), dec("100.5"), nil)
	assert.ErrorAs(t, err, &ve)

	// Edges are fine.
	split, err := SplitCommission(dec("100"), dec("0"), nil)
	require.NoError(t, err)
	assert.True(t, split.RetailerShare.Equal(dec("100")))
	assert.True(t, split.OperatorShare.IsZero())

	split, err = SplitCommission(dec("100"), dec("100"), nil)
	require.NoError(t, err)
	assert.True(t, split.RetailerShare.IsZero())
	assert.True(t, split.OperatorShare.Equal(dec("100")))
}

func TestSplitCommission_NegativeReceiptCommissionIgnored(t *testing.T) {
	split, err := SplitCommission(dec("500"), dec("80"), receiptWithCommission("-5"))
	require.NoError(t, err)
	// Falls back to the authoritative total.
	assert.True(t, split.TotalCommission.Equal(dec("500")))
}
