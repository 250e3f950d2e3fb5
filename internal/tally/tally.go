package tally

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/betshop/settlement/internal/currency"
	"github.com/betshop/settlement/internal/domain"
)

// Total sums a physical note count: sum of face value times note count,
// restricted to the face values in denoms. Negative counts and unknown
// face values are rejected outright.
func Total(counts domain.DenominationCount, denoms []int) (decimal.Decimal, error) {
	known := make(map[int]bool, len(denoms))
	for _, d := range denoms {
		known[d] = true
	}

	total := decimal.Zero
	for face, n := range counts {
		if !known[face] {
			return decimal.Zero, &domain.ValidationError{
				Field:  "denomination_counts",
				Reason: fmt.Sprintf("unknown face value %d", face),
			}
		}
		if n < 0 {
			return decimal.Zero, &domain.ValidationError{
				Field:  "denomination_counts",
				Reason: fmt.Sprintf("negative count for face value %d", face),
			}
		}
		total = total.Add(decimal.NewFromInt(int64(face)).Mul(decimal.NewFromInt(int64(n))))
	}
	return total, nil
}

// AggregateMultiCurrency computes the counted cash total in SRD: each
// per-currency tally is totalled, non-SRD tallies are converted via the
// rate snapshot, and everything is summed. This is the physical count,
// independent of any receipt.
func AggregateMultiCurrency(counts map[domain.Currency]domain.DenominationCount, rates domain.ExchangeRates, maxAge time.Duration, now time.Time) (decimal.Decimal, error) {
	grand := decimal.Zero
	// Iterate the fixed currency list so errors are deterministic.
	for _, cur := range domain.Currencies {
		c, ok := counts[cur]
		if !ok || len(c) == 0 {
			continue
		}
		denoms, ok := domain.Denominations[cur]
		if !ok {
			return decimal.Zero, &domain.ValidationError{Field: "currency", Reason: "unsupported currency " + string(cur)}
		}
		sub, err := Total(c, denoms)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%s tally: %w", cur, err)
		}
		srd, err := currency.ToSRD(domain.NewMoney(sub, cur), rates, maxAge, now)
		if err != nil {
			return decimal.Zero, fmt.Errorf("convert %s: %w", cur, err)
		}
		grand = grand.Add(srd)
	}
	return grand, nil
}

// ValidateCounts checks every per-currency count without totalling,
// so malformed input is rejected before any report state is touched.
func ValidateCounts(counts map[domain.Currency]domain.DenominationCount) error {
	for cur, c := range counts {
		denoms, ok := domain.Denominations[cur]
		if !ok {
			return &domain.ValidationError{Field: "currency", Reason: "unsupported currency " + string(cur)}
		}
		if _, err := Total(c, denoms); err != nil {
			return err
		}
	}
	return nil
}
