package currency

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/betshop/settlement/internal/domain"
)

// ToSRD converts an amount to SRD using the supplied rate snapshot.
// SRD passes through unchanged; EUR and USD multiply by the matching rate.
// The snapshot must be no older than maxAge at the given instant - this
// engine never fetches rates itself, so refreshing a stale snapshot is the
// caller's job.
func ToSRD(m domain.Money, rates domain.ExchangeRates, maxAge time.Duration, now time.Time) (decimal.Decimal, error) {
	if m.Currency == domain.CurrencySRD {
		return m.Amount, nil
	}
	if now.Sub(rates.AsOf) > maxAge {
		return decimal.Zero, fmt.Errorf("%w: as_of %s, max age %s",
			domain.ErrStaleRate, rates.AsOf.Format(time.RFC3339), maxAge)
	}

	switch m.Currency {
	case domain.CurrencyEUR:
		return m.Amount.Mul(rates.EURToSRD), nil
	case domain.CurrencyUSD:
		return m.Amount.Mul(rates.USDToSRD), nil
	default:
		return decimal.Zero, &domain.ValidationError{Field: "currency", Reason: "unsupported currency " + string(m.Currency)}
	}
}
