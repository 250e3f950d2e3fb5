package currency

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betshop/settlement/internal/domain"
)

func testRates(asOf time.Time) domain.ExchangeRates {
	return domain.ExchangeRates{
		EURToSRD: decimal.RequireFromString("38.5"),
		USDToSRD: decimal.RequireFromString("35.75"),
		AsOf:     asOf,
		Source:   domain.RateSourceLive,
	}
}

func TestToSRD(t *testing.T) {
	now := time.Now()
	rates := testRates(now)

	tests := []struct {
		name   string
		amount string
		cur    domain.Currency
		want   string
	}{
		{"SRD passthrough", "123.45", domain.CurrencySRD, "123.45"},
		{"EUR converts", "100", domain.CurrencyEUR, "3850"},
		{"USD converts", "10", domain.CurrencyUSD, "357.5"},
		{"zero is zero", "0", domain.CurrencyEUR, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := domain.NewMoney(decimal.RequireFromString(tt.amount), tt.cur)
			got, err := ToSRD(m, rates, time.Hour, now)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)),
				"got %s, want %s", got, tt.want)
		})
	}
}

func TestToSRD_Linear(t *testing.T) {
	now := time.Now()
	rates := testRates(now)

	m := domain.NewMoney(decimal.RequireFromString("17.31"), domain.CurrencyEUR)
	double := domain.NewMoney(m.Amount.Mul(decimal.NewFromInt(2)), domain.CurrencyEUR)

	one, err := ToSRD(m, rates, time.Hour, now)
	require.NoError(t, err)
	two, err := ToSRD(double, rates, time.Hour, now)
	require.NoError(t, err)

	assert.True(t, two.Equal(one.Mul(decimal.NewFromInt(2))))
}

func TestToSRD_StaleRate(t *testing.T) {
	now := time.Now()
	rates := testRates(now.Add(-30 * time.Minute))

	m := domain.NewMoney(decimal.RequireFromString("10"), domain.CurrencyUSD)

	// Inside the freshness window.
	_, err := ToSRD(m, rates, time.Hour, now)
	require.NoError(t, err)

	// Outside it.
	_, err = ToSRD(m, rates, 15*time.Minute, now)
	assert.ErrorIs(t, err, domain.ErrStaleRate)

	// SRD never consults the snapshot.
	srd := domain.NewMoney(decimal.RequireFromString("10"), domain.CurrencySRD)
	got, err := ToSRD(srd, rates, 15*time.Minute, now)
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("10")))
}

func TestToSRD_UnsupportedCurrency(t *testing.T) {
	now := time.Now()
	m := domain.NewMoney(decimal.RequireFromString("10"), domain.Currency("GBP"))
	_, err := ToSRD(m, testRates(now), time.Hour, now)

	var ve *domain.ValidationError
	assert.ErrorAs(t, err, &ve)
}
