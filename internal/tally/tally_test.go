package tally

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betshop/settlement/internal/domain"
)

func freshRates(now time.Time) domain.ExchangeRates {
	return domain.ExchangeRates{
		EURToSRD: decimal.RequireFromString("38.5"),
		USDToSRD: decimal.RequireFromString("35.75"),
		AsOf:     now,
		Source:   domain.RateSourceCached,
	}
}

func TestTotal(t *testing.T) {
	tests := []struct {
		name    string
		counts  domain.DenominationCount
		denoms  []int
		want    string
		wantErr bool
	}{
		{
			name:   "simple SRD count",
			counts: domain.DenominationCount{100: 2, 50: 1},
			denoms: domain.Denominations[domain.CurrencySRD],
			want:   "250",
		},
		{
			name:   "empty count is zero",
			counts: domain.DenominationCount{},
			denoms: domain.Denominations[domain.CurrencySRD],
			want:   "0",
		},
		{
			name:   "zero counts allowed",
			counts: domain.DenominationCount{5: 0, 500: 0},
			denoms: domain.Denominations[domain.CurrencySRD],
			want:   "0",
		},
		{
			name:   "all SRD faces",
			counts: domain.DenominationCount{5: 1, 10: 1, 20: 1, 50: 1, 100: 1, 200: 1, 500: 1},
			denoms: domain.Denominations[domain.CurrencySRD],
			want:   "885",
		},
		{
			name:    "negative count rejected",
			counts:  domain.DenominationCount{100: -1},
			denoms:  domain.Denominations[domain.CurrencySRD],
			wantErr: true,
		},
		{
			name:    "unknown face value rejected",
			counts:  domain.DenominationCount{7: 3},
			denoms:  domain.Denominations[domain.CurrencySRD],
			wantErr: true,
		},
		{
			name:    "USD one-dollar bill not valid for EUR",
			counts:  domain.DenominationCount{1: 10},
			denoms:  domain.Denominations[domain.CurrencyEUR],
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Total(tt.counts, tt.denoms)
			if tt.wantErr {
				require.Error(t, err)
				var ve *domain.ValidationError
				assert.ErrorAs(t, err, &ve)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)),
				"got %s, want %s", got, tt.want)
		})
	}
}

func TestAggregateMultiCurrency(t *testing.T) {
	now := time.Now()
	rates := freshRates(now)

	// SRD {100:3, 50:2} = 400, EUR {50:2} = 100 at 38.5 -> 3850.
	counts := map[domain.Currency]domain.DenominationCount{
		domain.CurrencySRD: {100: 3, 50: 2},
		domain.CurrencyEUR: {50: 2},
	}

	got, err := AggregateMultiCurrency(counts, rates, time.Hour, now)
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("4250")), "got %s", got)
}

func TestAggregateMultiCurrency_AllThree(t *testing.T) {
	now := time.Now()
	counts := map[domain.Currency]domain.DenominationCount{
		domain.CurrencySRD: {100: 1},
		domain.CurrencyEUR: {10: 1},
		domain.CurrencyUSD: {20: 2},
	}

	got, err := AggregateMultiCurrency(counts, freshRates(now), time.Hour, now)
	require.NoError(t, err)
	// 100 + 10*38.5 + 40*35.75 = 100 + 385 + 1430
	assert.True(t, got.Equal(decimal.RequireFromString("1915")), "got %s", got)
}

func TestAggregateMultiCurrency_StaleRates(t *testing.T) {
	now := time.Now()
	rates := freshRates(now.Add(-2 * time.Hour))

	counts := map[domain.Currency]domain.DenominationCount{
		domain.CurrencyEUR: {50: 1},
	}

	_, err := AggregateMultiCurrency(counts, rates, time.Hour, now)
	assert.ErrorIs(t, err, domain.ErrStaleRate)

	// SRD-only counts never touch the rates, stale or not.
	srdOnly := map[domain.Currency]domain.DenominationCount{
		domain.CurrencySRD: {100: 1},
	}
	got, err := AggregateMultiCurrency(srdOnly, rates, time.Hour, now)
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("100")))
}

func TestValidateCounts(t *testing.T) {
	err := ValidateCounts(map[domain.Currency]domain.DenominationCount{
		domain.CurrencySRD: {100: 2},
		domain.CurrencyUSD: {1: -3},
	})
	require.Error(t, err)

	err = ValidateCounts(map[domain.Currency]domain.DenominationCount{
		domain.Currency("GBP"): {5: 1},
	})
	require.Error(t, err)

	err = ValidateCounts(map[domain.Currency]domain.DenominationCount{
		domain.CurrencySRD: {100: 2},
	})
	require.NoError(t, err)
}
