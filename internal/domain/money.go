package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencySRD Currency = "SRD"
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
)

// Currencies lists every currency a terminal count can be taken in, SRD first.
var Currencies = []Currency{CurrencySRD, CurrencyEUR, CurrencyUSD}

func (c Currency) Valid() bool {
	switch c {
	case CurrencySRD, CurrencyEUR, CurrencyUSD:
		return true
	}
	return false
}

type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency Currency        `json:"currency"`
}

func NewMoney(amount decimal.Decimal, currency Currency) Money {
	return Money{Amount: amount, Currency: currency}
}

type RateSource string

const (
	RateSourceLive      RateSource = "live"
	RateSourceCached    RateSource = "cached"
	RateSourceEstimated RateSource = "estimated"
)

// ExchangeRates is a read-only snapshot supplied by the rate provider.
// One snapshot is held for the duration of a single computation; any
// caching belongs to the provider, not to this engine.
type ExchangeRates struct {
	EURToSRD decimal.Decimal `json:"eur_to_srd"`
	USDToSRD decimal.Decimal `json:"usd_to_srd"`
	AsOf     time.Time       `json:"as_of"`
	Source   RateSource      `json:"source"`
}

// Denominations maps each currency to the banknote face values a count may
// contain. A count referencing any other face value is rejected.
var Denominations = map[Currency][]int{
	CurrencySRD: {5, 10, 20, 50, 100, 200, 500},
	CurrencyEUR: {5, 10, 20, 50, 100, 200},
	CurrencyUSD: {1, 5, 10, 20, 50, 100},
}

// DenominationCount maps banknote face value to note count for one currency.
type DenominationCount map[int]int
