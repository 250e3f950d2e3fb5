package rates

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/betshop/settlement/internal/domain"
)

// Provider supplies exchange-rate snapshots. The engine treats a snapshot as
// read-only for the duration of one computation; caching, if any, lives
// behind this interface.
type Provider interface {
	Rates(ctx context.Context, tenant string) (domain.ExchangeRates, error)
}

// StaticProvider serves fixed rates configured at startup, stamped fresh on
// every call. Good enough for cash-desk operation where the desk rate is set
// once a day; a live provider can replace it without touching the engine.
type StaticProvider struct {
	EURToSRD decimal.Decimal
	USDToSRD decimal.Decimal
	now      func() time.Time
}

func NewStaticProvider(eurToSRD, usdToSRD decimal.Decimal) *StaticProvider {
	return &StaticProvider{EURToSRD: eurToSRD, USDToSRD: usdToSRD, now: time.Now}
}

func (p *StaticProvider) Rates(_ context.Context, _ string) (domain.ExchangeRates, error) {
	return domain.ExchangeRates{
		EURToSRD: p.EURToSRD,
		USDToSRD: p.USDToSRD,
		AsOf:     p.now(),
		Source:   domain.RateSourceCached,
	}, nil
}
