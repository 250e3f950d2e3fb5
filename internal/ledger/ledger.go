package ledger

import (
	"context"
	"log"

	"github.com/betshop/settlement/internal/domain"
)

// Ledger is the external cash-ledger collaborator. The engine only ever
// instructs it to credit an amount after a commission withdrawal; the
// double-entry bookkeeping behind that credit is the ledger's own concern.
type Ledger interface {
	Credit(ctx context.Context, tenant string, amount domain.Money, memo string) error
}

// LogLedger writes the credit instruction to the log. It stands in for the
// real ledger service in development and in deployments where the ledger
// integration is switched off.
type LogLedger struct{}

func (LogLedger) Credit(_ context.Context, tenant string, amount domain.Money, memo string) error {
	log.Printf("[ledger] credit tenant=%s %s %s (%s)", tenant, amount.Amount, amount.Currency, memo)
	return nil
}
