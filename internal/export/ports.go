// Package export defines the outbound port for mirroring derived payment
// entries to an external statement, plus its Google Sheets and in-memory
// adapters.
package export

import (
	"context"

	"ateria/internal/core"
)

// PaymentWriter mirrors a payment entry to an external statement. Mirroring
// is best effort: callers log failures and keep going, the local store stays
// authoritative.
type PaymentWriter interface {
	AppendPayment(ctx context.Context, entry core.PaymentEntry) error
}
