package billing

import (
	"context"

	"ateria/internal/core"
)

// Store is the persistence port the billing engine reads from and writes to.
// The SQLite repository implements it; tests use an in-memory fake.
type Store interface {
	// PriceRulesByYear returns every rule whose start date falls in year.
	PriceRulesByYear(ctx context.Context, year int) ([]core.PriceRule, error)

	// RegistrationsByUserMonth returns one user's registrations for a month.
	RegistrationsByUserMonth(ctx context.Context, userID string, year, month int) ([]core.Registration, error)

	// RegistrationsByMonth returns all users' registrations for a month.
	RegistrationsByMonth(ctx context.Context, year, month int) ([]core.Registration, error)

	// PaymentsByUserYear returns every payment entry of a user's year,
	// the derived yearly entry included.
	PaymentsByUserYear(ctx context.Context, userID string, year int) ([]core.PaymentEntry, error)

	// PutPayment inserts or overwrites an entry by its ID.
	PutPayment(ctx context.Context, entry core.PaymentEntry) error
}
