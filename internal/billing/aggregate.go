// Package billing implements the billing computation engine: month and year
// aggregation of priced meal registrations, and the orchestration that keeps
// the derived payment entries consistent with their inputs.
package billing

import (
	"context"
	"fmt"
	"log/slog"

	"ateria/internal/core"
	"ateria/internal/export"
	"ateria/internal/pricing"
)

// Recomputer regenerates derived monthly and yearly payment entries from the
// current registrations and price rules. Every recompute reads current
// state, computes a full replacement value and overwrites by key, so it is
// idempotent and safe to retry.
type Recomputer struct {
	store      Store
	statements export.PaymentWriter // optional statement mirror
}

func NewRecomputer(store Store, statements export.PaymentWriter) *Recomputer {
	return &Recomputer{
		store:      store,
		statements: statements,
	}
}

// MonthTotal sums the cost of a set of registrations against the given
// rules. Each present slot of each day is priced independently; skipped
// slots and empty records contribute nothing.
func MonthTotal(regs []core.Registration, rules []core.PriceRule) core.Money {
	var total int64
	for _, reg := range regs {
		date := core.NewDate(reg.Year, reg.Month, reg.Day)
		for _, slot := range core.Slots {
			food := reg.Food(slot)
			if food == nil {
				continue
			}
			total += pricing.DayPrice(*food, date, slot, rules).Cents
		}
	}
	return core.Money{Cents: total}
}

// RecomputeUserMonth regenerates one user's monthly entry. Consumption is a
// debit, so the stored amount is the negated month total.
func (r *Recomputer) RecomputeUserMonth(ctx context.Context, userID string, year, month int) error {
	rules := r.monthRules(ctx, year, month)
	regs, err := r.store.RegistrationsByUserMonth(ctx, userID, year, month)
	if err != nil {
		// Read failures degrade to an empty month rather than aborting the
		// whole recompute chain.
		slog.ErrorContext(ctx, "Failed to read user registrations",
			"error", err, "user_id", userID, "year", year, "month", month)
		regs = nil
	}

	total := MonthTotal(regs, rules)
	entry := core.NewMonthlyPayment(userID, year, month, core.Money{Cents: -total.Cents})
	if err := r.store.PutPayment(ctx, entry); err != nil {
		return fmt.Errorf("save monthly entry %s: %w", entry.ID, err)
	}

	slog.InfoContext(ctx, "Monthly entry recomputed",
		"user_id", userID,
		"year", year,
		"month", month,
		"amount_cents", entry.Amount.Cents,
		"registrations", len(regs))

	r.mirror(ctx, entry)
	return nil
}

// RecomputeUserYear regenerates one user's yearly balance entry: the sum of
// that year's individual and monthly entries. The prior yearly entry itself
// is excluded from the sum and overwritten.
func (r *Recomputer) RecomputeUserYear(ctx context.Context, userID string, year int) error {
	payments, err := r.store.PaymentsByUserYear(ctx, userID, year)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read user payments",
			"error", err, "user_id", userID, "year", year)
		payments = nil
	}

	var sum int64
	for _, p := range payments {
		if p.Type == core.PaymentYearly {
			continue
		}
		sum += p.Amount.Cents
	}

	entry := core.NewYearlyPayment(userID, year, core.Money{Cents: sum})
	if err := r.store.PutPayment(ctx, entry); err != nil {
		return fmt.Errorf("save yearly entry %s: %w", entry.ID, err)
	}

	slog.InfoContext(ctx, "Yearly entry recomputed",
		"user_id", userID,
		"year", year,
		"amount_cents", entry.Amount.Cents)

	r.mirror(ctx, entry)
	return nil
}

// monthRules fetches the year's catalog and narrows it to the rules whose
// range intersects the month. Read failures degrade to an empty catalog,
// which the pricer reports as missing prices.
func (r *Recomputer) monthRules(ctx context.Context, year, month int) []core.PriceRule {
	rules, err := r.store.PriceRulesByYear(ctx, year)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read price rules",
			"error", err, "year", year)
		return nil
	}
	return pricing.RulesForMonth(rules, year, month)
}

func (r *Recomputer) mirror(ctx context.Context, entry core.PaymentEntry) {
	if r.statements == nil {
		return
	}
	if err := r.statements.AppendPayment(ctx, entry); err != nil {
		// The local store is authoritative; a failed mirror never fails
		// the recompute.
		slog.WarnContext(ctx, "Failed to mirror payment entry",
			"error", err, "entry_id", entry.ID)
	}
}
