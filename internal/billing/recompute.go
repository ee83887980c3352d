package billing

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"ateria/internal/core"
	"ateria/internal/pricing"
)

// maxConcurrentUsers bounds the per-user fan-out of a bulk recompute.
const maxConcurrentUsers = 8

// OnRegistrationSaved recomputes the saved user's month and then their year.
func (r *Recomputer) OnRegistrationSaved(ctx context.Context, userID string, year, month int) error {
	if err := r.RecomputeUserMonth(ctx, userID, year, month); err != nil {
		return err
	}
	return r.RecomputeUserYear(ctx, userID, year)
}

// OnPriceRuleAdded recomputes every month the rule's date range spans, for
// every user registered in those months, then each affected user's year
// exactly once per (user, year).
func (r *Recomputer) OnPriceRuleAdded(ctx context.Context, rule core.PriceRule) error {
	return r.RecomputeSpan(ctx, rule.Start, rule.End)
}

// RecomputeSpan runs the bulk recompute for every calendar month the
// inclusive date range touches. Months are processed in order; users within
// a month concurrently. A failed user is logged and skipped, never aborting
// the others; their year entry is left as is rather than rebuilt from a
// known-bad month.
func (r *Recomputer) RecomputeSpan(ctx context.Context, start, end core.Date) error {
	// year -> set of users whose months all recomputed cleanly
	affected := make(map[int]map[string]struct{})

	for _, ym := range pricing.MonthSpan(start, end) {
		users := r.recomputeMonthAllUsers(ctx, ym.Year, ym.Month)
		if len(users) == 0 {
			continue
		}
		if affected[ym.Year] == nil {
			affected[ym.Year] = make(map[string]struct{})
		}
		for _, userID := range users {
			affected[ym.Year][userID] = struct{}{}
		}
	}

	// Year pass: once per (user, year), after all of that user's month
	// recomputes completed above.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentUsers)
	for year, users := range affected {
		for userID := range users {
			year, userID := year, userID
			g.Go(func() error {
				if err := r.RecomputeUserYear(gctx, userID, year); err != nil {
					slog.ErrorContext(gctx, "Year recompute failed",
						"error", err, "user_id", userID, "year", year)
				}
				return nil
			})
		}
	}
	return g.Wait()
}

// recomputeMonthAllUsers groups a month's registrations by user and
// recomputes each user's monthly entry concurrently. It returns the users
// whose entries were rebuilt successfully.
func (r *Recomputer) recomputeMonthAllUsers(ctx context.Context, year, month int) []string {
	regs, err := r.store.RegistrationsByMonth(ctx, year, month)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read month registrations",
			"error", err, "year", year, "month", month)
		return nil
	}
	if len(regs) == 0 {
		return nil
	}

	rules := r.monthRules(ctx, year, month)

	byUser := make(map[string][]core.Registration)
	for _, reg := range regs {
		byUser[reg.UserID] = append(byUser[reg.UserID], reg)
	}

	var (
		mu        sync.Mutex
		recovered []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentUsers)
	for userID, userRegs := range byUser {
		userID, userRegs := userID, userRegs
		g.Go(func() error {
			total := MonthTotal(userRegs, rules)
			entry := core.NewMonthlyPayment(userID, year, month, core.Money{Cents: -total.Cents})
			if err := r.store.PutPayment(gctx, entry); err != nil {
				slog.ErrorContext(gctx, "Month recompute failed",
					"error", err, "user_id", userID, "year", year, "month", month)
				return nil
			}
			r.mirror(gctx, entry)
			mu.Lock()
			recovered = append(recovered, userID)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	slog.InfoContext(ctx, "Bulk month recompute finished",
		"year", year,
		"month", month,
		"users", len(byUser),
		"succeeded", len(recovered))

	return recovered
}
