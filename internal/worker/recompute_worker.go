// Package worker runs the AMQP-driven side of billing recomputation.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"ateria/internal/amqp"
	"ateria/internal/billing"
)

// RecomputeWorker executes recompute requests delivered over AMQP. All the
// actual work lives in the billing engine; the worker only validates and
// dispatches.
type RecomputeWorker struct {
	billing *billing.Recomputer
}

func NewRecomputeWorker(recomputer *billing.Recomputer) *RecomputeWorker {
	return &RecomputeWorker{billing: recomputer}
}

// HandleRecomputeSpan processes a single recompute message. Returning an
// error requeues the message, so only transient failures should surface;
// malformed spans are dropped with a log line.
func (w *RecomputeWorker) HandleRecomputeSpan(ctx context.Context, msg *amqp.RecomputeSpanMessage) error {
	if msg.Start.IsZero() || msg.End.IsZero() || msg.End.Before(msg.Start) {
		slog.ErrorContext(ctx, "Dropping recompute message with invalid span",
			"start", msg.Start.String(),
			"end", msg.End.String(),
			"reason", msg.Reason)
		return nil
	}

	slog.InfoContext(ctx, "Running span recompute",
		"start", msg.Start.String(),
		"end", msg.End.String(),
		"reason", msg.Reason)

	if err := w.billing.RecomputeSpan(ctx, msg.Start, msg.End); err != nil {
		return fmt.Errorf("recompute span %s..%s: %w", msg.Start, msg.End, err)
	}
	return nil
}
