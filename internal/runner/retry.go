package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zapdispatch/zapdispatch/internal/model"
)

// retryCycles re-attempts failed entries after the normal batches: up to
// MaxCycles passes over rows with status=failed and attempts < MaxAttempts,
// with a fixed delay between cycles. Terminates early when a cycle finds no
// eligible rows. Entries that exhaust MaxAttempts become permanently_failed;
// entries still failing after the last cycle simply stay failed.
func (r *Runner) retryCycles(ctx context.Context, h *Handle, instanceID string) {
	for cycle := 1; cycle <= r.opts.MaxCycles; cycle++ {
		if ctx.Err() != nil {
			return
		}

		failed, err := r.messages.ListFailed(ctx, h.accountID, r.opts.MaxAttempts)
		if err != nil {
			r.logger.Error("failed to list retryable messages",
				zap.String("account_id", h.accountID), zap.Error(err))
			return
		}
		if len(failed) == 0 {
			return
		}

		r.logger.Info("retry cycle",
			zap.String("account_id", h.accountID),
			zap.Int("cycle", cycle),
			zap.Int("eligible", len(failed)),
		)

		for _, msg := range failed {
			if ctx.Err() != nil {
				return
			}
			r.retryOne(ctx, h, instanceID, msg)
		}

		if cycle < r.opts.MaxCycles {
			if !sleep(ctx, r.opts.CycleDelay) {
				return
			}
		}
	}
}

// retryOne re-attempts one failed entry. msg.Attempts is the counter as
// fetched; MarkSending bumps it before the send. Like deliverOne, a started
// attempt runs to completion regardless of cancellation.
func (r *Runner) retryOne(ctx context.Context, h *Handle, instanceID string, msg model.Message) {
	ctx = context.WithoutCancel(ctx)

	if err := r.messages.MarkSending(ctx, msg.ID); err != nil {
		r.logger.Warn("skipping retry of undeliverable row",
			zap.String("message_id", msg.ID), zap.Error(err))
		return
	}
	attempts := msg.Attempts + 1

	remoteID, err := r.send(ctx, instanceID, &msg)
	if err == nil {
		sentAt := time.Now()
		if markErr := r.messages.MarkSent(ctx, msg.ID, remoteID, sentAt); markErr != nil {
			r.logger.Error("failed to mark sent", zap.String("message_id", msg.ID), zap.Error(markErr))
		}
		if r.recorder != nil {
			_ = r.recorder.StoreSent(ctx, msg.ID, remoteID, sentAt)
		}
		h.recordRetrySent()
		return
	}

	r.logger.Warn("retry delivery failed",
		zap.String("message_id", msg.ID),
		zap.Int("attempts", attempts),
		zap.Error(err),
	)

	if attempts >= r.opts.MaxAttempts {
		reason := fmt.Sprintf("failed after %d attempts: %v", attempts, err)
		if markErr := r.messages.MarkPermanentlyFailed(ctx, msg.ID, reason); markErr != nil {
			r.logger.Error("failed to mark permanently failed",
				zap.String("message_id", msg.ID), zap.Error(markErr))
			return
		}
		h.recordPermanentFailure()
		return
	}

	if markErr := r.messages.MarkFailed(ctx, msg.ID, err.Error()); markErr != nil {
		r.logger.Error("failed to mark failed", zap.String("message_id", msg.ID), zap.Error(markErr))
	}
}
