package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/joseph-ayodele/statements-tracker/internal/common"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
)

// fetch reads the document, retrying transient store faults with bounded
// exponential backoff. Attempts are recorded on the checkpoint.
func (p *Processor) fetch(ctx context.Context, r *run) (entity.Document, error) {
	delay := p.cfg.RetryBaseDelay
	for attempt := 1; ; attempt++ {
		r.cp.Attempts = attempt
		doc, err := p.Blobs.Get(ctx, r.req.DocumentKey)
		if err == nil {
			return doc, nil
		}
		if !common.IsRetryable(err) || ctx.Err() != nil {
			return entity.Document{}, err
		}
		if attempt >= p.cfg.RetryAttempts {
			return entity.Document{}, common.NewAppError(common.CodeStoreTransient,
				fmt.Sprintf("blob get gave up after %d attempts", attempt), err)
		}
		r.log.Warn("pipeline.fetch.retry", "attempt", attempt, "delay", delay, "err", err)
		if err := sleepCtx(ctx, delay); err != nil {
			return entity.Document{}, cancelled(err)
		}
		delay = min(delay*2, p.cfg.RetryMaxDelay)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
