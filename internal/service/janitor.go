package service

import (
	"context"
	"time"
)

// RunJanitor purges expired reset codes every interval until ctx is
// cancelled.  Expired codes are already unusable; purging only keeps the
// table small.  A non-positive interval disables the janitor.
func (r *Recovery) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.Purge(ctx)
			if err != nil {
				r.Log.Warn(ctx, "purge expired codes failed", "err", err)
				continue
			}
			if n > 0 {
				r.Log.Info(ctx, "purged expired codes", "count", n)
			}
		}
	}
}
