package wire

import (
	"context"
	"log/slog"
	"time"
)

// purger drops idempotency records older than a retention window.
type purger interface {
	Purge(ctx context.Context, olderThan time.Duration) (int64, error)
}

// startJanitor purges expired idempotency records once at startup and then
// every interval until ctx is done. Redis and memory stores expire their own
// keys and never need it.
func startJanitor(ctx context.Context, p purger, retention, interval time.Duration) {
	go runJanitor(ctx, p, retention, interval)
}

func runJanitor(ctx context.Context, p purger, retention, interval time.Duration) {
	purge := func() {
		n, err := p.Purge(ctx, retention)
		if err != nil {
			if ctx.Err() == nil {
				slog.Error("janitor: purge failed", "error", err)
			}
			return
		}
		if n > 0 {
			slog.Info("janitor: purged idempotency records", "count", n, "retention", retention)
		}
	}

	purge()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purge()
		}
	}
}
