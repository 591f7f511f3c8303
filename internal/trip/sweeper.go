package trip

import (
    "context"
    "log"
    "time"
)

// DefaultSweepInterval is how often the background sweeper runs when
// no interval is configured.
const DefaultSweepInterval = time.Minute

// StartSweeper runs the lifecycle sweep on a ticker until ctx is
// cancelled.  Intended to be launched as a goroutine from main.
func StartSweeper(ctx context.Context, svc *Service, interval time.Duration) {
    if interval <= 0 {
        interval = DefaultSweepInterval
    }
    ticker := time.NewTicker(interval)
    defer ticker.Stop()

    log.Printf("trip sweeper started (every %s)", interval)
    for {
        select {
        case <-ctx.Done():
            log.Println("trip sweeper stopped")
            return
        case now := <-ticker.C:
            started, completed, err := svc.Sweep(ctx, now.UTC())
            if err != nil {
                log.Printf("trip sweep error: %v", err)
                continue
            }
            if started > 0 || completed > 0 {
                log.Printf("trip sweep: %d started, %d completed", started, completed)
            }
        }
    }
}
