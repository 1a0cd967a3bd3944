package extract

import (
    "context"
    "log"
    "time"

    "carecall/internal/metrics"
)

// Retry runs the extraction up to attempts times with a fixed delay between
// failures and returns the first success together with the attempt count. The
// last error passes through untouched when every attempt fails.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func(ctx context.Context) (*Result, error)) (*Result, int, error) {
    if attempts < 1 {
        attempts = 1
    }
    var lastErr error
    for attempt := 1; attempt <= attempts; attempt++ {
        metrics.IncExtractionAttempts()
        res, err := fn(ctx)
        if err == nil {
            return res, attempt, nil
        }
        lastErr = err
        log.Printf("extract: attempt %d/%d failed: %v", attempt, attempts, err)
        if attempt == attempts {
            break
        }
        select {
        case <-ctx.Done():
            return nil, attempt, ctx.Err()
        case <-time.After(delay):
        }
    }
    metrics.IncExtractionFailures()
    return nil, attempts, lastErr
}
