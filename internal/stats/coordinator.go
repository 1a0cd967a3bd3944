package stats

import (
    "context"
    "log"

    "carecall/internal/model"
)

// Coordinator runs the daily and weekly aggregations after each analysis
// pass. Aggregation failures are logged and swallowed here; they never fail
// the analysis that triggered them.
type Coordinator struct {
    daily  *DailyAggregator
    weekly *WeeklyAggregator
}

func NewCoordinator(daily *DailyAggregator, weekly *WeeklyAggregator) *Coordinator {
    return &Coordinator{daily: daily, weekly: weekly}
}

// OnAnalysisCompleted recomputes the call's day, then the week containing
// it. The weekly fold reads the daily rollup just written.
func (c *Coordinator) OnAnalysisCompleted(ctx context.Context, rec *model.CallRecord) {
    if err := c.daily.Upsert(ctx, rec); err != nil {
        log.Printf("stats: daily rollup for call %d failed: %v", rec.ID, err)
        return
    }
    if err := c.weekly.Upsert(ctx, rec); err != nil {
        log.Printf("stats: weekly rollup for call %d failed: %v", rec.ID, err)
    }
}

// OnMissedCall updates the weekly missed-call counter for an unanswered
// call. Nothing else depends on this write.
func (c *Coordinator) OnMissedCall(ctx context.Context, rec *model.CallRecord) {
    if err := c.weekly.RecordMissedCall(ctx, rec); err != nil {
        log.Printf("stats: missed-call update for call %d failed: %v", rec.ID, err)
    }
}
