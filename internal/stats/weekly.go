package stats

import (
    "context"
    "fmt"
    "math"
    "strings"
    "time"

    "carecall/internal/metrics"
    "carecall/internal/model"
    "carecall/internal/store"
    "carecall/internal/summarize"
)

// WeeklyAggregator recomputes the Monday-anchored week containing a call
// from that window's daily rollups and raw signals.
type WeeklyAggregator struct {
    store     *store.Store
    summaries *summarize.Service
}

func NewWeeklyAggregator(st *store.Store, summaries *summarize.Service) *WeeklyAggregator {
    return &WeeklyAggregator{store: st, summaries: summaries}
}

// WeekStart returns the previous-or-same Monday for a date.
func WeekStart(d time.Time) time.Time {
    day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
    offset := (int(day.Weekday()) + 6) % 7
    return day.AddDate(0, 0, -offset)
}

func (a *WeeklyAggregator) Upsert(ctx context.Context, rec *model.CallRecord) error {
    endDate := rec.CallDate()
    startDate := WeekStart(endDate)
    from := startDate
    to := endDate.AddDate(0, 0, 1)

    dailies, err := a.store.DailyRollupsBetween(ctx, rec.ElderID, startDate, endDate)
    if err != nil {
        return fmt.Errorf("load daily rollups: %w", err)
    }
    sugars, err := a.store.BloodSugarsBetween(ctx, rec.ElderID, from, to)
    if err != nil {
        return fmt.Errorf("load blood sugars: %w", err)
    }
    calls, err := a.store.CallsBetween(ctx, rec.ElderID, from, to)
    if err != nil {
        return fmt.Errorf("load calls: %w", err)
    }

    rollup := FoldWeek(rec.ElderID, startDate, endDate, dailies, sugars, calls)
    rollup.HealthSummary = a.summaries.WeeklySummary(ctx, &rollup)

    if err := a.store.UpsertWeeklyRollup(ctx, &rollup); err != nil {
        return fmt.Errorf("upsert weekly rollup: %w", err)
    }
    metrics.IncWeeklyUpserts()
    return nil
}

// RecordMissedCall bumps the missed-call counter for the week of a no-answer
// call. The next full fold over the same window recomputes the count from
// call records and stays consistent.
func (a *WeeklyAggregator) RecordMissedCall(ctx context.Context, rec *model.CallRecord) error {
    start := WeekStart(rec.CallDate())
    if err := a.store.IncrementMissedCalls(ctx, rec.ElderID, start, rec.CallDate()); err != nil {
        return fmt.Errorf("increment missed calls: %w", err)
    }
    metrics.IncMissedCalls()
    return nil
}

// FoldWeek is the pure weekly fold: no storage access, fully determined by
// its inputs.
func FoldWeek(elderID int64, startDate, endDate time.Time, dailies []model.DailyRollup, sugars []model.BloodSugarObservation, calls []model.CallRecord) model.WeeklyRollup {
    r := model.WeeklyRollup{
        ElderID:       elderID,
        StartDate:     startDate,
        EndDate:       endDate,
        MealGoalCount: len(dailies) * 3,
    }

    byType := map[string]model.MedicationTypeStats{}
    for _, d := range dailies {
        if d.Breakfast != nil && *d.Breakfast {
            r.BreakfastCount++
        }
        if d.Lunch != nil && *d.Lunch {
            r.LunchCount++
        }
        if d.Dinner != nil && *d.Dinner {
            r.DinnerCount++
        }
        for _, m := range d.Medications {
            prev := byType[m.Type]
            byType[m.Type] = model.MedicationTypeStats{
                Taken:     prev.Taken + m.Taken,
                Goal:      prev.Goal + m.Goal,
                Scheduled: prev.Scheduled + m.Scheduled,
            }
            r.MedicationTakenCount += m.Taken
            r.MedicationGoalCount += m.Goal
            r.MedicationScheduledCount += m.Scheduled
        }
    }
    if len(byType) > 0 {
        r.MedicationByType = byType
    }

    r.AvgSleepMinutes = weeklySleepMinutes(calls)

    for _, call := range calls {
        if call.PsychDetails == nil {
            continue
        }
        if call.PsychStatus == nil {
            continue
        }
        switch *call.PsychStatus {
        case model.ConditionGood:
            r.PsychGoodCount++
        case model.ConditionBad:
            r.PsychBadCount++
        }
    }

    for _, call := range calls {
        if call.HealthDetails != nil && strings.TrimSpace(*call.HealthDetails) != "" {
            r.HealthSignals++
        }
        if call.CallStatus == model.CallNoAnswer {
            r.MissedCalls++
        }
    }

    for _, s := range sugars {
        if s.Timing == nil || s.Status == nil {
            continue
        }
        tally := &r.BeforeMealBloodSugar
        if *s.Timing == model.AfterMeal {
            tally = &r.AfterMealBloodSugar
        }
        switch *s.Status {
        case model.BloodSugarNormal:
            tally.Normal++
        case model.BloodSugarHigh:
            tally.High++
        case model.BloodSugarLow:
            tally.Low++
        }
    }

    r.MedicationMissedCount = r.MedicationGoalCount - r.MedicationTakenCount
    if r.MedicationMissedCount < 0 {
        r.MedicationMissedCount = 0
    }
    r.MealRatePercent = ratioPercent(r.BreakfastCount+r.LunchCount+r.DinnerCount, r.MealGoalCount)
    r.MedicationRatePercent = ratioPercent(r.MedicationTakenCount, r.MedicationGoalCount)
    return r
}

// weeklySleepMinutes averages per-call sleep durations, excluding
// zero/negative windows.
func weeklySleepMinutes(calls []model.CallRecord) *int {
    total := 0
    count := 0
    for _, call := range calls {
        if mins, ok := call.SleepMinutes(); ok && mins > 0 {
            total += mins
            count++
        }
    }
    if count == 0 {
        return nil
    }
    avg := total / count
    return &avg
}

func ratioPercent(n, d int) int {
    if d == 0 {
        return 0
    }
    return int(math.Round(float64(n) / float64(d) * 100))
}
