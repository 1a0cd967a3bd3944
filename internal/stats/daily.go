package stats

import (
    "context"
    "fmt"
    "log"
    "math"
    "sort"
    "time"

    "github.com/samber/lo"

    "carecall/internal/metrics"
    "carecall/internal/model"
    "carecall/internal/store"
    "carecall/internal/summarize"
)

// DailyAggregator recomputes the (elder, date) rollup from that day's raw
// signals. It is re-run after every analyzed call; the upsert keeps the row
// unique.
type DailyAggregator struct {
    store     *store.Store
    summaries *summarize.Service
}

func NewDailyAggregator(st *store.Store, summaries *summarize.Service) *DailyAggregator {
    return &DailyAggregator{store: st, summaries: summaries}
}

func (a *DailyAggregator) Upsert(ctx context.Context, rec *model.CallRecord) error {
    day := rec.CallDate()
    from := day
    to := day.AddDate(0, 0, 1)

    meals, err := a.store.MealsBetween(ctx, rec.ElderID, from, to)
    if err != nil {
        return fmt.Errorf("load meals: %w", err)
    }
    schedules, err := a.store.SchedulesByElder(ctx, rec.ElderID)
    if err != nil {
        return fmt.Errorf("load schedules: %w", err)
    }
    doses, err := a.store.DosesBetween(ctx, rec.ElderID, from, to)
    if err != nil {
        return fmt.Errorf("load doses: %w", err)
    }
    sugars, err := a.store.BloodSugarsBetween(ctx, rec.ElderID, from, to)
    if err != nil {
        return fmt.Errorf("load blood sugars: %w", err)
    }
    calls, err := a.store.CallsBetween(ctx, rec.ElderID, from, to)
    if err != nil {
        return fmt.Errorf("load calls: %w", err)
    }
    setting, err := a.store.GetSetting(ctx, rec.SettingID)
    if err != nil {
        return fmt.Errorf("load setting: %w", err)
    }

    breakfast, lunch, dinner := mealFlags(meals)
    completed := completedSlots(setting, calls)
    medications, totalGoal, totalTaken := medicationStatus(schedules, doses, completed)
    sleep := avgSleepMinutes(calls)
    sugar := avgBloodSugar(sugars)
    health := latestCondition(calls, func(r model.CallRecord) *model.Condition { return r.HealthStatus })
    mental := latestCondition(calls, func(r model.CallRecord) *model.Condition { return r.PsychStatus })

    hasSignal := len(meals) > 0 || len(doses) > 0 || sleep != nil || sugar != nil || health != nil || mental != nil
    if !hasSignal {
        log.Printf("stats: no signal for elder %d on %s, skipping daily rollup", rec.ElderID, day.Format("2006-01-02"))
        return nil
    }

    rollup := &model.DailyRollup{
        ElderID:              rec.ElderID,
        Date:                 day,
        MedicationTotalGoal:  totalGoal,
        MedicationTotalTaken: totalTaken,
        Medications:          medications,
        Breakfast:            breakfast,
        Lunch:                lunch,
        Dinner:               dinner,
        AvgSleepMinutes:      sleep,
        AvgBloodSugar:        sugar,
        HealthStatus:         health,
        MentalStatus:         mental,
    }
    rollup.AISummary = a.summaries.HomeSummary(ctx, rollup)

    if err := a.store.UpsertDailyRollup(ctx, rollup); err != nil {
        return fmt.Errorf("upsert daily rollup: %w", err)
    }
    metrics.IncDailyUpserts()
    return nil
}

// mealFlags reduces the day's meal observations to one flag per meal type.
// The latest observation for a type wins; unknown eaten-status counts as not
// eaten; a type with no observation at all stays nil.
func mealFlags(meals []model.MealObservation) (breakfast, lunch, dinner *bool) {
    for _, m := range meals {
        eaten := m.Eaten != nil && *m.Eaten
        switch m.MealType {
        case model.MealBreakfast:
            breakfast = &eaten
        case model.MealLunch:
            lunch = &eaten
        case model.MealDinner:
            dinner = &eaten
        }
    }
    return breakfast, lunch, dinner
}

// completedSlots reports which call slots saw a completed call today. A slot
// window runs from its configured start up to the next configured start; the
// last configured slot is open-ended. Unconfigured slots never complete.
func completedSlots(setting *model.CareCallSetting, calls []model.CallRecord) map[model.Slot]bool {
    first, ok := parseClock(setting.FirstCallTime)
    if !ok {
        return nil
    }
    var second, third *int
    if setting.SecondCallTime != nil {
        if v, ok := parseClock(*setting.SecondCallTime); ok {
            second = &v
        }
    }
    if setting.ThirdCallTime != nil {
        if v, ok := parseClock(*setting.ThirdCallTime); ok {
            third = &v
        }
    }

    completed := map[model.Slot]bool{}
    for _, call := range calls {
        if call.CallStatus != model.CallCompleted {
            continue
        }
        at := call.CalledAt
        if call.StartTime != nil {
            at = *call.StartTime
        }
        t := at.Hour()*60 + at.Minute()
        switch {
        case t >= first && (second == nil || t < *second):
            completed[model.SlotMorning] = true
        case second != nil && t >= *second && (third == nil || t < *third):
            completed[model.SlotLunch] = true
        case third != nil && t >= *third:
            completed[model.SlotDinner] = true
        }
    }
    return completed
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(s string) (int, bool) {
    t, err := time.Parse("15:04", s)
    if err != nil {
        return 0, false
    }
    return t.Hour()*60 + t.Minute(), true
}

// medicationStatus builds the per-drug breakdown. Each drug's goal counts
// only the doses whose slot saw a completed call; the total goal is the sum
// of per-drug goals. The total taken counts every TAKEN dose event, matched
// to a schedule or not.
func medicationStatus(schedules []model.MedicationSchedule, doses []model.DoseEvent, completed map[model.Slot]bool) ([]model.MedicationBreakdown, int, int) {
    totalTaken := lo.CountBy(doses, func(d model.DoseEvent) bool {
        return d.Status == model.TakenYes
    })

    byName := lo.GroupBy(schedules, func(s model.MedicationSchedule) string { return s.Name })
    names := lo.Keys(byName)
    sort.Strings(names)

    var breakdowns []model.MedicationBreakdown
    totalGoal := 0
    for _, name := range names {
        drugSchedules := byName[name]
        goal := lo.CountBy(drugSchedules, func(s model.MedicationSchedule) bool {
            return completed[s.Slot]
        })
        taken := lo.CountBy(doses, func(d model.DoseEvent) bool {
            return d.ScheduleID != nil && d.Name == name && d.Status == model.TakenYes
        })
        statuses := lo.Map(drugSchedules, func(s model.MedicationSchedule, _ int) model.DoseStatus {
            return model.DoseStatus{Slot: s.Slot, Taken: doseOutcome(doses, s.ID)}
        })
        totalGoal += goal
        breakdowns = append(breakdowns, model.MedicationBreakdown{
            Type:      name,
            Scheduled: len(drugSchedules),
            Goal:      goal,
            Taken:     taken,
            Doses:     statuses,
        })
    }
    return breakdowns, totalGoal, totalTaken
}

func doseOutcome(doses []model.DoseEvent, scheduleID int64) *bool {
    for _, d := range doses {
        if d.ScheduleID == nil || *d.ScheduleID != scheduleID {
            continue
        }
        switch d.Status {
        case model.TakenYes:
            v := true
            return &v
        case model.TakenNo:
            v := false
            return &v
        }
        return nil
    }
    return nil
}

func avgSleepMinutes(calls []model.CallRecord) *int {
    total := 0
    count := 0
    for _, call := range calls {
        if mins, ok := call.SleepMinutes(); ok {
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

// avgBloodSugar rounds half-up to keep parity with report screens.
func avgBloodSugar(sugars []model.BloodSugarObservation) *int {
    if len(sugars) == 0 {
        return nil
    }
    sum := 0
    for _, s := range sugars {
        sum += s.Value
    }
    avg := int(math.Floor(float64(sum)/float64(len(sugars)) + 0.5))
    return &avg
}

// latestCondition scans the day's calls newest-first for the first record
// where the field is set.
func latestCondition(calls []model.CallRecord, pick func(model.CallRecord) *model.Condition) *model.Condition {
    for i := len(calls) - 1; i >= 0; i-- {
        if c := pick(calls[i]); c != nil {
            return c
        }
    }
    return nil
}
