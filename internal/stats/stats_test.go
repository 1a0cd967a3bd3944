package stats

import (
    "context"
    "errors"
    "testing"
    "time"

    "carecall/internal/model"
    "carecall/internal/store"
    "carecall/internal/summarize"
)

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }

func condPtr(c model.Condition) *model.Condition { return &c }

func timingPtr(t model.BloodSugarTiming) *model.BloodSugarTiming { return &t }

func statusPtr(s model.BloodSugarStatus) *model.BloodSugarStatus { return &s }

func TestWeekStart(t *testing.T) {
    cases := []struct {
        date string
        want string
    }{
        {"2025-07-14", "2025-07-14"}, // Monday maps to itself
        {"2025-07-16", "2025-07-14"},
        {"2025-07-20", "2025-07-14"}, // Sunday closes the week
        {"2025-07-21", "2025-07-21"},
    }
    for _, tc := range cases {
        d, _ := time.Parse("2006-01-02", tc.date)
        if got := WeekStart(d).Format("2006-01-02"); got != tc.want {
            t.Fatalf("WeekStart(%s) = %s, want %s", tc.date, got, tc.want)
        }
    }
}

func TestMealFlagsLastObservationWins(t *testing.T) {
    meals := []model.MealObservation{
        {MealType: model.MealBreakfast, Eaten: boolPtr(false)},
        {MealType: model.MealBreakfast, Eaten: boolPtr(true)},
        {MealType: model.MealLunch, Eaten: nil}, // undetermined counts as not eaten
    }
    breakfast, lunch, dinner := mealFlags(meals)
    if breakfast == nil || !*breakfast {
        t.Fatalf("breakfast = %v, want true", breakfast)
    }
    if lunch == nil || *lunch {
        t.Fatalf("lunch = %v, want false", lunch)
    }
    if dinner != nil {
        t.Fatalf("dinner = %v, want nil", dinner)
    }
}

func TestCompletedSlotsSkipsUnconfiguredWindows(t *testing.T) {
    second := "13:00"
    setting := &model.CareCallSetting{FirstCallTime: "08:00", SecondCallTime: &second}
    at := func(clock string) time.Time {
        v, _ := time.Parse("15:04", clock)
        return v
    }
    calls := []model.CallRecord{
        {CalledAt: at("08:05"), CallStatus: model.CallCompleted},
        {CalledAt: at("19:30"), CallStatus: model.CallCompleted}, // no third window configured
    }
    completed := completedSlots(setting, calls)
    if !completed[model.SlotMorning] {
        t.Fatalf("morning slot not completed")
    }
    if !completed[model.SlotLunch] {
        t.Fatalf("last configured window is open-ended, so the 19:30 call should complete lunch")
    }
    if completed[model.SlotDinner] {
        t.Fatalf("dinner slot completed without a configured window")
    }
}

func TestCompletedSlotsIgnoresUnansweredCalls(t *testing.T) {
    second := "13:00"
    setting := &model.CareCallSetting{FirstCallTime: "08:00", SecondCallTime: &second}
    at := func(clock string) time.Time {
        v, _ := time.Parse("15:04", clock)
        return v
    }
    calls := []model.CallRecord{
        {CalledAt: at("08:05"), CallStatus: model.CallNoAnswer},
        {CalledAt: at("13:10"), CallStatus: model.CallNoAnswer},
    }
    completed := completedSlots(setting, calls)
    if completed[model.SlotMorning] || completed[model.SlotLunch] {
        t.Fatalf("unanswered calls should not complete any slot: %v", completed)
    }
}

func TestMedicationStatusGatesGoalOnCompletedSlots(t *testing.T) {
    schedules := []model.MedicationSchedule{
        {ID: 1, Name: "아스피린", Slot: model.SlotMorning},
        {ID: 2, Name: "아스피린", Slot: model.SlotDinner},
        {ID: 3, Name: "혈압약", Slot: model.SlotDinner},
    }
    sID := int64(1)
    doses := []model.DoseEvent{
        {Name: "아스피린", ScheduleID: &sID, Status: model.TakenYes},
        {Name: "소화제", Status: model.TakenYes}, // off-schedule, counts toward the total only
    }
    completed := map[model.Slot]bool{model.SlotMorning: true}

    breakdowns, totalGoal, totalTaken := medicationStatus(schedules, doses, completed)
    if totalGoal != 1 {
        t.Fatalf("total goal = %d, want 1 (dinner slot had no completed call)", totalGoal)
    }
    if totalTaken != 2 {
        t.Fatalf("total taken = %d, want 2", totalTaken)
    }
    if len(breakdowns) != 2 {
        t.Fatalf("breakdowns = %d, want 2", len(breakdowns))
    }
    aspirin := breakdowns[0]
    if aspirin.Type != "아스피린" || aspirin.Goal != 1 || aspirin.Taken != 1 || aspirin.Scheduled != 2 {
        t.Fatalf("aspirin breakdown = %+v", aspirin)
    }
    other := breakdowns[1]
    if other.Type != "혈압약" || other.Goal != 0 || other.Taken != 0 {
        t.Fatalf("second breakdown = %+v", other)
    }
}

func TestAvgBloodSugarRoundsHalfUp(t *testing.T) {
    sugars := []model.BloodSugarObservation{{Value: 110}, {Value: 111}}
    got := avgBloodSugar(sugars)
    if got == nil || *got != 111 {
        t.Fatalf("avg = %v, want 111", got)
    }
    if avgBloodSugar(nil) != nil {
        t.Fatalf("empty input should yield nil")
    }
}

func TestWeeklySleepMinutesExcludesEmptyWindows(t *testing.T) {
    base := time.Date(2025, 7, 15, 23, 0, 0, 0, time.UTC)
    end := base.Add(7 * time.Hour)
    zero := base
    calls := []model.CallRecord{
        {SleepStart: &base, SleepEnd: &end},
        {SleepStart: &zero, SleepEnd: &zero}, // zero-length window is noise
        {},
    }
    got := weeklySleepMinutes(calls)
    if got == nil || *got != 420 {
        t.Fatalf("weekly sleep = %v, want 420", got)
    }
}

func TestFoldWeekMatchesDailyFlags(t *testing.T) {
    start, _ := time.Parse("2006-01-02", "2025-07-14")
    end := start.AddDate(0, 0, 6)
    dailies := []model.DailyRollup{
        {
            Breakfast: boolPtr(true),
            Lunch:     boolPtr(false),
            Medications: []model.MedicationBreakdown{
                {Type: "아스피린", Scheduled: 2, Goal: 2, Taken: 1},
            },
        },
        {
            Breakfast: boolPtr(true),
            Dinner:    boolPtr(true),
            Medications: []model.MedicationBreakdown{
                {Type: "아스피린", Scheduled: 2, Goal: 1, Taken: 1},
                {Type: "혈압약", Scheduled: 1, Goal: 1, Taken: 1},
            },
        },
    }
    sugars := []model.BloodSugarObservation{
        {Value: 110, Timing: timingPtr(model.BeforeMeal), Status: statusPtr(model.BloodSugarNormal)},
        {Value: 190, Timing: timingPtr(model.AfterMeal), Status: statusPtr(model.BloodSugarHigh)},
        {Value: 95}, // unclassified measurements stay out of the tallies
    }
    calls := []model.CallRecord{
        {CallStatus: model.CallCompleted, PsychStatus: condPtr(model.ConditionGood), PsychDetails: strPtr("기분이 좋다고 하심")},
        {CallStatus: model.CallCompleted, PsychStatus: condPtr(model.ConditionGood)}, // no details, ignored
        {CallStatus: model.CallNoAnswer},
        {CallStatus: model.CallCompleted, HealthDetails: strPtr("무릎 통증")},
    }

    r := FoldWeek(7, start, end, dailies, sugars, calls)

    if r.MealGoalCount != 6 {
        t.Fatalf("meal goal = %d, want 6", r.MealGoalCount)
    }
    if r.BreakfastCount != 2 || r.LunchCount != 0 || r.DinnerCount != 1 {
        t.Fatalf("meal counts = %d/%d/%d", r.BreakfastCount, r.LunchCount, r.DinnerCount)
    }
    if r.MealRatePercent != 50 {
        t.Fatalf("meal rate = %d, want 50", r.MealRatePercent)
    }
    if r.MedicationGoalCount != 4 || r.MedicationTakenCount != 3 {
        t.Fatalf("medication totals = %d/%d", r.MedicationTakenCount, r.MedicationGoalCount)
    }
    if r.MedicationMissedCount != 1 {
        t.Fatalf("medication missed = %d, want 1", r.MedicationMissedCount)
    }
    if got := r.MedicationByType["아스피린"]; got.Taken != 2 || got.Goal != 3 || got.Scheduled != 4 {
        t.Fatalf("아스피린 stats = %+v", got)
    }
    if r.MedicationRatePercent != 75 {
        t.Fatalf("medication rate = %d, want 75", r.MedicationRatePercent)
    }
    if r.PsychGoodCount != 1 || r.PsychBadCount != 0 {
        t.Fatalf("psych counts = %d/%d", r.PsychGoodCount, r.PsychBadCount)
    }
    if r.HealthSignals != 1 {
        t.Fatalf("health signals = %d, want 1", r.HealthSignals)
    }
    if r.MissedCalls != 1 {
        t.Fatalf("missed calls = %d, want 1", r.MissedCalls)
    }
    if r.BeforeMealBloodSugar.Normal != 1 || r.AfterMealBloodSugar.High != 1 {
        t.Fatalf("blood sugar tallies = %+v / %+v", r.BeforeMealBloodSugar, r.AfterMealBloodSugar)
    }
}

func TestRatioPercent(t *testing.T) {
    if got := ratioPercent(1, 3); got != 33 {
        t.Fatalf("1/3 = %d, want 33", got)
    }
    if got := ratioPercent(2, 3); got != 67 {
        t.Fatalf("2/3 = %d, want 67", got)
    }
    if got := ratioPercent(5, 0); got != 0 {
        t.Fatalf("n/0 = %d, want 0", got)
    }
}

func newStatsStore(t *testing.T) (*store.Store, *model.Elder, *model.CareCallSetting) {
    t.Helper()
    st, err := store.Open(t.TempDir() + "/test.db")
    if err != nil {
        t.Fatalf("open: %v", err)
    }
    t.Cleanup(func() { st.Close() })
    ctx := context.Background()
    elder, err := st.CreateElder(ctx, "박철수", "", time.Now().UTC())
    if err != nil {
        t.Fatalf("elder: %v", err)
    }
    setting, err := st.CreateSetting(ctx, &model.CareCallSetting{ElderID: elder.ID, FirstCallTime: "08:00"})
    if err != nil {
        t.Fatalf("setting: %v", err)
    }
    return st, elder, setting
}

func saveCompletedCall(t *testing.T, st *store.Store, elder *model.Elder, setting *model.CareCallSetting, at time.Time) *model.CallRecord {
    t.Helper()
    rec, _, err := st.SaveCall(context.Background(), store.SaveCallParams{
        ElderID:   elder.ID,
        SettingID: setting.ID,
        CalledAt:  at,
        StartTime: &at,
        Status:    model.CallCompleted,
        Responded: model.Responded,
        Segments:  []store.TranscriptSegment{{Speaker: "elder", Text: "네"}},
    })
    if err != nil {
        t.Fatalf("save call: %v", err)
    }
    return rec
}

func TestDailyUpsertIsIdempotent(t *testing.T) {
    st, elder, setting := newStatsStore(t)
    ctx := context.Background()
    at := time.Date(2025, 7, 16, 8, 10, 0, 0, time.UTC)
    rec := saveCompletedCall(t, st, elder, setting, at)

    if err := st.InsertMeal(ctx, &model.MealObservation{
        CallID: rec.ID, ElderID: elder.ID, MealType: model.MealBreakfast,
        Eaten: boolPtr(true), Summary: "아침 식사를 하셨어요.", RecordedAt: at,
    }); err != nil {
        t.Fatalf("meal: %v", err)
    }

    agg := NewDailyAggregator(st, summarize.NewService(nil))
    if err := agg.Upsert(ctx, rec); err != nil {
        t.Fatalf("first upsert: %v", err)
    }
    if err := agg.Upsert(ctx, rec); err != nil {
        t.Fatalf("second upsert: %v", err)
    }

    rollup, err := st.DailyRollup(ctx, elder.ID, rec.CallDate())
    if err != nil {
        t.Fatalf("rollup: %v", err)
    }
    if rollup.Breakfast == nil || !*rollup.Breakfast {
        t.Fatalf("breakfast flag = %v", rollup.Breakfast)
    }
}

func TestDailyUpsertSkipsSignalFreeDay(t *testing.T) {
    st, elder, setting := newStatsStore(t)
    ctx := context.Background()
    at := time.Date(2025, 7, 16, 8, 10, 0, 0, time.UTC)
    rec := saveCompletedCall(t, st, elder, setting, at)

    agg := NewDailyAggregator(st, summarize.NewService(nil))
    if err := agg.Upsert(ctx, rec); err != nil {
        t.Fatalf("upsert: %v", err)
    }
    if _, err := st.DailyRollup(ctx, elder.ID, rec.CallDate()); !errors.Is(err, store.ErrNotFound) {
        t.Fatalf("rollup written for a day without signals: %v", err)
    }
}
