package analysis

import (
    "context"
    "errors"
    "testing"
    "time"

    "carecall/internal/events"
    "carecall/internal/extract"
    "carecall/internal/model"
    "carecall/internal/stats"
    "carecall/internal/store"
    "carecall/internal/summarize"
)

type fakeExtractor struct {
    failures int
    calls    int
    result   *extract.Result
}

func (f *fakeExtractor) Extract(ctx context.Context, req extract.Request) (*extract.Result, error) {
    f.calls++
    if f.calls <= f.failures {
        return nil, errors.New("model unavailable")
    }
    return f.result, nil
}

type testEnv struct {
    store   *store.Store
    elder   *model.Elder
    setting *model.CareCallSetting
}

func newTestEnv(t *testing.T) *testEnv {
    t.Helper()
    st, err := store.Open(t.TempDir() + "/test.db")
    if err != nil {
        t.Fatalf("open: %v", err)
    }
    t.Cleanup(func() { st.Close() })
    ctx := context.Background()
    elder, err := st.CreateElder(ctx, "김영희", "", time.Now().UTC())
    if err != nil {
        t.Fatalf("elder: %v", err)
    }
    second := "13:00"
    third := "19:00"
    setting, err := st.CreateSetting(ctx, &model.CareCallSetting{
        ElderID:        elder.ID,
        FirstCallTime:  "08:00",
        SecondCallTime: &second,
        ThirdCallTime:  &third,
    })
    if err != nil {
        t.Fatalf("setting: %v", err)
    }
    return &testEnv{store: st, elder: elder, setting: setting}
}

func (e *testEnv) newOrchestrator(t *testing.T, extractor extract.Extractor) *Orchestrator {
    t.Helper()
    summaries := summarize.NewService(nil)
    daily := stats.NewDailyAggregator(e.store, summaries)
    weekly := stats.NewWeeklyAggregator(e.store, summaries)
    coordinator := stats.NewCoordinator(daily, weekly)
    return NewOrchestrator(e.store, extractor, summaries, coordinator, events.NewBus(), 3, time.Millisecond)
}

func (e *testEnv) saveCall(t *testing.T, calledAt time.Time, status model.CallStatus, transcript string) (*model.CallRecord, *store.Task) {
    t.Helper()
    var segments []store.TranscriptSegment
    if transcript != "" {
        segments = []store.TranscriptSegment{{Speaker: "elder", Text: transcript}}
    }
    responded := model.Responded
    if status == model.CallNoAnswer {
        responded = model.NotResponded
    }
    rec, task, err := e.store.SaveCall(context.Background(), store.SaveCallParams{
        ElderID:   e.elder.ID,
        SettingID: e.setting.ID,
        CalledAt:  calledAt,
        StartTime: &calledAt,
        Status:    status,
        Responded: responded,
        Segments:  segments,
    })
    if err != nil {
        t.Fatalf("save call: %v", err)
    }
    return rec, task
}

func strPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }

func emptyResult() *extract.Result {
    return &extract.Result{}
}

func TestCallOrderWindows(t *testing.T) {
    second := "13:00"
    third := "19:00"
    setting := &model.CareCallSetting{FirstCallTime: "08:00", SecondCallTime: &second, ThirdCallTime: &third}

    cases := []struct {
        clock string
        want  int
    }{
        {"08:00", 1},
        {"12:59", 1},
        {"13:00", 2},
        {"18:59", 2},
        {"19:00", 3},
        {"23:45", 3},
        {"02:00", 3}, // wraps past midnight
        {"07:59", 3},
    }
    for _, tc := range cases {
        at, _ := time.Parse("15:04", tc.clock)
        got, err := CallOrder(at, setting)
        if err != nil {
            t.Fatalf("%s: %v", tc.clock, err)
        }
        if got != tc.want {
            t.Fatalf("%s: order = %d, want %d", tc.clock, got, tc.want)
        }
    }
}

func TestCallOrderWithoutOptionalWindows(t *testing.T) {
    setting := &model.CareCallSetting{FirstCallTime: "09:00"}
    at, _ := time.Parse("15:04", "20:00")
    got, err := CallOrder(at, setting)
    if err != nil || got != 1 {
        t.Fatalf("order = %d, err = %v, want 1", got, err)
    }
}

func TestSleepEndRollsToNextDay(t *testing.T) {
    calledAt := time.Date(2025, 7, 16, 8, 10, 0, 0, time.UTC)
    rec := model.CallRecord{CalledAt: calledAt}
    merged := applySleep(rec, &extract.SleepData{SleepStartTime: "23:30", SleepEndTime: "06:00"})

    wantStart := time.Date(2025, 7, 16, 23, 30, 0, 0, time.UTC)
    wantEnd := time.Date(2025, 7, 17, 6, 0, 0, 0, time.UTC)
    if merged.SleepStart == nil || !merged.SleepStart.Equal(wantStart) {
        t.Fatalf("sleep start = %v, want %v", merged.SleepStart, wantStart)
    }
    if merged.SleepEnd == nil || !merged.SleepEnd.Equal(wantEnd) {
        t.Fatalf("sleep end = %v, want %v", merged.SleepEnd, wantEnd)
    }
}

func TestCopyOnWriteIsolation(t *testing.T) {
    calledAt := time.Date(2025, 7, 16, 8, 10, 0, 0, time.UTC)
    rec := model.CallRecord{CalledAt: calledAt}

    withSleep := applySleep(rec, &extract.SleepData{SleepStartTime: "23:00", SleepEndTime: "06:00"})
    withBoth := applyPsych(withSleep, []string{"손주 자랑을 하심"}, strPtr("좋음"))

    if withBoth.SleepStart == nil || withBoth.SleepEnd == nil {
        t.Fatalf("psych update clobbered sleep fields")
    }
    if withBoth.PsychStatus == nil || *withBoth.PsychStatus != model.ConditionGood {
        t.Fatalf("psych status missing")
    }
    if rec.SleepStart != nil || rec.PsychStatus != nil {
        t.Fatalf("original record mutated")
    }
}

func TestApplyHealthGatedToThirdCall(t *testing.T) {
    rec := model.CallRecord{}
    signs := []string{"무릎 통증"}

    gated := applyHealth(rec, signs, strPtr("나쁨"), 1)
    if gated.HealthStatus != nil {
        t.Fatalf("health written outside third window")
    }
    applied := applyHealth(rec, signs, strPtr("나쁨"), 3)
    if applied.HealthStatus == nil || *applied.HealthStatus != model.ConditionBad {
        t.Fatalf("health not written in third window")
    }
    if applied.HealthDetails == nil || *applied.HealthDetails != "무릎 통증" {
        t.Fatalf("health details = %v", applied.HealthDetails)
    }
}

func TestHandleTaskRetriesThenSucceeds(t *testing.T) {
    env := newTestEnv(t)
    ctx := context.Background()
    calledAt := time.Date(2025, 7, 16, 8, 10, 0, 0, time.UTC)

    if _, err := env.store.CreateSchedule(ctx, &model.MedicationSchedule{
        ElderID: env.elder.ID, Name: "아스피린", Slot: model.SlotMorning,
    }); err != nil {
        t.Fatalf("schedule: %v", err)
    }

    rec, task := env.saveCall(t, calledAt, model.CallCompleted, "약 먹고 아침도 먹었어")
    extractor := &fakeExtractor{failures: 2, result: &extract.Result{
        MealData:  &extract.MealData{MealType: "아침", MealEatenStatus: "섭취함", MealSummary: "아침 식사를 하셨어요."},
        SleepData: &extract.SleepData{SleepStartTime: "23:30", SleepEndTime: "06:00"},
        MedicationData: []extract.MedicationItem{
            {MedicationType: "아스피린", Taken: "복용함", TakenTime: "아침"},
        },
        BloodSugarData: []extract.BloodSugarItem{
            {MeasurementTime: "아침", MealTime: "식전", BloodSugarValue: intPtr(110), Status: "정상"},
            {MeasurementTime: "아침", MealTime: "식후"}, // no value: skipped
        },
    }}

    o := env.newOrchestrator(t, extractor)
    if err := o.HandleTask(ctx, *task); err != nil {
        t.Fatalf("handle task: %v", err)
    }
    if extractor.calls != 3 {
        t.Fatalf("extractor calls = %d, want 3", extractor.calls)
    }

    got, err := env.store.GetCall(ctx, rec.ID)
    if err != nil {
        t.Fatalf("get call: %v", err)
    }
    if got.SleepEnd == nil || got.SleepEnd.Day() != 17 {
        t.Fatalf("sleep end not rolled to next day: %v", got.SleepEnd)
    }
    if got.ExtractionJSON == nil {
        t.Fatalf("extraction snapshot missing")
    }

    n, err := env.store.AnalysisEventCount(ctx, rec.ID, EventCompleted)
    if err != nil {
        t.Fatalf("event count: %v", err)
    }
    if n != 1 {
        t.Fatalf("completed events = %d, want 1", n)
    }

    rollup, err := env.store.DailyRollup(ctx, env.elder.ID, rec.CallDate())
    if err != nil {
        t.Fatalf("daily rollup: %v", err)
    }
    if rollup.MedicationTotalTaken != 1 || rollup.MedicationTotalGoal != 1 {
        t.Fatalf("medication taken/goal = %d/%d, want 1/1", rollup.MedicationTotalTaken, rollup.MedicationTotalGoal)
    }
    if len(rollup.Medications) != 1 || rollup.Medications[0].Type != "아스피린" || rollup.Medications[0].Taken != 1 || rollup.Medications[0].Goal != 1 {
        t.Fatalf("per-drug breakdown = %+v", rollup.Medications)
    }
    if rollup.Breakfast == nil || !*rollup.Breakfast {
        t.Fatalf("breakfast flag = %v", rollup.Breakfast)
    }
    if rollup.AvgSleepMinutes == nil || *rollup.AvgSleepMinutes != 390 {
        t.Fatalf("avg sleep = %v, want 390", rollup.AvgSleepMinutes)
    }
    if rollup.AvgBloodSugar == nil || *rollup.AvgBloodSugar != 110 {
        t.Fatalf("avg blood sugar = %v, want 110", rollup.AvgBloodSugar)
    }

    sugars, err := env.store.BloodSugarsBetween(ctx, env.elder.ID, rec.CallDate(), rec.CallDate().AddDate(0, 0, 1))
    if err != nil {
        t.Fatalf("sugars: %v", err)
    }
    if len(sugars) != 1 {
        t.Fatalf("blood-sugar rows = %d, want 1 (valueless item skipped)", len(sugars))
    }

    weekly, err := env.store.WeeklyRollup(ctx, env.elder.ID, stats.WeekStart(rec.CallDate()))
    if err != nil {
        t.Fatalf("weekly rollup: %v", err)
    }
    if weekly.BreakfastCount != 1 || weekly.MealGoalCount != 3 {
        t.Fatalf("weekly meals = %d/%d", weekly.BreakfastCount, weekly.MealGoalCount)
    }
    if weekly.BeforeMealBloodSugar.Normal != 1 {
        t.Fatalf("weekly blood sugar tally = %+v", weekly.BeforeMealBloodSugar)
    }
}

func TestHandleTaskExhaustsRetries(t *testing.T) {
    env := newTestEnv(t)
    ctx := context.Background()
    rec, task := env.saveCall(t, time.Date(2025, 7, 16, 8, 10, 0, 0, time.UTC), model.CallCompleted, "여보세요")

    extractor := &fakeExtractor{failures: 99}
    o := env.newOrchestrator(t, extractor)
    if err := o.HandleTask(ctx, *task); err == nil {
        t.Fatalf("expected terminal failure")
    }
    if extractor.calls != 3 {
        t.Fatalf("extractor calls = %d, want 3", extractor.calls)
    }

    n, err := env.store.AnalysisEventCount(ctx, rec.ID, EventCompleted)
    if err != nil {
        t.Fatalf("event count: %v", err)
    }
    if n != 0 {
        t.Fatalf("completed events = %d, want 0", n)
    }
    got, err := env.store.GetCall(ctx, rec.ID)
    if err != nil {
        t.Fatalf("get call: %v", err)
    }
    if got.ExtractionJSON != nil || got.SleepStart != nil {
        t.Fatalf("derived fields written despite failure")
    }
    if _, err := env.store.DailyRollup(ctx, env.elder.ID, rec.CallDate()); !errors.Is(err, store.ErrNotFound) {
        t.Fatalf("daily rollup exists despite failure: %v", err)
    }
}

func TestHandleTaskSkipsBlankTranscript(t *testing.T) {
    env := newTestEnv(t)
    _, task := env.saveCall(t, time.Date(2025, 7, 16, 8, 10, 0, 0, time.UTC), model.CallCompleted, "")

    extractor := &fakeExtractor{result: emptyResult()}
    o := env.newOrchestrator(t, extractor)
    if err := o.HandleTask(context.Background(), *task); err != nil {
        t.Fatalf("handle task: %v", err)
    }
    if extractor.calls != 0 {
        t.Fatalf("extraction ran on blank transcript")
    }
}

func TestHandleTaskCountsMissedCall(t *testing.T) {
    env := newTestEnv(t)
    ctx := context.Background()
    calledAt := time.Date(2025, 7, 16, 8, 10, 0, 0, time.UTC)
    rec, task := env.saveCall(t, calledAt, model.CallNoAnswer, "")

    extractor := &fakeExtractor{result: emptyResult()}
    o := env.newOrchestrator(t, extractor)
    if err := o.HandleTask(ctx, *task); err != nil {
        t.Fatalf("handle task: %v", err)
    }
    if extractor.calls != 0 {
        t.Fatalf("extraction ran for unanswered call")
    }

    weekly, err := env.store.WeeklyRollup(ctx, env.elder.ID, stats.WeekStart(rec.CallDate()))
    if err != nil {
        t.Fatalf("weekly rollup: %v", err)
    }
    if weekly.MissedCalls != 1 {
        t.Fatalf("missed calls = %d, want 1", weekly.MissedCalls)
    }
}

func TestWriteMealUnknownTypeSkipped(t *testing.T) {
    env := newTestEnv(t)
    ctx := context.Background()
    rec, _ := env.saveCall(t, time.Date(2025, 7, 16, 8, 10, 0, 0, time.UTC), model.CallCompleted, "네")

    w := NewWriters(env.store)
    if err := w.WriteMeal(ctx, rec, &extract.MealData{MealType: "브런치", MealEatenStatus: "섭취함"}, rec.CalledAt); err != nil {
        t.Fatalf("write meal: %v", err)
    }
    meals, err := env.store.MealsBetween(ctx, env.elder.ID, rec.CallDate(), rec.CallDate().AddDate(0, 0, 1))
    if err != nil {
        t.Fatalf("meals: %v", err)
    }
    if len(meals) != 0 {
        t.Fatalf("unknown meal type persisted: %+v", meals)
    }
}

func TestWriteMealUnknownEatenGetsSentinelSummary(t *testing.T) {
    env := newTestEnv(t)
    ctx := context.Background()
    rec, _ := env.saveCall(t, time.Date(2025, 7, 16, 8, 10, 0, 0, time.UTC), model.CallCompleted, "글쎄")

    w := NewWriters(env.store)
    if err := w.WriteMeal(ctx, rec, &extract.MealData{MealType: "점심", MealEatenStatus: "모름", MealSummary: "대답이 모호했음"}, rec.CalledAt); err != nil {
        t.Fatalf("write meal: %v", err)
    }
    meals, err := env.store.MealsBetween(ctx, env.elder.ID, rec.CallDate(), rec.CallDate().AddDate(0, 0, 1))
    if err != nil {
        t.Fatalf("meals: %v", err)
    }
    if len(meals) != 1 {
        t.Fatalf("meal rows = %d, want 1", len(meals))
    }
    if meals[0].Eaten != nil {
        t.Fatalf("unknown eaten status should stay nil")
    }
    if meals[0].Summary != mealStatusUnknown {
        t.Fatalf("summary = %q", meals[0].Summary)
    }
}

func TestWriteBloodSugarClassifiesTimingFromMealTime(t *testing.T) {
    env := newTestEnv(t)
    ctx := context.Background()
    rec, _ := env.saveCall(t, time.Date(2025, 7, 16, 8, 10, 0, 0, time.UTC), model.CallCompleted, "혈당 쟀어요")

    w := NewWriters(env.store)
    items := []extract.BloodSugarItem{
        {MeasurementTime: "아침", MealTime: "식전", BloodSugarValue: intPtr(110), Status: "정상"},
    }
    if err := w.WriteBloodSugars(ctx, rec, items, rec.CalledAt); err != nil {
        t.Fatalf("write blood sugars: %v", err)
    }
    sugars, err := env.store.BloodSugarsBetween(ctx, env.elder.ID, rec.CallDate(), rec.CallDate().AddDate(0, 0, 1))
    if err != nil {
        t.Fatalf("sugars: %v", err)
    }
    if len(sugars) != 1 {
        t.Fatalf("sugar rows = %d, want 1", len(sugars))
    }
    if sugars[0].Timing == nil || *sugars[0].Timing != model.BeforeMeal {
        t.Fatalf("timing = %v, want BEFORE_MEAL", sugars[0].Timing)
    }
    if sugars[0].Status == nil || *sugars[0].Status != model.BloodSugarNormal {
        t.Fatalf("status = %v, want NORMAL", sugars[0].Status)
    }
    if sugars[0].Summary != "측정시각: 아침, 식전/식후: 식전" {
        t.Fatalf("summary = %q", sugars[0].Summary)
    }
}
