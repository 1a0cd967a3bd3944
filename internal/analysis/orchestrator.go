package analysis

import (
    "context"
    "encoding/json"
    "fmt"
    "log"
    "strings"
    "time"

    "github.com/samber/lo"

    "carecall/internal/events"
    "carecall/internal/extract"
    "carecall/internal/model"
    "carecall/internal/stats"
    "carecall/internal/store"
)

// Analysis event kinds recorded for observability.
const (
    EventCompleted = "analysis-completed"
    EventFailed    = "analysis-failed"
)

// Orchestrator processes one outbox task end to end: extraction with
// bounded retries, signal writes, the single merged record update, and the
// statistics pass.
type Orchestrator struct {
    store       *store.Store
    extractor   extract.Extractor
    writers     *Writers
    summaries   SymptomCommenter
    stats       *stats.Coordinator
    bus         *events.Bus
    maxAttempts int
    retryDelay  time.Duration
}

// SymptomCommenter is the slice of the summarize service the orchestrator
// needs; tests stub it.
type SymptomCommenter interface {
    SymptomComment(ctx context.Context, symptoms []string) *string
}

func NewOrchestrator(st *store.Store, extractor extract.Extractor, summaries SymptomCommenter, coordinator *stats.Coordinator, bus *events.Bus, maxAttempts int, retryDelay time.Duration) *Orchestrator {
    return &Orchestrator{
        store:       st,
        extractor:   extractor,
        writers:     NewWriters(st),
        summaries:   summaries,
        stats:       coordinator,
        bus:         bus,
        maxAttempts: maxAttempts,
        retryDelay:  retryDelay,
    }
}

// HandleTask is the outbox handler. A returned error marks the task FAILED;
// the call record itself stays persisted either way.
func (o *Orchestrator) HandleTask(ctx context.Context, task store.Task) error {
    rec, err := o.store.GetCall(ctx, task.CallID)
    if err != nil {
        return fmt.Errorf("load call %d: %w", task.CallID, err)
    }

    // Unanswered calls carry no transcript but still count against the
    // week. This write is isolated from the rest of the pass.
    if rec.CallStatus == model.CallNoAnswer {
        o.stats.OnMissedCall(ctx, rec)
    }

    if strings.TrimSpace(rec.Transcript) == "" {
        log.Printf("analysis: call %d has no transcript, nothing to extract", rec.ID)
        return nil
    }

    schedules, err := o.store.SchedulesByElder(ctx, rec.ElderID)
    if err != nil {
        return fmt.Errorf("load schedules: %w", err)
    }

    req := extract.Request{
        TranscriptionText: rec.Transcript,
        CallDate:          rec.CallDate().Format("2006-01-02"),
        MedicationNames: lo.Uniq(lo.Map(schedules, func(s model.MedicationSchedule, _ int) string {
            return s.Name
        })),
    }
    result, attempts, err := extract.Retry(ctx, o.maxAttempts, o.retryDelay, func(ctx context.Context) (*extract.Result, error) {
        return o.extractor.Extract(ctx, req)
    })
    if err != nil {
        if rerr := o.store.RecordAnalysisEvent(ctx, rec.ID, EventFailed); rerr != nil {
            log.Printf("analysis: record failure event for call %d: %v", rec.ID, rerr)
        }
        o.bus.Publish(events.AnalysisFailed{CallID: rec.ID, ElderID: rec.ElderID, Attempts: attempts, Err: err.Error(), At: time.Now().UTC()})
        return fmt.Errorf("extraction for call %d after %d attempts: %w", rec.ID, attempts, err)
    }

    // Signal rows are stamped with the call time so the day and week
    // aggregation windows pick them up even when analysis lags the call.
    recordedAt := rec.CalledAt
    if rec.StartTime != nil {
        recordedAt = *rec.StartTime
    }
    if err := o.writers.WriteMeal(ctx, rec, result.MealData, recordedAt); err != nil {
        return err
    }
    if err := o.writers.WriteDoses(ctx, rec, result.MedicationData, schedules, recordedAt); err != nil {
        return err
    }
    if err := o.writers.WriteBloodSugars(ctx, rec, result.BloodSugarData, recordedAt); err != nil {
        return err
    }

    merged := *rec
    merged = applySleep(merged, result.SleepData)
    merged = applyPsych(merged, result.PsychologicalState, result.PsychologicalStatus)
    merged = applyHealth(merged, result.HealthSigns, result.HealthStatus, o.callOrder(ctx, rec))

    snapshot, err := json.Marshal(result)
    if err != nil {
        return fmt.Errorf("snapshot extraction result: %w", err)
    }
    merged = merged.WithAIComment(o.summaries.SymptomComment(ctx, symptomList(merged)), string(snapshot))

    if err := o.store.UpdateAnalysis(ctx, &merged); err != nil {
        return fmt.Errorf("persist analysis for call %d: %w", rec.ID, err)
    }

    o.stats.OnAnalysisCompleted(ctx, &merged)

    if err := o.store.RecordAnalysisEvent(ctx, rec.ID, EventCompleted); err != nil {
        log.Printf("analysis: record completion event for call %d: %v", rec.ID, err)
    }
    o.bus.Publish(events.AnalysisCompleted{CallID: rec.ID, ElderID: rec.ElderID, At: time.Now().UTC()})
    return nil
}

// callOrder resolves which call window this record fell into. Failures
// degrade to 0, which simply disables the order-gated writers.
func (o *Orchestrator) callOrder(ctx context.Context, rec *model.CallRecord) int {
    setting, err := o.store.GetSetting(ctx, rec.SettingID)
    if err != nil {
        log.Printf("analysis: setting %d for call %d: %v", rec.SettingID, rec.ID, err)
        return 0
    }
    at := rec.CalledAt
    if rec.StartTime != nil {
        at = *rec.StartTime
    }
    order, err := CallOrder(at, setting)
    if err != nil {
        log.Printf("analysis: call order for call %d: %v", rec.ID, err)
        return 0
    }
    return order
}
