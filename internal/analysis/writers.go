package analysis

import (
    "context"
    "fmt"
    "log"
    "time"

    "carecall/internal/extract"
    "carecall/internal/model"
    "carecall/internal/store"
)

// mealStatusUnknown replaces the model's summary when the eaten-status label
// is outside the vocabulary.
const mealStatusUnknown = "해당 시간대 식사 여부를 명확히 확인하지 못했어요."

// Writers persists the per-call signal rows extracted from a transcript.
// Unknown vocabulary is a skipped field with a log line, never an error;
// storage failures do propagate.
type Writers struct {
    store *store.Store
}

func NewWriters(st *store.Store) *Writers {
    return &Writers{store: st}
}

func (w *Writers) WriteMeal(ctx context.Context, rec *model.CallRecord, data *extract.MealData, at time.Time) error {
    if data == nil {
        return nil
    }
    mealType, ok := model.MealTypeFromLabel(data.MealType)
    if !ok {
        log.Printf("analysis: unknown meal type %q for call %d, skipping", data.MealType, rec.ID)
        return nil
    }
    eaten := model.EatenFromLabel(data.MealEatenStatus)
    summary := data.MealSummary
    if eaten == nil {
        summary = mealStatusUnknown
    }
    obs := &model.MealObservation{
        CallID:     rec.ID,
        ElderID:    rec.ElderID,
        MealType:   mealType,
        Eaten:      eaten,
        Summary:    summary,
        RecordedAt: at,
    }
    if err := w.store.InsertMeal(ctx, obs); err != nil {
        return fmt.Errorf("insert meal: %w", err)
    }
    return nil
}

func (w *Writers) WriteDoses(ctx context.Context, rec *model.CallRecord, items []extract.MedicationItem, schedules []model.MedicationSchedule, at time.Time) error {
    for _, item := range items {
        if item.MedicationType == "" {
            log.Printf("analysis: medication item without a name for call %d, skipping", rec.ID)
            continue
        }
        event := &model.DoseEvent{
            CallID:     rec.ID,
            ElderID:    rec.ElderID,
            Name:       item.MedicationType,
            Status:     model.TakenStatusFromLabel(item.Taken),
            Summary:    fmt.Sprintf("복용시간: %s, 복용여부: %s", item.TakenTime, item.Taken),
            RecordedAt: at,
        }
        if slot, ok := model.SlotFromLabel(item.TakenTime); ok {
            event.Slot = &slot
            // A dose matches a schedule when both drug name and slot agree.
            for _, s := range schedules {
                if s.Name == item.MedicationType && s.Slot == slot {
                    id := s.ID
                    event.ScheduleID = &id
                    break
                }
            }
        }
        if err := w.store.InsertDose(ctx, event); err != nil {
            return fmt.Errorf("insert dose: %w", err)
        }
    }
    return nil
}

func (w *Writers) WriteBloodSugars(ctx context.Context, rec *model.CallRecord, items []extract.BloodSugarItem, at time.Time) error {
    for _, item := range items {
        if item.BloodSugarValue == nil {
            log.Printf("analysis: blood-sugar item without a value for call %d, skipping", rec.ID)
            continue
        }
        obs := &model.BloodSugarObservation{
            CallID:     rec.ID,
            ElderID:    rec.ElderID,
            Value:      *item.BloodSugarValue,
            Summary:    fmt.Sprintf("측정시각: %s, 식전/식후: %s", item.MeasurementTime, item.MealTime),
            RecordedAt: at,
        }
        if timing, ok := model.BloodSugarTimingFromLabel(item.MealTime); ok {
            obs.Timing = &timing
        }
        if status, ok := model.BloodSugarStatusFromLabel(item.Status); ok {
            obs.Status = &status
        }
        if err := w.store.InsertBloodSugar(ctx, obs); err != nil {
            return fmt.Errorf("insert blood sugar: %w", err)
        }
    }
    return nil
}
