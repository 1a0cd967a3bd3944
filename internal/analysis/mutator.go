package analysis

import (
    "log"
    "strings"
    "time"

    "carecall/internal/extract"
    "carecall/internal/model"
)

// The mutator functions below derive call-record fields from one extraction
// result. Each touches only its own fields via the record's copy-on-write
// builders, so a writer that finds nothing leaves earlier work intact.

// applySleep anchors the extracted clock times to the call date. An end
// before the start rolls to the next day.
func applySleep(rec model.CallRecord, data *extract.SleepData) model.CallRecord {
    if data == nil {
        return rec
    }
    anchor := rec.CallDate()

    var start, end *time.Time
    if data.SleepStartTime != "" {
        if t, err := time.Parse("15:04", data.SleepStartTime); err == nil {
            v := anchor.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
            start = &v
        } else {
            log.Printf("analysis: bad sleep start %q: %v", data.SleepStartTime, err)
        }
    }
    if data.SleepEndTime != "" {
        if t, err := time.Parse("15:04", data.SleepEndTime); err == nil {
            v := anchor.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
            if start != nil && v.Before(*start) {
                v = v.AddDate(0, 0, 1)
            }
            end = &v
        } else {
            log.Printf("analysis: bad sleep end %q: %v", data.SleepEndTime, err)
        }
    }
    if start == nil && end == nil {
        return rec
    }
    return rec.WithSleep(start, end)
}

// applyPsych records the psychological classification. An unmapped status
// label leaves the record untouched.
func applyPsych(rec model.CallRecord, states []string, status *string) model.CallRecord {
    if len(states) == 0 {
        return rec
    }
    if status == nil {
        return rec
    }
    cond, ok := model.ConditionFromLabel(*status)
    if !ok {
        log.Printf("analysis: unknown psychological status %q for call %d", *status, rec.ID)
        return rec
    }
    return rec.WithPsych(cond, strings.Join(states, ", "))
}

// applyHealth records the health classification, gated to the third call
// window so one daily wrap-up call owns the field.
func applyHealth(rec model.CallRecord, signs []string, status *string, callOrder int) model.CallRecord {
    if len(signs) == 0 || callOrder != 3 {
        return rec
    }
    if status == nil {
        return rec
    }
    cond, ok := model.ConditionFromLabel(*status)
    if !ok {
        log.Printf("analysis: unknown health status %q for call %d", *status, rec.ID)
        return rec
    }
    return rec.WithHealth(cond, strings.Join(signs, ", "))
}

// symptomList splits recorded health details back into individual symptoms
// for the comment generator.
func symptomList(rec model.CallRecord) []string {
    if rec.HealthDetails == nil || strings.TrimSpace(*rec.HealthDetails) == "" {
        return nil
    }
    parts := strings.Split(*rec.HealthDetails, ",")
    out := make([]string, 0, len(parts))
    for _, p := range parts {
        if p = strings.TrimSpace(p); p != "" {
            out = append(out, p)
        }
    }
    return out
}
