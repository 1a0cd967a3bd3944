package ingest

import (
    "context"
    "fmt"
    "time"

    "carecall/internal/events"
    "carecall/internal/metrics"
    "carecall/internal/model"
    "carecall/internal/store"
)

// Segment is one utterance in the provider payload.
type Segment struct {
    Speaker string `json:"speaker"`
    Text    string `json:"text"`
}

// Transcription is the provider's transcript envelope.
type Transcription struct {
    Language string    `json:"language"`
    Segments []Segment `json:"segments"`
}

// Payload is the call-finished message from the call provider, shared by the
// HTTP boundary and the drop-directory watcher.
type Payload struct {
    ElderID       int64         `json:"elderId"`
    SettingID     int64         `json:"settingId"`
    StartTime     *time.Time    `json:"startTime"`
    EndTime       *time.Time    `json:"endTime"`
    Status        string        `json:"status"`
    Responded     int           `json:"responded"`
    Transcription Transcription `json:"transcription"`
}

// ErrInvalid marks payloads the provider sent malformed; callers map it to a
// 400-class response instead of a retry.
type ErrInvalid struct {
    Field string
    Value any
}

func (e *ErrInvalid) Error() string {
    return fmt.Sprintf("invalid %s: %v", e.Field, e.Value)
}

// Service validates provider payloads and persists them through the store.
type Service struct {
    store *store.Store
    bus   *events.Bus
}

func NewService(st *store.Store, bus *events.Bus) *Service {
    return &Service{store: st, bus: bus}
}

// Ingest saves the call and its analysis task in one transaction, then
// publishes CallIngested. Unknown elder/setting surfaces store.ErrNotFound.
func (s *Service) Ingest(ctx context.Context, p Payload) (*model.CallRecord, *store.Task, error) {
    status := model.CallStatus(p.Status)
    if !status.Valid() {
        return nil, nil, &ErrInvalid{Field: "status", Value: p.Status}
    }
    responded, ok := model.ResponseStatusFromValue(p.Responded)
    if !ok {
        return nil, nil, &ErrInvalid{Field: "responded", Value: p.Responded}
    }

    calledAt := time.Now().UTC()
    if p.StartTime != nil {
        calledAt = *p.StartTime
    }
    segments := make([]store.TranscriptSegment, 0, len(p.Transcription.Segments))
    for _, seg := range p.Transcription.Segments {
        segments = append(segments, store.TranscriptSegment{Speaker: seg.Speaker, Text: seg.Text})
    }

    rec, task, err := s.store.SaveCall(ctx, store.SaveCallParams{
        ElderID:   p.ElderID,
        SettingID: p.SettingID,
        CalledAt:  calledAt,
        StartTime: p.StartTime,
        EndTime:   p.EndTime,
        Status:    status,
        Responded: responded,
        Segments:  segments,
    })
    if err != nil {
        return nil, nil, err
    }

    metrics.IncCallsIngested()
    s.bus.Publish(events.CallIngested{
        CallID:  rec.ID,
        ElderID: rec.ElderID,
        TaskID:  task.ID,
        At:      time.Now().UTC(),
    })
    return rec, task, nil
}
