package events

import (
    "sync"
    "time"
)

// CallIngested fires once a call record and its analysis task are durable.
type CallIngested struct {
    CallID  int64
    ElderID int64
    TaskID  string
    At      time.Time
}

// AnalysisCompleted fires after the merged record write and statistics pass.
type AnalysisCompleted struct {
    CallID  int64
    ElderID int64
    At      time.Time
}

// AnalysisFailed fires when extraction exhausts its attempts.
type AnalysisFailed struct {
    CallID   int64
    ElderID  int64
    Attempts int
    Err      string
    At       time.Time
}

// Bus provides simple in-process pub/sub for observability.
type Bus struct {
    mu   sync.RWMutex
    subs []chan any
}

func NewBus() *Bus { return &Bus{} }

func (b *Bus) Subscribe() <-chan any {
    ch := make(chan any, 16)
    b.mu.Lock()
    defer b.mu.Unlock()
    b.subs = append(b.subs, ch)
    return ch
}

func (b *Bus) Publish(ev any) {
    b.mu.RLock()
    defer b.mu.RUnlock()
    for _, ch := range b.subs {
        select {
        case ch <- ev:
        default:
        }
    }
}
