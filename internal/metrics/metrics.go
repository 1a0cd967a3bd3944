package metrics

import "sync/atomic"

var callsIngested int64
var tasksProcessed int64
var tasksFailed int64
var extractionAttempts int64
var extractionFailures int64
var dailyUpserts int64
var weeklyUpserts int64
var missedCalls int64

func IncCallsIngested()      { atomic.AddInt64(&callsIngested, 1) }
func IncTasksProcessed()     { atomic.AddInt64(&tasksProcessed, 1) }
func IncTasksFailed()        { atomic.AddInt64(&tasksFailed, 1) }
func IncExtractionAttempts() { atomic.AddInt64(&extractionAttempts, 1) }
func IncExtractionFailures() { atomic.AddInt64(&extractionFailures, 1) }
func IncDailyUpserts()       { atomic.AddInt64(&dailyUpserts, 1) }
func IncWeeklyUpserts()      { atomic.AddInt64(&weeklyUpserts, 1) }
func IncMissedCalls()        { atomic.AddInt64(&missedCalls, 1) }

func Snapshot() map[string]int64 {
    return map[string]int64{
        "calls_ingested":      atomic.LoadInt64(&callsIngested),
        "tasks_processed":     atomic.LoadInt64(&tasksProcessed),
        "tasks_failed":        atomic.LoadInt64(&tasksFailed),
        "extraction_attempts": atomic.LoadInt64(&extractionAttempts),
        "extraction_failures": atomic.LoadInt64(&extractionFailures),
        "daily_upserts":       atomic.LoadInt64(&dailyUpserts),
        "weekly_upserts":      atomic.LoadInt64(&weeklyUpserts),
        "missed_calls":        atomic.LoadInt64(&missedCalls),
    }
}
