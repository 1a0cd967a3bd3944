package store

import (
    "context"
    "database/sql"
    "time"
)

// Task statuses. READY rows are visible to the dispatcher; PROCESSING rows are
// claimed; DONE/FAILED are terminal.
const (
    TaskReady      = "READY"
    TaskProcessing = "PROCESSING"
    TaskDone       = "DONE"
    TaskFailed     = "FAILED"
)

// TaskKindAnalyze asks the analysis worker to process one call record.
const TaskKindAnalyze = "analyze-call"

// Task is one outbox row. Tasks are written in the same transaction as the
// call record they reference, so the dispatcher never sees a task for a call
// that was rolled back.
type Task struct {
    ID        string
    Kind      string
    CallID    int64
    Status    string
    Attempts  int
    LastError *string
    CreatedAt time.Time
    UpdatedAt time.Time
}

func insertTaskTx(ctx context.Context, tx *sql.Tx, t *Task) error {
    _, err := tx.ExecContext(ctx, `INSERT INTO call_tasks(id, kind, call_id, status, attempts, created_at, updated_at)
        VALUES(?,?,?,?,0,?,?)`, t.ID, t.Kind, t.CallID, t.Status, t.CreatedAt, t.UpdatedAt)
    return err
}

// ClaimTasks flips up to limit READY rows to PROCESSING and returns them,
// oldest first. Single-writer SQLite makes the flip atomic per row.
func (s *Store) ClaimTasks(ctx context.Context, limit int) ([]Task, error) {
    rows, err := s.db.QueryContext(ctx, `SELECT id, kind, call_id, status, attempts, last_error, created_at, updated_at
        FROM call_tasks WHERE status=? ORDER BY created_at LIMIT ?`, TaskReady, limit)
    if err != nil {
        return nil, err
    }
    tasks, err := scanTasks(rows)
    if err != nil {
        return nil, err
    }
    now := time.Now().UTC()
    claimed := tasks[:0]
    for _, t := range tasks {
        res, err := s.db.ExecContext(ctx, `UPDATE call_tasks SET status=?, updated_at=? WHERE id=? AND status=?`,
            TaskProcessing, now, t.ID, TaskReady)
        if err != nil {
            return nil, err
        }
        if n, _ := res.RowsAffected(); n == 0 {
            continue // lost the race to another dispatcher
        }
        t.Status = TaskProcessing
        t.UpdatedAt = now
        claimed = append(claimed, t)
    }
    return claimed, nil
}

// FinishTask records the terminal status and attempt count for a claimed task.
func (s *Store) FinishTask(ctx context.Context, id, status string, attempts int, lastError *string) error {
    res, err := s.db.ExecContext(ctx, `UPDATE call_tasks SET status=?, attempts=?, last_error=?, updated_at=? WHERE id=?`,
        status, attempts, stringOrNil(lastError), time.Now().UTC(), id)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return ErrNotFound
    }
    return nil
}

// RequeueStuckTasks flips PROCESSING rows back to READY. A task stays
// PROCESSING only while a worker holds it, so after a restart any such row
// belongs to a worker that no longer exists and must be claimed again.
func (s *Store) RequeueStuckTasks(ctx context.Context) (int64, error) {
    res, err := s.db.ExecContext(ctx, `UPDATE call_tasks SET status=?, updated_at=? WHERE status=?`,
        TaskReady, time.Now().UTC(), TaskProcessing)
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}

func (s *Store) GetTask(ctx context.Context, id string) (*Task, error) {
    row := s.db.QueryRowContext(ctx, `SELECT id, kind, call_id, status, attempts, last_error, created_at, updated_at
        FROM call_tasks WHERE id=?`, id)
    var t Task
    var lastError sql.NullString
    switch err := row.Scan(&t.ID, &t.Kind, &t.CallID, &t.Status, &t.Attempts, &lastError, &t.CreatedAt, &t.UpdatedAt); err {
    case nil:
        if lastError.Valid {
            t.LastError = &lastError.String
        }
        return &t, nil
    case sql.ErrNoRows:
        return nil, ErrNotFound
    default:
        return nil, err
    }
}

func (s *Store) PendingTasks(ctx context.Context, limit int) ([]Task, error) {
    rows, err := s.db.QueryContext(ctx, `SELECT id, kind, call_id, status, attempts, last_error, created_at, updated_at
        FROM call_tasks WHERE status IN (?,?) ORDER BY created_at LIMIT ?`, TaskReady, TaskProcessing, limit)
    if err != nil {
        return nil, err
    }
    return scanTasks(rows)
}

func (s *Store) CountTasksByStatus(ctx context.Context) (map[string]int, error) {
    rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM call_tasks GROUP BY status`)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    counts := map[string]int{}
    for rows.Next() {
        var status string
        var n int
        if err := rows.Scan(&status, &n); err != nil {
            return nil, err
        }
        counts[status] = n
    }
    return counts, rows.Err()
}

func scanTasks(rows *sql.Rows) ([]Task, error) {
    defer rows.Close()
    var tasks []Task
    for rows.Next() {
        var t Task
        var lastError sql.NullString
        if err := rows.Scan(&t.ID, &t.Kind, &t.CallID, &t.Status, &t.Attempts, &lastError, &t.CreatedAt, &t.UpdatedAt); err != nil {
            return nil, err
        }
        if lastError.Valid {
            t.LastError = &lastError.String
        }
        tasks = append(tasks, t)
    }
    return tasks, rows.Err()
}

// RecordAnalysisEvent appends an analysis lifecycle row (completed/failed)
// for observability.
func (s *Store) RecordAnalysisEvent(ctx context.Context, callID int64, kind string) error {
    _, err := s.db.ExecContext(ctx, `INSERT INTO analysis_events(call_id, kind, created_at) VALUES(?,?,?)`,
        callID, kind, time.Now().UTC())
    return err
}

func (s *Store) AnalysisEventCount(ctx context.Context, callID int64, kind string) (int, error) {
    var n int
    err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analysis_events WHERE call_id=? AND kind=?`, callID, kind).Scan(&n)
    return n, err
}
