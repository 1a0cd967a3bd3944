package store

import (
    "context"
    "database/sql"
    "fmt"
    "strings"
    "time"

    "github.com/google/uuid"

    "carecall/internal/model"
)

// TranscriptSegment is one utterance from the call provider payload.
type TranscriptSegment struct {
    Speaker string `json:"speaker"`
    Text    string `json:"text"`
}

// SaveCallParams carries everything the ingest surface knows about a
// finished call.
type SaveCallParams struct {
    ElderID   int64
    SettingID int64
    CalledAt  time.Time
    StartTime *time.Time
    EndTime   *time.Time
    Status    model.CallStatus
    Responded model.ResponseStatus
    Segments  []TranscriptSegment
}

// joinTranscript flattens provider segments into the stored transcript,
// one "speaker: text" line per segment.
func joinTranscript(segments []TranscriptSegment) string {
    lines := make([]string, 0, len(segments))
    for _, seg := range segments {
        lines = append(lines, fmt.Sprintf("%s: %s", seg.Speaker, seg.Text))
    }
    return strings.Join(lines, "\n")
}

// SaveCall validates the referenced elder and setting, persists the call
// record and enqueues its analysis task in the same transaction. The task
// becomes visible to the dispatcher only once the record is durable.
func (s *Store) SaveCall(ctx context.Context, p SaveCallParams) (*model.CallRecord, *Task, error) {
    if _, err := s.GetElder(ctx, p.ElderID); err != nil {
        return nil, nil, fmt.Errorf("elder %d: %w", p.ElderID, err)
    }
    if _, err := s.GetSetting(ctx, p.SettingID); err != nil {
        return nil, nil, fmt.Errorf("setting %d: %w", p.SettingID, err)
    }

    rec := model.CallRecord{
        ElderID:    p.ElderID,
        SettingID:  p.SettingID,
        CalledAt:   p.CalledAt,
        StartTime:  p.StartTime,
        EndTime:    p.EndTime,
        CallStatus: p.Status,
        Responded:  p.Responded,
        Transcript: joinTranscript(p.Segments),
    }
    now := time.Now().UTC()

    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, nil, err
    }
    defer tx.Rollback()

    res, err := tx.ExecContext(ctx, `INSERT INTO call_records(elder_id, setting_id, called_at, start_time, end_time, call_status, responded, transcript, created_at, updated_at)
        VALUES(?,?,?,?,?,?,?,?,?,?)`,
        rec.ElderID, rec.SettingID, rec.CalledAt, timeOrNil(rec.StartTime), timeOrNil(rec.EndTime),
        string(rec.CallStatus), string(rec.Responded), rec.Transcript, now, now)
    if err != nil {
        return nil, nil, err
    }
    rec.ID, _ = res.LastInsertId()

    task := &Task{
        ID:        uuid.NewString(),
        Kind:      TaskKindAnalyze,
        CallID:    rec.ID,
        Status:    TaskReady,
        CreatedAt: now,
        UpdatedAt: now,
    }
    if err := insertTaskTx(ctx, tx, task); err != nil {
        return nil, nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, nil, err
    }
    return &rec, task, nil
}

func (s *Store) GetCall(ctx context.Context, id int64) (*model.CallRecord, error) {
    row := s.db.QueryRowContext(ctx, `SELECT `+callColumns+` FROM call_records WHERE id=?`, id)
    rec, err := scanCall(row)
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    return rec, err
}

// UpdateAnalysis persists every derived field of the merged record in a
// single write.
func (s *Store) UpdateAnalysis(ctx context.Context, rec *model.CallRecord) error {
    res, err := s.db.ExecContext(ctx, `UPDATE call_records SET
        sleep_start=?, sleep_end=?, health_status=?, psych_status=?,
        health_details=?, psych_details=?, ai_comment=?, extraction_json=?, updated_at=?
        WHERE id=?`,
        timeOrNil(rec.SleepStart), timeOrNil(rec.SleepEnd),
        conditionOrNil(rec.HealthStatus), conditionOrNil(rec.PsychStatus),
        stringOrNil(rec.HealthDetails), stringOrNil(rec.PsychDetails),
        stringOrNil(rec.AIComment), stringOrNil(rec.ExtractionJSON),
        time.Now().UTC(), rec.ID)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return ErrNotFound
    }
    return nil
}

// CallsBetween lists an elder's calls whose attributed timestamp falls in
// [from, to).
func (s *Store) CallsBetween(ctx context.Context, elderID int64, from, to time.Time) ([]model.CallRecord, error) {
    rows, err := s.db.QueryContext(ctx, `SELECT `+callColumns+` FROM call_records
        WHERE elder_id=? AND COALESCE(start_time, called_at) >= ? AND COALESCE(start_time, called_at) < ?
        ORDER BY COALESCE(start_time, called_at)`, elderID, from, to)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var calls []model.CallRecord
    for rows.Next() {
        rec, err := scanCall(rows)
        if err != nil {
            return nil, err
        }
        calls = append(calls, *rec)
    }
    return calls, rows.Err()
}

const callColumns = `id, elder_id, setting_id, called_at, start_time, end_time, call_status, responded, transcript,
    sleep_start, sleep_end, health_status, psych_status, health_details, psych_details, ai_comment, extraction_json`

type rowScanner interface {
    Scan(dest ...any) error
}

func scanCall(row rowScanner) (*model.CallRecord, error) {
    var rec model.CallRecord
    var start, end, sleepStart, sleepEnd sql.NullTime
    var status, responded, transcript sql.NullString
    var healthStatus, psychStatus, healthDetails, psychDetails, aiComment, extraction sql.NullString
    err := row.Scan(&rec.ID, &rec.ElderID, &rec.SettingID, &rec.CalledAt, &start, &end,
        &status, &responded, &transcript,
        &sleepStart, &sleepEnd, &healthStatus, &psychStatus, &healthDetails, &psychDetails, &aiComment, &extraction)
    if err != nil {
        return nil, err
    }
    rec.CallStatus = model.CallStatus(status.String)
    rec.Responded = model.ResponseStatus(responded.String)
    rec.Transcript = transcript.String
    if start.Valid {
        rec.StartTime = &start.Time
    }
    if end.Valid {
        rec.EndTime = &end.Time
    }
    if sleepStart.Valid {
        rec.SleepStart = &sleepStart.Time
    }
    if sleepEnd.Valid {
        rec.SleepEnd = &sleepEnd.Time
    }
    if healthStatus.Valid {
        c := model.Condition(healthStatus.String)
        rec.HealthStatus = &c
    }
    if psychStatus.Valid {
        c := model.Condition(psychStatus.String)
        rec.PsychStatus = &c
    }
    if healthDetails.Valid {
        rec.HealthDetails = &healthDetails.String
    }
    if psychDetails.Valid {
        rec.PsychDetails = &psychDetails.String
    }
    if aiComment.Valid {
        rec.AIComment = &aiComment.String
    }
    if extraction.Valid {
        rec.ExtractionJSON = &extraction.String
    }
    return &rec, nil
}

func conditionOrNil(c *model.Condition) any {
    if c == nil {
        return nil
    }
    return string(*c)
}
