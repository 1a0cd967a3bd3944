package store

import (
    "context"
    "database/sql"
    "errors"
    "strings"
    "time"

    _ "modernc.org/sqlite"
)

// Store wraps SQLite access for call records, extracted signals, rollups and
// the analysis task outbox.
type Store struct {
    db *sql.DB
}

// ErrNotFound marks a missing elder, setting or record.
var ErrNotFound = errors.New("not found")

func Open(path string) (*Store, error) {
    db, err := sql.Open("sqlite", path)
    if err != nil {
        return nil, err
    }
    if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
        _ = db.Close()
        return nil, err
    }
    if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
        _ = db.Close()
        return nil, err
    }
    s := &Store{db: db}
    if err := s.migrate(); err != nil {
        _ = db.Close()
        return nil, err
    }
    return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Health reports whether the database is reachable.
func (s *Store) Health(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) migrate() error {
    stmts := []string{
        `CREATE TABLE IF NOT EXISTS elders (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            phone TEXT,
            created_at TIMESTAMP
        );`,
        `CREATE TABLE IF NOT EXISTS care_call_settings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            elder_id INTEGER NOT NULL,
            first_call_time TEXT NOT NULL,
            second_call_time TEXT,
            third_call_time TEXT
        );`,
        `CREATE TABLE IF NOT EXISTS medication_schedules (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            elder_id INTEGER NOT NULL,
            name TEXT NOT NULL,
            slot TEXT NOT NULL
        );`,
        `CREATE TABLE IF NOT EXISTS call_records (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            elder_id INTEGER NOT NULL,
            setting_id INTEGER NOT NULL,
            called_at TIMESTAMP NOT NULL,
            start_time TIMESTAMP,
            end_time TIMESTAMP,
            call_status TEXT,
            responded TEXT,
            transcript TEXT,
            sleep_start TIMESTAMP,
            sleep_end TIMESTAMP,
            health_status TEXT,
            psych_status TEXT,
            health_details TEXT,
            psych_details TEXT,
            ai_comment TEXT,
            extraction_json TEXT,
            created_at TIMESTAMP,
            updated_at TIMESTAMP
        );`,
        `CREATE INDEX IF NOT EXISTS idx_call_records_elder_called ON call_records(elder_id, called_at);`,
        `CREATE TABLE IF NOT EXISTS meal_observations (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            call_id INTEGER NOT NULL,
            elder_id INTEGER NOT NULL,
            meal_type TEXT NOT NULL,
            eaten INTEGER,
            summary TEXT,
            recorded_at TIMESTAMP
        );`,
        `CREATE TABLE IF NOT EXISTS dose_events (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            call_id INTEGER NOT NULL,
            elder_id INTEGER NOT NULL,
            name TEXT NOT NULL,
            schedule_id INTEGER,
            slot TEXT,
            status TEXT NOT NULL,
            summary TEXT,
            recorded_at TIMESTAMP
        );`,
        `CREATE TABLE IF NOT EXISTS blood_sugar_observations (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            call_id INTEGER NOT NULL,
            elder_id INTEGER NOT NULL,
            value INTEGER NOT NULL,
            timing TEXT,
            status TEXT,
            summary TEXT,
            recorded_at TIMESTAMP
        );`,
        `CREATE TABLE IF NOT EXISTS daily_rollups (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            elder_id INTEGER NOT NULL,
            date TEXT NOT NULL,
            medication_total_goal INTEGER NOT NULL DEFAULT 0,
            medication_total_taken INTEGER NOT NULL DEFAULT 0,
            medications_json TEXT,
            breakfast INTEGER,
            lunch INTEGER,
            dinner INTEGER,
            avg_sleep_minutes INTEGER,
            avg_blood_sugar INTEGER,
            health_status TEXT,
            mental_status TEXT,
            ai_summary TEXT,
            updated_at TIMESTAMP,
            UNIQUE(elder_id, date)
        );`,
        `CREATE TABLE IF NOT EXISTS weekly_rollups (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            elder_id INTEGER NOT NULL,
            start_date TEXT NOT NULL,
            end_date TEXT NOT NULL,
            breakfast_count INTEGER NOT NULL DEFAULT 0,
            lunch_count INTEGER NOT NULL DEFAULT 0,
            dinner_count INTEGER NOT NULL DEFAULT 0,
            meal_goal_count INTEGER NOT NULL DEFAULT 0,
            medication_json TEXT,
            medication_taken_count INTEGER NOT NULL DEFAULT 0,
            medication_goal_count INTEGER NOT NULL DEFAULT 0,
            medication_missed_count INTEGER NOT NULL DEFAULT 0,
            medication_scheduled_count INTEGER NOT NULL DEFAULT 0,
            avg_sleep_minutes INTEGER,
            psych_good_count INTEGER NOT NULL DEFAULT 0,
            psych_normal_count INTEGER NOT NULL DEFAULT 0,
            psych_bad_count INTEGER NOT NULL DEFAULT 0,
            health_signals INTEGER NOT NULL DEFAULT 0,
            missed_calls INTEGER NOT NULL DEFAULT 0,
            bs_before_normal INTEGER NOT NULL DEFAULT 0,
            bs_before_high INTEGER NOT NULL DEFAULT 0,
            bs_before_low INTEGER NOT NULL DEFAULT 0,
            bs_after_normal INTEGER NOT NULL DEFAULT 0,
            bs_after_high INTEGER NOT NULL DEFAULT 0,
            bs_after_low INTEGER NOT NULL DEFAULT 0,
            meal_rate_percent INTEGER NOT NULL DEFAULT 0,
            medication_rate_percent INTEGER NOT NULL DEFAULT 0,
            health_summary TEXT,
            updated_at TIMESTAMP,
            UNIQUE(elder_id, start_date)
        );`,
        `CREATE TABLE IF NOT EXISTS call_tasks (
            id TEXT PRIMARY KEY,
            kind TEXT NOT NULL,
            call_id INTEGER NOT NULL,
            status TEXT NOT NULL,
            attempts INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at TIMESTAMP,
            updated_at TIMESTAMP
        );`,
        `CREATE INDEX IF NOT EXISTS idx_call_tasks_status ON call_tasks(status, created_at);`,
        `CREATE TABLE IF NOT EXISTS analysis_events (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            call_id INTEGER NOT NULL,
            kind TEXT NOT NULL,
            created_at TIMESTAMP
        );`,
    }
    for _, stmt := range stmts {
        if _, err := s.db.Exec(stmt); err != nil {
            return err
        }
    }
    return nil
}

// dateKey is the canonical TEXT form for calendar dates.
func dateKey(t time.Time) string { return t.Format("2006-01-02") }

func parseDateKey(s string) time.Time {
    t, _ := time.Parse("2006-01-02", s)
    return t
}

func nullableString(value string) any {
    value = strings.TrimSpace(value)
    if value == "" {
        return nil
    }
    return value
}

func stringOrNil(p *string) any {
    if p == nil {
        return nil
    }
    return *p
}

func timeOrNil(p *time.Time) any {
    if p == nil {
        return nil
    }
    return *p
}

func intOrNil(p *int) any {
    if p == nil {
        return nil
    }
    return *p
}

func int64OrNil(p *int64) any {
    if p == nil {
        return nil
    }
    return *p
}

func boolOrNil(p *bool) any {
    if p == nil {
        return nil
    }
    if *p {
        return 1
    }
    return 0
}
