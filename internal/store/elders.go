package store

import (
    "context"
    "database/sql"
    "time"

    "carecall/internal/model"
)

func (s *Store) CreateElder(ctx context.Context, name, phone string, ts time.Time) (*model.Elder, error) {
    res, err := s.db.ExecContext(ctx, `INSERT INTO elders(name, phone, created_at) VALUES(?,?,?)`, name, phone, ts)
    if err != nil {
        return nil, err
    }
    id, _ := res.LastInsertId()
    return &model.Elder{ID: id, Name: name, Phone: phone, CreatedAt: ts}, nil
}

func (s *Store) GetElder(ctx context.Context, id int64) (*model.Elder, error) {
    row := s.db.QueryRowContext(ctx, `SELECT id, name, phone, created_at FROM elders WHERE id=?`, id)
    var e model.Elder
    var phone sql.NullString
    switch err := row.Scan(&e.ID, &e.Name, &phone, &e.CreatedAt); err {
    case nil:
        e.Phone = phone.String
        return &e, nil
    case sql.ErrNoRows:
        return nil, ErrNotFound
    default:
        return nil, err
    }
}

func (s *Store) ListElders(ctx context.Context) ([]model.Elder, error) {
    rows, err := s.db.QueryContext(ctx, `SELECT id, name, phone, created_at FROM elders ORDER BY id`)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var elders []model.Elder
    for rows.Next() {
        var e model.Elder
        var phone sql.NullString
        if err := rows.Scan(&e.ID, &e.Name, &phone, &e.CreatedAt); err != nil {
            return nil, err
        }
        e.Phone = phone.String
        elders = append(elders, e)
    }
    return elders, rows.Err()
}

func (s *Store) CreateSetting(ctx context.Context, setting *model.CareCallSetting) (*model.CareCallSetting, error) {
    res, err := s.db.ExecContext(ctx, `INSERT INTO care_call_settings(elder_id, first_call_time, second_call_time, third_call_time) VALUES(?,?,?,?)`,
        setting.ElderID, setting.FirstCallTime, stringOrNil(setting.SecondCallTime), stringOrNil(setting.ThirdCallTime))
    if err != nil {
        return nil, err
    }
    id, _ := res.LastInsertId()
    setting.ID = id
    return setting, nil
}

func (s *Store) GetSetting(ctx context.Context, id int64) (*model.CareCallSetting, error) {
    row := s.db.QueryRowContext(ctx, `SELECT id, elder_id, first_call_time, second_call_time, third_call_time FROM care_call_settings WHERE id=?`, id)
    return scanSetting(row)
}

// SettingByElder returns the elder's call setting. Each elder has at most one.
func (s *Store) SettingByElder(ctx context.Context, elderID int64) (*model.CareCallSetting, error) {
    row := s.db.QueryRowContext(ctx, `SELECT id, elder_id, first_call_time, second_call_time, third_call_time FROM care_call_settings WHERE elder_id=? ORDER BY id DESC LIMIT 1`, elderID)
    return scanSetting(row)
}

func scanSetting(row *sql.Row) (*model.CareCallSetting, error) {
    var cs model.CareCallSetting
    var second, third sql.NullString
    switch err := row.Scan(&cs.ID, &cs.ElderID, &cs.FirstCallTime, &second, &third); err {
    case nil:
        if second.Valid {
            cs.SecondCallTime = &second.String
        }
        if third.Valid {
            cs.ThirdCallTime = &third.String
        }
        return &cs, nil
    case sql.ErrNoRows:
        return nil, ErrNotFound
    default:
        return nil, err
    }
}

func (s *Store) CreateSchedule(ctx context.Context, schedule *model.MedicationSchedule) (*model.MedicationSchedule, error) {
    res, err := s.db.ExecContext(ctx, `INSERT INTO medication_schedules(elder_id, name, slot) VALUES(?,?,?)`,
        schedule.ElderID, schedule.Name, string(schedule.Slot))
    if err != nil {
        return nil, err
    }
    id, _ := res.LastInsertId()
    schedule.ID = id
    return schedule, nil
}

func (s *Store) SchedulesByElder(ctx context.Context, elderID int64) ([]model.MedicationSchedule, error) {
    rows, err := s.db.QueryContext(ctx, `SELECT id, elder_id, name, slot FROM medication_schedules WHERE elder_id=? ORDER BY id`, elderID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var schedules []model.MedicationSchedule
    for rows.Next() {
        var m model.MedicationSchedule
        var slot string
        if err := rows.Scan(&m.ID, &m.ElderID, &m.Name, &slot); err != nil {
            return nil, err
        }
        m.Slot = model.Slot(slot)
        schedules = append(schedules, m)
    }
    return schedules, rows.Err()
}
