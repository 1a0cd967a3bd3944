package store

import (
    "context"
    "database/sql"
    "time"

    "carecall/internal/model"
)

func (s *Store) InsertMeal(ctx context.Context, m *model.MealObservation) error {
    res, err := s.db.ExecContext(ctx, `INSERT INTO meal_observations(call_id, elder_id, meal_type, eaten, summary, recorded_at)
        VALUES(?,?,?,?,?,?)`,
        m.CallID, m.ElderID, string(m.MealType), boolOrNil(m.Eaten), m.Summary, m.RecordedAt)
    if err != nil {
        return err
    }
    m.ID, _ = res.LastInsertId()
    return nil
}

func (s *Store) MealsBetween(ctx context.Context, elderID int64, from, to time.Time) ([]model.MealObservation, error) {
    rows, err := s.db.QueryContext(ctx, `SELECT id, call_id, elder_id, meal_type, eaten, summary, recorded_at
        FROM meal_observations WHERE elder_id=? AND recorded_at >= ? AND recorded_at < ? ORDER BY recorded_at`,
        elderID, from, to)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var meals []model.MealObservation
    for rows.Next() {
        var m model.MealObservation
        var mealType string
        var eaten sql.NullInt64
        var summary sql.NullString
        if err := rows.Scan(&m.ID, &m.CallID, &m.ElderID, &mealType, &eaten, &summary, &m.RecordedAt); err != nil {
            return nil, err
        }
        m.MealType = model.MealType(mealType)
        if eaten.Valid {
            v := eaten.Int64 != 0
            m.Eaten = &v
        }
        m.Summary = summary.String
        meals = append(meals, m)
    }
    return meals, rows.Err()
}

func (s *Store) InsertDose(ctx context.Context, d *model.DoseEvent) error {
    var slot any
    if d.Slot != nil {
        slot = string(*d.Slot)
    }
    res, err := s.db.ExecContext(ctx, `INSERT INTO dose_events(call_id, elder_id, name, schedule_id, slot, status, summary, recorded_at)
        VALUES(?,?,?,?,?,?,?,?)`,
        d.CallID, d.ElderID, d.Name, int64OrNil(d.ScheduleID), slot, string(d.Status), d.Summary, d.RecordedAt)
    if err != nil {
        return err
    }
    d.ID, _ = res.LastInsertId()
    return nil
}

func (s *Store) DosesBetween(ctx context.Context, elderID int64, from, to time.Time) ([]model.DoseEvent, error) {
    rows, err := s.db.QueryContext(ctx, `SELECT id, call_id, elder_id, name, schedule_id, slot, status, summary, recorded_at
        FROM dose_events WHERE elder_id=? AND recorded_at >= ? AND recorded_at < ? ORDER BY recorded_at`,
        elderID, from, to)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var doses []model.DoseEvent
    for rows.Next() {
        var d model.DoseEvent
        var scheduleID sql.NullInt64
        var slot, status, summary sql.NullString
        if err := rows.Scan(&d.ID, &d.CallID, &d.ElderID, &d.Name, &scheduleID, &slot, &status, &summary, &d.RecordedAt); err != nil {
            return nil, err
        }
        if scheduleID.Valid {
            d.ScheduleID = &scheduleID.Int64
        }
        if slot.Valid {
            sl := model.Slot(slot.String)
            d.Slot = &sl
        }
        d.Status = model.TakenStatus(status.String)
        d.Summary = summary.String
        doses = append(doses, d)
    }
    return doses, rows.Err()
}

func (s *Store) InsertBloodSugar(ctx context.Context, b *model.BloodSugarObservation) error {
    var timing, status any
    if b.Timing != nil {
        timing = string(*b.Timing)
    }
    if b.Status != nil {
        status = string(*b.Status)
    }
    res, err := s.db.ExecContext(ctx, `INSERT INTO blood_sugar_observations(call_id, elder_id, value, timing, status, summary, recorded_at)
        VALUES(?,?,?,?,?,?,?)`,
        b.CallID, b.ElderID, b.Value, timing, status, b.Summary, b.RecordedAt)
    if err != nil {
        return err
    }
    b.ID, _ = res.LastInsertId()
    return nil
}

func (s *Store) BloodSugarsBetween(ctx context.Context, elderID int64, from, to time.Time) ([]model.BloodSugarObservation, error) {
    rows, err := s.db.QueryContext(ctx, `SELECT id, call_id, elder_id, value, timing, status, summary, recorded_at
        FROM blood_sugar_observations WHERE elder_id=? AND recorded_at >= ? AND recorded_at < ? ORDER BY recorded_at`,
        elderID, from, to)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var obs []model.BloodSugarObservation
    for rows.Next() {
        var b model.BloodSugarObservation
        var timing, status, summary sql.NullString
        if err := rows.Scan(&b.ID, &b.CallID, &b.ElderID, &b.Value, &timing, &status, &summary, &b.RecordedAt); err != nil {
            return nil, err
        }
        if timing.Valid {
            t := model.BloodSugarTiming(timing.String)
            b.Timing = &t
        }
        if status.Valid {
            st := model.BloodSugarStatus(status.String)
            b.Status = &st
        }
        b.Summary = summary.String
        obs = append(obs, b)
    }
    return obs, rows.Err()
}
