package store

import (
    "context"
    "database/sql"
    "encoding/json"
    "time"

    "carecall/internal/model"
)

// UpsertDailyRollup writes the (elder, date) summary. Concurrent writers for
// the same pair race harmlessly: the unique key collapses them into one row
// and the conflict clause keeps the newest computation.
func (s *Store) UpsertDailyRollup(ctx context.Context, r *model.DailyRollup) error {
    medsJSON, err := json.Marshal(r.Medications)
    if err != nil {
        return err
    }
    r.UpdatedAt = time.Now().UTC()
    _, err = s.db.ExecContext(ctx, `INSERT INTO daily_rollups(
        elder_id, date, medication_total_goal, medication_total_taken, medications_json,
        breakfast, lunch, dinner, avg_sleep_minutes, avg_blood_sugar,
        health_status, mental_status, ai_summary, updated_at)
        VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)
        ON CONFLICT(elder_id, date) DO UPDATE SET
            medication_total_goal=excluded.medication_total_goal,
            medication_total_taken=excluded.medication_total_taken,
            medications_json=excluded.medications_json,
            breakfast=excluded.breakfast,
            lunch=excluded.lunch,
            dinner=excluded.dinner,
            avg_sleep_minutes=excluded.avg_sleep_minutes,
            avg_blood_sugar=excluded.avg_blood_sugar,
            health_status=excluded.health_status,
            mental_status=excluded.mental_status,
            ai_summary=excluded.ai_summary,
            updated_at=excluded.updated_at`,
        r.ElderID, dateKey(r.Date), r.MedicationTotalGoal, r.MedicationTotalTaken, string(medsJSON),
        boolOrNil(r.Breakfast), boolOrNil(r.Lunch), boolOrNil(r.Dinner),
        intOrNil(r.AvgSleepMinutes), intOrNil(r.AvgBloodSugar),
        conditionOrNil(r.HealthStatus), conditionOrNil(r.MentalStatus),
        nullableString(r.AISummary), r.UpdatedAt)
    return err
}

func (s *Store) DailyRollup(ctx context.Context, elderID int64, date time.Time) (*model.DailyRollup, error) {
    row := s.db.QueryRowContext(ctx, `SELECT `+dailyColumns+` FROM daily_rollups WHERE elder_id=? AND date=?`,
        elderID, dateKey(date))
    r, err := scanDaily(row)
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    return r, err
}

// DailyRollupsBetween lists rollups with date in [from, to], inclusive.
func (s *Store) DailyRollupsBetween(ctx context.Context, elderID int64, from, to time.Time) ([]model.DailyRollup, error) {
    rows, err := s.db.QueryContext(ctx, `SELECT `+dailyColumns+` FROM daily_rollups
        WHERE elder_id=? AND date >= ? AND date <= ? ORDER BY date`,
        elderID, dateKey(from), dateKey(to))
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.DailyRollup
    for rows.Next() {
        r, err := scanDaily(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *r)
    }
    return out, rows.Err()
}

const dailyColumns = `id, elder_id, date, medication_total_goal, medication_total_taken, medications_json,
    breakfast, lunch, dinner, avg_sleep_minutes, avg_blood_sugar, health_status, mental_status, ai_summary, updated_at`

func scanDaily(row rowScanner) (*model.DailyRollup, error) {
    var r model.DailyRollup
    var date string
    var medsJSON, healthStatus, mentalStatus, summary sql.NullString
    var breakfast, lunch, dinner, sleep, sugar sql.NullInt64
    err := row.Scan(&r.ID, &r.ElderID, &date, &r.MedicationTotalGoal, &r.MedicationTotalTaken, &medsJSON,
        &breakfast, &lunch, &dinner, &sleep, &sugar, &healthStatus, &mentalStatus, &summary, &r.UpdatedAt)
    if err != nil {
        return nil, err
    }
    r.Date = parseDateKey(date)
    if medsJSON.Valid && medsJSON.String != "" {
        if err := json.Unmarshal([]byte(medsJSON.String), &r.Medications); err != nil {
            return nil, err
        }
    }
    r.Breakfast = nullBool(breakfast)
    r.Lunch = nullBool(lunch)
    r.Dinner = nullBool(dinner)
    r.AvgSleepMinutes = nullInt(sleep)
    r.AvgBloodSugar = nullInt(sugar)
    if healthStatus.Valid {
        c := model.Condition(healthStatus.String)
        r.HealthStatus = &c
    }
    if mentalStatus.Valid {
        c := model.Condition(mentalStatus.String)
        r.MentalStatus = &c
    }
    r.AISummary = summary.String
    return &r, nil
}

// UpsertWeeklyRollup writes the (elder, week-start) summary under the same
// conflict discipline as the daily upsert.
func (s *Store) UpsertWeeklyRollup(ctx context.Context, r *model.WeeklyRollup) error {
    medJSON, err := json.Marshal(r.MedicationByType)
    if err != nil {
        return err
    }
    r.UpdatedAt = time.Now().UTC()
    _, err = s.db.ExecContext(ctx, `INSERT INTO weekly_rollups(
        elder_id, start_date, end_date,
        breakfast_count, lunch_count, dinner_count, meal_goal_count,
        medication_json, medication_taken_count, medication_goal_count, medication_missed_count, medication_scheduled_count,
        avg_sleep_minutes, psych_good_count, psych_normal_count, psych_bad_count,
        health_signals, missed_calls,
        bs_before_normal, bs_before_high, bs_before_low,
        bs_after_normal, bs_after_high, bs_after_low,
        meal_rate_percent, medication_rate_percent, health_summary, updated_at)
        VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
        ON CONFLICT(elder_id, start_date) DO UPDATE SET
            end_date=excluded.end_date,
            breakfast_count=excluded.breakfast_count,
            lunch_count=excluded.lunch_count,
            dinner_count=excluded.dinner_count,
            meal_goal_count=excluded.meal_goal_count,
            medication_json=excluded.medication_json,
            medication_taken_count=excluded.medication_taken_count,
            medication_goal_count=excluded.medication_goal_count,
            medication_missed_count=excluded.medication_missed_count,
            medication_scheduled_count=excluded.medication_scheduled_count,
            avg_sleep_minutes=excluded.avg_sleep_minutes,
            psych_good_count=excluded.psych_good_count,
            psych_normal_count=excluded.psych_normal_count,
            psych_bad_count=excluded.psych_bad_count,
            health_signals=excluded.health_signals,
            missed_calls=excluded.missed_calls,
            bs_before_normal=excluded.bs_before_normal,
            bs_before_high=excluded.bs_before_high,
            bs_before_low=excluded.bs_before_low,
            bs_after_normal=excluded.bs_after_normal,
            bs_after_high=excluded.bs_after_high,
            bs_after_low=excluded.bs_after_low,
            meal_rate_percent=excluded.meal_rate_percent,
            medication_rate_percent=excluded.medication_rate_percent,
            health_summary=excluded.health_summary,
            updated_at=excluded.updated_at`,
        r.ElderID, dateKey(r.StartDate), dateKey(r.EndDate),
        r.BreakfastCount, r.LunchCount, r.DinnerCount, r.MealGoalCount,
        string(medJSON), r.MedicationTakenCount, r.MedicationGoalCount, r.MedicationMissedCount, r.MedicationScheduledCount,
        intOrNil(r.AvgSleepMinutes), r.PsychGoodCount, r.PsychNormalCount, r.PsychBadCount,
        r.HealthSignals, r.MissedCalls,
        r.BeforeMealBloodSugar.Normal, r.BeforeMealBloodSugar.High, r.BeforeMealBloodSugar.Low,
        r.AfterMealBloodSugar.Normal, r.AfterMealBloodSugar.High, r.AfterMealBloodSugar.Low,
        r.MealRatePercent, r.MedicationRatePercent, nullableString(r.HealthSummary), r.UpdatedAt)
    return err
}

func (s *Store) WeeklyRollup(ctx context.Context, elderID int64, startDate time.Time) (*model.WeeklyRollup, error) {
    row := s.db.QueryRowContext(ctx, `SELECT id, elder_id, start_date, end_date,
        breakfast_count, lunch_count, dinner_count, meal_goal_count,
        medication_json, medication_taken_count, medication_goal_count, medication_missed_count, medication_scheduled_count,
        avg_sleep_minutes, psych_good_count, psych_normal_count, psych_bad_count,
        health_signals, missed_calls,
        bs_before_normal, bs_before_high, bs_before_low,
        bs_after_normal, bs_after_high, bs_after_low,
        meal_rate_percent, medication_rate_percent, health_summary, updated_at
        FROM weekly_rollups WHERE elder_id=? AND start_date=?`, elderID, dateKey(startDate))
    var r model.WeeklyRollup
    var start, end string
    var medJSON, summary sql.NullString
    var sleep sql.NullInt64
    err := row.Scan(&r.ID, &r.ElderID, &start, &end,
        &r.BreakfastCount, &r.LunchCount, &r.DinnerCount, &r.MealGoalCount,
        &medJSON, &r.MedicationTakenCount, &r.MedicationGoalCount, &r.MedicationMissedCount, &r.MedicationScheduledCount,
        &sleep, &r.PsychGoodCount, &r.PsychNormalCount, &r.PsychBadCount,
        &r.HealthSignals, &r.MissedCalls,
        &r.BeforeMealBloodSugar.Normal, &r.BeforeMealBloodSugar.High, &r.BeforeMealBloodSugar.Low,
        &r.AfterMealBloodSugar.Normal, &r.AfterMealBloodSugar.High, &r.AfterMealBloodSugar.Low,
        &r.MealRatePercent, &r.MedicationRatePercent, &summary, &r.UpdatedAt)
    switch err {
    case nil:
    case sql.ErrNoRows:
        return nil, ErrNotFound
    default:
        return nil, err
    }
    r.StartDate = parseDateKey(start)
    r.EndDate = parseDateKey(end)
    if medJSON.Valid && medJSON.String != "" {
        if err := json.Unmarshal([]byte(medJSON.String), &r.MedicationByType); err != nil {
            return nil, err
        }
    }
    r.AvgSleepMinutes = nullInt(sleep)
    r.HealthSummary = summary.String
    return &r, nil
}

// IncrementMissedCalls bumps the missed-call counter for the week containing
// the given start date, creating the row when the week has no rollup yet.
func (s *Store) IncrementMissedCalls(ctx context.Context, elderID int64, startDate, endDate time.Time) error {
    _, err := s.db.ExecContext(ctx, `INSERT INTO weekly_rollups(elder_id, start_date, end_date, missed_calls, updated_at)
        VALUES(?,?,?,1,?)
        ON CONFLICT(elder_id, start_date) DO UPDATE SET
            missed_calls=weekly_rollups.missed_calls+1,
            updated_at=excluded.updated_at`,
        elderID, dateKey(startDate), dateKey(endDate), time.Now().UTC())
    return err
}

func nullBool(v sql.NullInt64) *bool {
    if !v.Valid {
        return nil
    }
    b := v.Int64 != 0
    return &b
}

func nullInt(v sql.NullInt64) *int {
    if !v.Valid {
        return nil
    }
    n := int(v.Int64)
    return &n
}
