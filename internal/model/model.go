package model

import "time"

// Elder is a monitored individual.
type Elder struct {
    ID        int64
    Name      string
    Phone     string
    CreatedAt time.Time
}

// CareCallSetting holds an elder's configured call boundaries ("HH:MM" clock
// strings). Second and third are optional; a missing boundary means that slot
// is not called at all.
type CareCallSetting struct {
    ID             int64
    ElderID        int64
    FirstCallTime  string
    SecondCallTime *string
    ThirdCallTime  *string
}

// MedicationSchedule is one prescribed regimen row: a drug at one slot.
// Drugs taken at multiple slots have multiple rows.
type MedicationSchedule struct {
    ID      int64
    ElderID int64
    Name    string
    Slot    Slot
}

// CallRecord is one finished phone call plus the derived fields the analysis
// pass fills in over time. Derived fields are optional; readers must tolerate
// partial population.
type CallRecord struct {
    ID         int64
    ElderID    int64
    SettingID  int64
    CalledAt   time.Time
    StartTime  *time.Time
    EndTime    *time.Time
    CallStatus CallStatus
    Responded  ResponseStatus
    Transcript string

    SleepStart     *time.Time
    SleepEnd       *time.Time
    HealthStatus   *Condition
    PsychStatus    *Condition
    HealthDetails  *string
    PsychDetails   *string
    AIComment      *string
    ExtractionJSON *string
}

// CallDate is the calendar date the statistics pipeline attributes the call to.
func (r CallRecord) CallDate() time.Time {
    base := r.CalledAt
    if r.StartTime != nil {
        base = *r.StartTime
    }
    return time.Date(base.Year(), base.Month(), base.Day(), 0, 0, 0, 0, base.Location())
}

// SleepMinutes returns the sleep duration in minutes, or false when either
// endpoint is missing.
func (r CallRecord) SleepMinutes() (int, bool) {
    if r.SleepStart == nil || r.SleepEnd == nil {
        return 0, false
    }
    return int(r.SleepEnd.Sub(*r.SleepStart).Minutes()), true
}

// The With* builders below return a modified copy and never touch any other
// field, so independent writers in one analysis pass cannot clobber each
// other's work.

func (r CallRecord) WithSleep(start, end *time.Time) CallRecord {
    if start != nil {
        r.SleepStart = start
    }
    if end != nil {
        r.SleepEnd = end
    }
    return r
}

func (r CallRecord) WithPsych(status Condition, details string) CallRecord {
    r.PsychStatus = &status
    r.PsychDetails = &details
    return r
}

func (r CallRecord) WithHealth(status Condition, details string) CallRecord {
    r.HealthStatus = &status
    r.HealthDetails = &details
    return r
}

func (r CallRecord) WithAIComment(comment *string, extractionJSON string) CallRecord {
    r.AIComment = comment
    r.ExtractionJSON = &extractionJSON
    return r
}

// MealObservation is one extracted meal signal tied to a call.
type MealObservation struct {
    ID         int64
    CallID     int64
    ElderID    int64
    MealType   MealType
    Eaten      *bool
    Summary    string
    RecordedAt time.Time
}

// DoseEvent is one observed medication-dose outcome tied to a call. The
// schedule reference is optional: a dose reported outside the prescribed
// regimen is still persisted.
type DoseEvent struct {
    ID         int64
    CallID     int64
    ElderID    int64
    Name       string
    ScheduleID *int64
    Slot       *Slot
    Status     TakenStatus
    Summary    string
    RecordedAt time.Time
}

// BloodSugarObservation is one extracted blood-sugar measurement.
type BloodSugarObservation struct {
    ID         int64
    CallID     int64
    ElderID    int64
    Value      int
    Timing     *BloodSugarTiming
    Status     *BloodSugarStatus
    Summary    string
    RecordedAt time.Time
}

// DoseStatus is one slot's outcome in the per-drug daily breakdown.
// Taken is nil when the slot had no matching dose event or the outcome was
// unknown.
type DoseStatus struct {
    Slot  Slot  `json:"slot"`
    Taken *bool `json:"taken"`
}

// MedicationBreakdown is the per-drug daily summary shown on report screens.
type MedicationBreakdown struct {
    Type      string       `json:"type"`
    Scheduled int          `json:"scheduled"`
    Goal      int          `json:"goal"`
    Taken     int          `json:"taken"`
    Doses     []DoseStatus `json:"doses"`
}

// DailyRollup is the derived per-(elder, date) summary. At most one row per
// pair; owned exclusively by the daily aggregator.
type DailyRollup struct {
    ID                   int64
    ElderID              int64
    Date                 time.Time
    MedicationTotalGoal  int
    MedicationTotalTaken int
    Medications          []MedicationBreakdown
    Breakfast            *bool
    Lunch                *bool
    Dinner               *bool
    AvgSleepMinutes      *int
    AvgBloodSugar        *int
    HealthStatus         *Condition
    MentalStatus         *Condition
    AISummary            string
    UpdatedAt            time.Time
}

// MedicationTypeStats accumulates one drug's weekly counts.
type MedicationTypeStats struct {
    Taken     int `json:"taken"`
    Goal      int `json:"goal"`
    Scheduled int `json:"scheduled"`
}

// BloodSugarTally counts classified measurements for one timing bucket.
type BloodSugarTally struct {
    Normal int `json:"normal"`
    High   int `json:"high"`
    Low    int `json:"low"`
}

// WeeklyRollup is the derived per-(elder, week) summary. At most one row per
// (elder, start date); owned exclusively by the weekly aggregator.
type WeeklyRollup struct {
    ID        int64
    ElderID   int64
    StartDate time.Time
    EndDate   time.Time

    BreakfastCount int
    LunchCount     int
    DinnerCount    int
    MealGoalCount  int

    MedicationByType         map[string]MedicationTypeStats
    MedicationTakenCount     int
    MedicationGoalCount      int
    MedicationMissedCount    int
    MedicationScheduledCount int

    AvgSleepMinutes *int

    PsychGoodCount   int
    PsychNormalCount int
    PsychBadCount    int

    HealthSignals int
    MissedCalls   int

    BeforeMealBloodSugar BloodSugarTally
    AfterMealBloodSugar  BloodSugarTally

    MealRatePercent       int
    MedicationRatePercent int
    HealthSummary         string
    UpdatedAt             time.Time
}
