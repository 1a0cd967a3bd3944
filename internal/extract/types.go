package extract

// Request is what the extraction service is asked to analyze.
type Request struct {
    TranscriptionText string   `json:"transcriptionText"`
    CallDate          string   `json:"callDate"`
    MedicationNames   []string `json:"medicationNames"`
}

// MealData is the per-call meal section. Nil when the call said nothing
// about food.
type MealData struct {
    MealType        string `json:"mealType"`
    MealEatenStatus string `json:"mealEatenStatus"`
    MealSummary     string `json:"mealSummary"`
}

// SleepData carries clock-only times; the caller anchors them to the call
// date.
type SleepData struct {
    SleepStartTime string `json:"sleepStartTime"`
    SleepEndTime   string `json:"sleepEndTime"`
    TotalSleepTime string `json:"totalSleepTime"`
}

type BloodSugarItem struct {
    MeasurementTime string `json:"measurementTime"` // 아침/점심/저녁
    MealTime        string `json:"mealTime"`        // 식전/식후
    BloodSugarValue *int   `json:"bloodSugarValue"`
    Status          string `json:"status"`
}

type MedicationItem struct {
    MedicationType string `json:"medicationType"`
    Taken          string `json:"taken"`
    TakenTime      string `json:"takenTime"`
}

// Result is the full extraction response. Sections are independent; any of
// them may be absent for a given call.
type Result struct {
    MealData            *MealData        `json:"mealData"`
    SleepData           *SleepData       `json:"sleepData"`
    PsychologicalState  []string         `json:"psychologicalState"`
    PsychologicalStatus *string          `json:"psychologicalStatus"`
    HealthSigns         []string         `json:"healthSigns"`
    HealthStatus        *string          `json:"healthStatus"`
    BloodSugarData      []BloodSugarItem `json:"bloodSugarData"`
    MedicationData      []MedicationItem `json:"medicationData"`
}
