package model

import "strings"

// CallStatus is the normalized outcome reported by the call provider.
type CallStatus string

const (
    CallCompleted CallStatus = "completed"
    CallFailed    CallStatus = "failed"
    CallBusy      CallStatus = "busy"
    CallNoAnswer  CallStatus = "no-answer"
)

func (s CallStatus) Valid() bool {
    switch s {
    case CallCompleted, CallFailed, CallBusy, CallNoAnswer:
        return true
    }
    return false
}

// Matches reports whether a raw provider status string equals this status.
func (s CallStatus) Matches(raw string) bool {
    return raw != "" && strings.EqualFold(raw, string(s))
}

// ResponseStatus records whether the elder picked up.
type ResponseStatus string

const (
    Responded    ResponseStatus = "responded"
    NotResponded ResponseStatus = "not-responded"
)

// ResponseStatusFromValue maps the provider's 0|1 flag.
func ResponseStatusFromValue(v int) (ResponseStatus, bool) {
    switch v {
    case 1:
        return Responded, true
    case 0:
        return NotResponded, true
    }
    return "", false
}

// Slot is a care-call / medication time slot.
type Slot string

const (
    SlotMorning Slot = "MORNING"
    SlotLunch   Slot = "LUNCH"
    SlotDinner  Slot = "DINNER"
)

// AllSlots in day order.
var AllSlots = []Slot{SlotMorning, SlotLunch, SlotDinner}

// SlotFromLabel maps the extraction model's time-of-day label to a slot.
// The model answers in Korean; the ASCII forms are accepted for parity with
// the interface contract.
func SlotFromLabel(label string) (Slot, bool) {
    switch strings.ToLower(strings.TrimSpace(label)) {
    case "아침", "morning":
        return SlotMorning, true
    case "점심", "lunch":
        return SlotLunch, true
    case "저녁", "dinner":
        return SlotDinner, true
    }
    return "", false
}

// MealType classifies a meal observation.
type MealType string

const (
    MealBreakfast MealType = "BREAKFAST"
    MealLunch     MealType = "LUNCH"
    MealDinner    MealType = "DINNER"
)

func MealTypeFromLabel(label string) (MealType, bool) {
    switch strings.ToLower(strings.TrimSpace(label)) {
    case "아침", "breakfast":
        return MealBreakfast, true
    case "점심", "lunch":
        return MealLunch, true
    case "저녁", "dinner":
        return MealDinner, true
    }
    return "", false
}

// EatenFromLabel maps the extraction model's eaten-status label.
// nil means the model could not determine whether the meal happened.
func EatenFromLabel(label string) *bool {
    switch strings.TrimSpace(label) {
    case "섭취함", "eaten":
        return boolPtr(true)
    case "섭취하지 않음", "not_eaten":
        return boolPtr(false)
    }
    return nil
}

// TakenStatus is the observed outcome of one medication dose.
type TakenStatus string

const (
    TakenYes     TakenStatus = "TAKEN"
    TakenNo      TakenStatus = "NOT_TAKEN"
    TakenUnknown TakenStatus = "UNKNOWN"
)

// TakenStatusFromLabel maps the extraction label; anything outside the closed
// vocabulary is UNKNOWN, not an error.
func TakenStatusFromLabel(label string) TakenStatus {
    switch strings.TrimSpace(label) {
    case "복용함", "taken":
        return TakenYes
    case "복용하지 않음", "not_taken":
        return TakenNo
    }
    return TakenUnknown
}

// BloodSugarTiming distinguishes before/after meal measurements.
type BloodSugarTiming string

const (
    BeforeMeal BloodSugarTiming = "BEFORE_MEAL"
    AfterMeal  BloodSugarTiming = "AFTER_MEAL"
)

func BloodSugarTimingFromLabel(label string) (BloodSugarTiming, bool) {
    switch strings.TrimSpace(label) {
    case "식전", "before_meal":
        return BeforeMeal, true
    case "식후", "after_meal":
        return AfterMeal, true
    }
    return "", false
}

// BloodSugarStatus classifies a measurement value.
type BloodSugarStatus string

const (
    BloodSugarNormal BloodSugarStatus = "NORMAL"
    BloodSugarHigh   BloodSugarStatus = "HIGH"
    BloodSugarLow    BloodSugarStatus = "LOW"
)

func BloodSugarStatusFromLabel(label string) (BloodSugarStatus, bool) {
    switch strings.TrimSpace(label) {
    case "정상", "NORMAL":
        return BloodSugarNormal, true
    case "고혈당", "HIGH":
        return BloodSugarHigh, true
    case "저혈당", "LOW":
        return BloodSugarLow, true
    }
    return "", false
}

// Condition is the coarse good/bad classification used for both health and
// psychological status.
type Condition string

const (
    ConditionGood Condition = "GOOD"
    ConditionBad  Condition = "BAD"
)

// ConditionFromLabel maps the model's literal classification. Unmapped labels
// leave the field untouched upstream.
func ConditionFromLabel(label string) (Condition, bool) {
    switch strings.TrimSpace(label) {
    case "좋음", "good":
        return ConditionGood, true
    case "나쁨", "bad":
        return ConditionBad, true
    }
    return "", false
}

func boolPtr(b bool) *bool { return &b }
