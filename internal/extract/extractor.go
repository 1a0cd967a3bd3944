package extract

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "strings"

    "carecall/internal/llm"
)

// Extractor turns a call transcript into structured health signals.
type Extractor interface {
    Extract(ctx context.Context, req Request) (*Result, error)
}

// LLMExtractor implements Extractor against a chat-completions endpoint.
type LLMExtractor struct {
    client *llm.Client
}

func NewLLMExtractor(client *llm.Client) *LLMExtractor {
    return &LLMExtractor{client: client}
}

func (e *LLMExtractor) Extract(ctx context.Context, req Request) (*Result, error) {
    if e.client == nil {
        return nil, errors.New("extraction disabled")
    }
    content, err := e.client.Complete(ctx, systemPrompt, buildUserPrompt(req))
    if err != nil {
        return nil, err
    }
    return Parse(content)
}

const systemPrompt = `당신은 어르신 안부 전화 통화 내용을 분석하는 보조자입니다.
Return STRICT JSON ONLY with keys: mealData, sleepData, psychologicalState, psychologicalStatus, healthSigns, healthStatus, bloodSugarData, medicationData.
Rules:
- mealData is null or {mealType, mealEatenStatus, mealSummary}; mealType is 아침/점심/저녁; mealEatenStatus is 섭취함/섭취하지 않음
- sleepData is null or {sleepStartTime, sleepEndTime, totalSleepTime}; times are "HH:mm" clock strings
- psychologicalState and healthSigns are string arrays; empty when nothing was said
- psychologicalStatus and healthStatus are 좋음, 나쁨 or null
- bloodSugarData items: {measurementTime: 아침/점심/저녁, mealTime: 식전/식후, bloodSugarValue: number, status: 정상/고혈당/저혈당}
- medicationData items: {medicationType, taken: 복용함/복용하지 않음, takenTime: 아침/점심/저녁}
- medicationType must be one of the provided medication names
- no invented facts; use ONLY the transcript`

func buildUserPrompt(req Request) string {
    var b strings.Builder
    b.WriteString("통화 날짜: ")
    b.WriteString(req.CallDate)
    b.WriteString("\n복용 중인 약: ")
    if len(req.MedicationNames) == 0 {
        b.WriteString("없음")
    } else {
        b.WriteString(strings.Join(req.MedicationNames, ", "))
    }
    b.WriteString("\n통화 내용:\n")
    b.WriteString(req.TranscriptionText)
    return b.String()
}

var resultKeys = []string{
    "mealData", "sleepData", "psychologicalState", "psychologicalStatus",
    "healthSigns", "healthStatus", "bloodSugarData", "medicationData",
}

// Parse validates the response envelope strictly: every contract key must be
// present and no extra keys are tolerated. Vocabulary inside the sections is
// deliberately not validated here; unmapped labels degrade to "no signal"
// downstream instead of failing the whole extraction.
func Parse(content string) (*Result, error) {
    obj := llm.ExtractJSONObject(content)
    if obj == "" {
        return nil, errors.New("no json object found")
    }
    var raw map[string]json.RawMessage
    if err := json.Unmarshal([]byte(obj), &raw); err != nil {
        return nil, err
    }
    allowed := map[string]struct{}{}
    for _, key := range resultKeys {
        allowed[key] = struct{}{}
    }
    for key := range raw {
        if _, ok := allowed[key]; !ok {
            return nil, fmt.Errorf("unexpected key %q", key)
        }
    }
    for _, key := range resultKeys {
        if _, ok := raw[key]; !ok {
            return nil, fmt.Errorf("missing key %q", key)
        }
    }
    var out Result
    if err := json.Unmarshal([]byte(obj), &out); err != nil {
        return nil, err
    }
    return &out, nil
}
