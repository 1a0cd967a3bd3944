package summarize

import (
    "context"
    "fmt"
    "log"
    "strings"

    "github.com/samber/lo"

    "carecall/internal/llm"
    "carecall/internal/model"
)

// Fallback strings returned when the model call fails. Summaries are
// best-effort; callers never see an error from this package.
const (
    homeFallback    = "AI 요약 정보를 불러오는 중 오류가 발생했습니다."
    weeklyFallback  = "주간 건강 데이터 요약 중 오류가 발생했습니다."
    symptomFallback = "증상 분석 코멘트 생성 중 오류가 발생했습니다."
)

// Service produces guardian-facing Korean summaries from rollup data.
type Service struct {
    client *llm.Client
}

func NewService(client *llm.Client) *Service {
    return &Service{client: client}
}

// HomeSummary writes the one-line daily report sentence. A nil client (AI
// disabled) yields an empty summary, not an error.
func (s *Service) HomeSummary(ctx context.Context, r *model.DailyRollup) string {
    if s == nil || s.client == nil {
        return ""
    }
    system := "당신은 어르신 건강 요약 보고서 전문가입니다. 어르신 데이터를 분석하여 보호자에게 필요한 핵심 정보를 45자 이내로 요약 보고해야 합니다."
    out, err := s.client.Complete(ctx, system, buildHomePrompt(r))
    if err != nil {
        log.Printf("summarize: home summary failed: %v", err)
        return homeFallback
    }
    return strings.TrimSpace(out)
}

func buildHomePrompt(r *model.DailyRollup) string {
    meals := strings.Join([]string{
        formatMealStatus(r.Breakfast, "아침"),
        formatMealStatus(r.Lunch, "점심"),
        formatMealStatus(r.Dinner, "저녁"),
    }, ", ")
    sleep := "기록 없음"
    if r.AvgSleepMinutes != nil {
        sleep = fmt.Sprintf("최근 수면 시간: %d시간 %d분", *r.AvgSleepMinutes/60, *r.AvgSleepMinutes%60)
    }
    bloodSugar := "기록 없음"
    if r.AvgBloodSugar != nil {
        bloodSugar = fmt.Sprintf("%d mg/dL", *r.AvgBloodSugar)
    }

    var b strings.Builder
    b.WriteString("다음은 어르신의 현재 건강 상태 데이터입니다. 이 데이터를 바탕으로 보호자가 한눈에 파악할 수 있도록 가장 중요한 내용을 중심으로 45자 이내의 요약 보고서를 작성해주세요.\n\n")
    b.WriteString("[핵심 데이터]\n")
    fmt.Fprintf(&b, "- 식사: %s\n", meals)
    fmt.Fprintf(&b, "- 복약: 오늘 복약 %d/%d\n", r.MedicationTotalTaken, r.MedicationTotalGoal)
    fmt.Fprintf(&b, "- 수면: %s\n", sleep)
    fmt.Fprintf(&b, "- 건강상태: %s\n", formatCondition(r.HealthStatus))
    fmt.Fprintf(&b, "- 심리상태: %s\n", formatCondition(r.MentalStatus))
    fmt.Fprintf(&b, "- 평균 혈당: %s\n", bloodSugar)
    b.WriteString("\n[보고 가이드라인]\n")
    b.WriteString("- '기록되지 않음'은 아직 데이터가 입력되지 않은 상태이므로 '안 했음'으로 해석하지 마세요.\n")
    b.WriteString("- 기록되지 않은 항목이 많으면 '확인이 필요해 보입니다' 정도로만 언급하고, 부정적으로 추정하지 마세요.\n")
    b.WriteString("- 명확히 하지 않은 경우(예: '식사하지 않음')만 우려사항으로 언급하세요.\n")
    b.WriteString("- 복약 횟수가 목표에 실제로 미달한 경우만 중요하게 다루세요.\n")
    b.WriteString("- 긍정적인 내용은 짧게 언급하거나, 부정적인 내용이 없다면 생략해도 좋습니다.\n")
    return b.String()
}

func formatMealStatus(status *bool, mealName string) string {
    if status == nil {
        return mealName + " 기록되지 않음"
    }
    if *status {
        return mealName + " 식사 완료"
    }
    return mealName + " 식사하지 않음"
}

func formatCondition(c *model.Condition) string {
    if c == nil {
        return "기록 없음"
    }
    switch *c {
    case model.ConditionGood:
        return "좋음"
    case model.ConditionBad:
        return "나쁨"
    }
    return string(*c)
}

// SymptomComment turns the day's reported symptoms into one advisory
// sentence. Returns nil when there is nothing to comment on.
func (s *Service) SymptomComment(ctx context.Context, symptoms []string) *string {
    if s == nil || s.client == nil {
        return nil
    }
    cleaned := lo.Uniq(lo.FilterMap(symptoms, func(item string, _ int) (string, bool) {
        item = strings.TrimSpace(item)
        return item, item != ""
    }))
    if len(cleaned) == 0 {
        return nil
    }
    system := "당신은 비의료적 안내 코멘트를 작성하는 전문가입니다. 증상을 종합해 위험 신호 가능성을 부드럽게 알리고, 보호자를 위한 실천적 권고 1가지를 담아 공백 포함 100자 내외 한 문장으로 작성하세요."
    prompt := fmt.Sprintf(`다음은 어르신의 오늘 보고된 증상 목록입니다. 이 증상들을 간단히 묶어 해석하고, 보호자가 바로 취할 수 있는 한 가지 권고를 포함하여 한국어로 공백 포함 100자 내외 한 문장으로 작성해주세요. 의학적 진단 단정은 피하고 존댓말을 사용하세요.

[증상 목록]
%s
`, strings.Join(cleaned, ", "))
    out, err := s.client.Complete(ctx, system, prompt)
    if err != nil {
        log.Printf("summarize: symptom comment failed: %v", err)
        fallback := symptomFallback
        return &fallback
    }
    out = strings.TrimSpace(out)
    return &out
}

// WeeklySummary writes the weekly guardian report paragraph.
func (s *Service) WeeklySummary(ctx context.Context, r *model.WeeklyRollup) string {
    if s == nil || s.client == nil {
        return ""
    }
    system := "당신은 어르신 주간 건강 보고서 전문가입니다. 어르신의 주간 데이터를 분석하여 보호자에게 필요한 핵심 정보를 80자 이상 100자 미만으로 요약 보고해야 합니다."
    out, err := s.client.Complete(ctx, system, buildWeeklyPrompt(r))
    if err != nil {
        log.Printf("summarize: weekly summary failed: %v", err)
        return weeklyFallback
    }
    return strings.TrimSpace(out)
}

func buildWeeklyPrompt(r *model.WeeklyRollup) string {
    mealCount := r.BreakfastCount + r.LunchCount + r.DinnerCount
    sleepHours := "기록 없음"
    if r.AvgSleepMinutes != nil {
        sleepHours = fmt.Sprintf("%.1f시간", float64(*r.AvgSleepMinutes)/60)
    }
    var b strings.Builder
    b.WriteString("다음은 어르신의 한 주간 건강 데이터입니다. 이 데이터를 바탕으로 보호자를 위한 주간 건강 보고서를 작성해주세요.\n")
    b.WriteString("결과는 반드시 공백 포함 80자 이상 100자 미만으로, 존댓말로 작성해주세요.\n\n")
    b.WriteString("[주요 건강 데이터]\n")
    fmt.Fprintf(&b, "- 주간 총 식사 횟수: %d회 (목표 %d끼 기준)\n", mealCount, r.MealGoalCount)
    fmt.Fprintf(&b, "- 식사율: %d%% (목표: 100%%)\n", r.MealRatePercent)
    fmt.Fprintf(&b, "- 평균 수면 시간: %s (권장: 7-8시간)\n", sleepHours)
    fmt.Fprintf(&b, "- 약 복용 횟수: %d회\n", r.MedicationTakenCount)
    fmt.Fprintf(&b, "- 놓친 약 횟수: %d회\n", r.MedicationMissedCount)
    fmt.Fprintf(&b, "- 긍정적 심리 상태: %d회\n", r.PsychGoodCount)
    fmt.Fprintf(&b, "- 부정적 심리 상태: %d회\n", r.PsychBadCount)
    fmt.Fprintf(&b, "- 건강 이상 신호: %d회\n", r.HealthSignals)
    fmt.Fprintf(&b, "- 주간 케어콜 미응답 건수: %d회\n", r.MissedCalls)
    b.WriteString("- 혈당 측정 결과 (정상/고혈당/저혈당 횟수):\n")
    fmt.Fprintf(&b, "  - 식전: %s\n", formatBloodSugarTally(r.BeforeMealBloodSugar))
    fmt.Fprintf(&b, "  - 식후: %s\n", formatBloodSugarTally(r.AfterMealBloodSugar))
    b.WriteString("\n[분석 및 보고 가이드라인]\n")
    b.WriteString("- 식사율이 70% 미만이면 식사를 잘 챙기실 수 있도록 보호자의 관심이 필요함을 언급해주세요.\n")
    b.WriteString("- 놓친 약이 있다면 약 복용의 중요성을 보호자에게 상기시켜주세요.\n")
    b.WriteString("- 건강 이상 신호가 1회 이상 감지되었다면, 이 점을 가장 중요한 문제로 보고하고 보호자의 주의를 당부해주세요.\n")
    b.WriteString("- 미응답 건수가 1회 이상이면, 어르신의 안위를 확인해볼 필요가 있음을 조언해주세요.\n")
    b.WriteString("- 부정적 심리 상태가 긍정적 상태보다 많거나 비슷하면 어르신의 정신 건강에 대한 보호자의 관심을 유도해주세요.\n")
    b.WriteString("- 데이터를 종합하여 보호자가 가장 주의해야 할 점 1~2가지를 중심으로 보고서를 작성해주세요.\n")
    return b.String()
}

func formatBloodSugarTally(t model.BloodSugarTally) string {
    if t.Normal == 0 && t.High == 0 && t.Low == 0 {
        return "측정 기록 없음"
    }
    return fmt.Sprintf("정상 %d회, 고혈당 %d회, 저혈당 %d회", t.Normal, t.High, t.Low)
}
