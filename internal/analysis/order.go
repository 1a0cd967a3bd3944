package analysis

import (
    "fmt"
    "time"

    "carecall/internal/model"
)

// CallOrder attributes a call to its slot in the elder's call plan:
// 1 for the first window, 2 for the second, 3 for the third. The third
// window wraps past midnight back to the first boundary.
func CallOrder(at time.Time, setting *model.CareCallSetting) (int, error) {
    first, err := clockMinutes(setting.FirstCallTime)
    if err != nil {
        return 0, fmt.Errorf("first call time: %w", err)
    }
    t := at.Hour()*60 + at.Minute()

    var second, third *int
    if setting.SecondCallTime != nil {
        v, err := clockMinutes(*setting.SecondCallTime)
        if err != nil {
            return 0, fmt.Errorf("second call time: %w", err)
        }
        second = &v
    }
    if setting.ThirdCallTime != nil {
        v, err := clockMinutes(*setting.ThirdCallTime)
        if err != nil {
            return 0, fmt.Errorf("third call time: %w", err)
        }
        third = &v
    }

    switch {
    case t >= first && (second == nil || t < *second):
        return 1, nil
    case second != nil && t >= *second && (third == nil || t < *third):
        return 2, nil
    case third != nil && (t >= *third || t < first):
        return 3, nil
    case t < first:
        // Before the first boundary with no third window configured: the
        // call belongs to the last configured window of the previous day.
        if second != nil {
            return 2, nil
        }
        return 1, nil
    }
    return 0, fmt.Errorf("call at %s matches no window", at.Format("15:04"))
}

func clockMinutes(s string) (int, error) {
    t, err := time.Parse("15:04", s)
    if err != nil {
        return 0, err
    }
    return t.Hour()*60 + t.Minute(), nil
}
