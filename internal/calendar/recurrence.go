package calendar

import (
	"errors"
	"math"
	"time"
)

type RecurrenceFrequency int

const (
	FreqDaily RecurrenceFrequency = iota
	FreqWeekly
)

// RecurringRule описывает повторяющийся блок доступности, например
// "по вторникам и четвергам с 09:00 на 4 часа".
type RecurringRule struct {
	Freq      RecurrenceFrequency
	Interval  int            // шаг: каждые Interval дней/недель (>=1)
	Weekdays  []time.Weekday // для FreqWeekly; пусто — день недели StartTime
	StartTime time.Time      // начало первого повторения, в нужной зоне
	Duration  time.Duration  // длительность блока
	Until     *time.Time     // опционально: дата/время окончания
	Count     *int           // опционально: максимальное количество повторений
	// Исключения по датам (используем дату без времени).
	Exceptions map[time.Time]struct{}
}

var (
	ErrRuleDuration  = errors.New("recurring rule: duration must be positive")
	ErrRuleStartTime = errors.New("recurring rule: StartTime is required")
)

// ExpandRecurringRule разворачивает правило повторений в набор интервалов
// внутри окна window. Интервалы, полностью лежащие вне window, отбрасываются.
// Даты считаются по стенным часам зоны StartTime, поэтому переход на летнее
// время не сдвигает блок.
func ExpandRecurringRule(rule RecurringRule, window TimeRange) ([]TimeRange, error) {
	if rule.Duration <= 0 {
		return nil, ErrRuleDuration
	}
	if rule.Interval <= 0 {
		rule.Interval = 1
	}
	if rule.StartTime.IsZero() {
		return nil, ErrRuleStartTime
	}
	if !window.End.After(window.Start) {
		return []TimeRange{}, nil
	}

	weekdays := rule.Weekdays
	if rule.Freq == FreqWeekly && len(weekdays) == 0 {
		weekdays = []time.Weekday{rule.StartTime.Weekday()}
	}

	var result []TimeRange
	generated := 0
	first := dateOnly(rule.StartTime)

	for day := 0; ; day++ {
		occStart := rule.StartTime.AddDate(0, 0, day)

		if !occStart.Before(window.End) {
			break
		}
		if rule.Until != nil && occStart.After(*rule.Until) {
			break
		}
		if rule.Count != nil && generated >= *rule.Count {
			break
		}

		if !matchesRule(rule, weekdays, first, occStart, day) {
			continue
		}
		generated++

		if isException(rule, occStart) {
			continue
		}

		occ := TimeRange{Start: occStart, End: occStart.Add(rule.Duration)}
		if rangesOverlap(occ, window, false) {
			result = append(result, occ)
		}
	}

	return result, nil
}

func matchesRule(rule RecurringRule, weekdays []time.Weekday, first, occ time.Time, day int) bool {
	switch rule.Freq {
	case FreqWeekly:
		if !containsWeekday(weekdays, occ.Weekday()) {
			return false
		}
		days := int(math.Round(dateOnly(occ).Sub(startOfWeek(first)).Hours() / 24))
		weeks := days / 7
		return weeks%rule.Interval == 0
	default:
		return day%rule.Interval == 0
	}
}

func startOfWeek(t time.Time) time.Time {
	return t.AddDate(0, 0, -int(t.Weekday()))
}

func containsWeekday(list []time.Weekday, w time.Weekday) bool {
	for _, d := range list {
		if d == w {
			return true
		}
	}
	return false
}

func isException(rule RecurringRule, t time.Time) bool {
	if rule.Exceptions == nil {
		return false
	}
	_, ok := rule.Exceptions[dateOnly(t)]
	return ok
}

func dateOnly(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
