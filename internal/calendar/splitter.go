package calendar

import (
	"errors"
	"fmt"
	"time"
)

// SlotDuration — длительность атомарного слота доступности.
const SlotDuration = 15 * time.Minute

const slotMinutes = int(SlotDuration / time.Minute)

var (
	ErrSlotDuration    = errors.New("slot duration must be positive")
	ErrMisalignedRange = errors.New("range is not aligned to 15-minute boundaries")
	ErrRangeTooSmall   = errors.New("range is shorter than one slot")
)

// MisalignedRangeError возвращает то, как сервер прочитал границы,
// чтобы вызывающая сторона могла поправить запрос.
type MisalignedRangeError struct {
	Start time.Time
	End   time.Time
}

func (e *MisalignedRangeError) Error() string {
	return fmt.Sprintf(
		"%s: parsed start=%s end=%s (minutes must be one of 00/15/30/45, seconds zero)",
		ErrMisalignedRange, e.Start.Format(time.RFC3339Nano), e.End.Format(time.RFC3339Nano),
	)
}

func (e *MisalignedRangeError) Is(target error) bool {
	return target == ErrMisalignedRange
}

// IsQuarterAligned: минуты кратны 15, секунды и доли секунды нулевые (в зоне loc).
func IsQuarterAligned(t time.Time, loc *time.Location) bool {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Minute()%slotMinutes == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

// SlotsNeeded = ceil(durationMin / 15).
func SlotsNeeded(durationMin int) int {
	if durationMin <= 0 {
		return 0
	}
	return (durationMin + slotMinutes - 1) / slotMinutes
}

// SplitQuarterSlots режет [start, end) на 15-минутные слоты.
// Невыровненные границы не подгоняются, а отклоняются.
func SplitQuarterSlots(start, end time.Time, loc *time.Location) ([]TimeRange, error) {
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return nil, ErrInvalidTimeRange
	}
	if loc != nil {
		start = start.In(loc)
		end = end.In(loc)
	}
	if !IsQuarterAligned(start, loc) || !IsQuarterAligned(end, loc) {
		return nil, &MisalignedRangeError{Start: start, End: end}
	}

	slots, err := SplitToTimeSlots(TimeRange{Start: start, End: end}, SlotDuration)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, ErrRangeTooSmall
	}
	return slots, nil
}

// SplitToTimeSlots разбивает интервал на слоты фиксированной длительности.
// "Хвост" меньшей длительности, чем slotDuration, отбрасывается.
func SplitToTimeSlots(tr TimeRange, slotDuration time.Duration) ([]TimeRange, error) {
	if slotDuration <= 0 {
		return nil, ErrSlotDuration
	}
	if !tr.End.After(tr.Start) {
		return []TimeRange{}, nil
	}

	var slots []TimeRange
	for cur := tr.Start; !cur.Add(slotDuration).After(tr.End); cur = cur.Add(slotDuration) {
		slots = append(slots, TimeRange{Start: cur, End: cur.Add(slotDuration)})
	}

	return slots, nil
}
