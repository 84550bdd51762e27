package scheduling

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/PulpFictionApps/veterinaria/internal/calendar"
	"github.com/PulpFictionApps/veterinaria/internal/model"
)

// ListSchedules — правила повторения, по которым владелец открывал доступность.
func (e *Engine) ListSchedules(ctx context.Context, ownerID uuid.UUID, page, pageSize int) (calendar.Page[model.Schedule], error) {
	if _, err := e.getOwner(ctx, e.store, ownerID); err != nil {
		return calendar.Page[model.Schedule]{}, err
	}
	list, err := e.store.Schedules.ListByOwner(ctx, ownerID)
	if err != nil {
		return calendar.Page[model.Schedule]{}, err
	}
	return calendar.Paginate(list, page, pageSize), nil
}

func newSchedule(
	ownerID uuid.UUID,
	rule calendar.RecurringRule,
	window calendar.TimeRange,
	loc *time.Location,
	created int,
) (*model.Schedule, error) {
	raw, err := json.Marshal(scheduleRules(rule))
	if err != nil {
		return nil, fmt.Errorf("encode schedule rules: %w", err)
	}

	from := datatypes.Date(window.Start.In(loc))
	// окно полуоткрытое, последняя дата — за мгновение до конца
	to := datatypes.Date(window.End.In(loc).Add(-time.Nanosecond))

	return &model.Schedule{
		OwnerID:      ownerID,
		StartDate:    &from,
		EndDate:      &to,
		TimeZone:     loc.String(),
		Rules:        datatypes.JSON(raw),
		SlotsCreated: created,
	}, nil
}

func scheduleRules(rule calendar.RecurringRule) model.ScheduleRules {
	out := model.ScheduleRules{
		Freq:        "daily",
		Interval:    max(rule.Interval, 1),
		Start:       rule.StartTime,
		DurationMin: int(rule.Duration / time.Minute),
		Until:       rule.Until,
		Count:       rule.Count,
	}
	if rule.Freq == calendar.FreqWeekly {
		out.Freq = "weekly"
	}
	for _, wd := range rule.Weekdays {
		out.Weekdays = append(out.Weekdays, strings.ToLower(wd.String()))
	}
	for d := range rule.Exceptions {
		out.Exceptions = append(out.Exceptions, d.Format(time.DateOnly))
	}
	sort.Strings(out.Exceptions)
	return out
}
