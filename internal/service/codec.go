package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/PulpFictionApps/veterinaria/internal/calendar"
	"github.com/PulpFictionApps/veterinaria/internal/model"
	"github.com/PulpFictionApps/veterinaria/internal/scheduling"
)

// Сообщения — google.protobuf.Struct: время в RFC3339, идентификаторы — строки UUID.

func field(req *structpb.Struct, name string) (*structpb.Value, bool) {
	if req == nil {
		return nil, false
	}
	v, ok := req.GetFields()[name]
	if !ok {
		return nil, false
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil, false
	}
	return v, true
}

func getString(req *structpb.Struct, name string) string {
	v, ok := field(req, name)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v.GetStringValue())
}

func getInt(req *structpb.Struct, name string) (int, error) {
	v, ok := field(req, name)
	if !ok {
		return 0, nil
	}
	n, isNum := v.GetKind().(*structpb.Value_NumberValue)
	if !isNum {
		return 0, invalid("%s must be a number", name)
	}
	if n.NumberValue != float64(int(n.NumberValue)) {
		return 0, invalid("%s must be an integer", name)
	}
	return int(n.NumberValue), nil
}

func getBool(req *structpb.Struct, name string) bool {
	v, ok := field(req, name)
	return ok && v.GetBoolValue()
}

func requireUUID(req *structpb.Struct, name string) (uuid.UUID, error) {
	s := getString(req, name)
	if s == "" {
		return uuid.Nil, invalid("%s is required", name)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, invalid("%s is not a valid UUID", name)
	}
	return id, nil
}

func optionalUUID(req *structpb.Struct, name string) (*uuid.UUID, error) {
	if getString(req, name) == "" {
		return nil, nil
	}
	id, err := requireUUID(req, name)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func requireTime(req *structpb.Struct, name string) (time.Time, error) {
	s := getString(req, name)
	if s == "" {
		return time.Time{}, invalid("%s is required", name)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, invalid("%s must be RFC3339: %v", name, err)
	}
	return t, nil
}

func optionalTime(req *structpb.Struct, name string) (*time.Time, error) {
	if getString(req, name) == "" {
		return nil, nil
	}
	t, err := requireTime(req, name)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func pageRequest(req *structpb.Struct) (page, size int, err error) {
	if page, err = getInt(req, "page"); err != nil {
		return 0, 0, err
	}
	if size, err = getInt(req, "page_size"); err != nil {
		return 0, 0, err
	}
	return page, size, nil
}

func invalid(format string, args ...any) error {
	return status.Error(codes.InvalidArgument, fmt.Sprintf(format, args...))
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func optionalTimeValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func optionalUUIDValue(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func ownerValue(o *model.Owner) map[string]any {
	return map[string]any{
		"id":           o.ID.String(),
		"display_name": o.DisplayName,
		"email":        o.Email,
	}
}

func consultationTypeValue(ct *model.ConsultationType) map[string]any {
	return map[string]any{
		"id":           ct.ID.String(),
		"owner_id":     ct.OwnerID.String(),
		"name":         ct.Name,
		"description":  ct.Description,
		"duration_min": ct.DurationMin,
		"is_active":    ct.IsActive,
	}
}

func slotValue(s model.AvailabilitySlot) map[string]any {
	return map[string]any{
		"id":       s.ID.String(),
		"owner_id": s.OwnerID.String(),
		"start":    formatTime(s.StartsAt),
		"end":      formatTime(s.EndsAt),
	}
}

func slotsValue(slots []model.AvailabilitySlot) []any {
	out := make([]any, 0, len(slots))
	for _, s := range slots {
		out = append(out, slotValue(s))
	}
	return out
}

func appointmentValue(a *model.Appointment) map[string]any {
	return map[string]any{
		"id":                    a.ID.String(),
		"owner_id":              a.OwnerID.String(),
		"consultation_type_id":  optionalUUIDValue(a.ConsultationTypeID),
		"start":                 formatTime(a.StartsAt),
		"end":                   formatTime(a.EndsAt),
		"duration_min":          a.DurationMin,
		"status":                string(a.Status),
		"cancelled_at":          optionalTimeValue(a.CancelledAt),
		"client_name":           a.ClientName,
		"client_contact":        a.ClientContact,
		"notes":                 a.Notes,
		"reminder_day_sent_at":  optionalTimeValue(a.ReminderDaySentAt),
		"reminder_hour_sent_at": optionalTimeValue(a.ReminderHourSentAt),
	}
}

func appointmentsValue(list []model.Appointment) []any {
	out := make([]any, 0, len(list))
	for i := range list {
		out = append(out, appointmentValue(&list[i]))
	}
	return out
}

func scheduleValue(sc *model.Schedule) (map[string]any, error) {
	var rules map[string]any
	if len(sc.Rules) > 0 {
		if err := json.Unmarshal(sc.Rules, &rules); err != nil {
			return nil, fmt.Errorf("decode schedule %s rules: %w", sc.ID, err)
		}
	}
	out := map[string]any{
		"id":            sc.ID.String(),
		"owner_id":      sc.OwnerID.String(),
		"time_zone":     sc.TimeZone,
		"rules":         rules,
		"slots_created": sc.SlotsCreated,
		"created_at":    formatTime(sc.CreatedAt),
	}
	if sc.StartDate != nil {
		out["start_date"] = time.Time(*sc.StartDate).Format(time.DateOnly)
	}
	if sc.EndDate != nil {
		out["end_date"] = time.Time(*sc.EndDate).Format(time.DateOnly)
	}
	return out, nil
}

// pageValue кладёт элементы под ключ key рядом с метаданными страницы.
func pageValue[T any](p calendar.Page[T], key string, items []any) map[string]any {
	return map[string]any{
		key:         items,
		"page":      p.Page,
		"page_size": p.PageSize,
		"total":     p.Total,
		"has_next":  p.HasNext,
		"has_prev":  p.HasPrev,
	}
}

func skippedValue(skipped []scheduling.SkippedRange) []any {
	out := make([]any, 0, len(skipped))
	for _, s := range skipped {
		out = append(out, map[string]any{
			"start":  formatTime(s.Range.Start),
			"end":    formatTime(s.Range.End),
			"reason": string(s.Reason),
		})
	}
	return out
}

func releaseValue(outcomes []scheduling.ReleaseOutcome) []any {
	out := make([]any, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, map[string]any{
			"start":  formatTime(o.Range.Start),
			"end":    formatTime(o.Range.End),
			"result": o.Result.String(),
		})
	}
	return out
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday,
	"friday": time.Friday, "saturday": time.Saturday,
}

// recurringRule собирает правило повторения из запроса; даты исключений
// читаются в зоне расписания loc.
func recurringRule(req *structpb.Struct, loc *time.Location) (calendar.RecurringRule, error) {
	var rule calendar.RecurringRule

	switch strings.ToLower(getString(req, "freq")) {
	case "", "daily":
		rule.Freq = calendar.FreqDaily
	case "weekly":
		rule.Freq = calendar.FreqWeekly
	default:
		return rule, invalid("freq must be daily or weekly")
	}

	interval, err := getInt(req, "interval")
	if err != nil {
		return rule, err
	}
	rule.Interval = interval

	start, err := requireTime(req, "start")
	if err != nil {
		return rule, err
	}
	rule.StartTime = start.In(loc)

	durationMin, err := getInt(req, "duration_min")
	if err != nil {
		return rule, err
	}
	rule.Duration = time.Duration(durationMin) * time.Minute

	if v, ok := field(req, "weekdays"); ok {
		for _, item := range v.GetListValue().GetValues() {
			wd, ok := weekdays[strings.ToLower(item.GetStringValue())]
			if !ok {
				return rule, invalid("unknown weekday %q", item.GetStringValue())
			}
			rule.Weekdays = append(rule.Weekdays, wd)
		}
	}

	until, err := optionalTime(req, "until")
	if err != nil {
		return rule, err
	}
	rule.Until = until

	count, err := getInt(req, "count")
	if err != nil {
		return rule, err
	}
	if count > 0 {
		rule.Count = &count
	}

	if v, ok := field(req, "exceptions"); ok {
		rule.Exceptions = make(map[time.Time]struct{})
		for _, item := range v.GetListValue().GetValues() {
			d, err := time.ParseInLocation(time.DateOnly, item.GetStringValue(), loc)
			if err != nil {
				return rule, invalid("exception %q must be YYYY-MM-DD", item.GetStringValue())
			}
			rule.Exceptions[d] = struct{}{}
		}
	}

	return rule, nil
}
