package scheduling

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PulpFictionApps/veterinaria/internal/calendar"
)

var (
	// Валидация: исправимо вызывающей стороной.
	ErrInvalidDuration = errors.New("invalid duration")
	ErrMissingStart    = errors.New("either slot id or start instant is required")
	ErrInvalidReminder = errors.New("unknown reminder kind")
	ErrInvalidArgument = errors.New("invalid argument")

	// Конфликты: ожидаемы при конкуренции, клиент перечитывает доступность и повторяет.
	ErrAlreadyBooked            = errors.New("an active appointment already starts at this instant")
	ErrInsufficientAvailability = errors.New("insufficient contiguous availability")
	ErrAppointmentNotActive     = errors.New("appointment is not active")

	// Авторизация: повтор не поможет.
	ErrNotOwner = errors.New("resource belongs to another owner")

	// Не найдено.
	ErrSlotNotFound             = errors.New("slot not found")
	ErrAppointmentNotFound      = errors.New("appointment not found")
	ErrOwnerNotFound            = errors.New("owner not found")
	ErrConsultationTypeNotFound = errors.New("consultation type not found")
)

// InsufficientAvailabilityError перечисляет слоты, которых не хватило для брони.
type InsufficientAvailabilityError struct {
	Missing []calendar.TimeRange
}

func (e *InsufficientAvailabilityError) Error() string {
	parts := make([]string, 0, len(e.Missing))
	for _, m := range e.Missing {
		parts = append(parts, m.Start.Format("2006-01-02T15:04Z07:00"))
	}
	return fmt.Sprintf("%s: missing slots at [%s]", ErrInsufficientAvailability, strings.Join(parts, ", "))
}

func (e *InsufficientAvailabilityError) Is(target error) bool {
	return target == ErrInsufficientAvailability
}

// ValidationError — некорректное поле запроса.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidArgument, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// Kind — класс ошибки, по нему транспорт выбирает код ответа.
type Kind int

const (
	KindInfrastructure Kind = iota
	KindValidation
	KindConflict
	KindAuthorization
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	default:
		return "infrastructure"
	}
}

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidDuration, KindValidation},
	{ErrMissingStart, KindValidation},
	{ErrInvalidReminder, KindValidation},
	{ErrInvalidArgument, KindValidation},
	{calendar.ErrInvalidTimeRange, KindValidation},
	{calendar.ErrMisalignedRange, KindValidation},
	{calendar.ErrRangeTooSmall, KindValidation},
	{calendar.ErrRuleDuration, KindValidation},
	{calendar.ErrRuleStartTime, KindValidation},
	{ErrAlreadyBooked, KindConflict},
	{ErrInsufficientAvailability, KindConflict},
	{ErrAppointmentNotActive, KindConflict},
	{ErrNotOwner, KindAuthorization},
	{ErrSlotNotFound, KindNotFound},
	{ErrAppointmentNotFound, KindNotFound},
	{ErrOwnerNotFound, KindNotFound},
	{ErrConsultationTypeNotFound, KindNotFound},
}

// KindOf классифицирует ошибку; всё неизвестное — инфраструктурная ошибка.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInfrastructure
}

// IsRetryable — конфликт, который имеет смысл повторить после перечитывания.
func IsRetryable(err error) bool {
	return KindOf(err) == KindConflict
}
