package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PulpFictionApps/veterinaria/internal/calendar"
	"github.com/PulpFictionApps/veterinaria/internal/model"
)

// PendingReminders — активные записи с началом в [from, to), по которым
// напоминание kind ещё не отмечено. Само сообщение отправляет внешний конвейер.
func (e *Engine) PendingReminders(
	ctx context.Context,
	kind model.ReminderKind,
	from, to time.Time,
) ([]model.Appointment, error) {
	if _, ok := kind.Column(); !ok {
		return nil, ErrInvalidReminder
	}
	tr, err := calendar.NormalizeTimeRange(from, to, e.clock.Location(), maxListWindow)
	if err != nil {
		return nil, err
	}

	list, err := e.store.Appointments.ListPendingReminders(ctx, kind, tr.Start, tr.End)
	if err != nil {
		return nil, err
	}
	for i := range list {
		e.localize(&list[i])
	}
	return list, nil
}

// MarkReminderSent ставит отметку один раз; false — она уже стояла.
func (e *Engine) MarkReminderSent(ctx context.Context, appointmentID uuid.UUID, kind model.ReminderKind) (bool, error) {
	if _, ok := kind.Column(); !ok {
		return false, ErrInvalidReminder
	}

	a, err := e.getAppointment(ctx, e.store, appointmentID)
	if err != nil {
		return false, err
	}
	if !a.IsActive() {
		return false, ErrAppointmentNotActive
	}

	marked, err := e.store.Appointments.MarkReminderSent(ctx, appointmentID, kind, e.clock.Now())
	if err != nil {
		return false, err
	}

	e.log.Debug("reminder flag",
		zap.String("appointment_id", appointmentID.String()),
		zap.String("kind", string(kind)),
		zap.Bool("marked", marked),
	)
	return marked, nil
}
