package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/PulpFictionApps/veterinaria/internal/calendar"
	"github.com/PulpFictionApps/veterinaria/internal/model"
	"github.com/PulpFictionApps/veterinaria/internal/repository"
)

const maxListWindow = 93 * 24 * time.Hour

// BookRequest: SlotID важнее Start, если заданы оба.
type BookRequest struct {
	OwnerID            uuid.UUID
	SlotID             *uuid.UUID
	Start              *time.Time
	DurationMin        int
	ConsultationTypeID *uuid.UUID

	ClientName    string
	ClientContact string
	Notes         string
}

type RescheduleRequest struct {
	AppointmentID uuid.UUID
	OwnerID       uuid.UUID
	NewSlotID     *uuid.UUID
	NewStart      *time.Time
	// 0 — оставить текущую длительность.
	DurationMin int
}

type RescheduleResult struct {
	Appointment *model.Appointment
	Release     []ReleaseOutcome
	// Unchanged — новое время совпало со старым, ничего не делали.
	Unchanged bool
}

type CancelRequest struct {
	AppointmentID uuid.UUID
	OwnerID       uuid.UUID
}

type CancelResult struct {
	Appointment      *model.Appointment
	Release          []ReleaseOutcome
	AlreadyCancelled bool
}

// BookAppointment создаёт запись и потребляет слоты в одной транзакции.
func (e *Engine) BookAppointment(ctx context.Context, req BookRequest) (*model.Appointment, error) {
	var appt *model.Appointment

	err := e.store.InTx(ctx, func(tx *repository.Store) error {
		if _, err := e.getOwner(ctx, tx, req.OwnerID); err != nil {
			return err
		}

		start, err := e.resolveStart(ctx, tx, req.OwnerID, req.SlotID, req.Start)
		if err != nil {
			return err
		}
		duration, err := e.resolveDuration(ctx, tx, req.OwnerID, req.DurationMin, req.ConsultationTypeID)
		if err != nil {
			return err
		}

		if err := e.ensureFree(ctx, tx, req.OwnerID, footprint(start, duration), nil); err != nil {
			return err
		}

		fp, err := e.reserve(ctx, tx, req.OwnerID, start, duration, nil)
		if err != nil {
			return err
		}

		a := &model.Appointment{
			OwnerID:            req.OwnerID,
			ConsultationTypeID: req.ConsultationTypeID,
			StartsAt:           fp.Start,
			EndsAt:             fp.End,
			DurationMin:        duration,
			Status:             model.AppointmentStatusActive,
			ClientName:         req.ClientName,
			ClientContact:      req.ClientContact,
			Notes:              req.Notes,
		}
		if err := tx.Appointments.Create(ctx, a); err != nil {
			return mapWriteErr(err)
		}

		if err := e.audit(ctx, tx, model.EventTypeAppointmentBooked, a.OwnerID, &a.ID, map[string]any{
			"starts_at":    a.StartsAt,
			"ends_at":      a.EndsAt,
			"duration_min": a.DurationMin,
		}); err != nil {
			return err
		}

		appt = a
		return nil
	})
	if err != nil {
		e.logFailure("book appointment", req.OwnerID, err)
		return nil, err
	}

	e.localize(appt)
	e.log.Info("appointment booked",
		zap.String("owner_id", appt.OwnerID.String()),
		zap.String("appointment_id", appt.ID.String()),
		zap.Time("starts_at", appt.StartsAt),
		zap.Int("duration_min", appt.DurationMin),
	)
	return appt, nil
}

// RescheduleAppointment переносит запись на месте (тот же ID): резервирует
// новый интервал, затем пытается вернуть старый в доступность.
func (e *Engine) RescheduleAppointment(ctx context.Context, req RescheduleRequest) (*RescheduleResult, error) {
	res := &RescheduleResult{}

	err := e.store.InTx(ctx, func(tx *repository.Store) error {
		a, err := e.ownedAppointment(ctx, tx, req.AppointmentID, req.OwnerID)
		if err != nil {
			return err
		}
		if !a.IsActive() {
			return ErrAppointmentNotActive
		}

		start, err := e.resolveStart(ctx, tx, a.OwnerID, req.NewSlotID, req.NewStart)
		if err != nil {
			return err
		}

		duration := a.DurationMin
		if req.DurationMin != 0 {
			if err := e.checkDuration(req.DurationMin); err != nil {
				return err
			}
			duration = req.DurationMin
		}

		loc := e.clock.Location()
		old := calendar.TimeRange{Start: a.StartsAt.In(loc), End: a.EndsAt.In(loc)}

		if start.Equal(old.Start) && duration == a.DurationMin {
			res.Appointment = a
			res.Unchanged = true
			return nil
		}

		if err := e.ensureFree(ctx, tx, a.OwnerID, footprint(start, duration), &a.ID); err != nil {
			return err
		}

		fp, err := e.reserve(ctx, tx, a.OwnerID, start, duration, &old)
		if err != nil {
			return err
		}

		if err := tx.Appointments.Reschedule(ctx, a.ID, fp.Start, fp.End, duration); err != nil {
			return mapWriteErr(err)
		}

		res.Release = e.release(ctx, tx, a.OwnerID, old)

		if err := e.audit(ctx, tx, model.EventTypeAppointmentRescheduled, a.OwnerID, &a.ID, map[string]any{
			"from":     old.Start,
			"to":       fp.Start,
			"restored": Restored(res.Release),
		}); err != nil {
			return err
		}

		res.Appointment, err = tx.Appointments.GetByID(ctx, a.ID)
		return err
	})
	if err != nil {
		e.logFailure("reschedule appointment", req.OwnerID, err)
		return nil, err
	}

	e.localize(res.Appointment)
	if !res.Unchanged {
		e.log.Info("appointment rescheduled",
			zap.String("appointment_id", res.Appointment.ID.String()),
			zap.Time("starts_at", res.Appointment.StartsAt),
			zap.Int("restored", Restored(res.Release)),
		)
	}
	return res, nil
}

// CancelAppointment переводит запись в cancelled и пытается вернуть её
// время в доступность. Повторная отмена не ошибка.
func (e *Engine) CancelAppointment(ctx context.Context, req CancelRequest) (*CancelResult, error) {
	res := &CancelResult{}

	err := e.store.InTx(ctx, func(tx *repository.Store) error {
		a, err := e.ownedAppointment(ctx, tx, req.AppointmentID, req.OwnerID)
		if err != nil {
			return err
		}
		res.Appointment = a
		if !a.IsActive() {
			res.AlreadyCancelled = true
			return nil
		}

		n, err := tx.Appointments.Cancel(ctx, a.ID, e.clock.Now())
		if err != nil {
			return err
		}
		if n == 0 {
			res.AlreadyCancelled = true
			return nil
		}

		loc := e.clock.Location()
		res.Release = e.release(ctx, tx, a.OwnerID, calendar.TimeRange{Start: a.StartsAt.In(loc), End: a.EndsAt.In(loc)})

		if err := e.audit(ctx, tx, model.EventTypeAppointmentCancelled, a.OwnerID, &a.ID, map[string]any{
			"starts_at": a.StartsAt,
			"restored":  Restored(res.Release),
		}); err != nil {
			return err
		}

		res.Appointment, err = tx.Appointments.GetByID(ctx, a.ID)
		return err
	})
	if err != nil {
		e.logFailure("cancel appointment", req.OwnerID, err)
		return nil, err
	}

	e.localize(res.Appointment)
	if !res.AlreadyCancelled {
		e.log.Info("appointment cancelled",
			zap.String("appointment_id", res.Appointment.ID.String()),
			zap.Int("restored", Restored(res.Release)),
		)
	}
	return res, nil
}

func (e *Engine) GetAppointment(ctx context.Context, ownerID, id uuid.UUID) (*model.Appointment, error) {
	a, err := e.ownedAppointment(ctx, e.store, id, ownerID)
	if err != nil {
		return nil, err
	}
	e.localize(a)
	return a, nil
}

// ListAppointments — записи владельца с началом в [from, to).
func (e *Engine) ListAppointments(
	ctx context.Context,
	ownerID uuid.UUID,
	from, to time.Time,
	includeCancelled bool,
) ([]model.Appointment, error) {
	tr, err := calendar.NormalizeTimeRange(from, to, e.clock.Location(), maxListWindow)
	if err != nil {
		return nil, err
	}

	list, err := e.store.Appointments.ListByOwnerRange(ctx, ownerID, tr.Start, tr.End, includeCancelled)
	if err != nil {
		return nil, err
	}
	for i := range list {
		e.localize(&list[i])
	}
	return list, nil
}

// resolveStart: идентификатор слота важнее "сырого" момента.
func (e *Engine) resolveStart(
	ctx context.Context,
	tx *repository.Store,
	ownerID uuid.UUID,
	slotID *uuid.UUID,
	start *time.Time,
) (time.Time, error) {
	loc := e.clock.Location()

	if slotID != nil {
		slot, err := tx.Slots.GetByID(ctx, *slotID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, ErrSlotNotFound
		}
		if err != nil {
			return time.Time{}, err
		}
		if slot.OwnerID != ownerID {
			return time.Time{}, ErrNotOwner
		}
		return slot.StartsAt.In(loc), nil
	}

	if start == nil || start.IsZero() {
		return time.Time{}, ErrMissingStart
	}
	return start.In(loc), nil
}

// ensureFree: ни одна активная запись (кроме exclude) не занимает интервал.
func (e *Engine) ensureFree(
	ctx context.Context,
	tx *repository.Store,
	ownerID uuid.UUID,
	tr calendar.TimeRange,
	exclude *uuid.UUID,
) error {
	busy, err := tx.Appointments.ListActiveOverlapping(ctx, ownerID, tr.Start, tr.End)
	if err != nil {
		return err
	}
	for _, b := range busy {
		if exclude != nil && b.ID == *exclude {
			continue
		}
		return ErrAlreadyBooked
	}
	return nil
}

func (e *Engine) getAppointment(ctx context.Context, s *repository.Store, id uuid.UUID) (*model.Appointment, error) {
	a, err := s.Appointments.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAppointmentNotFound
	}
	return a, err
}

func (e *Engine) ownedAppointment(
	ctx context.Context,
	s *repository.Store,
	id, ownerID uuid.UUID,
) (*model.Appointment, error) {
	a, err := e.getAppointment(ctx, s, id)
	if err != nil {
		return nil, err
	}
	if a.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	return a, nil
}

func (e *Engine) localize(a *model.Appointment) {
	if a == nil {
		return
	}
	loc := e.clock.Location()
	a.StartsAt = a.StartsAt.In(loc)
	a.EndsAt = a.EndsAt.In(loc)
}

// mapWriteErr: нарушение частичного уникального индекса — параллельная
// бронь того же начала успела закоммититься раньше.
func mapWriteErr(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAlreadyBooked
	}
	return err
}

func (e *Engine) logFailure(op string, ownerID uuid.UUID, err error) {
	fields := []zap.Field{
		zap.String("owner_id", ownerID.String()),
		zap.String("kind", KindOf(err).String()),
		zap.Error(err),
	}
	if KindOf(err) == KindInfrastructure {
		e.log.Error(op+" failed", fields...)
		return
	}
	e.log.Debug(op+" rejected", fields...)
}
