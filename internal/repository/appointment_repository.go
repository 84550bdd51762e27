package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/PulpFictionApps/veterinaria/internal/model"
)

type AppointmentRepository interface {
	// Создать запись.
	Create(ctx context.Context, a *model.Appointment) error
	// Получить запись по ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	// Активные записи владельца, пересекающие [from, to).
	ListActiveOverlapping(ctx context.Context, ownerID uuid.UUID, from, to time.Time) ([]model.Appointment, error)
	// Записи владельца, начинающиеся в [from, to).
	ListByOwnerRange(ctx context.Context, ownerID uuid.UUID, from, to time.Time, includeCancelled bool) ([]model.Appointment, error)
	// Перенести запись на новый интервал.
	Reschedule(ctx context.Context, id uuid.UUID, start, end time.Time, durationMin int) error
	// Отменить активную запись; 0 — запись уже не активна.
	Cancel(ctx context.Context, id uuid.UUID, at time.Time) (int64, error)
	// Активные записи с началом в [from, to), по которым напоминание kind ещё не отправлено.
	ListPendingReminders(ctx context.Context, kind model.ReminderKind, from, to time.Time) ([]model.Appointment, error)
	// Отметить отправку напоминания; false — отметка уже стояла.
	MarkReminderSent(ctx context.Context, id uuid.UUID, kind model.ReminderKind, at time.Time) (bool, error)
	// Удалить записи, начавшиеся раньше before.
	DeleteStartedBefore(ctx context.Context, before time.Time) (int64, error)
}

// Реализация на GORM.
type GormAppointmentRepository struct {
	db *gorm.DB
}

func NewGormAppointmentRepository(db *gorm.DB) *GormAppointmentRepository {
	return &GormAppointmentRepository{db: db}
}

func (r *GormAppointmentRepository) Create(ctx context.Context, a *model.Appointment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *GormAppointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	var a model.Appointment
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *GormAppointmentRepository) ListActiveOverlapping(
	ctx context.Context,
	ownerID uuid.UUID,
	from, to time.Time,
) ([]model.Appointment, error) {
	var list []model.Appointment
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND status = ?", ownerID, model.AppointmentStatusActive).
		Where("starts_at < ? AND ends_at > ?", to.UTC(), from.UTC()).
		Order("starts_at ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *GormAppointmentRepository) ListByOwnerRange(
	ctx context.Context,
	ownerID uuid.UUID,
	from, to time.Time,
	includeCancelled bool,
) ([]model.Appointment, error) {
	q := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Where("starts_at >= ? AND starts_at < ?", from.UTC(), to.UTC())
	if !includeCancelled {
		q = q.Where("status = ?", model.AppointmentStatusActive)
	}

	var list []model.Appointment
	if err := q.Order("starts_at ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *GormAppointmentRepository) Reschedule(
	ctx context.Context,
	id uuid.UUID,
	start, end time.Time,
	durationMin int,
) error {
	// Новое время: напоминания нужно отправить заново.
	return r.db.WithContext(ctx).
		Model(&model.Appointment{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"starts_at":             start.UTC(),
			"ends_at":               end.UTC(),
			"duration_min":          durationMin,
			"reminder_day_sent_at":  nil,
			"reminder_hour_sent_at": nil,
		}).Error
}

func (r *GormAppointmentRepository) Cancel(ctx context.Context, id uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Appointment{}).
		Where("id = ? AND status = ?", id, model.AppointmentStatusActive).
		Updates(map[string]any{
			"status":       model.AppointmentStatusCancelled,
			"cancelled_at": at.UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *GormAppointmentRepository) ListPendingReminders(
	ctx context.Context,
	kind model.ReminderKind,
	from, to time.Time,
) ([]model.Appointment, error) {
	col, ok := kind.Column()
	if !ok {
		return nil, fmt.Errorf("unknown reminder kind %q", kind)
	}

	var list []model.Appointment
	err := r.db.WithContext(ctx).
		Where("status = ?", model.AppointmentStatusActive).
		Where("starts_at >= ? AND starts_at < ?", from.UTC(), to.UTC()).
		Where(col + " IS NULL").
		Order("starts_at ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *GormAppointmentRepository) MarkReminderSent(
	ctx context.Context,
	id uuid.UUID,
	kind model.ReminderKind,
	at time.Time,
) (bool, error) {
	col, ok := kind.Column()
	if !ok {
		return false, fmt.Errorf("unknown reminder kind %q", kind)
	}

	// Условное обновление: повторная отметка ничего не меняет.
	res := r.db.WithContext(ctx).
		Model(&model.Appointment{}).
		Where("id = ?", id).
		Where(col+" IS NULL").
		Update(col, at.UTC())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GormAppointmentRepository) DeleteStartedBefore(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("starts_at < ?", before.UTC()).
		Delete(&model.Appointment{})
	return res.RowsAffected, res.Error
}
