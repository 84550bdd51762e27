package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/PulpFictionApps/veterinaria/internal/model"
)

type SlotRepository interface {
	// Создать слот, если (owner, start, end) ещё свободен. false — слот уже был.
	CreateIfAbsent(ctx context.Context, slot *model.AvailabilitySlot) (bool, error)
	// Найти слот по ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.AvailabilitySlot, error)
	// Неистёкшие слоты владельца (ends_at > cutoff) с пагинацией.
	ListByOwner(ctx context.Context, ownerID uuid.UUID, cutoff time.Time, limit, offset int) ([]model.AvailabilitySlot, int64, error)
	// Выбрать и заблокировать (FOR UPDATE) слоты владельца с указанными началами.
	LockByStarts(ctx context.Context, ownerID uuid.UUID, starts []time.Time) ([]model.AvailabilitySlot, error)
	// Удалить слоты по ID; возвращает количество реально удалённых строк.
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
	// Удалить слот.
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
	// Удалить все слоты с ends_at <= cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

type GormSlotRepository struct {
	db *gorm.DB
}

func NewGormSlotRepository(db *gorm.DB) *GormSlotRepository {
	return &GormSlotRepository{db: db}
}

func (r *GormSlotRepository) CreateIfAbsent(ctx context.Context, slot *model.AvailabilitySlot) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(slot)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GormSlotRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.AvailabilitySlot, error) {
	var slot model.AvailabilitySlot
	if err := r.db.WithContext(ctx).First(&slot, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &slot, nil
}

func (r *GormSlotRepository) ListByOwner(
	ctx context.Context,
	ownerID uuid.UUID,
	cutoff time.Time,
	limit, offset int,
) ([]model.AvailabilitySlot, int64, error) {
	var slots []model.AvailabilitySlot
	q := r.db.WithContext(ctx).
		Model(&model.AvailabilitySlot{}).
		Where("owner_id = ?", ownerID).
		Where("ends_at > ?", cutoff.UTC())

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	if err := q.Order("starts_at ASC").Find(&slots).Error; err != nil {
		return nil, 0, err
	}

	return slots, total, nil
}

func (r *GormSlotRepository) LockByStarts(
	ctx context.Context,
	ownerID uuid.UUID,
	starts []time.Time,
) ([]model.AvailabilitySlot, error) {
	if len(starts) == 0 {
		return []model.AvailabilitySlot{}, nil
	}
	utc := make([]time.Time, 0, len(starts))
	for _, s := range starts {
		utc = append(utc, s.UTC())
	}

	var slots []model.AvailabilitySlot
	// На SQLite блокировка строк не поддерживается, драйвер опускает FOR UPDATE.
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("owner_id = ?", ownerID).
		Where("starts_at IN ?", utc).
		Order("starts_at ASC").
		Find(&slots).Error
	if err != nil {
		return nil, err
	}
	return slots, nil
}

func (r *GormSlotRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Delete(&model.AvailabilitySlot{}, "id IN ?", ids)
	return res.RowsAffected, res.Error
}

func (r *GormSlotRepository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&model.AvailabilitySlot{}, "id = ?", id)
	return res.RowsAffected, res.Error
}

func (r *GormSlotRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("ends_at <= ?", cutoff.UTC()).
		Delete(&model.AvailabilitySlot{})
	return res.RowsAffected, res.Error
}
