package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/PulpFictionApps/veterinaria/internal/model"
)

type ScheduleRepository interface {
	Create(ctx context.Context, s *model.Schedule) error
	// ListByOwner возвращает правила владельца, новые первыми.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Schedule, error)
}

type GormScheduleRepository struct {
	db *gorm.DB
}

func NewGormScheduleRepository(db *gorm.DB) *GormScheduleRepository {
	return &GormScheduleRepository{db: db}
}

func (r *GormScheduleRepository) Create(ctx context.Context, s *model.Schedule) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *GormScheduleRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Schedule, error) {
	var schedules []model.Schedule
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&schedules).Error
	if err != nil {
		return nil, err
	}
	return schedules, nil
}
