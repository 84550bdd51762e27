package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/PulpFictionApps/veterinaria/internal/model"
)

type ConsultationTypeRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.ConsultationType, error)
	Create(ctx context.Context, ct *model.ConsultationType) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID, onlyActive bool) ([]model.ConsultationType, error)
}

type GormConsultationTypeRepository struct {
	db *gorm.DB
}

func NewGormConsultationTypeRepository(db *gorm.DB) *GormConsultationTypeRepository {
	return &GormConsultationTypeRepository{db: db}
}

func (r *GormConsultationTypeRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ConsultationType, error) {
	var ct model.ConsultationType
	if err := r.db.WithContext(ctx).First(&ct, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &ct, nil
}

func (r *GormConsultationTypeRepository) Create(ctx context.Context, ct *model.ConsultationType) error {
	return r.db.WithContext(ctx).Create(ct).Error
}

func (r *GormConsultationTypeRepository) ListByOwner(
	ctx context.Context,
	ownerID uuid.UUID,
	onlyActive bool,
) ([]model.ConsultationType, error) {
	q := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if onlyActive {
		q = q.Where("is_active = ?", true)
	}

	var list []model.ConsultationType
	if err := q.Order("name ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
