package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/PulpFictionApps/veterinaria/internal/model"
)

type OwnerRepository interface {
	Create(ctx context.Context, owner *model.Owner) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Owner, error)
}

type GormOwnerRepository struct {
	db *gorm.DB
}

func NewGormOwnerRepository(db *gorm.DB) *GormOwnerRepository {
	return &GormOwnerRepository{db: db}
}

func (r *GormOwnerRepository) Create(ctx context.Context, owner *model.Owner) error {
	return r.db.WithContext(ctx).Create(owner).Error
}

func (r *GormOwnerRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Owner, error) {
	var o model.Owner
	if err := r.db.WithContext(ctx).First(&o, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}
