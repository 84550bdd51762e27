package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// consultation_types — тип приёма, задающий длительность записи.
type ConsultationType struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	OwnerID uuid.UUID `gorm:"type:uuid;not null;index"`

	Name        string `gorm:"type:varchar(255);not null"`
	Description string `gorm:"type:text"`

	// В минутах; округляется вверх до целого числа слотов при бронировании.
	DurationMin int `gorm:"not null"`

	IsActive bool `gorm:"not null;default:true;index"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (c *ConsultationType) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
