package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Owner — специалист, который ведёт собственный календарь.
// Все слоты и записи живут строго в пределах одного владельца.
type Owner struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	DisplayName string `gorm:"type:varchar(255);not null"`
	Email       string `gorm:"type:varchar(255);index"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Slots             []AvailabilitySlot `gorm:"foreignKey:OwnerID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	ConsultationTypes []ConsultationType `gorm:"foreignKey:OwnerID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (o *Owner) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
