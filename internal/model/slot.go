package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SlotDuration — длительность одного неделимого слота.
const SlotDuration = 15 * time.Minute

// availability_slots
//
// Слот существует только пока свободен: бронирование удаляет его,
// отмена записи может создать заново.
type AvailabilitySlot struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	OwnerID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_availability_slots_owner_range,priority:1"`
	StartsAt time.Time `gorm:"not null;uniqueIndex:idx_availability_slots_owner_range,priority:2"`
	EndsAt   time.Time `gorm:"not null;uniqueIndex:idx_availability_slots_owner_range,priority:3;index"`

	CreatedAt time.Time `gorm:"not null"`

	Owner *Owner `gorm:"foreignKey:OwnerID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (s *AvailabilitySlot) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.StartsAt = s.StartsAt.UTC()
	s.EndsAt = s.EndsAt.UTC()
	return nil
}
