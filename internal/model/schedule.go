package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// schedules — правило повторения, по которому владелец открыл доступность.
// Слоты из него уже развёрнуты, запись остаётся как история.
type Schedule struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	OwnerID uuid.UUID `gorm:"type:uuid;not null;index"`

	// Окно развёртывания. Чистые даты без времени — datatypes.Date
	StartDate *datatypes.Date `gorm:"type:date"`
	EndDate   *datatypes.Date `gorm:"type:date"`

	TimeZone string `gorm:"type:varchar(64);not null;default:'UTC'"`

	// ScheduleRules в JSON.
	Rules datatypes.JSON

	SlotsCreated int `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Owner *Owner `gorm:"foreignKey:OwnerID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// ScheduleRules — сериализуемый вид правила повторения.
type ScheduleRules struct {
	Freq        string     `json:"freq"`
	Interval    int        `json:"interval"`
	Weekdays    []string   `json:"weekdays,omitempty"`
	Start       time.Time  `json:"start"`
	DurationMin int        `json:"duration_min"`
	Until       *time.Time `json:"until,omitempty"`
	Count       *int       `json:"count,omitempty"`
	Exceptions  []string   `json:"exceptions,omitempty"`
}

func (s *Schedule) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
