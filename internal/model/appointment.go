package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AppointmentStatus string

const (
	AppointmentStatusActive    AppointmentStatus = "active"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

type ReminderKind string

const (
	ReminderDayBefore  ReminderKind = "day_before"
	ReminderHourBefore ReminderKind = "hour_before"
)

// Column возвращает колонку, в которой хранится отметка об отправке напоминания.
func (k ReminderKind) Column() (string, bool) {
	switch k {
	case ReminderDayBefore:
		return "reminder_day_sent_at", true
	case ReminderHourBefore:
		return "reminder_hour_sent_at", true
	default:
		return "", false
	}
}

// appointments
//
// У владельца не может быть двух активных записей с одинаковым началом:
// частичный уникальный индекс по (owner_id, starts_at) WHERE status = 'active'.
type Appointment struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_appointments_owner_start_active,where:status = 'active'"`

	ConsultationTypeID *uuid.UUID `gorm:"type:uuid;index"`

	StartsAt    time.Time `gorm:"not null;uniqueIndex:idx_appointments_owner_start_active,where:status = 'active';index"`
	EndsAt      time.Time `gorm:"not null"`
	DurationMin int       `gorm:"not null"`

	Status      AppointmentStatus `gorm:"type:varchar(32);not null;default:'active';index"`
	CancelledAt *time.Time

	ClientName    string `gorm:"type:varchar(255)"`
	ClientContact string `gorm:"type:varchar(255)"`
	Notes         string `gorm:"type:text"`

	ReminderDaySentAt  *time.Time
	ReminderHourSentAt *time.Time

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Owner            *Owner            `gorm:"foreignKey:OwnerID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	ConsultationType *ConsultationType `gorm:"foreignKey:ConsultationTypeID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

func (a *Appointment) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = AppointmentStatusActive
	}
	a.StartsAt = a.StartsAt.UTC()
	a.EndsAt = a.EndsAt.UTC()
	return nil
}

func (a *Appointment) IsActive() bool {
	return a.Status == AppointmentStatusActive
}
