package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Тип события аудита.
type EventType string

const (
	EventTypeAppointmentBooked      EventType = "appointment_booked"
	EventTypeAppointmentRescheduled EventType = "appointment_rescheduled"
	EventTypeAppointmentCancelled   EventType = "appointment_cancelled"
	EventTypeAvailabilityCreated    EventType = "availability_created"
	EventTypeAvailabilityDeleted    EventType = "availability_deleted"
)

// events — события аудита
type Event struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	EventType EventType `gorm:"type:varchar(64);not null;index"`

	CreatedAt time.Time `gorm:"not null;index"`

	OwnerID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	AppointmentID *uuid.UUID `gorm:"type:uuid;index"`

	Details datatypes.JSON
}

func (e *Event) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// NewEvent собирает событие; details сериализуются в JSON.
func NewEvent(t EventType, ownerID uuid.UUID, appointmentID *uuid.UUID, details any) (*Event, error) {
	ev := &Event{EventType: t, OwnerID: ownerID, AppointmentID: appointmentID}
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			return nil, err
		}
		ev.Details = datatypes.JSON(raw)
	}
	return ev, nil
}
