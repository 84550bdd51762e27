package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store собирает репозитории поверх одного *gorm.DB — обычного соединения
// или открытой транзакции.
type Store struct {
	db *gorm.DB

	Owners            OwnerRepository
	Slots             SlotRepository
	Appointments      AppointmentRepository
	ConsultationTypes ConsultationTypeRepository
	Events            EventRepository
	Schedules         ScheduleRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:                db,
		Owners:            NewGormOwnerRepository(db),
		Slots:             NewGormSlotRepository(db),
		Appointments:      NewGormAppointmentRepository(db),
		ConsultationTypes: NewGormConsultationTypeRepository(db),
		Events:            NewGormEventRepository(db),
		Schedules:         NewGormScheduleRepository(db),
	}
}

// InTx выполняет fn в транзакции. Любая ошибка откатывает всё.
// Вызов на Store, уже работающем в транзакции, открывает SAVEPOINT:
// ошибка fn откатывает только его.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}
