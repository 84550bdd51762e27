// Package testutil поднимает SQLite в памяти со схемой ядра для тестов.
package testutil

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/PulpFictionApps/veterinaria/internal/db"
	"github.com/PulpFictionApps/veterinaria/internal/model"
)

// OpenDB открывает изолированную базу на каждый тест.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gormDB, err := db.NewSQLiteDB(dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := model.AutoMigrate(gormDB); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		t.Fatalf("sql DB: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	return gormDB
}

// SeedOwner создаёт владельца календаря.
func SeedOwner(t testing.TB, gormDB *gorm.DB, name string) *model.Owner {
	t.Helper()

	o := &model.Owner{DisplayName: name}
	if err := gormDB.Create(o).Error; err != nil {
		t.Fatalf("seed owner: %v", err)
	}
	return o
}
