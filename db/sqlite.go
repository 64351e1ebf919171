package db

import (
	"fmt"
	"sync/atomic"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var sqliteSeq atomic.Uint64

// ConnectSQLite opens a fresh in-memory SQLite database and migrates it, for
// unit tests that need a real relational backend without a Postgres fixture.
// Each call gets its own named database, shared only by that pool's
// connections.
func ConnectSQLite() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:adaptarr_test_%d?mode=memory&cache=shared", sqliteSeq.Add(1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	if err := gdb.AutoMigrate(AllModels()...); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	if err := gdb.FirstOrCreate(&NotificationWatermark{}, NotificationWatermark{ID: 1}).Error; err != nil {
		return nil, fmt.Errorf("seed notification watermark: %w", err)
	}
	return gdb, nil
}
