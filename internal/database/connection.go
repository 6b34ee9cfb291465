package database

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/thereayou/chat-relay/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the PostgreSQL pool and migrates the schema. The unique
// indexes declared on the models (handle, email, pair key, room+seq) are the
// constraints the store relies on for its races.
func Connect(dsn string, log *slog.Logger) (*Database, error) {
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	err = db.AutoMigrate(&models.User{}, &models.Room{}, &models.Participant{}, &models.Message{})
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info("connected to postgres")
	return NewDatabase(db, log), nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
