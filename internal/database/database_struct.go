package database

import (
	"log/slog"

	"github.com/thereayou/chat-relay/internal/store"
	"gorm.io/gorm"
)

var _ store.Store = (*Database)(nil)

type Database struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewDatabase(db *gorm.DB, log *slog.Logger) *Database {
	return &Database{db: db, log: log}
}
