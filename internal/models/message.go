package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is immutable once appended. Seq is the position in the room's log
// and follows the same order as (CreatedAt, ID).
type Message struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	RoomID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_messages_room_seq,priority:1"`
	Seq       int64     `gorm:"not null;uniqueIndex:idx_messages_room_seq,priority:2"`
	SenderID  uuid.UUID `gorm:"type:uuid;not null"`
	Content   string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;index"`
}
