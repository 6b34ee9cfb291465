package models

import (
	"time"

	"github.com/google/uuid"
)

type Participant struct {
	RoomID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	LastReadSeq int64     `gorm:"not null;default:0"`
	JoinedAt    time.Time

	User User `gorm:"foreignKey:UserID" json:"-"`
}

// Unread is the number of messages appended after the participant's read
// pointer.
func (p Participant) Unread(lastSeq int64) int64 {
	if lastSeq <= p.LastReadSeq {
		return 0
	}
	return lastSeq - p.LastReadSeq
}
