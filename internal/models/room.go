package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	RoomTypeDirect = "direct"
	RoomTypeGroup  = "group"
)

type Room struct {
	ID   uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Type string    `gorm:"not null;default:'direct';check:type IN ('direct','group')"`
	// PairKey is set only for direct rooms; the unique index is what makes
	// find-or-create safe between concurrent creators.
	PairKey       *string `gorm:"uniqueIndex:idx_rooms_pair_key"`
	LastSeq       int64   `gorm:"not null;default:0"`
	LastMessageAt *time.Time
	CreatedAt     time.Time

	Participants []Participant `gorm:"foreignKey:RoomID" json:"-"`
}

// DirectPairKey returns the order independent key of a two-party room.
func DirectPairKey(a, b uuid.UUID) string {
	ids := []string{a.String(), b.String()}
	sort.Strings(ids)
	return ids[0] + ":" + ids[1]
}

func (r *Room) HasParticipant(userID uuid.UUID) bool {
	for _, p := range r.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

func (r *Room) Participant(userID uuid.UUID) (Participant, bool) {
	for _, p := range r.Participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return Participant{}, false
}
