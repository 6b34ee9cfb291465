package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/chat-relay/internal/apperr"
	"github.com/thereayou/chat-relay/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (d *Database) FindDirectRoom(ctx context.Context, pairKey string) (*models.Room, error) {
	var room models.Room
	err := d.db.WithContext(ctx).
		Preload("Participants").
		Where("pair_key = ?", pairKey).
		First(&room).Error
	if err != nil {
		return nil, translate(err, "room")
	}
	return &room, nil
}

// CreateRoom inserts the room and its participants in one transaction. A
// second creator of the same direct room hits idx_rooms_pair_key and gets
// Conflict.
func (d *Database) CreateRoom(ctx context.Context, room *models.Room, members []uuid.UUID) error {
	if room.ID == uuid.Nil {
		room.ID = uuid.New()
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	participants := make([]models.Participant, 0, len(members))
	for _, userID := range members {
		participants = append(participants, models.Participant{RoomID: room.ID, UserID: userID, JoinedAt: room.CreatedAt})
	}

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(room).Error; err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Create(&participants).Error
	})
	if err != nil {
		return translate(err, "room")
	}
	room.Participants = participants
	return nil
}

func (d *Database) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var room models.Room
	if err := d.db.WithContext(ctx).Preload("Participants.User").First(&room, "id = ?", id).Error; err != nil {
		return nil, translate(err, "room")
	}
	return &room, nil
}

func (d *Database) AddParticipant(ctx context.Context, roomID, userID uuid.UUID) error {
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&models.Room{}, "id = ?", roomID).Error; err != nil {
			return err
		}
		p := models.Participant{RoomID: roomID, UserID: userID, JoinedAt: time.Now().UTC()}
		return tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&p).Error
	})
	return translate(err, "room")
}

func (d *Database) IsParticipant(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&models.Participant{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	if err != nil {
		return false, translate(err, "participant")
	}
	return count > 0, nil
}

func (d *Database) ListUserRooms(ctx context.Context, userID uuid.UUID) ([]models.Room, error) {
	var rooms []models.Room
	err := d.db.WithContext(ctx).
		Joins("JOIN participants p ON p.room_id = rooms.id").
		Where("p.user_id = ?", userID).
		Preload("Participants.User").
		Find(&rooms).Error
	if err != nil {
		return nil, translate(err, "room")
	}
	return rooms, nil
}

func (d *Database) MarkRead(ctx context.Context, roomID, userID uuid.UUID, seq int64) (*models.Participant, error) {
	var p models.Participant
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room models.Room
		if err := tx.Select("id", "last_seq").First(&room, "id = ?", roomID).Error; err != nil {
			return translate(err, "room")
		}
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&p, "room_id = ? AND user_id = ?", roomID, userID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.KindForbidden, "not a participant of this room")
			}
			return err
		}
		if seq > room.LastSeq {
			seq = room.LastSeq
		}
		if seq <= p.LastReadSeq {
			return nil
		}
		p.LastReadSeq = seq
		return tx.Model(&models.Participant{}).
			Where("room_id = ? AND user_id = ?", roomID, userID).
			Update("last_read_seq", seq).Error
	})
	if err != nil {
		return nil, translate(err, "participant")
	}
	return &p, nil
}
