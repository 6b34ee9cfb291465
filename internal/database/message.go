package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/thereayou/chat-relay/internal/apperr"
	"github.com/thereayou/chat-relay/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AppendMessage locks the room row so that sequence assignment is serialized
// per room while appends to different rooms proceed in parallel.
func (d *Database) AppendMessage(ctx context.Context, msg *models.Message) ([]models.Participant, error) {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	now := msg.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC().Truncate(time.Microsecond)

	var participants []models.Participant
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room models.Room
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&room, "id = ?", msg.RoomID).Error
		if err != nil {
			return translate(err, "room")
		}
		var sender models.Participant
		err = tx.First(&sender, "room_id = ? AND user_id = ?", msg.RoomID, msg.SenderID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.KindForbidden, "not a participant of this room")
		}
		if err != nil {
			return err
		}

		createdAt := now
		if room.LastMessageAt != nil && !createdAt.After(*room.LastMessageAt) {
			createdAt = room.LastMessageAt.Add(time.Microsecond)
		}
		msg.Seq = room.LastSeq + 1
		msg.CreatedAt = createdAt
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		err = tx.Model(&models.Room{}).Where("id = ?", room.ID).Updates(map[string]any{
			"last_seq":        msg.Seq,
			"last_message_at": createdAt,
		}).Error
		if err != nil {
			return err
		}
		err = tx.Model(&models.Participant{}).
			Where("room_id = ? AND user_id = ?", msg.RoomID, msg.SenderID).
			Update("last_read_seq", msg.Seq).Error
		if err != nil {
			return err
		}
		return tx.Where("room_id = ?", msg.RoomID).Find(&participants).Error
	})
	if err != nil {
		return nil, translate(err, "message")
	}
	return participants, nil
}

func (d *Database) ListMessages(ctx context.Context, roomID uuid.UUID, afterSeq, beforeSeq int64, limit int, fromEnd bool) ([]models.Message, error) {
	var messages []models.Message

	query := d.db.WithContext(ctx).Where("room_id = ? AND seq > ?", roomID, afterSeq)
	if beforeSeq > 0 {
		query = query.Where("seq < ?", beforeSeq)
	}
	order := "seq ASC"
	if fromEnd {
		order = "seq DESC"
	}

	err := query.Order(order).Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, translate(err, "message")
	}

	if fromEnd {
		messages = lo.Reverse(messages)
	}
	return messages, nil
}

func (d *Database) GetMessageBySeq(ctx context.Context, roomID uuid.UUID, seq int64) (*models.Message, error) {
	var message models.Message
	if err := d.db.WithContext(ctx).First(&message, "room_id = ? AND seq = ?", roomID, seq).Error; err != nil {
		return nil, translate(err, "message")
	}
	return &message, nil
}
