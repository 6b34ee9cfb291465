package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/thereayou/chat-relay/internal/apperr"
	"github.com/thereayou/chat-relay/internal/models"
)

func msgPrefix(room uuid.UUID) string { return "msg:" + room.String() + ":" }

// msgKey pads the sequence to 20 digits so lexicographic key order is log
// order.
func msgKey(room uuid.UUID, seq int64) string {
	return fmt.Sprintf("%s%020d", msgPrefix(room), seq)
}

// AppendMessage reads the room record and writes it back with the new
// sequence, so concurrent appends to one room conflict and are retried in
// turn. Timestamps are strictly increasing within a room.
func (s *Store) AppendMessage(ctx context.Context, msg *models.Message) ([]models.Participant, error) {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	now := msg.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC().Truncate(time.Microsecond)

	var participants []models.Participant
	err := s.update(ctx, func(txn *badger.Txn) error {
		var room models.Room
		if err := getJSON(txn, roomKey(msg.RoomID), &room); err != nil {
			return notFound(err, "room")
		}
		var sender models.Participant
		if err := getJSON(txn, memberKey(msg.RoomID, msg.SenderID), &sender); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return apperr.New(apperr.KindForbidden, "not a participant of this room")
			}
			return err
		}

		createdAt := now
		if room.LastMessageAt != nil && !createdAt.After(*room.LastMessageAt) {
			createdAt = room.LastMessageAt.Add(time.Microsecond)
		}
		msg.Seq = room.LastSeq + 1
		msg.CreatedAt = createdAt
		if err := setJSON(txn, msgKey(msg.RoomID, msg.Seq), msg); err != nil {
			return err
		}

		room.LastSeq = msg.Seq
		room.LastMessageAt = &createdAt
		if err := setJSON(txn, roomKey(room.ID), &room); err != nil {
			return err
		}
		sender.LastReadSeq = msg.Seq
		if err := setJSON(txn, memberKey(msg.RoomID, msg.SenderID), &sender); err != nil {
			return err
		}

		var err error
		participants, err = loadParticipants(txn, msg.RoomID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return participants, nil
}

func (s *Store) ListMessages(ctx context.Context, roomID uuid.UUID, afterSeq, beforeSeq int64, limit int, fromEnd bool) ([]models.Message, error) {
	var messages []models.Message
	err := s.view(ctx, func(txn *badger.Txn) error {
		prefix := []byte(msgPrefix(roomID))
		opts := badger.DefaultIteratorOptions
		opts.Reverse = fromEnd
		it := txn.NewIterator(opts)
		defer it.Close()

		var seek []byte
		switch {
		case !fromEnd:
			seek = []byte(msgKey(roomID, afterSeq+1))
		case beforeSeq > 0:
			seek = []byte(msgKey(roomID, beforeSeq-1))
		default:
			seek = append(prefix, []byte("99999999999999999999")...)
		}

		for it.Seek(seek); it.ValidForPrefix(prefix) && len(messages) < limit; it.Next() {
			var m models.Message
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err != nil {
				return err
			}
			if m.Seq <= afterSeq || (beforeSeq > 0 && m.Seq >= beforeSeq) {
				break
			}
			messages = append(messages, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if fromEnd {
		messages = lo.Reverse(messages)
	}
	return messages, nil
}

func (s *Store) GetMessageBySeq(ctx context.Context, roomID uuid.UUID, seq int64) (*models.Message, error) {
	var m models.Message
	err := s.view(ctx, func(txn *badger.Txn) error {
		return notFound(getJSON(txn, msgKey(roomID, seq), &m), "message")
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}
