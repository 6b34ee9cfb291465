package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/thereayou/chat-relay/internal/apperr"
	"github.com/thereayou/chat-relay/internal/models"
)

func roomKey(id uuid.UUID) string  { return "room:" + id.String() }
func pairKey(key string) string     { return "pair:" + key }
func memberPrefix(room uuid.UUID) string {
	return "member:" + room.String() + ":"
}
func memberKey(room, user uuid.UUID) string { return memberPrefix(room) + user.String() }
func userRoomPrefix(user uuid.UUID) string  { return "userroom:" + user.String() + ":" }
func userRoomKey(user, room uuid.UUID) string {
	return userRoomPrefix(user) + room.String()
}

func (s *Store) FindDirectRoom(ctx context.Context, key string) (*models.Room, error) {
	var room *models.Room
	err := s.view(ctx, func(txn *badger.Txn) error {
		id, err := getString(txn, pairKey(key))
		if err != nil {
			return notFound(err, "room")
		}
		roomID, err := uuid.Parse(id)
		if err != nil {
			return err
		}
		room, err = loadRoom(txn, roomID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

// CreateRoom does not retry a direct room on conflict: losing the pair key
// race is reported as Conflict so the caller re-reads the winner's room.
// Group rooms have no shared key and are retried like any other write.
func (s *Store) CreateRoom(ctx context.Context, room *models.Room, members []uuid.UUID) error {
	if room.ID == uuid.Nil {
		room.ID = uuid.New()
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	create := func(txn *badger.Txn) error {
		if room.PairKey != nil {
			taken, err := exists(txn, pairKey(*room.PairKey))
			if err != nil {
				return err
			}
			if taken {
				return apperr.ErrConflict
			}
			if err := txn.Set([]byte(pairKey(*room.PairKey)), []byte(room.ID.String())); err != nil {
				return err
			}
		}
		for _, userID := range members {
			ok, err := exists(txn, userKey(userID))
			if err != nil {
				return err
			}
			if !ok {
				return apperr.New(apperr.KindNotFound, "user not found")
			}
		}
		if err := setJSON(txn, roomKey(room.ID), room); err != nil {
			return err
		}
		participants := make([]models.Participant, 0, len(members))
		for _, userID := range members {
			p := models.Participant{RoomID: room.ID, UserID: userID, JoinedAt: room.CreatedAt}
			if err := putParticipant(txn, p); err != nil {
				return err
			}
			participants = append(participants, p)
		}
		room.Participants = participants
		return nil
	}

	if room.PairKey == nil {
		return s.update(ctx, create)
	}
	return s.exec(ctx, func() error {
		err := s.db.Update(create)
		if errors.Is(err, badger.ErrConflict) {
			return apperr.Wrap(apperr.KindConflict, "room created concurrently", err)
		}
		return err
	})
}

func (s *Store) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var room *models.Room
	err := s.view(ctx, func(txn *badger.Txn) (err error) {
		room, err = loadRoom(txn, id, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (s *Store) AddParticipant(ctx context.Context, roomID, userID uuid.UUID) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		if ok, err := exists(txn, roomKey(roomID)); err != nil || !ok {
			if err != nil {
				return err
			}
			return apperr.New(apperr.KindNotFound, "room not found")
		}
		if ok, err := exists(txn, userKey(userID)); err != nil || !ok {
			if err != nil {
				return err
			}
			return apperr.New(apperr.KindNotFound, "user not found")
		}
		already, err := exists(txn, memberKey(roomID, userID))
		if err != nil || already {
			return err
		}
		return putParticipant(txn, models.Participant{RoomID: roomID, UserID: userID, JoinedAt: time.Now().UTC()})
	})
}

func (s *Store) IsParticipant(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	var ok bool
	err := s.view(ctx, func(txn *badger.Txn) (err error) {
		ok, err = exists(txn, memberKey(roomID, userID))
		return err
	})
	return ok, err
}

func (s *Store) ListUserRooms(ctx context.Context, userID uuid.UUID) ([]models.Room, error) {
	var rooms []models.Room
	err := s.view(ctx, func(txn *badger.Txn) error {
		prefix := userRoomPrefix(userID)
		var ids []uuid.UUID
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			id, err := uuid.Parse(strings.TrimPrefix(string(it.Item().Key()), prefix))
			if err != nil {
				it.Close()
				return err
			}
			ids = append(ids, id)
		}
		it.Close()

		for _, id := range ids {
			room, err := loadRoom(txn, id, true)
			if err != nil {
				return err
			}
			rooms = append(rooms, *room)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

func (s *Store) MarkRead(ctx context.Context, roomID, userID uuid.UUID, seq int64) (*models.Participant, error) {
	var p models.Participant
	err := s.update(ctx, func(txn *badger.Txn) error {
		var room models.Room
		if err := getJSON(txn, roomKey(roomID), &room); err != nil {
			return notFound(err, "room")
		}
		if err := getJSON(txn, memberKey(roomID, userID), &p); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
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
		return setJSON(txn, memberKey(roomID, userID), &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func putParticipant(txn *badger.Txn, p models.Participant) error {
	if err := setJSON(txn, memberKey(p.RoomID, p.UserID), &p); err != nil {
		return err
	}
	return txn.Set([]byte(userRoomKey(p.UserID, p.RoomID)), nil)
}

func loadParticipants(txn *badger.Txn, roomID uuid.UUID, withUsers bool) ([]models.Participant, error) {
	prefix := []byte(memberPrefix(roomID))
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	var participants []models.Participant
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var p models.Participant
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &p)
		}); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	if withUsers {
		for i := range participants {
			if err := getJSON(txn, userKey(participants[i].UserID), &participants[i].User); err != nil {
				return nil, notFound(err, "user")
			}
		}
	}
	return participants, nil
}

func loadRoom(txn *badger.Txn, id uuid.UUID, withUsers bool) (*models.Room, error) {
	var room models.Room
	if err := getJSON(txn, roomKey(id), &room); err != nil {
		return nil, notFound(err, "room")
	}
	participants, err := loadParticipants(txn, id, withUsers)
	if err != nil {
		return nil, err
	}
	room.Participants = participants
	return &room, nil
}
