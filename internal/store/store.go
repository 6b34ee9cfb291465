//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=../mocks/mock_store.go -package=mocks

// Package store declares the persistence ports used by the directory, the
// membership store and the message log. Implementations report failures with
// apperr kinds: NotFound for missing rows, HandleTaken for a claimed handle,
// Conflict for a lost creation race and Forbidden for a sender outside the
// room.
package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/thereayou/chat-relay/internal/models"
)

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindUserByHandle(ctx context.Context, handle string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	// UpdateUserProfile applies handle and name in one write. An empty value
	// leaves the field unchanged.
	UpdateUserProfile(ctx context.Context, id uuid.UUID, handle, name string) (*models.User, error)
	UpdateLastSeen(ctx context.Context, id uuid.UUID) error
}

type RoomStore interface {
	FindDirectRoom(ctx context.Context, pairKey string) (*models.Room, error)
	// CreateRoom persists the room with its participants atomically. A
	// direct room whose pair key already exists fails with Conflict.
	CreateRoom(ctx context.Context, room *models.Room, members []uuid.UUID) error
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	AddParticipant(ctx context.Context, roomID, userID uuid.UUID) error
	IsParticipant(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
	ListUserRooms(ctx context.Context, userID uuid.UUID) ([]models.Room, error)
	// MarkRead moves the read pointer forward, never back, clamped to the
	// room's last sequence.
	MarkRead(ctx context.Context, roomID, userID uuid.UUID, seq int64) (*models.Participant, error)
}

type MessageStore interface {
	// AppendMessage assigns Seq and CreatedAt, persists the message, advances
	// the sender's read pointer and returns the room's participants as of the
	// write. msg.CreatedAt holds the server clock reading on input.
	AppendMessage(ctx context.Context, msg *models.Message) ([]models.Participant, error)
	// ListMessages returns up to limit messages with afterSeq < Seq < beforeSeq
	// in ascending order. beforeSeq <= 0 means unbounded. When fromEnd is set
	// the window is anchored at beforeSeq instead of afterSeq.
	ListMessages(ctx context.Context, roomID uuid.UUID, afterSeq, beforeSeq int64, limit int, fromEnd bool) ([]models.Message, error)
	GetMessageBySeq(ctx context.Context, roomID uuid.UUID, seq int64) (*models.Message, error)
}

type Store interface {
	UserStore
	RoomStore
	MessageStore
	Close() error
}
