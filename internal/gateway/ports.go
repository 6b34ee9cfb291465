//go:generate go run go.uber.org/mock/mockgen -source=ports.go -destination=../mocks/mock_gateway.go -package=mocks

package gateway

import (
	"context"

	"github.com/google/uuid"
	"github.com/thereayou/chat-relay/internal/models"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

type Rooms interface {
	IsParticipant(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
	MarkRead(ctx context.Context, roomID, userID uuid.UUID, seq int64) (*models.Participant, error)
}

type MessageLog interface {
	Append(ctx context.Context, roomID, senderID uuid.UUID, content string) (*models.Message, error)
}
