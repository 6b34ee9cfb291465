// Package directory owns user identities and the handle namespace.
package directory

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/chat-relay/internal/apperr"
	"github.com/thereayou/chat-relay/internal/models"
	"github.com/thereayou/chat-relay/internal/store"
)

const suggestAttempts = 5

type RegisterInput struct {
	Handle       string
	Name         string
	Email        string
	PasswordHash string
}

// ProfileUpdate leaves nil fields unchanged.
type ProfileUpdate struct {
	Handle *string
	Name   *string
}

type Directory struct {
	users   store.UserStore
	log     *slog.Logger
	timeout time.Duration
}

func New(users store.UserStore, log *slog.Logger, timeout time.Duration) *Directory {
	return &Directory{users: users, log: log, timeout: timeout}
}

func (d *Directory) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.timeout)
}

// Register creates a user under a normalized handle. The store's unique
// handle key decides between concurrent registrants.
func (d *Directory) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	handle := NormalizeHandle(in.Handle)
	if err := ValidateHandle(handle); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.New(apperr.KindInvalidOperation, "name is required")
	}

	user := &models.User{
		ID:           uuid.New(),
		Handle:       handle,
		Name:         name,
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: in.PasswordHash,
		CreatedAt:    time.Now().UTC(),
	}
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	if err := d.users.CreateUser(ctx, user); err != nil {
		return nil, apperr.FromContext(err)
	}
	d.log.Info("user registered", "user", user.ID, "handle", user.Handle)
	return user, nil
}

// Lookup resolves a handle. Input that cannot be a handle is reported as
// NotFound.
func (d *Directory) Lookup(ctx context.Context, raw string) (*models.User, error) {
	handle := NormalizeHandle(raw)
	if ValidateHandle(handle) != nil {
		return nil, apperr.New(apperr.KindNotFound, "user not found")
	}
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	user, err := d.users.FindUserByHandle(ctx, handle)
	return user, apperr.FromContext(err)
}

func (d *Directory) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	user, err := d.users.GetUser(ctx, userID)
	return user, apperr.FromContext(err)
}

func (d *Directory) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	user, err := d.users.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	return user, apperr.FromContext(err)
}

func (d *Directory) UpdateProfile(ctx context.Context, userID uuid.UUID, upd ProfileUpdate) (*models.User, error) {
	var handle, name string
	if upd.Handle != nil {
		handle = NormalizeHandle(*upd.Handle)
		if err := ValidateHandle(handle); err != nil {
			return nil, err
		}
	}
	if upd.Name != nil {
		name = strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, apperr.New(apperr.KindInvalidOperation, "name must not be empty")
		}
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	user, err := d.users.UpdateUserProfile(ctx, userID, handle, name)
	if err != nil {
		return nil, apperr.FromContext(err)
	}
	return user, nil
}

// HandleAvailable rejects malformed handles instead of reporting them as
// available.
func (d *Directory) HandleAvailable(ctx context.Context, raw string) (bool, error) {
	handle := NormalizeHandle(raw)
	if err := ValidateHandle(handle); err != nil {
		return false, err
	}
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	_, err := d.users.FindUserByHandle(ctx, handle)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, apperr.ErrNotFound):
		return true, nil
	default:
		return false, apperr.FromContext(err)
	}
}

// SuggestHandle returns a random handle that was free when checked.
func (d *Directory) SuggestHandle(ctx context.Context) (string, error) {
	for i := 0; i < suggestAttempts; i++ {
		handle := RandomHandle()
		ok, err := d.HandleAvailable(ctx, handle)
		if err != nil {
			return "", err
		}
		if ok {
			return handle, nil
		}
	}
	return "", apperr.New(apperr.KindConflict, "could not find a free handle")
}

func (d *Directory) TouchLastSeen(ctx context.Context, userID uuid.UUID) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	if err := d.users.UpdateLastSeen(ctx, userID); err != nil {
		d.log.Warn("update last seen", "user", userID, "error", err)
	}
}
