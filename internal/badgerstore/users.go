package badgerstore

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/thereayou/chat-relay/internal/apperr"
	"github.com/thereayou/chat-relay/internal/models"
)

func userKey(id uuid.UUID) string   { return "user:" + id.String() }
func handleKey(handle string) string { return "handle:" + handle }
func emailKey(email string) string   { return "email:" + email }

// CreateUser claims the handle and email keys in the same transaction as the
// user record. Two concurrent registrations of one handle both read the
// handle key, so only the first commit wins; the retry of the loser sees the
// key and fails with HandleTaken.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		taken, err := exists(txn, handleKey(user.Handle))
		if err != nil {
			return err
		}
		if taken {
			return apperr.ErrHandleTaken
		}
		taken, err = exists(txn, emailKey(user.Email))
		if err != nil {
			return err
		}
		if taken {
			return apperr.ErrEmailTaken
		}
		if err := setJSON(txn, userKey(user.ID), user); err != nil {
			return err
		}
		if err := txn.Set([]byte(handleKey(user.Handle)), []byte(user.ID.String())); err != nil {
			return err
		}
		return txn.Set([]byte(emailKey(user.Email)), []byte(user.ID.String()))
	})
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.view(ctx, func(txn *badger.Txn) error {
		return notFound(getJSON(txn, userKey(id), &user), "user")
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) FindUserByHandle(ctx context.Context, handle string) (*models.User, error) {
	return s.findUserBy(ctx, handleKey(handle))
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUserBy(ctx, emailKey(email))
}

func (s *Store) findUserBy(ctx context.Context, indexKey string) (*models.User, error) {
	var user models.User
	err := s.view(ctx, func(txn *badger.Txn) error {
		id, err := getString(txn, indexKey)
		if err != nil {
			return notFound(err, "user")
		}
		return notFound(getJSON(txn, "user:"+id, &user), "user")
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) UpdateUserProfile(ctx context.Context, id uuid.UUID, handle, name string) (*models.User, error) {
	var user models.User
	err := s.update(ctx, func(txn *badger.Txn) error {
		if err := getJSON(txn, userKey(id), &user); err != nil {
			return notFound(err, "user")
		}
		if handle != "" && handle != user.Handle {
			owner, err := getString(txn, handleKey(handle))
			switch {
			case err == nil && owner != id.String():
				return apperr.ErrHandleTaken
			case err != nil && !errors.Is(err, badger.ErrKeyNotFound):
				return err
			}
			if err := txn.Delete([]byte(handleKey(user.Handle))); err != nil {
				return err
			}
			if err := txn.Set([]byte(handleKey(handle)), []byte(id.String())); err != nil {
				return err
			}
			user.Handle = handle
		}
		if name != "" {
			user.Name = name
		}
		return setJSON(txn, userKey(id), &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) UpdateLastSeen(ctx context.Context, id uuid.UUID) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		var user models.User
		if err := getJSON(txn, userKey(id), &user); err != nil {
			return notFound(err, "user")
		}
		user.LastSeenAt = time.Now().UTC()
		return setJSON(txn, userKey(id), &user)
	})
}
