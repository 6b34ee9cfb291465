// Package badgerstore is the embedded storage backend. It keeps users, rooms
// and the per-room message logs in a single BadgerDB and relies on Badger's
// serializable transactions for every uniqueness rule: two transactions that
// read the same key and write it concurrently cannot both commit.
//
// Key layout:
//
//	user:{id}                 json models.User
//	handle:{handle}           user id
//	email:{email}             user id
//	room:{id}                 json models.Room
//	pair:{pairKey}            room id
//	member:{room}:{user}      json models.Participant
//	userroom:{user}:{room}    empty, reverse index
//	msg:{room}:{seq%020d}     json models.Message
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/thereayou/chat-relay/internal/apperr"
	"github.com/thereayou/chat-relay/internal/store"
)

const maxTxnRetries = 8

var _ store.Store = (*Store)(nil)

type Store struct {
	db  *badger.DB
	log *slog.Logger
}

// Open opens (or creates) a database under path. An empty path keeps
// everything in memory.
func Open(path string, log *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger open: %w", err)
	}
	return New(db, log), nil
}

func New(db *badger.DB, log *slog.Logger) *Store {
	return &Store{db: db, log: log}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// exec runs op off the caller's goroutine so that a context deadline bounds
// the wait even though Badger itself is not context aware.
func (s *Store) exec(ctx context.Context, op func() error) error {
	if err := ctx.Err(); err != nil {
		return apperr.FromContext(err)
	}
	done := make(chan error, 1)
	go func() { done <- op() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return apperr.FromContext(ctx.Err())
	}
}

func (s *Store) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	return s.exec(ctx, func() error { return s.db.View(fn) })
}

// update retries fn while Badger reports a write conflict. Every retry starts
// from a fresh snapshot so fn observes the winner's writes.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	return s.exec(ctx, func() error {
		var err error
		for attempt := 0; attempt < maxTxnRetries; attempt++ {
			err = s.db.Update(fn)
			if !errors.Is(err, badger.ErrConflict) {
				return err
			}
			s.log.Debug("badger transaction conflict, retrying", "attempt", attempt+1)
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
		return apperr.Wrap(apperr.KindConflict, "too much contention", err)
	})
}

func getJSON(txn *badger.Txn, key string, dst any) error {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dst)
	})
}

func setJSON(txn *badger.Txn, key string, src any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set([]byte(key), data)
}

func getString(txn *badger.Txn, key string) (string, error) {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return "", err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return string(val), nil
}

func exists(txn *badger.Txn, key string) (bool, error) {
	_, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

func notFound(err error, what string) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return apperr.New(apperr.KindNotFound, what+" not found")
	}
	return err
}
