package directory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/chat-relay/internal/apperr"
	"github.com/thereayou/chat-relay/internal/badgerstore"
	"github.com/thereayou/chat-relay/internal/mocks"
	"github.com/thereayou/chat-relay/internal/models"
	"go.uber.org/mock/gomock"
)

func newBadgerDirectory(t *testing.T) *Directory {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	s, err := badgerstore.Open("", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return New(s, log, 5*time.Second)
}

func TestRegister_NormalizesAndStores(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserStore(ctrl)
	d := New(users, logs.GetLoggerFromLevel(slog.LevelDebug), time.Second)

	users.EXPECT().CreateUser(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, u *models.User) error {
			req.Equal("ahmed2024", u.Handle)
			req.Equal("ahmed@example.com", u.Email)
			_, hasDeadline := ctx.Deadline()
			req.True(hasDeadline)
			return nil
		})

	user, err := d.Register(context.Background(), RegisterInput{
		Handle: "Ahmed2024", Name: " Ahmed ", Email: "Ahmed@Example.com", PasswordHash: "hash",
	})
	req.NoError(err)
	req.Equal("Ahmed", user.Name)
	req.NotEqual(uuid.Nil, user.ID)
}

func TestRegister_RejectsInvalidInput(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserStore(ctrl)
	d := New(users, logs.GetLoggerFromLevel(slog.LevelDebug), time.Second)

	// Given no store call is expected
	_, err := d.Register(context.Background(), RegisterInput{Handle: "ab", Name: "x"})
	require.ErrorIs(t, err, apperr.ErrInvalidOperation)

	_, err = d.Register(context.Background(), RegisterInput{Handle: "user123", Name: "   "})
	require.ErrorIs(t, err, apperr.ErrInvalidOperation)
}

func TestRegister_StoreTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserStore(ctrl)
	d := New(users, logs.GetLoggerFromLevel(slog.LevelDebug), 10*time.Millisecond)

	users.EXPECT().CreateUser(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ *models.User) error {
			<-ctx.Done()
			return ctx.Err()
		})

	_, err := d.Register(context.Background(), RegisterInput{Handle: "user123", Name: "x"})
	require.ErrorIs(t, err, apperr.ErrTimeout)
}

func TestRegister_DuplicateHandle(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	d := newBadgerDirectory(t)

	_, err := d.Register(ctx, RegisterInput{Handle: "ahmed2024", Name: "Ahmed", Email: "a@example.com"})
	req.NoError(err)

	_, err = d.Register(ctx, RegisterInput{Handle: "AHMED2024", Name: "Other", Email: "b@example.com"})
	req.ErrorIs(err, apperr.ErrHandleTaken)
}

func TestRegister_ConcurrentSameHandle(t *testing.T) {
	req := require.New(t)
	d := newBadgerDirectory(t)

	const n = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	var winners, taken int
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := d.Register(context.Background(), RegisterInput{
				Handle: "user123", Name: "racer", Email: fmt.Sprintf("r%d@example.com", i),
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners++
			} else if apperr.KindOf(err) == apperr.KindHandleTaken {
				taken++
			}
		}(i)
	}
	wg.Wait()

	req.Equal(1, winners)
	req.Equal(n-1, taken)
}

func TestLookupAndAvailability(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	d := newBadgerDirectory(t)
	registered, err := d.Register(ctx, RegisterInput{Handle: "ahmed2024", Name: "Ahmed", Email: "a@example.com"})
	req.NoError(err)

	user, err := d.Lookup(ctx, "@Ahmed2024")
	req.NoError(err)
	req.Equal(registered.ID, user.ID)

	_, err = d.Lookup(ctx, "nobody99")
	req.ErrorIs(err, apperr.ErrNotFound)
	_, err = d.Lookup(ctx, "ab")
	req.ErrorIs(err, apperr.ErrNotFound)

	ok, err := d.HandleAvailable(ctx, "ahmed2024")
	req.NoError(err)
	req.False(ok)
	ok, err = d.HandleAvailable(ctx, "freehandle")
	req.NoError(err)
	req.True(ok)
	_, err = d.HandleAvailable(ctx, "ab")
	req.ErrorIs(err, apperr.ErrInvalidOperation)

	suggestion, err := d.SuggestHandle(ctx)
	req.NoError(err)
	req.NoError(ValidateHandle(suggestion))
}

func TestUpdateProfile(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	d := newBadgerDirectory(t)
	ahmed, err := d.Register(ctx, RegisterInput{Handle: "ahmed2024", Name: "Ahmed", Email: "a@example.com"})
	req.NoError(err)
	_, err = d.Register(ctx, RegisterInput{Handle: "sara2024", Name: "Sara", Email: "s@example.com"})
	req.NoError(err)

	taken := "sara2024"
	_, err = d.UpdateProfile(ctx, ahmed.ID, ProfileUpdate{Handle: &taken})
	req.ErrorIs(err, apperr.ErrHandleTaken)

	invalid := "ab"
	_, err = d.UpdateProfile(ctx, ahmed.ID, ProfileUpdate{Handle: &invalid})
	req.ErrorIs(err, apperr.ErrInvalidOperation)

	handle, name := "Ahmed_2025", "Ahmed K"
	updated, err := d.UpdateProfile(ctx, ahmed.ID, ProfileUpdate{Handle: &handle, Name: &name})
	req.NoError(err)
	req.Equal("ahmed2025", updated.Handle)
	req.Equal("Ahmed K", updated.Name)

	_, err = d.Lookup(ctx, "ahmed2024")
	req.ErrorIs(err, apperr.ErrNotFound)

	_, err = d.UpdateProfile(ctx, uuid.New(), ProfileUpdate{Name: &name})
	req.ErrorIs(err, apperr.ErrNotFound)
}
