package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/thereayou/chat-relay/internal/apperr"
	"github.com/thereayou/chat-relay/internal/directory"
	"github.com/thereayou/chat-relay/internal/models"
	"github.com/thereayou/chat-relay/pkg/auth"
)

var validate = validator.New()

type RegisterRequest struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6,max=72"`
	Handle   string `validate:"required"`
	Name     string `validate:"required"`
}

type AuthResponse struct {
	User        *models.User
	AccessToken string
	ExpiresAt   time.Time
}

// AuthService binds credentials to directory identities and issues the
// bearer tokens used by both HTTP and websocket clients.
type AuthService struct {
	directory *directory.Directory
	tokens    *auth.JWTManager
	blacklist auth.Blacklist
	log       *slog.Logger
}

func NewAuthService(dir *directory.Directory, tokens *auth.JWTManager, blacklist auth.Blacklist, log *slog.Logger) *AuthService {
	return &AuthService{directory: dir, tokens: tokens, blacklist: blacklist, log: log}
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidOperation, "invalid registration", err)
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user, err := s.directory.Register(ctx, directory.RegisterInput{
		Handle:       req.Handle,
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
	})
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Login reports every credential failure as AuthFailed so callers cannot
// probe which emails are registered.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	user, err := s.directory.FindByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.New(apperr.KindAuthFailed, "invalid email or password")
	}
	if err != nil {
		return nil, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperr.New(apperr.KindAuthFailed, "invalid email or password")
	}
	s.directory.TouchLastSeen(ctx, user.ID)
	return s.issue(user)
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return apperr.Wrap(apperr.KindAuthFailed, "invalid token", err)
	}
	if err := s.blacklist.Revoke(ctx, token, claims.ExpiresAt.Time); err != nil {
		return apperr.FromContext(err)
	}
	s.log.Info("token revoked", "user", claims.Subject, "jti", claims.ID)
	return nil
}

// Authenticate resolves a bearer token to its user. Revoked tokens and
// tokens of deleted users fail like malformed ones.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, apperr.New(apperr.KindAuthFailed, "missing token")
	}
	userID, _, err := s.tokens.UserID(token)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindAuthFailed, "invalid token", err)
	}
	revoked, err := s.blacklist.IsRevoked(ctx, token)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindAuthFailed, "token check failed", err)
	}
	if revoked {
		return nil, apperr.New(apperr.KindAuthFailed, "token is revoked")
	}
	user, err := s.directory.Get(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.New(apperr.KindAuthFailed, "unknown user")
	}
	return user, err
}

func (s *AuthService) issue(user *models.User) (*AuthResponse, error) {
	token, expiresAt, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{User: user, AccessToken: token, ExpiresAt: expiresAt}, nil
}
