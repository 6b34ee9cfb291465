package database

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/thereayou/chat-relay/internal/apperr"
	"gorm.io/gorm"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// translate maps driver errors onto apperr kinds. Unique violations are told
// apart by the index name declared on the models.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.New(apperr.KindNotFound, what+" not found")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			switch pgErr.ConstraintName {
			case "idx_users_handle":
				return apperr.ErrHandleTaken
			case "idx_users_email":
				return apperr.ErrEmailTaken
			case "idx_rooms_pair_key":
				return apperr.Wrap(apperr.KindConflict, "room created concurrently", err)
			default:
				return apperr.Wrap(apperr.KindConflict, what+" already exists", err)
			}
		case codeForeignKeyViolation:
			return apperr.Wrap(apperr.KindNotFound, "referenced user not found", err)
		}
	}
	return apperr.FromContext(err)
}
