package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/thereayou/chat-relay/internal/apperr"
	"github.com/thereayou/chat-relay/internal/middleware"
)

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// respondError writes {"error": {"kind", "message"}} with the status that
// matches the error kind. Internal causes are logged, never returned.
func respondError(c *gin.Context, log *slog.Logger, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if status >= http.StatusInternalServerError && kind != apperr.KindTimeout {
		log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": errorBody{Kind: string(kind), Message: apperr.Message(err)}})
}

// bindError reports a binding or validation failure as InvalidOperation.
func bindError(c *gin.Context, log *slog.Logger, err error) {
	respondError(c, log, apperr.Wrap(apperr.KindInvalidOperation, "invalid request: "+err.Error(), err))
}

func roomIDParam(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.New(apperr.KindInvalidOperation, "invalid room id")
	}
	return id, nil
}

func currentUserID(c *gin.Context) uuid.UUID {
	return c.MustGet(middleware.UserIDKey).(uuid.UUID)
}

var errMissingTarget = errors.New("otherUserId or otherHandle is required")
