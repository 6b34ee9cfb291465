package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/chat-relay/internal/apperr"
	"github.com/thereayou/chat-relay/internal/handlers/dto"
	"github.com/thereayou/chat-relay/internal/messagelog"
)

type HTTPMessageHandler struct {
	messages *messagelog.Log
	log      *slog.Logger
}

func NewHTTPMessageHandler(messages *messagelog.Log, log *slog.Logger) *HTTPMessageHandler {
	return &HTTPMessageHandler{messages: messages, log: log}
}

func (h *HTTPMessageHandler) SendMessage(c *gin.Context) {
	roomID, err := roomIDParam(c)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, h.log, err)
		return
	}

	msg, err := h.messages.Append(c.Request.Context(), roomID, currentUserID(c), req.Content)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewMessageResponse(msg))
}

// GetRoomMessages pages through the room's history. direction=backward pages
// toward older messages; an empty cursor then means the latest page.
func (h *HTTPMessageHandler) GetRoomMessages(c *gin.Context) {
	roomID, err := roomIDParam(c)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	q := messagelog.HistoryQuery{Cursor: c.Query("cursor")}
	if l := c.Query("limit"); l != "" {
		q.Limit, err = strconv.Atoi(l)
		if err != nil || q.Limit <= 0 {
			respondError(c, h.log, apperr.New(apperr.KindInvalidOperation, "limit must be a positive integer"))
			return
		}
	}
	switch c.DefaultQuery("direction", "forward") {
	case "forward":
	case "backward":
		q.Backward = true
	default:
		respondError(c, h.log, apperr.New(apperr.KindInvalidOperation, "direction must be forward or backward"))
		return
	}

	page, err := h.messages.FetchHistory(c.Request.Context(), currentUserID(c), roomID, q)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewHistoryResponse(page))
}
