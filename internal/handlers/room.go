package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/thereayou/chat-relay/internal/directory"
	"github.com/thereayou/chat-relay/internal/handlers/dto"
	"github.com/thereayou/chat-relay/internal/rooms"
)

type RoomHandler struct {
	rooms     *rooms.Service
	directory *directory.Directory
	log       *slog.Logger
}

func NewRoomHandler(rooms *rooms.Service, dir *directory.Directory, log *slog.Logger) *RoomHandler {
	return &RoomHandler{rooms: rooms, directory: dir, log: log}
}

// CreateDirectRoom finds or creates the direct room with another user, named
// by id or by handle.
func (h *RoomHandler) CreateDirectRoom(c *gin.Context) {
	var req dto.DirectRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, h.log, err)
		return
	}

	ctx := c.Request.Context()
	var target = req.OtherUserID
	if target == nil {
		if req.OtherHandle == "" {
			bindError(c, h.log, errMissingTarget)
			return
		}
		other, err := h.directory.Lookup(ctx, req.OtherHandle)
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		target = &other.ID
	}

	room, err := h.rooms.FindOrCreateDirectRoom(ctx, currentUserID(c), *target)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewRoomResponse(room))
}

func (h *RoomHandler) CreateGroupRoom(c *gin.Context) {
	var req dto.GroupRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, h.log, err)
		return
	}

	room, err := h.rooms.CreateGroupRoom(c.Request.Context(), currentUserID(c), req.ParticipantIDs)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewRoomResponse(room))
}

func (h *RoomHandler) AddParticipant(c *gin.Context) {
	roomID, err := roomIDParam(c)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	var req dto.AddParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, h.log, err)
		return
	}

	if err := h.rooms.AddParticipant(c.Request.Context(), currentUserID(c), roomID, req.UserID); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RoomHandler) MarkRead(c *gin.Context) {
	roomID, err := roomIDParam(c)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	var req dto.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, h.log, err)
		return
	}

	p, err := h.rooms.MarkRead(c.Request.Context(), roomID, currentUserID(c), req.Seq)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.ReadResponse{RoomID: roomID, LastReadSeq: p.LastReadSeq})
}

func (h *RoomHandler) ListRooms(c *gin.Context) {
	summaries, err := h.rooms.ListRoomsForUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": lo.Map(summaries, func(s rooms.RoomSummary, _ int) dto.RoomSummaryResponse {
		return dto.NewRoomSummaryResponse(s)
	})})
}
