package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/chat-relay/internal/directory"
	"github.com/thereayou/chat-relay/internal/handlers/dto"
)

type UserHandler struct {
	directory *directory.Directory
	log       *slog.Logger
}

func NewUserHandler(dir *directory.Directory, log *slog.Logger) *UserHandler {
	return &UserHandler{directory: dir, log: log}
}

func (h *UserHandler) GetMe(c *gin.Context) {
	user, err := h.directory.Get(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewMeResponse(user))
}

// UpdateMe changes the name and/or handle. Omitted fields stay as they are.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, h.log, err)
		return
	}

	user, err := h.directory.UpdateProfile(c.Request.Context(), currentUserID(c), directory.ProfileUpdate{
		Handle: req.Handle,
		Name:   req.Name,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewMeResponse(user))
}

func (h *UserHandler) GetByHandle(c *gin.Context) {
	user, err := h.directory.Lookup(c.Request.Context(), c.Param("handle"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewUserResponse(user))
}

func (h *UserHandler) HandleAvailable(c *gin.Context) {
	handle := directory.NormalizeHandle(c.Param("handle"))
	ok, err := h.directory.HandleAvailable(c.Request.Context(), handle)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.HandleAvailabilityResponse{Handle: handle, Available: ok})
}

func (h *UserHandler) SuggestHandle(c *gin.Context) {
	handle, err := h.directory.SuggestHandle(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.HandleSuggestionResponse{Handle: handle})
}
