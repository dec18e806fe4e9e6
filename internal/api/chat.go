package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pulsechat/pulse/internal/middleware"
	"github.com/pulsechat/pulse/internal/repository"
	"go.uber.org/zap"
)

// ChatHandler handles conversation CRUD. The realtime layer does the
// interesting work; these endpoints exist so clients can discover and
// create the chats they then join over the socket.
type ChatHandler struct {
	chats  repository.ChatRepository
	logger *zap.Logger
}

func NewChatHandler(chats repository.ChatRepository, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chats: chats, logger: logger}
}

// createChatRequest is the JSON body for POST /v1/chats. The creator is
// always added as a participant whether or not they list themselves.
type createChatRequest struct {
	Name           string      `json:"name"`
	IsGroup        bool        `json:"is_group"`
	ParticipantIDs []uuid.UUID `json:"participant_ids" binding:"required,min=1"`
}

// Create handles POST /v1/chats
func (h *ChatHandler) Create(c *gin.Context) {
	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := middleware.GetUserID(c)

	participants := req.ParticipantIDs
	include := true
	for _, id := range participants {
		if id == userID {
			include = false
			break
		}
	}
	if include {
		participants = append(participants, userID)
	}

	chat, err := h.chats.Create(c.Request.Context(), req.Name, req.IsGroup, participants)
	if err != nil {
		h.logger.Error("failed to create chat", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create chat"})
		return
	}

	c.JSON(http.StatusCreated, chat)
}

// List handles GET /v1/chats — the caller's conversations, most recently
// active first.
func (h *ChatHandler) List(c *gin.Context) {
	userID := middleware.GetUserID(c)

	chats, err := h.chats.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list chats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list chats"})
		return
	}

	c.JSON(http.StatusOK, chats)
}

// GetByID handles GET /v1/chats/:id
func (h *ChatHandler) GetByID(c *gin.Context) {
	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	userID := middleware.GetUserID(c)
	member, err := h.chats.IsParticipant(c.Request.Context(), chatID, userID)
	if err != nil {
		h.logger.Error("failed to check participant", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get chat"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant in this chat"})
		return
	}

	chat, err := h.chats.GetByID(c.Request.Context(), chatID)
	if err != nil {
		h.logger.Error("failed to get chat", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get chat"})
		return
	}
	if chat == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		return
	}

	c.JSON(http.StatusOK, chat)
}

// ListParticipants handles GET /v1/chats/:id/participants
func (h *ChatHandler) ListParticipants(c *gin.Context) {
	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	userID := middleware.GetUserID(c)
	member, err := h.chats.IsParticipant(c.Request.Context(), chatID, userID)
	if err != nil {
		h.logger.Error("failed to check participant", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list participants"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant in this chat"})
		return
	}

	participants, err := h.chats.ListParticipants(c.Request.Context(), chatID)
	if err != nil {
		h.logger.Error("failed to list participants", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list participants"})
		return
	}

	c.JSON(http.StatusOK, participants)
}
