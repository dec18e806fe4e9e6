package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pulsechat/pulse/internal/middleware"
	"github.com/pulsechat/pulse/internal/repository"
	"go.uber.org/zap"
)

// MessageHandler serves message history. Sending goes through the
// realtime broker, not REST: history here is the durable, authoritative
// record every broadcast message is guaranteed to appear in.
type MessageHandler struct {
	messages repository.MessageRepository
	chats    repository.ChatRepository
	logger   *zap.Logger
}

func NewMessageHandler(messages repository.MessageRepository, chats repository.ChatRepository, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, chats: chats, logger: logger}
}

// List handles GET /v1/chats/:id/messages?before=123&limit=50
//
// Cursor pagination: "before" is a message ID, 0 means "from the latest".
// "limit" defaults to 50 and is capped at 100.
func (h *MessageHandler) List(c *gin.Context) {
	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	userID := middleware.GetUserID(c)
	member, err := h.chats.IsParticipant(c.Request.Context(), chatID, userID)
	if err != nil {
		h.logger.Error("failed to check participant", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant in this chat"})
		return
	}

	var before int64
	if b := c.Query("before"); b != "" {
		before, err = strconv.ParseInt(b, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'before' parameter"})
			return
		}
	}

	limit := 50
	if l := c.Query("limit"); l != "" {
		limit, err = strconv.Atoi(l)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit' parameter"})
			return
		}
		if limit > 100 {
			limit = 100
		}
	}

	messages, err := h.messages.ListByChat(c.Request.Context(), chatID, before, limit)
	if err != nil {
		h.logger.Error("failed to list messages", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}

	c.JSON(http.StatusOK, messages)
}
