package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/scriptwell/scriptwell-backend/internal/modules/chat"
	chatsteps "github.com/scriptwell/scriptwell-backend/internal/modules/chat/steps"
	"github.com/scriptwell/scriptwell-backend/internal/platform/errkind"
	"github.com/scriptwell/scriptwell-backend/internal/platform/logger"
)

type ChatHandler struct {
	log  *logger.Logger
	chat *chat.Usecases
}

func NewChatHandler(log *logger.Logger, uc *chat.Usecases) *ChatHandler {
	return &ChatHandler{log: log.With("Handler", "ChatHandler"), chat: uc}
}

type chatRequest struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Message        string    `json:"message"`
	IntentHint     string    `json:"intent_hint,omitempty"`
	TopicOverride  string    `json:"topic_override,omitempty"`
	Budget         string    `json:"budget,omitempty"`
	ScenePosition  *int      `json:"scene_position,omitempty"`
	Character      string    `json:"character,omitempty"`
}

// Stream runs one chat turn over SSE. Answer text arrives as "delta"
// events, the turn metadata as a final "done" event. Errors after the
// stream has opened are sent as a terminal "error" event since the status
// line is already gone.
func (h *ChatHandler) Stream(c *gin.Context) {
	scriptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondDomainError(c, errkind.Validation("bad script id"))
		return
	}
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondDomainError(c, errkind.Validation("bad request body: %v", err))
		return
	}
	if req.Message == "" {
		RespondDomainError(c, errkind.Validation("message is required"))
		return
	}
	if req.ConversationID == uuid.Nil {
		req.ConversationID = uuid.New()
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	result, err := h.chat.Chat(c.Request.Context(), chatsteps.ChatRequest{
		ScriptID:       scriptID,
		ConversationID: req.ConversationID,
		Message:        req.Message,
		IntentHint:     req.IntentHint,
		TopicOverride:  req.TopicOverride,
		Budget:         req.Budget,
		Hints: chatsteps.Hints{
			ScenePosition: req.ScenePosition,
			Character:     req.Character,
		},
	}, func(delta string) {
		c.SSEvent("delta", gin.H{"text": delta})
		c.Writer.Flush()
	})
	if err != nil {
		h.log.Error("chat turn failed", "script_id", scriptID.String(), "error", err.Error())
		c.SSEvent("error", gin.H{
			"kind":    string(errkind.KindOf(err)),
			"message": err.Error(),
		})
		c.Writer.Flush()
		return
	}

	c.SSEvent("done", gin.H{
		"conversation_id":  req.ConversationID,
		"intent":           result.Intent,
		"topic_mode":       result.TopicMode,
		"topic_confidence": result.TopicConfidence,
		"tool_calls":       result.ToolCalls,
		"iterations":       result.Iterations,
	})
	c.Writer.Flush()
}
