package handler

import (
	"encoding/json"
	"net/http"

	"meistro/internal/chat/service"
	apperrors "meistro/pkg/errors"
	httputil "meistro/pkg/http"
	"meistro/pkg/logger"
	"meistro/pkg/middleware"
	"meistro/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type ChatHandler struct {
	service service.ChatService
	log     *logger.Logger
}

func NewChatHandler(service service.ChatService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		log:     log,
	}
}

func (h *ChatHandler) Open(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actorID := middleware.CallerID(r.Context())
	if actorID == "" {
		h.writeErr(w, "Open", apperrors.Unauthorized("Authentication required"))
		return
	}

	var req model.OpenConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErr(w, "Open", apperrors.InvalidInput("Invalid request body"))
		return
	}

	conversation, err := h.service.OpenConversation(r.Context(), actorID, req.ParticipantID)
	if err != nil {
		h.writeErr(w, "Open", err)
		return
	}

	if err := httputil.WriteSuccess(w, conversation); err != nil {
		h.log.Error("failed to write success response", "handler", "Open", "error", err)
	}
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actorID := middleware.CallerID(r.Context())
	if actorID == "" {
		h.writeErr(w, "SendMessage", apperrors.Unauthorized("Authentication required"))
		return
	}

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErr(w, "SendMessage", apperrors.InvalidInput("Invalid request body"))
		return
	}

	message, err := h.service.SendMessage(r.Context(), actorID, ps.ByName("id"), &req)
	if err != nil {
		h.writeErr(w, "SendMessage", err)
		return
	}

	if err := httputil.WriteCreated(w, message); err != nil {
		h.log.Error("failed to write created response", "handler", "SendMessage", "error", err)
	}
}

// MarkRead has no body; it always targets "now".
func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actorID := middleware.CallerID(r.Context())
	if actorID == "" {
		h.writeErr(w, "MarkRead", apperrors.Unauthorized("Authentication required"))
		return
	}

	if err := h.service.MarkRead(r.Context(), actorID, ps.ByName("id")); err != nil {
		h.writeErr(w, "MarkRead", err)
		return
	}

	if err := httputil.WriteSuccess(w, map[string]any{"marked_read": true}); err != nil {
		h.log.Error("failed to write success response", "handler", "MarkRead", "error", err)
	}
}

func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actorID := middleware.CallerID(r.Context())
	if actorID == "" {
		h.writeErr(w, "ListMessages", apperrors.Unauthorized("Authentication required"))
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeErr(w, "ListMessages", err)
		return
	}

	messages, total, err := h.service.ListMessages(r.Context(), actorID, ps.ByName("id"), limit, offset)
	if err != nil {
		h.writeErr(w, "ListMessages", err)
		return
	}

	if err := httputil.WritePaginated(w, messages, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListMessages", "error", err)
	}
}

func (h *ChatHandler) writeErr(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "error", writeErr)
	}
}

func (h *ChatHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/conversations", h.Open)
	router.POST("/api/v1/conversations/id/:id/messages", h.SendMessage)
	router.POST("/api/v1/conversations/id/:id/read", h.MarkRead)
	router.GET("/api/v1/conversations/id/:id/messages", h.ListMessages)
}
