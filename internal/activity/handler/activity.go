package handler

import (
	"net/http"

	"meistro/internal/activity/service"
	apperrors "meistro/pkg/errors"
	httputil "meistro/pkg/http"
	"meistro/pkg/logger"
	"meistro/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

type ActivityHandler struct {
	service service.ActivityService
	log     *logger.Logger
}

func NewActivityHandler(service service.ActivityService, log *logger.Logger) *ActivityHandler {
	return &ActivityHandler{
		service: service,
		log:     log,
	}
}

// Unread returns the caller's activity badge. The service degrades to zeros
// internally, so this endpoint only fails for unauthenticated callers.
func (h *ActivityHandler) Unread(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actorID := middleware.CallerID(r.Context())
	if actorID == "" {
		if writeErr := httputil.WriteError(w, apperrors.Unauthorized("Authentication required")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Unread", "error", writeErr)
		}
		return
	}

	counts := h.service.UnreadCount(r.Context(), actorID)

	if err := httputil.WriteSuccess(w, counts); err != nil {
		h.log.Error("failed to write success response", "handler", "Unread", "error", err)
	}
}

func (h *ActivityHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/activity/unread", h.Unread)
}
