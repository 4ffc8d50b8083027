package handler

import (
	"encoding/json"
	"net/http"

	"meistro/internal/booking/service"
	apperrors "meistro/pkg/errors"
	httputil "meistro/pkg/http"
	"meistro/pkg/logger"
	"meistro/pkg/middleware"
	"meistro/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

// Create accepts booking requests from authenticated customers and from
// guests, who identify themselves through contact fields instead.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErr(w, "Create", apperrors.InvalidInput("Invalid request body"))
		return
	}

	actorID := middleware.CallerID(r.Context())

	booking, err := h.service.Create(r.Context(), actorID, &req)
	if err != nil {
		h.writeErr(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actorID := middleware.CallerID(r.Context())
	if actorID == "" {
		h.writeErr(w, "GetByID", apperrors.Unauthorized("Authentication required"))
		return
	}

	booking, err := h.service.GetByID(r.Context(), actorID, ps.ByName("id"))
	if err != nil {
		h.writeErr(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "error", err)
	}
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actorID := middleware.CallerID(r.Context())
	if actorID == "" {
		h.writeErr(w, "List", apperrors.Unauthorized("Authentication required"))
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeErr(w, "List", err)
		return
	}

	role := r.URL.Query().Get("role")
	status := model.BookingStatus(r.URL.Query().Get("status"))

	bookings, total, err := h.service.ListForUser(r.Context(), actorID, role, status, limit, offset)
	if err != nil {
		h.writeErr(w, "List", err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "error", err)
	}
}

func (h *BookingHandler) Transition(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actorID := middleware.CallerID(r.Context())
	if actorID == "" {
		h.writeErr(w, "Transition", apperrors.Unauthorized("Authentication required"))
		return
	}

	var req model.TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErr(w, "Transition", apperrors.InvalidInput("Invalid request body"))
		return
	}

	booking, err := h.service.Transition(r.Context(), actorID, ps.ByName("id"), req.Action)
	if err != nil {
		h.writeErr(w, "Transition", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "Transition", "error", err)
	}
}

func (h *BookingHandler) writeErr(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "error", writeErr)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings", h.List)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.POST("/api/v1/bookings/id/:id/transition", h.Transition)
}
