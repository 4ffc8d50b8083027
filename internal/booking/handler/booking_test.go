package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "meistro/pkg/errors"
	"meistro/pkg/logger"
	"meistro/pkg/middleware"
	"meistro/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type mockBookingService struct {
	createFn       func(ctx context.Context, actorID string, req *model.BookingRequest) (*model.Booking, error)
	getByIDFn      func(ctx context.Context, actorID, id string) (*model.Booking, error)
	listFn         func(ctx context.Context, actorID, role string, status model.BookingStatus, limit int, offset int64) ([]*model.Booking, int64, error)
	transitionFn   func(ctx context.Context, actorID, id string, action model.BookingAction) (*model.Booking, error)
	countPendingFn func(ctx context.Context, userID string) (int64, error)
}

func (m *mockBookingService) Create(ctx context.Context, actorID string, req *model.BookingRequest) (*model.Booking, error) {
	return m.createFn(ctx, actorID, req)
}

func (m *mockBookingService) GetByID(ctx context.Context, actorID, id string) (*model.Booking, error) {
	return m.getByIDFn(ctx, actorID, id)
}

func (m *mockBookingService) ListForUser(ctx context.Context, actorID, role string, status model.BookingStatus, limit int, offset int64) ([]*model.Booking, int64, error) {
	return m.listFn(ctx, actorID, role, status, limit, offset)
}

func (m *mockBookingService) Transition(ctx context.Context, actorID, id string, action model.BookingAction) (*model.Booking, error) {
	return m.transitionFn(ctx, actorID, id, action)
}

func (m *mockBookingService) CountPendingForUser(ctx context.Context, userID string) (int64, error) {
	return m.countPendingFn(ctx, userID)
}

func newRouter(svc *mockBookingService) *httprouter.Router {
	log := logger.New(logger.Config{Level: logger.ERROR, Format: logger.TEXT, Service: "test"})
	router := httprouter.New()
	NewBookingHandler(svc, log).RegisterRoutes(router)
	return router
}

func authed(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.WithCallerID(r.Context(), userID))
}

func decodeEnvelope(t *testing.T, body *bytes.Buffer) map[string]any {
	t.Helper()
	var envelope map[string]any
	if err := json.NewDecoder(body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return envelope
}

func TestCreate_GuestBooking(t *testing.T) {
	svc := &mockBookingService{
		createFn: func(ctx context.Context, actorID string, req *model.BookingRequest) (*model.Booking, error) {
			if actorID != "" {
				t.Errorf("expected empty actor for guest, got %q", actorID)
			}
			return &model.Booking{
				ID:         "507f1f77bcf86cd799439011",
				ListingID:  req.ListingID,
				ProviderID: req.ProviderID,
				Status:     model.StatusRequested,
			}, nil
		},
	}
	router := newRouter(svc)

	payload := `{"listing_id":"listing-1","provider_id":"provider-1","contact_name":"Dana Cohen","contact_phone":"+12125550175","start_time":"2026-10-01T10:00:00Z","duration_minutes":60}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", bytes.NewBufferString(payload))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	envelope := decodeEnvelope(t, rec.Body)
	if envelope["ok"] != true {
		t.Errorf("expected ok=true, got %v", envelope["ok"])
	}
}

func TestCreate_InvalidBody(t *testing.T) {
	router := newRouter(&mockBookingService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	envelope := decodeEnvelope(t, rec.Body)
	if envelope["ok"] != false {
		t.Errorf("expected ok=false, got %v", envelope["ok"])
	}
}

func TestTransition_RequiresAuthentication(t *testing.T) {
	router := newRouter(&mockBookingService{})

	payload := `{"action":"confirm"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/id/507f1f77bcf86cd799439011/transition", bytes.NewBufferString(payload))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestTransition_StatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"forbidden", apperrors.Forbidden("not yours"), http.StatusForbidden},
		{"invalid state", apperrors.InvalidState("already done", nil), http.StatusConflict},
		{"scheduling conflict", apperrors.SchedulingConflict("overlap"), http.StatusConflict},
		{"not found", apperrors.NotFoundWithID("Booking", "x"), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockBookingService{
				transitionFn: func(ctx context.Context, actorID, id string, action model.BookingAction) (*model.Booking, error) {
					return nil, tt.err
				},
			}
			router := newRouter(svc)

			payload := `{"action":"confirm"}`
			req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/id/507f1f77bcf86cd799439011/transition", bytes.NewBufferString(payload))
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, authed(req, "provider-1"))

			if rec.Code != tt.wantCode {
				t.Errorf("expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
			envelope := decodeEnvelope(t, rec.Body)
			if envelope["ok"] != false {
				t.Errorf("expected ok=false, got %v", envelope["ok"])
			}
		})
	}
}

func TestTransition_Success(t *testing.T) {
	svc := &mockBookingService{
		transitionFn: func(ctx context.Context, actorID, id string, action model.BookingAction) (*model.Booking, error) {
			if actorID != "provider-1" {
				t.Errorf("expected actor provider-1, got %q", actorID)
			}
			if action != model.ActionConfirm {
				t.Errorf("expected confirm, got %s", action)
			}
			return &model.Booking{
				ID:        id,
				Status:    model.StatusConfirmed,
				UpdatedAt: time.Now(),
			}, nil
		},
	}
	router := newRouter(svc)

	payload := `{"action":"confirm"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/id/507f1f77bcf86cd799439011/transition", bytes.NewBufferString(payload))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, authed(req, "provider-1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestList_PassesRoleAndPagination(t *testing.T) {
	svc := &mockBookingService{
		listFn: func(ctx context.Context, actorID, role string, status model.BookingStatus, limit int, offset int64) ([]*model.Booking, int64, error) {
			if role != "provider" {
				t.Errorf("expected role provider, got %q", role)
			}
			if limit != 10 || offset != 20 {
				t.Errorf("expected limit=10 offset=20, got %d/%d", limit, offset)
			}
			return []*model.Booking{{ID: "b-1"}}, 1, nil
		},
	}
	router := newRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings?role=provider&limit=10&offset=20", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, authed(req, "provider-1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	envelope := decodeEnvelope(t, rec.Body)
	if envelope["total_count"] != float64(1) {
		t.Errorf("expected total_count=1, got %v", envelope["total_count"])
	}
}

func TestGetByID_RequiresAuthentication(t *testing.T) {
	router := newRouter(&mockBookingService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/id/507f1f77bcf86cd799439011", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
