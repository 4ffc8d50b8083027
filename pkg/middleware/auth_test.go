package middleware

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"meistro/pkg/logger"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubVerifier struct {
	userID string
	err    error
}

func (v *stubVerifier) Verify(ctx context.Context, token string) (string, error) {
	return v.userID, v.err
}

func authTestLogger() *logger.Logger {
	return logger.New(logger.Config{Level: logger.ERROR, Format: logger.TEXT, Service: "test"})
}

func callerEcho() (http.Handler, *string) {
	var caller string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller = CallerID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return h, &caller
}

func signBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestAuthentication_BearerToken(t *testing.T) {
	tests := []struct {
		name       string
		authz      string
		verifier   *stubVerifier
		wantStatus int
		wantCaller string
	}{
		{
			name:       "valid token resolves caller",
			authz:      "Bearer tok-1",
			verifier:   &stubVerifier{userID: "user-42"},
			wantStatus: http.StatusOK,
			wantCaller: "user-42",
		},
		{
			name:       "missing header passes through anonymous",
			authz:      "",
			verifier:   &stubVerifier{userID: "should-not-be-used"},
			wantStatus: http.StatusOK,
			wantCaller: "",
		},
		{
			name:       "malformed header is rejected",
			authz:      "Token abc",
			verifier:   &stubVerifier{userID: "user-42"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "empty bearer token is rejected",
			authz:      "Bearer ",
			verifier:   &stubVerifier{userID: "user-42"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "verifier failure is rejected",
			authz:      "Bearer tok-1",
			verifier:   &stubVerifier{err: errors.New("token is not active")},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, caller := callerEcho()
			h := Authentication(tt.verifier, "", authTestLogger())(next)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
			if tt.authz != "" {
				req.Header.Set("Authorization", tt.authz)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && *caller != tt.wantCaller {
				t.Errorf("caller = %q, want %q", *caller, tt.wantCaller)
			}
		})
	}
}

func TestAuthentication_InternalSignature(t *testing.T) {
	const secret = "internal-secret"
	body := []byte(`{"participant_id":"user-7"}`)

	tests := []struct {
		name       string
		signature  string
		actingUser string
		secret     string
		wantStatus int
		wantCaller string
	}{
		{
			name:       "valid signature with acting user",
			signature:  "sha256=" + signBody(body, secret),
			actingUser: "user-7",
			secret:     secret,
			wantStatus: http.StatusOK,
			wantCaller: "user-7",
		},
		{
			name:       "signature without sha256 prefix",
			signature:  signBody(body, secret),
			actingUser: "user-7",
			secret:     secret,
			wantStatus: http.StatusOK,
			wantCaller: "user-7",
		},
		{
			name:       "wrong secret is rejected",
			signature:  "sha256=" + signBody(body, "other-secret"),
			actingUser: "user-7",
			secret:     secret,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing acting user is rejected",
			signature:  "sha256=" + signBody(body, secret),
			actingUser: "",
			secret:     secret,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "signature presented but no secret configured",
			signature:  "sha256=" + signBody(body, secret),
			actingUser: "user-7",
			secret:     "",
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, caller := callerEcho()
			h := Authentication(&stubVerifier{err: errors.New("should not be called")}, tt.secret, authTestLogger())(next)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations", bytes.NewReader(body))
			req.Header.Set("X-Internal-Signature", tt.signature)
			if tt.actingUser != "" {
				req.Header.Set("X-Acting-User", tt.actingUser)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && *caller != tt.wantCaller {
				t.Errorf("caller = %q, want %q", *caller, tt.wantCaller)
			}
		})
	}
}

func TestAuthentication_InternalPathPreservesBody(t *testing.T) {
	const secret = "internal-secret"
	body := []byte(`{"text":"hello"}`)

	var seen []byte
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(r.Body)
		seen = buf.Bytes()
		w.WriteHeader(http.StatusOK)
	})

	h := Authentication(&stubVerifier{}, secret, authTestLogger())(next)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations", bytes.NewReader(body))
	req.Header.Set("X-Internal-Signature", "sha256="+signBody(body, secret))
	req.Header.Set("X-Acting-User", "user-7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !bytes.Equal(seen, body) {
		t.Errorf("handler saw body %q, want %q", seen, body)
	}
}
