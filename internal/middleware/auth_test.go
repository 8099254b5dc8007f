package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/omikuji-api/internal/auth"
)

func TestAuth(t *testing.T) {
	authenticator, err := auth.NewAPIKeyAuthenticator("key-1:ops")
	if err != nil {
		t.Fatalf("NewAPIKeyAuthenticator() error = %v", err)
	}

	tests := []struct {
		name       string
		method     string
		key        string
		wantStatus int
		wantOp     string
	}{
		{"draw is public", http.MethodGet, "", http.StatusOK, ""},
		{"create without key", http.MethodPost, "", http.StatusUnauthorized, ""},
		{"delete with wrong key", http.MethodDelete, "nope", http.StatusUnauthorized, ""},
		{"create with key", http.MethodPost, "key-1", http.StatusOK, "ops"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			var operator string
			h := Auth(authenticator, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if op, ok := auth.FromContext(r.Context()); ok {
					operator = op.Name
				}
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(tt.method, "/category", nil)
			if tt.key != "" {
				req.Header.Set(auth.APIKeyHeader, tt.key)
			}
			rec := httptest.NewRecorder()

			// Act
			h.ServeHTTP(rec, req)

			// Assert
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if operator != tt.wantOp {
				t.Errorf("operator = %q, want %q", operator, tt.wantOp)
			}
			if tt.wantStatus == http.StatusUnauthorized {
				if rec.Header().Get("WWW-Authenticate") == "" {
					t.Error("WWW-Authenticate header missing")
				}
				var body map[string]string
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
					t.Fatalf("decode body: %v", err)
				}
				if body["message"] == "" {
					t.Error("message missing in 401 body")
				}
			}
		})
	}
}

func TestAuth_NilAuthenticator(t *testing.T) {
	rec := httptest.NewRecorder()

	Auth(nil, zap.NewNop())(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/category", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
