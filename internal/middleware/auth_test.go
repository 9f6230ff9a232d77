package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lifesync/lifesync/internal/auth"
	"github.com/lifesync/lifesync/internal/database"
	"github.com/lifesync/lifesync/internal/store"
)

func setupAuthMiddlewareDB(t *testing.T) *store.APIKeyStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return store.NewAPIKeyStore(db)
}

func TestRequireAPIKeyMissing(t *testing.T) {
	ks := setupAuthMiddlewareDB(t)

	handler := RequireAPIKey(ks, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAPIKeyInvalid(t *testing.T) {
	ks := setupAuthMiddlewareDB(t)

	handler := RequireAPIKey(ks, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	for _, h := range []string{"Bearer ls_abc_def", "Basic Zm9vOmJhcg==", "Bearer "} {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", h)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%q: status = %d, want %d", h, rec.Code, http.StatusUnauthorized)
		}
	}
}

func TestRequireAPIKeyValid(t *testing.T) {
	ks := setupAuthMiddlewareDB(t)
	token, key, err := ks.Create(context.Background(), 42)
	if err != nil {
		t.Fatalf("create key: %v", err)
	}

	var gotAC auth.AuthContext
	handler := RequireAPIKey(ks, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			t.Fatal("expected AuthContext in request context")
		}
		gotAC = ac
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotAC.UserID != 42 {
		t.Errorf("UserID = %d, want 42", gotAC.UserID)
	}
	if gotAC.APIKeyID != key.ID {
		t.Errorf("APIKeyID = %d, want %d", gotAC.APIKeyID, key.ID)
	}

	// Query parameter form used by WebSocket clients.
	req = httptest.NewRequest("GET", "/?token="+token, nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("query token: status = %d, want %d", rec.Code, http.StatusOK)
	}
}
