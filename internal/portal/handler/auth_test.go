package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/identity"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/portal/handler"
)

func newAuthRouter(t *testing.T, adminSecret string) (*gin.Engine, *identity.TokenIssuer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens := identity.NewTokenIssuer([]byte("auth-test-secret"), "https://portal.test", time.Hour)
	h := handler.NewAuthHandler(tokens, zap.NewNop())

	if adminSecret != "" {
		hash, err := identity.HashAdminSecret(adminSecret)
		if err != nil {
			t.Fatal(err)
		}
		h.SetAdminSecret(identity.NewAdminSecret(hash), 1)
	}

	router := gin.New()
	h.Register(router.Group("/api/v1"))
	return router, tokens
}

func postJSON(router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	json.NewEncoder(&buf).Encode(body) //nolint:errcheck
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAdminToken_exchange(t *testing.T) {
	router, tokens := newAuthRouter(t, "super-secret")

	w := postJSON(router, "/api/v1/auth/admin-token", gin.H{"secret": "super-secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d %s", w.Code, w.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}

	claims, err := tokens.Verify(resp.Token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Role != "admin" {
		t.Errorf("role = %q, want admin", claims.Role)
	}
}

func TestAdminToken_wrongSecret(t *testing.T) {
	router, _ := newAuthRouter(t, "super-secret")

	w := postJSON(router, "/api/v1/auth/admin-token", gin.H{"secret": "guess"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAdminToken_disabled(t *testing.T) {
	router, _ := newAuthRouter(t, "")

	w := postJSON(router, "/api/v1/auth/admin-token", gin.H{"secret": "anything"})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestWhoAmI(t *testing.T) {
	router, tokens := newAuthRouter(t, "")

	tok, err := tokens.Issue(42, "cra@site.example.com")
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		ActorID int64  `json:"actor_id"`
		Email   string `json:"email"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ActorID != 42 || resp.Email != "cra@site.example.com" {
		t.Errorf("unexpected claims %+v", resp)
	}
}
