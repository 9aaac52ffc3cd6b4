package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/templatehub/chat-backend/internal/config"
	"github.com/templatehub/chat-backend/internal/domain"
	"github.com/templatehub/chat-backend/internal/gateway"
)

func testConfig(t *testing.T, secret string) config.Config {
	t.Helper()
	return config.Config{
		APIBasePath:      "/api/chat",
		JWTSecret:        secret,
		UploadDir:        t.TempDir(),
		ResponseWindow:   24 * time.Hour,
		MaxMessageRunes:  4000,
		WSCommandTimeout: 5 * time.Second,
		RateRPS:          100,
		RateBurst:        100,
		Security:         config.SecurityConfig{},
		OTEL:             config.OTELConfig{ServiceName: "chat-backend-test"},
	}
}

func newRouter(t *testing.T, secret string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("chat_router_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.Conversation{}, &domain.Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	hub := gateway.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	r := gin.New()
	RegisterRoutes(r, db, hub, nil, testConfig(t, secret))
	return r
}

func TestRegisterRoutes_HealthAndFallbacks(t *testing.T) {
	r := newRouter(t, "")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/no/such/route", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 fallback, got %d", w.Code)
	}
	var e struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil || e.Code != "not_found" {
		t.Fatalf("expected not_found envelope, got %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/api/chat/conversations", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", w.Code)
	}
}

func TestRegisterRoutes_AuthGuardsAPI(t *testing.T) {
	const secret = "router-secret"
	r := newRouter(t, secret)

	// No token: rejected before any handler runs.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/chat/conversations", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	claims := jwt.RegisteredClaims{
		Subject:   "buyer",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/chat/conversations", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d %s", w.Code, w.Body.String())
	}
}

func TestRegisterRoutes_StartAndListConversation(t *testing.T) {
	r := newRouter(t, "")

	body := strings.NewReader(`{"recipient_id":"seller"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/chat/conversations", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "buyer")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("start conversation: expected 200, got %d %s", w.Code, w.Body.String())
	}
	var conv domain.Conversation
	if err := json.Unmarshal(w.Body.Bytes(), &conv); err != nil || conv.ID == "" {
		t.Fatalf("unexpected body %s (%v)", w.Body.String(), err)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/chat/conversations", nil)
	req.Header.Set("X-User-ID", "buyer")
	// gzip is active on the API group; ask for identity to keep decoding simple.
	req.Header.Set("Accept-Encoding", "identity")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list conversations: expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header to be set")
	}
}

func TestRegisterRoutes_WSRequiresIdentity(t *testing.T) {
	r := newRouter(t, "")

	// No auth configured and no identity on the context: the upgrade handler
	// itself must refuse.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous websocket, got %d", w.Code)
	}
}
