package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/skillbridgeai/skillbridge/internal/authapi"
	"github.com/skillbridgeai/skillbridge/pkg/sessionvalidator"
	"go.uber.org/zap"
)

func TestConfigureCORS(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	middleware, err := ConfigureCORS(zap.NewNop(), []string{"http://localhost:3000"})
	if err != nil {
		t.Fatalf("unexpected error configuring CORS: %v", err)
	}
	router.Use(middleware)
	router.OPTIONS("/resource", func(contextGin *gin.Context) {
		contextGin.Status(http.StatusNoContent)
	})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodOptions, "/resource", nil)
	request.Header.Set("Origin", "http://localhost:3000")
	request.Header.Set("Access-Control-Request-Method", http.MethodPost)
	request.Header.Set("Access-Control-Request-Headers", "Authorization")
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204 from preflight, got %d", recorder.Code)
	}
	if origin := recorder.Header().Get("Access-Control-Allow-Origin"); origin != "http://localhost:3000" {
		t.Fatalf("unexpected allowed origin header: %q", origin)
	}
}

func TestConfigureCORSRejectsBadOrigins(t *testing.T) {
	t.Parallel()

	if _, err := ConfigureCORS(zap.NewNop(), nil); err == nil {
		t.Fatalf("expected error for nil origin list")
	}
	if _, err := ConfigureCORS(zap.NewNop(), []string{"  "}); err == nil {
		t.Fatalf("expected error for whitespace origin")
	}
	if _, err := ConfigureCORS(zap.NewNop(), []string{"*"}); err == nil {
		t.Fatalf("expected error for wildcard origin")
	}
	if _, err := ConfigureCORS(zap.NewNop(), []string{"ftp://example.com"}); err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
	if _, err := ConfigureCORS(zap.NewNop(), []string{"https://example.com/path"}); err == nil {
		t.Fatalf("expected error for origin with path")
	}
}

func TestSanitizeOriginsNormalizesAndDeduplicates(t *testing.T) {
	t.Parallel()

	sanitized, err := sanitizeOrigins(zap.NewNop(), []string{
		"HTTPS://app.skillbridge.ai",
		"https://app.skillbridge.ai",
		"http://localhost:3000",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sanitized) != 2 {
		t.Fatalf("expected 2 origins after deduplication, got %v", sanitized)
	}
}

func testClaims(email string, role string, name string) *sessionvalidator.Claims {
	return &sessionvalidator.Claims{
		UserEmail:       email,
		UserRole:        role,
		UserDisplayName: name,
		Verified:        true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			ExpiresAt: jwt.NewNumericDate(time.Unix(1700003600, 0)),
		},
	}
}

func whoAmIRouter(users authapi.UserStore, claims *sessionvalidator.Claims) *gin.Engine {
	router := gin.New()
	if claims != nil {
		router.Use(func(contextGin *gin.Context) {
			contextGin.Set(authapi.ClaimsContextKey, claims)
			contextGin.Next()
		})
	}
	router.GET("/api/me", HandleWhoAmI(users, zap.NewNop()))
	return router
}

func TestHandleWhoAmIReturnsStoredProfile(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	users := authapi.NewMemoryUserStore()
	_, _ = users.UpsertUser(nil, authapi.UserRecord{
		Email:   "asel@example.com",
		Name:    "Asel Nurlanovna",
		Picture: "https://example.com/asel.png",
		Role:    "student",
		Status:  authapi.UserStatusActive,
	})

	router := whoAmIRouter(users, testClaims("asel@example.com", "student", "Asel Nurlanovna"))
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/me", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if payload["email"] != "asel@example.com" {
		t.Fatalf("unexpected email: %v", payload["email"])
	}
	if payload["name"] != "Asel Nurlanovna" {
		t.Fatalf("unexpected name: %v", payload["name"])
	}
	if payload["picture"] != "https://example.com/asel.png" {
		t.Fatalf("unexpected picture: %v", payload["picture"])
	}
	if payload["status"] != authapi.UserStatusActive {
		t.Fatalf("unexpected status: %v", payload["status"])
	}
	if _, ok := payload["expires"]; !ok {
		t.Fatalf("expected expires in response")
	}
}

func TestHandleWhoAmIMissingClaims(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	router := whoAmIRouter(authapi.NewMemoryUserStore(), nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/me", nil))

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 when claims missing, got %d", recorder.Code)
	}
}

func TestHandleWhoAmIAnswersFromClaimsWithoutStoredProfile(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	// OTP-verified recruiters may hold a session before any profile row
	// exists.
	router := whoAmIRouter(authapi.NewMemoryUserStore(), testClaims("asel@corp.example.com", "recruiter", "Asel Nurlanovna"))
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/me", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if payload["email"] != "asel@corp.example.com" {
		t.Fatalf("unexpected email: %v", payload["email"])
	}
	if payload["role"] != "recruiter" {
		t.Fatalf("unexpected role: %v", payload["role"])
	}
	if payload["status"] != authapi.UserStatusVerified {
		t.Fatalf("unexpected status: %v", payload["status"])
	}
}
