package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"point-ledger/internal/core/domain"
	"point-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body response.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.ErrorCode
}

func TestActorContext(t *testing.T) {
	valid := uuid.NewString()
	tests := []struct {
		name     string
		actorID  string
		role     string
		wantCode int
	}{
		{"valid", valid, "student", http.StatusOK},
		{"missing id", "", "student", http.StatusUnauthorized},
		{"malformed id", "not-a-uuid", "admin", http.StatusUnauthorized},
		{"nil id", uuid.Nil.String(), "admin", http.StatusUnauthorized},
		{"missing role", valid, "", http.StatusUnauthorized},
		{"unknown role", valid, "guest", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/test", ActorContext(), func(c *gin.Context) {
				actor, ok := ActorFrom(c)
				require.True(t, ok)
				c.JSON(http.StatusOK, actor)
			})

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set(HeaderActorID, tt.actorID)
			req.Header.Set(HeaderActorRole, tt.role)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode != http.StatusOK {
				assert.Equal(t, "AUTH_001", errorCode(t, w))
				return
			}
			var actor domain.Actor
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &actor))
			assert.Equal(t, tt.actorID, actor.AccountID.String())
			assert.Equal(t, domain.RoleStudent, actor.Role)
		})
	}
}

func TestRequireRole(t *testing.T) {
	router := gin.New()
	router.POST("/rewards", ActorContext(), RequireRole(domain.RoleLecturer, domain.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	send := func(role string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/rewards", nil)
		req.Header.Set(HeaderActorID, uuid.NewString())
		req.Header.Set(HeaderActorRole, role)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusNoContent, send("lecturer").Code)
	assert.Equal(t, http.StatusNoContent, send("admin").Code)

	w := send("student")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "AUTH_002", errorCode(t, w))
}

func TestRequireRole_WithoutActor(t *testing.T) {
	router := gin.New()
	router.GET("/test", RequireRole(domain.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		id, _ := c.Get(response.RequestIDKey)
		c.String(http.StatusOK, id.(string))
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Body.String())
	assert.Equal(t, "req-123", w.Header().Get(HeaderRequestID))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	_, err := uuid.Parse(w.Body.String())
	assert.NoError(t, err)
}

func TestRecovery_ReturnsEnvelope(t *testing.T) {
	router := gin.New()
	router.Use(RequestID(), Recovery(zerolog.Nop()))
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.Header.Set(HeaderRequestID, "req-9")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body response.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "SYS_001", body.ErrorCode)
	assert.Equal(t, "req-9", body.RequestID)
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	router := gin.New()
	router.Use(RequestLogger(zerolog.Nop()))
	router.GET("/test", ActorContext(), func(c *gin.Context) {
		c.Status(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(HeaderActorID, uuid.NewString())
	req.Header.Set(HeaderActorRole, "admin")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTeapot, w.Code)
}
