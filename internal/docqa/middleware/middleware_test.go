package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestIDGenerated(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())

	var captured string
	engine.GET("/ping", func(c *gin.Context) {
		captured = GetRequestID(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	engine.ServeHTTP(w, req)

	assert.Len(t, captured, 32)
	assert.Equal(t, captured, w.Header().Get(HeaderXRequestID))
}

func TestRequestIDPreserved(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderXRequestID, "client-supplied-id")
	engine.ServeHTTP(w, req)

	assert.Equal(t, "client-supplied-id", w.Header().Get(HeaderXRequestID))
}

func TestRecovery(t *testing.T) {
	engine := gin.New()
	engine.Use(Recovery())
	engine.GET("/boom", func(_ *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal server error")
}

func TestBearerAuth(t *testing.T) {
	newEngine := func(token string) *gin.Engine {
		engine := gin.New()
		engine.Use(BearerAuth(token))
		engine.GET("/secure", func(c *gin.Context) {
			c.String(http.StatusOK, "ok")
		})
		return engine
	}

	tests := []struct {
		name       string
		token      string
		authHeader string
		wantStatus int
	}{
		{"有效令牌", "secret-token", "Bearer secret-token", http.StatusOK},
		{"错误令牌", "secret-token", "Bearer wrong-token", http.StatusUnauthorized},
		{"缺少请求头", "secret-token", "", http.StatusUnauthorized},
		{"缺少 Bearer 前缀", "secret-token", "secret-token", http.StatusUnauthorized},
		{"未配置令牌时放行", "", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/secure", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			newEngine(tt.token).ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), "Unauthorized")
			}
		})
	}
}
