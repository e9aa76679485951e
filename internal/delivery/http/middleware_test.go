package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"
)

func TestIsAllowedOrigin(t *testing.T) {
	tests := []struct {
		name           string
		origin         string
		allowedOrigins []string
		want           bool
	}{
		{
			name:           "exact match",
			origin:         "https://bureau-etudes.fr",
			allowedOrigins: []string{"https://bureau-etudes.fr"},
			want:           true,
		},
		{
			name:           "wildcard port match",
			origin:         "http://localhost:8501",
			allowedOrigins: []string{"http://localhost:*"},
			want:           true,
		},
		{
			name:           "multiple allowed origins - matches first",
			origin:         "http://localhost:3000",
			allowedOrigins: []string{"http://localhost:*", "https://bureau-etudes.fr"},
			want:           true,
		},
		{
			name:           "multiple allowed origins - matches second",
			origin:         "https://bureau-etudes.fr",
			allowedOrigins: []string{"http://localhost:*", "https://bureau-etudes.fr"},
			want:           true,
		},
		{
			name:           "no match",
			origin:         "http://evil.com",
			allowedOrigins: []string{"http://localhost:*"},
			want:           false,
		},
		{
			name:           "exact entry does not match by prefix",
			origin:         "https://bureau-etudes.fr.evil.com",
			allowedOrigins: []string{"https://bureau-etudes.fr"},
			want:           false,
		},
		{
			name:           "empty origin",
			origin:         "",
			allowedOrigins: []string{"http://localhost:*"},
			want:           false,
		},
		{
			name:           "empty allowed list",
			origin:         "http://localhost:3000",
			allowedOrigins: []string{},
			want:           false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isAllowedOrigin(tt.origin, tt.allowedOrigins)
			if got != tt.want {
				t.Errorf("isAllowedOrigin() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		origin     string
		method     string
		wantStatus int
		wantCORS   bool
	}{
		{
			name:       "allowed origin - GET request",
			origin:     "http://localhost:8501",
			method:     "GET",
			wantStatus: http.StatusOK,
			wantCORS:   true,
		},
		{
			name:       "allowed origin - OPTIONS request",
			origin:     "http://localhost:8501",
			method:     "OPTIONS",
			wantStatus: http.StatusNoContent,
			wantCORS:   true,
		},
		{
			name:       "disallowed origin is rejected",
			origin:     "http://evil.com",
			method:     "GET",
			wantStatus: http.StatusForbidden,
			wantCORS:   false,
		},
		{
			name:       "no origin header",
			origin:     "",
			method:     "GET",
			wantStatus: http.StatusOK,
			wantCORS:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(CORSMiddleware([]string{"http://localhost:*"}))
			router.GET("/test", func(c *gin.Context) {
				c.String(http.StatusOK, "OK")
			})

			req := httptest.NewRequest(tt.method, "/test", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)

			corsHeader := w.Header().Get("Access-Control-Allow-Origin")
			if tt.wantCORS {
				assert.Equal(t, tt.origin, corsHeader)
				assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
			} else {
				assert.Empty(t, corsHeader)
			}
		})
	}
}

func TestCORSMiddleware_PreflightRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(CORSMiddleware([]string{"http://localhost:*"}))
	router.POST("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	req := httptest.NewRequest("OPTIONS", "/test", nil)
	req.Header.Set("Origin", "http://localhost:8501")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:8501", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Methods"))
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "3600", w.Header().Get("Access-Control-Max-Age"))
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(requestIDKey))
	})

	t.Run("generates an id", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

		id := w.Header().Get(requestIDHeader)
		assert.Len(t, id, 36)
		assert.Equal(t, id, w.Body.String())
	})

	t.Run("keeps the caller's id", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(requestIDHeader, "run-42")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "run-42", w.Header().Get(requestIDHeader))
		assert.Equal(t, "run-42", w.Body.String())
	})
}

func TestLoggerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	core, logs := observer.New(zapcore.DebugLevel)

	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(zap.New(core)))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/missing/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/ok", "/missing/7", "/boom"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", path, nil))
	}

	entries := logs.All()
	require.Len(t, entries, 3)

	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)

	fields := entries[1].ContextMap()
	assert.Equal(t, "/missing/:id", fields["path"])
	assert.Equal(t, int64(http.StatusNotFound), fields["status"])
	assert.NotEmpty(t, fields[requestIDKey])
}

func TestBasicAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	users := map[string]string{"analyste": string(hash)}

	newRouter := func(users map[string]string) *gin.Engine {
		router := gin.New()
		router.Use(BasicAuthMiddleware(users))
		router.GET("/test", func(c *gin.Context) {
			c.String(http.StatusOK, c.GetString(userKey))
		})
		return router
	}

	tests := []struct {
		name       string
		users      map[string]string
		username   string
		password   string
		setAuth    bool
		wantStatus int
		wantUser   string
	}{
		{"disabled without users", nil, "", "", false, http.StatusOK, ""},
		{"valid credentials", users, "analyste", "s3cret", true, http.StatusOK, "analyste"},
		{"wrong password", users, "analyste", "nope", true, http.StatusUnauthorized, ""},
		{"unknown user", users, "intrus", "s3cret", true, http.StatusUnauthorized, ""},
		{"missing header", users, "", "", false, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			if tt.setAuth {
				req.SetBasicAuth(tt.username, tt.password)
			}
			w := httptest.NewRecorder()
			newRouter(tt.users).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantUser, w.Body.String())
			} else {
				assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Basic")
			}
		})
	}
}

func TestUnknownUserHash(t *testing.T) {
	t.Run("matches the cost of configured hashes", func(t *testing.T) {
		hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
		require.NoError(t, err)

		dummy := unknownUserHash(map[string]string{"analyste": string(hash)})
		cost, err := bcrypt.Cost([]byte(dummy))
		require.NoError(t, err)
		assert.Equal(t, bcrypt.MinCost, cost)

		// an unknown user still pays for a full comparison
		assert.ErrorIs(t, bcrypt.CompareHashAndPassword([]byte(dummy), []byte("s3cret")), bcrypt.ErrMismatchedHashAndPassword)
	})

	t.Run("empty without users", func(t *testing.T) {
		assert.Empty(t, unknownUserHash(nil))
	})
}
