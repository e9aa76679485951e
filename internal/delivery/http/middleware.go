package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	userKey         = "user"
)

// CORSMiddleware allows browser clients served from allowedOrigins.
// Entries ending in * match by prefix.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return isAllowedOrigin(origin, allowedOrigins)
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Requested-With", requestIDHeader},
		ExposeHeaders:    []string{requestIDHeader, "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           time.Hour,
	})
}

// isAllowedOrigin checks if the origin is in the allowed list
func isAllowedOrigin(origin string, allowedOrigins []string) bool {
	for _, allowed := range allowedOrigins {
		if strings.HasSuffix(allowed, "*") {
			prefix := strings.TrimSuffix(allowed, "*")
			if strings.HasPrefix(origin, prefix) {
				return true
			}
		} else if origin == allowed {
			return true
		}
	}
	return false
}

// RequestIDMiddleware tags every request with an id, reusing the caller's when present
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// LoggerMiddleware logs one line per request, at a level following the status
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String(requestIDKey, c.GetString(requestIDKey)),
		}
		if user := c.GetString(userKey); user != "" {
			fields = append(fields, zap.String(userKey, user))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			logger.Error("HTTP request", fields...)
		case status >= 400:
			logger.Warn("HTTP request", fields...)
		default:
			logger.Info("HTTP request", fields...)
		}
	}
}

// BasicAuthMiddleware checks HTTP basic credentials against bcrypt hashes keyed
// by username. An empty user table lets every request through.
func BasicAuthMiddleware(users map[string]string) gin.HandlerFunc {
	dummyHash := unknownUserHash(users)

	return func(c *gin.Context) {
		if len(users) == 0 {
			c.Next()
			return
		}

		username, password, ok := c.Request.BasicAuth()
		hash, known := users[username]
		if !known {
			// same bcrypt work whether or not the user exists
			hash = dummyHash
		}
		mismatch := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil
		if !ok || !known || mismatch {
			c.Header("WWW-Authenticate", `Basic realm="inies"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid credentials",
			})
			return
		}

		c.Set(userKey, username)
		c.Next()
	}
}

// unknownUserHash builds a throwaway hash at the cost of the configured ones, so a
// failed lookup costs as much as a wrong password
func unknownUserHash(users map[string]string) string {
	if len(users) == 0 {
		return ""
	}
	cost := bcrypt.DefaultCost
	for _, h := range users {
		if c, err := bcrypt.Cost([]byte(h)); err == nil {
			cost = c
			break
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), cost)
	if err != nil {
		return ""
	}
	return string(hash)
}

// RecoveryMiddleware recovers from panics
func RecoveryMiddleware() gin.HandlerFunc {
	return gin.Recovery()
}
