package middleware

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"futsal/internal/logger"
	"futsal/internal/metrics"
	"futsal/internal/models"

	"github.com/gin-gonic/gin"
)

// ActorKey - ключ gin-контекста, под которым хранится аутентифицированный пользователь
const ActorKey = "actor"

const requestIDHeader = "X-Request-ID"

// UserLookup - источник учетных записей для BasicAuth
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// AuthCache - кеш соответствия логин/хеш пароля -> id пользователя
type AuthCache interface {
	GetUserIDByAuth(ctx context.Context, email, passwordHash string) (int64, error)
	SetUserAuth(ctx context.Context, email, passwordHash string, userID int64) error
}

// ActorFrom возвращает пользователя, установленного BasicAuth
func ActorFrom(c *gin.Context) (models.Actor, bool) {
	v, exists := c.Get(ActorKey)
	if !exists {
		return models.Actor{}, false
	}
	actor, ok := v.(models.Actor)
	return actor, ok
}

// HashPassword - SHA-256 хеш пароля в hex, как он хранится в users.password_hash
func HashPassword(password string) string {
	hash := sha256.Sum256([]byte(password))
	return fmt.Sprintf("%x", hash)
}

// RequestID присваивает запросу идентификатор и кладет его в контекст логгера
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = logger.NewRequestID()
		}
		c.Header(requestIDHeader, requestID)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

// CORS middleware для обработки CORS запросов
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}

// Logger middleware для структурированного логирования запросов
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}

		logFields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status_code", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			logFields = append(logFields, "error", c.Errors.String())
		}

		log := logger.WithContext(c.Request.Context())
		if status >= http.StatusInternalServerError {
			log.Error("Request completed with error", logFields...)
		} else {
			log.Warn("Request rejected", logFields...)
		}
	}
}

// Metrics записывает длительность запросов в Prometheus по шаблону маршрута
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Recovery middleware для восстановления после паники с детальным логированием
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.WithContext(c.Request.Context()).Error("PANIC recovered",
			"panic", recovered,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"query", c.Request.URL.RawQuery,
			"client_ip", c.ClientIP(),
		)

		if !c.Writer.Written() {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
			})
		}
		c.Abort()
	})
}

// BasicAuth аутентифицирует пользователя по HTTP Basic Auth, проверяя логин/пароль в кеше Valkey, затем в БД.
// authCache может быть nil.
func BasicAuth(users UserLookup, authCache AuthCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok {
			c.Header("WWW-Authenticate", "Basic realm=\"Restricted\"")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		ctx := c.Request.Context()
		passwordHash := HashPassword(password)

		var user *models.User

		// Сначала пытаемся найти пользователя в кеше Valkey
		if authCache != nil {
			userID, err := authCache.GetUserIDByAuth(ctx, username, passwordHash)
			if err != nil {
				logger.WithContext(ctx).Warn("Auth cache lookup failed", "error", err)
			} else if userID != 0 {
				user, err = users.GetByID(ctx, userID)
				if err != nil {
					logger.WithContext(ctx).Error("Failed to load cached user", "error", err, "user_id", userID)
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
					return
				}
			}
		}

		// Fallback: поиск в базе данных
		if user == nil {
			found, err := users.GetByEmail(ctx, username)
			if err != nil {
				logger.WithContext(ctx).Error("Failed to load user", "error", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
				return
			}
			if found == nil || found.PasswordHash == "" || found.PasswordHash != passwordHash {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
				return
			}
			user = found

			if authCache != nil {
				if err := authCache.SetUserAuth(ctx, username, passwordHash, user.ID); err != nil {
					logger.WithContext(ctx).Warn("Auth cache write failed", "error", err)
				}
			}
		}

		if !user.IsActive {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}

		c.Set(ActorKey, models.Actor{UserID: user.ID, Role: user.Role, VenueID: user.VenueID})
		c.Request = c.Request.WithContext(logger.ContextWithUserID(ctx, user.ID))

		c.Next()
	}
}
