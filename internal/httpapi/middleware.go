package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	initdata "github.com/telegram-mini-apps/init-data-golang"
)

const (
	requestIDHeader = "X-Request-ID"
	initDataHeader  = "X-Telegram-Init-Data"

	ctxRequestID = "request_id"
	ctxUserID    = "user_id"
)

// RequestID tags every request with an id, reusing the caller's X-Request-ID when present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(ctxRequestID, requestID)
		c.Header(requestIDHeader, requestID)
		c.Next()
	}
}

// RequestLogger logs one line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("request_id", c.GetString(ctxRequestID)).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Int("body_size", c.Writer.Size()).
			Msg("HTTP request")
	}
}

// InitDataAuth admits only requests signed by the bot's Mini App for the admin user.
// Init data is read from the X-Telegram-Init-Data header or the init_data query parameter.
func InitDataAuth(botToken string, ttl time.Duration, adminID int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(initDataHeader)
		if raw == "" {
			raw = c.Query("init_data")
		}
		if raw == "" {
			abortError(c, http.StatusUnauthorized, "Missing init data")
			return
		}

		if err := initdata.Validate(raw, botToken, ttl); err != nil {
			log.Warn().Err(err).Str("request_id", c.GetString(ctxRequestID)).Msg("Rejected init data")
			abortError(c, http.StatusUnauthorized, "Invalid init data")
			return
		}

		parsed, err := initdata.Parse(raw)
		if err != nil {
			abortError(c, http.StatusUnauthorized, "Invalid init data")
			return
		}

		if parsed.User.ID != adminID {
			log.Warn().Int64("user_id", parsed.User.ID).Msg("Non-admin tried to use the giveaway API")
			abortError(c, http.StatusForbidden, "Forbidden")
			return
		}

		c.Set(ctxUserID, parsed.User.ID)
		c.Next()
	}
}

func abortError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"status": "error", "msg": msg})
}
