package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"eshop_back_end/internal/cache"
	"eshop_back_end/internal/logger"
)

const maxLoginBody = 1 << 16

// LoginRateLimit refuses logins for an email once maxAttempts failures happened inside
// the counter's window. A 400 from the login handler counts as a failure, a 200 resets.
// Counter errors never block a login.
func LoginRateLimit(attempts cache.LoginAttempts, maxAttempts int64, log *zap.Logger) gin.HandlerFunc {
	log = logger.OrNop(log)
	return func(c *gin.Context) {
		if attempts == nil || maxAttempts <= 0 {
			c.Next()
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxLoginBody))
		if err != nil {
			c.Next()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		var input struct {
			Email string `json:"email"`
		}
		if json.Unmarshal(body, &input) != nil || strings.TrimSpace(input.Email) == "" {
			c.Next()
			return
		}
		key := strings.ToLower(strings.TrimSpace(input.Email))
		ctx := c.Request.Context()

		n, retryAfter, err := attempts.Attempts(ctx, key)
		if err != nil {
			log.Warn("login attempt counter unavailable", zap.Error(err))
		} else if n >= maxAttempts {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"message": "too many failed login attempts, try again later",
			})
			return
		}

		c.Next()

		switch c.Writer.Status() {
		case http.StatusBadRequest:
			err = attempts.Fail(ctx, key)
		case http.StatusOK:
			err = attempts.Reset(ctx, key)
		default:
			err = nil
		}
		if err != nil {
			log.Warn("failed to record login attempt", zap.Error(err))
		}
	}
}
