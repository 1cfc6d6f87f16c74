package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/guess2/dailytrivia/internal/http/respond"
	log "github.com/sirupsen/logrus"
)

// UserIDFunc extracts the authenticated user id from a request, or 0.
type UserIDFunc func(c *gin.Context) uint64

// Middleware rejects requests over the per-second budget for bucket with 429.
// Limiter errors let the request through.
func Middleware(m *Manager, bucket string, userID UserIDFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil || m.Limit() <= 0 {
			c.Next()
			return
		}
		var uid uint64
		if userID != nil {
			uid = userID(c)
		}
		key, _ := KeyFor(bucket, uid, c.ClientIP())
		result, errAllow := m.Allow(c.Request.Context(), key)
		if errAllow != nil {
			log.WithError(errAllow).WithField("bucket", bucket).Warn("rate limit: check failed")
			c.Next()
			return
		}
		if result.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			c.Header("X-RateLimit-Reset", strconv.FormatInt(result.Reset.Unix(), 10))
		}
		if !result.Allowed {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, respond.Envelope{Success: false, Error: "Too many requests"})
			return
		}
		c.Next()
	}
}
