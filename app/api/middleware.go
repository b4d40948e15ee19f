package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/lysyi3m/bulletin-comb/app/auth"
	"github.com/lysyi3m/bulletin-comb/app/metrics"
)

const claimsKey = "claims"

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// metricsMiddleware records every request by route template, so ids in
// paths do not create new series.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordAPIRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

func rateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.Header("Retry-After", strconv.Itoa(1))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "Too many requests",
				"details": "Rate limit exceeded, try again later",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// authMiddleware accepts an admin bearer token issued by /api/admin/login.
func authMiddleware(authenticator *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authenticator == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "Admin access disabled",
				"details": "No admin password is configured",
			})
			c.Abort()
			return
		}

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Authorization required",
				"details": "Provide a token in the Authorization: Bearer <token> header",
			})
			c.Abort()
			return
		}

		claims, err := authenticator.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid token",
				"details": "The provided token is not valid or has expired",
			})
			c.Abort()
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}
