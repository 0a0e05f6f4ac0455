package middleware

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
)

// IdempotencyHeader carries the client-generated key for a booking submission
const IdempotencyHeader = "Idempotency-Key"

const idempotencyContextKey = "idempotency_key"

var idempotencyKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_\-:.]{8,128}$`)

// Idempotency reads the Idempotency-Key header. When required is true a missing
// key is rejected; a malformed key is always rejected.
func Idempotency(required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" {
			if required {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"success": false,
					"error":   "missing_idempotency_key",
					"message": "Idempotency-Key header is required",
				})
				return
			}
			c.Next()
			return
		}

		if !idempotencyKeyPattern.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "invalid_idempotency_key",
				"message": "Idempotency-Key must be 8-128 characters of letters, digits, '-', '_', ':' or '.'",
			})
			return
		}

		c.Set(idempotencyContextKey, key)
		c.Next()
	}
}

// IdempotencyKey returns the key stored by Idempotency, or "" when none was sent
func IdempotencyKey(c *gin.Context) string {
	return c.GetString(idempotencyContextKey)
}
