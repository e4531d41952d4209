package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// HeaderAPIKey carries the client API key.
const HeaderAPIKey = "X-API-Key"

// APIKeyVerifier checks client API keys against a bcrypt hash. Only the hash
// is kept in memory.
type APIKeyVerifier struct {
	hash []byte
}

// NewAPIKeyVerifier creates a verifier. An empty hash disables API keys.
func NewAPIKeyVerifier(hash string) *APIKeyVerifier {
	return &APIKeyVerifier{hash: []byte(strings.TrimSpace(hash))}
}

// Enabled reports whether a key hash is configured.
func (v *APIKeyVerifier) Enabled() bool {
	return v != nil && len(v.hash) > 0
}

// Verify reports whether key matches the configured hash.
func (v *APIKeyVerifier) Verify(key string) bool {
	if !v.Enabled() || key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(v.hash, []byte(key)) == nil
}

// RequireAPIKey rejects requests without a valid X-API-Key header.
func (v *APIKeyVerifier) RequireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !v.Enabled() {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "API key authentication is not configured",
			})
			return
		}

		if !v.Verify(c.GetHeader(HeaderAPIKey)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Unauthorized",
				"message": "Valid API key required for this endpoint",
			})
			return
		}
		c.Next()
	}
}
