package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Context keys set by the API key middleware.
const (
	ContextKeyValidated = "api_key_validated"
	ContextKeyName      = "api_key_name"
)

// APIKeyConfig configures API key authentication for the management endpoints.
type APIKeyConfig struct {
	// ValidKeys maps accepted keys to a human-readable name.
	ValidKeys map[string]string
	// HeaderName defaults to X-API-Key.
	HeaderName string
	// Optional lets requests without a key through, marked as not validated.
	Optional bool
}

// DefaultAPIKeyConfig reads the key from X-API-Key.
var DefaultAPIKeyConfig = APIKeyConfig{
	HeaderName: "X-API-Key",
	Optional:   false,
}

// APIKey validates requests against a fixed set of keys.
type APIKey struct {
	config APIKeyConfig
}

// NewAPIKey fills in the default header name when none is given.
func NewAPIKey(config APIKeyConfig) *APIKey {
	if config.HeaderName == "" {
		config.HeaderName = DefaultAPIKeyConfig.HeaderName
	}
	return &APIKey{config: config}
}

// Middleware checks the configured header, then an Authorization: Bearer token.
// Query parameters are not accepted: short links get shared and keys would leak.
func (ak *APIKey) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(ak.config.HeaderName)

		if apiKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				apiKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if apiKey == "" {
			if ak.config.Optional {
				c.Set(ContextKeyValidated, false)
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_api_key",
				"message": "API key required in " + ak.config.HeaderName + " or Authorization: Bearer",
			})
			return
		}

		keyName, ok := ak.lookup(apiKey)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_api_key",
				"message": "Invalid API key",
			})
			return
		}

		c.Set(ContextKeyValidated, true)
		c.Set(ContextKeyName, keyName)

		c.Next()
	}
}

// lookup compares against every key in constant time.
func (ak *APIKey) lookup(apiKey string) (string, bool) {
	var (
		found   bool
		keyName string
	)
	for validKey, name := range ak.config.ValidKeys {
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(validKey)) == 1 {
			found = true
			keyName = name
		}
	}
	return keyName, found
}

// RequireAPIKey returns a middleware that rejects requests without a valid key.
func RequireAPIKey(validKeys map[string]string) gin.HandlerFunc {
	return NewAPIKey(APIKeyConfig{ValidKeys: validKeys}).Middleware()
}

// IsAPIKeyValidated reports whether the request carried a valid key.
func IsAPIKeyValidated(c *gin.Context) bool {
	return c.GetBool(ContextKeyValidated)
}
