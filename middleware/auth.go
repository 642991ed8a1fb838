package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"traffic-telemetry-api/models"
	"traffic-telemetry-api/services"

	"github.com/gin-gonic/gin"
)

const (
	APIKeyHeader = "X-Api-Key"

	ctxUserID = "user_id"
	ctxEmail  = "email"
	ctxRole   = "role"
	ctxAPIKey = "api_key"
)

type TokenValidator interface {
	ValidateToken(token string) (*services.Claims, error)
}

type KeyValidator interface {
	Validate(ctx context.Context, plain string) (models.APIKey, error)
}

// Authenticate resolves the caller from a Bearer token or, when keys is non-nil, an API
// key. Anonymous requests pass through; bad credentials are rejected with 401.
func Authenticate(tokens TokenValidator, keys KeyValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, cred := splitAuthorization(c.GetHeader("Authorization"))
		if h := c.GetHeader(APIKeyHeader); h != "" && scheme == "" {
			scheme, cred = "api-key", h
		}

		switch scheme {
		case "":
		case "bearer", "token":
			claims, err := tokens.ValidateToken(cred)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
				return
			}
			c.Set(ctxUserID, claims.UserID)
			c.Set(ctxEmail, claims.Email)
			c.Set(ctxRole, claims.Role)
		case "api-key":
			if keys == nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "api keys are not accepted here"})
				return
			}
			key, err := keys.Validate(c.Request.Context(), cred)
			if errors.Is(err, services.ErrInvalidAPIKey) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
				return
			}
			if err != nil {
				log.Printf("api key validation failed: %v", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
				return
			}
			c.Set(ctxAPIKey, key.Prefix)
		default:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unsupported authorization scheme"})
			return
		}
		c.Next()
	}
}

// RequireAuthOrReadOnly lets safe methods through and demands an authenticated user
// for everything else. An API key counts only when allowKey is set.
func RequireAuthOrReadOnly(allowKey bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		if _, ok := UserID(c); ok {
			c.Next()
			return
		}
		if _, ok := c.Get(ctxAPIKey); ok && allowKey {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication credentials were not provided"})
	}
}

// RequireUser rejects anonymous callers regardless of method.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := UserID(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication credentials were not provided"})
			return
		}
		c.Next()
	}
}

func UserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

func splitAuthorization(header string) (string, string) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ""
	}
	scheme, cred, found := strings.Cut(header, " ")
	if !found {
		return "invalid", ""
	}
	return strings.ToLower(scheme), strings.TrimSpace(cred)
}
