package middleware

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prefeitura-rio/app-credentialing/internal/models"
	"github.com/prefeitura-rio/app-credentialing/internal/observability"
	"go.uber.org/zap"
)

// Context keys set by AuthMiddleware
const (
	ClaimsKey   = "claims"
	ReviewerKey = "reviewer"
)

// ErrClaimsNotFound is returned when a handler runs without AuthMiddleware
var ErrClaimsNotFound = errors.New("claims not found")

// AuthMiddleware extracts the JWT claims from the Authorization header.
// Signatures are validated by the ingress; this only decodes the payload.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		claims, err := extractClaims(parts[1])
		if err != nil {
			observability.Logger().Warn("failed to extract claims from token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(ReviewerKey, claims.ReviewerIdentity())
		c.Next()
	}
}

func extractClaims(token string) (*models.JWTClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid token format")
	}

	claimsBytes, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("failed to decode claims: %w", err)
	}

	var claims models.JWTClaims
	if err := json.Unmarshal(claimsBytes, &claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}
	return &claims, nil
}

// RequireRole lets the request through when the caller holds any of roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := ClaimsFrom(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Claims not found"})
			return
		}

		for _, role := range roles {
			if role != "" && claims.HasRole(role) {
				c.Next()
				return
			}
		}

		observability.Logger().Info("role check denied",
			zap.String("reviewer", claims.ReviewerIdentity()),
			zap.String("path", c.FullPath()))
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient privileges"})
	}
}

// ClaimsFrom returns the claims stored by AuthMiddleware
func ClaimsFrom(c *gin.Context) (*models.JWTClaims, error) {
	value, exists := c.Get(ClaimsKey)
	if !exists {
		return nil, ErrClaimsNotFound
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims type %T", value)
	}
	return claims, nil
}

// ReviewerFrom returns the caller identity recorded on committee decisions
func ReviewerFrom(c *gin.Context) (string, error) {
	claims, err := ClaimsFrom(c)
	if err != nil {
		return "", err
	}
	return claims.ReviewerIdentity(), nil
}
