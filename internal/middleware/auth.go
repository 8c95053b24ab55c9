package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/coredesk/coredesk-gateway/internal/response"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Context keys set by RequireAuth and consumed by the quota middleware
const (
	CtxActorID  = "actor_id"
	CtxTenantID = "tenant_id"
	CtxRole     = "role"
)

// RequireAuth validates the bearer token minted by the identity service and
// extracts the authenticated actor and tenant. Session establishment itself
// is not this service's job; a request either arrives with valid claims or
// is rejected.
func RequireAuth(jwtSecret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.AbortError(c, http.StatusUnauthorized, response.CodeUnauthorized,
				"Authorization header required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.AbortError(c, http.StatusUnauthorized, response.CodeUnauthorized,
				"Invalid authorization header format. Use: Bearer <token>")
			return
		}

		claims, err := parseClaims(parts[1], jwtSecret)
		if err != nil {
			response.AbortError(c, http.StatusUnauthorized, response.CodeUnauthorized,
				"Invalid or expired token")
			return
		}

		actorID, ok := claims["user_id"].(string)
		if !ok || actorID == "" {
			response.AbortError(c, http.StatusUnauthorized, response.CodeUnauthorized,
				"Token missing user identity")
			return
		}

		c.Set(CtxActorID, actorID)
		if tenantID, ok := claims["tenant_id"].(string); ok {
			c.Set(CtxTenantID, tenantID)
		}
		if role, ok := claims["role"].(string); ok {
			c.Set(CtxRole, role)
		}

		c.Next()
	}
}

// RequireAdmin must run after RequireAuth
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(CtxRole) != "admin" {
			response.AbortError(c, http.StatusForbidden, response.CodeForbidden,
				"Admin role required")
			return
		}
		c.Next()
	}
}

func parseClaims(tokenString string, secret []byte) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}

// TenantID extracts and parses the tenant claim set by RequireAuth. A missing
// tenant on a tenant-scoped route is a programmer error (route misconfigured
// before auth), not user behavior, so callers surface it as a 500.
func TenantID(c *gin.Context) (uuid.UUID, error) {
	raw := c.GetString(CtxTenantID)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("missing tenant context")
	}

	tenantID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("malformed tenant id %q: %w", raw, err)
	}

	return tenantID, nil
}

// ActorUUID parses the actor claim set by RequireAuth
func ActorUUID(c *gin.Context) (uuid.UUID, error) {
	raw := c.GetString(CtxActorID)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("missing actor context")
	}

	return uuid.Parse(raw)
}
