package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"home-service-server/types"
	"home-service-server/utils"
)

const (
	actorKey  = "actor"
	claimsKey = "claims"
)

// AuthMiddleware validates the bearer token and stores the verified actor in the context
func AuthMiddleware(secret, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "Authorization header required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader || tokenString == "" {
			abortUnauthorized(c, "Token must be in format: Bearer <token>")
			return
		}

		authenticate(c, tokenString, secret, issuer)
	}
}

// WebSocketAuthMiddleware reads the token from the query string, since browsers
// cannot set headers on websocket upgrades
func WebSocketAuthMiddleware(secret, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.Query("token")
		if tokenString == "" {
			abortUnauthorized(c, "Please provide a valid token in query parameters")
			return
		}
		authenticate(c, tokenString, secret, issuer)
	}
}

func authenticate(c *gin.Context, tokenString, secret, issuer string) {
	claims, err := utils.VerifyToken(tokenString, secret, issuer)
	if err != nil {
		abortUnauthorized(c, "Token is invalid or expired")
		return
	}

	actor, err := claims.Actor()
	if err != nil {
		abortUnauthorized(c, "Token does not identify a known role")
		return
	}

	c.Set(actorKey, actor)
	c.Set(claimsKey, claims)
	c.Set("user_id", actor.ID())
	c.Next()
}

// RequireRole lets through only actors holding one of the roles
func RequireRole(roles ...types.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			abortUnauthorized(c, "Authentication required")
			return
		}
		for _, r := range roles {
			if actor.Role() == r {
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "This endpoint requires role " + joinRoles(roles),
		})
		c.Abort()
	}
}

// ActorFrom returns the actor set by AuthMiddleware
func ActorFrom(c *gin.Context) (types.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return types.Actor{}, false
	}
	actor, ok := v.(types.Actor)
	return actor, ok
}

// ClaimsFrom returns the verified token claims
func ClaimsFrom(c *gin.Context) (*types.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*types.Claims)
	return claims, ok
}

func abortUnauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"error":   "unauthorized",
		"message": message,
	})
	c.Abort()
}

func joinRoles(roles []types.Role) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, " or ")
}
