package middleware

import (
	"net/http"
	"strings"

	"fieldhand/models"
	"fieldhand/utils"

	"github.com/gin-gonic/gin"
)

const actorKey = "actor"

// ActorAuthMiddleware resolves the bearer token into a models.Actor.
// Only customer, provider and admin tokens are accepted; system work never
// arrives over HTTP.
func ActorAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			utils.JSONError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid Authorization header", "")
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := utils.ExtractActorClaims(secret, tokenString)
		if err != nil {
			utils.JSONError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token", err.Error())
			return
		}
		kind, err := models.ParseActorKind(claims.Role)
		if err != nil {
			utils.JSONError(c, http.StatusForbidden, "FORBIDDEN", "Role not allowed", err.Error())
			return
		}

		c.Set(actorKey, models.Actor{Kind: kind, ID: claims.Subject})
		c.Next()
	}
}

// RequireRole rejects actors whose kind is not listed. Must run after ActorAuthMiddleware.
func RequireRole(kinds ...models.ActorKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			utils.JSONError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", "")
			return
		}
		for _, k := range kinds {
			if actor.Kind == k {
				c.Next()
				return
			}
		}
		utils.JSONError(c, http.StatusForbidden, "FORBIDDEN", "Role not allowed", string(actor.Kind))
	}
}

// ActorFromContext returns the actor set by ActorAuthMiddleware.
func ActorFromContext(c *gin.Context) (models.Actor, bool) {
	v, exists := c.Get(actorKey)
	if !exists {
		return models.Actor{}, false
	}
	actor, ok := v.(models.Actor)
	return actor, ok
}
