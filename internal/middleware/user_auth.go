package middleware

import (
	"github.com/gin-gonic/gin"

	"eatery/internal/auth"
)

// OptionalAuth attaches the identity when a valid token is present and lets anonymous
// requests through untouched. An invalid token is treated as anonymous.
func OptionalAuth(tokens *auth.Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, ok := auth.BearerToken(c.GetHeader("Authorization")); ok {
			if identity, err := tokens.Parse(raw); err == nil {
				c.Set(identityKey, identity)
			}
		}
		c.Next()
	}
}

func IdentityFrom(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}
	identity, ok := v.(auth.Identity)
	return identity, ok
}

// SetIdentity is used by tests and internal callers that authenticate by other means.
func SetIdentity(c *gin.Context, identity auth.Identity) {
	c.Set(identityKey, identity)
}
