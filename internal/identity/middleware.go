package identity

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const ctxSessionClaims = "psync_session_claims"

// RequireToken returns a Gin middleware that enforces a valid session Bearer
// token and injects its claims into the request context.
func RequireToken(tokens *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := bearerClaims(c, tokens)
		if !ok {
			return
		}
		c.Set(ctxSessionClaims, claims)
		c.Next()
	}
}

// RequireAdmin returns a Gin middleware that enforces a valid admin Bearer
// token. Only tokens with Role="admin" are accepted.
func RequireAdmin(tokens *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := bearerClaims(c, tokens)
		if !ok {
			return
		}
		if claims.Role != "admin" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "admin role required",
			})
			return
		}
		c.Set(ctxSessionClaims, claims)
		c.Next()
	}
}

func bearerClaims(c *gin.Context, tokens *TokenIssuer) (*SessionClaims, bool) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "Bearer session token required",
		})
		return nil, false
	}

	claims, err := tokens.Verify(strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid session token: " + err.Error(),
		})
		return nil, false
	}
	return claims, true
}

// ClaimsFromCtx retrieves the session claims injected by RequireToken.
// Returns nil if no session token is present in the context.
func ClaimsFromCtx(c *gin.Context) *SessionClaims {
	v, _ := c.Get(ctxSessionClaims)
	claims, _ := v.(*SessionClaims)
	return claims
}

// ActorFromCtx returns the acting user's ID, or 0 when unauthenticated.
func ActorFromCtx(c *gin.Context) int64 {
	if claims := ClaimsFromCtx(c); claims != nil {
		return claims.ActorID
	}
	return 0
}
