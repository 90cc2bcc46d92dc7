package middleware

import (
	"bitwise74/fileshare-api/pkg/security"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TokenCookie is the name of the httpOnly cookie carrying the session token
const TokenCookie = "token"

// TokenFromRequest returns the bearer token of the request, falling back to
// the session cookie
func TokenFromRequest(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
	}

	tok, err := c.Cookie(TokenCookie)
	if err != nil {
		return ""
	}

	return tok
}

// NewJWTMiddleware rejects requests without a valid session token. The
// token alone is trusted, no lookup is made.
func NewJWTMiddleware(t *security.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetString("requestID")

		tokenStr := TokenFromRequest(c)
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "Access denied. No token provided",
				"requestID": requestID,
			})
			return
		}

		claims, err := t.Parse(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "Invalid or expired token",
				"requestID": requestID,
			})

			zap.L().Debug("Rejected token", zap.Error(err), zap.String("requestID", requestID))
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("identity", claims)
		c.Next()
	}
}
