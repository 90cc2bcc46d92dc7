package user

import (
	"bitwise74/fileshare-api/internal"
	"bitwise74/fileshare-api/pkg/middleware"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type verifyBody struct {
	Token string `json:"token"`
}

// UserVerify reports who a session token belongs to. The token can come in
// the body, the Authorization header or the session cookie.
func UserVerify(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var data verifyBody
	if c.Request.ContentLength > 0 {
		// A body that isn't JSON is treated like a missing token
		_ = c.ShouldBindJSON(&data)
	}

	token := data.Token
	if token == "" {
		token = middleware.TokenFromRequest(c)
	}

	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":     "Not logged in",
			"requestID": requestID,
		})
		return
	}

	claims, err := d.Tokens.Parse(token)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{
			"error":     "Invalid or expired token",
			"requestID": requestID,
		})

		zap.L().Debug("Token verification failed", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":    claims.UserID,
		"name":  claims.Name,
		"email": claims.Email,
		"exp":   claims.ExpiresAt.Unix(),
	})
}
