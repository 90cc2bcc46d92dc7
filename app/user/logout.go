package user

import (
	"bitwise74/fileshare-api/internal"
	"bitwise74/fileshare-api/pkg/middleware"
	"net/http"

	"github.com/gin-gonic/gin"
)

func UserLogout(c *gin.Context, d *internal.Deps) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.TokenCookie, "", -1, "/", "", d.SecureCookies, true)

	c.JSON(http.StatusOK, gin.H{
		"message": "Logged out successfully",
	})
}
