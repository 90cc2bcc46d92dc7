package user

import (
	"bitwise74/fileshare-api/app/reply"
	"bitwise74/fileshare-api/internal"
	"bitwise74/fileshare-api/pkg/security"
	"net/http"

	"github.com/gin-gonic/gin"
)

// UserFetch returns the identity carried by the token together with the
// user's storage stats
func UserFetch(c *gin.Context, d *internal.Deps) {
	identity := c.MustGet("identity").(*security.Claims)

	stats, err := d.Files.Stats(c.Request.Context(), identity.UserID)
	if err != nil {
		reply.Error(c, err, "Failed to load user stats")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":    identity.UserID,
		"name":  identity.Name,
		"email": identity.Email,
		"stats": stats,
	})
}
