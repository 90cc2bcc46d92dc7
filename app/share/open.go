package share

import (
	"bitwise74/fileshare-api/app/reply"
	"bitwise74/fileshare-api/internal"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ShareOpen uses up one view of a link and returns a download URL for the
// file behind it. No session is needed.
func ShareOpen(c *gin.Context, d *internal.Deps) {
	url, name, err := d.Shares.Open(c.Request.Context(), c.Param("token"))
	if err != nil {
		reply.Error(c, err, "Failed to open share link")
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{
		"presignedURL": url,
		"name":         name,
	})
}
