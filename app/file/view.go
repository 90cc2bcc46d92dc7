package file

import (
	"bitwise74/fileshare-api/app/reply"
	"bitwise74/fileshare-api/internal"
	"net/http"

	"github.com/gin-gonic/gin"
)

// FileView returns a short lived download URL for ?fid=
func FileView(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	fid := c.Query("fid")
	if fid == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "No file ID provided",
			"requestID": requestID,
		})
		return
	}

	url, file, err := d.Files.ViewURL(c.Request.Context(), userID, fid)
	if err != nil {
		reply.Error(c, err, "Error generating presigned url")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"presignedURL": url,
		"name":         file.DisplayName,
		"type":         file.Type,
		"size":         file.Size,
	})
}
