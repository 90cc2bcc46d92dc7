package file

import (
	"bitwise74/fileshare-api/app/reply"
	"bitwise74/fileshare-api/internal"
	"net/http"

	"github.com/gin-gonic/gin"
)

type fileDeleteBody struct {
	FID string `json:"fid" binding:"required"`
}

func FileDelete(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	var data fileDeleteBody
	if err := c.ShouldBindJSON(&data); err != nil {
		reply.BadBody(c, err)
		return
	}

	stats, err := d.Files.Delete(c.Request.Context(), userID, data.FID)
	if err != nil {
		reply.Error(c, err, "Failed to delete file")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats": stats,
	})
}
