package file

import (
	"bitwise74/fileshare-api/app/reply"
	"bitwise74/fileshare-api/internal"
	"bitwise74/fileshare-api/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

type fileEditBody struct {
	FID  string `json:"fid" binding:"required"`
	Name string `json:"name" binding:"required"`
	Path string `json:"path" binding:"required,logicalpath"`
}

// FileEdit renames and/or moves a file. Only metadata changes, the stored
// object keeps its key.
func FileEdit(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	var data fileEditBody
	if err := c.ShouldBindJSON(&data); err != nil {
		reply.BadBody(c, err)
		return
	}

	file, changed, err := d.Files.Rename(c.Request.Context(), service.RenameRequest{
		UserID: userID,
		FID:    data.FID,
		Name:   data.Name,
		Path:   data.Path,
	})
	if err != nil {
		reply.Error(c, err, "Failed to update file details")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"file":    file,
		"changed": changed,
	})
}
