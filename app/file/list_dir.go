package file

import (
	"bitwise74/fileshare-api/app/reply"
	"bitwise74/fileshare-api/internal"
	"bitwise74/fileshare-api/pkg/vpath"
	"net/http"

	"github.com/gin-gonic/gin"
)

// FileListDir returns the folders and files directly inside ?path=, which
// defaults to the root
func FileListDir(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	dir := c.DefaultQuery("path", vpath.Root)
	if vpath.Clean(dir) != vpath.Root {
		if err := vpath.Validate(dir); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     err.Error(),
				"requestID": requestID,
			})
			return
		}
	}

	l, err := d.Files.Directory(c.Request.Context(), userID, dir)
	if err != nil {
		reply.Error(c, err, "Failed to list directory")
		return
	}

	c.JSON(http.StatusOK, l)
}
