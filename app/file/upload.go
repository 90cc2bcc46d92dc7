package file

import (
	"bitwise74/fileshare-api/app/reply"
	"bitwise74/fileshare-api/internal"
	"bitwise74/fileshare-api/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

type uploadBody struct {
	Name string `json:"name" binding:"required"`
	Type string `json:"type" binding:"required"`
	Path string `json:"path" binding:"required,logicalpath"`
	Size int64  `json:"size" binding:"required"`
}

// FileUpload hands out an upload slot. The client PUTs the bytes to the
// returned URL and then calls FileUploadSuccess with the fid.
func FileUpload(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	var data uploadBody
	if err := c.ShouldBindJSON(&data); err != nil {
		reply.BadBody(c, err)
		return
	}

	slot, err := d.Uploader.IssueSlot(c.Request.Context(), service.SlotRequest{
		UserID:      userID,
		Name:        data.Name,
		Path:        data.Path,
		ContentType: data.Type,
		Size:        data.Size,
	})
	if err != nil {
		reply.Error(c, err, "Failed to generate presignedURL")
		return
	}

	c.JSON(http.StatusOK, slot)
}
