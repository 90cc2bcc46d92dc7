package file

import (
	"bitwise74/fileshare-api/app/reply"
	"bitwise74/fileshare-api/internal"
	"bitwise74/fileshare-api/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

type uploadSuccessBody struct {
	FID          string `json:"fid" binding:"required"`
	OriginalName string `json:"originalName"`
	CustomName   string `json:"customName"`
	Path         string `json:"path"`
	Type         string `json:"type"`
	Size         int64  `json:"size"`
}

// FileUploadSuccess finalizes an upload slot into a file record. When this
// fails after the object was uploaded, the object is deleted again. Fields
// other than the fid are checked by the uploader so that a bad value still
// cleans up the object.
func FileUploadSuccess(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	var data uploadSuccessBody
	if err := c.ShouldBindJSON(&data); err != nil {
		reply.BadBody(c, err)
		return
	}

	file, err := d.Uploader.Finalize(c.Request.Context(), service.FinalizeRequest{
		UserID:       userID,
		FID:          data.FID,
		OriginalName: data.OriginalName,
		CustomName:   data.CustomName,
		Path:         data.Path,
		ContentType:  data.Type,
		Size:         data.Size,
	})
	if err != nil {
		reply.Error(c, err, "Upload verification failed")
		return
	}

	c.JSON(http.StatusOK, file)
}
