package file

import (
	"bitwise74/fileshare-api/app/reply"
	"bitwise74/fileshare-api/internal"
	"bitwise74/fileshare-api/internal/model"
	"cmp"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
)

// AZ = A - Z as in alphabetic same for ZA
var validSortOpts = []string{"path", "newest", "oldest", "az", "za", "size-asc", "size-desc"}

// FileFetchBulk returns every file of the user, there is no pagination.
// Folders are derived from the paths by the client.
func FileFetchBulk(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	sort := strings.ToLower(c.DefaultQuery("sort", "path"))
	if !slices.Contains(validSortOpts, sort) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid sorting option",
			"requestID": requestID,
		})
		return
	}

	files, err := d.Files.List(c.Request.Context(), userID)
	if err != nil {
		reply.Error(c, err, "Failed getting all files")
		return
	}

	switch sort {
	case "newest":
		slices.SortStableFunc(files, func(a, b model.File) int { return cmp.Compare(b.CreatedAt, a.CreatedAt) })
	case "oldest":
		slices.SortStableFunc(files, func(a, b model.File) int { return cmp.Compare(a.CreatedAt, b.CreatedAt) })
	case "az":
		slices.SortStableFunc(files, func(a, b model.File) int { return cmp.Compare(a.Label(), b.Label()) })
	case "za":
		slices.SortStableFunc(files, func(a, b model.File) int { return cmp.Compare(b.Label(), a.Label()) })
	case "size-asc":
		slices.SortStableFunc(files, func(a, b model.File) int { return cmp.Compare(a.Size, b.Size) })
	case "size-desc":
		slices.SortStableFunc(files, func(a, b model.File) int { return cmp.Compare(b.Size, a.Size) })
	}

	c.JSON(http.StatusOK, gin.H{
		"files": files,
	})
}
