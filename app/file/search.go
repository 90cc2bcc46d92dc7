package file

import (
	"bitwise74/fileshare-api/app/reply"
	"bitwise74/fileshare-api/internal"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

var validLimits = []int{10, 20, 50, 100, 250}

// FileSearch finds files whose name contains ?query=
func FileSearch(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "No search query provided",
			"requestID": requestID,
		})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || !slices.Contains(validLimits, limit) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid limit provided",
			"requestID": requestID,
		})
		return
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil || page < 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid page provided",
			"requestID": requestID,
		})
		return
	}

	files, err := d.Files.Search(c.Request.Context(), userID, query, limit, page)
	if err != nil {
		reply.Error(c, err, "Failed to search files")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"files": files,
	})
}
