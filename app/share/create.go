// Package share contains the handlers behind public share links
package share

import (
	"bitwise74/fileshare-api/app/reply"
	"bitwise74/fileshare-api/internal"
	"bitwise74/fileshare-api/internal/service"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type shareBody struct {
	FID         string `json:"fid" binding:"required"`
	ViewOnce    bool   `json:"viewOnce"`
	ExpireHours int    `json:"expireHours"`
	MaxViews    int    `json:"maxViews"`
}

func ShareCreate(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	var data shareBody
	if err := c.ShouldBindJSON(&data); err != nil {
		reply.BadBody(c, err)
		return
	}

	s, err := d.Shares.Create(c.Request.Context(), userID, data.FID, service.ShareOptions{
		ViewOnce:    data.ViewOnce,
		ExpireHours: data.ExpireHours,
		MaxViews:    data.MaxViews,
	})
	if err != nil {
		reply.Error(c, err, "Failed to create share link")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     s.Token,
		"url":       shareURL(c, d.PublicURL, s.Token),
		"expiresAt": s.ExpiresAt,
		"maxViews":  s.MaxViews,
	})
}

// shareURL builds the public link, falling back to the host the request
// came in on
func shareURL(c *gin.Context, base, token string) string {
	if base == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + c.Request.Host
	}

	return strings.TrimRight(base, "/") + "/share/" + token
}
