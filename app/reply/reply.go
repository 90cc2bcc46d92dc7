// Package reply turns service errors into the JSON error bodies every
// handler responds with
package reply

import (
	"bitwise74/fileshare-api/internal/service"
	"bitwise74/fileshare-api/pkg/middleware"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Status maps a service error to the status code and message the client
// sees. Anything unknown is a 500 carrying fallback.
func Status(err error, fallback string) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrSlotNotFound),
		errors.Is(err, service.ErrSlotExpired),
		errors.Is(err, service.ErrObjectMissing):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrFileNotFound),
		errors.Is(err, service.ErrDirNotFound),
		errors.Is(err, service.ErrShareNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrPathTaken):
		return http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrFileTooLarge),
		errors.Is(err, service.ErrQuotaExceeded):
		return http.StatusRequestEntityTooLarge, err.Error()
	}

	return http.StatusInternalServerError, fallback
}

// Error writes the error body for err. Only server side failures are
// logged as errors, the rest are the client's fault.
func Error(c *gin.Context, err error, fallback string) {
	requestID := c.GetString("requestID")
	code, msg := Status(err, fallback)

	if code >= http.StatusInternalServerError {
		zap.L().Error(fallback, zap.Error(err), zap.String("requestID", requestID))
	} else {
		zap.L().Debug("Request rejected", zap.Int("status", code), zap.Error(err), zap.String("requestID", requestID))
	}

	c.AbortWithStatusJSON(code, gin.H{
		"error":     msg,
		"requestID": requestID,
	})
}

// BadBody responds to a request body that couldn't be bound
func BadBody(c *gin.Context, err error) {
	requestID := c.GetString("requestID")

	if middleware.IsBodyTooLarge(err) {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":     "Request body size exceeds limit",
			"requestID": requestID,
		})
		return
	}

	zap.L().Debug("Can't bind request body", zap.Error(err), zap.String("requestID", requestID))

	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":     "Invalid request body",
		"requestID": requestID,
	})
}
