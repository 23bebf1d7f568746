package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/moodtune/internal/api/middleware"
	"github.com/timmy/moodtune/internal/domain"
)

// errorStatus maps a pipeline or storage error to its HTTP status.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrFaceNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrUnsupportedImage):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, domain.ErrInvalidImage):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSchema):
		return http.StatusInternalServerError
	case errors.Is(err, domain.ErrLoad), errors.Is(err, domain.ErrDataUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrInference):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error response and logs server-side failures.
func respondError(c *gin.Context, message string, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		middleware.GetLogger(c).WithError(err).Error(message)
	}
	c.JSON(status, gin.H{
		"status": "error",
		"error":  message + ": " + err.Error(),
	})
}
