package transport

import (
	"context"
	"errors"
	"net/http"

	"github.com/ds124wfegd/civicportal/internal/entity"
	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrInvalidResource),
		errors.Is(err, entity.ErrInvalidVenue),
		errors.Is(err, entity.ErrInvalidRegistration):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrInvalidPartySize),
		errors.Is(err, entity.ErrInvalidInterval):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrAlreadyCancelled):
		return http.StatusConflict
	case errors.Is(err, entity.ErrBusy),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.Is(err, entity.ErrStoreUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func handleError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", "1")
	}
	_ = c.Error(err)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: msg})
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
}
