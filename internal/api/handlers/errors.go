package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/crossover-go/internal/ccxt"
	"github.com/irfndi/crossover-go/internal/database"
	"github.com/irfndi/crossover-go/internal/services"
	"github.com/irfndi/crossover-go/internal/utils"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) (int, string) {
	var serviceErr *ccxt.ServiceError
	switch {
	case utils.IsInvalidInput(err):
		return http.StatusBadRequest, "invalid_input"
	case utils.IsInsufficientData(err):
		return http.StatusUnprocessableEntity, "insufficient_data"
	case errors.Is(err, database.ErrRunNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, services.ErrCircuitOpen):
		return http.StatusServiceUnavailable, "upstream_unavailable"
	case errors.As(err, &serviceErr):
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// respondError writes err with its mapped status. Internal errors are
// recorded on the context for the request logger and not echoed to clients.
func respondError(c *gin.Context, err error) {
	status, code := statusFor(err)
	_ = c.Error(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "an unexpected error occurred"
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: code, Message: message})
}
