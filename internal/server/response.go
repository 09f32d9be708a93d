package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qmlabs-dsdi/coa-processor/internal/common"
)

// ApiResponse is the uniform envelope every endpoint returns.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func respondOK(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, ApiResponse{Success: true, Data: data, Message: message})
}

func respondError(c *gin.Context, status int, err error) {
	c.JSON(status, ApiResponse{Success: false, Error: err.Error()})
}

// statusForError maps domain errors to HTTP statuses. Vault authentication
// failures are the upstream's fault, not the caller's; everything unknown is
// a 500.
func statusForError(err error) int {
	var verr *common.VaultAPIError
	if errors.As(err, &verr) && verr.IsAuth() {
		return http.StatusBadGateway
	}
	switch {
	case errors.Is(err, common.ErrSourceUnavailable):
		return http.StatusNotFound
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondDomainError(c *gin.Context, err error) {
	respondError(c, statusForError(err), err)
}
