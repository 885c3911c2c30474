package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	apperrors "github.com/david-solomon-henshaw/MedAppV1/pkg/errors"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/validator"
)

type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func NewErrorResponse(message string) *ErrorResponse {
	return &ErrorResponse{Message: message}
}

// RespondError writes err with the status of its AppError code. Internal
// errors are logged and replaced by an opaque body.
func RespondError(c *gin.Context, err error) {
	appErr := apperrors.As(err)
	status := appErr.StatusCode()
	_ = c.Error(err)

	if status >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("request_id", c.GetString(ContextRequestID)).
			Str("path", c.FullPath()).
			Msg("request failed")
		c.JSON(status, ErrorResponse{Message: "Internal server error", Error: "internal server error"})
		return
	}
	c.JSON(status, NewErrorResponse(appErr.Message))
}

// RespondBindError reports a malformed or invalid request body.
func RespondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, NewErrorResponse(validator.Describe(err)))
}
