package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medvault-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Status  string           `json:"status"`
	Code    errors.ErrorCode `json:"code,omitempty"`
	Message string           `json:"message,omitempty"`
	Data    interface{}      `json:"data,omitempty"`
}

// RespondWithSuccess sends a 200 success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	RespondWithStatus(c, http.StatusOK, data)
}

// RespondWithStatus sends a success response with an explicit status
func RespondWithStatus(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Status: "success",
		Data:   data,
	})
}

// RespondWithError maps err to its status and code. Errors that are not
// AppErrors are reported as INTERNAL without leaking their text.
func RespondWithError(c *gin.Context, err error) {
	code := errors.CodeOf(err)
	message := "internal server error"

	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	c.AbortWithStatusJSON(errors.HTTPStatus(code), Response{
		Status:  "error",
		Code:    code,
		Message: message,
	})
}
