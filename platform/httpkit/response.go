// Package httpkit holds the gin helpers shared by every module handler:
// authentication, request logging, rate limiting and error responses.
package httpkit

import (
	"errors"
	"net/http"

	"techo_backend/platform/apperr"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Error answers a request-level failure (binding, bad parameters).
func Error(c *gin.Context, status int, message string, details any) {
	c.JSON(status, ErrorResponse{Error: message, Details: details})
}

func OK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func Created(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// HandleError writes err and reports whether there was one. Typed errors
// answer with their kind's status and code; anything else is a 500 whose
// message is not exposed.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: apperr.KindInternal.String()})
		return true
	}

	status := appErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, ErrorResponse{
		Error:   appErr.Message,
		Code:    appErr.Kind.String(),
		Details: appErr.Details,
	})
	return true
}
