package api

import (
	"github.com/Domenick1991/tourbooking/internal/apperror"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError renders err as {code, message}. Causes of internal failures are
// logged by the service and never leave the process.
func writeError(c *gin.Context, err error) {
	code := apperror.CodeOf(err)
	c.JSON(apperror.HTTPStatus(code), errorResponse{Code: string(code), Message: apperror.MessageOf(err)})
}

func badRequest(c *gin.Context, msg string) {
	writeError(c, apperror.Validation("%s", msg))
}
