// Package handlers implements the HTTP API of the risk processing
// service.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

// errorBody is the envelope every error response uses.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError maps an application error onto its HTTP status.
func respondError(c *gin.Context, err error) {
	code := apperrors.GetCode(err)
	status := apperrors.HTTPStatusForCode(code)

	message := apperrors.DefaultMessageForCode(code)
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": errorBody{
		Code:    string(code),
		Message: message,
	}})
}

// pathUUID parses a UUID path parameter, answering 400 on garbage.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": errorBody{
			Code:    string(apperrors.ErrCodeBadRequest),
			Message: name + " must be a UUID",
		}})
		return uuid.Nil, false
	}
	return id, true
}
