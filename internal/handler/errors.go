package handler

import (
	"errors"
	"net/http"

	"finops-backend/pkg/apperr"
	"finops-backend/pkg/response"

	"github.com/gin-gonic/gin"
)

// respondError translates typed domain errors into transport-level statuses.
// Services never see HTTP; this is the only place the mapping lives.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case apperr.IsNotFound(err):
		status = http.StatusNotFound
	case apperr.IsConflict(err), apperr.IsRetryable(err):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrInsufficientFunds):
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, response.Error(status, err.Error()))
}
