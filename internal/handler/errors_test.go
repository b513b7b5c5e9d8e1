package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"finops-backend/pkg/apperr"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRespondError_StatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", &apperr.NotFoundError{Entity: "budget", ID: "x"}, http.StatusNotFound},
		{"validation", &apperr.ValidationError{Field: "amount", Message: "required"}, http.StatusBadRequest},
		{"conflict", &apperr.ConflictError{Entity: "aligned amount", ID: "x", Message: "already APPROVED"}, http.StatusConflict},
		{"concurrent modification", apperr.ErrConcurrentModification, http.StatusConflict},
		{"insufficient funds", &apperr.InsufficientFundsError{
			BudgetItemID: "x",
			Requested:    decimal.RequireFromString("100"),
			Available:    decimal.RequireFromString("40"),
		}, http.StatusUnprocessableEntity},
		{"invariant violation", &apperr.InvariantViolationError{
			Entity:   "category",
			ID:       "x",
			Field:    "amount",
			Stored:   decimal.RequireFromString("10"),
			Computed: decimal.RequireFromString("20"),
		}, http.StatusInternalServerError},
		{"unclassified", assertErr{}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(recorder)

			respondError(c, tt.err)

			assert.Equal(t, tt.want, recorder.Code)
		})
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
