package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestBudgetCategory_Recalculate(t *testing.T) {
	category := BudgetCategory{
		Items: []BudgetItem{
			{Amount: money("100.25"), BudgetedItemAmount: money("150")},
			{Amount: money("49.75"), BudgetedItemAmount: money("50")},
		},
	}

	category.Recalculate()

	assert.True(t, category.Amount.Equal(money("150")))
	assert.True(t, category.BudgetedAmount.Equal(money("200")))
}

func TestBudgetCategory_Recalculate_EmptyIsZero(t *testing.T) {
	category := BudgetCategory{Amount: money("999"), BudgetedAmount: money("999")}

	category.Recalculate()

	assert.True(t, category.Amount.IsZero())
	assert.True(t, category.BudgetedAmount.IsZero())
}

func TestBudget_CategoryByRole(t *testing.T) {
	budget := Budget{
		Categories: []BudgetCategory{
			{ID: uuid.New(), Role: CategoryRoleGeneral},
			{ID: uuid.New(), Role: CategoryRoleProcurement},
		},
	}

	found := budget.CategoryByRole(CategoryRoleProcurement)
	require.NotNil(t, found)
	assert.Equal(t, budget.Categories[1].ID, found.ID)

	assert.Nil(t, budget.CategoryByRole(CategoryRoleLogistics))
}

func TestLogistics_RecalculateTotals(t *testing.T) {
	sheet := Logistics{
		TransportationDetails: []TransportationDetail{{Price: money("350")}, {Price: money("150")}},
		AccommodationDetails:  []AccommodationDetail{{Price: money("200")}},
		AdditionalExpenses:    []AdditionalExpense{{Amount: money("49.5")}},
	}

	sheet.RecalculateTotals()

	assert.True(t, sheet.TransportationTotal.Equal(money("500")))
	assert.True(t, sheet.AccommodationTotal.Equal(money("200")))
	assert.True(t, sheet.ExpensesTotal.Equal(money("49.5")))
	assert.True(t, sheet.GrandTotal.Equal(money("749.5")))
}
