package service_test

import (
	"context"
	"errors"
	"testing"

	"finops-backend/internal/service"
	"finops-backend/pkg/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLogisticsSheet(t *testing.T, env *testEnv, budgetID string) service.LogisticsResponse {
	t.Helper()
	sheet, err := env.logistics.CreateLogistics(context.Background(), uuid.NewString(), service.CreateLogisticsRequest{
		BudgetID: budgetID,
		Title:    "Site visit",
	})
	require.NoError(t, err)
	assert.Equal(t, "0", sheet.GrandTotal)
	return sheet
}

func TestLogisticsService_CreateLogistics_RequiresExistingBudget(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.logistics.CreateLogistics(context.Background(), "", service.CreateLogisticsRequest{
		BudgetID: uuid.NewString(),
	})
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

func TestLogisticsService_UpdateTransportation_CreatesAndRecomputesTotals(t *testing.T) {
	env := newTestEnv(t)
	actor := uuid.NewString()
	budget := seedBudget(t, env, actor)
	sheet := newLogisticsSheet(t, env, budget.ID)
	travelItem := categoryByRole(t, budget, "LOGISTICS").Items[0]

	updated, err := env.logistics.UpdateTransportationItem(context.Background(), actor, sheet.ID, "", service.TransportationPatch{
		BudgetItemID: travelItem.ID,
		Mode:         "Flight",
		Origin:       "SGN",
		Destination:  "HAN",
		Price:        "350",
	})
	require.NoError(t, err)

	require.Len(t, updated.TransportationDetails, 1)
	detail := updated.TransportationDetails[0]
	assert.Equal(t, "PENDING", detail.Status)
	assert.Empty(t, detail.StatusHistory)
	assert.Equal(t, "350", updated.TransportationTotal)
	assert.Equal(t, "350", updated.GrandTotal)

	// No committal status yet, so the ledger is untouched.
	loaded, err := env.budgets.GetBudget(context.Background(), budget.ID)
	require.NoError(t, err)
	assert.Equal(t, "800", categoryByRole(t, loaded, "LOGISTICS").Items[0].Amount)
}

func TestLogisticsService_BookedTransition_DebitsLedger(t *testing.T) {
	env := newTestEnv(t)
	actor := uuid.NewString()
	budget := seedBudget(t, env, actor)
	sheet := newLogisticsSheet(t, env, budget.ID)
	travelItem := categoryByRole(t, budget, "LOGISTICS").Items[0]

	created, err := env.logistics.UpdateTransportationItem(context.Background(), actor, sheet.ID, "", service.TransportationPatch{
		BudgetItemID: travelItem.ID,
		Mode:         "Flight",
		Price:        "350",
	})
	require.NoError(t, err)

	booked, err := env.logistics.UpdateTransportationItem(context.Background(), actor, sheet.ID, created.TransportationDetails[0].ID, service.TransportationPatch{
		Status: "BOOKED",
	})
	require.NoError(t, err)

	detail := booked.TransportationDetails[0]
	assert.Equal(t, "BOOKED", detail.Status)
	require.Len(t, detail.StatusHistory, 1)
	assert.Equal(t, "BOOKED", detail.StatusHistory[0].Status)

	loaded, err := env.budgets.GetBudget(context.Background(), budget.ID)
	require.NoError(t, err)
	got := categoryByRole(t, loaded, "LOGISTICS")
	assert.Equal(t, "450", got.Items[0].Amount)
	assert.Equal(t, "450", got.Amount)

	// Booking an already booked leg is not a transition; no second debit.
	rebooked, err := env.logistics.UpdateTransportationItem(context.Background(), actor, sheet.ID, detail.ID, service.TransportationPatch{
		Status: "BOOKED",
	})
	require.NoError(t, err)
	require.Len(t, rebooked.TransportationDetails[0].StatusHistory, 1)

	loaded, err = env.budgets.GetBudget(context.Background(), budget.ID)
	require.NoError(t, err)
	assert.Equal(t, "450", categoryByRole(t, loaded, "LOGISTICS").Items[0].Amount)
}

func TestLogisticsService_BookedTransition_InsufficientFundsRollsBack(t *testing.T) {
	env := newTestEnv(t)
	actor := uuid.NewString()
	budget := seedBudget(t, env, actor)
	sheet := newLogisticsSheet(t, env, budget.ID)
	travelItem := categoryByRole(t, budget, "LOGISTICS").Items[0]

	created, err := env.logistics.UpdateTransportationItem(context.Background(), actor, sheet.ID, "", service.TransportationPatch{
		BudgetItemID: travelItem.ID,
		Price:        "350",
	})
	require.NoError(t, err)
	detailID := created.TransportationDetails[0].ID

	// A price raise beyond the available funds aborts the whole update,
	// including the price patch itself.
	_, err = env.logistics.UpdateTransportationItem(context.Background(), actor, sheet.ID, detailID, service.TransportationPatch{
		Price:  "900",
		Status: "BOOKED",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInsufficientFunds))

	reloaded, err := env.logistics.GetLogistics(context.Background(), sheet.ID)
	require.NoError(t, err)
	detail := reloaded.TransportationDetails[0]
	assert.Equal(t, "PENDING", detail.Status)
	assert.Equal(t, "350", detail.Price)
	assert.Empty(t, detail.StatusHistory)

	loaded, err := env.budgets.GetBudget(context.Background(), budget.ID)
	require.NoError(t, err)
	assert.Equal(t, "800", categoryByRole(t, loaded, "LOGISTICS").Items[0].Amount)
}

func TestLogisticsService_BookedTransition_RequiresBudgetItem(t *testing.T) {
	env := newTestEnv(t)
	actor := uuid.NewString()
	budget := seedBudget(t, env, actor)
	sheet := newLogisticsSheet(t, env, budget.ID)

	created, err := env.logistics.UpdateTransportationItem(context.Background(), actor, sheet.ID, "", service.TransportationPatch{
		Price: "100",
	})
	require.NoError(t, err)

	_, err = env.logistics.UpdateTransportationItem(context.Background(), actor, sheet.ID, created.TransportationDetails[0].ID, service.TransportationPatch{
		Status: "BOOKED",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestLogisticsService_PaidExpense_DebitsLedger(t *testing.T) {
	env := newTestEnv(t)
	actor := uuid.NewString()
	budget := seedBudget(t, env, actor)
	sheet := newLogisticsSheet(t, env, budget.ID)
	travelItem := categoryByRole(t, budget, "LOGISTICS").Items[0]

	paid, err := env.logistics.UpdateExpenseItem(context.Background(), actor, sheet.ID, "", service.ExpensePatch{
		BudgetItemID: travelItem.ID,
		Description:  "Visa fees",
		Amount:       "120",
		Status:       "PAID",
	})
	require.NoError(t, err)

	require.Len(t, paid.AdditionalExpenses, 1)
	assert.Equal(t, "PAID", paid.AdditionalExpenses[0].Status)
	assert.Equal(t, "120", paid.ExpensesTotal)
	assert.Equal(t, "120", paid.GrandTotal)

	loaded, err := env.budgets.GetBudget(context.Background(), budget.ID)
	require.NoError(t, err)
	assert.Equal(t, "680", categoryByRole(t, loaded, "LOGISTICS").Items[0].Amount)
}

func TestLogisticsService_UnknownStatusRejected(t *testing.T) {
	env := newTestEnv(t)
	budget := seedBudget(t, env, uuid.NewString())
	sheet := newLogisticsSheet(t, env, budget.ID)

	_, err := env.logistics.UpdateAccommodationItem(context.Background(), "", sheet.ID, "", service.AccommodationPatch{
		Status: "BOOKED", // transportation vocabulary, invalid here
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestLogisticsService_DeleteCommittedItem_NoLedgerReversal(t *testing.T) {
	env := newTestEnv(t)
	actor := uuid.NewString()
	budget := seedBudget(t, env, actor)
	sheet := newLogisticsSheet(t, env, budget.ID)
	travelItem := categoryByRole(t, budget, "LOGISTICS").Items[0]

	paid, err := env.logistics.UpdateExpenseItem(context.Background(), actor, sheet.ID, "", service.ExpensePatch{
		BudgetItemID: travelItem.ID,
		Description:  "Visa fees",
		Amount:       "120",
		Status:       "PAID",
	})
	require.NoError(t, err)

	deleted, err := env.logistics.DeleteExpenseItem(context.Background(), actor, sheet.ID, paid.AdditionalExpenses[0].ID)
	require.NoError(t, err)
	assert.Empty(t, deleted.AdditionalExpenses)
	assert.Equal(t, "0", deleted.ExpensesTotal)
	assert.Equal(t, "0", deleted.GrandTotal)

	// The debit stands.
	loaded, err := env.budgets.GetBudget(context.Background(), budget.ID)
	require.NoError(t, err)
	assert.Equal(t, "680", categoryByRole(t, loaded, "LOGISTICS").Items[0].Amount)
}

func TestLogisticsService_DeleteFirstExpense_RemovesOnlyThatRow(t *testing.T) {
	env := newTestEnv(t)
	actor := uuid.NewString()
	budget := seedBudget(t, env, actor)
	sheet := newLogisticsSheet(t, env, budget.ID)
	travelItem := categoryByRole(t, budget, "LOGISTICS").Items[0]

	first, err := env.logistics.UpdateExpenseItem(context.Background(), actor, sheet.ID, "", service.ExpensePatch{
		BudgetItemID: travelItem.ID,
		Description:  "Visa fees",
		Amount:       "120",
	})
	require.NoError(t, err)
	withBoth, err := env.logistics.UpdateExpenseItem(context.Background(), actor, sheet.ID, "", service.ExpensePatch{
		BudgetItemID: travelItem.ID,
		Description:  "Taxi",
		Amount:       "30",
	})
	require.NoError(t, err)
	require.Len(t, withBoth.AdditionalExpenses, 2)

	deleted, err := env.logistics.DeleteExpenseItem(context.Background(), actor, sheet.ID, first.AdditionalExpenses[0].ID)
	require.NoError(t, err)
	require.Len(t, deleted.AdditionalExpenses, 1)
	assert.Equal(t, "Taxi", deleted.AdditionalExpenses[0].Description)
	assert.Equal(t, "30", deleted.ExpensesTotal)

	// The stored rows must agree with the recomputed totals.
	reloaded, err := env.logistics.GetLogistics(context.Background(), sheet.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.AdditionalExpenses, 1)
	assert.Equal(t, "Taxi", reloaded.AdditionalExpenses[0].Description)
	assert.Equal(t, "30", reloaded.ExpensesTotal)
	assert.Equal(t, "30", reloaded.GrandTotal)
}

func TestLogisticsService_ConfirmedAccommodation_DebitsByPrice(t *testing.T) {
	env := newTestEnv(t)
	actor := uuid.NewString()
	budget := seedBudget(t, env, actor)
	sheet := newLogisticsSheet(t, env, budget.ID)
	travelItem := categoryByRole(t, budget, "LOGISTICS").Items[0]

	confirmed, err := env.logistics.UpdateAccommodationItem(context.Background(), actor, sheet.ID, "", service.AccommodationPatch{
		BudgetItemID: travelItem.ID,
		Location:     "Hanoi",
		Price:        "200",
		Status:       "CONFIRMED",
	})
	require.NoError(t, err)

	assert.Equal(t, "CONFIRMED", confirmed.AccommodationDetails[0].Status)
	assert.Equal(t, "200", confirmed.AccommodationTotal)

	loaded, err := env.budgets.GetBudget(context.Background(), budget.ID)
	require.NoError(t, err)
	assert.Equal(t, "600", categoryByRole(t, loaded, "LOGISTICS").Items[0].Amount)
}
